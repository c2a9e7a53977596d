package sdk

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/chat"
	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/config"
	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/execution"
	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/runtimeapi"
)

type fakeCreds struct {
	token     string
	sessionID string
}

func (f fakeCreds) AccessToken() string { return f.token }
func (f fakeCreds) SessionID() string   { return f.sessionID }

type fakeTransport struct {
	mu          sync.Mutex
	submits     int
	polls       int
	getSessions int
	statusQueue []runtimeapi.Execution
	submitErr   error
	envelope    runtimeapi.SessionEnvelope
	sessionGate chan struct{}
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits + f.polls + f.getSessions
}

func (f *fakeTransport) sessions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getSessions
}

func (f *fakeTransport) SubmitIntent(ctx context.Context, req runtimeapi.SubmitIntentRequest) (runtimeapi.SubmitIntentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	if f.submitErr != nil {
		return runtimeapi.SubmitIntentResponse{}, f.submitErr
	}
	return runtimeapi.SubmitIntentResponse{ExecutionID: "exec-1", IntentID: "intent-1", CreatedAt: time.Now()}, nil
}

func (f *fakeTransport) GetExecutionStatus(ctx context.Context, executionID, tenantID string) (runtimeapi.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if len(f.statusQueue) == 0 {
		return runtimeapi.Execution{ExecutionID: executionID, Status: runtimeapi.StatusPending}, nil
	}
	next := f.statusQueue[0]
	if len(f.statusQueue) > 1 {
		f.statusQueue = f.statusQueue[1:]
	}
	return next, nil
}

func (f *fakeTransport) StreamExecution(executionID string, onUpdate func(runtimeapi.Execution), onError func(error)) (runtimeapi.Subscription, error) {
	return nil, errors.New("no stream in tests")
}

func (f *fakeTransport) GetSession(ctx context.Context, sessionID, tenantID string) (runtimeapi.SessionEnvelope, error) {
	f.mu.Lock()
	f.getSessions++
	gate := f.sessionGate
	envelope := f.envelope
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return envelope, nil
}

func (f *fakeTransport) PutRealmState(ctx context.Context, sessionID, tenantID, realm, key string, value any) error {
	return nil
}

type fakeChatConn struct {
	mu        sync.Mutex
	connected bool
}

func (c *fakeChatConn) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = true
	return nil
}

func (c *fakeChatConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

func (c *fakeChatConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeChatConn) Emit(event string, data map[string]any) error    { return nil }
func (c *fakeChatConn) On(event chat.EventType, h func(map[string]any)) {}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		ServerURL:            "https://runtime.test",
		SymphainyHome:        t.TempDir(),
		FilePollInterval:     time.Millisecond,
		FilePollMaxWait:      50 * time.Millisecond,
		InsightsPollInterval: time.Millisecond,
		InsightsPollMaxWait:  100 * time.Millisecond,
		RealmSyncInterval:    time.Hour,
	}
}

func newTestClient(t *testing.T, transport *fakeTransport) (*Client, *fakeChatConn) {
	t.Helper()
	conn := &fakeChatConn{}
	dial := func(serverURL, token, sessionID string, log *zap.Logger) chat.Conn { return conn }
	c, err := New(fakeCreds{token: "tok-1", sessionID: "sess-1"},
		WithConfig(testConfig(t)),
		WithTransport(transport),
		WithChatDialer(dial),
	)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, conn
}

func activate(t *testing.T, c *Client) {
	t.Helper()
	require.NoError(t, c.sessions.Activate("sess-1", "tenant-1", "user-1"))
}

func TestUploadFileRejectedWhileInitializing(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{}
	c, _ := newTestClient(t, transport)

	result := c.UploadFile(context.Background(), "a.csv", "text/csv", 42)
	require.False(t, result.Success)
	require.Equal(t, "Session not active", result.Error)
	require.Zero(t, transport.calls(), "gated operations never touch the network")
}

func TestUploadFileCompletes(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{statusQueue: []runtimeapi.Execution{
		{ExecutionID: "exec-1", Status: runtimeapi.StatusPending},
		{ExecutionID: "exec-1", Status: runtimeapi.StatusPending},
		{ExecutionID: "exec-1", Status: runtimeapi.StatusCompleted, Artifacts: map[string]any{"file_id": "f-1"}},
	}}
	c, _ := newTestClient(t, transport)
	activate(t, c)

	result := c.UploadFile(context.Background(), "a.csv", "text/csv", 42)
	require.True(t, result.Success)
	require.Equal(t, "exec-1", result.ExecutionID)
	require.Equal(t, "f-1", result.Artifacts["file_id"])

	var artifacts IngestFileArtifacts
	require.NoError(t, result.DecodeArtifacts(&artifacts))
	require.Equal(t, "f-1", artifacts.FileID)
}

func TestUploadFileTimesOut(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{} // always pending
	c, _ := newTestClient(t, transport)
	activate(t, c)

	result := c.UploadFile(context.Background(), "a.csv", "text/csv", 42)
	require.False(t, result.Success)
	require.Equal(t, "exec-1", result.ExecutionID)
	require.Equal(t, "Execution timed out", result.Error)
}

func TestFailedExecutionSurfacesBackendMessage(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{statusQueue: []runtimeapi.Execution{
		{ExecutionID: "exec-1", Status: runtimeapi.StatusFailed, Error: "unsupported file format"},
	}}
	c, _ := newTestClient(t, transport)
	activate(t, c)

	result := c.ParseFile(context.Background(), "f-1")
	require.False(t, result.Success)
	require.Equal(t, "unsupported file format", result.Error)
}

func TestSubmitFailurePropagatesError(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{submitErr: &runtimeapi.TransportError{Op: "submit intent", Err: errors.New("boom")}}
	c, _ := newTestClient(t, transport)
	activate(t, c)

	result := c.DeleteFile(context.Background(), "f-1")
	require.False(t, result.Success)
	require.Contains(t, result.Error, "submit intent")
}

func TestInsightsOperationsUseInsightsPolicy(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{statusQueue: []runtimeapi.Execution{
		{ExecutionID: "exec-1", Status: runtimeapi.StatusCompleted, Artifacts: map[string]any{
			"file_id": "f-1", "score": 0.87, "issues": []any{"missing headers"},
		}},
	}}
	c, _ := newTestClient(t, transport)
	activate(t, c)

	result := c.AssessDataQuality(context.Background(), "f-1")
	require.True(t, result.Success)

	var report QualityReportArtifacts
	require.NoError(t, result.DecodeArtifacts(&report))
	require.Equal(t, 0.87, report.Score)
	require.Equal(t, []string{"missing headers"}, report.Issues)

	// The class defaults stay distinct: insights intents poll half as often
	// and wait twice as long as file intents.
	require.Equal(t, 2*time.Second, execution.InsightsPolicy.Interval)
	require.Equal(t, 60*time.Second, execution.InsightsPolicy.MaxWait)
	require.Equal(t, time.Second, execution.FilePolicy.Interval)
	require.Equal(t, 30*time.Second, execution.FilePolicy.MaxWait)
}

func TestInvalidationCascade(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{statusQueue: []runtimeapi.Execution{
		{ExecutionID: "exec-1", Status: runtimeapi.StatusCompleted},
	}}
	c, _ := newTestClient(t, transport)
	activate(t, c)

	// Live chat socket, a tracked execution, and realm data.
	require.True(t, c.ConnectChat())
	require.True(t, c.ChatConnected())
	_ = c.UploadFile(context.Background(), "a.csv", "text/csv", 1)
	c.SetRealmState(context.Background(), RealmContent, "fileId", "A")

	c.Invalidate("token revoked")

	// Everything torn down before Invalidate returned.
	require.False(t, c.ChatConnected())
	_, tracked := c.tracker.Lookup("exec-1")
	require.False(t, tracked)
	_, ok := c.GetRealmState(RealmContent, "fileId")
	require.False(t, ok)
	require.Equal(t, SessionInvalid, c.Session().Status)

	// And gated operations decline without touching the network.
	before := transport.calls()
	result := c.ListFiles(context.Background())
	require.False(t, result.Success)
	require.Equal(t, "Session not active", result.Error)
	require.Equal(t, before, transport.calls())
}

func TestRealmServerWinsThroughClient(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{envelope: runtimeapi.SessionEnvelope{
		SessionID: "sess-1",
		TenantID:  "tenant-1",
		State: &runtimeapi.SessionState{RealmState: map[string]map[string]any{
			"content": {"fileId": "B"},
		}},
	}}
	c, _ := newTestClient(t, transport)
	activate(t, c)

	c.SetRealmState(context.Background(), RealmContent, "fileId", "A")
	c.SyncRealmsNow(context.Background())

	got, ok := c.GetRealmState(RealmContent, "fileId")
	require.True(t, ok)
	require.Equal(t, "B", got)
}
