package runtimeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// defaultHTTPTimeout is the per-request timeout used by the HTTP client.
	defaultHTTPTimeout = 15 * time.Second
)

// TokenSource supplies the bearer credential attached to every request. The
// transport only reads tokens; it never refreshes or issues them.
type TokenSource interface {
	AccessToken() string
}

// HTTPClient is the production Client implementation over the Runtime's HTTP
// API, plus a socket-backed push stream for execution updates.
type HTTPClient struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
	stream  *streamSocket
	log     *zap.Logger
}

// NewHTTPClient creates a transport client for the given Runtime base URL.
// The URL must not have a trailing slash; request paths are joined as
// `baseURL + "/v1/..."`.
func NewHTTPClient(baseURL string, tokens TokenSource, log *zap.Logger) *HTTPClient {
	if log == nil {
		log = zap.NewNop()
	}
	baseURL = strings.TrimRight(baseURL, "/")
	c := &HTTPClient{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		log:     log.Named("runtimeapi"),
	}
	c.stream = newStreamSocket(baseURL, tokens, c.log)
	return c
}

// SubmitIntent implements Client.
func (c *HTTPClient) SubmitIntent(ctx context.Context, req SubmitIntentRequest) (SubmitIntentResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return SubmitIntentResponse{}, fmt.Errorf("marshal intent: %w", err)
	}
	respBody, err := c.doRequest(ctx, http.MethodPost, "/v1/intents", body)
	if err != nil {
		return SubmitIntentResponse{}, &TransportError{Op: "submit intent", Err: err}
	}
	var resp SubmitIntentResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return SubmitIntentResponse{}, &TransportError{Op: "decode intent response", Err: err}
	}
	return resp, nil
}

// GetExecutionStatus implements Client.
func (c *HTTPClient) GetExecutionStatus(ctx context.Context, executionID, tenantID string) (Execution, error) {
	path := fmt.Sprintf("/v1/executions/%s?tenant_id=%s",
		url.PathEscape(executionID), url.QueryEscape(tenantID))
	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return Execution{}, &TransportError{Op: "get execution status", Err: err}
	}
	var exec Execution
	if err := json.Unmarshal(respBody, &exec); err != nil {
		return Execution{}, &TransportError{Op: "decode execution", Err: err}
	}
	return exec, nil
}

// StreamExecution implements Client. The shared updates socket is connected
// lazily on the first registration.
func (c *HTTPClient) StreamExecution(executionID string, onUpdate func(Execution), onError func(error)) (Subscription, error) {
	return c.stream.subscribe(executionID, onUpdate, onError)
}

// GetSession implements Client.
func (c *HTTPClient) GetSession(ctx context.Context, sessionID, tenantID string) (SessionEnvelope, error) {
	path := fmt.Sprintf("/v1/sessions/%s?tenant_id=%s",
		url.PathEscape(sessionID), url.QueryEscape(tenantID))
	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		if isRejectedStatus(err) {
			return SessionEnvelope{}, ErrSessionRejected
		}
		return SessionEnvelope{}, &TransportError{Op: "get session", Err: err}
	}
	var envelope SessionEnvelope
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return SessionEnvelope{}, &TransportError{Op: "decode session", Err: err}
	}
	return envelope, nil
}

// PutRealmState implements Client.
func (c *HTTPClient) PutRealmState(ctx context.Context, sessionID, tenantID, realm, key string, value any) error {
	payload := map[string]any{
		"session_id": sessionID,
		"tenant_id":  tenantID,
		"realm":      realm,
		"key":        key,
		"value":      value,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal realm state: %w", err)
	}
	if _, err := c.doRequest(ctx, http.MethodPut, "/v1/sessions/state", body); err != nil {
		return &TransportError{Op: "put realm state", Err: err}
	}
	return nil
}

// Close tears down the push stream socket, if connected.
func (c *HTTPClient) Close() {
	c.stream.close()
}

// httpStatusError carries the HTTP status for error-classification without
// keeping the response around.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.status, e.body)
}

func isRejectedStatus(err error) bool {
	se, ok := err.(*httpStatusError)
	return ok && (se.status == http.StatusUnauthorized || se.status == http.StatusForbidden || se.status == http.StatusGone)
}

func (c *HTTPClient) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("server URL not set")
	}

	fullURL := c.baseURL + path
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, err
	}
	if token := c.tokens.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &httpStatusError{status: httpResp.StatusCode, body: string(respBody)}
	}
	return respBody, nil
}
