package execution

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/runtimeapi"
)

// PollPolicy configures the wait-for-completion loop for one operation class.
type PollPolicy struct {
	Interval time.Duration
	MaxWait  time.Duration
}

// Poll policies per operation class. Insights intents are markedly more
// expensive than file intents, so they poll half as often and wait twice as
// long. Keep these distinct.
var (
	FilePolicy     = PollPolicy{Interval: 1 * time.Second, MaxWait: 30 * time.Second}
	InsightsPolicy = PollPolicy{Interval: 2 * time.Second, MaxWait: 60 * time.Second}
)

// WaitForCompletion polls GetExecutionStatus until the execution reaches a
// terminal status or policy.MaxWait elapses. Returns nil on timeout or
// context cancellation: the outcome is UNKNOWN, not failed. The Runtime may
// still complete the intent, and a later poll can retrieve the result.
//
// The loop yields between iterations (cooperative polling); it never busy
// waits and never blocks past ctx.
func (t *Tracker) WaitForCompletion(ctx context.Context, executionID string, policy PollPolicy) *runtimeapi.Execution {
	if policy.Interval <= 0 {
		policy = FilePolicy
	}
	deadline := time.Now().Add(policy.MaxWait)

	for {
		if exec := t.GetExecutionStatus(ctx, executionID); exec != nil && exec.Status.IsTerminal() {
			return exec
		}
		if time.Now().After(deadline) {
			t.log.Warn("execution wait elapsed without terminal status",
				zap.String("execution_id", executionID))
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(policy.Interval):
		}
	}
}
