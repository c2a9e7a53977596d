package sdk

import (
	"context"
	"errors"

	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/execution"
	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/runtimeapi"
	"github.com/Aaron-Lilly/symphainy-prod-sub018/internal/session"
)

// Intent types understood by the Runtime.
const (
	IntentIngestFile        = "ingest_file"
	IntentParseFile         = "parse_file"
	IntentListFiles         = "list_files"
	IntentDeleteFile        = "delete_file"
	IntentAssessDataQuality = "assess_data_quality"
	IntentRunAnalysis       = "run_analysis"
	IntentInterpretResults  = "interpret_results"
)

// Result messages for the expected failure modes. UI copy keys off these.
const (
	msgSessionNotActive = "Session not active"
	msgTimedOut         = "Execution timed out"
	msgCancelled        = "Execution cancelled"
	msgFailed           = "Execution failed"
)

// OperationResult is the uniform outcome of every derived operation. Expected
// failures land in Error; operations never raise for them.
type OperationResult struct {
	Success     bool           `json:"success"`
	ExecutionID string         `json:"executionId,omitempty"`
	Artifacts   map[string]any `json:"artifacts,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// failure builds an error result.
func failure(executionID, message string) OperationResult {
	return OperationResult{ExecutionID: executionID, Error: message}
}

// SubmitIntent submits a raw intent and waits for completion under the given
// operation-class policy. The named operations below are thin wrappers; use
// this directly for intents the SDK has no wrapper for.
func (c *Client) SubmitIntent(ctx context.Context, intentType string, parameters map[string]any, policy execution.PollPolicy) OperationResult {
	return c.submitAndAwait(ctx, intentType, parameters, policy)
}

// FilePolicy returns the poll policy used for file-class intents.
func (c *Client) FilePolicy() execution.PollPolicy { return c.filePolicy }

// InsightsPolicy returns the poll policy used for insights-class intents.
func (c *Client) InsightsPolicy() execution.PollPolicy { return c.insightsPolicy }

// submitAndAwait is the shared derived-operation pipeline: gate on session
// state, submit, poll to terminal status, shape the uniform result.
//
// A nil wait result means the outcome is unknown (the Runtime may still
// finish the work); it is reported as a timeout, and the execution id is
// included so callers can poll again later.
func (c *Client) submitAndAwait(ctx context.Context, intentType string, parameters map[string]any, policy execution.PollPolicy) OperationResult {
	if c.sessions.State().Status != session.StatusActive {
		return failure("", msgSessionNotActive)
	}

	executionID, err := c.tracker.SubmitIntent(ctx, intentType, parameters, nil)
	if err != nil {
		if errors.Is(err, execution.ErrSessionRequired) {
			return failure("", msgSessionNotActive)
		}
		return failure("", err.Error())
	}

	exec := c.tracker.WaitForCompletion(ctx, executionID, policy)
	if exec == nil {
		return failure(executionID, msgTimedOut)
	}

	switch exec.Status {
	case runtimeapi.StatusCompleted:
		return OperationResult{
			Success:     true,
			ExecutionID: executionID,
			Artifacts:   exec.Artifacts,
		}
	case runtimeapi.StatusCancelled:
		return failure(executionID, msgCancelled)
	case runtimeapi.StatusFailed:
		message := exec.Error
		if message == "" {
			message = msgFailed
		}
		return failure(executionID, message)
	default:
		return failure(executionID, msgTimedOut)
	}
}

// UploadFile ingests a file already staged with the Runtime's upload surface.
func (c *Client) UploadFile(ctx context.Context, fileName, contentType string, sizeBytes int64) OperationResult {
	return c.submitAndAwait(ctx, IntentIngestFile, map[string]any{
		"file_name":    fileName,
		"content_type": contentType,
		"size_bytes":   sizeBytes,
	}, c.filePolicy)
}

// ParseFile asks the Runtime to parse an ingested file into artifacts.
func (c *Client) ParseFile(ctx context.Context, fileID string) OperationResult {
	return c.submitAndAwait(ctx, IntentParseFile, map[string]any{
		"file_id": fileID,
	}, c.filePolicy)
}

// ListFiles lists the tenant's ingested files.
func (c *Client) ListFiles(ctx context.Context) OperationResult {
	return c.submitAndAwait(ctx, IntentListFiles, nil, c.filePolicy)
}

// DeleteFile removes an ingested file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) OperationResult {
	return c.submitAndAwait(ctx, IntentDeleteFile, map[string]any{
		"file_id": fileID,
	}, c.filePolicy)
}

// AssessDataQuality runs the data-quality assessment over an ingested file.
func (c *Client) AssessDataQuality(ctx context.Context, fileID string) OperationResult {
	return c.submitAndAwait(ctx, IntentAssessDataQuality, map[string]any{
		"file_id": fileID,
	}, c.insightsPolicy)
}

// RunAnalysis runs an insights analysis with caller-supplied parameters.
func (c *Client) RunAnalysis(ctx context.Context, parameters map[string]any) OperationResult {
	return c.submitAndAwait(ctx, IntentRunAnalysis, parameters, c.insightsPolicy)
}

// InterpretResults asks the Runtime to interpret a completed analysis.
func (c *Client) InterpretResults(ctx context.Context, analysisID string) OperationResult {
	return c.submitAndAwait(ctx, IntentInterpretResults, map[string]any{
		"analysis_id": analysisID,
	}, c.insightsPolicy)
}
