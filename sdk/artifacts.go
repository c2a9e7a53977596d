package sdk

import (
	"encoding/json"
	"fmt"
)

// Typed artifact views per intent type. Agent-composed payloads stay opaque
// maps; these cover the intents whose artifact shape is stable.

// IngestFileArtifacts is the artifact payload of an ingest_file execution.
type IngestFileArtifacts struct {
	FileID string `json:"file_id"`
}

// ParseFileArtifacts is the artifact payload of a parse_file execution.
type ParseFileArtifacts struct {
	FileID      string `json:"file_id"`
	RecordCount int    `json:"record_count"`
	Schema      []any  `json:"schema,omitempty"`
}

// FileSummary is one entry of a list_files artifact payload.
type FileSummary struct {
	FileID      string `json:"file_id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// ListFilesArtifacts is the artifact payload of a list_files execution.
type ListFilesArtifacts struct {
	Files []FileSummary `json:"files"`
}

// QualityReportArtifacts is the artifact payload of an assess_data_quality
// execution.
type QualityReportArtifacts struct {
	FileID string   `json:"file_id"`
	Score  float64  `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// AnalysisArtifacts is the artifact payload of a run_analysis execution.
type AnalysisArtifacts struct {
	AnalysisID string         `json:"analysis_id"`
	Summary    string         `json:"summary,omitempty"`
	Metrics    map[string]any `json:"metrics,omitempty"`
}

// InterpretationArtifacts is the artifact payload of an interpret_results
// execution.
type InterpretationArtifacts struct {
	AnalysisID     string   `json:"analysis_id"`
	Narrative      string   `json:"narrative"`
	Recommendation []string `json:"recommendations,omitempty"`
}

// DecodeArtifacts unmarshals the result's artifact map into one of the typed
// views above (or any JSON-shaped struct).
func (r OperationResult) DecodeArtifacts(target any) error {
	if r.Artifacts == nil {
		return fmt.Errorf("no artifacts present")
	}
	raw, err := json.Marshal(r.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode artifacts: %w", err)
	}
	return nil
}
