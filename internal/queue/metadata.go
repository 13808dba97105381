package queue

import (
	"encoding/json"
	"fmt"
)

// Metadata holds the publish-facing metadata produced by the enhancement
// stage, stored in tasks.metadata_json.
type Metadata struct {
	TranslatedTitle       string   `json:"translated_title"`
	TranslatedDescription string   `json:"translated_description"`
	Tags                  []string `json:"tags,omitempty"`
	Category              string   `json:"category,omitempty"`
}

// Finding is one moderation flag, stored in tasks.findings_json.
type Finding struct {
	Field    string `json:"field"`
	Term     string `json:"term"`
	Severity string `json:"severity,omitempty"`
}

// Metadata decodes the stored metadata document. An empty column yields a
// zero value without error.
func (t *Task) Metadata() (Metadata, error) {
	if t.MetadataJSON == "" {
		return Metadata{}, nil
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(t.MetadataJSON), &meta); err != nil {
		return Metadata{}, fmt.Errorf("decode task metadata: %w", err)
	}
	return meta, nil
}

// SetMetadata encodes and stores the metadata document.
func (t *Task) SetMetadata(meta Metadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode task metadata: %w", err)
	}
	t.MetadataJSON = string(raw)
	return nil
}

// Findings decodes the stored moderation findings.
func (t *Task) Findings() ([]Finding, error) {
	if t.FindingsJSON == "" {
		return nil, nil
	}
	var findings []Finding
	if err := json.Unmarshal([]byte(t.FindingsJSON), &findings); err != nil {
		return nil, fmt.Errorf("decode task findings: %w", err)
	}
	return findings, nil
}

// SetFindings encodes and stores moderation findings. An empty slice clears
// the column.
func (t *Task) SetFindings(findings []Finding) error {
	if len(findings) == 0 {
		t.FindingsJSON = ""
		return nil
	}
	raw, err := json.Marshal(findings)
	if err != nil {
		return fmt.Errorf("encode task findings: %w", err)
	}
	t.FindingsJSON = string(raw)
	return nil
}

// RetryCounts decodes the per-stage attempt counters.
func (t *Task) RetryCounts() (map[string]int, error) {
	if t.RetryCountsJSON == "" {
		return map[string]int{}, nil
	}
	counts := map[string]int{}
	if err := json.Unmarshal([]byte(t.RetryCountsJSON), &counts); err != nil {
		return nil, fmt.Errorf("decode retry counts: %w", err)
	}
	return counts, nil
}

// BumpRetryCount increments and stores the attempt counter for a stage,
// returning the new count.
func (t *Task) BumpRetryCount(stage string) (int, error) {
	counts, err := t.RetryCounts()
	if err != nil {
		return 0, err
	}
	counts[stage]++
	raw, err := json.Marshal(counts)
	if err != nil {
		return 0, fmt.Errorf("encode retry counts: %w", err)
	}
	t.RetryCountsJSON = string(raw)
	return counts[stage], nil
}
