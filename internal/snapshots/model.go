package snapshots

import "time"

// Snapshot is one immutable ingestion of a project's structured state. It is
// created once per analysis and never rewritten.
type Snapshot struct {
	ID         string         `json:"id"`
	AnalysisID string         `json:"analysisId"`
	Payload    map[string]any `json:"payload"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Project is the normalized project record, present only when the source
// payload carries a non-empty project code.
type Project struct {
	ID            string `json:"id"`
	SnapshotID    string `json:"snapshotId"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	TechnicalLead string `json:"technicalLead"`
}

// Stage is one normalized construction stage entry.
type Stage struct {
	ID                string `json:"id"`
	SnapshotID        string `json:"snapshotId"`
	Name              string `json:"name"`
	Status            string `json:"status"`
	EstimatedProgress int    `json:"estimatedProgress"`
}

// ProgressEntry is one normalized progress report.
type ProgressEntry struct {
	ID            string    `json:"id"`
	SnapshotID    string    `json:"snapshotId"`
	RecordedOn    time.Time `json:"recordedOn"`
	Supervisor    string    `json:"supervisor"`
	Percentage    int       `json:"percentage"`
	HasDeviations bool      `json:"hasDeviations"`
	Tasks         []string  `json:"tasks"`
	ActiveTrades  []string  `json:"activeTrades"`
}

// SafetyRecord aggregates the safety measures reported in a snapshot. It is
// absent when the payload lists no measures.
type SafetyRecord struct {
	ID           string    `json:"id"`
	SnapshotID   string    `json:"snapshotId"`
	RecordedOn   time.Time `json:"recordedOn"`
	Measures     []any     `json:"measures"`
	TotalChecked int       `json:"totalChecked"`
	AllCompliant bool      `json:"allCompliant"`
}

// Bundle groups a snapshot with all its normalized sub-records. It is the
// unit persisted in one transaction.
type Bundle struct {
	Snapshot Snapshot
	Project  *Project
	Stages   []Stage
	Progress []ProgressEntry
	Safety   *SafetyRecord
}

// Summary is a compact projection of a persisted snapshot for read APIs.
type Summary struct {
	SnapshotID    string `json:"snapshotId"`
	ProjectCode   string `json:"projectCode,omitempty"`
	ProjectName   string `json:"projectName,omitempty"`
	StageCount    int    `json:"stageCount"`
	ProgressCount int    `json:"progressCount"`
	HasSafety     bool   `json:"hasSafety"`
	TotalChecked  int    `json:"totalChecked,omitempty"`
	AllCompliant  bool   `json:"allCompliant,omitempty"`
}
