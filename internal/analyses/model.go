package analyses

import "time"

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Severity levels for findings. Unknown provider values normalize to
// SeverityInfo.
const (
	SeverityCritical = "CRITICO"
	SeverityWarning  = "ATENCION"
	SeverityInfo     = "INFORMATIVO"
)

// Analysis is one audit request for a project snapshot. The stored request
// fields let the pipeline run detached from the HTTP call that created it.
type Analysis struct {
	ID                   string         `json:"id"`
	ProjectCode          string         `json:"projectCode"`
	Status               string         `json:"status"`
	ErrorMessage         *string        `json:"errorMessage,omitempty"`
	RequestPayload       map[string]any `json:"-"`
	ModelOverride        string         `json:"modelOverride,omitempty"`
	Temperature          float32        `json:"temperature"`
	SystemPromptOverride string         `json:"-"`
	ExtraInstructions    string         `json:"-"`
	StartedAt            *time.Time     `json:"startedAt,omitempty"`
	CompletedAt          *time.Time     `json:"completedAt,omitempty"`
	CreatedAt            time.Time      `json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

// Invocation audits one attempt group against the provider fleet. It is
// built before the call and completed with the outcome afterwards.
type Invocation struct {
	ID               string    `json:"id"`
	AnalysisID       string    `json:"analysisId"`
	ModelUsed        string    `json:"modelUsed"`
	PromptTokens     *int      `json:"promptTokens,omitempty"`
	CompletionTokens *int      `json:"completionTokens,omitempty"`
	TotalTokens      *int      `json:"totalTokens,omitempty"`
	DurationMs       int64     `json:"durationMs"`
	Success          bool      `json:"success"`
	ErrorDetail      *string   `json:"errorDetail,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// PromptRecord stores the exact prompt text sent for an invocation.
type PromptRecord struct {
	ID           string `json:"id"`
	InvocationID string `json:"invocationId"`
	SystemPrompt string `json:"systemPrompt"`
	UserPrompt   string `json:"userPrompt"`
}

// ResponseRecord stores the raw provider answer plus its best-effort parse.
type ResponseRecord struct {
	ID           string         `json:"id"`
	InvocationID string         `json:"invocationId"`
	RawText      string         `json:"rawText"`
	Parsed       map[string]any `json:"parsed,omitempty"`
}

// Result is the structured audit derived from a successful invocation.
type Result struct {
	ID             string    `json:"id"`
	AnalysisID     string    `json:"analysisId"`
	Summary        string    `json:"summary"`
	CoherenceScore *int      `json:"coherenceScore,omitempty"`
	RiskDetected   bool      `json:"riskDetected"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Finding is a single identified risk or observation inside a result.
type Finding struct {
	ID          string `json:"id"`
	ResultID    string `json:"resultId"`
	Position    int    `json:"position"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Outcome groups the audit-trail and result writes that commit as one unit
// after the LLM step.
type Outcome struct {
	AnalysisID string
	Invocation Invocation
	Prompt     PromptRecord
	Response   ResponseRecord
	Result     *Result
	Findings   []Finding
}
