package analyses

import (
	"time"

	"siteaudit-backend/internal/snapshots"
)

// startRequest is the POST body for a new audit.
type startRequest struct {
	ProjectCode       string         `json:"project_code"`
	Snapshot          map[string]any `json:"snapshot" binding:"required"`
	Model             string         `json:"model"`
	Temperature       *float32       `json:"temperature"`
	SystemPrompt      string         `json:"system_prompt"`
	ExtraInstructions string         `json:"extra_instructions"`
}

type findingDTO struct {
	Title       string `json:"titulo"`
	Description string `json:"descripcion"`
	Severity    string `json:"nivel"`
}

type resultDTO struct {
	Summary        string       `json:"resumen_general"`
	CoherenceScore *int         `json:"score_coherencia"`
	RiskDetected   bool         `json:"detecta_riesgos"`
	Findings       []findingDTO `json:"riesgos"`
}

type invocationDTO struct {
	ID               string    `json:"id"`
	ModelUsed        string    `json:"modelUsed"`
	PromptTokens     *int      `json:"promptTokens,omitempty"`
	CompletionTokens *int      `json:"completionTokens,omitempty"`
	TotalTokens      *int      `json:"totalTokens,omitempty"`
	DurationMs       int64     `json:"durationMs"`
	Success          bool      `json:"success"`
	ErrorDetail      *string   `json:"errorDetail,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

type analysisDTO struct {
	ID           string             `json:"id"`
	ProjectCode  string             `json:"projectCode"`
	Status       string             `json:"status"`
	ErrorMessage *string            `json:"errorMessage,omitempty"`
	StartedAt    *time.Time         `json:"startedAt,omitempty"`
	CompletedAt  *time.Time         `json:"completedAt,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	Snapshot     *snapshots.Summary `json:"snapshot,omitempty"`
	Result       *resultDTO         `json:"result,omitempty"`
	Invocations  []invocationDTO    `json:"invocations,omitempty"`
}

func toResultDTO(result Result, findings []Finding) *resultDTO {
	dto := &resultDTO{
		Summary:        result.Summary,
		CoherenceScore: result.CoherenceScore,
		RiskDetected:   result.RiskDetected,
		Findings:       make([]findingDTO, 0, len(findings)),
	}
	for _, f := range findings {
		dto.Findings = append(dto.Findings, findingDTO{
			Title:       f.Title,
			Description: f.Description,
			Severity:    f.Severity,
		})
	}
	return dto
}

func toInvocationDTOs(invocations []Invocation) []invocationDTO {
	out := make([]invocationDTO, 0, len(invocations))
	for _, inv := range invocations {
		out = append(out, invocationDTO{
			ID:               inv.ID,
			ModelUsed:        inv.ModelUsed,
			PromptTokens:     inv.PromptTokens,
			CompletionTokens: inv.CompletionTokens,
			TotalTokens:      inv.TotalTokens,
			DurationMs:       inv.DurationMs,
			Success:          inv.Success,
			ErrorDetail:      inv.ErrorDetail,
			CreatedAt:        inv.CreatedAt,
		})
	}
	return out
}
