package analyses

import (
	"strings"

	"siteaudit-backend/internal/llm"
)

// ExtractResult turns raw model output into a persisted Result plus its
// findings. It never fails: unparseable output degrades to a narrative-only
// result carrying the raw text so the audit trail is still useful.
func ExtractResult(content string) (Result, []Finding) {
	parsed := llm.RepairParse(content)
	if parsed == nil {
		summary := strings.TrimSpace(content)
		if summary == "" {
			summary = "Sin contenido"
		}
		return Result{Summary: summary}, nil
	}

	result := Result{
		Summary:        summaryField(parsed),
		CoherenceScore: scoreField(parsed),
	}
	findings := findingsField(parsed)
	result.RiskDetected = len(findings) > 0
	return result, findings
}

func summaryField(parsed map[string]any) string {
	for _, key := range []string{"resumen_general", "resumen", "summary"} {
		if s, ok := parsed[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return "Sin resumen"
}

// scoreField returns nil when the model produced a non-numeric score;
// numeric values are clamped to the 0-100 contract.
func scoreField(parsed map[string]any) *int {
	raw, ok := parsed["score_coherencia"]
	if !ok {
		raw = parsed["score"]
	}
	var score int
	switch v := raw.(type) {
	case float64:
		score = int(v)
	case int:
		score = v
	default:
		return nil
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return &score
}

func findingsField(parsed map[string]any) []Finding {
	raw, ok := parsed["riesgos"].([]any)
	if !ok {
		if raw, ok = parsed["risks"].([]any); !ok {
			return nil
		}
	}
	var findings []Finding
	for i, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		findings = append(findings, Finding{
			Position:    i,
			Title:       stringOr(entry, "Riesgo sin título", "titulo", "title"),
			Description: stringOr(entry, "Sin descripción", "descripcion", "description"),
			Severity:    normalizeSeverity(entry),
		})
	}
	return findings
}

func stringOr(entry map[string]any, fallback string, keys ...string) string {
	for _, key := range keys {
		if s, ok := entry[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return fallback
}

func normalizeSeverity(entry map[string]any) string {
	raw := stringOr(entry, "", "nivel", "level", "severity")
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case SeverityCritical:
		return SeverityCritical
	case SeverityWarning:
		return SeverityWarning
	case SeverityInfo:
		return SeverityInfo
	default:
		return SeverityInfo
	}
}
