package webhook

import (
	"siteaudit-backend/internal/shared/metrics"
	"siteaudit-backend/internal/shared/telemetry"
)

func defaultDeadLetter(event Event, reason string) {
	metrics.IncWebhookDeadLetter()
	telemetry.Error("webhook.dead_letter", map[string]any{
		"analysisId":  event.AnalysisID,
		"projectCode": event.ProjectCode,
		"state":       event.State,
		"reason":      reason,
	})
}
