package snapshots

import (
	"time"

	"github.com/google/uuid"

	"siteaudit-backend/internal/shared/telemetry"
)

// Map normalizes an arbitrary nested payload into a snapshot bundle for the
// given analysis. Partially malformed nested data never fails the whole
// mapping: bad items are skipped and logged, and only the snapshot itself is
// mandatory.
func Map(analysisID string, payload map[string]any) Bundle {
	snapshot := Snapshot{
		ID:         uuid.NewString(),
		AnalysisID: analysisID,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}

	bundle := Bundle{Snapshot: snapshot}
	bundle.Project = mapProject(snapshot.ID, payload)
	if bundle.Project == nil {
		telemetry.Warn("snapshot.project_missing", map[string]any{
			"snapshot_id": snapshot.ID,
			"analysis_id": analysisID,
		})
	}
	bundle.Stages = mapStages(snapshot.ID, listField(payload, "etapas"))
	bundle.Progress = mapProgress(snapshot.ID, listField(payload, "registros_avance"))
	bundle.Safety = mapSafety(snapshot.ID, listField(payload, "medidas_seguridad"))
	return bundle
}

// mapProject returns nil unless the payload carries a project with a
// non-empty code; absence is tolerated, never fatal.
func mapProject(snapshotID string, payload map[string]any) *Project {
	item := Normalize(payload["proyecto"])
	if item == nil {
		return nil
	}
	code := stringField(item, "codigo")
	if code == "" {
		return nil
	}
	return &Project{
		ID:            uuid.NewString(),
		SnapshotID:    snapshotID,
		Code:          code,
		Name:          stringField(item, "nombre"),
		TechnicalLead: stringField(item, "responsable_tecnico"),
	}
}

func mapStages(snapshotID string, items []any) []Stage {
	var out []Stage
	for _, raw := range items {
		item := Normalize(raw)
		if item == nil {
			telemetry.Warn("snapshot.stage_skipped", map[string]any{"snapshot_id": snapshotID})
			continue
		}
		out = append(out, Stage{
			ID:                uuid.NewString(),
			SnapshotID:        snapshotID,
			Name:              stringField(item, "nombre"),
			Status:            stringField(item, "estado"),
			EstimatedProgress: clampPercent(intField(item, "avance_estimado")),
		})
	}
	return out
}

func mapProgress(snapshotID string, items []any) []ProgressEntry {
	var out []ProgressEntry
	for _, raw := range items {
		item := Normalize(raw)
		if item == nil {
			telemetry.Warn("snapshot.progress_skipped", map[string]any{"snapshot_id": snapshotID})
			continue
		}
		out = append(out, ProgressEntry{
			ID:            uuid.NewString(),
			SnapshotID:    snapshotID,
			RecordedOn:    ParseDate(stringField(item, "fecha")),
			Supervisor:    stringField(item, "supervisor"),
			Percentage:    clampPercent(intField(item, "porcentaje_avance")),
			HasDeviations: boolField(item, "presenta_desvios"),
			Tasks:         stringListField(item, "tareas_ejecutadas"),
			ActiveTrades:  stringListField(item, "oficios_activos"),
		})
	}
	return out
}

// mapSafety aggregates the measures list. An absent or fully malformed list
// produces no record at all, not a zero-valued one.
func mapSafety(snapshotID string, measures []any) *SafetyRecord {
	if len(measures) == 0 {
		return nil
	}

	var normalized []FieldAccessible
	for _, raw := range measures {
		if item := Normalize(raw); item != nil {
			normalized = append(normalized, item)
		}
	}
	if len(normalized) == 0 {
		return nil
	}

	compliant := 0
	for _, item := range normalized {
		if boolField(item, "cumple") {
			compliant++
		}
	}

	return &SafetyRecord{
		ID:           uuid.NewString(),
		SnapshotID:   snapshotID,
		RecordedOn:   todayUTC(),
		Measures:     measures,
		TotalChecked: len(normalized),
		AllCompliant: len(normalized) == compliant,
	}
}

func listField(payload map[string]any, key string) []any {
	if items, ok := payload[key].([]any); ok {
		return items
	}
	return nil
}

func stringField(item FieldAccessible, name string) string {
	val, ok := item.Field(name)
	if !ok {
		return ""
	}
	s, _ := val.(string)
	return s
}

func intField(item FieldAccessible, name string) int {
	val, ok := item.Field(name)
	if !ok {
		return 0
	}
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	default:
		return 0
	}
}

func boolField(item FieldAccessible, name string) bool {
	val, ok := item.Field(name)
	if !ok {
		return false
	}
	b, _ := val.(bool)
	return b
}

func stringListField(item FieldAccessible, name string) []string {
	val, ok := item.Field(name)
	if !ok {
		return nil
	}
	switch v := val.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
