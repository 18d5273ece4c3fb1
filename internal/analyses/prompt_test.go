package analyses

import (
	"strings"
	"testing"
)

func TestBuildPromptDefaultSystem(t *testing.T) {
	system, user := BuildPrompt(map[string]any{
		"proyecto": map[string]any{"codigo": "OBRA-001"},
	}, "", "")

	if !strings.Contains(system, "Ingeniero Civil Senior") {
		t.Errorf("system prompt missing persona: %q", system)
	}
	if !strings.Contains(system, "resumen_general") || !strings.Contains(system, "score_coherencia") {
		t.Errorf("system prompt missing output contract: %q", system)
	}
	if !strings.Contains(user, "PROYECTO: OBRA-001") {
		t.Errorf("user prompt missing project code: %q", user)
	}
	if !strings.Contains(user, `"codigo": "OBRA-001"`) {
		t.Errorf("user prompt missing payload dump: %q", user)
	}
}

func TestBuildPromptSystemOverrideReplaces(t *testing.T) {
	system, _ := BuildPrompt(map[string]any{}, "Eres un auditor financiero.", "")
	if system != "Eres un auditor financiero." {
		t.Errorf("system = %q, want override verbatim", system)
	}
	if strings.Contains(system, "Ingeniero Civil") {
		t.Error("override should replace the default persona, not merge")
	}
}

func TestBuildPromptProjectCodeFallbacks(t *testing.T) {
	_, user := BuildPrompt(map[string]any{"proyecto_codigo": "LEGACY-9"}, "", "")
	if !strings.Contains(user, "PROYECTO: LEGACY-9") {
		t.Errorf("top-level proyecto_codigo not used: %q", user)
	}

	_, user = BuildPrompt(map[string]any{}, "", "")
	if !strings.Contains(user, "PROYECTO: sin especificar") {
		t.Errorf("missing fallback marker: %q", user)
	}

	// Nested code wins over the top-level one.
	_, user = BuildPrompt(map[string]any{
		"proyecto":        map[string]any{"codigo": "NEW-1"},
		"proyecto_codigo": "OLD-1",
	}, "", "")
	if !strings.Contains(user, "PROYECTO: NEW-1") {
		t.Errorf("nested code should win: %q", user)
	}
}

func TestBuildPromptExtraInstructionsDelimited(t *testing.T) {
	_, user := BuildPrompt(map[string]any{}, "", "Presta atención a los plazos.")
	if !strings.Contains(user, "--- INSTRUCCIONES ADICIONALES ---") {
		t.Errorf("extra instructions section missing: %q", user)
	}
	if !strings.Contains(user, "Presta atención a los plazos.") {
		t.Errorf("extra instructions text missing: %q", user)
	}
	if !strings.Contains(user, "INSTRUCCIONES DE ANÁLISIS:") {
		t.Error("extra instructions must not erase the analysis contract")
	}
	if !strings.HasSuffix(strings.TrimSpace(user), "RESPONDE SOLO EL JSON:") {
		t.Error("user prompt should end with the JSON directive")
	}
}

func TestBuildPromptNoExtraSectionWhenEmpty(t *testing.T) {
	_, user := BuildPrompt(map[string]any{}, "", "   ")
	if strings.Contains(user, "INSTRUCCIONES ADICIONALES") {
		t.Errorf("blank extra instructions should not add a section: %q", user)
	}
}
