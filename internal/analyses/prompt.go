package analyses

import (
	"encoding/json"
	"fmt"
	"strings"
)

const defaultSystemPrompt = `Eres un Ingeniero Civil Senior y Auditor de Proyectos con 20 años de experiencia.
Tu objetivo es detectar riesgos financieros, operativos y de seguridad en datos de obra.

REGLAS DE FORMATO INQUEBRANTABLES:
1. TU RESPUESTA DEBE SER ÚNICAMENTE UN OBJETO JSON VÁLIDO.
2. NO incluyas introducciones, ni comentarios, ni bloques de código markdown.
3. No escribas nada antes ni después del objeto JSON.
4. Asegúrate de que todas las comillas sean dobles y el JSON sea parseable.
5. Si un dato no está presente en el snapshot, trátalo como "no informado"; nunca lo inventes.

ESTRUCTURA OBLIGATORIA:
{
  "resumen_general": "...",
  "score_coherencia": 0,
  "detecta_riesgos": false,
  "riesgos": [{"titulo": "...", "descripcion": "...", "nivel": "CRITICO|ATENCION|INFORMATIVO"}]
}`

// BuildPrompt renders the system and user messages for one audit run.
// A non-empty systemOverride replaces the default persona entirely;
// extraInstructions are appended to the user message under a delimited
// trailing section.
func BuildPrompt(payload map[string]any, systemOverride, extraInstructions string) (string, string) {
	system := defaultSystemPrompt
	if strings.TrimSpace(systemOverride) != "" {
		system = strings.TrimSpace(systemOverride)
	}

	var b strings.Builder
	b.WriteString("Realiza una auditoría técnica del siguiente snapshot de obra:\n\n")
	b.WriteString("--- INICIO DE DATOS ---\n")
	fmt.Fprintf(&b, "PROYECTO: %s\n", projectCode(payload))
	fmt.Fprintf(&b, "DATOS DE OBRA:\n%s\n", payloadDump(payload))
	b.WriteString("--- FIN DE DATOS ---\n\n")
	b.WriteString("INSTRUCCIONES DE ANÁLISIS:\n")
	b.WriteString("1. Redacta \"resumen_general\": un párrafo técnico detallado sobre el estado actual.\n")
	b.WriteString("2. Calcula \"score_coherencia\": número entero del 0 al 100.\n")
	b.WriteString("3. Indica \"detecta_riesgos\": true si identificas al menos un riesgo.\n")
	b.WriteString("4. Identifica \"riesgos\": lista de objetos con titulo, descripcion y nivel (CRITICO, ATENCION, INFORMATIVO).\n")
	if extra := strings.TrimSpace(extraInstructions); extra != "" {
		b.WriteString("\n--- INSTRUCCIONES ADICIONALES ---\n")
		b.WriteString(extra)
		b.WriteString("\n--- FIN DE INSTRUCCIONES ADICIONALES ---\n")
	}
	b.WriteString("\nRESPONDE SOLO EL JSON:")

	return system, b.String()
}

// projectCode resolves the code shown in the prompt header. It prefers the
// nested proyecto.codigo, then the legacy top-level proyecto_codigo, and
// falls back to a neutral marker so the prompt never carries an empty slot.
func projectCode(payload map[string]any) string {
	if proyecto, ok := payload["proyecto"].(map[string]any); ok {
		if code, ok := proyecto["codigo"].(string); ok && strings.TrimSpace(code) != "" {
			return strings.TrimSpace(code)
		}
	}
	if code, ok := payload["proyecto_codigo"].(string); ok && strings.TrimSpace(code) != "" {
		return strings.TrimSpace(code)
	}
	return "sin especificar"
}

func payloadDump(payload map[string]any) string {
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", payload)
	}
	return string(raw)
}
