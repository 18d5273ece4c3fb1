package llm

import "sync"

// Registry holds the process-wide fallback model list. The cascade reads an
// immutable copy per invocation so a concurrent Reload never produces a torn
// candidate list.
type Registry struct {
	mu     sync.RWMutex
	models []string
}

// NewRegistry constructs a Registry with the initial model list.
func NewRegistry(models []string) *Registry {
	r := &Registry{}
	r.Reload(models)
	return r
}

// Reload replaces the model list. Empty and duplicate entries are dropped.
func (r *Registry) Reload(models []string) {
	cleaned := make([]string, 0, len(models))
	seen := make(map[string]struct{}, len(models))
	for _, m := range models {
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		cleaned = append(cleaned, m)
	}

	r.mu.Lock()
	r.models = cleaned
	r.mu.Unlock()
}

// Snapshot returns a copy of the current model list.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.models...)
}
