// Package probe supplies the values that tasks publish. A probe is a named
// function producing a Result; the composition root registers every probe a
// configuration may reference before any task is built, so an unknown probe
// name fails task creation instead of surfacing at runtime.
package probe

import (
	"context"
	"fmt"
	"sort"

	"github.com/ecociel/beacon/domain"
)

// Func evaluates one probe.
type Func func(ctx context.Context) (domain.Result, error)

// Registry maps probe names to their functions. It is populated once at
// startup and read-only afterwards, so no locking is needed.
type Registry struct {
	probes map[string]Func
}

func NewRegistry() *Registry {
	return &Registry{probes: make(map[string]Func)}
}

// Register binds name to fn, replacing any previous binding.
func (r *Registry) Register(name string, fn Func) {
	r.probes[name] = fn
}

// Lookup resolves a probe by name.
func (r *Registry) Lookup(name string) (Func, error) {
	fn, ok := r.probes[name]
	if !ok {
		return nil, fmt.Errorf("unknown probe %q", name)
	}
	return fn, nil
}

// Names lists the registered probe names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.probes))
	for name := range r.probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
