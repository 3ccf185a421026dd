package probe

import (
	"context"
	"testing"

	"github.com/ecociel/beacon/domain"
)

func TestRegistry_LookupUnknown(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Lookup("nope"); err == nil {
		t.Fatal("expected error for unknown probe")
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("answer", func(ctx context.Context) (domain.Result, error) {
		return domain.Int(42), nil
	})

	fn, err := r.Lookup("answer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := fn(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind() != domain.KindScalar || res.Scalar().(int64) != 42 {
		t.Errorf("got %v", res)
	}
}

func TestRegisterBuiltins_Names(t *testing.T) {
	r := NewRegistry()
	RegisterBuiltins(r)

	for _, name := range []string{"hostname", "numcpu", "time.unix", "uptime", "loadavg", "meminfo"} {
		if _, err := r.Lookup(name); err != nil {
			t.Errorf("builtin %q not registered: %v", name, err)
		}
	}
}

func TestNumCPU(t *testing.T) {
	res, err := numCPU(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind() != domain.KindScalar || res.Scalar().(int64) < 1 {
		t.Errorf("numcpu result %v", res)
	}
}
