package rules

import (
	"context"
	"testing"
	"time"

	"github.com/finpath/goalengine/internal/model"
)

// stubRule is a minimal Rule for registry ordering tests.
type stubRule struct {
	name     string
	priority int
	enabled  bool
}

func (r *stubRule) Name() string        { return r.name }
func (r *stubRule) Description() string { return r.name }
func (r *stubRule) Priority() int       { return r.priority }
func (r *stubRule) Enabled() bool       { return r.enabled }
func (r *stubRule) Apply(ctx context.Context, userID string, tx model.TransactionView, evalCtx *Context, svc Services, evalDate time.Time) {
}

func TestRegistryOrdersByAscendingPriority(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubRule{name: "c", priority: 60, enabled: true})
	reg.Register(&stubRule{name: "a", priority: 20, enabled: true})
	reg.Register(&stubRule{name: "b", priority: 40, enabled: true})

	got := reg.All()
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name() != name {
			t.Errorf("position %d: expected %s, got %s", i, name, got[i].Name())
		}
	}
}

func TestRegistryStableTies(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubRule{name: "first", priority: 10, enabled: true})
	reg.Register(&stubRule{name: "second", priority: 10, enabled: true})
	reg.Register(&stubRule{name: "third", priority: 10, enabled: true})

	got := reg.All()
	want := []string{"first", "second", "third"}
	for i, name := range want {
		if got[i].Name() != name {
			t.Errorf("position %d: expected %s, got %s", i, name, got[i].Name())
		}
	}
}

func TestRegistryKeepsDisabledRules(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubRule{name: "off", priority: 10, enabled: false})
	reg.Register(&stubRule{name: "on", priority: 20, enabled: true})

	got := reg.All()
	if len(got) != 2 {
		t.Fatalf("disabled rules must stay registered, got %d rules", len(got))
	}
	if got[0].Enabled() {
		t.Error("expected first rule to report disabled")
	}
}

func TestDefaultRegistryOrdering(t *testing.T) {
	reg := NewDefaultRegistry(Options{})
	got := reg.All()

	want := []string{surplusRuleName, driftRuleName, overspendRuleName}
	if len(got) != len(want) {
		t.Fatalf("expected %d rules, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name() != name {
			t.Errorf("position %d: expected %s, got %s", i, name, got[i].Name())
		}
	}
}

func TestRegistryAllReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&stubRule{name: "a", priority: 1, enabled: true})

	got := reg.All()
	got[0] = &stubRule{name: "mutated", priority: 99, enabled: true}

	if reg.All()[0].Name() != "a" {
		t.Error("mutating the returned slice must not affect the registry")
	}
}
