package pipeline

import (
	"testing"
	"time"
)

func TestNewCatalog_Validation(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
	}{
		{name: "empty"},
		{name: "weights below total", steps: []Step{{Name: "a", DisplayOrder: 1, Weight: 40}, {Name: "b", DisplayOrder: 2, Weight: 50}}},
		{name: "weights above total", steps: []Step{{Name: "a", DisplayOrder: 1, Weight: 60}, {Name: "b", DisplayOrder: 2, Weight: 50}}},
		{name: "duplicate name", steps: []Step{{Name: "a", DisplayOrder: 1, Weight: 50}, {Name: "a", DisplayOrder: 2, Weight: 50}}},
		{name: "duplicate order", steps: []Step{{Name: "a", DisplayOrder: 1, Weight: 50}, {Name: "b", DisplayOrder: 1, Weight: 50}}},
		{name: "zero weight", steps: []Step{{Name: "a", DisplayOrder: 1, Weight: 100}, {Name: "b", DisplayOrder: 2, Weight: 0}}},
		{name: "blank name", steps: []Step{{Name: " ", DisplayOrder: 1, Weight: 100}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCatalog(tt.steps...); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNewCatalog_SortsAndDefaults(t *testing.T) {
	c, err := NewCatalog(
		Step{Name: "render", DisplayOrder: 3, Weight: 30, Service: "renderer", Timeout: time.Second},
		Step{Name: "validation", DisplayOrder: 1, Weight: 5},
		Step{Name: "synthesis", DisplayOrder: 2, Weight: 65},
	)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	steps := c.Steps()
	want := []string{"validation", "synthesis", "render"}
	for i, name := range want {
		if steps[i].Name != name {
			t.Fatalf("step %d: got %q want %q", i, steps[i].Name, name)
		}
	}
	if steps[0].Service != "validation" || steps[0].Timeout != DefaultStepTimeout {
		t.Fatalf("defaults not applied: %+v", steps[0])
	}
	if steps[2].Service != "renderer" || steps[2].Timeout != time.Second {
		t.Fatalf("explicit values overwritten: %+v", steps[2])
	}
	if pos, ok := c.Position("render"); !ok || pos != 2 {
		t.Fatalf("Position(render) = %d, %v", pos, ok)
	}
	if _, ok := c.Step("missing"); ok {
		t.Fatalf("unexpected step")
	}
}

func TestCatalogStepsIsACopy(t *testing.T) {
	c := DefaultCatalog()
	steps := c.Steps()
	steps[0].Name = "mutated"
	if c.Steps()[0].Name != "validation" {
		t.Fatalf("catalog was mutated through Steps()")
	}
}

func TestDefaultCatalogWeights(t *testing.T) {
	total := 0
	for _, s := range DefaultCatalog().Steps() {
		total += s.Weight
	}
	if total != TotalWeight {
		t.Fatalf("default weights sum to %d", total)
	}
}
