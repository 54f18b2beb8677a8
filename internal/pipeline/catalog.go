package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TotalWeight is the sum every catalog's step weights must reach.
const TotalWeight = 100

// DefaultStepTimeout applies to steps that do not configure their own.
const DefaultStepTimeout = 5 * time.Minute

// Step is one named, weighted unit of work applied to every job.
type Step struct {
	Name         string
	DisplayOrder int
	Weight       int
	// Service selects the StepRunner; it defaults to Name.
	Service string
	Timeout time.Duration
}

// Catalog is the ordered, weighted list of steps. It is immutable once built.
type Catalog struct {
	steps []Step
	index map[string]int
}

// NewCatalog validates the steps and orders them by DisplayOrder.
func NewCatalog(steps ...Step) (Catalog, error) {
	if len(steps) == 0 {
		return Catalog{}, errors.New("catalog: at least one step is required")
	}
	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DisplayOrder < sorted[j].DisplayOrder })

	index := make(map[string]int, len(sorted))
	orders := make(map[int]string, len(sorted))
	total := 0
	for i := range sorted {
		s := &sorted[i]
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return Catalog{}, fmt.Errorf("catalog: step %d has no name", i)
		}
		if _, dup := index[s.Name]; dup {
			return Catalog{}, fmt.Errorf("catalog: duplicate step %q", s.Name)
		}
		if other, dup := orders[s.DisplayOrder]; dup {
			return Catalog{}, fmt.Errorf("catalog: steps %q and %q share display order %d", other, s.Name, s.DisplayOrder)
		}
		if s.Weight <= 0 {
			return Catalog{}, fmt.Errorf("catalog: step %q weight must be positive", s.Name)
		}
		if s.Service == "" {
			s.Service = s.Name
		}
		if s.Timeout <= 0 {
			s.Timeout = DefaultStepTimeout
		}
		index[s.Name] = i
		orders[s.DisplayOrder] = s.Name
		total += s.Weight
	}
	if total != TotalWeight {
		return Catalog{}, fmt.Errorf("catalog: weights sum to %d, want %d", total, TotalWeight)
	}
	return Catalog{steps: sorted, index: index}, nil
}

// MustCatalog is NewCatalog for static definitions.
func MustCatalog(steps ...Step) Catalog {
	c, err := NewCatalog(steps...)
	if err != nil {
		panic(err)
	}
	return c
}

// Steps returns the steps in execution order.
func (c Catalog) Steps() []Step {
	out := make([]Step, len(c.steps))
	copy(out, c.steps)
	return out
}

// Len returns the number of steps.
func (c Catalog) Len() int { return len(c.steps) }

// Position returns the execution index of a step.
func (c Catalog) Position(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

// Step looks up a step by name.
func (c Catalog) Step(name string) (Step, bool) {
	i, ok := c.index[name]
	if !ok {
		return Step{}, false
	}
	return c.steps[i], true
}

// DefaultCatalog is the pipeline used when no settings file overrides it.
func DefaultCatalog() Catalog {
	return MustCatalog(
		Step{Name: "validation", DisplayOrder: 1, Weight: 5, Timeout: 30 * time.Second},
		Step{Name: "speech_synthesis", DisplayOrder: 2, Weight: 20, Timeout: 2 * time.Minute},
		Step{Name: "image_animation", DisplayOrder: 3, Weight: 35, Timeout: 10 * time.Minute},
		Step{Name: "lip_sync", DisplayOrder: 4, Weight: 25, Timeout: 10 * time.Minute},
		Step{Name: "upscaling", DisplayOrder: 5, Weight: 15, Timeout: 5 * time.Minute},
	)
}
