package pipeline

import (
	"math"

	"videojobs/internal/domain"
)

// Compute derives a job's overall percentage from its Step Log. It is pure and
// can be re-run at any time against a replayed log.
func Compute(entries []domain.StepLogEntry, catalog Catalog) int {
	latestTerminal := make(map[string]domain.StepLogEntry, catalog.Len())
	started := make(map[string]domain.StepLogEntry, catalog.Len())
	for _, e := range entries {
		switch {
		case e.SubStatus.IsTerminal():
			if prev, ok := latestTerminal[e.StepName]; !ok || e.Seq >= prev.Seq {
				latestTerminal[e.StepName] = e
			}
		case e.SubStatus == domain.SubStatusStarted:
			if prev, ok := started[e.StepName]; !ok || e.Seq >= prev.Seq {
				started[e.StepName] = e
			}
		}
	}

	total := 0.0
	for _, step := range catalog.steps {
		if t, ok := latestTerminal[step.Name]; ok {
			if t.SubStatus == domain.SubStatusFailed {
				// failure halts downstream contribution
				break
			}
			total += float64(step.Weight)
			continue
		}
		if s, ok := started[step.Name]; ok {
			total += float64(step.Weight) * float64(clampPercent(s.Progress)) / 100
		}
	}
	return clampPercent(int(math.Floor(total + 0.5)))
}

// CurrentStep returns the step named by the most recent entry, or "".
func CurrentStep(entries []domain.StepLogEntry, catalog Catalog) string {
	current := ""
	best := -1
	for _, e := range entries {
		if _, ok := catalog.Position(e.StepName); !ok {
			continue
		}
		if e.Seq > best {
			best = e.Seq
			current = e.StepName
		}
	}
	return current
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
