package history

import (
	"sort"

	"checkexplorer/internal/models"
	"checkexplorer/internal/timepoints"
)

type candidate struct {
	unit     models.ExecutionUnit
	consumed bool
}

// Correlate binds execution units to the timepoint axis and classifies every
// (timepoint, probe) pair. The axis is expected most recent first; the result
// keeps that order. currentTime is used to tell pending from missing.
func Correlate(
	axis []models.Timepoint,
	unitsByProbe map[string][]models.ExecutionUnit,
	probes []string,
	currentTime int64,
) []models.StatefulTimepoint {
	out := make([]models.StatefulTimepoint, len(axis))
	for i, tp := range axis {
		out[i] = models.StatefulTimepoint{
			Timepoint: tp,
			Probes:    make([]models.ProbeResult, 0, len(probes)),
		}
	}
	if len(axis) == 0 {
		return out
	}

	chrono := chronologicalOrder(axis)
	for _, probe := range probes {
		matches := matchProbe(axis, chrono, unitsByProbe[probe])
		for i, tp := range axis {
			result := models.ProbeResult{Probe: probe}
			if unit := matches[i]; unit != nil {
				result.Status = unit.Outcome
				result.Unit = unit
			} else {
				result.Status = absentStatus(tp, currentTime)
			}
			out[i].Probes = append(out[i].Probes, result)
		}
	}
	return out
}

// Window returns the instant range [from, to) in which a unit may match tp.
func Window(tp models.Timepoint) (from, to int64) {
	return tp.AdjustedTime, tp.End() + tp.Config.FrequencyMs
}

func absentStatus(tp models.Timepoint, currentTime int64) models.Status {
	_, to := Window(tp)
	if to > currentTime {
		return models.StatusPending
	}
	return models.StatusMissing
}

// chronologicalOrder returns axis positions sorted by adjusted time.
func chronologicalOrder(axis []models.Timepoint) []int {
	order := make([]int, len(axis))
	for i := range axis {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return axis[order[a]].AdjustedTime < axis[order[b]].AdjustedTime
	})
	return order
}

// matchProbe returns, per axis position, the unit bound to that timepoint.
func matchProbe(axis []models.Timepoint, chrono []int, units []models.ExecutionUnit) []*models.ExecutionUnit {
	matches := make([]*models.ExecutionUnit, len(axis))
	if len(units) == 0 {
		return matches
	}

	pool := make([]candidate, len(units))
	for i, u := range units {
		pool[i] = candidate{unit: u}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].unit.StartKey() < pool[j].unit.StartKey()
	})

	for _, pos := range chrono {
		tp := axis[pos]
		if c := earliest(pool, tp.AdjustedTime, tp.End()); c != nil {
			c.consumed = true
			matches[pos] = &c.unit
			continue
		}

		_, graceEnd := Window(tp)
		c := earliest(pool, tp.End(), graceEnd)
		if c == nil {
			continue
		}
		if _, next := timepoints.Neighbors(axis, tp.Index); next != nil {
			if count(pool, next.AdjustedTime, next.End()) < 2 {
				continue
			}
		}
		c.consumed = true
		matches[pos] = &c.unit
	}
	return matches
}

// earliest returns the first unconsumed candidate starting in [from, to).
func earliest(pool []candidate, from, to int64) *candidate {
	i := sort.Search(len(pool), func(i int) bool { return pool[i].unit.Start() >= from })
	for ; i < len(pool) && pool[i].unit.Start() < to; i++ {
		if !pool[i].consumed {
			return &pool[i]
		}
	}
	return nil
}

func count(pool []candidate, from, to int64) int {
	n := 0
	i := sort.Search(len(pool), func(i int) bool { return pool[i].unit.Start() >= from })
	for ; i < len(pool) && pool[i].unit.Start() < to; i++ {
		if !pool[i].consumed {
			n++
		}
	}
	return n
}
