package metrics

import (
	"math"
	"sort"

	"checkexplorer/internal/models"
)

// ProbeSummary summarises the classified timepoints of one probe.
type ProbeSummary struct {
	Probe         string  `json:"probe"`
	UptimePercent float64 `json:"uptime_percent"`
	Expected      int     `json:"expected"`
	Success       int     `json:"success"`
	Failure       int     `json:"failure"`
	Missing       int     `json:"missing"`
	Pending       int     `json:"pending"`
	Unknown       int     `json:"unknown"`
	LastStatus    string  `json:"last_status,omitempty"`
	LastExecuted  int64   `json:"last_executed,omitempty"`
}

// Summarize aggregates per-probe statistics. Uptime only considers settled
// executions (success and failure).
func Summarize(timepoints []models.StatefulTimepoint) []ProbeSummary {
	type acc struct {
		summary  ProbeSummary
		lastTime int64
		seen     bool
	}
	state := make(map[string]*acc)
	for _, tp := range timepoints {
		for _, r := range tp.Probes {
			target := state[r.Probe]
			if target == nil {
				target = &acc{summary: ProbeSummary{Probe: r.Probe}}
				state[r.Probe] = target
			}
			target.summary.Expected++
			switch r.Status {
			case models.StatusSuccess:
				target.summary.Success++
			case models.StatusFailure:
				target.summary.Failure++
			case models.StatusMissing:
				target.summary.Missing++
			case models.StatusPending:
				target.summary.Pending++
			default:
				target.summary.Unknown++
			}
			if r.Unit != nil && (!target.seen || tp.AdjustedTime > target.lastTime) {
				target.seen = true
				target.lastTime = tp.AdjustedTime
				target.summary.LastStatus = string(r.Status)
				target.summary.LastExecuted = r.Unit.Start()
			}
		}
	}
	if len(state) == 0 {
		return nil
	}

	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make([]ProbeSummary, 0, len(keys))
	for _, probe := range keys {
		s := state[probe].summary
		if settled := s.Success + s.Failure; settled > 0 {
			s.UptimePercent = round2(float64(s.Success) / float64(settled) * 100)
		}
		results = append(results, s)
	}
	return results
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
