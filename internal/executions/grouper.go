package executions

import (
	"sort"

	"checkexplorer/internal/models"
)

// Markers are the msg label values delimiting an execution.
type Markers struct {
	Begin   string `yaml:"begin" json:"begin"`
	Success string `yaml:"success" json:"success"`
	Failure string `yaml:"failure" json:"failure"`
}

// DefaultMarkers returns the markers emitted by the probes.
func DefaultMarkers() Markers {
	return Markers{
		Begin:   "beginning",
		Success: "result-success",
		Failure: "result-failure",
	}
}

// WithDefaults fills empty markers with the default values.
func (m Markers) WithDefaults() Markers {
	def := DefaultMarkers()
	if m.Begin == "" {
		m.Begin = def.Begin
	}
	if m.Success == "" {
		m.Success = def.Success
	}
	if m.Failure == "" {
		m.Failure = def.Failure
	}
	return m
}

func (m Markers) isBegin(r models.LogRecord) bool { return r.Labels.Msg() == m.Begin }

func (m Markers) outcome(r models.LogRecord) (models.Status, bool) {
	switch r.Labels.Msg() {
	case m.Success:
		return models.StatusSuccess, true
	case m.Failure:
		return models.StatusFailure, true
	}
	return "", false
}

// Grouper assembles execution units from ordered log records.
type Grouper struct {
	markers Markers
}

// NewGrouper returns a grouper using markers, defaulting empty values.
func NewGrouper(markers Markers) *Grouper {
	return &Grouper{markers: markers.WithDefaults()}
}

// Group returns the complete execution units of probe. Records must be
// ordered by (time, nano offset).
func (g *Grouper) Group(records []models.LogRecord, probe string) []models.ExecutionUnit {
	own := make([]models.LogRecord, 0, len(records))
	for _, r := range records {
		if r.Labels.Probe() == probe {
			own = append(own, r)
		}
	}
	return g.group(own, probe)
}

// GroupByProbe partitions records by probe label and groups each partition.
// Records without a probe label are ignored.
func (g *Grouper) GroupByProbe(records []models.LogRecord) map[string][]models.ExecutionUnit {
	partitions := make(map[string][]models.LogRecord)
	for _, r := range records {
		probe := r.Labels.Probe()
		if probe == "" {
			continue
		}
		partitions[probe] = append(partitions[probe], r)
	}

	out := make(map[string][]models.ExecutionUnit, len(partitions))
	for probe, recs := range partitions {
		if units := g.group(recs, probe); len(units) > 0 {
			out[probe] = units
		}
	}
	return out
}

// Probes returns the sorted probe names present in units.
func Probes(units map[string][]models.ExecutionUnit) []string {
	out := make([]string, 0, len(units))
	for probe := range units {
		out = append(out, probe)
	}
	sort.Strings(out)
	return out
}

func (g *Grouper) group(records []models.LogRecord, probe string) []models.ExecutionUnit {
	lo := g.trimStart(records, 0, len(records))
	hi := g.trimEnd(records, lo, len(records))
	return g.split(records, lo, hi, probe)
}

// trimStart returns the index of the first begin marker in [lo, hi), or hi.
func (g *Grouper) trimStart(records []models.LogRecord, lo, hi int) int {
	for i := lo; i < hi; i++ {
		if g.markers.isBegin(records[i]) {
			return i
		}
	}
	return hi
}

// trimEnd returns one past the last terminal marker in [lo, hi), or lo.
func (g *Grouper) trimEnd(records []models.LogRecord, lo, hi int) int {
	for i := hi - 1; i >= lo; i-- {
		if _, ok := g.markers.outcome(records[i]); ok {
			return i + 1
		}
	}
	return lo
}

// split cuts [lo, hi) into units, closing one at every terminal marker.
func (g *Grouper) split(records []models.LogRecord, lo, hi int, probe string) []models.ExecutionUnit {
	var units []models.ExecutionUnit
	start := -1
	for i := lo; i < hi; i++ {
		r := records[i]
		if g.markers.isBegin(r) {
			// an open unit without terminal marker is incomplete
			start = i
		}
		if start < 0 {
			continue
		}
		if outcome, ok := g.markers.outcome(r); ok {
			unit := make([]models.LogRecord, i-start+1)
			copy(unit, records[start:i+1])
			units = append(units, models.ExecutionUnit{
				Probe:   probe,
				Records: unit,
				Outcome: outcome,
			})
			start = -1
		}
	}
	return units
}
