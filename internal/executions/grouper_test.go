package executions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkexplorer/internal/models"
)

func rec(t int64, probe, msg string) models.LogRecord {
	return models.LogRecord{Time: t, Labels: models.Labels{"msg": msg, "probe": probe}}
}

func msgs(unit models.ExecutionUnit) []string {
	out := make([]string, 0, len(unit.Records))
	for _, r := range unit.Records {
		out = append(out, r.Labels.Msg())
	}
	return out
}

func TestGroupDropsOrphansAtBothEdges(t *testing.T) {
	g := NewGrouper(Markers{})
	records := []models.LogRecord{
		rec(1, "Paris", "result-failure"),
		rec(2, "Paris", "beginning"),
		rec(3, "Paris", "request sent"),
		rec(4, "Paris", "result-success"),
		rec(5, "Paris", "beginning"),
	}

	units := g.Group(records, "Paris")
	require.Len(t, units, 1)
	assert.Equal(t, []string{"beginning", "request sent", "result-success"}, msgs(units[0]))
	assert.Equal(t, models.StatusSuccess, units[0].Outcome)
	assert.Equal(t, "Paris", units[0].Probe)
	assert.Equal(t, int64(2), units[0].Start())
	assert.Equal(t, int64(4), units[0].End())
}

func TestGroupSplitsConsecutiveUnits(t *testing.T) {
	g := NewGrouper(DefaultMarkers())
	records := []models.LogRecord{
		rec(1, "Paris", "beginning"),
		rec(2, "Paris", "result-success"),
		rec(3, "Paris", "beginning"),
		rec(4, "Paris", "timeout"),
		rec(5, "Paris", "result-failure"),
	}

	units := g.Group(records, "Paris")
	require.Len(t, units, 2)
	assert.Equal(t, models.StatusSuccess, units[0].Outcome)
	assert.Equal(t, models.StatusFailure, units[1].Outcome)
	assert.Equal(t, []string{"beginning", "timeout", "result-failure"}, msgs(units[1]))
}

func TestGroupYieldsNothingWithoutMarkers(t *testing.T) {
	g := NewGrouper(DefaultMarkers())
	testCases := []struct {
		name    string
		records []models.LogRecord
	}{
		{"empty", nil},
		{"no begin", []models.LogRecord{rec(1, "Paris", "x"), rec(2, "Paris", "result-success")}},
		{"no terminal", []models.LogRecord{rec(1, "Paris", "beginning"), rec(2, "Paris", "x")}},
		{"terminal before begin", []models.LogRecord{rec(1, "Paris", "result-success"), rec(2, "Paris", "beginning")}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Empty(t, g.Group(tc.records, "Paris"))
		})
	}
}

func TestGroupDiscardsUnterminatedUnitOnNewBegin(t *testing.T) {
	g := NewGrouper(DefaultMarkers())
	records := []models.LogRecord{
		rec(1, "Paris", "beginning"),
		rec(2, "Paris", "step"),
		rec(3, "Paris", "beginning"),
		rec(4, "Paris", "result-success"),
		rec(5, "Paris", "stray"),
		rec(6, "Paris", "beginning"),
		rec(7, "Paris", "result-failure"),
	}

	units := g.Group(records, "Paris")
	require.Len(t, units, 2)
	assert.Equal(t, []string{"beginning", "result-success"}, msgs(units[0]))
	assert.Equal(t, int64(3), units[0].Start())
	assert.Equal(t, []string{"beginning", "result-failure"}, msgs(units[1]))
}

func TestGroupSingleRecordUnit(t *testing.T) {
	g := NewGrouper(Markers{Begin: "done", Success: "done", Failure: "failed"})
	units := g.Group([]models.LogRecord{rec(1, "Paris", "done"), rec(2, "Paris", "done")}, "Paris")

	require.Len(t, units, 2)
	for _, u := range units {
		assert.Len(t, u.Records, 1)
		assert.Equal(t, models.StatusSuccess, u.Outcome)
	}
}

func TestGroupByProbeSeparatesInterleavedProbes(t *testing.T) {
	g := NewGrouper(DefaultMarkers())
	records := []models.LogRecord{
		rec(1, "Paris", "beginning"),
		rec(2, "Tokyo", "beginning"),
		rec(3, "Paris", "result-success"),
		rec(4, "", "agent heartbeat"),
		rec(5, "Tokyo", "result-failure"),
		rec(6, "Ohio", "result-success"),
	}

	units := g.GroupByProbe(records)
	require.Len(t, units, 2)
	require.Len(t, units["Paris"], 1)
	require.Len(t, units["Tokyo"], 1)
	assert.Equal(t, models.StatusSuccess, units["Paris"][0].Outcome)
	assert.Equal(t, models.StatusFailure, units["Tokyo"][0].Outcome)
	assert.Equal(t, []string{"Paris", "Tokyo"}, Probes(units))

	assert.Equal(t, units["Tokyo"], g.Group(records, "Tokyo"))
}

func TestPassesOperateOnIndexRanges(t *testing.T) {
	g := NewGrouper(DefaultMarkers())
	records := []models.LogRecord{
		rec(1, "Paris", "x"),
		rec(2, "Paris", "beginning"),
		rec(3, "Paris", "result-success"),
		rec(4, "Paris", "y"),
	}

	assert.Equal(t, 1, g.trimStart(records, 0, len(records)))
	assert.Equal(t, 3, g.trimEnd(records, 1, len(records)))
	assert.Equal(t, 4, g.trimStart(records, 2, 4))
	assert.Equal(t, 0, g.trimEnd(records, 0, 2))
	assert.Len(t, g.split(records, 1, 3, "Paris"), 1)
	assert.Empty(t, g.split(records, 2, 3, "Paris"))
}
