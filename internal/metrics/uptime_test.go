package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkexplorer/internal/models"
)

func tp(adjusted int64, results ...models.ProbeResult) models.StatefulTimepoint {
	return models.StatefulTimepoint{
		Timepoint: models.Timepoint{AdjustedTime: adjusted, DurationMs: 60_000},
		Probes:    results,
	}
}

func withUnit(probe string, status models.Status, start int64) models.ProbeResult {
	return models.ProbeResult{
		Probe:  probe,
		Status: status,
		Unit:   &models.ExecutionUnit{Probe: probe, Records: []models.LogRecord{{Time: start}}, Outcome: status},
	}
}

func TestSummarize(t *testing.T) {
	summary := Summarize([]models.StatefulTimepoint{
		tp(180_000, withUnit("Paris", models.StatusFailure, 181_000), models.ProbeResult{Probe: "Tokyo", Status: models.StatusPending}),
		tp(120_000, withUnit("Paris", models.StatusSuccess, 121_000), models.ProbeResult{Probe: "Tokyo", Status: models.StatusUnknown}),
		tp(60_000, withUnit("Paris", models.StatusSuccess, 61_000), models.ProbeResult{Probe: "Tokyo", Status: models.StatusMissing}),
	})

	require.Len(t, summary, 2)
	assert.Equal(t, ProbeSummary{
		Probe:         "Paris",
		UptimePercent: 66.67,
		Expected:      3,
		Success:       2,
		Failure:       1,
		LastStatus:    "failure",
		LastExecuted:  181_000,
	}, summary[0])
	assert.Equal(t, ProbeSummary{
		Probe:    "Tokyo",
		Expected: 3,
		Missing:  1,
		Pending:  1,
		Unknown:  1,
	}, summary[1])
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Nil(t, Summarize(nil))
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))
	assert.Error(t, Register(reg), "collectors registered twice")
}
