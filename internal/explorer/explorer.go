// Package explorer owns timepoint explorer sessions: one timepoint axis, log
// cache and view state per (check, range) pair.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"checkexplorer/internal/executions"
	"checkexplorer/internal/logs"
	"checkexplorer/internal/metrics"
	"checkexplorer/internal/minimap"
	"checkexplorer/internal/models"
)

// DefaultPageLimit is the row cap of a single log backend response.
const DefaultPageLimit = 1000

// ConfigHistory supplies the frequency history of a check.
type ConfigHistory interface {
	ConfigEpochs(ctx context.Context, checkID string) ([]models.ConfigEpoch, error)
}

// LogFetcher queries one page of execution logs in [from, to).
type LogFetcher interface {
	FetchLogPage(ctx context.Context, checkID string, probes []string, from, to int64, limit int) (logs.RawSeries, error)
}

// ProbeRoster supplies the probes selected in the active view.
type ProbeRoster interface {
	SelectedProbes(ctx context.Context, checkID string) ([]string, error)
}

// Deps are the collaborators of a session.
type Deps struct {
	Config ConfigHistory
	Logs   LogFetcher
	Probes ProbeRoster
	Clock  clock.Clock
	Logger *zap.Logger
}

// Options tune a session.
type Options struct {
	PageSize         int
	PageLimit        int
	FetchConcurrency int
	FetchRetries     int
	RetryInterval    time.Duration
	Markers          executions.Markers
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = minimap.DefaultPageSize
	}
	if o.PageLimit <= 0 {
		o.PageLimit = DefaultPageLimit
	}
	if o.FetchConcurrency <= 0 {
		o.FetchConcurrency = 4
	}
	if o.FetchRetries < 0 {
		o.FetchRetries = 0
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 500 * time.Millisecond
	}
	o.Markers = o.Markers.WithDefaults()
	return o
}

func (d Deps) validate() error {
	if d.Config == nil || d.Logs == nil || d.Probes == nil {
		return errors.New("explorer: config, logs and probes providers are required")
	}
	return nil
}

// ErrSessionNotFound is returned for unknown session ids.
var ErrSessionNotFound = errors.New("session not found")

// ErrUnknownSection is returned for section indexes outside the axis.
var ErrUnknownSection = errors.New("unknown section")

// FetchError reports a log page that could not be loaded.
type FetchError struct {
	Key models.PageKey
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch page %d [%d, %d): %v", e.Key.Section, e.Key.From, e.Key.To, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether requesting the page again may succeed.
func (e *FetchError) Retryable() bool {
	return !errors.Is(e.Err, context.Canceled) && !isPermanent(e.Err)
}

// View is the read-only model handed to the rendering consumer.
type View struct {
	SessionID  string                     `json:"session_id"`
	CheckID    string                     `json:"check_id"`
	RangeStart int64                      `json:"range_start"`
	RangeEnd   int64                      `json:"range_end"`
	Now        int64                      `json:"now"`
	Probes     []string                   `json:"probes"`
	Timepoints []models.StatefulTimepoint `json:"timepoints"`
	Sections   []models.MinimapSection    `json:"sections"`
	Pages      []models.PageState         `json:"pages"`
	Summary    []metrics.ProbeSummary     `json:"summary"`
}
