package monitor

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"checkexplorer/internal/explorer"
)

// Sessions lists the sessions to keep fresh.
type Sessions interface {
	Sessions() []*explorer.Session
}

// Refresher periodically re-fetches the most recent section of every open
// session so new executions appear while a view stays open.
type Refresher struct {
	interval time.Duration
	sessions Sessions
	clock    clock.Clock
	log      *zap.Logger
	timeout  time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a refresher ticking every interval. Intervals under one second
// are raised to one second.
func New(interval time.Duration, sessions Sessions, clk clock.Clock, logger *zap.Logger) *Refresher {
	if interval < time.Second {
		interval = time.Second
	}
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Refresher{
		interval: interval,
		sessions: sessions,
		clock:    clk,
		log:      logger,
		timeout:  30 * time.Second,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the refresh loop in a goroutine.
func (r *Refresher) Start() {
	go r.run()
}

// Stop requests graceful loop termination and waits until it is done.
func (r *Refresher) Stop() {
	select {
	case <-r.doneCh:
		return
	default:
	}
	close(r.stopCh)
	<-r.doneCh
}

// RunOnce refreshes every open session and returns how many refreshes
// failed.
func (r *Refresher) RunOnce(ctx context.Context) int {
	failed := 0
	for _, s := range r.sessions.Sessions() {
		refreshCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := s.RefreshHead(refreshCtx)
		cancel()
		if err != nil {
			failed++
			r.log.Warn("session refresh failed", zap.String("session", s.ID()), zap.Error(err))
		}
	}
	return failed
}

func (r *Refresher) run() {
	defer close(r.doneCh)

	ticker := r.clock.Ticker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.RunOnce(context.Background())
		case <-r.stopCh:
			return
		}
	}
}
