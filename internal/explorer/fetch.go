package explorer

import (
	"context"
	"errors"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"checkexplorer/internal/logs"
	"checkexplorer/internal/metrics"
	"checkexplorer/internal/models"
)

// pageClaim is a page fetch reserved under the session lock.
type pageClaim struct {
	generation uint64
	key        models.PageKey
	probes     []string
	prev       models.PageStatus
}

func idleOnly(st models.PageStatus) bool { return st == models.PageIdle }

func idleOrFailed(st models.PageStatus) bool {
	return st == models.PageIdle || st == models.PageFailed
}

func anySettled(st models.PageStatus) bool { return st != models.PageLoading }

// claim reserves the pages at indexes whose status passes allow. A loaded
// page keeps its status while it is re-fetched.
func (s *Session) claim(indexes []int, allow func(models.PageStatus) bool) []pageClaim {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight == nil {
		s.inflight = make(map[int]uint64)
	}
	next := s.st
	next.pages = append([]models.PageState(nil), s.st.pages...)

	var claims []pageClaim
	for _, idx := range indexes {
		if idx < 0 || idx >= len(next.pages) {
			continue
		}
		page := next.pages[idx]
		if gen, busy := s.inflight[idx]; busy && gen == next.generation {
			continue
		}
		if !allow(page.Status) {
			continue
		}
		s.inflight[idx] = next.generation
		claims = append(claims, pageClaim{
			generation: next.generation,
			key:        page.Key,
			probes:     next.probes,
			prev:       page.Status,
		})
		page.Attempts++
		if page.Status != models.PageLoaded {
			page.Status = models.PageLoading
			page.Error = ""
		}
		next.pages[idx] = page
	}
	s.st = next
	return claims
}

// fetch runs the claimed page fetches concurrently and applies each result as
// it arrives. It returns the failures that were applied.
func (s *Session) fetch(ctx context.Context, claims []pageClaim) []*FetchError {
	if len(claims) == 0 {
		return nil
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []*FetchError
	)
	g.SetLimit(s.opts.FetchConcurrency)
	for _, c := range claims {
		c := c
		g.Go(func() error {
			records, rows, err := s.fetchPage(ctx, c)
			if ferr := s.apply(c, records, rows, err); ferr != nil {
				mu.Lock()
				errs = append(errs, ferr)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// fetchPage requests the page window backward until a response comes back
// with fewer rows than the backend limit.
func (s *Session) fetchPage(ctx context.Context, c pageClaim) ([]models.LogRecord, int, error) {
	var (
		all  []models.LogRecord
		rows int
	)
	to := c.key.To
	for {
		var series logs.RawSeries
		op := func() error {
			metrics.PagesFetched.Inc()
			var err error
			series, err = s.deps.Logs.FetchLogPage(ctx, s.checkID, c.probes, c.key.From, to, s.opts.PageLimit)
			if isPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if err := backoff.Retry(op, s.retryPolicy(ctx)); err != nil {
			return nil, rows, err
		}

		n := series.Len()
		rows += n
		records := s.parser.Parse(series)
		all = append(all, records...)
		if n < s.opts.PageLimit || len(records) == 0 {
			break
		}
		oldest := records[0].Time
		if oldest <= c.key.From {
			break
		}
		if oldest+1 >= to {
			s.log.Warn("log page saturated within one millisecond",
				zap.Int("section", c.key.Section), zap.Int64("at", oldest))
			break
		}
		to = oldest + 1
	}
	return all, rows, nil
}

// permanentError is implemented by backend errors that retrying cannot fix.
type permanentError interface {
	Permanent() bool
}

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p) && p.Permanent()
}

func (s *Session) retryPolicy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInterval
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.opts.FetchRetries)), ctx)
}

// apply merges a fetch result into the session. Results from an older axis
// generation or for a section the view no longer wants are discarded.
func (s *Session) apply(c pageClaim, records []models.LogRecord, rows int, err error) *FetchError {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := c.key.Section
	if gen, ok := s.inflight[idx]; ok && gen == c.generation {
		delete(s.inflight, idx)
	}
	if c.generation != s.st.generation {
		metrics.StaleResults.Inc()
		s.log.Debug("discarding result from previous axis", zap.Int("section", idx))
		return nil
	}

	next := s.st
	next.pages = append([]models.PageState(nil), s.st.pages...)
	page := next.pages[idx]

	stale := idx > next.wanted || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	if stale {
		metrics.StaleResults.Inc()
		s.log.Debug("discarding superseded page result", zap.Int("section", idx), zap.Int("wanted", next.wanted))
		page.Status = c.prev
		next.pages[idx] = page
		s.st = next
		return nil
	}

	if err != nil {
		ferr := &FetchError{Key: c.key, Err: err}
		metrics.PageFailures.Inc()
		s.log.Warn("log page fetch failed", zap.Int("section", idx), zap.Error(err))
		if c.prev == models.PageLoaded {
			// keep serving the cached copy
			return ferr
		}
		page.Status = models.PageFailed
		page.Error = err.Error()
		next.pages[idx] = page
		s.st = next
		return ferr
	}

	merged, ordered := mergeRecords(s.st.records, records)
	next.records = merged
	next.units = s.grouper.GroupByProbe(ordered)
	page.Status = models.PageLoaded
	page.Error = ""
	page.Rows = rows
	next.pages[idx] = page
	s.st = next
	return nil
}
