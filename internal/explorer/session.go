package explorer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"checkexplorer/internal/executions"
	"checkexplorer/internal/history"
	"checkexplorer/internal/logs"
	"checkexplorer/internal/metrics"
	"checkexplorer/internal/minimap"
	"checkexplorer/internal/models"
	"checkexplorer/internal/timepoints"
)

type recordKey struct {
	time  int64
	nano  int64
	probe string
	msg   string
}

// state is replaced as a whole on every write; slices and maps it holds are
// never mutated once published.
type state struct {
	generation uint64
	probes     []string
	axis       []models.Timepoint
	sections   []models.MinimapSection
	pages      []models.PageState
	wanted     int
	reference  int64
	records    map[recordKey]models.LogRecord
	units      map[string][]models.ExecutionUnit
}

// Session is the explorer state of one check over one time range.
type Session struct {
	id         string
	checkID    string
	rangeStart int64
	rangeEnd   int64

	deps    Deps
	opts    Options
	clock   clock.Clock
	log     *zap.Logger
	parser  *logs.Parser
	grouper *executions.Grouper

	mu       sync.RWMutex
	st       state
	inflight map[int]uint64
}

// NewSession prepares a session for checkID over (rangeStart, rangeEnd].
// Call Load before reading views.
func NewSession(id, checkID string, rangeStart, rangeEnd int64, deps Deps, opts Options) (*Session, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if rangeEnd <= rangeStart {
		return nil, fmt.Errorf("explorer: range end %d must be after start %d", rangeEnd, rangeStart)
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	log := deps.Logger.With(zap.String("session", id), zap.String("check", checkID))
	opts = opts.withDefaults()
	return &Session{
		id:         id,
		checkID:    checkID,
		rangeStart: rangeStart,
		rangeEnd:   rangeEnd,
		deps:       deps,
		opts:       opts,
		clock:      deps.Clock,
		log:        log,
		parser:     logs.NewParser(log),
		grouper:    executions.NewGrouper(opts.Markers),
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CheckID returns the check explored by the session.
func (s *Session) CheckID() string { return s.checkID }

// Load (re)builds the timepoint axis from the configuration history and probe
// roster, drops cached logs and fetches the most recent section. Results of
// fetches issued before Load are discarded on arrival.
func (s *Session) Load(ctx context.Context) error {
	epochs, err := s.deps.Config.ConfigEpochs(ctx, s.checkID)
	if err != nil {
		return fmt.Errorf("load config history: %w", err)
	}
	probes, err := s.deps.Probes.SelectedProbes(ctx, s.checkID)
	if err != nil {
		return fmt.Errorf("load probe roster: %w", err)
	}
	axis, err := timepoints.Generate(s.rangeStart, s.rangeEnd, epochs)
	if err != nil {
		return fmt.Errorf("generate timepoints: %w", err)
	}
	sections := minimap.Partition(axis, s.opts.PageSize)

	pages := make([]models.PageState, len(sections))
	for i, sec := range sections {
		pages[i] = models.PageState{Key: pageKey(axis, sec), Status: models.PageIdle}
	}

	s.mu.Lock()
	next := state{
		generation: s.st.generation + 1,
		probes:     append([]string(nil), probes...),
		axis:       axis,
		sections:   minimap.SetActive(sections, s.rangeEnd),
		pages:      pages,
		wanted:     0,
		reference:  s.rangeEnd,
		records:    map[recordKey]models.LogRecord{},
		units:      map[string][]models.ExecutionUnit{},
	}
	s.st = next
	s.mu.Unlock()

	s.log.Info("session loaded",
		zap.Int("timepoints", len(axis)),
		zap.Int("sections", len(sections)),
		zap.Int("epochs", len(epochs)),
		zap.Strings("probes", probes))

	if len(sections) == 0 {
		return nil
	}
	s.fetch(ctx, s.claim([]int{0}, idleOnly))
	return nil
}

// SetViewBoundary moves the view to referenceTime. Every section from the
// most recent one down to the section containing the reference becomes
// wanted and missing pages are fetched.
func (s *Session) SetViewBoundary(ctx context.Context, referenceTime int64) {
	s.mu.Lock()
	next := s.st
	next.reference = referenceTime
	next.sections = minimap.SetActive(s.st.sections, referenceTime)
	if active, ok := minimap.FindActive(next.sections, referenceTime); ok {
		next.wanted = active.Index
	} else if n := len(next.sections); n > 0 && referenceTime < next.sections[n-1].From {
		next.wanted = n - 1
	} else if n > 0 && referenceTime > next.sections[0].To {
		next.wanted = 0
	}
	s.st = next
	indexes := make([]int, 0, next.wanted+1)
	for i := 0; i <= next.wanted && i < len(next.pages); i++ {
		indexes = append(indexes, i)
	}
	s.mu.Unlock()

	s.fetch(ctx, s.claim(indexes, idleOnly))
}

// Retry fetches a section whose page failed. The section becomes wanted.
func (s *Session) Retry(ctx context.Context, section int) error {
	s.mu.Lock()
	if section < 0 || section >= len(s.st.pages) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownSection, section)
	}
	if section > s.st.wanted {
		next := s.st
		next.wanted = section
		s.st = next
	}
	s.mu.Unlock()

	errs := s.fetch(ctx, s.claim([]int{section}, idleOrFailed))
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// RefreshHead re-fetches the most recent section so new executions show up.
func (s *Session) RefreshHead(ctx context.Context) error {
	errs := s.fetch(ctx, s.claim([]int{0}, anySettled))
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Snapshot correlates the cached executions against the axis at the current
// time and returns the view model.
func (s *Session) Snapshot() View {
	s.mu.RLock()
	st := s.st
	s.mu.RUnlock()

	probes := st.probes
	if len(probes) == 0 {
		// no selection shows every probe seen in the logs
		probes = executions.Probes(st.units)
	}

	now := s.clock.Now().UnixMilli()
	tps := history.Correlate(st.axis, st.units, probes, now)
	for pos := range tps {
		section, ok := minimap.SectionOf(st.sections, tps[pos].Index)
		if !ok {
			continue
		}
		page := st.pages[section]
		switch page.Status {
		case models.PageFailed:
			tps[pos].Retryable = true
			for i := range tps[pos].Probes {
				if tps[pos].Probes[i].Unit == nil {
					tps[pos].Probes[i].Status = models.StatusUnknown
				}
			}
		case models.PageIdle, models.PageLoading:
			for i := range tps[pos].Probes {
				if tps[pos].Probes[i].Status == models.StatusMissing {
					tps[pos].Probes[i].Status = models.StatusPending
				}
			}
		}
	}

	return View{
		SessionID:  s.id,
		CheckID:    s.checkID,
		RangeStart: s.rangeStart,
		RangeEnd:   s.rangeEnd,
		Now:        now,
		Probes:     append([]string(nil), probes...),
		Timepoints: tps,
		Sections:   append([]models.MinimapSection(nil), st.sections...),
		Pages:      append([]models.PageState(nil), st.pages...),
		Summary:    metrics.Summarize(tps),
	}
}

// pageKey covers the section plus one frequency past its latest bucket so
// late reports of the most recent timepoint are fetched with it.
func pageKey(axis []models.Timepoint, sec models.MinimapSection) models.PageKey {
	latest, _ := timepoints.At(axis, sec.ToIndex)
	return models.PageKey{
		Section: sec.Index,
		From:    sec.From,
		To:      sec.To + latest.Config.FrequencyMs,
	}
}

// mergeRecords returns a new record set holding current plus added,
// deduplicated by (time, nano, probe, msg), and the records in order.
func mergeRecords(current map[recordKey]models.LogRecord, added []models.LogRecord) (map[recordKey]models.LogRecord, []models.LogRecord) {
	merged := make(map[recordKey]models.LogRecord, len(current)+len(added))
	for k, v := range current {
		merged[k] = v
	}
	for _, r := range added {
		merged[recordKey{time: r.Time, nano: r.NanoOffset, probe: r.Labels.Probe(), msg: r.Labels.Msg()}] = r
	}

	ordered := make([]models.LogRecord, 0, len(merged))
	for _, r := range merged {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.SortKey() != b.SortKey() {
			return a.SortKey() < b.SortKey()
		}
		if a.Labels.Probe() != b.Labels.Probe() {
			return a.Labels.Probe() < b.Labels.Probe()
		}
		return a.Labels.Msg() < b.Labels.Msg()
	})
	return merged, ordered
}
