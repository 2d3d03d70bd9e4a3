package models

// Status classifies one expected execution of a check on one probe.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPending Status = "pending"
	StatusMissing Status = "missing"
	// StatusUnknown marks timepoints whose log page failed to load.
	StatusUnknown Status = "unknown"
)

// Timepoint is one expected execution instant on the canonical axis.
type Timepoint struct {
	AdjustedTime int64       `json:"adjusted_time"`
	Index        int         `json:"index"`
	DurationMs   int64       `json:"duration_ms"`
	Config       ConfigEpoch `json:"config"`
}

// End returns the end of the timepoint bucket.
func (t Timepoint) End() int64 {
	return t.AdjustedTime + t.DurationMs
}

// ProbeResult carries the classification of a timepoint for a single probe.
type ProbeResult struct {
	Probe  string         `json:"probe"`
	Status Status         `json:"status"`
	Unit   *ExecutionUnit `json:"unit,omitempty"`
}

// StatefulTimepoint is a timepoint enriched with per-probe results.
type StatefulTimepoint struct {
	Timepoint
	Probes    []ProbeResult `json:"probes"`
	Retryable bool          `json:"retryable,omitempty"`
}

// MinimapSection is a contiguous fixed-size slice of the timepoint axis.
type MinimapSection struct {
	Index     int   `json:"index"`
	FromIndex int   `json:"from_index"`
	ToIndex   int   `json:"to_index"`
	From      int64 `json:"from"`
	To        int64 `json:"to"`
	Active    bool  `json:"active"`
}

// Contains reports whether the instant falls within the section.
func (s MinimapSection) Contains(instant int64) bool {
	return instant >= s.From && instant <= s.To
}

// Len returns the number of timepoints in the section.
func (s MinimapSection) Len() int {
	return s.ToIndex - s.FromIndex + 1
}

// PageStatus tracks the fetch lifecycle of a log page.
type PageStatus string

const (
	PageIdle    PageStatus = "idle"
	PageLoading PageStatus = "loading"
	PageLoaded  PageStatus = "loaded"
	PageFailed  PageStatus = "failed"
)

// PageKey identifies the log page backing one minimap section.
type PageKey struct {
	Section int   `json:"section"`
	From    int64 `json:"from"`
	To      int64 `json:"to"`
}

// PageState reports the fetch state of a page.
type PageState struct {
	Key      PageKey    `json:"key"`
	Status   PageStatus `json:"status"`
	Error    string     `json:"error,omitempty"`
	Rows     int        `json:"rows"`
	Attempts int        `json:"attempts"`
}
