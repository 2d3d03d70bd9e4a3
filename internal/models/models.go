package models

import "time"

// Well-known label keys carried by every execution log record.
const (
	LabelMsg   = "msg"
	LabelProbe = "probe"
)

// ConfigEpoch is one historical configuration of a check. The frequency stays
// constant from EffectiveFrom until the next epoch begins.
type ConfigEpoch struct {
	FrequencyMs   int64 `json:"frequency_ms" yaml:"frequency_ms"`
	EffectiveFrom int64 `json:"effective_from" yaml:"effective_from"`
}

// Frequency returns the epoch frequency as a duration.
func (e ConfigEpoch) Frequency() time.Duration {
	return time.Duration(e.FrequencyMs) * time.Millisecond
}

// Labels is the label map of a log record.
type Labels map[string]string

// Msg returns the semantic kind of the record.
func (l Labels) Msg() string { return l[LabelMsg] }

// Probe returns the probe that emitted the record, if any.
func (l Labels) Probe() string { return l[LabelProbe] }

// Clone returns an independent copy of the labels.
func (l Labels) Clone() Labels {
	if l == nil {
		return nil
	}
	out := make(Labels, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// LogRecord is one parsed row of a log page.
type LogRecord struct {
	Time       int64  `json:"time"`
	NanoOffset int64  `json:"nano_offset"`
	Labels     Labels `json:"labels"`
}

// SortKey combines the millisecond time and the nanosecond remainder.
func (r LogRecord) SortKey() int64 {
	return r.Time*1_000_000 + r.NanoOffset
}

// ExecutionUnit holds the records of a single run of a check on one probe.
// The first record is a begin marker and the last one a terminal marker.
type ExecutionUnit struct {
	Probe   string      `json:"probe"`
	Records []LogRecord `json:"records"`
	Outcome Status      `json:"outcome"`
}

// Start returns the time of the first record.
func (u ExecutionUnit) Start() int64 {
	if len(u.Records) == 0 {
		return 0
	}
	return u.Records[0].Time
}

// StartKey returns the sort key of the first record.
func (u ExecutionUnit) StartKey() int64 {
	if len(u.Records) == 0 {
		return 0
	}
	return u.Records[0].SortKey()
}

// End returns the time of the terminal record.
func (u ExecutionUnit) End() int64 {
	if len(u.Records) == 0 {
		return 0
	}
	return u.Records[len(u.Records)-1].Time
}
