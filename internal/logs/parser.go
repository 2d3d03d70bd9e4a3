package logs

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"checkexplorer/internal/models"
)

const nanosPerMilli = 1_000_000

// MalformedRows counts rows dropped by the parser.
var MalformedRows = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "checkexplorer",
	Name:      "malformed_log_rows_total",
	Help:      "Log rows dropped because they could not be parsed.",
})

// Parser turns raw series into ordered log records.
type Parser struct {
	log *zap.Logger
}

// NewParser returns a parser that reports dropped rows to logger.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{log: logger}
}

// Parse returns the records of series ordered by (time, nano offset).
// Malformed rows are skipped.
func (p *Parser) Parse(series RawSeries) []models.LogRecord {
	times, ok := series.Field(FieldTime)
	if !ok || len(times.Values) == 0 {
		return nil
	}
	labels, _ := series.Field(FieldLabels)
	nanos, hasNanos := series.Field(FieldNanos)
	tsNs, hasTsNs := series.Field(FieldTsNs)

	records := make([]models.LogRecord, 0, len(times.Values))
	for i, raw := range times.Values {
		record, err := parseRow(i, raw, labels, nanos, hasNanos, tsNs, hasTsNs)
		if err != nil {
			MalformedRows.Inc()
			p.log.Debug("dropping malformed log row", zap.Int("row", i), zap.Error(err))
			continue
		}
		records = append(records, record)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SortKey() < records[j].SortKey()
	})
	return records
}

func parseRow(i int, rawTime any, labels, nanos Field, hasNanos bool, tsNs Field, hasTsNs bool) (models.LogRecord, error) {
	ms, err := toInt64(rawTime)
	if err != nil {
		return models.LogRecord{}, fmt.Errorf("time: %w", err)
	}

	var remainder int64
	switch {
	case hasNanos && i < len(nanos.Values) && nanos.Values[i] != nil:
		remainder, err = toInt64(nanos.Values[i])
		if err != nil {
			return models.LogRecord{}, fmt.Errorf("nanos: %w", err)
		}
	case hasTsNs && i < len(tsNs.Values) && tsNs.Values[i] != nil:
		full, err := toInt64(tsNs.Values[i])
		if err != nil {
			return models.LogRecord{}, fmt.Errorf("tsNs: %w", err)
		}
		remainder = full - ms*nanosPerMilli
	}
	if remainder < 0 || remainder >= nanosPerMilli {
		return models.LogRecord{}, fmt.Errorf("nano remainder %d out of range", remainder)
	}

	if i >= len(labels.Values) {
		return models.LogRecord{}, fmt.Errorf("labels missing")
	}
	lbls, err := toLabels(labels.Values[i])
	if err != nil {
		return models.LogRecord{}, err
	}
	if lbls.Msg() == "" {
		return models.LogRecord{}, fmt.Errorf("label %q missing", models.LabelMsg)
	}

	return models.LogRecord{Time: ms, NanoOffset: remainder, Labels: lbls}, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, fmt.Errorf("non-integral value %v", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func toLabels(v any) (models.Labels, error) {
	switch m := v.(type) {
	case models.Labels:
		return m.Clone(), nil
	case map[string]string:
		return models.Labels(m).Clone(), nil
	case map[string]any:
		out := make(models.Labels, len(m))
		for k, raw := range m {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("label %q is %T, want string", k, raw)
			}
			out[k] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("labels have type %T", v)
	}
}

// ToSeries encodes records back into a raw series.
func ToSeries(records []models.LogRecord) RawSeries {
	times := make([]any, len(records))
	nanos := make([]any, len(records))
	labels := make([]any, len(records))
	for i, r := range records {
		times[i] = r.Time
		nanos[i] = r.NanoOffset
		labels[i] = r.Labels.Clone()
	}
	return RawSeries{Fields: []Field{
		{Name: FieldTime, Values: times},
		{Name: FieldNanos, Values: nanos},
		{Name: FieldLabels, Values: labels},
	}}
}
