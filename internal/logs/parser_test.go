package logs

import (
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkexplorer/internal/models"
)

func series(times, nanos []any, labels []any) RawSeries {
	s := RawSeries{Fields: []Field{
		{Name: FieldTime, Values: times},
		{Name: FieldLabels, Values: labels},
	}}
	if nanos != nil {
		s.Fields = append(s.Fields, Field{Name: FieldNanos, Values: nanos})
	}
	return s
}

func lbl(msg string) map[string]string {
	return map[string]string{"msg": msg, "probe": "Paris"}
}

func TestParseOrdersByTimeAndNanos(t *testing.T) {
	p := NewParser(nil)
	records := p.Parse(series(
		[]any{int64(2000), int64(1000), int64(1000), int64(1000)},
		[]any{int64(0), int64(500), int64(10), int64(999_999)},
		[]any{lbl("d"), lbl("b"), lbl("a"), lbl("c")},
	))

	require.Len(t, records, 4)
	msgs := make([]string, 0, len(records))
	for _, r := range records {
		msgs = append(msgs, r.Labels.Msg())
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, msgs)
	assert.Equal(t, int64(1000), records[0].Time)
	assert.Equal(t, int64(10), records[0].NanoOffset)
}

func TestParseDefaultsMissingNanosToZero(t *testing.T) {
	p := NewParser(nil)
	records := p.Parse(series([]any{int64(20), int64(10)}, nil, []any{lbl("late"), lbl("early")}))

	require.Len(t, records, 2)
	assert.Equal(t, "early", records[0].Labels.Msg())
	assert.Zero(t, records[0].NanoOffset)
	assert.Equal(t, "Paris", records[0].Labels.Probe())
}

func TestParseDerivesRemainderFromFullNanos(t *testing.T) {
	p := NewParser(nil)
	s := series([]any{int64(1000)}, nil, []any{lbl("x")})
	s.Fields = append(s.Fields, Field{Name: FieldTsNs, Values: []any{"1000000123"}})

	records := p.Parse(s)
	require.Len(t, records, 1)
	assert.Equal(t, int64(123), records[0].NanoOffset)
}

func TestParseDropsMalformedRows(t *testing.T) {
	before := testutil.ToFloat64(MalformedRows)
	p := NewParser(nil)

	records := p.Parse(series(
		[]any{"not-a-number", int64(10), int64(20), int64(30), 40.5, int64(50)},
		[]any{int64(0), int64(0), int64(2_000_000), int64(0), int64(0), int64(0)},
		[]any{
			lbl("bad-time"),
			map[string]string{"probe": "Paris"},
			lbl("bad-nanos"),
			map[string]any{"msg": "ok", "probe": 3},
			lbl("fractional"),
			lbl("good"),
		},
	))

	require.Len(t, records, 1)
	assert.Equal(t, "good", records[0].Labels.Msg())
	assert.Equal(t, float64(5), testutil.ToFloat64(MalformedRows)-before)
}

func TestParseEmptyInput(t *testing.T) {
	p := NewParser(nil)
	assert.Empty(t, p.Parse(RawSeries{}))
	assert.Empty(t, p.Parse(series([]any{}, nil, []any{})))
	assert.Empty(t, p.Parse(RawSeries{Fields: []Field{{Name: FieldTime, Values: []any{int64(1)}}}}))
}

func TestParseIsIdempotent(t *testing.T) {
	p := NewParser(nil)
	first := p.Parse(series(
		[]any{int64(3), int64(1), int64(2), int64(1)},
		[]any{int64(0), int64(7), int64(0), int64(7)},
		[]any{lbl("c"), lbl("a1"), lbl("b"), lbl("a2")},
	))
	second := p.Parse(ToSeries(first))

	assert.Equal(t, first, second)
	// equal keys keep their input order
	assert.Equal(t, "a1", second[0].Labels.Msg())
	assert.Equal(t, "a2", second[1].Labels.Msg())
}

func TestParseJSONPayload(t *testing.T) {
	payload := `{"fields":[
		{"name":"Time","values":[1700000000123, 1700000000001]},
		{"name":"nanos","values":[456, 0]},
		{"name":"labels","values":[{"msg":"result-success","probe":"Tokyo"},{"msg":"beginning","probe":"Tokyo"}]}
	]}`
	var s RawSeries
	require.NoError(t, json.Unmarshal([]byte(payload), &s))

	records := NewParser(nil).Parse(s)
	require.Len(t, records, 2)
	assert.Equal(t, models.LogRecord{
		Time:       1700000000001,
		NanoOffset: 0,
		Labels:     models.Labels{"msg": "beginning", "probe": "Tokyo"},
	}, records[0])
	assert.Equal(t, int64(456), records[1].NanoOffset)
}
