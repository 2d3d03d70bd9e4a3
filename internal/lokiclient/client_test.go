package lokiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkexplorer/internal/logs"
)

const sampleResponse = `{
  "status": "success",
  "data": {
    "resultType": "streams",
    "result": [
      {
        "stream": {"check_id": "42", "probe": "Paris"},
        "values": [
          ["1700000001000000500", "level=info msg=result-success duration_seconds=0.12"],
          ["1700000000000000007", "level=info msg=beginning target=\"https://example.com\""]
        ]
      },
      {
        "stream": {"check_id": "42", "probe": "Tokyo"},
        "values": [["garbage", "msg=beginning"]]
      }
    ]
  }
}`

func TestFetchLogPage(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL + "/", TenantID: "tenant-1"})
	require.NoError(t, err)

	series, err := client.FetchLogPage(context.Background(), "42", []string{"Paris", "Tokyo"}, 1_000, 2_000, 1000)
	require.NoError(t, err)

	require.NotNil(t, got)
	assert.Equal(t, queryRangePath, got.URL.Path)
	assert.Equal(t, "tenant-1", got.Header.Get("X-Scope-OrgID"))
	q := got.URL.Query()
	assert.Equal(t, `{check_id="42", probe=~"Paris|Tokyo"}`, q.Get("query"))
	assert.Equal(t, "1000000000", q.Get("start"))
	assert.Equal(t, "2000000000", q.Get("end"))
	assert.Equal(t, "backward", q.Get("direction"))
	assert.Equal(t, "1000", q.Get("limit"))

	assert.Equal(t, 3, series.Len())
	records := logs.NewParser(nil).Parse(series)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1700000000000), records[0].Time)
	assert.Equal(t, int64(7), records[0].NanoOffset)
	assert.Equal(t, "beginning", records[0].Labels.Msg())
	assert.Equal(t, "https://example.com", records[0].Labels["target"])
	assert.Equal(t, "Paris", records[0].Labels.Probe())
	assert.Equal(t, int64(500), records[1].NanoOffset)
	assert.Equal(t, "0.12", records[1].Labels["duration_seconds"])
}

func TestFetchLogPageReportsBackendErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many outstanding requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.FetchLogPage(context.Background(), "42", nil, 0, 1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.False(t, serr.Permanent())
}

func TestClientErrorsArePermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "parse error at line 1", http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := New(Options{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.FetchLogPage(context.Background(), "42", nil, 0, 1, 0)
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadRequest, serr.Code)
	assert.Equal(t, "parse error at line 1", serr.Body)
	assert.True(t, serr.Permanent())

	assert.False(t, (&StatusError{Code: http.StatusBadGateway}).Permanent())
	assert.False(t, (&StatusError{Code: http.StatusRequestTimeout}).Permanent())
}

func TestSelectorEscapesProbeNames(t *testing.T) {
	client, err := New(Options{BaseURL: "http://loki:3100", CheckLabel: "job"})
	require.NoError(t, err)

	assert.Equal(t, `{job="7"}`, client.Selector("7", nil))
	assert.Equal(t, `{job="7", probe=~"São\\.Paulo|N\\+1"}`, client.Selector("7", []string{"São.Paulo", "N+1"}))
}

func TestNewRejectsInvalidURL(t *testing.T) {
	_, err := New(Options{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestStreamLabelsWinOverLineFields(t *testing.T) {
	client, err := New(Options{BaseURL: "http://loki:3100"})
	require.NoError(t, err)

	series := client.FromStreams([]Stream{{
		Labels: map[string]string{"probe": "Paris", "msg": "from-stream"},
		Values: [][2]string{{"1000000", "probe=Tokyo msg=from-line extra=1"}},
	}})
	labels, ok := series.Field(logs.FieldLabels)
	require.True(t, ok)
	lbl := labels.Values[0].(map[string]string)
	assert.Equal(t, "Paris", lbl["probe"])
	assert.Equal(t, "from-stream", lbl["msg"])
	assert.Equal(t, "1", lbl["extra"])
}
