package lokiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-logfmt/logfmt"
	"go.uber.org/zap"

	"checkexplorer/internal/logs"
	"checkexplorer/internal/models"
)

const (
	queryRangePath = "/loki/api/v1/query_range"
	defaultTimeout = 15 * time.Second
	// DefaultCheckLabel is the stream label carrying the check identifier.
	DefaultCheckLabel = "check_id"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	TenantID   string
	CheckLabel string
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Client queries a Loki compatible backend for execution logs.
type Client struct {
	baseURL    string
	tenantID   string
	checkLabel string
	client     *http.Client
	log        *zap.Logger
}

// New returns a Client for the backend at opts.BaseURL.
func New(opts Options) (*Client, error) {
	if _, err := url.ParseRequestURI(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("loki url: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	label := opts.CheckLabel
	if label == "" {
		label = DefaultCheckLabel
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		tenantID:   opts.TenantID,
		checkLabel: label,
		client:     &http.Client{Transport: transport, Timeout: timeout},
		log:        logger,
	}, nil
}

// Selector builds the LogQL query for a check and its probes.
func (c *Client) Selector(checkID string, probes []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "{%s=%s", c.checkLabel, strconv.Quote(checkID))
	if len(probes) > 0 {
		quoted := make([]string, len(probes))
		for i, p := range probes {
			quoted[i] = regexp.QuoteMeta(p)
		}
		fmt.Fprintf(&b, ", %s=~%s", models.LabelProbe, strconv.Quote(strings.Join(quoted, "|")))
	}
	b.WriteString("}")
	return b.String()
}

// FetchLogPage returns up to limit records of checkID in [from, to), newest
// first on the wire. Instants are Unix milliseconds.
func (c *Client) FetchLogPage(ctx context.Context, checkID string, probes []string, from, to int64, limit int) (logs.RawSeries, error) {
	q := url.Values{}
	q.Set("query", c.Selector(checkID, probes))
	q.Set("start", strconv.FormatInt(from*1_000_000, 10))
	q.Set("end", strconv.FormatInt(to*1_000_000, 10))
	q.Set("direction", "backward")
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+queryRangePath+"?"+q.Encode(), nil)
	if err != nil {
		return logs.RawSeries{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.tenantID != "" {
		req.Header.Set("X-Scope-OrgID", c.tenantID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return logs.RawSeries{}, fmt.Errorf("query loki: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return logs.RawSeries{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return logs.RawSeries{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload queryResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return logs.RawSeries{}, fmt.Errorf("decode response: %w", err)
	}
	if payload.Status != "" && payload.Status != "success" {
		return logs.RawSeries{}, fmt.Errorf("query loki: status %q", payload.Status)
	}
	series := c.FromStreams(payload.Data.Result)
	c.log.Debug("fetched log page",
		zap.String("check", checkID),
		zap.Int64("from", from),
		zap.Int64("to", to),
		zap.Int("rows", series.Len()))
	return series, nil
}

// StatusError is returned for non-2xx responses of the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("query loki: status %d: %s", e.Code, e.Body)
}

// Permanent reports whether repeating the request cannot succeed. Client
// errors are permanent except timeouts and rate limiting.
func (e *StatusError) Permanent() bool {
	switch e.Code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.Code >= 400 && e.Code < 500
}

type queryResponse struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string   `json:"resultType"`
		Result     []Stream `json:"result"`
	} `json:"data"`
}

// Stream is one labelled stream of a query_range response.
type Stream struct {
	Labels map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// FromStreams flattens streams into a raw series. Log lines are decoded as
// logfmt and merged under the stream labels. Unparseable timestamps are kept
// as-is so the parser drops and counts them.
func (c *Client) FromStreams(streams []Stream) logs.RawSeries {
	var times, nanos, labels []any
	for _, stream := range streams {
		for _, value := range stream.Values {
			ns, err := strconv.ParseInt(value[0], 10, 64)
			if err != nil {
				times = append(times, value[0])
				nanos = append(nanos, nil)
			} else {
				times = append(times, ns/1_000_000)
				nanos = append(nanos, ns%1_000_000)
			}
			labels = append(labels, c.lineLabels(stream.Labels, value[1]))
		}
	}
	return logs.RawSeries{Fields: []logs.Field{
		{Name: logs.FieldTime, Values: times},
		{Name: logs.FieldNanos, Values: nanos},
		{Name: logs.FieldLabels, Values: labels},
	}}
}

func (c *Client) lineLabels(stream map[string]string, line string) map[string]string {
	out := make(map[string]string, len(stream)+4)
	for k, v := range stream {
		out[k] = v
	}
	dec := logfmt.NewDecoder(bytes.NewBufferString(line))
	for dec.ScanRecord() {
		for dec.ScanKeyval() {
			key := string(dec.Key())
			if _, exists := out[key]; !exists {
				out[key] = string(dec.Value())
			}
		}
	}
	if err := dec.Err(); err != nil {
		c.log.Debug("log line is not logfmt", zap.Error(err))
	}
	return out
}
