package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atikulmunna/lognorm/internal/aggregator"
	"github.com/atikulmunna/lognorm/internal/hub"
	"github.com/atikulmunna/lognorm/internal/metrics"
	"github.com/atikulmunna/lognorm/internal/model"
	"github.com/atikulmunna/lognorm/internal/parser"
)

func newTestServer(t *testing.T) (*Server, *aggregator.Aggregator) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.NewParseMetrics(reg)
	agg := aggregator.New(nil, nil, m)
	return New(parser.Default(), agg, nil, reg, ":0"), agg
}

func decodeEntries(t *testing.T, rec *httptest.ResponseRecorder) []model.LogEntry {
	t.Helper()
	var resp parseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Entries
}

func TestParseJSONBody(t *testing.T) {
	s, agg := newTestServer(t)

	body := `{"source":"mixed","lines":[
		"[2024-10-08 04:21:42 +0000] [164] [INFO] Booting worker with pid: 164",
		"not a recognizable log line at all"
	]}`
	req := httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeEntries(t, rec)
	require.Len(t, entries, 2)

	assert.True(t, entries[0].Parsed)
	assert.Equal(t, "generic", entries[0].Format)
	assert.Equal(t, "Booting worker with pid: 164", entries[0].Record.Message)
	assert.Equal(t, "mixed", entries[0].Source)

	assert.False(t, entries[1].Parsed)
	assert.Nil(t, entries[1].Record)

	stats := agg.Snapshot()
	assert.Equal(t, int64(2), stats.TotalEvents)
	assert.Equal(t, int64(1), stats.Unparsed)
}

func TestParseJSONBodyMissingLines(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/parse", strings.NewReader(`{"source":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseTextBodyJoinsContinuations(t *testing.T) {
	s, _ := newTestServer(t)

	body := "2024-10-08 04:22:01.512 UTC [70] DETAIL:  parameters: $1 = '1234', $2 = 'njchar\r\n" +
		"        hello', $3 = 'aaaa'\r\n" +
		"51:M 08 Oct 2024 04:21:40.150 * Ready to accept connections\n"
	req := httptest.NewRequest(http.MethodPost, "/api/parse?source=db", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeEntries(t, rec)
	require.Len(t, entries, 2)

	require.NotNil(t, entries[0].Record)
	assert.Equal(t, "DETAIL", entries[0].Record.Level)
	assert.Equal(t, "parameters: $1 = '1234', $2 = 'njchar\n        hello', $3 = 'aaaa'", entries[0].Record.Message)
	assert.Equal(t, "db", entries[0].Source)

	require.NotNil(t, entries[1].Record)
	assert.Equal(t, "51:M", entries[1].Record.Role)
}

func TestStatsAndMetrics(t *testing.T) {
	s, agg := newTestServer(t)
	agg.Record(parser.Default().Normalize(model.RawLine{Text: "[INFO] Data sync for svc ok"}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats aggregator.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.FormatCounts["data_sync"])

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `lognorm_parser_entries_total{format="data_sync"} 1`)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestWebSocketParse(t *testing.T) {
	s, agg := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?source=live"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	line := `127.0.0.1 - - [08/Oct/2024:04:25:26 +0000] "GET / HTTP/1.1" 200 26 "-" "axios/0.26.1"`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(line)))

	var entry model.LogEntry
	require.NoError(t, conn.ReadJSON(&entry))
	require.NotNil(t, entry.Record)
	assert.Equal(t, "127.0.0.1", entry.Record.IP)
	assert.Equal(t, `GET / 200 26 "-" "axios/0.26.1"`, entry.Record.Message)
	assert.Equal(t, "live", entry.Source)

	assert.Equal(t, int64(1), agg.Snapshot().TotalEvents)
}

func TestStreamReceivesParsedEntries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewParseMetrics(reg)
	feed := hub.New(nil, parser.Default(), hub.WithMetrics(m))
	agg := aggregator.New(nil, feed.Dropped, m)
	s := New(parser.Default(), agg, feed, reg, ":0")

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	body := `{"source":"sync","lines":["[ERROR] Data sync for sync_org_incidents failed: timeout\n    retrying in 5s"]}`
	resp, err := http.Post(ts.URL+"/api/parse", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entry model.LogEntry
	require.NoError(t, conn.ReadJSON(&entry))
	require.NotNil(t, entry.Record)
	assert.Equal(t, "data_sync", entry.Format)
	assert.Equal(t, "ERROR", entry.Record.Level)
	assert.Equal(t, "sync", entry.Source)
	assert.Equal(t, int64(0), agg.Snapshot().DroppedLogs)
}

func TestStreamRouteNeedsFeed(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws/stream", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
