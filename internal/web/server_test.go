package web

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/featurestate/internal/history"
	"github.com/sweeney/featurestate/internal/logic"
	"github.com/sweeney/featurestate/internal/status"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeHistory struct {
	records    []history.Record
	counts     map[string]int
	err        error
	countsErr  error
	gotFeature string
	gotLimit   int
}

func (f *fakeHistory) Recent(feature string, limit int) ([]history.Record, error) {
	f.gotFeature = feature
	f.gotLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

func (f *fakeHistory) Counts() (map[string]int, error) {
	if f.countsErr != nil {
		return nil, f.countsErr
	}
	if f.counts == nil {
		return map[string]int{}, nil
	}
	return f.counts, nil
}

func newTestServer(t *testing.T, hist HistoryReader) (*httptest.Server, *status.Tracker) {
	t.Helper()
	cfg := status.Config{
		PollMs:      100,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		BaseTopic:   "featurestate",
		HTTPAddr:    ":80",
		ConfigPath:  "/etc/featurestate.yaml",
	}
	tr := status.NewTracker(start, cfg)
	srv := New(":0", tr, hist)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func readyFeatures() []logic.FeatureSnapshot {
	return []logic.FeatureSnapshot{
		{Feature: "grip", State: "Closed", Sample: 0.82, Sampled: true, Transitions: 3},
		{Feature: "pitch", State: "Low", Pending: "Mid", PendingSince: start, Sample: 0.5, Sampled: true},
	}
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(readyFeatures(), true, 3)
	tr.SetMQTTConnected(true)

	resp, body := get(t, ts.URL+"/index.json")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var sj status.StatusJSON
	require.NoError(t, json.Unmarshal(body, &sj))

	assert.True(t, sj.Status.Ready)
	assert.True(t, sj.Status.MQTT.Connected)
	assert.Equal(t, "tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	assert.Equal(t, 3, sj.Status.Transitions)
	assert.Equal(t, int64(100), sj.Status.Config.PollMs)
	assert.Equal(t, "featurestate", sj.Status.Config.BaseTopic)

	require.Len(t, sj.Status.Features, 2)
	assert.Equal(t, "grip", sj.Status.Features[0].Name)
	assert.Equal(t, "Closed", sj.Status.Features[0].State)
	assert.Equal(t, "Mid", sj.Status.Features[1].Pending)
}

func TestJSONUnknownStateBeforeReady(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update([]logic.FeatureSnapshot{{Feature: "grip"}}, false, 0)

	_, body := get(t, ts.URL+"/index.json")

	var sj status.StatusJSON
	require.NoError(t, json.Unmarshal(body, &sj))
	assert.False(t, sj.Status.Ready)
	require.Len(t, sj.Status.Features, 1)
	assert.Equal(t, "UNKNOWN", sj.Status.Features[0].State)
	assert.Nil(t, sj.Status.Features[0].Sample)
}

func TestJSONEndpointFormatError(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update([]logic.FeatureSnapshot{{Feature: "grip", State: "Closed", Sample: math.Inf(1), Sampled: true}}, true, 0)

	resp, body := get(t, ts.URL+"/index.json")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "status unavailable")
}

func TestHTMLEndpoint(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update(readyFeatures(), true, 3)

	for _, path := range []string{"/", "/index.html"} {
		resp, body := get(t, ts.URL+path)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"), path)

		html := string(body)
		assert.Contains(t, html, "<title>Feature State</title>")
		assert.Contains(t, html, "<td>grip</td>")
		assert.Contains(t, html, "Closed")
		assert.Contains(t, html, "0.82")
		assert.Contains(t, html, "Mid (")
		assert.Contains(t, html, "tcp://192.168.1.200:1883")
		assert.Contains(t, html, "/etc/featurestate.yaml")
	}
}

func TestHTMLUnknownState(t *testing.T) {
	ts, tr := newTestServer(t, nil)
	tr.Update([]logic.FeatureSnapshot{{Feature: "grip"}}, false, 0)

	_, body := get(t, ts.URL+"/")
	assert.Contains(t, string(body), "UNKNOWN")
	assert.Contains(t, string(body), "Ready: no")
}

func TestHTMLHeartbeatDisabled(t *testing.T) {
	tr := status.NewTracker(start, status.Config{})
	ts := httptest.NewServer(New(":0", tr, nil).httpServer.Handler)
	t.Cleanup(ts.Close)

	_, body := get(t, ts.URL+"/")
	assert.Contains(t, string(body), "disabled")
}

func TestUnknownPath404(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, _ := get(t, ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryEndpoint(t *testing.T) {
	at := start.Add(90 * time.Second)
	hist := &fakeHistory{records: []history.Record{
		{ID: "b", RunID: "run", Feature: "grip", From: "Open", To: "Closed", Sample: 0.7, At: at},
		{ID: "a", RunID: "run", Feature: "grip", To: "Open", Sample: 0.1, At: start},
	}, counts: map[string]int{"grip": 1}}
	ts, _ := newTestServer(t, hist)

	resp, body := get(t, ts.URL+"/history.json?feature=grip&limit=5")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "grip", hist.gotFeature)
	assert.Equal(t, 5, hist.gotLimit)

	var hj HistoryJSON
	require.NoError(t, json.Unmarshal(body, &hj))
	assert.Equal(t, "grip", hj.Feature)
	assert.Equal(t, map[string]int{"grip": 1}, hj.Counts)
	require.Len(t, hj.Transitions, 2)
	assert.Equal(t, "Closed", hj.Transitions[0].To)
	assert.Equal(t, "Open", hj.Transitions[0].From)
	assert.Equal(t, "2026-01-01T00:01:30Z", hj.Transitions[0].At)
	assert.Empty(t, hj.Transitions[1].From)
}

func TestHistoryEndpointDefaultsAndClamp(t *testing.T) {
	hist := &fakeHistory{}
	ts, _ := newTestServer(t, hist)

	_, body := get(t, ts.URL+"/history.json")
	assert.Equal(t, "", hist.gotFeature)
	assert.Equal(t, defaultHistoryLimit, hist.gotLimit)
	assert.JSONEq(t, `{"counts":{},"transitions":[]}`, string(body))

	get(t, ts.URL+"/history.json?limit=999999")
	assert.Equal(t, maxHistoryLimit, hist.gotLimit)
}

func TestHistoryEndpointBadLimit(t *testing.T) {
	ts, _ := newTestServer(t, &fakeHistory{})

	for _, q := range []string{"limit=abc", "limit=0", "limit=-3"} {
		resp, _ := get(t, ts.URL+"/history.json?"+q)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestHistoryEndpointError(t *testing.T) {
	ts, _ := newTestServer(t, &fakeHistory{err: errors.New("disk gone")})

	resp, _ := get(t, ts.URL+"/history.json")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHistoryEndpointCountsError(t *testing.T) {
	ts, _ := newTestServer(t, &fakeHistory{countsErr: errors.New("locked")})

	resp, _ := get(t, ts.URL+"/history.json")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHistoryEndpointWithoutStore(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, _ := get(t, ts.URL+"/history.json")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHistoryEndpointSQLite(t *testing.T) {
	store, err := history.NewStore(t.TempDir() + "/history.db")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.Append(logic.Event{Timestamp: start, Feature: "grip", To: "Open", Sample: 0.1})
	require.NoError(t, err)
	_, err = store.Append(logic.Event{Timestamp: start.Add(time.Second), Feature: "grip", From: "Open", To: "Closed", Sample: 0.9})
	require.NoError(t, err)

	ts, _ := newTestServer(t, store)
	_, body := get(t, ts.URL+"/history.json?feature=grip")

	var hj HistoryJSON
	require.NoError(t, json.Unmarshal(body, &hj))
	require.Len(t, hj.Transitions, 2)
	assert.Equal(t, "Closed", hj.Transitions[0].To)
	assert.Equal(t, store.RunID(), hj.Transitions[0].RunID)
	assert.Equal(t, map[string]int{"grip": 1}, hj.Counts)
}
