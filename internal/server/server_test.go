package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mrcode/glucose-share/internal/app"
	"github.com/mrcode/glucose-share/internal/models"
)

type fakeSource struct {
	latest      *models.Reading
	readings    []models.Reading
	err         error
	maxReadings int
	minutes     int
}

func (f *fakeSource) GetLatestGlucose(context.Context) (*models.Reading, error) {
	return f.latest, f.err
}

func (f *fakeSource) GetGlucoseReadings(_ context.Context, maxReadings, minutes int) ([]models.Reading, error) {
	f.maxReadings = maxReadings
	f.minutes = minutes
	return f.readings, f.err
}

var readingTime = time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

func intPtr(v int) *int { return &v }

func sampleReading() *models.Reading {
	return &models.Reading{
		Value:           120,
		PreviousValue:   intPtr(115),
		ValueDifference: intPtr(5),
		TrendDirection:  models.TrendFlat,
		Trend:           models.LookupTrend(models.TrendFlat),
		Time:            readingTime,
		TimeAgo:         "4 minutes ago",
		MinutesAgo:      4,
		Status:          models.StatusInRange,
	}
}

func newTestServer(t *testing.T, source *fakeSource, cfg Config) *httptest.Server {
	t.Helper()

	s, err := NewServer(cfg, source, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	s.now = func() time.Time { return readingTime }

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, method, url, body string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, data
}

func decodeError(t *testing.T, body []byte) string {
	t.Helper()
	var payload map[string]string
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decoding error body %q: %v", body, err)
	}
	return payload["error"]
}

func TestServer_Glucose(t *testing.T) {
	ts := newTestServer(t, &fakeSource{latest: sampleReading()}, Config{})

	for _, path := range []string{"/api/glucose", "/glucose"} {
		t.Run(path, func(t *testing.T) {
			resp, body := doRequest(t, http.MethodGet, ts.URL+path, "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %s, want application/json", ct)
			}

			var payload map[string]any
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Fatalf("decoding body: %v", err)
			}

			for _, key := range []string{"time", "value", "previous_value", "value_difference", "trend", "status", "read", "minutes_ago"} {
				if _, ok := payload[key]; !ok {
					t.Errorf("response missing %q", key)
				}
			}
			if payload["value"] != float64(120) {
				t.Errorf("value = %v, want 120", payload["value"])
			}
			if payload["status"] != "IN RANGE" {
				t.Errorf("status = %v, want IN RANGE", payload["status"])
			}
			if payload["read"] != "4 minutes ago" {
				t.Errorf("read = %v, want \"4 minutes ago\"", payload["read"])
			}
			trend, _ := payload["trend"].(map[string]any)
			if trend["id"] != models.TrendFlat || trend["symbol"] != "→" {
				t.Errorf("trend = %v, want Flat →", trend)
			}
		})
	}
}

func TestServer_Glucose_NullDifference(t *testing.T) {
	reading := sampleReading()
	reading.PreviousValue = nil
	reading.ValueDifference = nil
	ts := newTestServer(t, &fakeSource{latest: reading}, Config{})

	_, body := doRequest(t, http.MethodGet, ts.URL+"/api/glucose", "")
	if !bytes.Contains(body, []byte(`"previous_value":null`)) {
		t.Errorf("body = %s, want previous_value null", body)
	}
	if !bytes.Contains(body, []byte(`"value_difference":null`)) {
		t.Errorf("body = %s, want value_difference null", body)
	}
}

func TestServer_Glucose_NotFound(t *testing.T) {
	ts := newTestServer(t, &fakeSource{}, Config{})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/glucose", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if msg := decodeError(t, body); msg != "No glucose reading found" {
		t.Errorf("error = %q", msg)
	}
}

func TestServer_Glucose_Error(t *testing.T) {
	ts := newTestServer(t, &fakeSource{err: errors.New("authentication error: invalid credentials")}, Config{})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/glucose", "")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if msg := decodeError(t, body); !strings.Contains(msg, "invalid credentials") {
		t.Errorf("error = %q, want the source error", msg)
	}
}

func TestServer_Graph(t *testing.T) {
	tests := []struct {
		query       string
		wantHours   float64
		wantMax     int
		wantMinutes int
	}{
		{"", 2, 24, 120},
		{"?hours=abc", 2, 24, 120},
		{"?hours=0", 2, 24, 120},
		{"?hours=1", 1, 12, 60},
		{"?hours=3.5", 3.5, 42, 210},
		{"?hours=0.01", 0.01, 24, 1},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			source := &fakeSource{readings: []models.Reading{*sampleReading(), *sampleReading()}}
			ts := newTestServer(t, source, Config{})

			resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/graph"+tt.query, "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", resp.StatusCode, body)
			}

			var payload graphResponse
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if payload.Count != 2 || len(payload.Readings) != 2 {
				t.Errorf("count = %d, readings = %d, want 2", payload.Count, len(payload.Readings))
			}
			if payload.Hours != tt.wantHours {
				t.Errorf("hours = %v, want %v", payload.Hours, tt.wantHours)
			}
			if source.maxReadings != tt.wantMax {
				t.Errorf("maxReadings = %d, want %d", source.maxReadings, tt.wantMax)
			}
			if source.minutes != tt.wantMinutes {
				t.Errorf("minutes = %d, want %d", source.minutes, tt.wantMinutes)
			}
		})
	}
}

func TestServer_Graph_Errors(t *testing.T) {
	tests := []struct {
		name   string
		source *fakeSource
		query  string
		status int
	}{
		{"negative hours", &fakeSource{}, "?hours=-1", http.StatusBadRequest},
		{"no readings", &fakeSource{}, "", http.StatusNotFound},
		{"source error", &fakeSource{err: errors.New("boom")}, "", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.source, Config{})
			resp, body := doRequest(t, http.MethodGet, ts.URL+"/graph"+tt.query, "")
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if decodeError(t, body) == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, &fakeSource{}, Config{})

	for _, path := range []string{"/health", "/api/health"} {
		resp, body := doRequest(t, http.MethodGet, ts.URL+path, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, resp.StatusCode)
		}

		var payload map[string]string
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if payload["status"] != "ok" {
			t.Errorf("status = %s, want ok", payload["status"])
		}
		if payload["service"] != ServiceName {
			t.Errorf("service = %s, want %s", payload["service"], ServiceName)
		}
		if _, err := time.Parse(time.RFC3339Nano, payload["timestamp"]); err != nil {
			t.Errorf("timestamp %q is not RFC 3339: %v", payload["timestamp"], err)
		}
	}
}

type fakeWatcher struct {
	snap app.Snapshot
}

func (f *fakeWatcher) Snapshot() app.Snapshot { return f.snap }

func TestServer_HealthWithWatcher(t *testing.T) {
	watcher := &fakeWatcher{snap: app.Snapshot{
		LastReading:       sampleReading(),
		LastSuccess:       readingTime,
		ConsecutiveErrors: 2,
	}}
	ts := newTestServer(t, &fakeSource{}, Config{Watcher: watcher})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload struct {
		Status  string `json:"status"`
		Watcher *struct {
			ConsecutiveErrors int    `json:"consecutive_errors"`
			LastSuccess       string `json:"last_success"`
			LastValue         *int   `json:"last_value"`
			LastStatus        string `json:"last_status"`
		} `json:"watcher"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if payload.Watcher == nil {
		t.Fatalf("health body has no watcher section: %s", body)
	}
	if payload.Watcher.ConsecutiveErrors != 2 {
		t.Errorf("consecutive_errors = %d, want 2", payload.Watcher.ConsecutiveErrors)
	}
	if payload.Watcher.LastValue == nil || *payload.Watcher.LastValue != 120 {
		t.Errorf("last_value = %v, want 120", payload.Watcher.LastValue)
	}
	if payload.Watcher.LastStatus != string(models.StatusInRange) {
		t.Errorf("last_status = %s, want IN RANGE", payload.Watcher.LastStatus)
	}
	if payload.Watcher.LastSuccess != readingTime.Format(time.RFC3339) {
		t.Errorf("last_success = %s", payload.Watcher.LastSuccess)
	}
}

func TestServer_HealthWithoutWatcher(t *testing.T) {
	ts := newTestServer(t, &fakeSource{}, Config{})

	_, body := doRequest(t, http.MethodGet, ts.URL+"/health", "")
	if strings.Contains(string(body), "watcher") {
		t.Errorf("health body should not mention the watcher: %s", body)
	}
}

func TestServer_ListenPortInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving port: %v", err)
	}
	defer busy.Close()

	port := busy.Addr().(*net.TCPAddr).Port
	s, err := NewServer(Config{Host: "127.0.0.1", Port: port}, &fakeSource{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	if err := s.Listen(); err == nil {
		t.Fatal("Listen() on a busy port should fail")
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("Start() on a busy port should fail")
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	s, err := NewServer(Config{Host: "127.0.0.1"}, &fakeSource{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if strings.HasSuffix(s.Address(), ":0") {
		t.Fatalf("Address() = %s, want the bound port", s.Address())
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	resp, _ := doRequest(t, http.MethodGet, s.Address()+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() after cancel = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}

func TestServer_Root(t *testing.T) {
	ts := newTestServer(t, &fakeSource{}, Config{Version: "1.2.3"})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if payload["version"] != "1.2.3" {
		t.Errorf("version = %v, want 1.2.3", payload["version"])
	}
	if _, ok := payload["endpoints"].(map[string]any); !ok {
		t.Error("endpoints missing")
	}
}

func TestServer_CORS(t *testing.T) {
	ts := newTestServer(t, &fakeSource{latest: sampleReading()}, Config{})

	resp, _ := doRequest(t, http.MethodOptions, ts.URL+"/api/glucose", "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("OPTIONS status = %d, want 200", resp.StatusCode)
	}

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/api/glucose", "")
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &fakeSource{}, Config{})

	for _, path := range []string{"/api/glucose", "/api/graph"} {
		resp, body := doRequest(t, http.MethodPost, ts.URL+path, "{}")
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("POST %s status = %d, want 405", path, resp.StatusCode)
			continue
		}
		if msg := decodeError(t, body); msg != "Method not allowed" {
			t.Errorf("error = %q, want \"Method not allowed\"", msg)
		}
	}
}

func TestServer_NotFound(t *testing.T) {
	ts := newTestServer(t, &fakeSource{}, Config{})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/nope", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if msg := decodeError(t, body); msg != "Endpoint not found" {
		t.Errorf("error = %q, want \"Endpoint not found\"", msg)
	}
}

func TestServer_Static(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "graph.html"), []byte("<h1>graph</h1>"), 0o600); err != nil {
		t.Fatalf("writing static file: %v", err)
	}
	ts := newTestServer(t, &fakeSource{}, Config{StaticDir: dir})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/graph.html", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if string(body) != "<h1>graph</h1>" {
		t.Errorf("body = %q", body)
	}

	resp, _ = doRequest(t, http.MethodGet, ts.URL+"/missing.html", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing file status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_Badge(t *testing.T) {
	tests := []struct {
		name   string
		source *fakeSource
	}{
		{"reading", &fakeSource{latest: sampleReading()}},
		{"error renders placeholder", &fakeSource{err: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.source, Config{})

			resp, body := doRequest(t, http.MethodGet, ts.URL+"/api/glucose/badge.png", "")
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, want 200", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
				t.Errorf("Content-Type = %s, want image/png", ct)
			}
			if _, err := png.Decode(bytes.NewReader(body)); err != nil {
				t.Errorf("body is not a PNG: %v", err)
			}
		})
	}
}

func TestServer_Favicon(t *testing.T) {
	ts := newTestServer(t, &fakeSource{latest: sampleReading()}, Config{})

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/favicon.ico", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/x-icon" {
		t.Errorf("Content-Type = %s, want image/x-icon", ct)
	}
	if len(body) < 22 {
		t.Errorf("ICO too short: %d bytes", len(body))
	}
}

func TestServer_Alexa(t *testing.T) {
	ts := newTestServer(t, &fakeSource{latest: sampleReading()}, Config{})

	envelope := `{"version":"1.0","request":{"type":"LaunchRequest","requestId":"r1"}}`
	resp, body := doRequest(t, http.MethodPost, ts.URL+"/api/alexa", envelope)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var payload struct {
		Response struct {
			OutputSpeech struct {
				Text string `json:"text"`
			} `json:"outputSpeech"`
		} `json:"response"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decoding body: %v", err)
	}

	want := "120 and level. This is 5 higher than your previous reading. Last checked 4 minutes ago."
	if payload.Response.OutputSpeech.Text != want {
		t.Errorf("speech = %q, want %q", payload.Response.OutputSpeech.Text, want)
	}
}

func TestGraphWindow(t *testing.T) {
	tests := []struct {
		hours       float64
		wantMax     int
		wantMinutes int
	}{
		{2, 24, 120},
		{24, 288, 1440},
		{0.02, 24, 2},
		{0.5, 6, 30},
	}

	for _, tt := range tests {
		maxReadings, minutes := graphWindow(tt.hours)
		if maxReadings != tt.wantMax || minutes != tt.wantMinutes {
			t.Errorf("graphWindow(%v) = %d, %d, want %d, %d", tt.hours, maxReadings, minutes, tt.wantMax, tt.wantMinutes)
		}
	}
}
