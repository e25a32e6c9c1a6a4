package server

import (
	"encoding/json"
	"math"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/mrcode/glucose-share/internal/models"
	"github.com/samber/lo"
)

const (
	defaultGraphHours = 2.0
	defaultGraphCount = 24
	readingInterval   = 5 // minutes between sensor readings
)

type glucoseResponse struct {
	Time            time.Time        `json:"time"`
	Value           int              `json:"value"`
	PreviousValue   *int             `json:"previous_value"`
	ValueDifference *int             `json:"value_difference"`
	Trend           models.TrendInfo `json:"trend"`
	Status          models.Status    `json:"status"`
	Read            string           `json:"read"`
	MinutesAgo      int              `json:"minutes_ago"`
}

type healthResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Service   string         `json:"service"`
	Watcher   *watcherHealth `json:"watcher,omitempty"`
}

// watcherHealth is present when serve runs with --watch
type watcherHealth struct {
	ConsecutiveErrors int           `json:"consecutive_errors"`
	LastSuccess       string        `json:"last_success,omitempty"`
	LastValue         *int          `json:"last_value"`
	LastStatus        models.Status `json:"last_status,omitempty"`
}

type graphPoint struct {
	Time  time.Time        `json:"time"`
	Value int              `json:"value"`
	Trend models.TrendInfo `json:"trend"`
}

type graphResponse struct {
	Count    int          `json:"count"`
	Hours    float64      `json:"hours"`
	Readings []graphPoint `json:"readings"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "Glucose Share",
		"description": "Dexcom Share glucose proxy",
		"version":     s.config.Version,
		"endpoints": map[string]string{
			"GET /health":                "Service health check",
			"GET /api/glucose":           "Latest glucose reading",
			"GET /api/graph?hours=2":     "Readings for the last hours",
			"GET /api/glucose/badge.png": "Badge image of the latest reading",
			"POST /api/alexa":            "Alexa skill endpoint",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339Nano),
		Service:   ServiceName,
	}

	if s.config.Watcher != nil {
		snap := s.config.Watcher.Snapshot()
		wh := &watcherHealth{ConsecutiveErrors: snap.ConsecutiveErrors}
		if !snap.LastSuccess.IsZero() {
			wh.LastSuccess = snap.LastSuccess.UTC().Format(time.RFC3339)
		}
		if snap.LastReading != nil {
			wh.LastValue = &snap.LastReading.Value
			wh.LastStatus = snap.LastReading.Status
		}
		resp.Watcher = wh
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGlucose(w http.ResponseWriter, r *http.Request) {
	reading, err := s.source.GetLatestGlucose(r.Context())
	if err != nil {
		s.logger.Error("Error fetching glucose", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reading == nil {
		writeError(w, http.StatusNotFound, "No glucose reading found")
		return
	}

	writeJSON(w, http.StatusOK, glucoseResponse{
		Time:            reading.Time,
		Value:           reading.Value,
		PreviousValue:   reading.PreviousValue,
		ValueDifference: reading.ValueDifference,
		Trend:           reading.Trend,
		Status:          reading.Status,
		Read:            reading.TimeAgo,
		MinutesAgo:      reading.MinutesAgo,
	})
}

// parseHours reads the hours query value. Missing, unparsable or zero values
// fall back to the default; negative ones are rejected.
func parseHours(raw string) (float64, bool) {
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil || hours == 0 || math.IsNaN(hours) {
		return defaultGraphHours, true
	}
	if hours < 0 || math.IsInf(hours, 0) {
		return 0, false
	}
	return hours, true
}

// graphWindow converts hours to a reading count and a whole-minute window
func graphWindow(hours float64) (maxReadings, minutes int) {
	maxReadings = int(math.Round(hours * 60 / readingInterval))
	if maxReadings == 0 {
		maxReadings = defaultGraphCount
	}
	minutes = max(1, int(math.Ceil(hours*60)))
	return maxReadings, minutes
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	hours, ok := parseHours(r.URL.Query().Get("hours"))
	if !ok {
		writeError(w, http.StatusBadRequest, "hours must be a positive number")
		return
	}

	maxReadings, minutes := graphWindow(hours)

	readings, err := s.source.GetGlucoseReadings(r.Context(), maxReadings, minutes)
	if err != nil {
		s.logger.Error("Error fetching graph data", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(readings) == 0 {
		writeError(w, http.StatusNotFound, "No glucose readings found")
		return
	}

	points := lo.Map(readings, func(r models.Reading, _ int) graphPoint {
		return graphPoint{Time: r.Time, Value: r.Value, Trend: r.Trend}
	})

	writeJSON(w, http.StatusOK, graphResponse{
		Count:    len(points),
		Hours:    hours,
		Readings: points,
	})
}

// latestForImage fetches the reading for an image. Errors render the grey
// placeholder so embedded badges never break.
func (s *Server) latestForImage(r *http.Request) *models.Reading {
	reading, err := s.source.GetLatestGlucose(r.Context())
	if err != nil {
		s.logger.Warn("Badge without reading", "error", err)
		return nil
	}
	return reading
}

func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	data, err := s.badges.Render(s.latestForImage(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeImage(w, "image/png", data)
}

func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	data, err := s.badges.RenderICO(s.latestForImage(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeImage(w, "image/x-icon", data)
}

// serveStatic serves files from the static dir, or a JSON 404
func (s *Server) serveStatic(w http.ResponseWriter, r *http.Request) {
	if s.config.StaticDir != "" && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
		dir := http.Dir(s.config.StaticDir)
		if f, err := dir.Open(path.Clean(r.URL.Path)); err == nil {
			_ = f.Close()
			http.FileServer(dir).ServeHTTP(w, r)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Endpoint not found")
}

func writeImage(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache, max-age=0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
