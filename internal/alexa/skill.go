// Package alexa answers Alexa custom skill requests with the latest reading
package alexa

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mrcode/glucose-share/internal/models"
)

// Request and intent names the skill handles
const (
	RequestLaunch       = "LaunchRequest"
	RequestIntent       = "IntentRequest"
	RequestSessionEnded = "SessionEndedRequest"

	IntentGetGlucose = "GetGlucoseIntent"
	IntentHelp       = "AMAZON.HelpIntent"
	IntentCancel     = "AMAZON.CancelIntent"
	IntentStop       = "AMAZON.StopIntent"
)

// Fixed answers
const (
	SayHelp    = "The Glucose Share skill tells you your latest blood glucose reading."
	SayGoodbye = "Goodbye. Remember to eat more steak and salad!"
	SayError   = "Sorry, I can't read the glucose data at this time."
)

// RequestEnvelope is the subset of the Alexa request body the skill reads
type RequestEnvelope struct {
	Version string  `json:"version"`
	Request Request `json:"request"`
}

// Request describes what the user asked for
type Request struct {
	Type      string  `json:"type"`
	RequestID string  `json:"requestId"`
	Timestamp string  `json:"timestamp"`
	Locale    string  `json:"locale"`
	Intent    *Intent `json:"intent,omitempty"`
}

// Intent is set on IntentRequest
type Intent struct {
	Name string `json:"name"`
}

// ResponseEnvelope is the Alexa response body
type ResponseEnvelope struct {
	Version  string   `json:"version"`
	Response Response `json:"response"`
}

// Response holds the speech to play
type Response struct {
	OutputSpeech     *OutputSpeech `json:"outputSpeech,omitempty"`
	ShouldEndSession bool          `json:"shouldEndSession"`
}

// OutputSpeech is a PlainText speech item
type OutputSpeech struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Source provides the latest reading
type Source interface {
	GetLatestGlucose(ctx context.Context) (*models.Reading, error)
}

// Skill handles Alexa requests
type Skill struct {
	source      Source
	logger      *slog.Logger
	formatValue func(mgdl int) string
}

// NewSkill creates a skill. A nil formatter speaks mg/dL values.
func NewSkill(source Source, logger *slog.Logger, formatValue func(int) string) *Skill {
	if logger == nil {
		logger = slog.Default()
	}
	if formatValue == nil {
		formatValue = strconv.Itoa
	}
	return &Skill{
		source:      source,
		logger:      logger,
		formatValue: formatValue,
	}
}

// Handle builds the response for one request
func (s *Skill) Handle(ctx context.Context, env *RequestEnvelope) *ResponseEnvelope {
	req := env.Request

	intent := ""
	if req.Intent != nil {
		intent = req.Intent.Name
	}

	switch {
	case req.Type == RequestLaunch,
		req.Type == RequestIntent && intent == IntentGetGlucose:
		return speak(s.latest(ctx))
	case req.Type == RequestIntent && intent == IntentHelp:
		return speak(SayHelp)
	case req.Type == RequestIntent && (intent == IntentCancel || intent == IntentStop):
		return speak(SayGoodbye)
	case req.Type == RequestSessionEnded:
		return speak(SayGoodbye)
	default:
		s.logger.Warn("Unhandled Alexa request", "type", req.Type, "intent", intent)
		return speak(SayError)
	}
}

func (s *Skill) latest(ctx context.Context) string {
	reading, err := s.source.GetLatestGlucose(ctx)
	if err != nil {
		s.logger.Error("Alexa glucose lookup failed", "error", err)
		return SayError
	}
	if reading == nil {
		return SayError
	}
	return Speech(reading, s.formatValue)
}

// ServeHTTP decodes an Alexa request and writes the response
func (s *Skill) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var env RequestEnvelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Invalid Alexa request"})
		return
	}

	resp := s.Handle(r.Context(), &env)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("Failed to write Alexa response", "error", err)
	}
}

// Speech renders a reading as a spoken sentence
func Speech(r *models.Reading, formatValue func(int) string) string {
	if formatValue == nil {
		formatValue = strconv.Itoa
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s and %s.", formatValue(r.Value), strings.ToLower(r.Trend.Name))

	if r.ValueDifference != nil {
		diff := *r.ValueDifference
		switch {
		case diff > 0:
			fmt.Fprintf(&sb, " This is %s higher than your previous reading.", formatValue(diff))
		case diff < 0:
			fmt.Fprintf(&sb, " This is %s lower than your previous reading.", formatValue(-diff))
		default:
			sb.WriteString(" This is the same as your previous reading.")
		}
	}

	fmt.Fprintf(&sb, " Last checked %s.", r.TimeAgo)
	return sb.String()
}

func speak(text string) *ResponseEnvelope {
	return &ResponseEnvelope{
		Version: "1.0",
		Response: Response{
			OutputSpeech:     &OutputSpeech{Type: "PlainText", Text: text},
			ShouldEndSession: true,
		},
	}
}
