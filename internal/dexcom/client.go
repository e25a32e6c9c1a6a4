// Package dexcom provides a client for the Dexcom Share API
package dexcom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mrcode/glucose-share/internal/models"
	"golang.org/x/sync/singleflight"
)

// Dexcom rejects requests without a user agent it recognizes
const userAgent = "Dexcom Share/3.0.2.11"

const (
	routeAuthenticate = "/ShareWebServices/Services/General/AuthenticatePublisherAccount"
	routeLogin        = "/ShareWebServices/Services/General/LoginPublisherAccountById"
	routeReadLatest   = "/ShareWebServices/Services/Publisher/ReadPublisherLatestGlucoseValues"

	codeSessionNotFound = "SessionIdNotFound"

	// MinutesLastDay is the window used for the latest reading
	MinutesLastDay = 24 * 60

	// One query plus a single retry after re-authentication
	maxQueryAttempts = 2
)

// Credentials identify one Dexcom Share account
type Credentials struct {
	Username string
	Password string
	Region   Region
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the region's share server, mostly for tests
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithBenchmarks sets the low/high thresholds used for reading status
func WithBenchmarks(b models.Benchmarks) Option {
	return func(c *Client) { c.benchmarks = b }
}

// WithClock sets the clock used for time-ago fields
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// Client handles communication with the Dexcom Share API.
// It is safe for concurrent use.
type Client struct {
	baseURL       string
	username      string
	password      string
	applicationID string
	region        Region
	httpClient    *http.Client
	logger        *slog.Logger
	benchmarks    models.Benchmarks
	now           func() time.Time

	mu        sync.Mutex
	accountID uuid.UUID // uuid.Nil until the first successful authenticate
	sessionID uuid.UUID // uuid.Nil until login, cleared on SessionIdNotFound
	auth      singleflight.Group
}

// NewClient creates a new Dexcom Share client
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, &ConfigurationError{Message: "username and password must be set"}
	}

	profile, err := creds.Region.Profile()
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:       profile.BaseURL,
		username:      creds.Username,
		password:      creds.Password,
		applicationID: profile.ApplicationID,
		region:        creds.Region,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:     slog.Default(),
		benchmarks: models.DefaultBenchmarks(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Region returns the region the client talks to
func (c *Client) Region() Region {
	return c.region
}

type authenticateRequest struct {
	AccountName   string `json:"accountName"`
	Password      string `json:"password"`
	ApplicationID string `json:"applicationId"`
}

type loginRequest struct {
	AccountID     string `json:"accountId"`
	Password      string `json:"password"`
	ApplicationID string `json:"applicationId"`
}

type apiResponse struct {
	StatusCode int
	Body       []byte
}

func (r *apiResponse) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// buildRequest creates an HTTP request with the headers Dexcom expects
func (c *Client) buildRequest(ctx context.Context, endpoint string, params url.Values, payload any) (*http.Request, error) {
	fullURL := c.baseURL + endpoint
	if params != nil {
		fullURL += "?" + params.Encode()
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	return req, nil
}

// doRequest executes an HTTP request and returns the status and body
func (c *Client) doRequest(req *http.Request) (*apiResponse, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &apiResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

// postForID posts a handshake payload and parses the quoted UUID it returns
func (c *Client) postForID(ctx context.Context, endpoint string, payload any) (uuid.UUID, error) {
	req, err := c.buildRequest(ctx, endpoint, nil, payload)
	if err != nil {
		return uuid.Nil, err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return uuid.Nil, err
	}
	if !resp.ok() {
		return uuid.Nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body)))
	}

	raw := strings.ReplaceAll(strings.TrimSpace(string(resp.Body)), `"`, "")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing id %q: %w", raw, err)
	}
	return id, nil
}

func (c *Client) currentIDs() (account, session uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accountID, c.sessionID
}

// clearSession drops the session id if it is still the expired one
func (c *Client) clearSession(expired uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == expired {
		c.sessionID = uuid.Nil
	}
}

// EnsureSession makes sure a session id is cached, authenticating if needed.
// Concurrent callers share a single handshake.
func (c *Client) EnsureSession(ctx context.Context) error {
	_, err := c.session(ctx)
	return err
}

func (c *Client) session(ctx context.Context) (uuid.UUID, error) {
	if _, sessionID := c.currentIDs(); sessionID != uuid.Nil {
		return sessionID, nil
	}

	// The handshake is shared, so one caller going away must not fail the
	// others. It is bounded by the http client timeout instead.
	shared := context.WithoutCancel(ctx)
	ch := c.auth.DoChan("session", func() (any, error) {
		if _, sessionID := c.currentIDs(); sessionID != uuid.Nil {
			return sessionID, nil
		}
		return c.authenticate(shared)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return uuid.Nil, res.Err
		}
		return res.Val.(uuid.UUID), nil
	case <-ctx.Done():
		return uuid.Nil, &AuthenticationError{Err: ctx.Err()}
	}
}

// authenticate runs the account lookup (once) and the session login
func (c *Client) authenticate(ctx context.Context) (uuid.UUID, error) {
	accountID, _ := c.currentIDs()

	if accountID == uuid.Nil {
		c.logger.Debug("Getting account ID", "region", c.region)

		id, err := c.postForID(ctx, routeAuthenticate, authenticateRequest{
			AccountName:   c.username,
			Password:      c.password,
			ApplicationID: c.applicationID,
		})
		if err != nil {
			return uuid.Nil, &AuthenticationError{Err: fmt.Errorf("account authentication failed: %w", err)}
		}
		if id == uuid.Nil {
			return uuid.Nil, &AuthenticationError{Err: errors.New("invalid credentials")}
		}

		c.mu.Lock()
		c.accountID = id
		c.mu.Unlock()
		accountID = id
	}

	c.logger.Debug("Getting session ID", "region", c.region)

	sessionID, err := c.postForID(ctx, routeLogin, loginRequest{
		AccountID:     accountID.String(),
		Password:      c.password,
		ApplicationID: c.applicationID,
	})
	if err != nil {
		return uuid.Nil, &AuthenticationError{Err: fmt.Errorf("session login failed: %w", err)}
	}
	if sessionID == uuid.Nil {
		return uuid.Nil, &AuthenticationError{Err: errors.New("login failed")}
	}

	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()

	return sessionID, nil
}

// readLatest queries raw readings, re-authenticating once if the session expired
func (c *Client) readLatest(ctx context.Context, minutes, maxCount int) ([]models.RawReading, error) {
	var lastErr error

	for attempt := 1; attempt <= maxQueryAttempts; attempt++ {
		sessionID, err := c.session(ctx)
		if err != nil {
			return nil, err
		}

		readings, err := c.queryReadings(ctx, sessionID, minutes, maxCount)
		if errors.Is(err, ErrSessionExpired) {
			c.logger.Info("Dexcom session expired", "attempt", attempt)
			c.clearSession(sessionID)
			lastErr = err
			continue
		}
		return readings, err
	}

	return nil, &RequestError{
		StatusCode: http.StatusInternalServerError,
		Code:       codeSessionNotFound,
		Err:        lastErr,
	}
}

func (c *Client) queryReadings(ctx context.Context, sessionID uuid.UUID, minutes, maxCount int) ([]models.RawReading, error) {
	params := url.Values{}
	params.Set("sessionId", sessionID.String())
	params.Set("minutes", strconv.Itoa(minutes))
	params.Set("maxCount", strconv.Itoa(maxCount))

	req, err := c.buildRequest(ctx, routeReadLatest, params, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusInternalServerError {
		var vendorErr models.VendorError
		if err := json.Unmarshal(resp.Body, &vendorErr); err != nil {
			return nil, &RequestError{
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("decoding error body: %w", err),
			}
		}
		if vendorErr.Code == codeSessionNotFound {
			return nil, ErrSessionExpired
		}
		return nil, &RequestError{
			StatusCode: resp.StatusCode,
			Code:       vendorErr.Code,
			Message:    vendorErr.Message,
		}
	}

	if !resp.ok() {
		return nil, &RequestError{StatusCode: resp.StatusCode}
	}

	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 || body[0] != '[' {
		return nil, &EmptyResultError{Body: truncate(string(body), 120)}
	}

	var readings []models.RawReading
	if err := json.Unmarshal(body, &readings); err != nil {
		c.logger.Debug("Unparsable readings body", "error", err)
		return nil, &EmptyResultError{Body: truncate(string(body), 120)}
	}

	return readings, nil
}

// GetLatestGlucose returns the most recent reading with the change from the
// one before it. It returns nil and no error when Dexcom has no readings.
func (c *Client) GetLatestGlucose(ctx context.Context) (*models.Reading, error) {
	c.logger.Debug("Fetching latest glucose reading")

	raw, err := c.readLatest(ctx, MinutesLastDay, 2)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		c.logger.Info("No glucose readings returned")
		return nil, nil
	}

	reading, err := c.formatReading(raw[0])
	if err != nil {
		return nil, err
	}

	if len(raw) > 1 && raw[1].Value != nil {
		previous := *raw[1].Value
		difference := reading.Value - previous
		reading.PreviousValue = &previous
		reading.ValueDifference = &difference
		c.logger.Debug("Value difference between latest readings", "difference", difference)
	}

	return reading, nil
}

// GetGlucoseReadings returns up to maxReadings readings from the last
// minutes, newest first. Previous value and difference are not filled in.
func (c *Client) GetGlucoseReadings(ctx context.Context, maxReadings, minutes int) ([]models.Reading, error) {
	if maxReadings < 1 || minutes < 1 {
		return nil, &ConfigurationError{
			Message: fmt.Sprintf("maxReadings (%d) and minutes (%d) must be positive", maxReadings, minutes),
		}
	}

	raw, err := c.readLatest(ctx, minutes, maxReadings)
	if err != nil {
		return nil, err
	}

	readings := make([]models.Reading, 0, len(raw))
	for i := range raw {
		reading, err := c.formatReading(raw[i])
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i, err)
		}
		readings = append(readings, *reading)
	}

	return readings, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
