package meridian

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production Meridian platform.
const DefaultBaseURL = "https://meridianlive.io"

const (
	apiPrefix    = "/api/front/v1"
	loginPath    = "/api/login/v2/login"
	userinfoPath = "/api/login/v2/userinfo"

	// tokenMargin forces a refresh when the access token has less than
	// this lifetime remaining.
	tokenMargin = 30 * time.Minute

	maxErrorBody = 8 << 10
)

// transport owns the HTTP mechanics shared by all client operations:
// token refresh, request pacing, retries, and request logging.
type transport struct {
	baseURL    string
	httpClient *http.Client
	log        *logrus.Logger
	limiter    *rate.Limiter
	retry      RetryConfig
	metrics    *ClientMetrics

	refreshToken string

	mu        sync.Mutex
	token     string
	uid       string
	expiresAt time.Time
}

func newTransport(cfg ClientConfig, refreshToken string, log *logrus.Logger) *transport {
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 3
	}
	if retry.InitialDelay <= 0 {
		retry.InitialDelay = 500 * time.Millisecond
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	t := &transport{
		baseURL:      baseURL,
		httpClient:   httpClient,
		log:          log,
		retry:        retry,
		metrics:      cfg.Metrics,
		refreshToken: refreshToken,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return t
}

// accessToken returns a bearer token, exchanging the refresh token when
// the cached one is missing or inside the expiry margin.
func (t *transport) accessToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token != "" && time.Until(t.expiresAt) > tokenMargin {
		return t.token, nil
	}
	if err := t.refreshLocked(ctx); err != nil {
		return "", err
	}
	return t.token, nil
}

// userID returns the subject of the authenticated user, logging in first
// when needed.
func (t *transport) userID(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.uid != "" && time.Until(t.expiresAt) > tokenMargin {
		return t.uid, nil
	}
	if err := t.refreshLocked(ctx); err != nil {
		return "", err
	}
	return t.uid, nil
}

// invalidate drops the cached token so the next request logs in again.
func (t *transport) invalidate() {
	t.mu.Lock()
	t.token = ""
	t.mu.Unlock()
}

func (t *transport) refreshLocked(ctx context.Context) error {
	form := url.Values{
		"grant_type":    []string{"refresh_token"},
		"refresh_token": []string{t.refreshToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: login returned %s: %s", ErrAuth, resp.Status, strings.TrimSpace(string(body)))
	}
	var auth struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return fmt.Errorf("%w: decoding login response: %v", ErrAuth, err)
	}
	if auth.AccessToken == "" {
		return fmt.Errorf("%w: login response carries no access token", ErrAuth)
	}
	if auth.ExpiresIn <= 0 {
		return fmt.Errorf("%w: login response carries no expiry", ErrAuth)
	}

	uid, err := t.fetchUserID(ctx, auth.AccessToken)
	if err != nil {
		return err
	}

	t.token = auth.AccessToken
	t.uid = uid
	t.expiresAt = time.Now().Add(time.Duration(auth.ExpiresIn) * time.Second)
	t.log.WithField("expires_at", t.expiresAt.Format(time.RFC3339)).Debug("access token refreshed")
	return nil
}

func (t *transport) fetchUserID(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+userinfoPath, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: userinfo returned %s", ErrAuth, resp.Status)
	}
	var info struct {
		Sub string `json:"sub"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("%w: decoding userinfo response: %v", ErrAuth, err)
	}
	if info.Sub == "" {
		return "", fmt.Errorf("%w: userinfo response carries no subject", ErrAuth)
	}
	return info.Sub, nil
}

// do executes one API request with retries. A 2xx response is decoded
// into out when out is non-nil. Transport failures, 5xx, 429 and 401
// responses are retried with exponential backoff; other statuses return
// an *APIError immediately.
func (t *transport) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", op, err)
		}
	}
	u := t.baseURL + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	delay := t.retry.InitialDelay
	var lastErr error
	for attempt := 1; attempt <= t.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jitter(delay)):
			}
			delay *= 2
			if delay > t.retry.MaxDelay {
				delay = t.retry.MaxDelay
			}
		}
		again, err := t.roundTrip(ctx, op, method, u, payload, out)
		if err == nil {
			return nil
		}
		if !again {
			return err
		}
		lastErr = err
		t.log.WithFields(logrus.Fields{
			"operation": op,
			"attempt":   attempt,
			"error":     err,
		}).Warn("request failed")
	}
	return fmt.Errorf("%s: %d attempts failed: %w", op, t.retry.MaxAttempts, lastErr)
}

// roundTrip performs a single attempt. The bool reports whether the
// failure is worth another attempt.
func (t *transport) roundTrip(ctx context.Context, op, method, u string, payload []byte, out any) (bool, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return false, err
		}
	}
	token, err := t.accessToken(ctx)
	if err != nil {
		return false, err
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	elapsed := time.Since(start)
	t.metrics.observe(op, resp.StatusCode, elapsed)
	t.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"operation":  op,
		"method":     method,
		"status":     resp.StatusCode,
		"duration":   elapsed.String(),
	}).Debug("platform request")

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return false, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("decoding %s response: %w", op, err)
		}
		return false, nil
	case resp.StatusCode == http.StatusUnauthorized:
		t.invalidate()
		return true, apiError(resp, requestID)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, apiError(resp, requestID)
	default:
		return false, apiError(resp, requestID)
	}
}

func apiError(resp *http.Response, requestID string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
		RequestID:  requestID,
	}
}

// jitter spreads a delay by up to ten percent either way.
func jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	n := d / 10
	return d - n + time.Duration(rand.Int63n(int64(2*n)+1))
}

// timeFormat matches the platform's second-resolution UTC timestamps.
const timeFormat = "2006-01-02T15:04:05Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeFormat) }
