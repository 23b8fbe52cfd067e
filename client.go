package meridian

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

//go:generate go run github.com/golang/mock/mockgen -destination=./mocks/platform_api.go -package=mocks . PlatformAPI

// PlatformAPI is the low-level surface of the Meridian platform consumed
// by the readers. Client implements it against the production HTTP API;
// tests substitute the generated mock in mocks/.
type PlatformAPI interface {
	// ListFacilities lists the facilities the authenticated user may
	// access.
	ListFacilities(ctx context.Context) ([]Facility, error)

	// ListDevices lists the devices reported by one facility agent.
	ListDevices(ctx context.Context, orgID, agentID string) ([]Device, error)

	// GetPointIDs resolves point aliases to point ids in a single batched
	// call. Aliases unknown to the agent are absent from the returned map.
	GetPointIDs(ctx context.Context, orgID, agentID string, aliases []string) (map[string]string, error)

	// GetHistoricalValues fetches one page of aggregated samples for the
	// requested points. Callers follow HistoricalPage.Next until empty.
	GetHistoricalValues(ctx context.Context, orgID, agentID string, req HistoricalRequest) (*HistoricalPage, error)

	// GetHourlyRates fetches hourly energy rates covering [since, until).
	GetHourlyRates(ctx context.Context, orgID, agentID string, since, until time.Time) (*HourlyRates, error)
}

// HistoricalRequest parameterizes one historical-value query.
type HistoricalRequest struct {
	// PointIDs lists the points to read, at most the platform batch limit.
	PointIDs []string

	// Start and End bound the query window. Zero values default to ten
	// minutes ago and now.
	Start time.Time
	End   time.Time

	// Interval is the aggregation bucket width. Defaults to one minute.
	Interval time.Duration

	// AggregateBy lists the aggregations to compute. Defaults to average.
	AggregateBy []AggregateBy

	// ChangesOnly restricts discrete points to value transitions.
	ChangesOnly bool

	// Unscaled reports analog values in raw counts instead of physical
	// units.
	Unscaled bool

	// PageToken continues a paginated response.
	PageToken string
}

// RetryConfig bounds the retry loop for transient request failures.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// ClientConfig configures a Client. Zero fields fall back to the defaults
// described on each field.
type ClientConfig struct {
	// RefreshToken authenticates the client. When empty the token is read
	// from the MERIDIAN_REFRESH_TOKEN environment variable, then from the
	// credentials file.
	RefreshToken string

	// CredentialsFile overrides the default credentials file location,
	// ~/.config/meridian/config.toml.
	CredentialsFile string

	// BaseURL overrides the production platform URL.
	BaseURL string

	// HTTPClient overrides the underlying HTTP client. Timeout is ignored
	// when set.
	HTTPClient *http.Client

	// Timeout bounds each HTTP request. Defaults to 30 seconds.
	Timeout time.Duration

	// Logger receives request-level logs. Defaults to a stderr logger at
	// warn level.
	Logger *logrus.Logger

	// Debug raises the default logger to debug level. Ignored when Logger
	// is set.
	Debug bool

	// RateLimit caps outgoing requests per second, with bursts of up to
	// RateBurst. Zero disables client-side pacing.
	RateLimit float64
	RateBurst int

	// Retry controls retries of transient request failures.
	Retry RetryConfig

	// Metrics, when set, records request counts and latencies.
	Metrics *ClientMetrics
}

// DefaultClientConfig returns the configuration the production SDK ships
// with: 30 second timeout, 5 req/s with bursts of 10, and 3 attempts with
// backoff between 500ms and 10s.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:   DefaultBaseURL,
		Timeout:   30 * time.Second,
		RateLimit: 5,
		RateBurst: 10,
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     10 * time.Second,
		},
	}
}

// Client is the production implementation of PlatformAPI. It exchanges a
// refresh token for access tokens as needed, retries transient failures,
// and paces requests. A Client is safe for concurrent use.
type Client struct {
	transport *transport
}

var _ PlatformAPI = (*Client)(nil)

// NewClient builds a Client. The refresh token is resolved at
// construction; the first access token is fetched lazily on first use.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.RateLimit < 0 || cfg.RateBurst < 0 {
		return nil, errors.New("meridian: rate limit must be non-negative")
	}
	token, err := resolveRefreshToken(cfg.RefreshToken, cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
		if cfg.Debug {
			log.SetLevel(logrus.DebugLevel)
		} else {
			log.SetLevel(logrus.WarnLevel)
		}
	}
	return &Client{transport: newTransport(cfg, token, log)}, nil
}

// ListFacilities implements PlatformAPI.
func (c *Client) ListFacilities(ctx context.Context) ([]Facility, error) {
	userID, err := c.transport.userID(ctx)
	if err != nil {
		return nil, err
	}
	var out []Facility
	path := fmt.Sprintf("/users/%s/facilities", url.PathEscape(userID))
	query := url.Values{"view": []string{"extended"}}
	if err := c.transport.do(ctx, "list_facilities", http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDevices implements PlatformAPI.
func (c *Client) ListDevices(ctx context.Context, orgID, agentID string) ([]Device, error) {
	var out struct {
		Values []Device `json:"values"`
	}
	path := fmt.Sprintf("/orgs/%s/agents/%s/devices", url.PathEscape(orgID), url.PathEscape(agentID))
	if err := c.transport.do(ctx, "list_devices", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Values, nil
}

// GetPointIDs implements PlatformAPI.
func (c *Client) GetPointIDs(ctx context.Context, orgID, agentID string, aliases []string) (map[string]string, error) {
	payload := struct {
		Names []string `json:"names"`
	}{Names: aliases}
	out := make(map[string]string, len(aliases))
	path := fmt.Sprintf("/orgs/%s/agents/%s/point-ids", url.PathEscape(orgID), url.PathEscape(agentID))
	if err := c.transport.do(ctx, "get_point_ids", http.MethodPost, path, nil, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetHistoricalValues implements PlatformAPI.
func (c *Client) GetHistoricalValues(ctx context.Context, orgID, agentID string, req HistoricalRequest) (*HistoricalPage, error) {
	end := req.End
	if end.IsZero() {
		end = time.Now()
	}
	start := req.Start
	if start.IsZero() {
		start = end.Add(-10 * time.Minute)
	}
	interval := req.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	aggregate := req.AggregateBy
	if len(aggregate) == 0 {
		aggregate = []AggregateBy{AggregateAvg}
	}
	payload := struct {
		PointIDs    []string      `json:"point_ids"`
		Start       string        `json:"start"`
		End         string        `json:"end"`
		Interval    int64         `json:"interval"`
		AggregateBy []AggregateBy `json:"aggregate_by"`
		ChangesOnly bool          `json:"changes_only"`
		Scaled      bool          `json:"scaled"`
		PageToken   string        `json:"page_token,omitempty"`
	}{
		PointIDs:    req.PointIDs,
		Start:       formatTime(start),
		End:         formatTime(end),
		Interval:    int64(interval / time.Second),
		AggregateBy: aggregate,
		ChangesOnly: req.ChangesOnly,
		Scaled:      !req.Unscaled,
		PageToken:   req.PageToken,
	}
	var out HistoricalPage
	path := fmt.Sprintf("/orgs/%s/agents/%s/facility-readings", url.PathEscape(orgID), url.PathEscape(agentID))
	if err := c.transport.do(ctx, "get_historical_values", http.MethodPost, path, nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetHourlyRates implements PlatformAPI.
func (c *Client) GetHourlyRates(ctx context.Context, orgID, agentID string, since, until time.Time) (*HourlyRates, error) {
	if until.IsZero() {
		until = time.Now()
	}
	if since.IsZero() {
		since = until.Add(-24 * time.Hour)
	}
	query := url.Values{
		"since": []string{formatTime(since)},
		"until": []string{formatTime(until)},
	}
	var out HourlyRates
	path := fmt.Sprintf("/orgs/%s/agents/%s/rates", url.PathEscape(orgID), url.PathEscape(agentID))
	if err := c.transport.do(ctx, "get_hourly_rates", http.MethodGet, path, query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
