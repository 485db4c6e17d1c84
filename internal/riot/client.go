package riot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
)

const (
	defaultPlatform      = "euw1"
	defaultMaxRetries    = 5
	defaultRetryAfter    = 10 // seconds, when a 429 carries no Retry-After
	defaultRetryInterval = 500 * time.Millisecond
	maxPageSize          = 100
)

var (
	// ErrNotFound is returned for 400 and 404 responses
	ErrNotFound = errors.New("riot: not found")
	// ErrForbidden is returned for 401 and 403 responses
	ErrForbidden = errors.New("riot: forbidden, check if your API key is valid")
)

// APIError is a non-200 response from the Riot API
type APIError struct {
	StatusCode int
	URL        string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("API returned status %d for %s: %v", e.StatusCode, e.URL, e.Err)
	}
	return fmt.Sprintf("API returned status %d for %s", e.StatusCode, e.URL)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Client is a rate-limited Riot API client bound to one platform
type Client struct {
	apiKey      string
	platform    string
	region      string
	platformURL string
	regionalURL string
	accountURL  string
	httpClient  *http.Client

	maxRetries    uint
	retryInterval time.Duration
	perSecond     int
	per2Min       int
	limiter       *rateLimiter
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithAPIKey sets the API key instead of reading it from the environment
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithPlatform sets the platform routing value (euw1, na1, kr, ...)
func WithPlatform(platform string) ClientOption {
	return func(c *Client) {
		c.platform = platform
	}
}

// WithBaseURLs overrides the platform and regional hosts (useful for testing)
func WithBaseURLs(platformURL, regionalURL string) ClientOption {
	return func(c *Client) {
		c.platformURL = platformURL
		c.regionalURL = regionalURL
		c.accountURL = regionalURL
	}
}

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMaxRetries sets how often a retryable request is retried
func WithMaxRetries(n uint) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryInterval sets the initial backoff interval for 5xx and network errors
func WithRetryInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryInterval = d
	}
}

// WithRateLimits overrides the per-second and per-2-minute request budgets.
// Zero disables a window.
func WithRateLimits(perSecond, per2Min int) ClientOption {
	return func(c *Client) {
		c.perSecond = perSecond
		c.per2Min = per2Min
	}
}

// NewClient creates a new Riot API client
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		platform: defaultPlatform,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries:    defaultMaxRetries,
		retryInterval: defaultRetryInterval,
		perSecond:     requestsPerSecond,
		per2Min:       requestsPer2Min,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("RIOT_API_KEY")
	}
	if c.apiKey == "" {
		// Also check alternative env var name
		c.apiKey = os.Getenv("RIOT-DEV-KEY")
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("RIOT_API_KEY or RIOT-DEV-KEY environment variable not set")
	}

	region, err := RegionFor(c.platform)
	if err != nil {
		return nil, err
	}
	c.region = region
	if c.platformURL == "" {
		c.platformURL = platformBaseURL(c.platform)
	}
	if c.regionalURL == "" {
		c.regionalURL = regionalBaseURL(region)
		c.accountURL = regionalBaseURL(accountRegion(region))
	}
	c.limiter = newRateLimiter(c.perSecond, c.per2Min)

	// Show key prefix for debugging (don't show full key)
	if len(c.apiKey) > 10 {
		log.Printf("[Riot] Using API key: %s...%s (%s via %s)", c.apiKey[:8], c.apiKey[len(c.apiKey)-4:], c.platform, region)
	}

	return c, nil
}

// Platform returns the platform routing value
func (c *Client) Platform() string {
	return c.platform
}

// Region returns the regional routing value
func (c *Client) Region() string {
	return c.region
}

// doRequest makes a rate-limited GET, retrying 429s after Retry-After and
// 5xx or network errors with exponential backoff
func (c *Client) doRequest(ctx context.Context, url string, result interface{}) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInterval
	b.MaxInterval = 30 * time.Second

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, c.get(ctx, url, result)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxRetries+1))

	var retryAfter *backoff.RetryAfterError
	if errors.As(err, &retryAfter) {
		return &APIError{StatusCode: http.StatusTooManyRequests, URL: url, Err: err}
	}
	return err
}

func (c *Client) get(ctx context.Context, url string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("X-Riot-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		log.Printf("[Riot] Request failed, retrying: %v", err)
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode %s: %w", url, err))
		}
		return nil

	case resp.StatusCode == http.StatusTooManyRequests:
		waitTime := defaultRetryAfter
		if s := resp.Header.Get("Retry-After"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n >= 0 {
				waitTime = n
			}
		}
		log.Printf("[Riot] 429 Rate Limited, waiting %d seconds...", waitTime)
		return backoff.RetryAfter(waitTime)

	case resp.StatusCode == http.StatusBadRequest, resp.StatusCode == http.StatusNotFound:
		return backoff.Permanent(&APIError{StatusCode: resp.StatusCode, URL: url, Err: ErrNotFound})

	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return backoff.Permanent(&APIError{StatusCode: resp.StatusCode, URL: url, Err: ErrForbidden})

	case resp.StatusCode >= 500:
		log.Printf("[Riot] Server error %d, retrying", resp.StatusCode)
		return &APIError{StatusCode: resp.StatusCode, URL: url}

	default:
		return backoff.Permanent(&APIError{StatusCode: resp.StatusCode, URL: url})
	}
}

// GetAccountByRiotID fetches account info by Riot ID (gameName#tagLine)
func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*AccountResponse, error) {
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.accountURL, url.PathEscape(gameName), url.PathEscape(tagLine))

	var account AccountResponse
	if err := c.doRequest(ctx, u, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// MatchQuery filters a match history request
type MatchQuery struct {
	StartTime time.Time // inclusive, zero for unbounded
	EndTime   time.Time // exclusive, zero for unbounded
	Queue     int       // 0 for all queues
	Count     int       // total ids wanted, 0 for one full page
}

func (q MatchQuery) values(start, count int) url.Values {
	v := url.Values{}
	if !q.StartTime.IsZero() {
		v.Set("startTime", strconv.FormatInt(q.StartTime.Unix(), 10))
	}
	if !q.EndTime.IsZero() {
		v.Set("endTime", strconv.FormatInt(q.EndTime.Unix(), 10))
	}
	if q.Queue != 0 {
		v.Set("queue", strconv.Itoa(q.Queue))
	}
	v.Set("start", strconv.Itoa(start))
	v.Set("count", strconv.Itoa(count))
	return v
}

// GetMatchHistory fetches match IDs for a player, newest first, paging until
// q.Count ids were returned or the history is exhausted
func (c *Client) GetMatchHistory(ctx context.Context, puuid string, q MatchQuery) ([]string, error) {
	want := q.Count
	if want <= 0 {
		want = maxPageSize
	}

	var matchIDs []string
	for len(matchIDs) < want {
		count := want - len(matchIDs)
		if count > maxPageSize {
			count = maxPageSize
		}
		u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?%s",
			c.regionalURL, url.PathEscape(puuid), q.values(len(matchIDs), count).Encode())

		var page []string
		if err := c.doRequest(ctx, u, &page); err != nil {
			return matchIDs, err
		}
		matchIDs = append(matchIDs, page...)
		if len(page) < count {
			break
		}
	}
	return matchIDs, nil
}

// GetMatch fetches match details
func (c *Client) GetMatch(ctx context.Context, matchID string) (*MatchResponse, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.regionalURL, url.PathEscape(matchID))

	var match MatchResponse
	if err := c.doRequest(ctx, u, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

// GetTimeline fetches match timeline
func (c *Client) GetTimeline(ctx context.Context, matchID string) (*TimelineResponse, error) {
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s/timeline", c.regionalURL, url.PathEscape(matchID))

	var timeline TimelineResponse
	if err := c.doRequest(ctx, u, &timeline); err != nil {
		return nil, err
	}
	return &timeline, nil
}
