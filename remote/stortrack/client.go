// Package stortrack is a client for the paid historical-rates API.
package stortrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rca-rates/models"
	"rca-rates/utils"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	Username   string
	Password   string
	Timeout    time.Duration
	MaxRetries int
	// MaxRPS caps outgoing requests per second, retries and token refreshes
	// included. Zero disables the cap.
	MaxRPS float64
	// BaseDelay is the first retry back-off; it doubles per attempt.
	BaseDelay time.Duration
}

// Client authenticates with username/password and fetches historical rates
// per store and date span.
type Client struct {
	baseURL    *url.URL
	username   string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      *utils.RetryConfig
	logger     *utils.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New creates a ready-to-use Client.
func New(opts Options, logger *utils.Logger) (*Client, error) {
	base := opts.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("stortrack: base url: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.MaxRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.MaxRPS), 1)
	}
	delay := opts.BaseDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}

	return &Client{
		baseURL:    u,
		username:   opts.Username,
		password:   opts.Password,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    limiter,
		retry: &utils.RetryConfig{
			MaxAttempts: opts.MaxRetries,
			BaseDelay:   delay,
			Logger:      logger,
		},
		logger: logger,
	}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type historicalRequest struct {
	StoreID  string `json:"storeid"`
	FromDate string `json:"fromdate"`
	ToDate   string `json:"todate"`
}

// FetchRange returns the rates for storeID between from and to inclusive.
// An empty response yields a nil payload and a nil error.
func (c *Client) FetchRange(ctx context.Context, storeID models.StoreID, from, to time.Time) (*models.APIRatePayload, error) {
	reqBody, err := json.Marshal(historicalRequest{
		StoreID:  string(storeID),
		FromDate: from.Format(models.DateLayout),
		ToDate:   to.Format(models.DateLayout),
	})
	if err != nil {
		return nil, err
	}

	var payload *models.APIRatePayload
	op := fmt.Sprintf("historicaldata %s %s..%s", storeID, from.Format(models.DateLayout), to.Format(models.DateLayout))
	err = c.retry.Do(ctx, op, func() error {
		body, err := c.post(ctx, "historicaldata", reqBody)
		if err != nil {
			return err
		}
		payload, err = DecodePayload(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// post sends an authenticated JSON request. A nil body with nil error means
// the API answered "nothing here".
func (c *Client) post(ctx context.Context, path string, body []byte) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath(path).String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized:
		c.invalidateToken()
		return nil, fmt.Errorf("unauthorized")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("%w: status %d: %s", utils.ErrPermanent, resp.StatusCode, snippet(data))
	}
	return data, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}
	if c.username == "" || c.password == "" {
		return "", fmt.Errorf("%w: API credentials are not configured", utils.ErrPermanent)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait failed: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.JoinPath("authtoken").String(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest {
		return "", fmt.Errorf("%w: authenticate: status %d", utils.ErrPermanent, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authenticate: status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("authenticate: decode: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: authenticate: empty token", utils.ErrPermanent)
	}

	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	c.token = tr.AccessToken
	c.tokenExpiry = time.Now().Add(ttl - refreshMargin(ttl))
	c.logger.Debug("[stortrack] token refreshed, valid for %v", ttl)
	return c.token, nil
}

// refreshMargin is how long before expiry a token is renewed: a minute, or a
// tenth of the lifetime for tokens that live less than ten minutes.
func refreshMargin(ttl time.Duration) time.Duration {
	if m := ttl / 10; m < time.Minute {
		return m
	}
	return time.Minute
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
}

// DecodePayload accepts the response shapes the API is known to return: a
// single store object, an array of store objects, or a bare array of rates.
// Blank input decodes to nil.
func DecodePayload(body []byte) (*models.APIRatePayload, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	if body[0] == '{' {
		var p models.APIRatePayload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: decode payload: %v", utils.ErrPermanent, err)
		}
		return &p, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", utils.ErrPermanent, err)
	}

	out := &models.APIRatePayload{}
	for _, item := range items {
		// non-object items carry no rate
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			continue
		}
		if _, nested := fields["rates"]; nested {
			var p models.APIRatePayload
			if err := json.Unmarshal(item, &p); err == nil {
				if out.StoreID == nil {
					out.StoreID = p.StoreID
				}
				out.Rates = append(out.Rates, p.Rates...)
			}
			continue
		}
		var r models.APIRate
		if err := json.Unmarshal(item, &r); err == nil {
			out.Rates = append(out.Rates, r)
		}
	}
	return out, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
