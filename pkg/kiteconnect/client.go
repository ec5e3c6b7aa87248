// Package kiteconnect is a minimal Kite Connect v3 HTTP client covering the
// session and historical-data endpoints this system needs.
//
// Usage example:
//
//	kc := kiteconnect.New(kiteconnect.Config{APIKey: "key", APISecret: "secret"})
//	if err := kc.GenerateSession("request_token"); err != nil { log.Fatal(err) }
//	candles, err := kc.GetHistoricalData(ctx, "738561", from, to)
package kiteconnect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"
)

const (
	defaultRoot    = "https://api.kite.trade"
	defaultTimeout = 10 * time.Second

	// Kite allows 3 historical requests per second; space them out.
	minRequestGap = 350 * time.Millisecond
)

var routes = map[string]string{
	"api.session.token":   "/session/token",
	"api.session.delete":  "/session/token",
	"api.user.profile":    "/user/profile",
	"api.historical":      "/instruments/historical/%s/%s",
	"api.quote.ltp":       "/quote/ltp",
	"api.instruments.nse": "/instruments/NSE",
}

// Config configures the client.
type Config struct {
	APIKey      string
	APISecret   string
	AccessToken string // reuse an existing session

	RootURL string        // default: https://api.kite.trade
	Timeout time.Duration // default: 10s
	Debug   bool
}

// Client is a Kite Connect v3 API client. Safe for concurrent use; requests
// are internally rate-limited.
type Client struct {
	apiKey      string
	apiSecret   string
	accessToken string

	rootURL    string
	debug      bool
	httpClient *http.Client

	mu          sync.Mutex
	lastRequest time.Time

	// SessionExpiryHook, if set, is called when the API rejects the
	// access token (HTTP 403 TokenException).
	SessionExpiryHook func()
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.RootURL == "" {
		cfg.RootURL = defaultRoot
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		accessToken: cfg.AccessToken,
		rootURL:     strings.TrimRight(cfg.RootURL, "/"),
		debug:       cfg.Debug,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// SetAccessToken installs a session token obtained elsewhere.
func (c *Client) SetAccessToken(token string) { c.accessToken = token }

// AccessToken returns the current session token.
func (c *Client) AccessToken() string { return c.accessToken }

// GenerateTOTP computes the current time-based OTP for the given base32
// secret. Used to automate the Kite login flow that yields a request token.
func GenerateTOTP(secret string) (string, error) {
	code, err := totp.GenerateCode(secret, time.Now())
	if err != nil {
		return "", fmt.Errorf("totp: %w", err)
	}
	return code, nil
}

// GenerateSession exchanges a request token for an access token. The
// checksum is SHA-256 over api_key + request_token + api_secret.
func (c *Client) GenerateSession(ctx context.Context, requestToken string) error {
	sum := sha256.Sum256([]byte(c.apiKey + requestToken + c.apiSecret))
	form := url.Values{}
	form.Set("api_key", c.apiKey)
	form.Set("request_token", requestToken)
	form.Set("checksum", hex.EncodeToString(sum[:]))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.rootURL+routes["api.session.token"], strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Kite-Version", "3")

	body, err := c.do(req)
	if err != nil {
		return fmt.Errorf("kite session: %w", err)
	}

	var out struct {
		Data struct {
			AccessToken string `json:"access_token"`
			UserID      string `json:"user_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("kite session: parse: %w", err)
	}
	if out.Data.AccessToken == "" {
		return fmt.Errorf("kite session: empty access token")
	}
	c.accessToken = out.Data.AccessToken
	log.Printf("[kite] session established for user %s", out.Data.UserID)
	return nil
}

// Candle is one historical OHLCV record as returned by Kite. Prices are in
// rupees; conversion to paise happens at the ingest boundary.
type Candle struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// GetHistoricalData fetches daily candles for an instrument token over
// [from, to]. Kite caps one request at roughly 2000 daily candles, plenty
// for a multi-year backfill in a few calls.
func (c *Client) GetHistoricalData(ctx context.Context, instrumentToken string, from, to time.Time) ([]Candle, error) {
	path := fmt.Sprintf(routes["api.historical"], instrumentToken, "day")
	q := url.Values{}
	q.Set("from", from.Format("2006-01-02"))
	q.Set("to", to.Format("2006-01-02"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.rootURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.setAuthHeaders(req)

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("kite historical %s: %w", instrumentToken, err)
	}

	var out struct {
		Data struct {
			Candles [][]json.RawMessage `json:"candles"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("kite historical %s: parse: %w", instrumentToken, err)
	}

	candles := make([]Candle, 0, len(out.Data.Candles))
	for _, row := range out.Data.Candles {
		candle, err := parseCandle(row)
		if err != nil {
			return nil, fmt.Errorf("kite historical %s: %w", instrumentToken, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

// parseCandle decodes one [timestamp, open, high, low, close, volume] row.
func parseCandle(row []json.RawMessage) (Candle, error) {
	if len(row) < 6 {
		return Candle{}, fmt.Errorf("candle row has %d fields, want 6", len(row))
	}
	var ts string
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return Candle{}, fmt.Errorf("candle timestamp: %w", err)
	}
	// Kite timestamps carry the exchange offset, e.g. "2024-01-02T00:00:00+0530".
	date, err := parseKiteTime(ts)
	if err != nil {
		return Candle{}, err
	}

	var c Candle
	c.Date = date
	fields := []*float64{&c.Open, &c.High, &c.Low, &c.Close}
	for i, dst := range fields {
		if err := json.Unmarshal(row[i+1], dst); err != nil {
			return Candle{}, fmt.Errorf("candle field %d: %w", i+1, err)
		}
	}
	var vol float64
	if err := json.Unmarshal(row[5], &vol); err != nil {
		return Candle{}, fmt.Errorf("candle volume: %w", err)
	}
	c.Volume = int64(vol)
	return c, nil
}

func parseKiteTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02T15:04:05-0700", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized candle timestamp %q", s)
}

// InvalidateSession deletes the current session token.
func (c *Client) InvalidateSession(ctx context.Context) error {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("access_token", c.accessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.rootURL+routes["api.session.delete"]+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	c.setAuthHeaders(req)
	_, err = c.do(req)
	return err
}

func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("X-Kite-Version", "3")
	req.Header.Set("Authorization", "token "+c.apiKey+":"+c.accessToken)
}

// do enforces the rate limit, executes the request, and surfaces Kite API
// errors ({"status":"error","error_type":...,"message":...}).
func (c *Client) do(req *http.Request) ([]byte, error) {
	c.throttle()

	if c.debug {
		log.Printf("[kite] %s %s", req.Method, req.URL)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			ErrorType string `json:"error_type"`
			Message   string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.ErrorType != "" {
			if resp.StatusCode == http.StatusForbidden && apiErr.ErrorType == "TokenException" && c.SessionExpiryHook != nil {
				c.SessionExpiryHook()
			}
			return nil, fmt.Errorf("%s: %s", apiErr.ErrorType, apiErr.Message)
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *Client) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wait := minRequestGap - time.Since(c.lastRequest); wait > 0 {
		time.Sleep(wait)
	}
	c.lastRequest = time.Now()
}
