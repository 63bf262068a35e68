package sportsbook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/mwhitcomb/parlayd/pkg/bettor/parlay"
)

const (
	// Rate limits for the props API
	defaultRateLimit = 5.0 // requests per second
	defaultBurst     = 3

	maxRetries = 3
	retryDelay = 500 * time.Millisecond
)

// PropsBook is a player-prop bookmaker reached over HTTP.
type PropsBook struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter

	// API league codes differ from the sport names the engine uses.
	leagues map[string]string
}

// PropsOption configures the props book client.
type PropsOption func(*PropsBook)

// WithBaseURL sets a custom base URL.
func WithBaseURL(url string) PropsOption {
	return func(b *PropsBook) {
		b.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) PropsOption {
	return func(b *PropsBook) {
		b.httpClient = client
	}
}

// WithRateLimit sets custom rate limiting.
func WithRateLimit(rps float64, burst int) PropsOption {
	return func(b *PropsBook) {
		b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithAPIKey sets the API key sent on every request.
func WithAPIKey(key string) PropsOption {
	return func(b *PropsBook) {
		b.apiKey = key
	}
}

// NewPropsBook creates a props book client.
func NewPropsBook(name, baseURL string, opts ...PropsOption) *PropsBook {
	b := &PropsBook{
		name:    name,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		leagues: map[string]string{
			"nba":    "basketball_nba",
			"nfl":    "americanfootball_nfl",
			"nhl":    "icehockey_nhl",
			"mlb":    "baseball_mlb",
			"ncaamb": "basketball_ncaab",
		},
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Name implements Sportsbook.
func (b *PropsBook) Name() string { return b.name }

type propsPriceEntry struct {
	EventID string  `json:"event_id"`
	Price   float64 `json:"price"`
}

// FetchPrices implements Sportsbook.
func (b *PropsBook) FetchPrices(ctx context.Context, sport string, eventIDs []string) (PriceMap, error) {
	params := url.Values{}
	params.Set("league", b.leagueCode(sport))
	params.Set("event_ids", strings.Join(eventIDs, ","))

	var entries []propsPriceEntry
	if err := b.get(ctx, "/v1/prices", params, &entries); err != nil {
		return nil, err
	}

	out := make(PriceMap, len(entries))
	for _, e := range entries {
		out[e.EventID] = e.Price
	}
	return out, nil
}

type propsOrderLeg struct {
	EventID   string  `json:"event_id"`
	Selection string  `json:"selection"`
	Price     float64 `json:"price"`
}

type propsOrderRequest struct {
	Legs  []propsOrderLeg `json:"legs"`
	Stake string          `json:"stake"`
	Price float64         `json:"price"`
}

type propsOrderResponse struct {
	OrderID string `json:"order_id"`
	State   string `json:"state"`
	Result  string `json:"result"`
}

// SubmitOrder implements Sportsbook.
func (b *PropsBook) SubmitOrder(ctx context.Context, legs []parlay.Leg, stake decimal.Decimal, price float64) (string, error) {
	if len(legs) == 0 {
		return "", fmt.Errorf("%s: order has no legs", b.name)
	}

	req := propsOrderRequest{
		Legs:  make([]propsOrderLeg, 0, len(legs)),
		Stake: stake.StringFixed(2),
		Price: price,
	}
	for _, leg := range legs {
		req.Legs = append(req.Legs, propsOrderLeg{
			EventID:   leg.EventID,
			Selection: NormalizeSelection(leg.Selection),
			Price:     leg.Price,
		})
	}

	var resp propsOrderResponse
	if err := b.post(ctx, "/v1/orders", req, &resp); err != nil {
		return "", err
	}
	if resp.OrderID == "" {
		return "", fmt.Errorf("%s: order response missing order_id", b.name)
	}
	return resp.OrderID, nil
}

// PollOrder implements Sportsbook.
func (b *PropsBook) PollOrder(ctx context.Context, orderID string) (OrderStatus, error) {
	var resp propsOrderResponse
	if err := b.get(ctx, "/v1/orders/"+orderID, nil, &resp); err != nil {
		return OrderStatus{}, err
	}
	return OrderStatus{OrderID: resp.OrderID, State: resp.State, Result: resp.Result}, nil
}

func (b *PropsBook) leagueCode(sport string) string {
	if code, ok := b.leagues[strings.ToLower(sport)]; ok {
		return code
	}
	return strings.ToLower(sport)
}

// get performs a rate-limited GET, retrying on 429.
func (b *PropsBook) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	u := b.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return b.do(ctx, "GET", u, nil, result)
}

// post performs a rate-limited POST, retrying on 429.
func (b *PropsBook) post(ctx context.Context, path string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return b.do(ctx, "POST", b.baseURL+path, body, result)
}

func (b *PropsBook) do(ctx context.Context, method, u string, body []byte, result interface{}) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if b.apiKey != "" {
			req.Header.Set("X-Api-Key", b.apiKey)
		}

		resp, err := b.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("http request: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			lastErr = fmt.Errorf("api error %d: rate limited", resp.StatusCode)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay * time.Duration(attempt+1)):
			}
			continue
		}

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			respBody, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("api error %d: %s", resp.StatusCode, string(respBody))
		}

		err = json.NewDecoder(resp.Body).Decode(result)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return lastErr
}
