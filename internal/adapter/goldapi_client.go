package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/gold-portfolio/internal/errors"
	"github.com/gold-portfolio/internal/logging"
	"github.com/gold-portfolio/internal/models"
	"github.com/gold-portfolio/internal/types"
)

const (
	// ProviderGoldAPI identifies goldapi.io in errors and logs
	ProviderGoldAPI = "goldapi"
	// GoldPriceEndpoint is the XAU/EUR pair path
	GoldPriceEndpoint = "/XAU/EUR"
	// DefaultRequestTimeout is the whole-request budget
	DefaultRequestTimeout = 10 * time.Second

	headerAccessToken = "x-access-token"
	queryAPIKey       = "api_key"
	dateLayout        = "2006-01-02"
	defaultCurrency   = "EUR"
	maxBodyBytes      = 1 << 20
)

// PriceSource fetches gold quotes. Implementations must be safe for
// concurrent use.
type PriceSource interface {
	// GetCurrentPrice returns the latest quote or a *errors.SourceError
	GetCurrentPrice(ctx context.Context) (*models.Quote, error)
	// GetHistoricalPrice returns the price on date (YYYY-MM-DD) when known
	GetHistoricalPrice(ctx context.Context, date string) (float64, bool)
}

// GoldAPIConfig configures a GoldAPIClient
type GoldAPIConfig struct {
	APIKey   string
	BaseURL  string
	AuthMode types.AuthMode
	Timeout  time.Duration
	// RequestsPerSecond paces outgoing calls; zero disables pacing
	RequestsPerSecond float64
	HTTPClient        *http.Client
	Logger            *logging.Logger
}

// GoldAPIClient talks to goldapi.io (or a compatible endpoint)
type GoldAPIClient struct {
	apiKey   string
	baseURL  string
	authMode types.AuthMode
	timeout  time.Duration
	client   *http.Client
	limiter  *rate.Limiter
	logger   *logging.Logger
}

// goldAPIResponse is the subset of the payload we use
type goldAPIResponse struct {
	Price     *float64        `json:"price"`
	Timestamp json.RawMessage `json:"timestamp"`
	Currency  string          `json:"currency"`
}

// NewGoldAPIClient creates a new price client
func NewGoldAPIClient(cfg GoldAPIConfig) *GoldAPIClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRequestTimeout
	}
	if cfg.AuthMode == "" {
		cfg.AuthMode = types.AuthModeHeader
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetGlobalLogger()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &GoldAPIClient{
		apiKey:   cfg.APIKey,
		baseURL:  cfg.BaseURL,
		authMode: cfg.AuthMode,
		timeout:  cfg.Timeout,
		client:   cfg.HTTPClient,
		limiter:  limiter,
		logger:   cfg.Logger.WithField("component", "goldapi_client"),
	}
}

// GetCurrentPrice fetches the latest XAU/EUR quote
func (c *GoldAPIClient) GetCurrentPrice(ctx context.Context) (*models.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.logger.Debugf("price source responded with status %d", resp.StatusCode)

	if err := classifyStatus(resp); err != nil {
		c.logger.WithError(err).Warn("price request rejected")
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}

	var payload goldAPIResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, apperrors.NewSourceError(ProviderGoldAPI, apperrors.KindDecode, err)
	}
	if payload.Price == nil || *payload.Price < 0 {
		return nil, apperrors.NewSourceError(ProviderGoldAPI, apperrors.KindDecode,
			fmt.Errorf("missing or negative price"))
	}

	quote := &models.Quote{
		Price:     *payload.Price,
		Currency:  payload.Currency,
		Timestamp: parseTimestamp(payload.Timestamp),
	}
	if quote.Currency == "" {
		quote.Currency = defaultCurrency
	}
	if quote.Timestamp.IsZero() {
		quote.Timestamp = time.Now().UTC()
	}
	return quote, nil
}

// GetHistoricalPrice fetches the closing price for date. Any failure,
// including a malformed date, yields (0, false).
func (c *GoldAPIClient) GetHistoricalPrice(ctx context.Context, date string) (float64, bool) {
	logger := c.logger.WithField("date", date)

	if _, err := time.Parse(dateLayout, date); err != nil {
		logger.Warn("historical price requested for malformed date")
		return 0, false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.do(ctx, url.Values{"date": {date}})
	if err != nil {
		logger.WithError(err).Warn("could not fetch historical price")
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logger.Warnf("historical price unavailable: status %d", resp.StatusCode)
		return 0, false
	}

	var payload goldAPIResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&payload); err != nil {
		logger.WithError(err).Warn("could not decode historical price")
		return 0, false
	}
	if payload.Price == nil || *payload.Price < 0 {
		logger.Warn("historical price missing from response")
		return 0, false
	}
	return *payload.Price, true
}

// do issues one authenticated GET against the pair endpoint
func (c *GoldAPIClient) do(ctx context.Context, query url.Values) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classifyTransportError(ctx, err)
		}
	}

	if query == nil {
		query = url.Values{}
	}
	if c.authMode == types.AuthModeQuery {
		query.Set(queryAPIKey, c.apiKey)
	}

	endpoint := c.baseURL + GoldPriceEndpoint
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewSourceError(ProviderGoldAPI, apperrors.KindConnection, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authMode == types.AuthModeHeader {
		req.Header.Set(headerAccessToken, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, err)
	}
	return resp, nil
}

func classifyStatus(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return apperrors.NewSourceError(ProviderGoldAPI, apperrors.KindAuth, nil)
	case http.StatusForbidden:
		return apperrors.NewSourceError(ProviderGoldAPI, apperrors.KindForbidden, nil)
	case http.StatusTooManyRequests:
		return apperrors.NewSourceError(ProviderGoldAPI, apperrors.KindRateLimit, nil)
	default:
		return apperrors.NewUnexpectedStatusError(ProviderGoldAPI, resp.StatusCode)
	}
}

// classifyTransportError separates an exhausted time budget from a failure
// to reach the source at all.
func classifyTransportError(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewSourceError(ProviderGoldAPI, apperrors.KindTimeout, err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewSourceError(ProviderGoldAPI, apperrors.KindTimeout, err)
	}
	return apperrors.NewSourceError(ProviderGoldAPI, apperrors.KindConnection, err)
}

// parseTimestamp accepts unix seconds or milliseconds, as a number or a
// numeric string, or an RFC 3339 string. Anything else yields the zero time
// and the caller substitutes the fetch time.
func parseTimestamp(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}

	num := json.Number(raw)
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return time.Time{}
		}
		if t, err := time.Parse(time.RFC3339Nano, text); err == nil {
			return t.UTC()
		}
		num = json.Number(text)
	}

	f, err := num.Float64()
	if err != nil || f <= 0 {
		return time.Time{}
	}
	n := int64(f)
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
