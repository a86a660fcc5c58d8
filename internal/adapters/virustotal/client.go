package virustotal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ProviderName identifies this gateway in errors and logs
const ProviderName = "virustotal"

// DefaultBaseURL is the public VirusTotal API host
const DefaultBaseURL = "https://www.virustotal.com"

const maxResponseBytes = 4 << 20

// Config holds the VirusTotal client settings
type Config struct {
	BaseURL            string
	RateLimitPerMinute int
	Burst              int
	RetryMax           int
	RetryWaitMin       time.Duration
	RetryWaitMax       time.Duration
}

// Client implements core.ReputationGateway against the VirusTotal v3 API
type Client struct {
	baseURL string
	http    *retryablehttp.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a new VirusTotal client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 4
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RateLimitPerMinute
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = 500 * time.Millisecond
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = 2 * time.Second
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = cfg.RetryMax
	httpClient.RetryWaitMin = cfg.RetryWaitMin
	httpClient.RetryWaitMax = cfg.RetryWaitMax
	httpClient.CheckRetry = retryTransientOnly
	httpClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	httpClient.Logger = logging.NewLeveledLogger(logger.Named("http"))

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RateLimitPerMinute)), cfg.Burst),
		logger:  logger,
	}
}

// retryTransientOnly retries transport errors and 5xx responses. Quota
// responses are not retried, the limiter already paces requests.
func retryTransientOnly(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

type objectResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats map[string]int `json:"last_analysis_stats"`
			Reputation        int            `json:"reputation"`
			Tags              []string       `json:"tags"`
		} `json:"attributes"`
	} `json:"data"`
}

// LookupReputation fetches the last analysis statistics for a domain or IP
func (c *Client) LookupReputation(ctx context.Context, apiKey string, indicator core.Indicator) (*core.ReputationResult, error) {
	var collection string
	switch indicator.Kind {
	case core.KindDomain:
		collection = "domains"
	case core.KindIPAddress:
		collection = "ip_addresses"
	default:
		return nil, core.NewGatewayError(ProviderName, core.GatewayUnreachable,
			fmt.Errorf("unsupported indicator kind %q", indicator.Kind))
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, core.NewGatewayError(ProviderName, core.GatewayUnauthorized, errors.New("missing API key"))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, core.NewGatewayError(ProviderName, core.GatewayUnreachable, ctx.Err())
		}
		return nil, core.NewGatewayError(ProviderName, core.GatewayRateLimited, err)
	}

	endpoint := fmt.Sprintf("%s/api/v3/%s/%s", c.baseURL, collection, url.PathEscape(indicator.Value))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, core.NewGatewayError(ProviderName, core.GatewayUnreachable,
			fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("x-apikey", apiKey)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("Looking up reputation",
		zap.String("indicator", indicator.Value),
		zap.String("kind", string(indicator.Kind)))

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, statusError(core.GatewayUnauthorized, resp)
	case http.StatusNotFound:
		return nil, statusError(core.GatewayNotFound, resp)
	case http.StatusTooManyRequests:
		return nil, statusError(core.GatewayRateLimited, resp)
	default:
		return nil, statusError(core.GatewayUnreachable, resp)
	}

	var body objectResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		if ctx.Err() != nil {
			return nil, classifyTransportError(ctx, err)
		}
		return nil, core.NewGatewayError(ProviderName, core.GatewayUnreachable,
			fmt.Errorf("failed to decode response: %w", err))
	}

	attrs := body.Data.Attributes
	result := &core.ReputationResult{
		Malicious:  nonNegative(attrs.LastAnalysisStats["malicious"]),
		Suspicious: nonNegative(attrs.LastAnalysisStats["suspicious"]),
		Reputation: attrs.Reputation,
		Tags:       uniqueTags(attrs.Tags),
	}
	for _, n := range attrs.LastAnalysisStats {
		result.TotalEngines += nonNegative(n)
	}

	return result, nil
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.NewGatewayError(ProviderName, core.GatewayTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.NewGatewayError(ProviderName, core.GatewayTimeout, err)
	}
	return core.NewGatewayError(ProviderName, core.GatewayUnreachable, err)
}

func statusError(kind core.GatewayErrorKind, resp *http.Response) error {
	return core.NewGatewayError(ProviderName, kind, fmt.Errorf("unexpected status %d", resp.StatusCode))
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

func uniqueTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
