package whois

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"github.com/mikey/phishing-analyzer/internal/core"
	"go.uber.org/zap"
)

// ProviderName identifies this gateway in errors and logs
const ProviderName = "whois"

// Client implements core.RegistrationAgeGateway using WHOIS
type Client struct {
	client *whois.Client
	logger *zap.Logger
	now    func() time.Time
	query  func(domain string) (string, error)
}

// NewClient creates a WHOIS client whose network queries give up after timeout
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		client: whois.NewClient().SetTimeout(timeout),
		logger: logger,
		now:    time.Now,
	}
	c.query = func(domain string) (string, error) {
		return c.client.Whois(domain)
	}
	return c
}

type queryResult struct {
	text string
	err  error
}

// LookupAge returns the age of domain from its WHOIS creation date
func (c *Client) LookupAge(ctx context.Context, domain string) (core.AgeResult, error) {
	done := make(chan queryResult, 1)
	go func() {
		text, err := c.query(domain)
		done <- queryResult{text: text, err: err}
	}()

	var res queryResult
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return core.UnknownAge, core.NewGatewayError(ProviderName, core.GatewayTimeout, ctx.Err())
		}
		return core.UnknownAge, core.NewGatewayError(ProviderName, core.GatewayUnreachable, ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		return core.UnknownAge, classifyQueryError(res.err)
	}

	info, err := whoisparser.Parse(res.text)
	if err != nil {
		return core.UnknownAge, classifyParseError(err)
	}
	if info.Domain == nil {
		return core.UnknownAge, nil
	}

	created, ok := ParseCreationDate(info.Domain.CreatedDate)
	if !ok {
		c.logger.Debug("No usable creation date in WHOIS record",
			zap.String("domain", domain),
			zap.String("created", info.Domain.CreatedDate))
		return core.UnknownAge, nil
	}

	return core.AgeFromCreation(created, c.now()), nil
}

func classifyQueryError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return core.NewGatewayError(ProviderName, core.GatewayTimeout, err)
	}
	return core.NewGatewayError(ProviderName, core.GatewayUnreachable, fmt.Errorf("failed to query WHOIS: %w", err))
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, whoisparser.ErrNotFoundDomain):
		return core.NewGatewayError(ProviderName, core.GatewayNotFound, err)
	case errors.Is(err, whoisparser.ErrDomainLimitExceed):
		return core.NewGatewayError(ProviderName, core.GatewayRateLimited, err)
	default:
		return core.NewGatewayError(ProviderName, core.GatewayUnreachable, fmt.Errorf("failed to parse WHOIS record: %w", err))
	}
}

// creationLayouts are the date formats seen in WHOIS creation fields
var creationLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"02-Jan-2006",
	"02.01.2006",
	"January 2 2006",
	"Mon Jan 2 15:04:05 MST 2006",
	time.RFC1123Z,
	time.RFC1123,
}

// ParseCreationDate parses a WHOIS creation date. When several dates are
// listed the first one is used.
func ParseCreationDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	candidates := []string{s}
	if first, _, found := strings.Cut(s, ","); found {
		candidates = append(candidates, strings.TrimSpace(first))
	}
	if first, _, found := strings.Cut(s, " "); found {
		candidates = append(candidates, first)
	}

	for _, candidate := range candidates {
		for _, layout := range creationLayouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
