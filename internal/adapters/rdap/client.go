package rdap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/openrdap/rdap"
	"go.uber.org/zap"
)

// ProviderName identifies this gateway in errors and logs
const ProviderName = "rdap"

// Client implements core.RegistrationAgeGateway using RDAP
type Client struct {
	client *rdap.Client
	server *url.URL
	logger *zap.Logger
	now    func() time.Time
}

// NewClient creates an RDAP client. When server is empty the IANA bootstrap
// registry picks the server for each domain.
func NewClient(server string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		client: &rdap.Client{HTTP: &http.Client{Timeout: timeout}},
		logger: logger,
		now:    time.Now,
	}

	if server != "" {
		u, err := url.Parse(server)
		if err != nil {
			return nil, fmt.Errorf("failed to parse RDAP server URL: %w", err)
		}
		c.server = u
	}

	return c, nil
}

// LookupAge returns the age of domain from its RDAP registration event
func (c *Client) LookupAge(ctx context.Context, domain string) (core.AgeResult, error) {
	req := &rdap.Request{
		Type:   rdap.DomainRequest,
		Query:  domain,
		Server: c.server,
	}

	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		return core.UnknownAge, classify(ctx, err)
	}

	d, ok := resp.Object.(*rdap.Domain)
	if !ok {
		return core.UnknownAge, core.NewGatewayError(ProviderName, core.GatewayUnreachable,
			fmt.Errorf("unexpected RDAP object %T", resp.Object))
	}

	for _, event := range d.Events {
		if !strings.EqualFold(event.Action, "registration") {
			continue
		}
		created, err := time.Parse(time.RFC3339, strings.TrimSpace(event.Date))
		if err != nil {
			c.logger.Debug("Unparseable RDAP registration date",
				zap.String("domain", domain),
				zap.String("date", event.Date))
			return core.UnknownAge, nil
		}
		return core.AgeFromCreation(created, c.now()), nil
	}

	return core.UnknownAge, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return core.NewGatewayError(ProviderName, core.GatewayTimeout, err)
	}

	var clientErr *rdap.ClientError
	if errors.As(err, &clientErr) && clientErr.Type == rdap.ObjectDoesNotExist {
		return core.NewGatewayError(ProviderName, core.GatewayNotFound, err)
	}

	return core.NewGatewayError(ProviderName, core.GatewayUnreachable, fmt.Errorf("failed to query RDAP: %w", err))
}
