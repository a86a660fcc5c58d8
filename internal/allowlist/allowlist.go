package allowlist

import (
	"math"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"go.uber.org/zap"
	"golang.org/x/net/idna"
)

// Checker decides which domains are trusted and flags domains that imitate them
type Checker struct {
	domains []string
	logger  *zap.Logger
}

// NewChecker creates a new trusted-domain checker
func NewChecker(domains []string, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}

	normalizedDomains := make([]string, 0, len(domains))
	for _, domain := range domains {
		if d := normalize(domain); d != "" {
			normalizedDomains = append(normalizedDomains, d)
		}
	}

	if len(normalizedDomains) > 0 {
		logger.Info("Initialized trusted domain checker", zap.Strings("domains", normalizedDomains))
	}

	return &Checker{
		domains: normalizedDomains,
		logger:  logger,
	}
}

// Domains returns the normalized trusted domains
func (c *Checker) Domains() []string {
	return append([]string(nil), c.domains...)
}

// IsTrusted reports whether domain is a trusted domain or a subdomain of one
func (c *Checker) IsTrusted(domain string) bool {
	domain = normalize(domain)
	if domain == "" {
		return false
	}

	for _, trusted := range c.domains {
		if domain == trusted || strings.HasSuffix(domain, "."+trusted) {
			c.logger.Debug("Domain is trusted",
				zap.String("domain", domain),
				zap.String("trusted", trusted))
			return true
		}
	}

	return false
}

// LookAlike returns the trusted domain that domain is within a small edit
// distance of, without being equal to it
func (c *Checker) LookAlike(domain string) (string, bool) {
	domain = normalize(domain)
	if domain == "" || c.IsTrusted(domain) {
		return "", false
	}

	thresh := threshold(len(domain))
	for _, trusted := range c.domains {
		if fuzzy.LevenshteinDistance(domain, trusted) <= thresh {
			return trusted, true
		}
	}

	return "", false
}

// threshold is the edit distance tolerated for a domain of length l
func threshold(l int) int {
	switch {
	case l <= 11:
		return 1
	case l <= 15:
		return 2
	default:
		return int(math.Ceil(float64(l) * 0.15))
	}
}

func normalize(domain string) string {
	d := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if d == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(d); err == nil {
		return ascii
	}
	return d
}
