package core

import (
	"context"
)

// MessageParser decodes raw message bytes
type MessageParser interface {
	// Parse returns the canonical message or a *ParseError
	Parse(raw []byte) (*ParsedMessage, error)
}

// IndicatorExtractor derives candidate indicators from text
type IndicatorExtractor interface {
	// ExtractURLs returns raw URL matches in document order
	ExtractURLs(text string) []string

	// NormalizeURL trims trailing punctuation and lower-cases scheme and host
	NormalizeURL(raw string) string

	// ExtractIPs returns distinct normalized IP addresses in first-seen order
	ExtractIPs(text string) []string

	// ExtractDomain returns the domain of a URL or email address, or ""
	ExtractDomain(urlOrEmail string) string
}

// UrgencyScorer scores text for urgent language
type UrgencyScorer interface {
	Score(text string) UrgencySignal
}

// ReputationGateway looks up the reputation of a domain or IP address
type ReputationGateway interface {
	// LookupReputation returns statistics or a *GatewayError
	LookupReputation(ctx context.Context, apiKey string, indicator Indicator) (*ReputationResult, error)
}

// RegistrationAgeGateway looks up how long ago a domain was registered
type RegistrationAgeGateway interface {
	// LookupAge returns the age, UnknownAge, or a *GatewayError
	LookupAge(ctx context.Context, domain string) (AgeResult, error)
}

// DomainPolicy decides which domains are trusted and which resemble them
type DomainPolicy interface {
	// IsTrusted reports whether a domain must not be sent to gateways
	IsTrusted(domain string) bool

	// LookAlike returns the trusted domain that domain imitates, if any
	LookAlike(domain string) (string, bool)
}

// AssessmentRepository records finished assessments
type AssessmentRepository interface {
	// Get retrieves a stored assessment
	Get(ctx context.Context, id string) (*Assessment, error)

	// Save stores an assessment
	Save(ctx context.Context, assessment *Assessment) error

	// Delete removes a stored assessment
	Delete(ctx context.Context, id string) error

	// Cleanup removes assessments older than the retention period
	Cleanup(ctx context.Context) error
}
