package core

import (
	"strings"
	"time"
)

// HeaderField is a single header line as it appeared in the message
type HeaderField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Headers is an ordered, case-insensitive view over a message header block.
// Duplicate fields are preserved in the order they appeared.
type Headers struct {
	fields []HeaderField
}

// NewHeaders creates a Headers value from fields in message order
func NewHeaders(fields []HeaderField) Headers {
	copied := make([]HeaderField, len(fields))
	copy(copied, fields)
	return Headers{fields: copied}
}

// Get returns the first value for name
func (h Headers) Get(name string) (string, bool) {
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns every value for name, in message order
func (h Headers) Values(name string) []string {
	var values []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Name, name) {
			values = append(values, f.Value)
		}
	}
	return values
}

// Fields returns a copy of all header fields in message order
func (h Headers) Fields() []HeaderField {
	copied := make([]HeaderField, len(h.fields))
	copy(copied, h.fields)
	return copied
}

// Len returns the number of header fields
func (h Headers) Len() int {
	return len(h.fields)
}

// ParsedMessage is the canonical form of a raw email message
type ParsedMessage struct {
	Subject  *string
	Sender   *string
	Receiver *string
	Date     *string
	Body     string
	Headers  Headers
}

// IndicatorKind identifies what an indicator value is
type IndicatorKind string

const (
	KindURL       IndicatorKind = "url"
	KindIPAddress IndicatorKind = "ip"
	KindDomain    IndicatorKind = "domain"
)

// Source is the part of the message an indicator was found in
type Source string

const (
	SourceSubject Source = "subject"
	SourceBody    Source = "body"
	SourceSender  Source = "sender"
)

var sourceOrder = []Source{SourceSubject, SourceBody, SourceSender}

// Indicator is a URL, IP address or domain extracted from a message
type Indicator struct {
	Kind    IndicatorKind `json:"kind"`
	Value   string        `json:"value"`
	Sources []Source      `json:"sources"`
}

// Key identifies an indicator by kind and normalized value
func (i Indicator) Key() string {
	return string(i.Kind) + ":" + i.Value
}

// HasSource reports whether the indicator was seen in src
func (i Indicator) HasSource(src Source) bool {
	for _, s := range i.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// Enrichable reports whether gateways can be asked about this indicator
func (i Indicator) Enrichable() bool {
	return i.Kind == KindDomain || i.Kind == KindIPAddress
}

// ReputationResult holds reputation statistics for a domain or IP
type ReputationResult struct {
	Malicious    int      `json:"malicious"`
	Suspicious   int      `json:"suspicious"`
	TotalEngines int      `json:"total_engines"`
	Reputation   int      `json:"reputation"`
	Tags         []string `json:"tags,omitempty"`
}

// AgeResult is a domain registration age. Known is false when the registry
// returned no usable creation date.
type AgeResult struct {
	Days  int  `json:"days"`
	Known bool `json:"known"`
}

// UnknownAge is the AgeResult for a domain without a creation date
var UnknownAge = AgeResult{}

// AgeFromCreation computes the age in whole days, never negative
func AgeFromCreation(created, now time.Time) AgeResult {
	days := int(now.Sub(created).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return AgeResult{Days: days, Known: true}
}

// UrgencySignal is the result of scoring text against the urgency lexicon
type UrgencySignal struct {
	Score           int      `json:"score"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// Verdict is the composite risk classification
type Verdict string

const (
	VerdictClean      Verdict = "clean"
	VerdictSuspicious Verdict = "suspicious"
	VerdictMalicious  Verdict = "malicious"
)

// ReputationOutcome pairs an indicator with its lookup result or failure
type ReputationOutcome struct {
	Indicator Indicator         `json:"indicator"`
	Result    *ReputationResult `json:"result,omitempty"`
	Err       *GatewayError     `json:"error,omitempty"`
}

// Succeeded reports whether the lookup returned a result
func (o ReputationOutcome) Succeeded() bool {
	return o.Err == nil && o.Result != nil
}

// AgeOutcome pairs a domain indicator with its age lookup result or failure
type AgeOutcome struct {
	Indicator Indicator     `json:"indicator"`
	Age       AgeResult     `json:"age"`
	Err       *GatewayError `json:"error,omitempty"`
}

// Succeeded reports whether the lookup completed, even with an unknown age
func (o AgeOutcome) Succeeded() bool {
	return o.Err == nil
}

// MessageSummary carries the header fields the display layer shows
type MessageSummary struct {
	Subject               string `json:"subject,omitempty"`
	Sender                string `json:"sender,omitempty"`
	Receiver              string `json:"receiver,omitempty"`
	Date                  string `json:"date,omitempty"`
	AuthenticationResults string `json:"authentication_results,omitempty"`
}

// Assessment is the complete output of one analysis run
type Assessment struct {
	ID           string              `json:"id"`
	AnalyzedAt   time.Time           `json:"analyzed_at"`
	Message      MessageSummary      `json:"message"`
	Indicators   []Indicator         `json:"indicators"`
	Urgency      UrgencySignal       `json:"urgency"`
	Reputation   []ReputationOutcome `json:"reputation"`
	Ages         []AgeOutcome        `json:"ages"`
	Enriched     bool                `json:"enriched"`
	Verdict      Verdict             `json:"verdict"`
	Explanations []string            `json:"explanations"`
}

// ReputationFor returns the reputation outcome recorded for an indicator key
func (a *Assessment) ReputationFor(key string) (ReputationOutcome, bool) {
	for _, o := range a.Reputation {
		if o.Indicator.Key() == key {
			return o, true
		}
	}
	return ReputationOutcome{}, false
}

// AgeFor returns the age outcome recorded for a domain
func (a *Assessment) AgeFor(domain string) (AgeOutcome, bool) {
	for _, o := range a.Ages {
		if o.Indicator.Value == domain {
			return o, true
		}
	}
	return AgeOutcome{}, false
}

// Credentials are supplied per analysis by the surrounding application
type Credentials struct {
	ReputationAPIKey string
}

// HasReputationKey reports whether reputation lookups can be made
func (c Credentials) HasReputationKey() bool {
	return strings.TrimSpace(c.ReputationAPIKey) != ""
}
