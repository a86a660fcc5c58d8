package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewDomainDays is the age below which a domain is treated as newly registered
const NewDomainDays = 30

// Evidence is everything the aggregator needs to produce an Assessment
type Evidence struct {
	Message    MessageSummary
	Indicators []Indicator
	Urgency    UrgencySignal
	Reputation []ReputationOutcome
	Ages       []AgeOutcome
	// Enriched is false when no gateway lookups were attempted
	Enriched bool
	// Notes are appended after the scoring explanations
	Notes []string
}

// RiskAggregator combines urgency, reputation and age signals into a verdict
type RiskAggregator struct {
	now   func() time.Time
	newID func() string
}

// NewRiskAggregator creates a new risk aggregator
func NewRiskAggregator() *RiskAggregator {
	return &RiskAggregator{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Aggregate builds the Assessment. It never fails; lookup errors are
// explained but excluded from the verdict.
func (a *RiskAggregator) Aggregate(ev Evidence) *Assessment {
	assessment := &Assessment{
		ID:           a.newID(),
		AnalyzedAt:   a.now(),
		Message:      ev.Message,
		Indicators:   cloneIndicators(ev.Indicators),
		Urgency:      ev.Urgency,
		Reputation:   append([]ReputationOutcome(nil), ev.Reputation...),
		Ages:         append([]AgeOutcome(nil), ev.Ages...),
		Enriched:     ev.Enriched,
		Verdict:      verdictFor(ev),
		Explanations: explain(ev),
	}
	if assessment.Indicators == nil {
		assessment.Indicators = []Indicator{}
	}
	return assessment
}

func verdictFor(ev Evidence) Verdict {
	succeeded := false
	suspicious := false

	for _, o := range ev.Reputation {
		if !o.Succeeded() {
			continue
		}
		succeeded = true
		if o.Result.Malicious > 0 {
			return VerdictMalicious
		}
		if o.Result.Suspicious > 0 {
			suspicious = true
		}
	}

	for _, o := range ev.Ages {
		if !o.Succeeded() {
			continue
		}
		succeeded = true
		if o.Age.Known && o.Age.Days < NewDomainDays {
			suspicious = true
		}
	}

	if ev.Urgency.Score >= 1 && (succeeded || !ev.Enriched) {
		suspicious = true
	}

	if suspicious {
		return VerdictSuspicious
	}
	return VerdictClean
}

func explain(ev Evidence) []string {
	lines := []string{}

	if ev.Urgency.Score > 0 {
		lines = append(lines, fmt.Sprintf("urgent language: %d keyword(s) matched (%s)",
			ev.Urgency.Score, strings.Join(ev.Urgency.MatchedKeywords, ", ")))
	}

	var malicious, suspicious, clean, failed []string
	for _, o := range ev.Reputation {
		label := indicatorLabel(o.Indicator)
		switch {
		case o.Err != nil:
			failed = append(failed, fmt.Sprintf("%s lookup failed: %s", label, o.Err.Reason()))
		case o.Result == nil:
			failed = append(failed, fmt.Sprintf("%s lookup failed: %s", label, "empty result"))
		case o.Result.Malicious > 0:
			malicious = append(malicious, fmt.Sprintf("%s flagged malicious by %d/%d engines",
				label, o.Result.Malicious, o.Result.TotalEngines))
		case o.Result.Suspicious > 0:
			suspicious = append(suspicious, fmt.Sprintf("%s flagged suspicious by %d/%d engines",
				label, o.Result.Suspicious, o.Result.TotalEngines))
		default:
			clean = append(clean, fmt.Sprintf("%s clean (0/%d engines, reputation %d)",
				label, o.Result.TotalEngines, o.Result.Reputation))
		}
	}
	lines = append(lines, malicious...)
	lines = append(lines, suspicious...)
	lines = append(lines, clean...)
	lines = append(lines, failed...)

	for _, o := range ev.Ages {
		label := indicatorLabel(o.Indicator)
		switch {
		case o.Err != nil:
			lines = append(lines, fmt.Sprintf("%s age lookup failed: %s", label, o.Err.Reason()))
		case !o.Age.Known:
			lines = append(lines, fmt.Sprintf("%s registration age unknown", label))
		case o.Age.Days < NewDomainDays:
			lines = append(lines, fmt.Sprintf("%s registered %d days ago (newer than %d days)",
				label, o.Age.Days, NewDomainDays))
		default:
			lines = append(lines, fmt.Sprintf("%s registered %d days ago", label, o.Age.Days))
		}
	}

	return append(lines, ev.Notes...)
}

func indicatorLabel(ind Indicator) string {
	return fmt.Sprintf("%s %s", ind.Kind, ind.Value)
}

func cloneIndicators(in []Indicator) []Indicator {
	if in == nil {
		return nil
	}
	out := make([]Indicator, len(in))
	for i, ind := range in {
		out[i] = ind
		out[i].Sources = append([]Source(nil), ind.Sources...)
	}
	return out
}
