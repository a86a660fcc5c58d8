package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAggregator() *RiskAggregator {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &RiskAggregator{
		now:   func() time.Time { return fixed },
		newID: func() string { return "test-id" },
	}
}

func domain(v string) Indicator {
	return Indicator{Kind: KindDomain, Value: v, Sources: []Source{SourceBody}}
}

func ip(v string) Indicator {
	return Indicator{Kind: KindIPAddress, Value: v, Sources: []Source{SourceBody}}
}

func repOK(ind Indicator, malicious, suspicious, total int) ReputationOutcome {
	return ReputationOutcome{
		Indicator: ind,
		Result:    &ReputationResult{Malicious: malicious, Suspicious: suspicious, TotalEngines: total},
	}
}

func repFailed(ind Indicator, kind GatewayErrorKind) ReputationOutcome {
	return ReputationOutcome{Indicator: ind, Err: NewGatewayError("test", kind, nil)}
}

func TestAggregateVerdict(t *testing.T) {
	tests := []struct {
		name string
		ev   Evidence
		want Verdict
	}{
		{
			name: "nothing at all",
			ev:   Evidence{Enriched: true},
			want: VerdictClean,
		},
		{
			name: "malicious wins over everything",
			ev: Evidence{
				Enriched:   true,
				Urgency:    UrgencySignal{Score: 0},
				Reputation: []ReputationOutcome{repOK(domain("a.com"), 0, 0, 70), repOK(domain("b.com"), 1, 0, 70)},
				Ages:       []AgeOutcome{{Indicator: domain("a.com"), Age: AgeResult{Days: 5000, Known: true}}},
			},
			want: VerdictMalicious,
		},
		{
			name: "suspicious engines",
			ev: Evidence{
				Enriched:   true,
				Reputation: []ReputationOutcome{repOK(ip("1.2.3.4"), 0, 2, 70)},
			},
			want: VerdictSuspicious,
		},
		{
			name: "urgency with a successful lookup",
			ev: Evidence{
				Enriched:   true,
				Urgency:    UrgencySignal{Score: 1, MatchedKeywords: []string{"urgent"}},
				Reputation: []ReputationOutcome{repOK(domain("a.com"), 0, 0, 70)},
			},
			want: VerdictSuspicious,
		},
		{
			name: "urgency with only failed lookups",
			ev: Evidence{
				Enriched:   true,
				Urgency:    UrgencySignal{Score: 3},
				Reputation: []ReputationOutcome{repFailed(domain("a.com"), GatewayTimeout)},
			},
			want: VerdictClean,
		},
		{
			name: "urgency with unknown age counts as a successful lookup",
			ev: Evidence{
				Enriched: true,
				Urgency:  UrgencySignal{Score: 1},
				Ages:     []AgeOutcome{{Indicator: domain("a.com"), Age: UnknownAge}},
			},
			want: VerdictSuspicious,
		},
		{
			name: "young domain",
			ev: Evidence{
				Enriched: true,
				Ages:     []AgeOutcome{{Indicator: domain("new.com"), Age: AgeResult{Days: 29, Known: true}}},
			},
			want: VerdictSuspicious,
		},
		{
			name: "domain exactly thirty days old",
			ev: Evidence{
				Enriched: true,
				Ages:     []AgeOutcome{{Indicator: domain("new.com"), Age: AgeResult{Days: 30, Known: true}}},
			},
			want: VerdictClean,
		},
		{
			name: "urgency only mode",
			ev: Evidence{
				Enriched: false,
				Urgency:  UrgencySignal{Score: 2},
			},
			want: VerdictSuspicious,
		},
		{
			name: "urgency only mode without urgency",
			ev:   Evidence{Enriched: false},
			want: VerdictClean,
		},
		{
			name: "failed lookups never escalate",
			ev: Evidence{
				Enriched: true,
				Reputation: []ReputationOutcome{
					repFailed(domain("a.com"), GatewayUnauthorized),
					repFailed(ip("1.2.3.4"), GatewayRateLimited),
				},
				Ages: []AgeOutcome{{Indicator: domain("a.com"), Err: NewGatewayError("whois", GatewayNotFound, nil)}},
			},
			want: VerdictClean,
		},
	}

	agg := newTestAggregator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, agg.Aggregate(tt.ev).Verdict)
		})
	}
}

func TestAggregateMaliciousIsMonotonic(t *testing.T) {
	agg := newTestAggregator()

	for score := 0; score <= 8; score++ {
		ev := Evidence{
			Enriched: true,
			Urgency:  UrgencySignal{Score: score},
			Reputation: []ReputationOutcome{
				repFailed(domain("x.com"), GatewayTimeout),
				repOK(domain("a.com"), 0, 3, 70),
				repOK(ip("1.2.3.4"), 1, 0, 70),
			},
			Ages: []AgeOutcome{{Indicator: domain("a.com"), Age: AgeResult{Days: 3, Known: true}}},
		}
		assert.Equal(t, VerdictMalicious, agg.Aggregate(ev).Verdict)
	}
}

func TestAggregateExplanationOrder(t *testing.T) {
	agg := newTestAggregator()

	ev := Evidence{
		Enriched: true,
		Urgency:  UrgencySignal{Score: 2, MatchedKeywords: []string{"urgent", "verify"}},
		Reputation: []ReputationOutcome{
			repOK(domain("clean.com"), 0, 0, 70),
			repFailed(ip("9.9.9.9"), GatewayTimeout),
			repOK(ip("1.2.3.4"), 0, 2, 70),
			repOK(domain("evil.com"), 5, 1, 70),
		},
		Ages: []AgeOutcome{
			{Indicator: domain("clean.com"), Age: AgeResult{Days: 4000, Known: true}},
			{Indicator: domain("evil.com"), Age: AgeResult{Days: 3, Known: true}},
			{Indicator: domain("odd.com"), Age: UnknownAge},
			{Indicator: domain("gone.com"), Err: NewGatewayError("whois", GatewayNotFound, nil)},
		},
		Notes: []string{"1 indicator(s) not enriched: limit of 5 per message reached"},
	}

	got := agg.Aggregate(ev)
	assert.Equal(t, []string{
		"urgent language: 2 keyword(s) matched (urgent, verify)",
		"domain evil.com flagged malicious by 5/70 engines",
		"ip 1.2.3.4 flagged suspicious by 2/70 engines",
		"domain clean.com clean (0/70 engines, reputation 0)",
		"ip 9.9.9.9 lookup failed: timeout",
		"domain clean.com registered 4000 days ago",
		"domain evil.com registered 3 days ago (newer than 30 days)",
		"domain odd.com registration age unknown",
		"domain gone.com age lookup failed: not found",
		"1 indicator(s) not enriched: limit of 5 per message reached",
	}, got.Explanations)
}

func TestAggregateFillsAssessment(t *testing.T) {
	agg := newTestAggregator()

	inds := []Indicator{domain("a.com")}
	ev := Evidence{
		Message:    MessageSummary{Subject: "hi"},
		Indicators: inds,
		Enriched:   true,
	}

	got := agg.Aggregate(ev)
	require.NotNil(t, got)
	assert.Equal(t, "test-id", got.ID)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), got.AnalyzedAt)
	assert.Equal(t, "hi", got.Message.Subject)
	assert.Equal(t, inds, got.Indicators)
	assert.Empty(t, got.Explanations)

	// the assessment does not alias the evidence
	inds[0].Sources[0] = SourceSender
	assert.Equal(t, SourceBody, got.Indicators[0].Sources[0])
}

func TestAggregateEmptyIndicators(t *testing.T) {
	got := NewRiskAggregator().Aggregate(Evidence{})
	assert.NotNil(t, got.Indicators)
	assert.NotEmpty(t, got.ID)
}
