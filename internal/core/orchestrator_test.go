package core_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mikey/phishing-analyzer/internal/core"
	"github.com/mikey/phishing-analyzer/internal/indicators"
	"github.com/mikey/phishing-analyzer/internal/mailparse"
	"github.com/mikey/phishing-analyzer/internal/urgency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReputation struct {
	mu      sync.Mutex
	calls   []string
	results map[string]*core.ReputationResult
	errs    map[string]error
	block   bool
}

func (f *fakeReputation) LookupReputation(ctx context.Context, apiKey string, ind core.Indicator) (*core.ReputationResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, ind.Value)
	f.mu.Unlock()

	if apiKey == "" {
		return nil, errors.New("called without a key")
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := f.errs[ind.Value]; ok {
		return nil, err
	}
	if r, ok := f.results[ind.Value]; ok {
		return r, nil
	}
	return &core.ReputationResult{TotalEngines: 70}, nil
}

func (f *fakeReputation) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeAge struct {
	mu    sync.Mutex
	calls []string
	ages  map[string]core.AgeResult
}

func (f *fakeAge) LookupAge(ctx context.Context, domain string) (core.AgeResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, domain)
	f.mu.Unlock()

	if age, ok := f.ages[domain]; ok {
		return age, nil
	}
	return core.UnknownAge, nil
}

type fakePolicy struct {
	trusted   map[string]bool
	lookAlike map[string]string
}

func (p *fakePolicy) IsTrusted(domain string) bool {
	return p.trusted[domain]
}

func (p *fakePolicy) LookAlike(domain string) (string, bool) {
	d, ok := p.lookAlike[domain]
	return d, ok
}

func newOrchestrator(rep core.ReputationGateway, age core.RegistrationAgeGateway, policy core.DomainPolicy, opts core.AnalysisOptions) *core.AnalysisOrchestrator {
	return core.NewAnalysisOrchestrator(
		mailparse.NewParser(zap.NewNop()),
		indicators.NewExtractor(),
		urgency.NewAnalyzer(nil),
		rep,
		age,
		policy,
		core.NewRiskAggregator(),
		opts,
		zap.NewNop(),
	)
}

func message(from, subject, body string) []byte {
	var b strings.Builder
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "Subject: %s\r\n\r\n%s\r\n", subject, body)
	return []byte(b.String())
}

func withKey() core.Credentials {
	return core.Credentials{ReputationAPIKey: "secret"}
}

func indicatorsOfKind(a *core.Assessment, kind core.IndicatorKind) []core.Indicator {
	var out []core.Indicator
	for _, ind := range a.Indicators {
		if ind.Kind == kind {
			out = append(out, ind)
		}
	}
	return out
}

func TestAnalyzeExampleScenario(t *testing.T) {
	rep := &fakeReputation{}
	o := newOrchestrator(rep, &fakeAge{}, nil, core.AnalysisOptions{})

	raw := message("Alerts <alerts@fake-bank.test>", "Account Suspended",
		"Urgent: verify your password at http://fake-bank.test/login")

	a, err := o.Analyze(context.Background(), raw, withKey())
	require.NoError(t, err)

	assert.Equal(t, 6, a.Urgency.Score)

	urls := indicatorsOfKind(a, core.KindURL)
	require.Len(t, urls, 1)
	assert.Equal(t, "http://fake-bank.test/login", urls[0].Value)

	domains := indicatorsOfKind(a, core.KindDomain)
	require.Len(t, domains, 1)
	assert.Equal(t, "fake-bank.test", domains[0].Value)
	assert.Equal(t, []core.Source{core.SourceBody, core.SourceSender}, domains[0].Sources)

	assert.Equal(t, []string{"fake-bank.test"}, rep.calls)
	assert.Equal(t, "Account Suspended", a.Message.Subject)
	assert.Equal(t, core.VerdictSuspicious, a.Verdict)
}

func TestAnalyzeScoresBodyAndSubjectTogether(t *testing.T) {
	o := newOrchestrator(nil, nil, nil, core.AnalysisOptions{})

	a, err := o.Analyze(context.Background(), message("", "Urgent: verify", "Please verify your password."), core.Credentials{})
	require.NoError(t, err)

	assert.Equal(t, 3, a.Urgency.Score, "a keyword in both body and subject counts once")
	assert.Equal(t, []string{"urgent", "verify", "password"}, a.Urgency.MatchedKeywords)
}

func TestAnalyzeSenderDomainIgnoresDisplayName(t *testing.T) {
	rep := &fakeReputation{results: map[string]*core.ReputationResult{
		"evil.test": {Malicious: 12, TotalEngines: 70},
	}}
	o := newOrchestrator(rep, &fakeAge{}, nil, core.AnalysisOptions{})

	raw := message(`"support@paypal.com" <attacker@evil.test>`, "Your invoice", "See attached.")
	a, err := o.Analyze(context.Background(), raw, withKey())
	require.NoError(t, err)

	domains := indicatorsOfKind(a, core.KindDomain)
	require.Len(t, domains, 1)
	assert.Equal(t, "evil.test", domains[0].Value)
	assert.Equal(t, []core.Source{core.SourceSender}, domains[0].Sources)

	assert.Equal(t, []string{"evil.test"}, rep.calls)
	assert.Equal(t, core.VerdictMalicious, a.Verdict)
}

func TestAnalyzeDeduplicatesAcrossSources(t *testing.T) {
	o := newOrchestrator(&fakeReputation{}, nil, nil, core.AnalysisOptions{})

	raw := message("", "see http://a.com", "first http://a.com then http://a.com again")
	a, err := o.Analyze(context.Background(), raw, core.Credentials{})
	require.NoError(t, err)

	urls := indicatorsOfKind(a, core.KindURL)
	require.Len(t, urls, 1)
	assert.Equal(t, "http://a.com", urls[0].Value)
	assert.Equal(t, []core.Source{core.SourceSubject, core.SourceBody}, urls[0].Sources)
}

func TestAnalyzeWithoutCredentialMakesNoCalls(t *testing.T) {
	rep := &fakeReputation{results: map[string]*core.ReputationResult{
		"evil.test": {Malicious: 50, TotalEngines: 70},
	}}
	age := &fakeAge{}
	o := newOrchestrator(rep, age, nil, core.AnalysisOptions{})

	for _, body := range []string{"hello http://evil.test/x", "Urgent! http://evil.test/x 1.2.3.4"} {
		a, err := o.Analyze(context.Background(), message("x@evil.test", "hi", body), core.Credentials{ReputationAPIKey: "  "})
		require.NoError(t, err)

		assert.Contains(t, []core.Verdict{core.VerdictClean, core.VerdictSuspicious}, a.Verdict)
		assert.False(t, a.Enriched)
		assert.Empty(t, a.Reputation)
		assert.Empty(t, a.Ages)
	}

	assert.Zero(t, rep.callCount())
	assert.Empty(t, age.calls)
}

func TestAnalyzeToleratesPartialFailures(t *testing.T) {
	timeout := core.NewGatewayError("test", core.GatewayTimeout, context.DeadlineExceeded)
	rep := &fakeReputation{errs: map[string]error{
		"10.0.0.2": timeout,
		"10.0.0.4": timeout,
	}}
	o := newOrchestrator(rep, nil, nil, core.AnalysisOptions{MaxIndicators: 5})

	body := "hosts 10.0.0.1 10.0.0.2 10.0.0.3 10.0.0.4 10.0.0.5"
	a, err := o.Analyze(context.Background(), message("", "report", body), withKey())
	require.NoError(t, err)

	require.Len(t, a.Reputation, 5)
	succeeded := 0
	for _, outcome := range a.Reputation {
		if outcome.Succeeded() {
			succeeded++
		} else {
			assert.Equal(t, core.GatewayTimeout, outcome.Err.Kind)
		}
	}
	assert.Equal(t, 3, succeeded)

	failedLines := 0
	for _, line := range a.Explanations {
		if strings.Contains(line, "lookup failed") {
			failedLines++
		}
	}
	assert.Equal(t, 2, failedLines)
	assert.Equal(t, core.VerdictClean, a.Verdict)
}

func TestAnalyzeMapsSlowLookupsToTimeout(t *testing.T) {
	rep := &fakeReputation{block: true}
	o := newOrchestrator(rep, nil, nil, core.AnalysisOptions{LookupTimeout: 20 * time.Millisecond})

	a, err := o.Analyze(context.Background(), message("", "hi", "ping 192.0.2.1"), withKey())
	require.NoError(t, err)

	require.Len(t, a.Reputation, 1)
	require.NotNil(t, a.Reputation[0].Err)
	assert.Equal(t, core.GatewayTimeout, a.Reputation[0].Err.Kind)
	assert.Contains(t, a.Explanations, "ip 192.0.2.1 lookup failed: timeout")
}

func TestAnalyzeCancellation(t *testing.T) {
	rep := &fakeReputation{block: true}
	o := newOrchestrator(rep, nil, nil, core.AnalysisOptions{LookupTimeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	a, err := o.Analyze(ctx, message("", "hi", "ping 192.0.2.1 192.0.2.2"), withKey())
	assert.Nil(t, a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCancelled))

	var analysisErr *core.AnalysisError
	require.True(t, errors.As(err, &analysisErr))
	assert.Equal(t, core.AnalysisCancelled, analysisErr.Kind)
}

func TestAnalyzeAlreadyCancelled(t *testing.T) {
	rep := &fakeReputation{}
	o := newOrchestrator(rep, nil, nil, core.AnalysisOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := o.Analyze(ctx, message("", "hi", "ping 192.0.2.1"), withKey())
	assert.Nil(t, a)
	assert.True(t, errors.Is(err, core.ErrCancelled))
	assert.Zero(t, rep.callCount())
}

func TestAnalyzeParseFailure(t *testing.T) {
	rep := &fakeReputation{}
	o := newOrchestrator(rep, nil, nil, core.AnalysisOptions{})

	a, err := o.Analyze(context.Background(), []byte("no header block here"), withKey())
	assert.Nil(t, a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrParseFailed))
	assert.True(t, errors.Is(err, core.ErrMalformed))
	assert.Zero(t, rep.callCount())
}

func TestAnalyzeTruncatesEnrichment(t *testing.T) {
	rep := &fakeReputation{}
	o := newOrchestrator(rep, nil, nil, core.AnalysisOptions{MaxIndicators: 5})

	body := "10.0.0.1 10.0.0.2 10.0.0.3 10.0.0.4 10.0.0.5 10.0.0.6 10.0.0.7"
	a, err := o.Analyze(context.Background(), message("", "hi", body), withKey())
	require.NoError(t, err)

	assert.Len(t, a.Indicators, 7)
	assert.Len(t, a.Reputation, 5)
	assert.Equal(t, 5, rep.callCount())
	assert.Contains(t, a.Explanations, "2 indicator(s) not enriched: limit of 5 per message reached")
}

func TestAnalyzeSkipsTrustedDomains(t *testing.T) {
	rep := &fakeReputation{}
	age := &fakeAge{}
	policy := &fakePolicy{
		trusted:   map[string]bool{"example.com": true},
		lookAlike: map[string]string{"examp1e.com": "example.com"},
	}
	o := newOrchestrator(rep, age, policy, core.AnalysisOptions{})

	body := "https://www.example.com/help and http://examp1e.com/login"
	a, err := o.Analyze(context.Background(), message("", "hi", body), withKey())
	require.NoError(t, err)

	assert.Equal(t, []string{"examp1e.com"}, rep.calls)
	assert.Equal(t, []string{"examp1e.com"}, age.calls)
	assert.Contains(t, a.Explanations, "domain example.com is trusted and was not looked up")
	assert.Contains(t, a.Explanations, "domain examp1e.com resembles trusted domain example.com")
}

func TestAnalyzeMaliciousDomain(t *testing.T) {
	rep := &fakeReputation{results: map[string]*core.ReputationResult{
		"evil.test": {Malicious: 12, Suspicious: 1, TotalEngines: 70},
	}}
	age := &fakeAge{ages: map[string]core.AgeResult{"evil.test": {Days: 2, Known: true}}}
	o := newOrchestrator(rep, age, nil, core.AnalysisOptions{})

	a, err := o.Analyze(context.Background(), message("billing@good.test", "Invoice", "pay at http://evil.test/pay"), withKey())
	require.NoError(t, err)

	assert.Equal(t, core.VerdictMalicious, a.Verdict)
	assert.True(t, a.Enriched)
	assert.Contains(t, a.Explanations, "domain evil.test flagged malicious by 12/70 engines")
	assert.Contains(t, a.Explanations, "domain evil.test registered 2 days ago (newer than 30 days)")

	outcome, ok := a.AgeFor("good.test")
	require.True(t, ok)
	assert.False(t, outcome.Age.Known)
}

func TestAnalyzeYoungDomainIsSuspicious(t *testing.T) {
	age := &fakeAge{ages: map[string]core.AgeResult{"new.test": {Days: 5, Known: true}}}
	o := newOrchestrator(&fakeReputation{}, age, nil, core.AnalysisOptions{})

	a, err := o.Analyze(context.Background(), message("", "hello", "see http://new.test/"), withKey())
	require.NoError(t, err)

	assert.Equal(t, core.VerdictSuspicious, a.Verdict)
}
