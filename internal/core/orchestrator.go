package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AnalysisState is a step of a single analysis run
type AnalysisState string

const (
	StateReceived   AnalysisState = "received"
	StateParsed     AnalysisState = "parsed"
	StateExtracted  AnalysisState = "extracted"
	StateEnriching  AnalysisState = "enriching"
	StateAggregated AnalysisState = "aggregated"
	StateFailed     AnalysisState = "failed"
)

// AnalysisOptions bounds the external work done for one message
type AnalysisOptions struct {
	// MaxIndicators is the number of distinct domains and IPs enriched
	MaxIndicators int
	// Concurrency is the size of the lookup pool
	Concurrency int
	// LookupTimeout bounds each individual gateway call
	LookupTimeout time.Duration
}

// DefaultAnalysisOptions returns the options used when none are configured
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		MaxIndicators: 5,
		Concurrency:   4,
		LookupTimeout: 10 * time.Second,
	}
}

// AnalysisOrchestrator runs parse, extraction, enrichment and aggregation
// for a single message
type AnalysisOrchestrator struct {
	parser     MessageParser
	extractor  IndicatorExtractor
	urgency    UrgencyScorer
	reputation ReputationGateway
	age        RegistrationAgeGateway
	policy     DomainPolicy
	aggregator *RiskAggregator
	opts       AnalysisOptions
	logger     *zap.Logger
}

// NewAnalysisOrchestrator creates a new orchestrator. age and policy may be nil.
func NewAnalysisOrchestrator(
	parser MessageParser,
	extractor IndicatorExtractor,
	urgency UrgencyScorer,
	reputation ReputationGateway,
	age RegistrationAgeGateway,
	policy DomainPolicy,
	aggregator *RiskAggregator,
	opts AnalysisOptions,
	logger *zap.Logger,
) *AnalysisOrchestrator {
	defaults := DefaultAnalysisOptions()
	if opts.MaxIndicators <= 0 {
		opts.MaxIndicators = defaults.MaxIndicators
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaults.Concurrency
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = defaults.LookupTimeout
	}
	if aggregator == nil {
		aggregator = NewRiskAggregator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &AnalysisOrchestrator{
		parser:     parser,
		extractor:  extractor,
		urgency:    urgency,
		reputation: reputation,
		age:        age,
		policy:     policy,
		aggregator: aggregator,
		opts:       opts,
		logger:     logger,
	}
}

// analysisRun tracks the state of one Analyze call
type analysisRun struct {
	state  AnalysisState
	logger *zap.Logger
}

func (r *analysisRun) transition(to AnalysisState) {
	r.logger.Debug("Analysis state change",
		zap.String("from", string(r.state)),
		zap.String("to", string(to)))
	r.state = to
}

// Analyze produces an Assessment for raw. The only errors returned are
// *AnalysisError values.
func (o *AnalysisOrchestrator) Analyze(ctx context.Context, raw []byte, creds Credentials) (*Assessment, error) {
	run := &analysisRun{state: StateReceived, logger: o.logger}

	if err := ctx.Err(); err != nil {
		run.transition(StateFailed)
		return nil, &AnalysisError{Kind: AnalysisCancelled, Err: err}
	}

	msg, err := o.parser.Parse(raw)
	if err != nil {
		run.transition(StateFailed)
		return nil, &AnalysisError{Kind: AnalysisParseFailed, Err: err}
	}
	run.transition(StateParsed)

	indicators := o.extract(msg)
	urgency := o.urgency.Score(msg.Body + deref(msg.Subject))
	run.transition(StateExtracted)

	ev := Evidence{
		Message:    summarize(msg),
		Indicators: indicators,
		Urgency:    urgency,
		Enriched:   creds.HasReputationKey(),
	}

	targets, notes := o.selectTargets(indicators)
	ev.Notes = append(ev.Notes, notes...)

	if ev.Enriched {
		run.transition(StateEnriching)
		ev.Reputation, ev.Ages = o.enrich(ctx, targets, creds)
	} else {
		ev.Notes = append(ev.Notes, "no reputation credential configured: urgency-only assessment")
	}

	if err := ctx.Err(); err != nil {
		run.transition(StateFailed)
		return nil, &AnalysisError{Kind: AnalysisCancelled, Err: err}
	}

	assessment := o.aggregator.Aggregate(ev)
	run.transition(StateAggregated)
	return assessment, nil
}

// extract builds the indicator set from subject, body and sender, in that order
func (o *AnalysisOrchestrator) extract(msg *ParsedMessage) []Indicator {
	set := NewIndicatorSet()

	addText := func(text string, src Source) {
		for _, raw := range o.extractor.ExtractURLs(text) {
			u := o.extractor.NormalizeURL(raw)
			set.Add(KindURL, u, src)
			set.Add(KindDomain, o.extractor.ExtractDomain(u), src)
		}
		for _, ip := range o.extractor.ExtractIPs(text) {
			set.Add(KindIPAddress, ip, src)
		}
	}

	if msg.Subject != nil {
		addText(*msg.Subject, SourceSubject)
	}
	addText(msg.Body, SourceBody)
	if msg.Sender != nil {
		set.Add(KindDomain, o.extractor.ExtractDomain(*msg.Sender), SourceSender)
	}

	return set.Items()
}

// selectTargets picks the indicators to enrich and returns notes about the rest
func (o *AnalysisOrchestrator) selectTargets(indicators []Indicator) ([]Indicator, []string) {
	var targets []Indicator
	var notes []string
	skipped := 0

	for _, ind := range indicators {
		if !ind.Enrichable() {
			continue
		}
		if ind.Kind == KindDomain && o.policy != nil {
			if o.policy.IsTrusted(ind.Value) {
				notes = append(notes, fmt.Sprintf("domain %s is trusted and was not looked up", ind.Value))
				continue
			}
			if trusted, ok := o.policy.LookAlike(ind.Value); ok {
				notes = append(notes, fmt.Sprintf("domain %s resembles trusted domain %s", ind.Value, trusted))
			}
		}
		if len(targets) >= o.opts.MaxIndicators {
			skipped++
			continue
		}
		targets = append(targets, ind)
	}

	if skipped > 0 {
		notes = append(notes, fmt.Sprintf("%d indicator(s) not enriched: limit of %d per message reached",
			skipped, o.opts.MaxIndicators))
	}
	return targets, notes
}

// enrich runs every lookup on a bounded pool and waits for all of them
func (o *AnalysisOrchestrator) enrich(ctx context.Context, targets []Indicator, creds Credentials) ([]ReputationOutcome, []AgeOutcome) {
	reputation := make([]ReputationOutcome, len(targets))
	var domains []Indicator
	for i, ind := range targets {
		reputation[i].Indicator = ind
		if ind.Kind == KindDomain && o.age != nil {
			domains = append(domains, ind)
		}
	}
	ages := make([]AgeOutcome, len(domains))
	for i, ind := range domains {
		ages[i].Indicator = ind
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)

	for i := range targets {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			callCtx, cancel := context.WithTimeout(gctx, o.opts.LookupTimeout)
			defer cancel()

			ind := reputation[i].Indicator
			result, err := o.reputation.LookupReputation(callCtx, creds.ReputationAPIKey, ind)
			if err != nil {
				reputation[i].Err = o.classify(callCtx, ctx, "reputation", err)
				o.logger.Warn("Reputation lookup failed",
					zap.String("indicator", ind.Value),
					zap.String("kind", string(ind.Kind)),
					zap.Error(err))
				return ctx.Err()
			}
			reputation[i].Result = result
			return nil
		})
	}

	for i := range domains {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			callCtx, cancel := context.WithTimeout(gctx, o.opts.LookupTimeout)
			defer cancel()

			domain := ages[i].Indicator.Value
			age, err := o.age.LookupAge(callCtx, domain)
			if err != nil {
				ages[i].Err = o.classify(callCtx, ctx, "age", err)
				o.logger.Warn("Registration age lookup failed",
					zap.String("domain", domain),
					zap.Error(err))
				return ctx.Err()
			}
			ages[i].Age = age
			return nil
		})
	}

	// Task errors only signal cancellation, which Analyze checks itself
	_ = g.Wait()

	return reputation, ages
}

// classify maps a lookup error to a GatewayError. A call that ran past its
// own deadline is a timeout even if the gateway reported something else.
func (o *AnalysisOrchestrator) classify(callCtx, parent context.Context, provider string, err error) *GatewayError {
	if parent.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && gwErr.Kind != GatewayUnreachable {
			return gwErr
		}
		return NewGatewayError(provider, GatewayTimeout, err)
	}
	return AsGatewayError(provider, err)
}

func summarize(msg *ParsedMessage) MessageSummary {
	authResults, _ := msg.Headers.Get("Authentication-Results")
	return MessageSummary{
		Subject:               deref(msg.Subject),
		Sender:                deref(msg.Sender),
		Receiver:              deref(msg.Receiver),
		Date:                  deref(msg.Date),
		AuthenticationResults: authResults,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
