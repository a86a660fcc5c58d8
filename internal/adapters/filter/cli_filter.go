package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mikey/phishing-analyzer/internal/core"
	"go.uber.org/zap"
)

// CliFilter analyzes a single message and reports the assessment
type CliFilter struct {
	service    *core.AnalysisService
	logger     *zap.Logger
	out        io.Writer
	verbose    bool
	jsonOutput bool
}

// NewCliFilter creates a new CLI filter writing to stdout
func NewCliFilter(service *core.AnalysisService, logger *zap.Logger, verbose, jsonOutput bool) *CliFilter {
	return &CliFilter{
		service:    service,
		logger:     logger,
		out:        os.Stdout,
		verbose:    verbose,
		jsonOutput: jsonOutput,
	}
}

// SetOutput redirects the report
func (f *CliFilter) SetOutput(w io.Writer) {
	f.out = w
}

// ProcessMessage analyzes raw and writes the report
func (f *CliFilter) ProcessMessage(ctx context.Context, raw []byte) (*core.Assessment, error) {
	f.logger.Debug("Processing message", zap.Int("size", len(raw)))

	startTime := time.Now()
	assessment, err := f.service.AnalyzeMessage(ctx, raw)
	if err != nil {
		f.logger.Error("Failed to analyze message", zap.Error(err))
		if !f.jsonOutput {
			fmt.Fprintf(f.out, "Error: %v\n", err)
		}
		return nil, err
	}
	duration := time.Since(startTime)

	if f.jsonOutput {
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(assessment); err != nil {
			return nil, fmt.Errorf("failed to encode assessment: %w", err)
		}
		return assessment, nil
	}

	f.writeText(assessment, duration)
	return assessment, nil
}

func (f *CliFilter) writeText(a *core.Assessment, duration time.Duration) {
	fmt.Fprintf(f.out, "\n=== Message Summary ===\n")
	fmt.Fprintf(f.out, "From: %s\n", a.Message.Sender)
	fmt.Fprintf(f.out, "To: %s\n", a.Message.Receiver)
	fmt.Fprintf(f.out, "Subject: %s\n", a.Message.Subject)
	fmt.Fprintf(f.out, "Date: %s\n", a.Message.Date)
	if f.verbose && a.Message.AuthenticationResults != "" {
		fmt.Fprintf(f.out, "Authentication-Results: %s\n", a.Message.AuthenticationResults)
	}

	fmt.Fprintf(f.out, "\n=== Indicators ===\n")
	if len(a.Indicators) == 0 {
		fmt.Fprintf(f.out, "(none)\n")
	}
	for _, ind := range a.Indicators {
		line := fmt.Sprintf("%-6s %s (%s)", ind.Kind, ind.Value, joinSources(ind.Sources))
		if f.verbose {
			line += enrichmentSummary(a, ind)
		}
		fmt.Fprintln(f.out, line)
	}

	fmt.Fprintf(f.out, "\n=== Results ===\n")
	fmt.Fprintf(f.out, "Verdict: %s\n", a.Verdict)
	fmt.Fprintf(f.out, "Urgency score: %d\n", a.Urgency.Score)
	fmt.Fprintf(f.out, "Enriched: %t\n", a.Enriched)
	for _, line := range a.Explanations {
		fmt.Fprintf(f.out, "  - %s\n", line)
	}
	if f.verbose {
		fmt.Fprintf(f.out, "Assessment ID: %s\n", a.ID)
		fmt.Fprintf(f.out, "Processing time: %v\n", duration)
	}
}

// enrichmentSummary describes the lookups recorded for ind, or "" when the
// assessment was not enriched
func enrichmentSummary(a *core.Assessment, ind core.Indicator) string {
	var parts []string
	if o, ok := a.ReputationFor(ind.Key()); ok {
		switch {
		case o.Succeeded():
			parts = append(parts, fmt.Sprintf("%d/%d engines malicious", o.Result.Malicious, o.Result.TotalEngines))
		case o.Err != nil:
			parts = append(parts, "reputation "+o.Err.Reason())
		}
	}
	if ind.Kind == core.KindDomain {
		if o, ok := a.AgeFor(ind.Value); ok {
			switch {
			case !o.Succeeded():
				parts = append(parts, "age "+o.Err.Reason())
			case o.Age.Known:
				parts = append(parts, fmt.Sprintf("%d days old", o.Age.Days))
			default:
				parts = append(parts, "age unknown")
			}
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, "; ") + "]"
}

func joinSources(sources []core.Source) string {
	names := make([]string, len(sources))
	for i, src := range sources {
		names[i] = string(src)
	}
	return strings.Join(names, ", ")
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
