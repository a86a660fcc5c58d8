package urgency

import (
	"strings"

	"github.com/mikey/phishing-analyzer/internal/core"
)

// DefaultKeywords is the default urgency lexicon, in scoring order
var DefaultKeywords = []string{
	"urgent",
	"immediate",
	"verify",
	"suspend",
	"account",
	"password",
	"bank",
	"lock",
}

// Analyzer scores text by counting lexicon keywords it contains.
// Matching is plain substring containment, so "bank" also matches "fake-bank".
type Analyzer struct {
	keywords []string
}

// NewAnalyzer creates an analyzer for keywords, or DefaultKeywords when empty.
// Keywords are lower-cased and de-duplicated keeping their order.
func NewAnalyzer(keywords []string) *Analyzer {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}

	seen := make(map[string]bool, len(keywords))
	lexicon := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		lexicon = append(lexicon, k)
	}

	return &Analyzer{keywords: lexicon}
}

// Keywords returns the lexicon in scoring order
func (a *Analyzer) Keywords() []string {
	return append([]string(nil), a.keywords...)
}

// Score returns the number of distinct keywords found in text
func (a *Analyzer) Score(text string) core.UrgencySignal {
	lower := strings.ToLower(text)

	matched := []string{}
	for _, k := range a.keywords {
		if strings.Contains(lower, k) {
			matched = append(matched, k)
		}
	}

	return core.UrgencySignal{
		Score:           len(matched),
		MatchedKeywords: matched,
	}
}
