package core

// IndicatorSet collects indicators in first-seen order, merging sources of
// entries with the same kind and normalized value
type IndicatorSet struct {
	items []Indicator
	index map[string]int
}

// NewIndicatorSet creates an empty indicator set
func NewIndicatorSet() *IndicatorSet {
	return &IndicatorSet{index: make(map[string]int)}
}

// Add records an indicator seen in src. Empty values are ignored.
func (s *IndicatorSet) Add(kind IndicatorKind, value string, src Source) {
	s.AddSources(kind, value, []Source{src})
}

// AddSources records an indicator seen in every source in srcs
func (s *IndicatorSet) AddSources(kind IndicatorKind, value string, srcs []Source) {
	if value == "" {
		return
	}
	key := Indicator{Kind: kind, Value: value}.Key()
	i, ok := s.index[key]
	if !ok {
		s.index[key] = len(s.items)
		s.items = append(s.items, Indicator{Kind: kind, Value: value})
		i = len(s.items) - 1
	}
	for _, src := range srcs {
		s.items[i].Sources = mergeSource(s.items[i].Sources, src)
	}
}

// Len returns the number of distinct indicators
func (s *IndicatorSet) Len() int {
	return len(s.items)
}

// Items returns a copy of the indicators in first-seen order
func (s *IndicatorSet) Items() []Indicator {
	return cloneIndicators(s.items)
}

// mergeSource inserts src keeping the fixed subject, body, sender order
func mergeSource(sources []Source, src Source) []Source {
	present := make(map[Source]bool, len(sources)+1)
	for _, s := range sources {
		present[s] = true
	}
	if present[src] {
		return sources
	}
	present[src] = true

	merged := make([]Source, 0, len(sources)+1)
	for _, s := range sourceOrder {
		if present[s] {
			merged = append(merged, s)
		}
	}
	return merged
}
