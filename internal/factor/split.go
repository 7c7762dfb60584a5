package factor

import (
	"log/slog"
	"sort"

	"github.com/RusaUB/nexintel/internal/tags"
)

// DefaultTagPriority orders tags for primary-tag selection when the
// config does not supply its own priority list.
var DefaultTagPriority = []string{
	"etf", "onchain", "derivatives", "orderbook", "tokenomics", "stablecoins",
	"protocol", "ecosystem", "liquidity", "narratives", "macro", "regulation",
	"cex", "dex", "sentiment", "news",
}

// DefaultFallbackTag classifies observations that carry no tags at all.
const DefaultFallbackTag = "misc"

// SplitConfig configures tag-based factor splitting.
type SplitConfig struct {
	Enabled     bool
	Priority    []string // primary-tag priority order; unlisted tags sort last
	FallbackTag string
	Limits      Limits // per-bucket count/token caps
}

// DefaultSplitConfig returns the built-in splitting parameters.
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{
		Enabled:     true,
		Priority:    DefaultTagPriority,
		FallbackTag: DefaultFallbackTag,
		Limits:      Limits{MaxObservations: 7, MaxTokens: 4000},
	}
}

// Splitter partitions one TextualFactor into disjoint single-tag factors.
type Splitter struct {
	cfg       SplitConfig
	prioIndex map[string]int
	est       Estimator
	logger    *slog.Logger
}

// NewSplitter builds a Splitter. A nil estimator falls back to the rough
// word-count estimate; a nil logger falls back to slog.Default.
func NewSplitter(cfg SplitConfig, est Estimator, logger *slog.Logger) *Splitter {
	if cfg.FallbackTag == "" {
		cfg.FallbackTag = DefaultFallbackTag
	}
	if len(cfg.Priority) == 0 {
		cfg.Priority = DefaultTagPriority
	}
	if cfg.Limits == (Limits{}) {
		cfg.Limits = DefaultSplitConfig().Limits
	}
	if est == nil {
		est = RoughEstimator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	index := make(map[string]int, len(cfg.Priority))
	for i, t := range cfg.Priority {
		index[t] = i
	}
	return &Splitter{cfg: cfg, prioIndex: index, est: est, logger: logger}
}

// primaryTag picks the observation's single classifying tag: normalize,
// order by priority-list position (absent tags sort last, stable among
// themselves), take the first. Empty string means no tags at all.
func (s *Splitter) primaryTag(obsTags []string) string {
	normalized := make([]string, 0, len(obsTags))
	for _, t := range obsTags {
		if folded := tags.Fold(t); folded != "" {
			normalized = append(normalized, folded)
		}
	}
	if len(normalized) == 0 {
		return ""
	}
	sort.SliceStable(normalized, func(i, j int) bool {
		return s.rank(normalized[i]) < s.rank(normalized[j])
	})
	return normalized[0]
}

func (s *Splitter) rank(tag string) int {
	if i, ok := s.prioIndex[tag]; ok {
		return i
	}
	return len(s.prioIndex) // unlisted tags after all listed ones
}

// Split partitions factor into one factor per primary tag. Each
// observation lands in exactly one bucket: a single dedup-key set is
// shared across all buckets, and keys are recorded only on acceptance.
// Each bucket independently enforces the configured count/token caps;
// an observation that would overflow its bucket is dropped, not moved.
// Returns the original factor unsplit when splitting is disabled.
func (s *Splitter) Split(f *TextualFactor) []*TextualFactor {
	if !s.cfg.Enabled {
		s.logger.Info("tag split disabled; returning original factor", "agent", f.AgentName)
		return []*TextualFactor{f}
	}

	s.logger.Info("splitting factor by tags",
		"agent", f.AgentName, "observations", len(f.Observations))

	buckets := make(map[string][]Observation)
	bucketTokens := make(map[string]int)
	seen := make(map[string]struct{})

	for _, obs := range f.Observations {
		tag := s.primaryTag(obs.Tags)
		if tag == "" {
			tag = s.cfg.FallbackTag
		}

		key := obs.DedupKey()
		if _, dup := seen[key]; dup {
			continue // already placed in another bucket
		}

		cand := s.est.Estimate(obs.Text)
		if len(buckets[tag]) >= s.cfg.Limits.MaxObservations ||
			bucketTokens[tag]+cand > s.cfg.Limits.MaxTokens {
			continue
		}
		buckets[tag] = append(buckets[tag], obs)
		bucketTokens[tag] += cand
		seen[key] = struct{}{}
	}

	out := make([]*TextualFactor, 0, len(buckets))
	for tag, obsList := range buckets {
		if len(obsList) == 0 {
			continue
		}
		tf := &TextualFactor{
			Date:         f.Date,
			AgentName:    f.AgentName + "#" + tag, // stable id for downstream history
			Observations: obsList,
			LengthTokens: bucketTokens[tag],
			Preference:   tag, // traceability
			RawSources:   f.RawSources,
		}
		s.logger.Info("built tag factor",
			"agent", tf.AgentName, "observations", len(obsList), "tokens", tf.LengthTokens)
		out = append(out, tf)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].AgentName < out[j].AgentName })
	return out
}
