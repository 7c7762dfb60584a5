// Package factor defines the textual evidence model for the NexIntel
// pipeline and the operations that shape it:
// - Observation and TextualFactor types with a global dedup identity
// - token-budget estimation (rough word count or a real tokenizer)
// - greedy dedup/budget limiting
// - tag-based splitting of one factor into single-tag factors
package factor

import (
	"regexp"
	"strings"
	"time"

	"github.com/RusaUB/nexintel/internal/feed"
)

// RatingMin and RatingMax bound the discrete directional-impact scale.
// An observation's rating expresses expected 1-3 day price impact:
// -2 strongly bearish .. +2 strongly bullish.
const (
	RatingMin = -2
	RatingMax = 2
)

// Observation is one atomic extracted claim about a single asset.
// Created once by the extractor; tags are attached at creation after
// normalization and the struct is not mutated afterwards.
type Observation struct {
	Text   string   `json:"text"`
	Asset  string   `json:"asset,omitempty"` // main symbol, uppercase; empty if unknown
	Rating int      `json:"rating"`          // RatingMin..RatingMax
	Tags   []string `json:"tags,omitempty"`  // normalized topical tags
}

// TextualFactor is a dated, named bundle of observations with an
// estimated token length and provenance back to the source events.
type TextualFactor struct {
	Date         time.Time     `json:"date"`
	AgentName    string        `json:"agent_name"`
	Observations []Observation `json:"observations"`
	LengthTokens int           `json:"length_tokens"`
	Preference   string        `json:"preference,omitempty"`
	RawSources   []feed.Event  `json:"raw_sources,omitempty"`
}

var spaceRunRE = regexp.MustCompile(`\s+`)

// DedupKey returns the observation's global identity for deduplication:
// uppercased asset (or "NA") paired with its whitespace-collapsed,
// lowercased text. No two retained observations in a derived factor set
// may share this key.
func (o Observation) DedupKey() string {
	asset := strings.ToUpper(strings.TrimSpace(o.Asset))
	if asset == "" {
		asset = "NA"
	}
	text := strings.ToLower(strings.TrimSpace(spaceRunRE.ReplaceAllString(o.Text, " ")))
	return asset + "|" + text
}

// ClampRating coerces v onto the discrete rating scale.
func ClampRating(v int) int {
	if v < RatingMin {
		return RatingMin
	}
	if v > RatingMax {
		return RatingMax
	}
	return v
}
