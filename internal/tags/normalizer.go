// Package tags canonicalizes free-form topical tags into a controlled
// vocabulary: case/format folding, synonym substitution, and keyword
// fallback inference against the source text when no usable tag survives.
package tags

import (
	"log/slog"
	"regexp"
	"strings"
)

// DefaultMaxTags is the per-observation tag cap used when the config
// does not override it.
const DefaultMaxTags = 3

// DefaultCanonical is the controlled tag vocabulary. Tags outside this
// set are reported, not rejected.
var DefaultCanonical = []string{
	"macro", "regulation", "etf", "onchain", "derivatives", "orderbook",
	"sentiment", "tokenomics", "stablecoins", "ecosystem", "protocol",
	"narratives", "cex", "dex", "liquidity",
}

// DefaultSynonyms maps folded tag variants to their canonical form.
var DefaultSynonyms = map[string]string{
	// macro
	"macro_economy": "macro", "macro_economic": "macro", "rates": "macro",
	"cpi": "macro", "fed": "macro", "yields": "macro",
	// regulation
	"regulatory": "regulation", "policy": "regulation", "sec": "regulation",
	// etf
	"etf_flows": "etf", "spot_etf": "etf", "futures_etf": "etf",
	// onchain
	"on_chain": "onchain", "chain": "onchain", "addresses": "onchain", "tvl": "onchain",
	// derivatives
	"perps": "derivatives", "funding": "derivatives", "open_interest": "derivatives",
	"basis": "derivatives", "liquidations": "derivatives",
	// orderbook
	"order_flow": "orderbook", "book": "orderbook", "depth": "orderbook",
	// sentiment
	"newsflow": "sentiment", "social": "sentiment", "tone": "sentiment",
	// tokenomics
	"unlock": "tokenomics", "emission": "tokenomics", "halving": "tokenomics",
	// stablecoins
	"stables": "stablecoins", "usdt": "stablecoins", "usdc": "stablecoins",
	// ecosystem/protocol/narratives
	"dev_activity": "protocol", "revenue": "protocol", "fee": "protocol",
	"l2": "ecosystem", "sector_rotation": "narratives",
	// venues
	"centralized_exchange": "cex", "decentralized_exchange": "dex",
	// liquidity
	"market_liquidity": "liquidity", "depth_liquidity": "liquidity",
}

// FallbackRule infers a tag from keyword presence in the source text.
// Rules are evaluated in order and are non-exclusive: every rule whose
// keywords match appends its tag.
type FallbackRule struct {
	Keywords []string // lowercase substrings to look for
	Tag      string   // tag to append when any keyword matches
}

// DefaultFallbackRules is the fixed-order keyword heuristic applied when
// folding and synonym substitution leave an observation with no tags.
var DefaultFallbackRules = []FallbackRule{
	{Keywords: []string{"cpi", "fed", "yield", "rates", "inflation", "macro"}, Tag: "macro"},
	{Keywords: []string{"etf", "blackrock", "fidelity", "inflows", "outflows"}, Tag: "etf"},
	{Keywords: []string{"on-chain", "onchain", "addresses", "tvl", "bridge", "staking"}, Tag: "onchain"},
	{Keywords: []string{"funding", "perp", "perps", "basis", "oi", "open interest", "liquidations"}, Tag: "derivatives"},
	{Keywords: []string{"orderbook", "order book", "bid wall", "ask wall", "liquidity wall", "depth"}, Tag: "orderbook"},
	{Keywords: []string{"unlock", "emission", "halving", "supply schedule"}, Tag: "tokenomics"},
	{Keywords: []string{"stablecoin", "usdt", "usdc", "stable flow"}, Tag: "stablecoins"},
	{Keywords: []string{"dex", "amm", "lp", "pool"}, Tag: "dex"},
	{Keywords: []string{"cex", "binance", "bybit", "okx", "kraken", "coinbase"}, Tag: "cex"},
	{Keywords: []string{"narrative", "sector rotation", "theme"}, Tag: "narratives"},
}

var nonAlnumRE = regexp.MustCompile(`[^a-z0-9]+`)

// Fold converts a raw tag to its canonical token form: lowercase,
// non-alphanumeric runs collapsed to "_", leading/trailing "_" stripped.
// Folding an already-folded tag returns it unchanged.
func Fold(tag string) string {
	t := strings.ToLower(strings.TrimSpace(tag))
	t = nonAlnumRE.ReplaceAllString(t, "_")
	return strings.Trim(t, "_")
}

// Reporter receives the observability signal for tags outside the
// canonical vocabulary.
type Reporter interface {
	NonCanonicalTag(tag string)
}

// Normalizer canonicalizes tag lists against a configured synonym table
// and canonical set. The zero value is not usable; construct with New.
type Normalizer struct {
	synonyms map[string]string
	canon    map[string]struct{}
	fallback []FallbackRule
	maxTags  int
	reporter Reporter
	logger   *slog.Logger
}

// Config supplies the normalizer's vocabulary. Nil/empty fields fall
// back to the package defaults.
type Config struct {
	Synonyms  map[string]string
	Canonical []string
	Fallback  []FallbackRule
	MaxTags   int
	Reporter  Reporter // optional
	Logger    *slog.Logger
}

// New builds a Normalizer from config, applying defaults for anything unset.
func New(cfg Config) *Normalizer {
	n := &Normalizer{
		synonyms: cfg.Synonyms,
		fallback: cfg.Fallback,
		maxTags:  cfg.MaxTags,
		reporter: cfg.Reporter,
		logger:   cfg.Logger,
	}
	if n.synonyms == nil {
		n.synonyms = DefaultSynonyms
	}
	if n.fallback == nil {
		n.fallback = DefaultFallbackRules
	}
	if n.maxTags <= 0 {
		n.maxTags = DefaultMaxTags
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	canonical := cfg.Canonical
	if canonical == nil {
		canonical = DefaultCanonical
	}
	n.canon = make(map[string]struct{}, len(canonical))
	for _, t := range canonical {
		n.canon[Fold(t)] = struct{}{}
	}
	return n
}

// Normalize canonicalizes rawTags: fold, substitute synonyms, and drop
// duplicates preserving first-seen order. If nothing survives, the
// fallback keyword rules run against the lowercased source text. The
// result is truncated to the configured tag cap (earlier tags win).
// Tags outside the canonical set are reported but kept. Never errors;
// the result is empty only when raw input and heuristics both miss.
func (n *Normalizer) Normalize(rawTags []string, sourceText string) []string {
	seen := make(map[string]struct{}, len(rawTags))
	out := make([]string, 0, len(rawTags))

	add := func(tag string) {
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	for _, raw := range rawTags {
		folded := Fold(raw)
		if folded == "" {
			continue
		}
		if canon, ok := n.synonyms[folded]; ok {
			folded = canon
		}
		add(folded)
	}

	if len(out) == 0 {
		text := strings.ToLower(sourceText)
		for _, rule := range n.fallback {
			for _, kw := range rule.Keywords {
				if strings.Contains(text, kw) {
					add(rule.Tag)
					break
				}
			}
		}
	}

	if len(out) > n.maxTags {
		out = out[:n.maxTags]
	}

	for _, t := range out {
		if _, ok := n.canon[t]; !ok {
			n.logger.Info("non-canonical tag detected", "tag", t)
			if n.reporter != nil {
				n.reporter.NonCanonicalTag(t)
			}
		}
	}
	return out
}
