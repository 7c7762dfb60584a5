// Package agent turns a day's event batch into a TextualFactor: an
// optional preference filter narrows the batch, one text-generation call
// extracts 3-7 atomic observations under a strict JSON contract, and a
// deterministic fallback produces neutral observations when the call fails.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/RusaUB/nexintel/internal/factor"
	"github.com/RusaUB/nexintel/internal/feed"
	"github.com/RusaUB/nexintel/internal/llm"
	"github.com/RusaUB/nexintel/internal/observe"
	"github.com/RusaUB/nexintel/internal/tags"
)

// DefaultName is the agent name used when the config does not set one.
const DefaultName = "NewsDataAgent"

// excerptRunes caps the per-event content excerpt in the prompt digest.
const excerptRunes = 280

// defaultTemperature keeps extraction output stable across runs.
const defaultTemperature = 0.2

const systemPrompt = "You are a DataAgent in a multi-agent trading system. " +
	"Produce a SHORT textual factor with 3-7 atomic observations for the day. " +
	"Each observation MUST focus on ONE asset and include a brief causal reason " +
	"for 1-3 day price impact, with a discrete impact rating from -2 (strongly " +
	"bearish) to +2 (strongly bullish). " +
	"Additionally, assign smart topical tags per observation."

// Config holds the extractor agent's parameters.
type Config struct {
	Name            string
	Preference      string        // optional preference filter string
	MaxObservations int           // composite factor observation cap
	MaxTokens       int           // composite factor token budget
	MaxOutputTokens int           // generation size hint for the model call
	Temperature     *float64      // sampling temperature; nil = default, 0 = deterministic
	Estimator       factor.Estimator
	Normalizer      *tags.Normalizer
	Recorder        *observe.Recorder // optional
	Logger          *slog.Logger
}

// Agent extracts observations from event batches. One pipeline run is
// fully synchronous; the model call is the only blocking operation.
type Agent struct {
	name       string
	preference string
	limits     factor.Limits
	maxOutput  int
	temp       float64
	provider   llm.Provider
	est        factor.Estimator
	normalizer *tags.Normalizer
	recorder   *observe.Recorder
	logger     *slog.Logger
}

// New builds an Agent. The provider is required; everything else has
// working defaults.
func New(provider llm.Provider, cfg Config) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("llm provider is required")
	}
	a := &Agent{
		name:       cfg.Name,
		preference: cfg.Preference,
		limits:     factor.Limits{MaxObservations: cfg.MaxObservations, MaxTokens: cfg.MaxTokens},
		maxOutput:  cfg.MaxOutputTokens,
		temp:       defaultTemperature,
		provider:   provider,
		est:        cfg.Estimator,
		normalizer: cfg.Normalizer,
		recorder:   cfg.Recorder,
		logger:     cfg.Logger,
	}
	if a.name == "" {
		a.name = DefaultName
	}
	if a.limits.MaxObservations <= 0 {
		a.limits.MaxObservations = 7
	}
	if a.limits.MaxTokens <= 0 {
		a.limits.MaxTokens = 4000
	}
	if a.maxOutput <= 0 {
		a.maxOutput = 1200
	}
	if cfg.Temperature != nil {
		a.temp = *cfg.Temperature
	}
	if a.est == nil {
		a.est = factor.RoughEstimator{}
	}
	if a.normalizer == nil {
		// A nil *observe.Recorder must not become a non-nil Reporter
		// interface value.
		tagsCfg := tags.Config{}
		if cfg.Recorder != nil {
			tagsCfg.Reporter = cfg.Recorder
		}
		a.normalizer = tags.New(tagsCfg)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a, nil
}

// Name returns the agent's configured name.
func (a *Agent) Name() string { return a.name }

// Run processes one date's event batch into a composite TextualFactor.
// Runtime data-quality problems never fail the run: a failed model call
// degrades to one fallback observation per event, and an empty batch
// yields a single neutral observation.
func (a *Agent) Run(ctx context.Context, date time.Time, events []feed.Event) *factor.TextualFactor {
	a.logger.Info("agent run", "agent", a.name, "date", date.Format("2006-01-02"), "raw_events", len(events))

	filtered := a.filterEvents(events)
	if len(filtered) == 0 {
		a.logger.Info("no relevant events; emitting neutral factor", "agent", a.name)
		neutral := factor.Observation{
			Text:   "No new significant events identified; neutral day.",
			Rating: 0,
			Tags:   []string{"news"},
		}
		return &factor.TextualFactor{
			Date:         date,
			AgentName:    a.name,
			Observations: []factor.Observation{neutral},
			LengthTokens: a.est.Estimate(neutral.Text),
			Preference:   a.preference,
		}
	}

	obs := a.extract(ctx, date, filtered)
	obs = factor.Limit(obs, a.limits, a.est)
	length := factor.TokenLength(obs, a.est)

	a.logger.Info("factor built", "agent", a.name, "observations", len(obs), "tokens", length)
	return &factor.TextualFactor{
		Date:         date,
		AgentName:    a.name,
		Observations: obs,
		LengthTokens: length,
		Preference:   a.preference,
		RawSources:   filtered,
	}
}

// filterEvents keeps events whose title+content mention the preference,
// sorted by descending mention count. When no event matches, the original
// set passes through unchanged (fail-open).
func (a *Agent) filterEvents(events []feed.Event) []feed.Event {
	a.logger.Debug("filter", "input_events", len(events), "preference", a.preference)
	if a.preference == "" {
		return events
	}
	pref := strings.ToLower(a.preference)

	type scored struct {
		score int
		ev    feed.Event
	}
	all := make([]scored, 0, len(events))
	for _, ev := range events {
		text := strings.ToLower(ev.Title + " " + ev.Content)
		all = append(all, scored{score: strings.Count(text, pref), ev: ev})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })

	filtered := make([]feed.Event, 0, len(all))
	for _, s := range all {
		if s.score > 0 {
			filtered = append(filtered, s.ev)
		}
	}
	if len(filtered) == 0 {
		return events
	}
	a.logger.Debug("filter", "output_events", len(filtered))
	return filtered
}

// llmEnvelope is the strict output contract of the extraction call.
type llmEnvelope struct {
	Observations []llmObservation `json:"observations"`
}

// llmObservation carries loosely-typed fields so that per-item type
// drift (numeric string ratings, non-string tags) is coerced rather
// than failing the whole response.
type llmObservation struct {
	Text    any `json:"text"`
	Asset   any `json:"asset"`
	Symbols any `json:"symbols"`
	Rating  any `json:"rating"`
	Tags    any `json:"tags"`
}

// extract issues the model call and parses its response. Any transport
// or decode failure falls back to one synthetic neutral observation per
// event; there are no retries.
func (a *Agent) extract(ctx context.Context, date time.Time, events []feed.Event) []factor.Observation {
	prompt := a.buildPrompt(date, events)

	a.logger.Debug("model call", "events", len(events), "max_output_tokens", a.maxOutput)
	raw, err := a.provider.Complete(ctx, prompt, llm.CompletionOpts{
		MaxTokens:   a.maxOutput,
		Temperature: a.temp,
		Format:      "json",
		System:      systemPrompt,
	})
	if err != nil {
		a.logger.Warn("model call failed, falling back", "error", err)
		return a.fallbackObservations(events)
	}

	var envelope llmEnvelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		a.logger.Warn("malformed model response, falling back", "error", err)
		return a.fallbackObservations(events)
	}
	a.logger.Debug("model observations parsed", "count", len(envelope.Observations))

	out := make([]factor.Observation, 0, len(envelope.Observations))
	for i, item := range envelope.Observations {
		text := strings.TrimSpace(coerceString(item.Text))
		asset := strings.ToUpper(strings.TrimSpace(coerceString(item.Asset)))
		symbols := coerceStringList(item.Symbols)
		rating := factor.ClampRating(coerceRating(item.Rating))

		if asset == "" {
			asset = GuessSymbol(text)
		}
		if asset != "" && !isKnownSymbol(asset) {
			a.logger.Info("model returned possibly new symbol", "asset", asset, "symbols", symbols)
			if a.recorder != nil {
				a.recorder.UnknownSymbol(asset)
			}
		}

		normalized := a.normalizer.Normalize(coerceStringList(item.Tags), text)
		if len(normalized) == 0 {
			normalized = []string{"news"}
		}
		a.logger.Debug("observation", "index", i+1, "asset", asset, "tags", normalized, "rating", rating)

		out = append(out, factor.Observation{
			Text:   text,
			Asset:  asset,
			Rating: rating,
			Tags:   normalized,
		})
	}
	return out
}

// buildPrompt renders the date, preference, and an enumerated digest of
// event titles and content excerpts together with the JSON contract.
func (a *Agent) buildPrompt(date time.Time, events []feed.Event) string {
	var digest strings.Builder
	for i, ev := range events {
		fmt.Fprintf(&digest, "%d. %s :: %s\n", i+1,
			strings.TrimSpace(ev.Title), excerpt(ev.Content, excerptRunes))
	}

	pref := a.preference
	if pref == "" {
		pref = "none"
	}

	return fmt.Sprintf(`Date: %s
Preference of the day: %s

News (headline :: brief):
%s
Return STRICT JSON:
{
  "observations": [
    {
      "text": "Short atomic observation (what happened -> why it matters -> asset)",
      "asset": "MAIN SYMBOL in UPPERCASE or null if unsure",
      "symbols": ["LIST of possible symbols/aliases/tickers, can be empty"],
      "rating": "INTEGER impact rating in {-2,-1,0,1,2} for 1-3 day price direction",
      "tags": ["LOWER_SNAKE_CASE topical tags, e.g. macro, onchain, etf, derivatives, orderbook, sentiment, tokenomics, stablecoins, ecosystem, protocol, narratives, cex, dex, liquidity"]
    }
  ]
}
Rules:
- 3-7 observations; if a sentence mentions multiple assets, split into separate observations.
- DO NOT restrict symbols to a predefined list: if the asset is new/rare, still return it as-is (UPPERCASE). Contract/address can be noted as "CA:<address>" in symbols.
- Tags MUST be topical (not assets), in lower_snake_case. Create a new tag if necessary (keep it short and general).
- Keep it short (overall <= ~4k tokens).
`, date.Format("2006-01-02"), pref, digest.String())
}

// fallbackObservations synthesizes one neutral observation per event.
// This is the only recovery path for a failed extraction call.
func (a *Agent) fallbackObservations(events []feed.Event) []factor.Observation {
	out := make([]factor.Observation, 0, len(events))
	for _, ev := range events {
		out = append(out, factor.Observation{
			Text:   strings.TrimSpace(ev.Title) + ". May affect short-term supply/demand.",
			Asset:  GuessSymbol(ev.Title + " " + ev.Content),
			Rating: 0,
			Tags:   []string{"news", "fallback"},
		})
	}
	return out
}

// excerpt truncates s to at most n runes.
func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// coerceString best-effort converts a loosely-typed JSON value to a string.
func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// coerceStringList best-effort converts a loosely-typed JSON value to a
// string slice, stringifying non-string elements.
func coerceStringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(coerceString(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// coerceRating best-effort converts a loosely-typed JSON value to an
// integer rating, defaulting to 0 on failure.
func coerceRating(v any) int {
	switch t := v.(type) {
	case float64:
		return int(roundHalfAway(t))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return int(roundHalfAway(f))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return int(roundHalfAway(f))
	default:
		return 0
	}
}

func roundHalfAway(f float64) float64 {
	if f < 0 {
		return -float64(int(-f + 0.5))
	}
	return float64(int(f + 0.5))
}
