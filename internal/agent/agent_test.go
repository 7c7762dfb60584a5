package agent

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/RusaUB/nexintel/internal/factor"
	"github.com/RusaUB/nexintel/internal/feed"
	"github.com/RusaUB/nexintel/internal/llm"
	"github.com/RusaUB/nexintel/internal/observe"
)

// mockProvider returns a canned response or error and records the prompt.
type mockProvider struct {
	response string
	err      error
	prompt   string
	opts     llm.CompletionOpts
	calls    int
}

func (m *mockProvider) Complete(ctx context.Context, prompt string, opts llm.CompletionOpts) (string, error) {
	m.calls++
	m.prompt = prompt
	m.opts = opts
	return m.response, m.err
}

func (m *mockProvider) Name() string { return "mock" }

func testEvents() []feed.Event {
	return []feed.Event{
		{Title: "BlackRock ETF sees record inflows", Content: "Spot bitcoin fund drew $500m.", Source: "CoinDesk"},
		{Title: "Ethereum gas fees spike", Content: "Network congestion after protocol upgrade.", Source: "CoinDesk"},
	}
}

var testDate = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func TestRunHappyPath(t *testing.T) {
	p := &mockProvider{response: `{
		"observations": [
			{"text": "BTC ETF inflows hit record, supportive of spot demand.", "asset": "BTC", "rating": 2, "tags": ["etf", "news"]},
			{"text": "ETH gas spike signals congestion, mild usage headwind.", "asset": "eth", "rating": -1, "tags": ["onchain"]}
		]
	}`}
	a, err := New(p, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	f := a.Run(context.Background(), testDate, testEvents())
	if p.calls != 1 {
		t.Fatalf("provider called %d times, want 1 (no retries)", p.calls)
	}
	if len(f.Observations) != 2 {
		t.Fatalf("got %d observations, want 2", len(f.Observations))
	}
	if f.Observations[0].Asset != "BTC" || f.Observations[0].Rating != 2 {
		t.Errorf("obs[0] = %+v", f.Observations[0])
	}
	if f.Observations[1].Asset != "ETH" {
		t.Errorf("asset not uppercased: %q", f.Observations[1].Asset)
	}
	if !reflect.DeepEqual(f.Observations[0].Tags, []string{"etf", "news"}) {
		t.Errorf("tags = %v", f.Observations[0].Tags)
	}
	if f.AgentName != DefaultName {
		t.Errorf("agent name = %q", f.AgentName)
	}
	if f.LengthTokens <= 0 {
		t.Error("token length not computed")
	}
	if len(f.RawSources) != 2 {
		t.Errorf("raw sources = %d, want 2", len(f.RawSources))
	}
}

func TestRunModelErrorFallsBack(t *testing.T) {
	p := &mockProvider{err: errors.New("upstream 500")}
	a, err := New(p, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	events := testEvents()
	f := a.Run(context.Background(), testDate, events)
	if p.calls != 1 {
		t.Fatalf("provider called %d times, want 1 (no retries)", p.calls)
	}
	if len(f.Observations) != len(events) {
		t.Fatalf("got %d fallback observations, want %d", len(f.Observations), len(events))
	}
	for _, o := range f.Observations {
		if o.Rating != 0 {
			t.Errorf("fallback rating = %d, want 0", o.Rating)
		}
		if !reflect.DeepEqual(o.Tags, []string{"news", "fallback"}) {
			t.Errorf("fallback tags = %v", o.Tags)
		}
		if !strings.HasSuffix(o.Text, "May affect short-term supply/demand.") {
			t.Errorf("fallback text = %q", o.Text)
		}
	}
	if f.Observations[0].Asset != "BTC" {
		t.Errorf("fallback asset guess = %q, want BTC", f.Observations[0].Asset)
	}
}

func TestRunNilRecorderNonCanonicalTag(t *testing.T) {
	// Without a recorder configured, observations carrying tags outside
	// the canonical vocabulary must still flow through normalization.
	p := &mockProvider{response: `{
		"observations": [
			{"text": "Meme token mania returns.", "asset": "BTC", "rating": 1, "tags": ["memecoins", "news"]}
		]
	}`}
	a, err := New(p, Config{Recorder: nil})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	f := a.Run(context.Background(), testDate, testEvents())
	if len(f.Observations) != 1 {
		t.Fatalf("got %d observations, want 1", len(f.Observations))
	}
	if !reflect.DeepEqual(f.Observations[0].Tags, []string{"memecoins", "news"}) {
		t.Errorf("tags = %v", f.Observations[0].Tags)
	}
}

func TestRunMalformedResponseFallsBack(t *testing.T) {
	p := &mockProvider{response: "not json at all"}
	a, _ := New(p, Config{})

	f := a.Run(context.Background(), testDate, testEvents())
	if len(f.Observations) != 2 {
		t.Fatalf("got %d observations, want 2 fallbacks", len(f.Observations))
	}
}

func TestRunEmptyBatchNeutralFactor(t *testing.T) {
	p := &mockProvider{}
	a, _ := New(p, Config{})

	f := a.Run(context.Background(), testDate, nil)
	if p.calls != 0 {
		t.Error("model must not be called for an empty batch")
	}
	if len(f.Observations) != 1 {
		t.Fatalf("got %d observations, want 1", len(f.Observations))
	}
	o := f.Observations[0]
	if o.Text != "No new significant events identified; neutral day." {
		t.Errorf("neutral text = %q", o.Text)
	}
	if o.Rating != 0 || !reflect.DeepEqual(o.Tags, []string{"news"}) {
		t.Errorf("neutral observation = %+v", o)
	}
	if f.LengthTokens <= 0 {
		t.Error("neutral factor token length not computed")
	}
}

func TestRunDeduplicatesAndBudgets(t *testing.T) {
	p := &mockProvider{response: `{
		"observations": [
			{"text": "BTC ETF inflows hit record.", "asset": "BTC", "rating": 1, "tags": ["etf"]},
			{"text": "btc etf INFLOWS hit record.", "asset": "btc", "rating": 1, "tags": ["etf"]},
			{"text": "ETH upgrade ships on schedule.", "asset": "ETH", "rating": 1, "tags": ["protocol"]}
		]
	}`}
	a, _ := New(p, Config{MaxObservations: 5})

	f := a.Run(context.Background(), testDate, testEvents())
	if len(f.Observations) != 2 {
		t.Fatalf("got %d observations, want 2 after dedup", len(f.Observations))
	}
}

func TestRunRatingCoercion(t *testing.T) {
	p := &mockProvider{response: `{
		"observations": [
			{"text": "String rating.", "asset": "BTC", "rating": "-2", "tags": ["macro"]},
			{"text": "Float rating rounds away from zero.", "asset": "ETH", "rating": 1.5, "tags": ["macro"]},
			{"text": "Out of range clamps.", "asset": "SOL", "rating": 9, "tags": ["macro"]},
			{"text": "Garbage defaults to zero.", "asset": "BNB", "rating": "very bullish", "tags": ["macro"]}
		]
	}`}
	a, _ := New(p, Config{})

	f := a.Run(context.Background(), testDate, testEvents())
	want := []int{-2, 2, 2, 0}
	if len(f.Observations) != len(want) {
		t.Fatalf("got %d observations", len(f.Observations))
	}
	for i, o := range f.Observations {
		if o.Rating != want[i] {
			t.Errorf("obs[%d].Rating = %d, want %d", i, o.Rating, want[i])
		}
	}
}

func TestRunMissingAssetGuessedAndUnknownRecorded(t *testing.T) {
	p := &mockProvider{response: `{
		"observations": [
			{"text": "Bitcoin miners capitulate after difficulty jump.", "rating": -1, "tags": ["onchain"]},
			{"text": "Obscure token rallies.", "asset": "XYZABC", "rating": 1, "tags": ["narratives"]}
		]
	}`}
	rec := observe.NewRecorder()
	a, _ := New(p, Config{Recorder: rec})

	f := a.Run(context.Background(), testDate, testEvents())
	if f.Observations[0].Asset != "BTC" {
		t.Errorf("guessed asset = %q, want BTC", f.Observations[0].Asset)
	}
	sum := rec.Summary()
	if sum.UnknownSymbols["XYZABC"] != 1 {
		t.Errorf("unknown symbols = %v", sum.UnknownSymbols)
	}
}

func TestRunEmptyTagsDefaultToNews(t *testing.T) {
	p := &mockProvider{response: `{
		"observations": [
			{"text": "Quiet tape with nothing notable attached.", "asset": "BTC", "rating": 0}
		]
	}`}
	a, _ := New(p, Config{})

	f := a.Run(context.Background(), testDate, testEvents())
	if !reflect.DeepEqual(f.Observations[0].Tags, []string{"news"}) {
		t.Errorf("tags = %v, want [news]", f.Observations[0].Tags)
	}
}

func TestFilterEventsPreference(t *testing.T) {
	p := &mockProvider{}
	a, _ := New(p, Config{Preference: "etf"})

	events := []feed.Event{
		{Title: "Weather report", Content: "sunny"},
		{Title: "ETF flows update", Content: "etf etf etf"},
		{Title: "Spot ETF approved", Content: "big day"},
	}
	got := a.filterEvents(events)
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	// Highest mention count first.
	if got[0].Title != "ETF flows update" {
		t.Errorf("got[0] = %q", got[0].Title)
	}
}

func TestFilterEventsFailOpen(t *testing.T) {
	p := &mockProvider{}
	a, _ := New(p, Config{Preference: "zzz-no-match"})

	events := testEvents()
	got := a.filterEvents(events)
	if len(got) != len(events) {
		t.Errorf("fail-open violated: got %d events, want %d", len(got), len(events))
	}
}

func TestBuildPromptContainsDigestAndContract(t *testing.T) {
	p := &mockProvider{response: `{"observations": []}`}
	a, _ := New(p, Config{Preference: "crypto"})

	a.Run(context.Background(), testDate, testEvents())
	if !strings.Contains(p.prompt, "2025-03-01") {
		t.Error("prompt missing date")
	}
	if !strings.Contains(p.prompt, "1. BlackRock ETF sees record inflows") {
		t.Error("prompt missing enumerated digest")
	}
	if !strings.Contains(p.prompt, `"rating"`) {
		t.Error("prompt missing JSON contract")
	}
	if !strings.Contains(p.opts.System, "-2") || !strings.Contains(p.opts.System, "+2") {
		t.Error("system prompt missing rating scale")
	}
}

func TestTemperatureConfiguration(t *testing.T) {
	cases := []struct {
		name string
		temp *float64
		want float64
	}{
		{"nil uses default", nil, 0.2},
		{"explicit zero is deterministic", ptrFloat(0), 0},
		{"explicit value passes through", ptrFloat(0.7), 0.7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := &mockProvider{response: `{"observations": []}`}
			a, err := New(p, Config{Temperature: tc.temp})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			a.Run(context.Background(), testDate, testEvents())
			if p.opts.Temperature != tc.want {
				t.Errorf("temperature = %v, want %v", p.opts.Temperature, tc.want)
			}
		})
	}
}

func ptrFloat(f float64) *float64 { return &f }

func TestNewRequiresProvider(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Error("expected error for nil provider")
	}
}

func TestCoerceStringList(t *testing.T) {
	got := coerceStringList([]any{"BTC", 42, " ", "eth"})
	want := []string{"BTC", "42", "eth"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("coerceStringList = %v, want %v", got, want)
	}
	if coerceStringList("not a list") != nil {
		t.Error("non-list input should return nil")
	}
}

func TestLimitsDefaultsApplied(t *testing.T) {
	p := &mockProvider{}
	a, _ := New(p, Config{})
	if a.limits != (factor.Limits{MaxObservations: 7, MaxTokens: 4000}) {
		t.Errorf("default limits = %+v", a.limits)
	}
}
