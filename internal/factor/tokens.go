package factor

import (
	"fmt"
	"math"
	"strings"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Estimator estimates the token cost of text for budget enforcement.
type Estimator interface {
	Estimate(texts ...string) int
}

// RoughEstimator approximates token counts from whitespace word counts.
// It is the default: cheap, deterministic, and good enough for the
// coarse per-factor budgets the pipeline enforces.
type RoughEstimator struct{}

// Estimate returns round(wordCount * 1.3) across all texts.
func (RoughEstimator) Estimate(texts ...string) int {
	words := 0
	for _, t := range texts {
		words += len(strings.Fields(t))
	}
	return int(math.Round(float64(words) * 1.3))
}

// TokenizerEstimator counts real subword tokens using a HuggingFace
// tokenizer.json vocabulary. Used when exact budgets matter more than
// estimation speed.
type TokenizerEstimator struct {
	tk *tokenizer.Tokenizer
}

// NewTokenizerEstimator loads a tokenizer.json file from disk.
func NewTokenizerEstimator(path string) (*TokenizerEstimator, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer %s: %w", path, err)
	}
	return &TokenizerEstimator{tk: tk}, nil
}

// Estimate returns the summed encoded token count of all texts.
// Falls back to the rough estimate for any text that fails to encode.
func (e *TokenizerEstimator) Estimate(texts ...string) int {
	total := 0
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		en, err := e.tk.EncodeSingle(t)
		if err != nil {
			total += RoughEstimator{}.Estimate(t)
			continue
		}
		total += len(en.GetIds())
	}
	return total
}
