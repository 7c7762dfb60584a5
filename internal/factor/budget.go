package factor

// Limits caps a factor's observation list by count and estimated tokens.
type Limits struct {
	MaxObservations int // accepted observation count ceiling
	MaxTokens       int // cumulative estimated token ceiling
}

// Limit walks observations in order, dropping duplicates by dedup key and
// enforcing the count and token budgets. A duplicate is skipped and the
// walk continues; the first candidate that would overflow the token budget
// stops the walk entirely, as does reaching the count ceiling. Acceptance
// order equals input order: this is a greedy knapsack-by-arrival that
// favors earlier observations, not an optimal packing.
func Limit(observations []Observation, limits Limits, est Estimator) []Observation {
	if est == nil {
		est = RoughEstimator{}
	}

	seen := make(map[string]struct{}, len(observations))
	kept := make([]Observation, 0, len(observations))
	total := 0

	for _, obs := range observations {
		key := obs.DedupKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		cand := est.Estimate(obs.Text)
		if total+cand > limits.MaxTokens {
			break
		}
		kept = append(kept, obs)
		total += cand
		if len(kept) >= limits.MaxObservations {
			break
		}
	}
	return kept
}

// TokenLength sums the estimated token cost of all observations.
func TokenLength(observations []Observation, est Estimator) int {
	if est == nil {
		est = RoughEstimator{}
	}
	total := 0
	for _, obs := range observations {
		total += est.Estimate(obs.Text)
	}
	return total
}
