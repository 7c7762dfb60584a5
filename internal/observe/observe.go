// Package observe collects informational signals from a pipeline run:
// tags outside the canonical vocabulary and asset symbols outside the
// known alias set. Signals are never blocking — they answer "what new
// vocabulary is the upstream model inventing?" for operators.
package observe

// Recorder accumulates non-canonical tags and unknown symbols seen
// during one pipeline run. The pipeline is single-threaded, so the
// recorder needs no locking.
type Recorder struct {
	tagCounts    map[string]int
	symbolCounts map[string]int
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		tagCounts:    make(map[string]int),
		symbolCounts: make(map[string]int),
	}
}

// NonCanonicalTag records a tag outside the configured canonical set.
func (r *Recorder) NonCanonicalTag(tag string) {
	r.tagCounts[tag]++
}

// UnknownSymbol records an asset symbol outside the known alias set.
func (r *Recorder) UnknownSymbol(symbol string) {
	r.symbolCounts[symbol]++
}

// Summary holds the accumulated signal counts for one run.
type Summary struct {
	NonCanonicalTags map[string]int `json:"non_canonical_tags,omitempty"`
	UnknownSymbols   map[string]int `json:"unknown_symbols,omitempty"`
}

// Summary snapshots the recorded counts.
func (r *Recorder) Summary() Summary {
	s := Summary{
		NonCanonicalTags: make(map[string]int, len(r.tagCounts)),
		UnknownSymbols:   make(map[string]int, len(r.symbolCounts)),
	}
	for k, v := range r.tagCounts {
		s.NonCanonicalTags[k] = v
	}
	for k, v := range r.symbolCounts {
		s.UnknownSymbols[k] = v
	}
	return s
}
