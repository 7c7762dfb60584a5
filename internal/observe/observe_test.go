package observe

import "testing"

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.NonCanonicalTag("memecoins")
	r.NonCanonicalTag("memecoins")
	r.NonCanonicalTag("airdrops")
	r.UnknownSymbol("XYZABC")

	s := r.Summary()
	if s.NonCanonicalTags["memecoins"] != 2 {
		t.Errorf("memecoins count = %d, want 2", s.NonCanonicalTags["memecoins"])
	}
	if s.NonCanonicalTags["airdrops"] != 1 {
		t.Errorf("airdrops count = %d, want 1", s.NonCanonicalTags["airdrops"])
	}
	if s.UnknownSymbols["XYZABC"] != 1 {
		t.Errorf("symbol count = %d, want 1", s.UnknownSymbols["XYZABC"])
	}
}

func TestSummaryIsSnapshot(t *testing.T) {
	r := NewRecorder()
	r.NonCanonicalTag("a")
	s := r.Summary()
	r.NonCanonicalTag("a")
	if s.NonCanonicalTags["a"] != 1 {
		t.Error("summary must not reflect later mutations")
	}
}
