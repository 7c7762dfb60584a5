package factor

import "testing"

func TestDedupKey(t *testing.T) {
	cases := []struct {
		name string
		obs  Observation
		want string
	}{
		{
			name: "asset upper and text lower",
			obs:  Observation{Text: "BTC breaks resistance", Asset: "btc"},
			want: "BTC|btc breaks resistance",
		},
		{
			name: "empty asset maps to NA",
			obs:  Observation{Text: "Market quiet"},
			want: "NA|market quiet",
		},
		{
			name: "whitespace runs collapse",
			obs:  Observation{Text: "  ETH \t gas\n\nspikes ", Asset: "ETH"},
			want: "ETH|eth gas spikes",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.obs.DedupKey(); got != tc.want {
				t.Errorf("DedupKey() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDedupKeyEquivalence(t *testing.T) {
	a := Observation{Text: "BTC ETF   inflows surge", Asset: "BTC"}
	b := Observation{Text: "btc etf inflows SURGE", Asset: "btc"}
	if a.DedupKey() != b.DedupKey() {
		t.Errorf("keys differ: %q vs %q", a.DedupKey(), b.DedupKey())
	}
	c := Observation{Text: "btc etf inflows surge", Asset: "ETH"}
	if a.DedupKey() == c.DedupKey() {
		t.Error("different assets must not collide")
	}
}

func TestClampRating(t *testing.T) {
	cases := []struct{ in, want int }{
		{-5, -2}, {-2, -2}, {0, 0}, {2, 2}, {7, 2},
	}
	for _, tc := range cases {
		if got := ClampRating(tc.in); got != tc.want {
			t.Errorf("ClampRating(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
