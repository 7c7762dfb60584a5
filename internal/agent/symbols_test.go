package agent

import "testing"

func TestGuessSymbol(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"Bitcoin miners capitulate", "BTC"},
		{"BTC breaks 70k", "BTC"},
		{"Ethereum upgrade ships", "ETH"},
		{"ether holds steady", "ETH"},
		{"Solana TPS record", "SOL"},
		{"SOL outperforms", "SOL"},
		{"BNB chain halts", "BNB"},
		{"Toncoin listing confirmed", "TON"},
		{"Gold rallies on macro fears", ""},
	}
	for _, tc := range cases {
		if got := GuessSymbol(tc.text); got != tc.want {
			t.Errorf("GuessSymbol(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestGuessSymbolFirstRuleWins(t *testing.T) {
	// Bitcoin rule precedes ethereum in the alias table.
	if got := GuessSymbol("bitcoin and ethereum both rally"); got != "BTC" {
		t.Errorf("GuessSymbol = %q, want BTC", got)
	}
}

func TestGuessSymbolNoPartialWordMatch(t *testing.T) {
	// "solution" must not match the sol alias.
	if got := GuessSymbol("a solution to scaling"); got != "" {
		t.Errorf("GuessSymbol = %q, want empty", got)
	}
}

func TestIsKnownSymbol(t *testing.T) {
	if !isKnownSymbol("BTC") {
		t.Error("BTC should be known")
	}
	if isKnownSymbol("XYZABC") {
		t.Error("XYZABC should be unknown")
	}
}
