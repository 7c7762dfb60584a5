package agent

import (
	"regexp"
	"strings"
)

// SymbolRule maps an asset name/alias pattern to its main symbol.
// Rules are evaluated in order; the first match wins.
type SymbolRule struct {
	Pattern *regexp.Regexp
	Symbol  string
}

// defaultSymbolRules is the built-in alias table for the symbol guesser.
var defaultSymbolRules = []SymbolRule{
	{Pattern: regexp.MustCompile(`\bbitcoin\b|\bbtc\b`), Symbol: "BTC"},
	{Pattern: regexp.MustCompile(`\beth(er|ereum)?\b`), Symbol: "ETH"},
	{Pattern: regexp.MustCompile(`\bsolana\b|\bsol\b`), Symbol: "SOL"},
	{Pattern: regexp.MustCompile(`\bbnb\b`), Symbol: "BNB"},
	{Pattern: regexp.MustCompile(`\bton\b|\btoncoin\b`), Symbol: "TON"},
}

// knownSymbols is the alias set covered by the guesser. Symbols outside
// it are reported as an observability signal, never rejected.
var knownSymbols = map[string]struct{}{
	"BTC": {}, "ETH": {}, "SOL": {}, "BNB": {}, "TON": {},
}

// GuessSymbol scans text for a known asset alias and returns its main
// symbol, or "" when nothing matches.
func GuessSymbol(text string) string {
	t := strings.ToLower(text)
	for _, rule := range defaultSymbolRules {
		if rule.Pattern.MatchString(t) {
			return rule.Symbol
		}
	}
	return ""
}

// isKnownSymbol reports whether the guesser's alias table covers symbol.
func isKnownSymbol(symbol string) bool {
	_, ok := knownSymbols[symbol]
	return ok
}
