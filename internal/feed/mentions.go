package feed

import (
	"fmt"
	"strings"
	"time"
)

// MentionRow is one symbol's week-over-week social mention growth,
// as reported by an analytics query.
type MentionRow struct {
	Symbol        string  `json:"symbol"`
	MentionGrowth float64 `json:"mention_growth"` // fractional change, e.g. 0.42 = +42%
}

// maxMentionRows caps how many gainers/decliners the digest names.
const maxMentionRows = 5

// BuildMentionsDigest renders mention-growth rows into a short prose
// digest: top gainers first, then decliners. Returns "" for no rows.
func BuildMentionsDigest(rows []MentionRow, category string) string {
	var gainers, decliners []MentionRow
	for _, r := range rows {
		if r.MentionGrowth > 0 {
			gainers = append(gainers, r)
		} else {
			decliners = append(decliners, r)
		}
	}

	var b strings.Builder
	if len(gainers) > 0 {
		fmt.Fprintf(&b, "Over the past week, %s mentions showed strong growth:\n", category)
		b.WriteString(joinMentions(gainers, true))
		b.WriteString(".\n")
	}
	if len(decliners) > 0 {
		b.WriteString(joinMentions(decliners, false))
		b.WriteString(" recorded declines, signaling reduced community interest.\n")
	}
	return b.String()
}

func joinMentions(rows []MentionRow, positive bool) string {
	n := len(rows)
	if n > maxMentionRows {
		n = maxMentionRows
	}
	parts := make([]string, 0, n)
	for _, r := range rows[:n] {
		pct := int(r.MentionGrowth * 100)
		if positive {
			parts = append(parts, fmt.Sprintf("%s (+%d%%)", r.Symbol, pct))
		} else {
			parts = append(parts, fmt.Sprintf("%s (%d%%)", r.Symbol, pct))
		}
	}
	return strings.Join(parts, ", ")
}

// MentionsEvent wraps a category's mention digest as a single Event so
// social signal flows through the same extraction path as news.
func MentionsEvent(category string, rows []MentionRow, meta map[string]string) Event {
	return Event{
		Timestamp: time.Now(),
		Asset:     category,
		Source:    "Mentions",
		Title:     fmt.Sprintf("Weekly %s Mentions Report", category),
		Content:   BuildMentionsDigest(rows, category),
		Meta:      meta,
	}
}
