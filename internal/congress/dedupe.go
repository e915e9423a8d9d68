package congress

import (
	"strings"

	"buffonomics/internal/models"
)

// authoritativeMarker identifies endpoints whose records are preferred.
const authoritativeMarker = "congresstrading"

// DedupeKey identifies the same disclosed trade across endpoints.
func DedupeKey(t models.Trade) string {
	return strings.Join([]string{
		t.StockSymbol,
		strings.ToLower(t.TransactionType),
		t.EffectiveDate(),
		t.AmountRange,
	}, "|")
}

// QualityScore rates how complete a trade is. Records from authoritative
// endpoints get a bonus.
func QualityScore(t models.Trade, source string) float64 {
	score := 0.0
	if t.Description != "" {
		score += 3
	}
	if t.AmountValue != nil {
		score += 2
	}
	if t.ExcessReturn != nil {
		score += 2
	}
	if t.Party != "" {
		score++
	}
	if t.Chamber != "" {
		score += 0.5
	}
	if t.FiledDate != "" {
		score += 0.5
	}
	if t.TickerType != "" {
		score += 0.3
	}
	if strings.Contains(strings.ToLower(source), authoritativeMarker) {
		score += 1.5
	}
	return score
}

type scored struct {
	record Record
	score  float64
}

// Dedupe collapses records describing the same trade. Colliding records are merged
// field by field with the higher scoring one as primary; on a tie the record seen
// first stays primary. Output keeps first-seen key order.
func Dedupe(records []Record) []Record {
	order := make([]string, 0, len(records))
	byKey := make(map[string]scored, len(records))

	for _, rec := range records {
		trade := BuildTrade(rec)
		key := DedupeKey(trade)
		score := QualityScore(trade, rec.Source)

		current, seen := byKey[key]
		if !seen {
			order = append(order, key)
			byKey[key] = scored{record: rec, score: score}
			continue
		}

		primary, fallback := current.record, rec
		if score > current.score {
			primary, fallback = rec, current.record
		}
		merged := Merge(primary, fallback)
		byKey[key] = scored{
			record: merged,
			score:  QualityScore(BuildTrade(merged), merged.Source),
		}
	}

	out := make([]Record, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key].record)
	}
	return out
}
