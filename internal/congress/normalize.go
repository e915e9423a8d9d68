package congress

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"buffonomics/internal/models"
)

// DateLayout is the canonical date format for trades and profiles.
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	time.RFC1123,
	time.RFC1123Z,
	"20060102",
}

// minEpochDigits keeps compact YYYYMMDD strings from being read as epochs.
const minEpochDigits = 9

var currencyReplacer = strings.NewReplacer("$", "", ",", "")

func stripCurrency(s string) string {
	return strings.TrimSpace(currencyReplacer.Replace(s))
}

// ParseTime parses the date and timestamp shapes seen in upstream data. Numbers, and
// digit strings longer than a compact date, are unix epochs.
func ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
		if len(s) < minEpochDigits {
			return time.Time{}, false
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
			return fromEpoch(float64(secs)), true
		}
		return time.Time{}, false
	default:
		if f, ok := asNumber(t); ok && f > 0 {
			return fromEpoch(f), true
		}
		return time.Time{}, false
	}
}

// fromEpoch reads large values as milliseconds.
func fromEpoch(v float64) time.Time {
	if v > 1e11 {
		return time.UnixMilli(int64(v)).UTC()
	}
	return time.Unix(int64(v), 0).UTC()
}

// NormalizeDate coerces v to YYYY-MM-DD, or "" when it cannot be parsed.
// ISO timestamps keep their calendar date.
func NormalizeDate(v any) string {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if i := strings.IndexByte(s, 'T'); i == len(DateLayout) {
			if _, err := time.Parse(DateLayout, s[:i]); err == nil {
				return s[:i]
			}
		}
	}
	t, ok := ParseTime(v)
	if !ok {
		return ""
	}
	return t.Format(DateLayout)
}

// NormalizeTimestamp coerces v to an RFC 3339 UTC timestamp, or "".
func NormalizeTimestamp(v any) string {
	t, ok := ParseTime(v)
	if !ok {
		return ""
	}
	return t.Format(time.RFC3339)
}

func parseBound(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseAmountRange resolves "$X - $Y" to its midpoint, or to X when only the lower
// bound parses.
func ParseAmountRange(s string) (float64, bool) {
	clean := stripCurrency(s)
	if clean == "" {
		return 0, false
	}
	lowRaw, highRaw, hasHigh := strings.Cut(clean, "-")
	low, lowOK := parseBound(lowRaw)
	if !lowOK {
		return 0, false
	}
	if hasHigh {
		if high, ok := parseBound(highRaw); ok {
			return (low + high) / 2, true
		}
	}
	return low, true
}

// ResolveAmount picks the explicit amount when present, otherwise the range estimate.
func ResolveAmount(r Record, amountRange string) *float64 {
	if v, ok := AmountChain.Extract(r); ok {
		return models.Float(v)
	}
	if v, ok := ParseAmountRange(amountRange); ok {
		return models.Float(v)
	}
	return nil
}

// SanitizeParty expands one-letter and abbreviated party labels.
func SanitizeParty(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case value == "":
		return ""
	case value == "d" || strings.HasPrefix(value, "dem"):
		return "Democratic Party"
	case value == "r" || strings.HasPrefix(value, "rep"):
		return "Republican Party"
	case value == "i":
		return "Independent"
	default:
		return strings.TrimSpace(raw)
	}
}

// ToTitle upper-cases the first letter of every word and lower-cases the rest.
func ToTitle(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func optional(c Chain[float64], r Record) *float64 {
	if v, ok := c.Extract(r); ok {
		return models.Float(v)
	}
	return nil
}

// BuildTrade normalizes one raw record into a trade.
func BuildTrade(r Record) models.Trade {
	amountRange := strings.TrimSpace(RangeChain.Value(r))
	transaction := strings.TrimSpace(TransactionChain.Value(r))

	filed, _ := FiledChain.Extract(r)
	traded, _ := TradedChain.Extract(r)
	modified, _ := ModifiedChain.Extract(r)

	return models.Trade{
		StockSymbol:     strings.TrimSpace(SymbolChain.Value(r)),
		TransactionType: transaction,
		Type:            models.DeriveTradeType(transaction),
		FiledDate:       NormalizeDate(filed),
		TradedDate:      NormalizeDate(traded),
		AmountRange:     amountRange,
		AmountValue:     ResolveAmount(r, amountRange),
		Description:     strings.TrimSpace(DescriptionChain.Value(r)),
		EstReturn:       optional(EstReturnChain, r),
		Chamber:         strings.TrimSpace(ChamberChain.Value(r)),
		District:        strings.TrimSpace(DistrictChain.Value(r)),
		Party:           SanitizeParty(PartyChain.Value(r)),
		TickerType:      strings.TrimSpace(TickerTypeChain.Value(r)),
		ExcessReturn:    optional(ExcessChain, r),
		PriceChange:     optional(PriceChangeChain, r),
		SpyChange:       optional(SpyChangeChain, r),
		LastModified:    NormalizeTimestamp(modified),
	}
}
