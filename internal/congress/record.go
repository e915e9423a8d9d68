// Package congress fetches congressional trading disclosures from upstream providers
// and normalizes their heterogeneous records into politician profiles.
package congress

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Record is one raw upstream object and the endpoint it was fetched from.
type Record struct {
	Fields map[string]any
	Source string
}

// NewRecord wraps fields fetched from source.
func NewRecord(source string, fields map[string]any) Record {
	if fields == nil {
		fields = map[string]any{}
	}
	return Record{Fields: fields, Source: source}
}

// Extractor pulls one logical value out of a record.
type Extractor[T any] struct {
	Name string
	Fn   func(Record) (T, bool)
}

// Chain is an ordered list of extractors; the first that reports ok wins.
type Chain[T any] []Extractor[T]

// Extract runs the chain against r.
func (c Chain[T]) Extract(r Record) (T, bool) {
	for _, e := range c {
		if v, ok := e.Fn(r); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Value runs the chain and returns the zero value when nothing matched.
func (c Chain[T]) Value(r Record) T {
	v, _ := c.Extract(r)
	return v
}

func meaningful(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	default:
		return true
	}
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return "", false
		}
		return t, true
	case float64:
		if t == 0 {
			return "", false
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case json.Number:
		return t.String(), t.String() != ""
	case bool:
		return "", false
	case nil:
		return "", false
	default:
		return "", false
	}
}

func asNumber(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// stringField reads the first non-empty string under name.
func stringField(name string) Extractor[string] {
	return Extractor[string]{Name: name, Fn: func(r Record) (string, bool) {
		return asString(r.Fields[name])
	}}
}

// numberField reads a finite number under name, accepting numeric strings.
func numberField(name string) Extractor[float64] {
	return Extractor[float64]{Name: name, Fn: func(r Record) (float64, bool) {
		return asNumber(r.Fields[name])
	}}
}

// rawField reads any non-empty value under name.
func rawField(name string) Extractor[any] {
	return Extractor[any]{Name: name, Fn: func(r Record) (any, bool) {
		v := r.Fields[name]
		return v, meaningful(v)
	}}
}

func stringChain(names ...string) Chain[string] {
	chain := make(Chain[string], 0, len(names))
	for _, n := range names {
		chain = append(chain, stringField(n))
	}
	return chain
}

func numberChain(names ...string) Chain[float64] {
	chain := make(Chain[float64], 0, len(names))
	for _, n := range names {
		chain = append(chain, numberField(n))
	}
	return chain
}

func rawChain(names ...string) Chain[any] {
	chain := make(Chain[any], 0, len(names))
	for _, n := range names {
		chain = append(chain, rawField(n))
	}
	return chain
}

// Field alias chains in priority order.
var (
	RangeChain       = stringChain("Range", "range", "AmountRange", "Trade_Size_USD", "TradeSizeUSD")
	DescriptionChain = stringChain("Description", "description", "Comments", "comments", "Subholding", "asset_description", "AssetDescription")
	SymbolChain      = stringChain("Ticker", "ticker", "asset", "asset_symbol")
	TransactionChain = stringChain("Transaction", "transaction", "type", "Owner")
	FiledChain       = rawChain("ReportDate", "report_date", "Report_Date", "DisclosureDate", "disclosure_date", "FilingDate", "filing_date", "Filed")
	TradedChain      = rawChain("TransactionDate", "transaction_date", "Transaction_Date", "TradeDate", "trade_date", "Date", "Traded")
	EstReturnChain   = numberChain("Return", "return", "excess_return")
	ChamberChain     = stringChain("House", "Chamber", "branch")
	DistrictChain    = stringChain("District", "district", "State", "state")
	PartyChain       = stringChain("Party", "party")
	TickerTypeChain  = stringChain("TickerType", "ticker_type")
	ExcessChain      = numberChain("ExcessReturn", "excess_return")
	PriceChangeChain = numberChain("PriceChange", "price_change")
	SpyChangeChain   = numberChain("SPYChange", "spy_change", "spy_delta")
	ModifiedChain    = rawChain("last_modified", "uploaded")

	// AmountChain reads an explicit amount. Trade_Size_USD counts only when it is a
	// plain number once currency symbols and separators are removed.
	AmountChain = Chain[float64]{
		numberField("Amount"),
		numberField("amount"),
		{Name: "Trade_Size_USD", Fn: func(r Record) (float64, bool) {
			v := r.Fields["Trade_Size_USD"]
			if s, ok := v.(string); ok {
				return asNumber(stripCurrency(s))
			}
			return asNumber(v)
		}},
	}

	// NameChain identifies the politician behind a record.
	NameChain = Chain[string]{
		stringField("Representative"),
		stringField("Politician"),
		stringField("Name"),
		{Name: "FirstName+LastName", Fn: func(r Record) (string, bool) {
			first, _ := asString(r.Fields["FirstName"])
			last, _ := asString(r.Fields["LastName"])
			full := strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
			return full, full != ""
		}},
	}

	// Profile-level chains read from the newest record.
	ProfileChamberChain = stringChain("Chamber", "House", "branch")
	ProfileStateChain   = stringChain("State", "state", "District")
)

// RecordName returns the politician name a record refers to.
func RecordName(r Record) string {
	return strings.TrimSpace(NameChain.Value(r))
}

// Merge overlays the meaningful fields of primary on top of fallback.
// The result carries the primary's source, or the fallback's when the primary has none.
func Merge(primary, fallback Record) Record {
	merged := make(map[string]any, len(primary.Fields)+len(fallback.Fields))
	for k, v := range fallback.Fields {
		merged[k] = v
	}
	for k, v := range primary.Fields {
		if meaningful(v) {
			merged[k] = v
		}
	}
	source := primary.Source
	if source == "" {
		source = fallback.Source
	}
	return Record{Fields: merged, Source: source}
}
