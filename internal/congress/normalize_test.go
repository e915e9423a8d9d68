package congress

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buffonomics/internal/models"
)

func TestParseAmountRange(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
		ok    bool
	}{
		{"midpoint", "$1,000 - $15,000", 8000, true},
		{"odd bounds", "$1,001 - $15,000", 8000.5, true},
		{"single value", "$50,000", 50000, true},
		{"lower bound only", "$1,000 - abc", 1000, true},
		{"empty", "", 0, false},
		{"garbage", "n/a", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAmountRange(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"iso date", "2024-01-15", "2024-01-15"},
		{"iso timestamp", "2024-01-15T23:59:59.000Z", "2024-01-15"},
		{"us date", "01/15/2024", "2024-01-15"},
		{"long month", "January 15, 2024", "2024-01-15"},
		{"short month", "Jan 15, 2024", "2024-01-15"},
		{"unix seconds", float64(1705276800), "2024-01-15"},
		{"unix millis", float64(1705276800000), "2024-01-15"},
		{"unix seconds string", "1705276800", "2024-01-15"},
		{"compact date", "20240105", "2024-01-05"},
		{"compact invalid date", "20241345", ""},
		{"short digits", "1234", ""},
		{"unparseable", "not a date", ""},
		{"nil", nil, ""},
		{"blank", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDate(tt.input))
		})
	}
}

func TestSanitizeParty(t *testing.T) {
	assert.Equal(t, "Democratic Party", SanitizeParty("d"))
	assert.Equal(t, "Democratic Party", SanitizeParty(" Dem "))
	assert.Equal(t, "Republican Party", SanitizeParty("R"))
	assert.Equal(t, "Republican Party", SanitizeParty("Republican"))
	assert.Equal(t, "Independent", SanitizeParty("i"))
	assert.Equal(t, "Green", SanitizeParty("Green"))
	assert.Equal(t, "", SanitizeParty(""))
}

func TestFormatPosition(t *testing.T) {
	assert.Equal(t, "Representatives · CA", FormatPosition("representatives", "CA"))
	assert.Equal(t, "Senate Floor", FormatPosition("SENATE floor", ""))
	assert.Equal(t, "CA", FormatPosition("", "CA"))
	assert.Equal(t, "", FormatPosition("", ""))
}

func TestBuildTrade(t *testing.T) {
	rec := NewRecord("/beta/housetrading", map[string]any{
		"Ticker":          " AAPL ",
		"Transaction":     "Sale (Full)",
		"TransactionDate": "2024-03-05T00:00:00Z",
		"ReportDate":      "03/20/2024",
		"Range":           "$1,001 - $15,000",
		"Party":           "D",
		"House":           "Representatives",
		"District":        "CA12",
		"ExcessReturn":    "1.25",
		"last_modified":   "2024-03-21T10:00:00Z",
	})

	trade := BuildTrade(rec)
	assert.Equal(t, "AAPL", trade.StockSymbol)
	assert.Equal(t, "Sale (Full)", trade.TransactionType)
	assert.Equal(t, models.TradeTypeSell, trade.Type)
	assert.Equal(t, "2024-03-05", trade.TradedDate)
	assert.Equal(t, "2024-03-20", trade.FiledDate)
	assert.Equal(t, "$1,001 - $15,000", trade.AmountRange)
	require.NotNil(t, trade.AmountValue)
	assert.InDelta(t, 8000.5, *trade.AmountValue, 0.0001)
	assert.Equal(t, "Democratic Party", trade.Party)
	assert.Equal(t, "Representatives", trade.Chamber)
	assert.Equal(t, "CA12", trade.District)
	require.NotNil(t, trade.ExcessReturn)
	assert.InDelta(t, 1.25, *trade.ExcessReturn, 0.0001)
	assert.Nil(t, trade.EstReturn)
	assert.Equal(t, "2024-03-21T10:00:00Z", trade.LastModified)
}

func TestBuildTrade_AmountPrecedence(t *testing.T) {
	explicit := BuildTrade(NewRecord("", map[string]any{"Amount": 2500.0, "Range": "$1,000 - $15,000"}))
	require.NotNil(t, explicit.AmountValue)
	assert.Equal(t, 2500.0, *explicit.AmountValue)

	sized := BuildTrade(NewRecord("", map[string]any{"Trade_Size_USD": "$7,500"}))
	require.NotNil(t, sized.AmountValue)
	assert.Equal(t, 7500.0, *sized.AmountValue)

	unknown := BuildTrade(NewRecord("", map[string]any{"Range": "undisclosed"}))
	assert.Nil(t, unknown.AmountValue)
	assert.Equal(t, "", unknown.Type)
}

func TestChain_FirstMatchWins(t *testing.T) {
	rec := NewRecord("", map[string]any{
		"description": "lower",
		"Comments":    "comments",
		"Description": "  ",
	})
	assert.Equal(t, "lower", DescriptionChain.Value(rec))

	named := NewRecord("", map[string]any{"FirstName": "Nancy", "LastName": "Pelosi"})
	assert.Equal(t, "Nancy Pelosi", RecordName(named))
}

func TestMerge(t *testing.T) {
	primary := NewRecord("/a", map[string]any{"Ticker": "AAPL", "Description": "", "Party": "D"})
	fallback := NewRecord("/b", map[string]any{"Ticker": "MSFT", "Description": "Apple", "House": "Senate"})

	merged := Merge(primary, fallback)
	assert.Equal(t, "AAPL", merged.Fields["Ticker"])
	assert.Equal(t, "Apple", merged.Fields["Description"])
	assert.Equal(t, "Senate", merged.Fields["House"])
	assert.Equal(t, "D", merged.Fields["Party"])
	assert.Equal(t, "/a", merged.Source)

	assert.Equal(t, "/b", Merge(NewRecord("", nil), fallback).Source)
}

func tradeRecord(source string, extra map[string]any) Record {
	fields := map[string]any{
		"Representative":  "Nancy Pelosi",
		"Ticker":          "AAPL",
		"Transaction":     "Purchase",
		"TransactionDate": "2024-05-01",
		"Range":           "$1,001 - $15,000",
	}
	for k, v := range extra {
		fields[k] = v
	}
	return NewRecord(source, fields)
}

func TestDedupe_MergesComplementaryRecords(t *testing.T) {
	records := []Record{
		tradeRecord("/beta/housetrading", map[string]any{"Description": "Apple Inc"}),
		tradeRecord("/beta/live/housetrading", map[string]any{"Ticker": "MSFT"}),
		tradeRecord("/beta/bulk/congresstrading", map[string]any{"ExcessReturn": 1.5}),
	}

	out := Dedupe(records)
	require.Len(t, out, 2)

	merged := BuildTrade(out[0])
	assert.Equal(t, "AAPL", merged.StockSymbol)
	assert.Equal(t, "Apple Inc", merged.Description)
	require.NotNil(t, merged.ExcessReturn)
	assert.Equal(t, 1.5, *merged.ExcessReturn)
	assert.Equal(t, "/beta/bulk/congresstrading", out[0].Source)

	assert.Equal(t, "MSFT", BuildTrade(out[1]).StockSymbol)
}

func TestDedupe_TieKeepsExistingPrimary(t *testing.T) {
	records := []Record{
		tradeRecord("/beta/housetrading", map[string]any{"Party": "D"}),
		tradeRecord("/beta/housetrading", map[string]any{"Party": "R"}),
	}

	out := Dedupe(records)
	require.Len(t, out, 1)
	assert.Equal(t, "Democratic Party", BuildTrade(out[0]).Party)
}

func TestQualityScore(t *testing.T) {
	full := models.Trade{
		Description:  "x",
		AmountValue:  models.Float(1),
		ExcessReturn: models.Float(1),
		Party:        "p",
		Chamber:      "c",
		FiledDate:    "2024-01-01",
		TickerType:   "ST",
	}
	assert.InDelta(t, 9.3, QualityScore(full, ""), 0.0001)
	assert.InDelta(t, 10.8, QualityScore(full, "/beta/CongressTrading"), 0.0001)
	assert.Equal(t, 0.0, QualityScore(models.Trade{}, "/other"))
}

func TestMatchesName(t *testing.T) {
	tests := []struct {
		query     string
		candidate string
		want      bool
	}{
		{"nancy pelosi", "Nancy Pelosi", true},
		{"pelosi", "Nancy Pelosi", true},
		{"Pelosi, Nancy", "Hon. Nancy Pelosi", true},
		{"nancy smith", "Nancy Pelosi", false},
		{"nancy", "", false},
		{"123", "Nancy Pelosi", false},
	}

	for _, tt := range tests {
		t.Run(tt.query+"/"+tt.candidate, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesName(tt.query, tt.candidate))
		})
	}
}

func TestBuildProfile(t *testing.T) {
	records := []Record{
		NewRecord("/a", map[string]any{
			"Representative": "Nancy Pelosi", "Ticker": "NVDA", "Transaction": "Purchase",
			"TransactionDate": "2024-01-10", "Range": "$1,001 - $15,000",
			"Chamber": "house", "State": "NY", "Party": "R",
		}),
		NewRecord("/a", map[string]any{
			"Representative": "Nancy Pelosi", "Ticker": "AAPL", "Transaction": "Sale",
			"TransactionDate": "2024-06-01", "Amount": 100000.0,
			"Chamber": "representatives", "State": "CA", "Party": "Dem",
		}),
		NewRecord("/a", map[string]any{
			"Representative": "Nancy Pelosi", "Ticker": "MSFT", "Transaction": "Purchase",
			"ReportDate": "2024-03-01", "Range": "undisclosed",
		}),
	}

	p := BuildProfile("nancy pelosi", records)
	require.NotNil(t, p)
	assert.Equal(t, "nancy pelosi", p.QueryKey)
	assert.Equal(t, "Nancy Pelosi", p.Name)
	assert.Equal(t, "Democratic Party", p.Party)
	assert.Equal(t, "Representatives · CA", p.Position)
	require.NotNil(t, p.TradeVolume)
	assert.InDelta(t, 108000.5, *p.TradeVolume, 0.0001)
	assert.Equal(t, 3, p.TotalTrades)
	assert.Equal(t, "2024-06-01", p.LastTraded)
	require.NotNil(t, p.CurrentMember)
	assert.True(t, *p.CurrentMember)

	require.Len(t, p.Trades, 3)
	assert.Equal(t, "AAPL", p.Trades[0].StockSymbol)
	assert.Equal(t, "MSFT", p.Trades[1].StockSymbol)
	assert.Equal(t, "NVDA", p.Trades[2].StockSymbol)

	assert.Nil(t, BuildProfile("nobody", nil))
}

func TestBuildProfile_LastTradedUsesLatestFiling(t *testing.T) {
	p := BuildProfile("jane roe", []Record{
		NewRecord("/a", map[string]any{
			"Representative": "Jane Roe", "Ticker": "F",
			"TransactionDate": "2024-01-10", "ReportDate": "2024-08-20",
		}),
		NewRecord("/a", map[string]any{
			"Representative": "Jane Roe", "Ticker": "GM",
			"TransactionDate": "2024-05-01", "ReportDate": "2024-05-15",
		}),
	})
	require.NotNil(t, p)
	assert.Equal(t, "2024-08-20", p.LastTraded)
}

func TestBuildProfile_NoVolume(t *testing.T) {
	p := BuildProfile("jane roe", []Record{
		NewRecord("/a", map[string]any{"Ticker": "F", "Range": "undisclosed"}),
	})
	require.NotNil(t, p)
	assert.Equal(t, "jane roe", p.Name)
	assert.Nil(t, p.TradeVolume)
	assert.Equal(t, "", p.LastTraded)
}

func TestFormatExternalPayload(t *testing.T) {
	body := `{
		"name": " Jane Doe ",
		"party": "Independent",
		"netWorth": "12.5",
		"tradeVolume": "n/a",
		"yearsActive": 12,
		"trades": [
			{"stockSymbol": "TSLA", "transactionType": "Purchase", "tradedDate": "2023-01-02", "amountValue": "1000"},
			{"stockSymbol": "F", "transactionType": "Sale", "tradedDate": "2023-05-02T10:00:00Z"}
		]
	}`
	var payload ExternalPayload
	require.NoError(t, json.Unmarshal([]byte(body), &payload))

	p := FormatExternalPayload("jane doe", &payload)
	require.NotNil(t, p)
	assert.Equal(t, "Jane Doe", p.Name)
	require.NotNil(t, p.NetWorth)
	assert.Equal(t, 12.5, *p.NetWorth)
	assert.Nil(t, p.TradeVolume)
	assert.Equal(t, "12", p.YearsActive)
	assert.Nil(t, p.CurrentMember)
	assert.Equal(t, 2, p.TotalTrades)

	require.Len(t, p.Trades, 2)
	assert.Equal(t, "F", p.Trades[0].StockSymbol)
	assert.Equal(t, models.TradeTypeSell, p.Trades[0].Type)
	assert.Equal(t, "2023-05-02", p.Trades[0].TradedDate)
	require.NotNil(t, p.Trades[1].AmountValue)
	assert.Equal(t, 1000.0, *p.Trades[1].AmountValue)

	assert.Nil(t, FormatExternalPayload("x", &ExternalPayload{}))
	assert.Nil(t, FormatExternalPayload("x", nil))
}
