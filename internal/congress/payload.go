package congress

import (
	"sort"
	"strings"

	"buffonomics/internal/models"
)

// Tokenize lowercases s and splits it into alphabetic tokens.
func Tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r < 'a' || r > 'z'
	})
}

// MatchesName reports whether every token of query appears among the tokens of
// candidate. A candidate without tokens never matches, and neither does a query
// without tokens.
func MatchesName(query, candidate string) bool {
	queryTokens := Tokenize(query)
	candidateTokens := Tokenize(candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return false
	}
	have := make(map[string]struct{}, len(candidateTokens))
	for _, t := range candidateTokens {
		have[t] = struct{}{}
	}
	for _, t := range queryTokens {
		if _, ok := have[t]; !ok {
			return false
		}
	}
	return true
}

// FilterByName keeps the records whose politician name matches query.
func FilterByName(records []Record, query string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if MatchesName(query, RecordName(r)) {
			out = append(out, r)
		}
	}
	return out
}

func recordDate(r Record) string {
	traded, _ := TradedChain.Extract(r)
	if d := NormalizeDate(traded); d != "" {
		return d
	}
	filed, _ := FiledChain.Extract(r)
	return NormalizeDate(filed)
}

// FormatPosition renders "Chamber · State", or just the state without a chamber.
func FormatPosition(chamber, state string) string {
	chamber = strings.TrimSpace(chamber)
	state = strings.TrimSpace(state)
	if chamber == "" {
		return state
	}
	if state == "" {
		return ToTitle(chamber)
	}
	return ToTitle(chamber) + " · " + state
}

// BuildProfile shapes deduplicated records for one politician into a profile.
// It returns nil when there are no records.
func BuildProfile(queryKey string, records []Record) *models.Politician {
	if len(records) == 0 {
		return nil
	}

	ordered := make([]Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return recordDate(ordered[i]) > recordDate(ordered[j])
	})

	template := ordered[0]
	trades := make([]models.Trade, 0, len(ordered))
	volume := 0.0
	lastTraded := ""
	for _, r := range ordered {
		t := BuildTrade(r)
		if t.AmountValue != nil {
			volume += *t.AmountValue
		}
		for _, d := range []string{t.TradedDate, t.FiledDate} {
			if d > lastTraded {
				lastTraded = d
			}
		}
		trades = append(trades, t)
	}
	models.SortTradesNewestFirst(trades)

	name := RecordName(template)
	if name == "" {
		name = queryKey
	}

	var tradeVolume *float64
	if volume != 0 {
		tradeVolume = models.Float(volume)
	}

	return &models.Politician{
		QueryKey:      queryKey,
		Name:          name,
		Party:         SanitizeParty(PartyChain.Value(template)),
		Position:      FormatPosition(ProfileChamberChain.Value(template), ProfileStateChain.Value(template)),
		TradeVolume:   tradeVolume,
		TotalTrades:   len(trades),
		LastTraded:    lastTraded,
		CurrentMember: models.Bool(true),
		Trades:        trades,
	}
}

// ExternalPayload is the already-shaped profile returned by the directory service.
type ExternalPayload struct {
	Name          string          `json:"name"`
	Party         string          `json:"party"`
	Position      string          `json:"position"`
	NetWorth      FlexFloat       `json:"netWorth"`
	TradeVolume   FlexFloat       `json:"tradeVolume"`
	LastTraded    string          `json:"lastTraded"`
	YearsActive   FlexString      `json:"yearsActive"`
	CurrentMember *bool           `json:"currentMember"`
	AvatarURL     string          `json:"avatarUrl"`
	Trades        []ExternalTrade `json:"trades"`
}

// ExternalTrade is one trade in an ExternalPayload.
type ExternalTrade struct {
	StockSymbol     string     `json:"stockSymbol"`
	TransactionType string     `json:"transactionType"`
	FiledDate       FlexString `json:"filedDate"`
	TradedDate      FlexString `json:"tradedDate"`
	AmountRange     string     `json:"amountRange"`
	AmountValue     FlexFloat  `json:"amountValue"`
	Description     string     `json:"description"`
	EstReturn       FlexFloat  `json:"estReturn"`
	Chamber         string     `json:"chamber"`
	District        string     `json:"district"`
	Party           string     `json:"party"`
	TickerType      string     `json:"tickerType"`
	ExcessReturn    FlexFloat  `json:"excessReturn"`
	PriceChange     FlexFloat  `json:"priceChange"`
	SpyChange       FlexFloat  `json:"spyChange"`
	LastModified    FlexString `json:"lastModified"`
}

// FormatExternalPayload converts a directory payload into a profile. Payloads without
// a name yield nil. The trade count always reflects the trades carried.
func FormatExternalPayload(queryKey string, p *ExternalPayload) *models.Politician {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return nil
	}

	trades := make([]models.Trade, 0, len(p.Trades))
	for _, t := range p.Trades {
		trades = append(trades, models.Trade{
			StockSymbol:     strings.TrimSpace(t.StockSymbol),
			TransactionType: strings.TrimSpace(t.TransactionType),
			Type:            models.DeriveTradeType(t.TransactionType),
			FiledDate:       NormalizeDate(string(t.FiledDate)),
			TradedDate:      NormalizeDate(string(t.TradedDate)),
			AmountRange:     strings.TrimSpace(t.AmountRange),
			AmountValue:     t.AmountValue.Ptr(),
			Description:     strings.TrimSpace(t.Description),
			EstReturn:       t.EstReturn.Ptr(),
			Chamber:         t.Chamber,
			District:        strings.TrimSpace(t.District),
			Party:           t.Party,
			TickerType:      t.TickerType,
			ExcessReturn:    t.ExcessReturn.Ptr(),
			PriceChange:     t.PriceChange.Ptr(),
			SpyChange:       t.SpyChange.Ptr(),
			LastModified:    string(t.LastModified),
		})
	}
	models.SortTradesNewestFirst(trades)

	return &models.Politician{
		QueryKey:      queryKey,
		Name:          strings.TrimSpace(p.Name),
		Party:         p.Party,
		Position:      p.Position,
		NetWorth:      p.NetWorth.Ptr(),
		TradeVolume:   p.TradeVolume.Ptr(),
		TotalTrades:   len(trades),
		LastTraded:    NormalizeDate(p.LastTraded),
		YearsActive:   string(p.YearsActive),
		CurrentMember: p.CurrentMember,
		AvatarURL:     p.AvatarURL,
		Trades:        trades,
	}
}
