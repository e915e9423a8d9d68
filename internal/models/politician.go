package models

import (
	"sort"
	"strings"
	"time"
)

// Trade types derived from the disclosed transaction.
const (
	TradeTypeBuy  = "buy"
	TradeTypeSell = "sell"
)

// Politician is the cached profile of one public official, keyed by the normalized query.
type Politician struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	QueryKey      string    `gorm:"uniqueIndex;not null" json:"queryKey"`
	Name          string    `gorm:"not null;index" json:"name"`
	Party         string    `json:"party"`
	Position      string    `json:"position"`
	NetWorth      *float64  `json:"netWorth"`
	TradeVolume   *float64  `json:"tradeVolume"`
	TotalTrades   int       `json:"totalTrades"`
	LastTraded    string    `json:"lastTraded"`
	YearsActive   string    `json:"yearsActive"`
	CurrentMember *bool     `json:"currentMember"`
	AvatarURL     string    `json:"avatarUrl"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"updatedAt"`
	Trades        []Trade   `gorm:"foreignKey:PoliticianID;constraint:OnDelete:CASCADE" json:"trades"`
}

// Trade is one disclosed transaction owned by a Politician profile.
type Trade struct {
	ID              uint     `gorm:"primaryKey" json:"-"`
	PoliticianID    uint     `gorm:"not null;index" json:"-"`
	Seq             int      `gorm:"not null;default:0" json:"-"`
	StockSymbol     string   `json:"stockSymbol"`
	TransactionType string   `json:"transactionType"`
	Type            string   `json:"type"`
	FiledDate       string   `json:"filedDate"`
	TradedDate      string   `json:"tradedDate"`
	AmountRange     string   `json:"amountRange"`
	AmountValue     *float64 `json:"amountValue"`
	Description     string   `json:"description"`
	EstReturn       *float64 `json:"estReturn"`
	Chamber         string   `json:"chamber"`
	District        string   `json:"district"`
	Party           string   `json:"party"`
	TickerType      string   `json:"tickerType"`
	ExcessReturn    *float64 `json:"excessReturn"`
	PriceChange     *float64 `json:"priceChange"`
	SpyChange       *float64 `json:"spyChange"`
	LastModified    string   `json:"lastModified"`
}

// DeriveTradeType maps a raw transaction description onto buy or sell.
func DeriveTradeType(transactionType string) string {
	if strings.TrimSpace(transactionType) == "" {
		return ""
	}
	if strings.Contains(strings.ToLower(transactionType), "sale") {
		return TradeTypeSell
	}
	return TradeTypeBuy
}

// EffectiveDate is the traded date, falling back to the filed date.
func (t Trade) EffectiveDate() string {
	if t.TradedDate != "" {
		return t.TradedDate
	}
	return t.FiledDate
}

// SortTradesNewestFirst orders trades by effective date descending. Trades with equal
// dates keep their relative order and undated trades sort last.
func SortTradesNewestFirst(trades []Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].EffectiveDate() > trades[j].EffectiveDate()
	})
}

// Clone returns a deep copy so callers can mutate the result freely.
func (p *Politician) Clone() *Politician {
	if p == nil {
		return nil
	}
	out := *p
	out.NetWorth = cloneFloat(p.NetWorth)
	out.TradeVolume = cloneFloat(p.TradeVolume)
	if p.CurrentMember != nil {
		v := *p.CurrentMember
		out.CurrentMember = &v
	}
	if p.Trades != nil {
		out.Trades = make([]Trade, len(p.Trades))
		for i, t := range p.Trades {
			out.Trades[i] = t.clone()
		}
	}
	return &out
}

func (t Trade) clone() Trade {
	t.AmountValue = cloneFloat(t.AmountValue)
	t.EstReturn = cloneFloat(t.EstReturn)
	t.ExcessReturn = cloneFloat(t.ExcessReturn)
	t.PriceChange = cloneFloat(t.PriceChange)
	t.SpyChange = cloneFloat(t.SpyChange)
	return t
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool {
	return &v
}
