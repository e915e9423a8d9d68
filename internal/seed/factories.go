// Package seed provides helpers to create demo data for the application's
// repositories. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"buffonomics/internal/congress"
	"buffonomics/internal/models"
	"buffonomics/internal/validation"
)

var (
	amountBands = []string{
		"$1,001 - $15,000",
		"$15,001 - $50,000",
		"$50,001 - $100,000",
		"$100,001 - $250,000",
		"$250,001 - $500,000",
		"$500,001 - $1,000,000",
		"$1,000,001 - $5,000,000",
	}

	tickers = []string{
		"AAPL", "MSFT", "NVDA", "AMZN", "GOOGL", "META", "TSLA", "JPM", "XOM", "LMT",
		"RTX", "PFE", "UNH", "DIS", "BA", "INTC", "AMD", "COST", "WMT", "V",
	}

	transactions = []string{"Purchase", "Sale", "Sale (Partial)", "Sale (Full)", "Exchange"}
	chambers     = []string{"Representatives", "Senate"}
	parties      = []string{"D", "R", "I"}
)

// Options controls how much demo data is generated.
type Options struct {
	Politicians int
	TradesEach  int
	Users       int
	// Seed makes generation deterministic when non-zero.
	Seed int64
	// MaxDays bounds how far back trade dates go.
	MaxDays int
}

func (o Options) withDefaults() Options {
	if o.Politicians <= 0 {
		o.Politicians = 12
	}
	if o.TradesEach <= 0 {
		o.TradesEach = 15
	}
	if o.Users < 0 {
		o.Users = 0
	}
	if o.MaxDays <= 0 {
		o.MaxDays = 365
	}
	return o
}

// Factory builds demo entities. Profiles go through the same normalizer as live
// provider data so the demo rows have the same shape.
type Factory struct {
	faker *gofakeit.Faker
	opts  Options
	now   func() time.Time
}

// NewFactory creates a Factory. A zero Options.Seed picks a random seed.
func NewFactory(opts Options) *Factory {
	opts = opts.withDefaults()
	return &Factory{
		faker: gofakeit.New(opts.Seed),
		opts:  opts,
		now:   time.Now,
	}
}

// Options returns the effective options.
func (f *Factory) Options() Options {
	return f.opts
}

// PoliticianName returns a random "First Last" name.
func (f *Factory) PoliticianName() string {
	return f.faker.FirstName() + " " + f.faker.LastName()
}

// BuildRecords returns n provider-shaped records for one politician. Field names
// vary between the aliases the normalizer accepts.
func (f *Factory) BuildRecords(name string, n int) []congress.Record {
	chamber := f.faker.RandomString(chambers)
	state := f.faker.StateAbr()
	party := f.faker.RandomString(parties)
	end := f.now()
	start := end.AddDate(0, 0, -f.opts.MaxDays)

	records := make([]congress.Record, 0, n)
	for i := 0; i < n; i++ {
		traded := f.faker.DateRange(start, end)
		filed := traded.AddDate(0, 0, f.faker.Number(1, 45))
		if filed.After(end) {
			filed = end
		}

		fields := map[string]any{
			"Ticker":      f.faker.RandomString(tickers),
			"Transaction": f.faker.RandomString(transactions),
			"Party":       party,
			"District":    state,
		}
		if i%2 == 0 {
			fields["Representative"] = name
			fields["TransactionDate"] = traded.Format("2006-01-02")
			fields["ReportDate"] = filed.Format("01/02/2006")
			fields["Range"] = f.faker.RandomString(amountBands)
			fields["House"] = chamber
		} else {
			fields["Name"] = name
			fields["Traded"] = traded.Format(time.RFC3339)
			fields["Filed"] = filed.Format("2006-01-02")
			fields["Trade_Size_USD"] = f.faker.Float64Range(1000, 250000)
			fields["Chamber"] = chamber
		}
		if f.faker.Bool() {
			fields["Description"] = f.faker.Company() + " common stock"
		}
		if f.faker.Bool() {
			fields["ExcessReturn"] = f.faker.Float64Range(-25, 25)
		}
		records = append(records, congress.NewRecord(fmt.Sprintf("seed/%d", i%2), fields))
	}
	return records
}

// BuildPolitician returns a normalized profile with TradesEach trades.
func (f *Factory) BuildPolitician(overrides ...func(*models.Politician)) *models.Politician {
	name := f.PoliticianName()
	key := validation.NormalizeQuery(name)
	p := congress.BuildProfile(key, f.BuildRecords(name, f.opts.TradesEach))
	p.YearsActive = fmt.Sprintf("%d-present", f.faker.Number(1990, 2022))
	p.CurrentMember = models.Bool(true)
	p.AvatarURL = fmt.Sprintf("https://i.pravatar.cc/150?u=%s", strings.ReplaceAll(key, " ", "-"))
	for _, override := range overrides {
		override(p)
	}
	return p
}

// BuildUser returns an unsaved user whose password is the returned plaintext.
// The caller hashes it before storing.
func (f *Factory) BuildUser() (*models.User, string) {
	email := strings.ToLower(f.faker.Email())
	return &models.User{
		Email:    email,
		Username: email,
	}, f.faker.Password(true, true, true, false, false, 12)
}
