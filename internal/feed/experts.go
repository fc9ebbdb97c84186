// Package feed provides the expert catalog and simulated signal sources.
package feed

import (
	"sort"

	"github.com/shopspring/decimal"

	apperrors "copytrader/internal/errors"
	"copytrader/internal/models"
)

// Catalog is a read-only set of experts.
type Catalog struct {
	experts map[string]models.Expert
}

// NewCatalog builds a catalog from experts. Later duplicates win.
func NewCatalog(experts ...models.Expert) *Catalog {
	c := &Catalog{experts: make(map[string]models.Expert, len(experts))}
	for _, e := range experts {
		c.experts[e.ID] = e
	}
	return c
}

// DefaultCatalog returns the built-in mock experts.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		models.Expert{
			ID: "warren-value", Name: "Warren Value", RiskLevel: models.RiskLow,
			MonthlyFee: decimal.NewFromInt(29), WinRate: 71.5, TotalReturn: 18.2, Followers: 12840,
			Bio:     "Long-horizon value investor focused on cash-generating blue chips.",
			Symbols: []string{"AAPL", "MSFT", "KO", "JNJ"},
		},
		models.Expert{
			ID: "tech-momentum", Name: "Tech Momentum", RiskLevel: models.RiskHigh,
			MonthlyFee: decimal.NewFromInt(49), WinRate: 58.3, TotalReturn: 42.7, Followers: 8410,
			Bio:     "Rides breakouts in large-cap technology names.",
			Symbols: []string{"NVDA", "TSLA", "AMD", "META"},
		},
		models.Expert{
			ID: "dividend-dan", Name: "Dividend Dan", RiskLevel: models.RiskLow,
			MonthlyFee: decimal.NewFromInt(19), WinRate: 76.0, TotalReturn: 11.4, Followers: 5120,
			Bio:     "Income portfolio built on dividend aristocrats.",
			Symbols: []string{"PG", "KO", "PEP", "JNJ"},
		},
		models.Expert{
			ID: "swing-sara", Name: "Swing Sara", RiskLevel: models.RiskMedium,
			MonthlyFee: decimal.NewFromInt(39), WinRate: 63.9, TotalReturn: 27.1, Followers: 6675,
			Bio:     "Multi-day swing trades around earnings and macro events.",
			Symbols: []string{"AMZN", "GOOGL", "NFLX", "AAPL"},
		},
	)
}

// All returns every expert sorted by ID.
func (c *Catalog) All() []models.Expert {
	out := make([]models.Expert, 0, len(c.experts))
	for _, e := range c.experts {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the expert with id or apperrors.ErrExpertNotFound.
func (c *Catalog) Get(id string) (models.Expert, error) {
	e, ok := c.experts[id]
	if !ok {
		return models.Expert{}, apperrors.Wrapf(apperrors.ErrExpertNotFound, "expert %s", id)
	}
	return e, nil
}

// Name returns the expert's display name, or id when unknown.
func (c *Catalog) Name(id string) string {
	if e, ok := c.experts[id]; ok {
		return e.Name
	}
	return id
}
