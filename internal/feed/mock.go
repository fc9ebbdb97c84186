package feed

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"copytrader/internal/models"
	"copytrader/internal/routine"
)

// Publisher accepts signals for distribution. stream.Hub implements it.
type Publisher interface {
	Publish(sig models.CopySignal) bool
}

// basePrices seeds the random walk per symbol.
var basePrices = map[string]float64{
	"AAPL": 190, "MSFT": 410, "KO": 60, "JNJ": 155,
	"NVDA": 880, "TSLA": 175, "AMD": 160, "META": 490,
	"PG": 165, "PEP": 170, "AMZN": 180, "GOOGL": 170, "NFLX": 620,
}

var reasons = []string{
	"Breakout above resistance",
	"Earnings momentum",
	"Rebalancing position size",
	"Taking profits into strength",
	"Adding on pullback",
}

// MockSource emits random signals for every expert in a catalog, one
// routine per expert.
type MockSource struct {
	catalog  *Catalog
	out      Publisher
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	prices map[string]decimal.Decimal
}

// NewMockSource creates a MockSource.
func NewMockSource(catalog *Catalog, out Publisher, interval time.Duration, logger zerolog.Logger) *MockSource {
	return &MockSource{
		catalog:  catalog,
		out:      out,
		interval: interval,
		logger:   logger.With().Str("component", "mock_feed").Logger(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		prices:   make(map[string]decimal.Decimal),
	}
}

// Seed makes the generated sequence deterministic.
func (s *MockSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

// Start launches one routine per expert on m.
func (s *MockSource) Start(m *routine.Manager) error {
	for _, e := range s.catalog.All() {
		expert := e
		if len(expert.Symbols) == 0 {
			continue
		}
		err := m.RunTask(&routine.Task{
			ID:      "mock:" + expert.ID,
			Handler: func(ctx context.Context) error { return s.runExpert(ctx, expert) },
			OnError: func(id string, err error) {
				s.logger.Error().Err(err).Str("routine", id).Msg("Mock expert stopped")
			},
		})
		if err != nil {
			return fmt.Errorf("starting mock expert %s: %w", expert.ID, err)
		}
	}
	return nil
}

// Run blocks, emitting signals until ctx is done.
func (s *MockSource) Run(ctx context.Context) error {
	m := routine.NewManager(ctx)
	if err := s.Start(m); err != nil {
		m.ShutdownAll()
		return err
	}
	<-ctx.Done()
	m.ShutdownAll()
	return nil
}

func (s *MockSource) runExpert(ctx context.Context, expert models.Expert) error {
	ticker := time.NewTicker(s.jitter(s.interval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sig := s.Next(expert, time.Now())
			if !s.out.Publish(sig) {
				s.logger.Warn().Str("expert", expert.ID).Msg("Signal dropped by hub")
				continue
			}
			s.logger.Debug().
				Str("expert", expert.ID).
				Str("symbol", sig.Symbol).
				Str("action", string(sig.Action)).
				Stringer("price", sig.Price).
				Msg("Mock signal")
		}
	}
}

// Next builds one random signal for expert.
func (s *MockSource) Next(expert models.Expert, at time.Time) models.CopySignal {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := expert.Symbols[s.rng.Intn(len(expert.Symbols))]
	action := models.ActionBuy
	if s.rng.Intn(3) == 0 {
		action = models.ActionSell
	}

	return models.CopySignal{
		ExpertID:   expert.ID,
		ExpertName: expert.Name,
		Symbol:     symbol,
		Action:     action,
		Price:      s.walk(symbol),
		Quantity:   decimal.NewFromInt(int64(1 + s.rng.Intn(50))),
		Timestamp:  at,
		Reason:     reasons[s.rng.Intn(len(reasons))],
	}
}

// walk moves the symbol's price by up to 2% and rounds to cents.
func (s *MockSource) walk(symbol string) decimal.Decimal {
	p, ok := s.prices[symbol]
	if !ok {
		base, known := basePrices[symbol]
		if !known {
			base = 100
		}
		p = decimal.NewFromFloat(base)
	}
	change := decimal.NewFromFloat((s.rng.Float64()*4 - 2) / 100)
	p = p.Mul(decimal.NewFromInt(1).Add(change)).Round(2)
	if !p.IsPositive() {
		p = decimal.New(1, -2)
	}
	s.prices[symbol] = p
	return p
}

// jitter spreads expert tickers by up to 25% of d.
func (s *MockSource) jitter(d time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d <= 0 {
		d = 30 * time.Second
	}
	return d + time.Duration(s.rng.Int63n(int64(d)/4+1))
}
