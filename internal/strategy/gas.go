package strategy

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/elys-network/clmm-monitor/internal/logger"
	"github.com/rs/zerolog"
)

// Transaction fee assumptions for a close followed by a create, in SOL.
const (
	DefaultCloseFeeSOL  = 0.00001
	DefaultCreateFeeSOL = 0.00002
	DefaultSOLPriceUSD  = 100.0
)

// GasEstimator estimates the USD cost of one rebalance (close + create).
type GasEstimator interface {
	EstimateGasCostUSD() float64
}

// Refresher is implemented by estimators that need I/O before a cycle.
// The monitor calls Refresh at the start of each cycle, never mid-evaluation.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// FixedGasEstimator multiplies the assumed transaction fees by an assumed SOL price.
type FixedGasEstimator struct {
	CloseFeeSOL  float64
	CreateFeeSOL float64
	SOLPriceUSD  float64
}

// DefaultGasEstimator returns the fixed estimate of 0.00003 SOL at $100.
func DefaultGasEstimator() FixedGasEstimator {
	return FixedGasEstimator{
		CloseFeeSOL:  DefaultCloseFeeSOL,
		CreateFeeSOL: DefaultCreateFeeSOL,
		SOLPriceUSD:  DefaultSOLPriceUSD,
	}
}

func (f FixedGasEstimator) EstimateGasCostUSD() float64 {
	return f.totalFeeSOL() * f.SOLPriceUSD
}

func (f FixedGasEstimator) totalFeeSOL() float64 {
	return f.CloseFeeSOL + f.CreateFeeSOL
}

// PriceSource returns a spot USD price for a symbol.
type PriceSource interface {
	SpotPriceUSD(ctx context.Context, symbol string) (float64, error)
}

// PricedGasEstimator prices the fixed SOL fee with a spot price refreshed once
// per cycle. Until a fresh price is available it uses Base.SOLPriceUSD.
type PricedGasEstimator struct {
	Base   FixedGasEstimator
	source PriceSource
	symbol string
	maxAge time.Duration
	logger zerolog.Logger

	mu        sync.RWMutex
	price     float64
	fetchedAt time.Time
	now       func() time.Time
}

// NewPricedGasEstimator builds an estimator that refreshes symbol's price from source.
func NewPricedGasEstimator(base FixedGasEstimator, source PriceSource, symbol string, maxAge time.Duration) (*PricedGasEstimator, error) {
	if source == nil {
		return nil, fmt.Errorf("price source cannot be nil")
	}
	if symbol == "" {
		return nil, fmt.Errorf("price symbol cannot be empty")
	}
	if maxAge <= 0 {
		maxAge = 15 * time.Minute
	}
	return &PricedGasEstimator{
		Base:   base,
		source: source,
		symbol: symbol,
		maxAge: maxAge,
		logger: logger.GetForComponent("gas_estimator"),
		now:    time.Now,
	}, nil
}

// Refresh fetches the spot price. On failure the previous price stays in use
// until it ages out.
func (p *PricedGasEstimator) Refresh(ctx context.Context) error {
	price, err := p.source.SpotPriceUSD(ctx, p.symbol)
	if err != nil {
		p.logger.Warn().Err(err).Str("symbol", p.symbol).Msg("Spot price refresh failed, keeping previous estimate")
		return fmt.Errorf("refresh %s price: %w", p.symbol, err)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fmt.Errorf("refresh %s price: invalid price %f", p.symbol, price)
	}

	p.mu.Lock()
	p.price = price
	p.fetchedAt = p.now()
	p.mu.Unlock()

	p.logger.Debug().Str("symbol", p.symbol).Float64("priceUSD", price).Msg("Spot price refreshed")
	return nil
}

func (p *PricedGasEstimator) EstimateGasCostUSD() float64 {
	return p.Base.totalFeeSOL() * p.CurrentPrice()
}

// CurrentPrice returns the price the estimate is based on.
func (p *PricedGasEstimator) CurrentPrice() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.price > 0 && p.now().Sub(p.fetchedAt) <= p.maxAge {
		return p.price
	}
	return p.Base.SOLPriceUSD
}
