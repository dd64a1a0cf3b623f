// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Currency represents a currency code
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
)

// CashTicker is the generic cash position identifier. It resolves through
// FactorProxySet.CashProxies like an explicit currency code.
const CashTicker = "CASH"

// IsCashLike reports whether a ticker denotes cash (the generic CASH ticker
// or a known currency code) rather than a traded security.
func IsCashLike(ticker string) bool {
	switch Currency(ticker) {
	case CurrencyEUR, CurrencyUSD, CurrencyGBP:
		return true
	}
	return ticker == CashTicker
}

// DateRange is the analysis window [Start, End].
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks that the range is usable for analysis.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return &ConfigurationError{Field: "range", Reason: "start and end dates are required"}
	}
	if !r.End.After(r.Start) {
		return &ConfigurationError{Field: "range", Reason: fmt.Sprintf("end %s is not after start %s",
			r.End.Format("2006-01-02"), r.Start.Format("2006-01-02"))}
	}
	return nil
}

// Key returns a stable string form used in cache fingerprints.
func (r DateRange) Key() string {
	return r.Start.Format("2006-01-02") + ":" + r.End.Format("2006-01-02")
}

// Holding sizes a single position, either by share count or by market value.
// Exactly one of the two must be set.
type Holding struct {
	Shares decimal.Decimal `json:"shares"`
	Amount decimal.Decimal `json:"amount"`
}

// Validate enforces the shares-xor-amount rule.
func (h Holding) Validate(ticker string) error {
	hasShares := h.Shares.Sign() != 0
	hasAmount := h.Amount.Sign() != 0
	if hasShares == hasAmount {
		return &ConfigurationError{Field: "holdings." + ticker, Reason: "exactly one of shares or amount must be set"}
	}
	if h.Shares.Sign() < 0 || h.Amount.Sign() < 0 {
		return &ConfigurationError{Field: "holdings." + ticker, Reason: "holdings must be non-negative"}
	}
	return nil
}

// PortfolioSpec is the immutable input to an analysis run: holdings sized in
// shares or currency amounts, the analysis window, and optional per-ticker
// expected-return and factor-proxy overrides.
type PortfolioSpec struct {
	Range           DateRange          `json:"range"`
	Holdings        map[string]Holding `json:"holdings"`
	ExpectedReturns map[string]float64 `json:"expected_returns,omitempty"`
	Proxies         *FactorProxySet    `json:"proxies,omitempty"`
}

// Validate fails fast on malformed specs.
func (s *PortfolioSpec) Validate() error {
	if len(s.Holdings) == 0 {
		return &ConfigurationError{Field: "holdings", Reason: "at least one holding is required"}
	}
	for ticker, h := range s.Holdings {
		if ticker == "" {
			return &ConfigurationError{Field: "holdings", Reason: "empty ticker"}
		}
		if err := h.Validate(ticker); err != nil {
			return err
		}
	}
	if err := s.Range.Validate(); err != nil {
		return err
	}
	for ticker, r := range s.ExpectedReturns {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return &ConfigurationError{Field: "expected_returns." + ticker, Reason: "must be finite"}
		}
	}
	if s.Proxies != nil {
		if err := s.Proxies.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Tickers returns the holding tickers in sorted order.
func (s *PortfolioSpec) Tickers() []string {
	tickers := make([]string, 0, len(s.Holdings))
	for t := range s.Holdings {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// Weights maps ticker to portfolio weight (fraction of total value).
type Weights map[string]float64

// Sum returns the total weight.
func (w Weights) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// Tickers returns the tickers in sorted order.
func (w Weights) Tickers() []string {
	tickers := make([]string, 0, len(w))
	for t := range w {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// Clone returns an independent copy.
func (w Weights) Clone() Weights {
	out := make(Weights, len(w))
	for t, v := range w {
		out[t] = v
	}
	return out
}

// Normalized returns a copy scaled so the weights sum to 1.
// A zero-sum input is returned unchanged.
func (w Weights) Normalized() Weights {
	total := w.Sum()
	if total == 0 {
		return w.Clone()
	}
	out := make(Weights, len(w))
	for t, v := range w {
		out[t] = v / total
	}
	return out
}

// Validate checks that weights are finite and sum to 1 within tol.
func (w Weights) Validate(tol float64) error {
	if len(w) == 0 {
		return &ConfigurationError{Field: "weights", Reason: "no weights"}
	}
	for t, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ConfigurationError{Field: "weights." + t, Reason: "must be finite"}
		}
	}
	if diff := math.Abs(w.Sum() - 1.0); diff > tol {
		return &ConfigurationError{Field: "weights", Reason: fmt.Sprintf("sum %.6f is not 1 (tolerance %g)", w.Sum(), tol)}
	}
	return nil
}

// DataWarning records a position-scoped data problem that did not abort the
// analysis (the position was dropped or a factor was skipped).
type DataWarning struct {
	Ticker string `json:"ticker"`
	Reason string `json:"reason"`
}

func (w DataWarning) String() string {
	return w.Ticker + ": " + w.Reason
}
