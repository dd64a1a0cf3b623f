// Package scenario applies what-if weight deltas to a portfolio and compares
// the risk profile before and after. Deltas are deterministic weight
// adjustments, not market shocks: the same factor model prices both sides.
package scenario

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/aristath/argus/internal/domain"
	"github.com/aristath/argus/internal/utils"
)

// netTolerance separates genuinely reallocating deltas from float residue.
// Deltas netting to zero leave untouched weights exactly as they were.
const netTolerance = 1e-9

// Delta is a per-ticker additive weight adjustment in absolute weight
// points: -0.10 moves a position down ten points of portfolio weight. A
// ticker absent from the base portfolio enters at zero prior weight.
type Delta map[string]float64

// ParseDelta parses the compact comma form "AAPL:-0.10,CASH:+0.10".
func ParseDelta(s string) (Delta, error) {
	entries := utils.ParseCSV(s)
	if entries == nil {
		return nil, &domain.ConfigurationError{Field: "scenario.delta", Reason: "empty delta"}
	}

	delta := make(Delta, len(entries))
	for _, entry := range entries {
		ticker, raw, found := strings.Cut(entry, ":")
		ticker = strings.TrimSpace(ticker)
		if !found || ticker == "" {
			return nil, &domain.ConfigurationError{
				Field:  "scenario.delta",
				Reason: fmt.Sprintf("entry %q is not ticker:adjustment", entry),
			}
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, &domain.ConfigurationError{
				Field:  "scenario.delta",
				Reason: fmt.Sprintf("adjustment for %s is not a number: %q", ticker, strings.TrimSpace(raw)),
			}
		}
		if _, dup := delta[ticker]; dup {
			return nil, &domain.ConfigurationError{
				Field:  "scenario.delta",
				Reason: "duplicate ticker " + ticker,
			}
		}
		delta[ticker] = value
	}

	return delta, nil
}

// Net returns the total weight the delta adds or removes.
func (d Delta) Net() float64 {
	total := 0.0
	for _, v := range d {
		total += v
	}
	return total
}

// Tickers lists the adjusted tickers, sorted.
func (d Delta) Tickers() []string {
	tickers := make([]string, 0, len(d))
	for t := range d {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// Apply adds the delta to the base weights. A delta driving any weight
// negative is infeasible: the offenders are reported, never clamped.
// Positions landing on exactly zero drop out. When the delta nets away from
// zero the result is renormalized to sum to one; a zero-net delta leaves
// untouched positions exactly as they were.
func Apply(base domain.Weights, delta Delta) (domain.Weights, error) {
	out := base.Clone()
	if out == nil {
		out = domain.Weights{}
	}
	for ticker, adj := range delta {
		out[ticker] += adj
	}

	var negative []string
	for ticker, w := range out {
		if w < -netTolerance {
			negative = append(negative, fmt.Sprintf("%s: weight %.4f is negative", ticker, w))
		}
	}
	if len(negative) > 0 {
		sort.Strings(negative)
		return nil, &domain.InfeasibleError{Conflicts: negative}
	}

	for ticker, w := range out {
		if math.Abs(w) <= netTolerance {
			delete(out, ticker)
		}
	}

	if out.Sum() <= netTolerance {
		return nil, &domain.InfeasibleError{Conflicts: []string{"delta removes the entire portfolio"}}
	}

	if math.Abs(delta.Net()) > netTolerance {
		out = out.Normalized()
	}

	return out, nil
}
