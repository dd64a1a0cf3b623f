package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/aristath/argus/internal/domain"
)

// weightsFromSpec turns holdings into normalized portfolio weights. Currency
// amounts are taken as given, cash-like tickers are valued at par, and
// share counts are priced at the latest close on or before the window end.
// Valuation runs in decimal; only the final weight ratios become floats.
//
// A position that cannot be priced is skipped with a warning so one dead
// ticker does not sink the whole run. If nothing can be valued there is no
// portfolio to analyze and the error escalates.
func (e *Engine) weightsFromSpec(ctx context.Context, spec *domain.PortfolioSpec) (domain.Weights, []domain.DataWarning, error) {
	values := make(map[string]decimal.Decimal, len(spec.Holdings))
	var warnings []domain.DataWarning

	for _, ticker := range spec.Tickers() {
		holding := spec.Holdings[ticker]

		var value decimal.Decimal
		switch {
		case holding.Amount.Sign() > 0:
			value = holding.Amount
		case domain.IsCashLike(ticker):
			value = holding.Shares
		default:
			close, err := e.provider.LatestClose(ctx, ticker, spec.Range.End)
			if err != nil {
				if domain.IsDataUnavailable(err) {
					warnings = append(warnings, domain.DataWarning{
						Ticker: ticker,
						Reason: "cannot value holding: " + err.Error(),
					})
					e.log.Warn().Str("ticker", ticker).Err(err).Msg("Skipping unpriceable holding")
					continue
				}
				return nil, nil, err
			}
			value = holding.Shares.Mul(decimal.NewFromFloat(close))
		}

		if value.Sign() > 0 {
			values[ticker] = value
		}
	}

	if len(values) == 0 {
		return nil, warnings, &domain.DataUnavailableError{
			Ticker: "portfolio",
			Reason: "no holding could be valued",
		}
	}

	total := decimal.Zero
	for _, value := range values {
		total = total.Add(value)
	}

	weights := make(domain.Weights, len(values))
	for ticker, value := range values {
		weights[ticker] = value.Div(total).InexactFloat64()
	}
	return weights.Normalized(), warnings, nil
}
