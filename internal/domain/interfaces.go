package domain

import (
	"context"
	"time"
)

// PricePoint is one daily close observation.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceProvider supplies daily close history.
// This interface breaks circular dependencies between marketdata, factors,
// riskmodel and engine: implementations live in marketdata, consumers only
// see this contract.
type PriceProvider interface {
	// PriceSeries returns daily closes in ascending date order within
	// [start, end]. A ticker with no usable rows returns
	// *DataUnavailableError. Fetching is the only stage that honors ctx
	// cancellation.
	PriceSeries(ctx context.Context, ticker string, start, end time.Time) ([]PricePoint, error)

	// LatestClose returns the most recent close at or before asOf.
	// Used to value share-based holdings.
	LatestClose(ctx context.Context, ticker string, asOf time.Time) (float64, error)
}
