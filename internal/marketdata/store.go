// Package marketdata provides daily price history access and the series
// utilities the risk model is built from.
package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/argus/internal/database"
	"github.com/aristath/argus/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	ticker TEXT NOT NULL,
	date   INTEGER NOT NULL,
	close  REAL NOT NULL,
	PRIMARY KEY (ticker, date)
);
CREATE INDEX IF NOT EXISTS idx_daily_prices_date ON daily_prices(date);
`

// Store provides SQLite-backed price history. It implements
// domain.PriceProvider.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore creates the store and ensures its schema exists.
func NewStore(db *database.DB, log zerolog.Logger) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create daily_prices schema: %w", err)
	}
	return &Store{
		db:  db,
		log: log.With().Str("component", "marketdata").Logger(),
	}, nil
}

// SaveDailyPrices inserts or replaces daily closes for a ticker in a single
// transaction. Dates are stored as Unix timestamps at midnight UTC.
func (s *Store) SaveDailyPrices(ticker string, points []domain.PricePoint) error {
	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO daily_prices (ticker, date, close)
			VALUES (?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			if _, err := stmt.Exec(ticker, dayUnix(p.Date), p.Close); err != nil {
				return fmt.Errorf("failed to insert price for %s: %w", p.Date.Format("2006-01-02"), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Debug().
		Str("ticker", ticker).
		Int("count", len(points)).
		Msg("Saved daily prices")

	return nil
}

// PriceSeries returns daily closes in ascending date order within
// [start, end]. A ticker with no rows in the range returns
// *domain.DataUnavailableError.
func (s *Store) PriceSeries(ctx context.Context, ticker string, start, end time.Time) ([]domain.PricePoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, close
		FROM daily_prices
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`, ticker, dayUnix(start), dayUnix(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	var points []domain.PricePoint
	for rows.Next() {
		var dateUnix int64
		var p domain.PricePoint
		if err := rows.Scan(&dateUnix, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		p.Date = time.Unix(dateUnix, 0).UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	if len(points) == 0 {
		return nil, &domain.DataUnavailableError{
			Ticker: ticker,
			Reason: fmt.Sprintf("no price history between %s and %s",
				start.Format("2006-01-02"), end.Format("2006-01-02")),
		}
	}

	return points, nil
}

// LatestClose returns the most recent close at or before asOf.
func (s *Store) LatestClose(ctx context.Context, ticker string, asOf time.Time) (float64, error) {
	var close float64
	err := s.db.QueryRowContext(ctx, `
		SELECT close
		FROM daily_prices
		WHERE ticker = ? AND date <= ?
		ORDER BY date DESC
		LIMIT 1
	`, ticker, dayUnix(asOf)).Scan(&close)
	if err == sql.ErrNoRows {
		return 0, &domain.DataUnavailableError{
			Ticker: ticker,
			Reason: fmt.Sprintf("no close at or before %s", asOf.Format("2006-01-02")),
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get latest close: %w", err)
	}

	return close, nil
}

// CountDays returns the number of stored observations for a ticker in a range.
func (s *Store) CountDays(ctx context.Context, ticker string, start, end time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM daily_prices
		WHERE ticker = ? AND date >= ? AND date <= ?
	`, ticker, dayUnix(start), dayUnix(end)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count days: %w", err)
	}
	return count, nil
}

// dayUnix truncates a timestamp to midnight UTC, so the same calendar day
// always maps to the same stored key.
func dayUnix(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Unix()
}
