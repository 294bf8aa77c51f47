package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// PositionStore implements domain.PositionStore. Only symbol, quantity and
// average price are stored; current price and PnL come from the ledger.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a PositionStore backed by pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const listOpenPositions = `
	SELECT symbol, quantity, avg_price
	FROM positions
	WHERE quantity <> 0
	ORDER BY symbol`

// ListOpen returns every position with a non-zero quantity.
func (s *PositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx, listOpenPositions)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	positions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Position, error) {
		var p domain.Position
		err := row.Scan(&p.Symbol, &p.Quantity, &p.AvgPrice)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

const seedPosition = `
	INSERT INTO positions (symbol, quantity, avg_price)
	VALUES ($1, $2, $3)
	ON CONFLICT (symbol) DO NOTHING`

// Seed inserts positions that do not exist yet and reports how many rows were
// added. Existing rows are left untouched.
func (s *PositionStore) Seed(ctx context.Context, positions []domain.Position) (int, error) {
	if len(positions) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, p := range positions {
		batch.Queue(seedPosition, p.Symbol, p.Quantity, p.AvgPrice)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	added := 0
	for range positions {
		tag, err := br.Exec()
		if err != nil {
			return added, fmt.Errorf("postgres: seed positions: %w", err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

var _ domain.PositionStore = (*PositionStore)(nil)
