package trading

import (
	"context"
	"slices"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// StaticPositions serves a fixed set of open positions. It backs the
// positions endpoint when no database is configured.
type StaticPositions []domain.Position

// ListOpen returns a copy of the positions with a non-zero quantity.
func (s StaticPositions) ListOpen(_ context.Context) ([]domain.Position, error) {
	out := slices.Clone([]domain.Position(s))
	return slices.DeleteFunc(out, func(p domain.Position) bool { return p.Quantity == 0 }), nil
}

var _ domain.PositionStore = StaticPositions(nil)
