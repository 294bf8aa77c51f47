package trading

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticPositionsListOpen(t *testing.T) {
	s := StaticPositions{
		{Symbol: "WINFUT", Quantity: 2, AvgPrice: 118450},
		{Symbol: "PETR4", Quantity: 0, AvgPrice: 30},
	}

	got, err := s.ListOpen(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "WINFUT", got[0].Symbol)

	got[0].Quantity = 99
	assert.Equal(t, 2, s[0].Quantity)

	empty, err := StaticPositions(nil).ListOpen(context.Background())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
