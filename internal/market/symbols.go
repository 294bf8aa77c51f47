package market

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// Symbol is one tracked instrument and the seed price it starts from.
type Symbol struct {
	Name      string
	BasePrice float64
}

// NormalizeSymbol maps user input onto the ledger's key space.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// validateSymbols rejects empty names, duplicates and non-positive base
// prices. The base price is a divisor for change_percent.
func validateSymbols(symbols []Symbol) error {
	if len(symbols) == 0 {
		return fmt.Errorf("%w: no symbols", domain.ErrInvalidSymbolTable)
	}
	seen := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		name := NormalizeSymbol(s.Name)
		if name == "" {
			return fmt.Errorf("%w: empty symbol name", domain.ErrInvalidSymbolTable)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate symbol %q", domain.ErrInvalidSymbolTable, name)
		}
		if !(s.BasePrice > 0) {
			return fmt.Errorf("%w: symbol %q base price must be > 0, got %v", domain.ErrInvalidSymbolTable, name, s.BasePrice)
		}
		seen[name] = true
	}
	return nil
}
