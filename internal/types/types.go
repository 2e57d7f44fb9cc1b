package types

// Symbol is one of the fixed set of tradeable instruments.
type Symbol string

const (
	SymbolBTCUSD Symbol = "BTCUSD"
	SymbolXAUUSD Symbol = "XAUUSD"
	SymbolSPXUSD Symbol = "SPXUSD"
	SymbolNDXUSD Symbol = "NDXUSD"
)

var allSymbols = []Symbol{SymbolBTCUSD, SymbolXAUUSD, SymbolSPXUSD, SymbolNDXUSD}

func Symbols() []Symbol {
	out := make([]Symbol, len(allSymbols))
	copy(out, allSymbols)
	return out
}

func (s Symbol) Supported() bool {
	for _, known := range allSymbols {
		if s == known {
			return true
		}
	}
	return false
}

const (
	MinLeverage = 1
	MaxLeverage = 50

	// SizePrecision is the fractional-digit precision of position size.
	SizePrecision = 8
)
