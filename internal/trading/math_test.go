package trading

import (
	"testing"

	"github.com/shopspring/decimal"

	"paperperps/internal/portfolio"
	"paperperps/internal/types"
)

func TestPositionSize(t *testing.T) {
	tests := []struct {
		name     string
		margin   string
		leverage int
		entry    string
		want     string
	}{
		{name: "btc 10x", margin: "1000", leverage: 10, entry: "50000", want: "0.2"},
		{name: "1x", margin: "250", leverage: 1, entry: "2500", want: "0.1"},
		{name: "rounds to 8dp", margin: "1000", leverage: 3, entry: "7000", want: "0.42857143"},
		{name: "max leverage", margin: "100", leverage: 50, entry: "2000", want: "2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PositionSize(decimal.RequireFromString(tt.margin), tt.leverage, decimal.RequireFromString(tt.entry))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("PositionSize() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPnL(t *testing.T) {
	long := portfolio.Position{
		Symbol:     types.SymbolBTCUSD,
		Margin:     decimal.RequireFromString("1000"),
		Leverage:   10,
		Size:       decimal.RequireFromString("0.2"),
		EntryPrice: decimal.RequireFromString("50000"),
		IsLong:     true,
	}
	short := long
	short.IsLong = false

	tests := []struct {
		name string
		pos  portfolio.Position
		mark string
		want string
	}{
		{name: "long gains on rise", pos: long, mark: "55000", want: "1000"},
		{name: "long loses on drop", pos: long, mark: "45000", want: "-1000"},
		{name: "short gains on drop", pos: short, mark: "45000", want: "1000"},
		{name: "short loses on rise", pos: short, mark: "55000", want: "-1000"},
		{name: "flat", pos: long, mark: "50000", want: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PnL(tt.pos, decimal.RequireFromString(tt.mark))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("PnL() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLiquidatable(t *testing.T) {
	pos := portfolio.Position{
		Margin:     decimal.RequireFromString("1000"),
		Size:       decimal.RequireFromString("0.2"),
		EntryPrice: decimal.RequireFromString("50000"),
		IsLong:     true,
	}
	// The threshold is inclusive: a loss of exactly the margin liquidates.
	if !Liquidatable(pos, decimal.RequireFromString("45000")) {
		t.Error("loss equal to margin must liquidate")
	}
	if Liquidatable(pos, decimal.RequireFromString("45000.01")) {
		t.Error("loss below margin must not liquidate")
	}
	if !Liquidatable(pos, decimal.RequireFromString("40000")) {
		t.Error("loss past margin must liquidate")
	}
	if Liquidatable(pos, decimal.RequireFromString("60000")) {
		t.Error("profitable position must not liquidate")
	}
}
