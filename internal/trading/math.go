package trading

import (
	"github.com/shopspring/decimal"

	"paperperps/internal/portfolio"
	"paperperps/internal/types"
)

// PositionSize is margin * leverage / entryPrice, rounded half away from
// zero to 8 fractional digits. Fixed at open time.
func PositionSize(margin decimal.Decimal, leverage int, entryPrice decimal.Decimal) decimal.Decimal {
	return margin.Mul(decimal.NewFromInt(int64(leverage))).DivRound(entryPrice, types.SizePrecision)
}

// PnL is linear in the price difference and the position size. No funding
// fees, spreads or slippage.
func PnL(pos portfolio.Position, mark decimal.Decimal) decimal.Decimal {
	if pos.IsLong {
		return mark.Sub(pos.EntryPrice).Mul(pos.Size)
	}
	return pos.EntryPrice.Sub(mark).Mul(pos.Size)
}

// Liquidatable reports whether the loss has consumed the posted margin.
// The threshold is inclusive: a position is force-closed once pnl <= -margin,
// not only after going further negative.
func Liquidatable(pos portfolio.Position, mark decimal.Decimal) bool {
	return PnL(pos, mark).LessThanOrEqual(pos.Margin.Neg())
}
