package risk

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type SizingMode string

const (
	ModeFixed      SizingMode = "fixed"
	ModePercentage SizingMode = "percentage"
	ModeKelly      SizingMode = "kelly"
)

const (
	// kellySafetyFactor scales the raw Kelly fraction down; full Kelly is
	// too aggressive for the noisy win/loss estimates we feed it.
	kellySafetyFactor = 0.25
	// kellyMaxFraction is a hard ceiling on the bankroll share per trade.
	kellyMaxFraction = 0.20
)

type SizingResult struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    SizingMode      `json:"method"`
	Rationale string          `json:"rationale"`
}

// PositionSize computes a dollar position size out of the given capital.
// Pure function of its inputs; winRate is in [0,1], avgWin/avgLoss are
// positive magnitudes of the historical average winning and losing return.
func PositionSize(capital decimal.Decimal, winRate, avgWin, avgLoss float64, mode SizingMode, fixedAmount, percentage decimal.Decimal) SizingResult {
	if !capital.IsPositive() {
		return SizingResult{Amount: decimal.Zero, Method: mode, Rationale: "no capital available"}
	}

	switch mode {
	case ModeFixed:
		amount := fixedAmount
		if amount.GreaterThan(capital) {
			amount = capital
		}
		if amount.IsNegative() {
			amount = decimal.Zero
		}
		return SizingResult{
			Amount:    amount,
			Method:    ModeFixed,
			Rationale: fmt.Sprintf("fixed amount %s capped at capital %s", fixedAmount, capital),
		}

	case ModePercentage:
		pct := percentage
		if pct.IsNegative() {
			pct = decimal.Zero
		}
		hundred := decimal.NewFromInt(100)
		if pct.GreaterThan(hundred) {
			pct = hundred
		}
		amount := capital.Mul(pct).Div(hundred)
		return SizingResult{
			Amount:    amount,
			Method:    ModePercentage,
			Rationale: fmt.Sprintf("%s%% of capital %s", pct, capital),
		}

	default:
		fraction := KellyFraction(winRate, avgWin, avgLoss)
		amount := capital.Mul(decimal.NewFromFloat(fraction))
		return SizingResult{
			Amount:    amount,
			Method:    ModeKelly,
			Rationale: fmt.Sprintf("kelly fraction %.4f of capital %s (win rate %.2f, avg win %.4f, avg loss %.4f)", fraction, capital, winRate, avgWin, avgLoss),
		}
	}
}

// KellyFraction returns the safety-scaled Kelly bankroll fraction, clamped
// to [0, kellyMaxFraction]. With no losing trades observed (avgLoss == 0)
// the raw edge is taken as the win rate itself rather than dividing by zero.
func KellyFraction(winRate, avgWin, avgLoss float64) float64 {
	if winRate < 0 {
		winRate = 0
	}
	if winRate > 1 {
		winRate = 1
	}

	var raw float64
	if avgLoss <= 0 {
		raw = winRate
	} else if avgWin <= 0 {
		return 0
	} else {
		ratio := avgWin / avgLoss
		raw = winRate - (1-winRate)/ratio
	}
	if raw <= 0 {
		return 0
	}

	fraction := raw * kellySafetyFactor
	if fraction > kellyMaxFraction {
		fraction = kellyMaxFraction
	}
	return fraction
}
