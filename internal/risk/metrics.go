package risk

import (
	"math"

	"github.com/shopspring/decimal"
)

// TradeRecord is one settled trade in a wallet's history. PnL is the
// realized profit or loss on Amount invested.
type TradeRecord struct {
	Amount decimal.Decimal
	PnL    decimal.Decimal
}

// Metrics is the risk profile derived from a wallet's settled trades. All
// ratios are dimensionless float64; money stays decimal.
type Metrics struct {
	Trades        int             `json:"trades"`
	Wins          int             `json:"wins"`
	Losses        int             `json:"losses"`
	WinRate       float64         `json:"winRate"`
	AvgWin        float64         `json:"avgWin"`
	AvgLoss       float64         `json:"avgLoss"`
	TotalPnL      decimal.Decimal `json:"totalPnl"`
	TotalVolume   decimal.Decimal `json:"totalVolume"`
	ProfitFactor  float64         `json:"profitFactor"`
	SharpeRatio   float64         `json:"sharpeRatio"`
	SortinoRatio  float64         `json:"sortinoRatio"`
	CalmarRatio   float64         `json:"calmarRatio"`
	MaxDrawdown   float64         `json:"maxDrawdown"`
	RiskOfRuin    float64         `json:"riskOfRuin"`
	BestStreak    int             `json:"bestStreak"`
	WorstStreak   int             `json:"worstStreak"`
	SmartScore    float64         `json:"smartScore"`
	Insufficient  bool            `json:"insufficientData"`
}

const (
	annualizationFactor = 252
	profitFactorCap     = 999
	ruinExponentUnits   = 20
)

// WalletMetrics computes the full risk profile from settled trades, in
// order. An empty input returns neutral zero-valued metrics rather than
// NaN; trades with zero invested amount are skipped.
func WalletMetrics(trades []TradeRecord) Metrics {
	m := Metrics{TotalPnL: decimal.Zero, TotalVolume: decimal.Zero}

	var returns []float64
	var sumWin, sumLoss float64
	for _, t := range trades {
		if !t.Amount.IsPositive() {
			continue
		}
		r, _ := t.PnL.Div(t.Amount).Float64()
		returns = append(returns, r)
		m.Trades++
		m.TotalPnL = m.TotalPnL.Add(t.PnL)
		m.TotalVolume = m.TotalVolume.Add(t.Amount)
		if t.PnL.IsPositive() {
			m.Wins++
			sumWin += r
		} else if t.PnL.IsNegative() {
			m.Losses++
			sumLoss += -r
		}
	}
	if m.Trades == 0 {
		m.Insufficient = true
		return m
	}

	m.WinRate = float64(m.Wins) / float64(m.Trades)
	if m.Wins > 0 {
		m.AvgWin = sumWin / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLoss = sumLoss / float64(m.Losses)
	}

	if sumLoss > 0 {
		m.ProfitFactor = sumWin / sumLoss
		if m.ProfitFactor > profitFactorCap {
			m.ProfitFactor = profitFactorCap
		}
	} else if sumWin > 0 {
		m.ProfitFactor = profitFactorCap
	}

	mean := meanOf(returns)
	std := stdDevOf(returns, mean)
	if std > 0 {
		m.SharpeRatio = mean / std * math.Sqrt(annualizationFactor)
	}
	downside := downsideDevOf(returns)
	if downside > 0 {
		m.SortinoRatio = mean / downside * math.Sqrt(annualizationFactor)
	}

	m.MaxDrawdown = maxDrawdownOf(returns)
	if m.MaxDrawdown > 0 {
		m.CalmarRatio = mean * annualizationFactor / m.MaxDrawdown
	}

	m.RiskOfRuin = riskOfRuin(m.WinRate)
	m.BestStreak, m.WorstStreak = streaksOf(returns)
	m.SmartScore = smartScore(m)
	m.Insufficient = m.Trades < 2
	return m
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDevOf(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

func downsideDevOf(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		if x < 0 {
			sum += x * x
		}
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// maxDrawdownOf walks the cumulative return curve and returns the deepest
// peak-to-trough decline as a positive fraction.
func maxDrawdownOf(xs []float64) float64 {
	var cum, peak, maxDD float64
	for _, x := range xs {
		cum += x
		if cum > peak {
			peak = cum
		}
		dd := peak - cum
		if dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// riskOfRuin is the classic gambler's-ruin estimate over a fixed bankroll of
// risk units. An edge at or below zero means eventual ruin.
func riskOfRuin(winRate float64) float64 {
	edge := winRate - (1 - winRate)
	if edge <= 0 {
		return 1
	}
	r := math.Pow((1-edge)/(1+edge), ruinExponentUnits)
	if r > 1 {
		return 1
	}
	return r
}

func streaksOf(xs []float64) (best, worst int) {
	var winRun, lossRun int
	for _, x := range xs {
		if x > 0 {
			winRun++
			lossRun = 0
		} else if x < 0 {
			lossRun++
			winRun = 0
		} else {
			winRun, lossRun = 0, 0
		}
		if winRun > best {
			best = winRun
		}
		if lossRun > worst {
			worst = lossRun
		}
	}
	return best, worst
}

// smartScore folds the profile into a single 0-100 ranking: consistency
// (win rate), risk-adjusted return (Sharpe), edge quality (profit factor)
// and capital preservation (drawdown), 25 points each.
func smartScore(m Metrics) float64 {
	score := m.WinRate * 25
	score += clamp01(m.SharpeRatio/3) * 25
	score += clamp01(m.ProfitFactor/3) * 25
	score += clamp01(1-m.MaxDrawdown) * 25
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
