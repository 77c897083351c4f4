package copytrade

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyradar/internal/paper"
)

// PriceSource supplies the current price for a market outcome.
type PriceSource interface {
	CurrentPrice(ctx context.Context, marketID string, outcome paper.Outcome) (decimal.Decimal, error)
}

// PositionMonitor is the recurring sweep behind automated exits on the
// active profile. Positions opened by a copy rule use that rule's StopLoss
// threshold; everything else falls back to the profile's AutoStopLoss.
// AutoTakeProfit closes any position whose gain reaches the threshold.
// Thresholds are percentages of invested cost basis; zero disables them.
type PositionMonitor struct {
	Store    *paper.Store
	Executor *paper.Executor
	Prices   PriceSource
	Logger   *zap.Logger
}

func (m *PositionMonitor) Run(ctx context.Context, interval time.Duration) error {
	if m == nil || m.Store == nil || m.Executor == nil {
		return nil
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		if err := m.RunOnce(ctx); err != nil && m.Logger != nil {
			m.Logger.Warn("position sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (m *PositionMonitor) RunOnce(ctx context.Context) error {
	if m == nil || m.Store == nil || m.Executor == nil || m.Prices == nil {
		return nil
	}
	profile, err := m.Store.ActiveProfile(ctx)
	if err != nil {
		return err
	}
	if len(profile.Positions) == 0 {
		return nil
	}

	for _, pos := range profile.Positions {
		stop, take := exitThresholds(profile, pos)
		if !stop.IsPositive() && !take.IsPositive() {
			continue
		}
		if !pos.Invested.IsPositive() {
			continue
		}
		price, err := m.Prices.CurrentPrice(ctx, pos.MarketID, pos.Outcome)
		if err != nil || !price.IsPositive() {
			continue
		}
		valued := pos.Valued(price)
		pnlPct := valued.PnL.Div(pos.Invested).Mul(decimal.NewFromInt(100))

		var note string
		switch {
		case stop.IsPositive() && pnlPct.IsNegative() && pnlPct.Neg().GreaterThanOrEqual(stop):
			note = "stop loss"
		case take.IsPositive() && pnlPct.GreaterThanOrEqual(take):
			note = "take profit"
		default:
			continue
		}

		order, err := m.Executor.ExecuteOrder(ctx, paper.OrderRequest{
			MarketID:       pos.MarketID,
			MarketTitle:    pos.MarketTitle,
			Side:           paper.SideSell,
			Outcome:        pos.Outcome,
			AmountUSD:      pos.Shares.Mul(price),
			ReferencePrice: price,
			Source:         paper.SourceCopy,
			SourceWallet:   pos.SourceWallet,
			Notes:          note,
		})
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("automated exit rejected",
					zap.String("market_id", pos.MarketID), zap.Error(err))
			}
			continue
		}
		if m.Logger != nil {
			m.Logger.Info("automated exit triggered",
				zap.String("market_id", pos.MarketID),
				zap.String("outcome", string(pos.Outcome)),
				zap.String("reason", note),
				zap.String("pnl_pct", pnlPct.StringFixed(2)),
				zap.String("order_id", order.ID),
			)
		}
	}
	return nil
}

// exitThresholds resolves the stop-loss and take-profit percentages for one
// position. A rule's StopLoss only covers positions that rule opened; the
// profile's AutoStopLoss covers the rest, including manual entries.
func exitThresholds(profile *paper.Profile, pos paper.Position) (stop, take decimal.Decimal) {
	if pos.SourceWallet != "" {
		if rule, ok := profile.CopySettings[pos.SourceWallet]; ok && rule.Enabled && rule.StopLoss.IsPositive() {
			stop = rule.StopLoss
		}
	}
	if !stop.IsPositive() {
		stop = profile.Settings.AutoStopLoss
	}
	take = profile.Settings.AutoTakeProfit
	return stop, take
}
