package copytrade

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyradar/internal/config"
	"polyradar/internal/paper"
	"polyradar/internal/repository"
	"polyradar/internal/risk"
)

// ObservedTrade is one trade by a followed external wallet, as delivered by
// the activity feed.
type ObservedTrade struct {
	WalletAddress string
	MarketID      string
	MarketTitle   string
	Side          paper.Side
	Outcome       paper.Outcome
	AmountUSD     decimal.Decimal
	Price         decimal.Decimal
	Category      string
	TradedAt      time.Time
}

// CopyNotifier receives best-effort copy events.
type CopyNotifier interface {
	CopyStarted(ctx context.Context, walletAddress string, order paper.Order)
}

// Orchestrator converts observed wallet trades into sized local orders on
// the active profile. It holds no ledger state; sizing reads the profile
// and the follower's trade history, execution goes through the executor.
type Orchestrator struct {
	Store    *paper.Store
	Executor *paper.Executor
	Repo     repository.Repository
	Logger   *zap.Logger
	Notifier CopyNotifier
	Config   config.CopyTradeConfig
}

// HandleTrade processes one observed trade against every enabled follow
// rule on the active profile. A failure on one rule never blocks the rest.
func (o *Orchestrator) HandleTrade(ctx context.Context, trade ObservedTrade) {
	if o == nil || o.Store == nil || o.Executor == nil {
		return
	}
	if !o.Config.Enabled {
		return
	}
	addr := strings.ToLower(strings.TrimSpace(trade.WalletAddress))
	if addr == "" || trade.MarketID == "" {
		return
	}

	profile, err := o.Store.ActiveProfile(ctx)
	if err != nil {
		if o.Logger != nil {
			o.Logger.Warn("copy trade skipped, active profile unavailable", zap.Error(err))
		}
		return
	}

	setting, ok := profile.CopySettings[addr]
	if !ok || !setting.Enabled {
		return
	}
	o.executeCopy(ctx, profile, setting, trade)
}

func (o *Orchestrator) executeCopy(ctx context.Context, profile *paper.Profile, setting paper.CopySetting, trade ObservedTrade) {
	outcome := trade.Outcome
	side := trade.Side
	if setting.Inverse {
		outcome = outcome.Flip()
	}

	amount := o.sizeOrder(ctx, profile, setting, trade)
	if setting.MaxCap.IsPositive() && amount.GreaterThan(setting.MaxCap) {
		amount = setting.MaxCap
	}
	// Per-account ceiling across every rule.
	if rp := profile.Settings.RiskPerTrade; rp.IsPositive() {
		ceiling := profile.CashBalance.Mul(rp).Div(decimal.NewFromInt(100))
		if amount.GreaterThan(ceiling) {
			amount = ceiling
		}
	}
	if !amount.IsPositive() {
		if o.Logger != nil {
			o.Logger.Debug("copy trade sized to zero",
				zap.String("wallet", setting.WalletAddress),
				zap.String("market_id", trade.MarketID),
				zap.String("mode", string(setting.CopyMode)),
			)
		}
		return
	}

	order, err := o.Executor.ExecuteOrder(ctx, paper.OrderRequest{
		MarketID:       trade.MarketID,
		MarketTitle:    trade.MarketTitle,
		Side:           side,
		Outcome:        outcome,
		AmountUSD:      amount,
		ReferencePrice: trade.Price,
		Source:         paper.SourceCopy,
		SourceWallet:   setting.WalletAddress,
		Notes:          "copy of " + setting.WalletAddress,
	})
	if err != nil {
		if o.Logger != nil {
			o.Logger.Warn("copy trade rejected",
				zap.String("wallet", setting.WalletAddress),
				zap.String("market_id", trade.MarketID),
				zap.Error(err),
			)
		}
		return
	}

	if o.Logger != nil {
		o.Logger.Info("copy trade executed",
			zap.String("wallet", setting.WalletAddress),
			zap.String("order_id", order.ID),
			zap.String("amount_usd", order.RequestedAmount.String()),
			zap.Bool("inverse", setting.Inverse),
		)
	}
	if o.Notifier != nil {
		go o.Notifier.CopyStarted(context.WithoutCancel(ctx), setting.WalletAddress, *order)
	}
}

// sizeOrder picks the dollar size per the rule's copy mode. smart_mirror
// derives Kelly inputs from the followed wallet's settled trade history;
// with too little history it falls back to the fixed amount.
func (o *Orchestrator) sizeOrder(ctx context.Context, profile *paper.Profile, setting paper.CopySetting, trade ObservedTrade) decimal.Decimal {
	switch setting.CopyMode {
	case paper.CopyModePercentage:
		return risk.PositionSize(profile.CashBalance, 0, 0, 0,
			risk.ModePercentage, decimal.Zero, setting.PercentageAmount).Amount

	case paper.CopyModeSmartMirror:
		metrics, ok := o.walletMetrics(ctx, setting.WalletAddress)
		if !ok || metrics.Trades < o.minTradesForKelly() {
			return setting.FixedAmount
		}
		return risk.PositionSize(profile.CashBalance,
			metrics.WinRate, metrics.AvgWin, metrics.AvgLoss,
			risk.ModeKelly, decimal.Zero, decimal.Zero).Amount

	default:
		return risk.PositionSize(profile.CashBalance, 0, 0, 0,
			risk.ModeFixed, setting.FixedAmount, decimal.Zero).Amount
	}
}

func (o *Orchestrator) minTradesForKelly() int {
	if o.Config.MinTradesForKelly > 0 {
		return o.Config.MinTradesForKelly
	}
	return 5
}

func (o *Orchestrator) walletMetrics(ctx context.Context, walletAddress string) (risk.Metrics, bool) {
	if o.Repo == nil {
		return risk.Metrics{}, false
	}
	settled := true
	rows, err := o.Repo.ListWalletTrades(ctx, repository.ListWalletTradesParams{
		Address: &walletAddress,
		Settled: &settled,
		Limit:   500,
	})
	if err != nil {
		if o.Logger != nil {
			o.Logger.Warn("wallet history unavailable",
				zap.String("wallet", walletAddress), zap.Error(err))
		}
		return risk.Metrics{}, false
	}

	records := make([]risk.TradeRecord, 0, len(rows))
	for _, row := range rows {
		if row.RealizedPnL == nil {
			continue
		}
		records = append(records, risk.TradeRecord{
			Amount: row.AmountUSD,
			PnL:    *row.RealizedPnL,
		})
	}
	if len(records) == 0 {
		return risk.Metrics{}, false
	}
	return risk.WalletMetrics(records), true
}
