package copytrade

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyradar/internal/config"
	"polyradar/internal/feed"
	"polyradar/internal/models"
	"polyradar/internal/paper"
	"polyradar/internal/repository"
)

// Watcher consumes the wallet-activity stream: every observed trade is
// recorded for metrics and handed to the orchestrator for copy decisions.
type Watcher struct {
	Orchestrator *Orchestrator
	Repo         repository.Repository
	Logger       *zap.Logger
	Config       config.FeedConfig
}

func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.Orchestrator == nil || !w.Config.Enabled {
		return nil
	}
	stream := feed.NewStream(feed.StreamOptions{
		URL:            w.Config.URL,
		Wallets:        w.Config.Wallets,
		WalletProvider: w.followedWallets,
		Logger:         w.Logger,
	})
	return stream.Run(ctx, func(t feed.Trade) {
		w.handle(ctx, t)
	})
}

// followedWallets merges statically configured wallets with the active
// profile's follow rules so the feed subscribes to everything relevant.
func (w *Watcher) followedWallets(ctx context.Context) ([]string, error) {
	wallets := append([]string(nil), w.Config.Wallets...)
	if w.Orchestrator != nil && w.Orchestrator.Store != nil {
		profile, err := w.Orchestrator.Store.ActiveProfile(ctx)
		if err == nil {
			for addr := range profile.CopySettings {
				wallets = append(wallets, addr)
			}
		}
	}
	return wallets, nil
}

func (w *Watcher) handle(ctx context.Context, t feed.Trade) {
	trade := ObservedTrade{
		WalletAddress: strings.ToLower(strings.TrimSpace(t.WalletAddress)),
		MarketID:      t.MarketID,
		MarketTitle:   t.MarketTitle,
		Side:          paper.Side(strings.ToUpper(t.Side)),
		Outcome:       paper.Outcome(strings.ToUpper(t.Outcome)),
		AmountUSD:     decimal.NewFromFloat(t.SizeUSD),
		Price:         decimal.NewFromFloat(t.Price),
		Category:      t.Category,
		TradedAt:      time.Unix(t.Timestamp, 0).UTC(),
	}
	if trade.TradedAt.Year() < 2000 {
		trade.TradedAt = time.Now().UTC()
	}

	if w.Repo != nil {
		var realized *decimal.Decimal
		if trade.Side == paper.SideSell {
			realized = w.settleSell(ctx, trade)
		}
		err := w.Repo.InsertWalletTrade(ctx, &models.WalletTrade{
			WalletAddress: trade.WalletAddress,
			MarketID:      trade.MarketID,
			MarketTitle:   trade.MarketTitle,
			Side:          string(trade.Side),
			Outcome:       string(trade.Outcome),
			AmountUSD:     trade.AmountUSD,
			Price:         trade.Price,
			RealizedPnL:   realized,
			Category:      trade.Category,
			TradedAt:      trade.TradedAt,
		})
		if err != nil && w.Logger != nil {
			w.Logger.Warn("wallet trade insert failed",
				zap.String("wallet", trade.WalletAddress), zap.Error(err))
		}
	}

	w.Orchestrator.HandleTrade(ctx, trade)
}

// settleSell derives the realized PnL of an observed sell against the
// wallet's earlier buys in the same (market, outcome): average cost basis,
// sold shares clamped to shares bought. Returns nil when no basis exists,
// leaving the row unsettled.
func (w *Watcher) settleSell(ctx context.Context, trade ObservedTrade) *decimal.Decimal {
	if !trade.Price.IsPositive() || !trade.AmountUSD.IsPositive() {
		return nil
	}
	side := string(paper.SideBuy)
	outcome := string(trade.Outcome)
	rows, err := w.Repo.ListWalletTrades(ctx, repository.ListWalletTradesParams{
		Address:  &trade.WalletAddress,
		MarketID: &trade.MarketID,
		Outcome:  &outcome,
		Side:     &side,
		Limit:    1000,
	})
	if err != nil {
		if w.Logger != nil {
			w.Logger.Warn("settlement lookup failed",
				zap.String("wallet", trade.WalletAddress), zap.Error(err))
		}
		return nil
	}

	var shares, invested decimal.Decimal
	for _, row := range rows {
		if !row.Price.IsPositive() || !row.AmountUSD.IsPositive() {
			continue
		}
		shares = shares.Add(row.AmountUSD.Div(row.Price))
		invested = invested.Add(row.AmountUSD)
	}
	if !shares.IsPositive() {
		return nil
	}
	avgEntry := invested.Div(shares)

	soldShares := trade.AmountUSD.Div(trade.Price)
	if soldShares.GreaterThan(shares) {
		soldShares = shares
	}
	pnl := soldShares.Mul(trade.Price.Sub(avgEntry))
	return &pnl
}
