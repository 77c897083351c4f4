package copytrade

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"polyradar/internal/feed"
	"polyradar/internal/models"
)

func TestWatcherHandle_SettlesSellAgainstEarlierBuys(t *testing.T) {
	o, _, repo := newTestOrchestrator(t)
	w := &Watcher{Orchestrator: o, Repo: repo}
	ctx := context.Background()

	// Observed buy: 100 USD at 0.50 → 200 shares, avg entry 0.50.
	w.handle(ctx, feed.Trade{
		WalletAddress: "0xwhale",
		MarketID:      "m1",
		Side:          "BUY",
		Outcome:       "YES",
		SizeUSD:       100,
		Price:         0.50,
		Timestamp:     1700000000,
	})
	if len(repo.trades) != 1 {
		t.Fatalf("trades=%d want 1", len(repo.trades))
	}
	if repo.trades[0].RealizedPnL != nil {
		t.Fatalf("buy must be recorded unsettled")
	}

	// Sell 60 USD at 0.60 → 100 shares, pnl = 100 * (0.60 - 0.50) = 10.
	w.handle(ctx, feed.Trade{
		WalletAddress: "0xwhale",
		MarketID:      "m1",
		Side:          "SELL",
		Outcome:       "YES",
		SizeUSD:       60,
		Price:         0.60,
		Timestamp:     1700000100,
	})
	if len(repo.trades) != 2 {
		t.Fatalf("trades=%d want 2", len(repo.trades))
	}
	sell := repo.trades[1]
	if sell.RealizedPnL == nil {
		t.Fatalf("sell must be settled against the earlier buy")
	}
	if sell.RealizedPnL.Cmp(decimal.NewFromInt(10)) != 0 {
		t.Fatalf("realized=%s want 10", sell.RealizedPnL)
	}
}

func TestWatcherHandle_SellWithoutBasisStaysUnsettled(t *testing.T) {
	o, _, repo := newTestOrchestrator(t)
	w := &Watcher{Orchestrator: o, Repo: repo}
	ctx := context.Background()

	w.handle(ctx, feed.Trade{
		WalletAddress: "0xwhale",
		MarketID:      "m1",
		Side:          "SELL",
		Outcome:       "YES",
		SizeUSD:       60,
		Price:         0.60,
		Timestamp:     1700000000,
	})
	if len(repo.trades) != 1 {
		t.Fatalf("trades=%d want 1", len(repo.trades))
	}
	if repo.trades[0].RealizedPnL != nil {
		t.Fatalf("no prior buys, sell must stay unsettled")
	}
}

func TestWatcherHandle_SettlementScopedToMarketAndOutcome(t *testing.T) {
	o, _, repo := newTestOrchestrator(t)
	w := &Watcher{Orchestrator: o, Repo: repo}
	ctx := context.Background()

	// Basis in a different market and a different outcome must not count.
	pnlFree := func(marketID, outcome string) models.WalletTrade {
		return models.WalletTrade{
			WalletAddress: "0xwhale",
			MarketID:      marketID,
			Side:          "BUY",
			Outcome:       outcome,
			AmountUSD:     decimal.NewFromInt(100),
			Price:         decimal.RequireFromString("0.50"),
		}
	}
	repo.trades = append(repo.trades, pnlFree("other-market", "YES"), pnlFree("m1", "NO"))

	w.handle(ctx, feed.Trade{
		WalletAddress: "0xwhale",
		MarketID:      "m1",
		Side:          "SELL",
		Outcome:       "YES",
		SizeUSD:       60,
		Price:         0.60,
		Timestamp:     1700000000,
	})
	sell := repo.trades[len(repo.trades)-1]
	if sell.RealizedPnL != nil {
		t.Fatalf("basis from other markets or outcomes must not settle the sell")
	}
}
