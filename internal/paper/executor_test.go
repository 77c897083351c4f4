package paper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"polyradar/internal/config"
)

func newTestExecutor(t *testing.T, cfg config.PaperConfig) (*Executor, *Store) {
	t.Helper()
	if cfg.StartingBalance == 0 {
		cfg.StartingBalance = 1000
	}
	store := NewStore(&memRepo{}, nil, cfg)
	return NewExecutor(store, nil, nil, cfg), store
}

func buyRequest(amount, price string) OrderRequest {
	return OrderRequest{
		MarketID:       "m1",
		Side:           SideBuy,
		Outcome:        OutcomeYes,
		AmountUSD:      decimal.RequireFromString(amount),
		ReferencePrice: decimal.RequireFromString(price),
	}
}

func TestExecuteOrder_BuyThenSellScenario(t *testing.T) {
	exec, store := newTestExecutor(t, config.PaperConfig{})
	ctx := context.Background()

	order, err := exec.ExecuteOrder(ctx, buyRequest("100", "0.40"))
	if err != nil {
		t.Fatalf("buy err=%v", err)
	}
	if order.Shares.Cmp(decimal.NewFromInt(250)) != 0 {
		t.Fatalf("shares=%s want 250", order.Shares)
	}

	profile, _ := store.ActiveProfile(ctx)
	if profile.CashBalance.Cmp(decimal.NewFromInt(900)) != 0 {
		t.Fatalf("balance=%s want 900", profile.CashBalance)
	}
	pos, ok := profile.Positions[PositionKey("m1", OutcomeYes)]
	if !ok {
		t.Fatalf("position missing")
	}
	if pos.AvgEntryPrice.Cmp(decimal.RequireFromString("0.40")) != 0 {
		t.Fatalf("avg=%s want 0.40", pos.AvgEntryPrice)
	}

	// Unrealized PnL at 0.60.
	valued := pos.Valued(decimal.RequireFromString("0.60"))
	if valued.PnL.Cmp(decimal.NewFromInt(50)) != 0 {
		t.Fatalf("unrealized=%s want 50", valued.PnL)
	}

	sell, err := exec.ExecuteOrder(ctx, OrderRequest{
		MarketID:       "m1",
		Side:           SideSell,
		Outcome:        OutcomeYes,
		AmountUSD:      decimal.NewFromInt(150),
		ReferencePrice: decimal.RequireFromString("0.60"),
	})
	if err != nil {
		t.Fatalf("sell err=%v", err)
	}
	if sell.RealizedPnL.Cmp(decimal.NewFromInt(50)) != 0 {
		t.Fatalf("realized=%s want 50", sell.RealizedPnL)
	}

	profile, _ = store.ActiveProfile(ctx)
	if profile.CashBalance.Cmp(decimal.NewFromInt(1050)) != 0 {
		t.Fatalf("balance=%s want 1050", profile.CashBalance)
	}
	if len(profile.Positions) != 0 {
		t.Fatalf("position should be removed after full close")
	}
	if len(profile.History) != 2 {
		t.Fatalf("history=%d want 2", len(profile.History))
	}
}

func TestExecuteOrder_RoundTripRestoresBalance(t *testing.T) {
	exec, store := newTestExecutor(t, config.PaperConfig{})
	ctx := context.Background()

	if _, err := exec.ExecuteOrder(ctx, buyRequest("200", "0.50")); err != nil {
		t.Fatalf("buy err=%v", err)
	}
	if _, err := exec.ExecuteOrder(ctx, OrderRequest{
		MarketID:       "m1",
		Side:           SideSell,
		Outcome:        OutcomeYes,
		AmountUSD:      decimal.NewFromInt(200),
		ReferencePrice: decimal.RequireFromString("0.50"),
	}); err != nil {
		t.Fatalf("sell err=%v", err)
	}
	profile, _ := store.ActiveProfile(ctx)
	if profile.CashBalance.Cmp(decimal.NewFromInt(1000)) != 0 {
		t.Fatalf("balance=%s want 1000", profile.CashBalance)
	}
	if len(profile.Positions) != 0 {
		t.Fatalf("position not removed")
	}
}

func TestExecuteOrder_AvgEntryPriceUnchangedBySell(t *testing.T) {
	exec, store := newTestExecutor(t, config.PaperConfig{})
	ctx := context.Background()

	if _, err := exec.ExecuteOrder(ctx, buyRequest("100", "0.40")); err != nil {
		t.Fatalf("err=%v", err)
	}
	if _, err := exec.ExecuteOrder(ctx, buyRequest("100", "0.60")); err != nil {
		t.Fatalf("err=%v", err)
	}
	profile, _ := store.ActiveProfile(ctx)
	pos := profile.Positions[PositionKey("m1", OutcomeYes)]
	if pos.AvgEntryPrice.Cmp(pos.Invested.Div(pos.Shares)) != 0 {
		t.Fatalf("avg=%s invested/shares=%s", pos.AvgEntryPrice, pos.Invested.Div(pos.Shares))
	}
	avgBefore := pos.AvgEntryPrice

	if _, err := exec.ExecuteOrder(ctx, OrderRequest{
		MarketID:       "m1",
		Side:           SideSell,
		Outcome:        OutcomeYes,
		AmountUSD:      decimal.NewFromInt(50),
		ReferencePrice: decimal.RequireFromString("0.70"),
	}); err != nil {
		t.Fatalf("err=%v", err)
	}
	profile, _ = store.ActiveProfile(ctx)
	pos = profile.Positions[PositionKey("m1", OutcomeYes)]
	if pos.AvgEntryPrice.Cmp(avgBefore) != 0 {
		t.Fatalf("sell changed avg entry: %s -> %s", avgBefore, pos.AvgEntryPrice)
	}
}

func TestExecuteOrder_Validation(t *testing.T) {
	exec, store := newTestExecutor(t, config.PaperConfig{})
	ctx := context.Background()

	cases := []OrderRequest{
		buyRequest("0", "0.40"),
		buyRequest("-5", "0.40"),
		buyRequest("10", "0"),
		buyRequest("10", "1"),
		buyRequest("10", "1.2"),
		{Side: SideBuy, Outcome: OutcomeYes, AmountUSD: decimal.NewFromInt(10), ReferencePrice: decimal.RequireFromString("0.5")},
	}
	for i, req := range cases {
		order, err := exec.ExecuteOrder(ctx, req)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d err=%v want ErrValidation", i, err)
		}
		if order == nil || order.Status != StatusRejected {
			t.Fatalf("case %d rejected order not returned", i)
		}
	}

	profile, _ := store.ActiveProfile(ctx)
	if len(profile.History) != 0 {
		t.Fatalf("rejected orders must not be recorded in history")
	}
}

func TestExecuteOrder_InsufficientFunds(t *testing.T) {
	exec, store := newTestExecutor(t, config.PaperConfig{StartingBalance: 100})
	ctx := context.Background()

	order, err := exec.ExecuteOrder(ctx, buyRequest("150", "0.50"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}
	if order.Status != StatusRejected {
		t.Fatalf("status=%s want REJECTED", order.Status)
	}
	profile, _ := store.ActiveProfile(ctx)
	if profile.CashBalance.Cmp(decimal.NewFromInt(100)) != 0 {
		t.Fatalf("balance=%s changed by rejected order", profile.CashBalance)
	}
}

func TestExecuteOrder_InsufficientPosition(t *testing.T) {
	exec, _ := newTestExecutor(t, config.PaperConfig{})
	ctx := context.Background()

	_, err := exec.ExecuteOrder(ctx, OrderRequest{
		MarketID:       "m1",
		Side:           SideSell,
		Outcome:        OutcomeYes,
		AmountUSD:      decimal.NewFromInt(10),
		ReferencePrice: decimal.RequireFromString("0.50"),
	})
	if !errors.Is(err, ErrInsufficientPosition) {
		t.Fatalf("err=%v want ErrInsufficientPosition", err)
	}

	if _, err := exec.ExecuteOrder(ctx, buyRequest("10", "0.50")); err != nil {
		t.Fatalf("err=%v", err)
	}
	_, err = exec.ExecuteOrder(ctx, OrderRequest{
		MarketID:       "m1",
		Side:           SideSell,
		Outcome:        OutcomeYes,
		AmountUSD:      decimal.NewFromInt(100),
		ReferencePrice: decimal.RequireFromString("0.50"),
	})
	if !errors.Is(err, ErrInsufficientPosition) {
		t.Fatalf("err=%v want ErrInsufficientPosition", err)
	}
}

func TestExecuteOrder_SlippageProtection(t *testing.T) {
	exec, _ := newTestExecutor(t, config.PaperConfig{SlippageTolerancePct: 2})
	ctx := context.Background()

	req := buyRequest("10", "0.50")
	req.ExpectedPrice = decimal.RequireFromString("0.40")
	if _, err := exec.ExecuteOrder(ctx, req); !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v want ErrValidation on drift", err)
	}

	req.ExpectedPrice = decimal.RequireFromString("0.50")
	if _, err := exec.ExecuteOrder(ctx, req); err != nil {
		t.Fatalf("err=%v want fill within tolerance", err)
	}
}

func TestExecuteOrder_MaxOpenPositionsCap(t *testing.T) {
	exec, _ := newTestExecutor(t, config.PaperConfig{MaxOpenPositions: 1})
	ctx := context.Background()

	if _, err := exec.ExecuteOrder(ctx, buyRequest("10", "0.50")); err != nil {
		t.Fatalf("err=%v", err)
	}
	req := buyRequest("10", "0.50")
	req.MarketID = "m2"
	if _, err := exec.ExecuteOrder(ctx, req); !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v want ErrValidation at position cap", err)
	}
	// Adding to an existing position is still allowed.
	if _, err := exec.ExecuteOrder(ctx, buyRequest("10", "0.50")); err != nil {
		t.Fatalf("err=%v", err)
	}
}

type blockingNotifier struct {
	release chan struct{}
	done    chan Order
}

func (n *blockingNotifier) TradeExecuted(ctx context.Context, order Order) {
	<-n.release
	n.done <- order
}

func TestExecuteOrder_NotifierDoesNotBlockFill(t *testing.T) {
	notifier := &blockingNotifier{
		release: make(chan struct{}),
		done:    make(chan Order, 1),
	}
	cfg := config.PaperConfig{StartingBalance: 1000}
	store := NewStore(&memRepo{}, nil, cfg)
	exec := NewExecutor(store, nil, notifier, cfg)

	// The notifier is still blocked; the fill must return regardless.
	order, err := exec.ExecuteOrder(context.Background(), buyRequest("100", "0.40"))
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	close(notifier.release)
	select {
	case got := <-notifier.done:
		if got.ID != order.ID {
			t.Fatalf("notified order %q want %q", got.ID, order.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("notification never delivered")
	}
}

func TestExecuteOrder_ConcurrentBuysNoDoubleSpend(t *testing.T) {
	exec, store := newTestExecutor(t, config.PaperConfig{StartingBalance: 100})
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = exec.ExecuteOrder(ctx, buyRequest("60", "0.50"))
		}(i)
	}
	wg.Wait()

	var filled, rejected int
	for _, err := range errs {
		if err == nil {
			filled++
		} else if errors.Is(err, ErrInsufficientFunds) {
			rejected++
		} else {
			t.Fatalf("unexpected err=%v", err)
		}
	}
	if filled != 1 || rejected != 1 {
		t.Fatalf("filled=%d rejected=%d want exactly one of each", filled, rejected)
	}
	profile, _ := store.ActiveProfile(ctx)
	if profile.CashBalance.IsNegative() {
		t.Fatalf("balance went negative: %s", profile.CashBalance)
	}
}
