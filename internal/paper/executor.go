package paper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyradar/internal/config"
)

// Notifier receives best-effort trade events after a ledger mutation has
// committed. Failures are logged, never propagated.
type Notifier interface {
	TradeExecuted(ctx context.Context, order Order)
}

// OrderRequest is one intended trade against the active profile.
// ExpectedPrice is optional: when set, the fill is rejected if the reference
// price has drifted from it beyond the configured slippage tolerance.
// SourceWallet attributes a copy order to the followed wallet whose rule
// produced it.
type OrderRequest struct {
	MarketID       string
	MarketTitle    string
	Side           Side
	Outcome        Outcome
	AmountUSD      decimal.Decimal
	ReferencePrice decimal.Decimal
	ExpectedPrice  decimal.Decimal
	Source         OrderSource
	SourceWallet   string
	Notes          string
}

// Executor turns an order intent into a validated, priced fill against the
// active profile. It holds no ledger state of its own; the transition is
// applied through the store's single mutation path.
type Executor struct {
	Store    *Store
	Logger   *zap.Logger
	Notifier Notifier
	Config   config.PaperConfig
}

func NewExecutor(store *Store, logger *zap.Logger, notifier Notifier, cfg config.PaperConfig) *Executor {
	return &Executor{Store: store, Logger: logger, Notifier: notifier, Config: cfg}
}

// sharesEpsilon absorbs division dust when a sell closes a position.
var sharesEpsilon = decimal.New(1, -6)

// ExecuteOrder validates the request, computes the simulated fill and applies
// it. Rejected orders are returned with StatusRejected alongside the typed
// error and are not recorded in history.
func (e *Executor) ExecuteOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if e == nil || e.Store == nil {
		return nil, fmt.Errorf("%w: executor not configured", ErrValidation)
	}
	if req.Source == "" {
		req.Source = SourceManual
	}

	if err := e.validate(req); err != nil {
		rejected := e.rejectedOrder(req, err)
		return &rejected, err
	}

	var filled Order
	err := e.Store.MutateActive(ctx, func(profile *Profile) error {
		order, err := applyFill(profile, req, e.Config.MaxOpenPositions)
		if err != nil {
			return err
		}
		filled = order
		return nil
	})
	if err != nil {
		rejected := e.rejectedOrder(req, err)
		return &rejected, err
	}

	if e.Logger != nil {
		e.Logger.Info("order filled",
			zap.String("order_id", filled.ID),
			zap.String("market_id", filled.MarketID),
			zap.String("side", string(filled.Side)),
			zap.String("outcome", string(filled.Outcome)),
			zap.String("amount_usd", filled.RequestedAmount.String()),
			zap.String("price", filled.AvgPrice.String()),
			zap.String("source", string(filled.Source)),
		)
	}
	if e.Notifier != nil {
		// Fire-and-forget after commit; the sink applies its own timeout.
		go e.Notifier.TradeExecuted(context.WithoutCancel(ctx), filled)
	}
	return &filled, nil
}

func (e *Executor) validate(req OrderRequest) error {
	if req.MarketID == "" {
		return fmt.Errorf("%w: market id is required", ErrValidation)
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return fmt.Errorf("%w: side must be BUY or SELL", ErrValidation)
	}
	if req.Outcome != OutcomeYes && req.Outcome != OutcomeNo {
		return fmt.Errorf("%w: outcome must be YES or NO", ErrValidation)
	}
	if !req.AmountUSD.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	one := decimal.NewFromInt(1)
	if !req.ReferencePrice.IsPositive() || req.ReferencePrice.GreaterThanOrEqual(one) {
		return fmt.Errorf("%w: reference price must be in (0, 1)", ErrValidation)
	}
	if !req.ExpectedPrice.IsZero() && e.Config.SlippageTolerancePct > 0 {
		drift := req.ReferencePrice.Sub(req.ExpectedPrice).Abs()
		limit := req.ExpectedPrice.Mul(decimal.NewFromFloat(e.Config.SlippageTolerancePct)).
			Div(decimal.NewFromInt(100))
		if drift.GreaterThan(limit) {
			return fmt.Errorf("%w: price %s drifted beyond %.2f%% of expected %s",
				ErrValidation, req.ReferencePrice, e.Config.SlippageTolerancePct, req.ExpectedPrice)
		}
	}
	return nil
}

func (e *Executor) rejectedOrder(req OrderRequest, cause error) Order {
	return Order{
		ID:              uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		MarketID:        req.MarketID,
		MarketTitle:     req.MarketTitle,
		Side:            req.Side,
		Outcome:         req.Outcome,
		RequestedAmount: req.AmountUSD,
		AvgPrice:        req.ReferencePrice,
		Status:          StatusRejected,
		Source:          req.Source,
		Notes:           cause.Error(),
	}
}

// applyFill runs inside the store's critical section. Balance and position
// checks happen here so concurrent submissions cannot both authorize against
// the same pre-mutation state. maxOpen <= 0 disables the open-position cap.
func applyFill(profile *Profile, req OrderRequest, maxOpen int) (Order, error) {
	key := PositionKey(req.MarketID, req.Outcome)
	shares := req.AmountUSD.Div(req.ReferencePrice)

	order := Order{
		ID:              uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		MarketID:        req.MarketID,
		MarketTitle:     req.MarketTitle,
		Side:            req.Side,
		Outcome:         req.Outcome,
		RequestedAmount: req.AmountUSD,
		AvgPrice:        req.ReferencePrice,
		Shares:          shares,
		Status:          StatusFilled,
		Source:          req.Source,
		Notes:           req.Notes,
	}

	switch req.Side {
	case SideBuy:
		if req.AmountUSD.GreaterThan(profile.CashBalance) {
			return Order{}, fmt.Errorf("%w: balance %s, requested %s",
				ErrInsufficientFunds, profile.CashBalance, req.AmountUSD)
		}
		pos, exists := profile.Positions[key]
		if !exists {
			if maxOpen > 0 && len(profile.Positions) >= maxOpen {
				return Order{}, fmt.Errorf("%w: open position cap %d reached", ErrValidation, maxOpen)
			}
			pos = Position{
				MarketID:     req.MarketID,
				MarketTitle:  req.MarketTitle,
				Outcome:      req.Outcome,
				SourceWallet: req.SourceWallet,
				OpenedAt:     order.Timestamp,
			}
		}
		pos.Shares = pos.Shares.Add(shares)
		pos.Invested = pos.Invested.Add(req.AmountUSD)
		pos.AvgEntryPrice = pos.Invested.Div(pos.Shares)
		if pos.MarketTitle == "" {
			pos.MarketTitle = req.MarketTitle
		}
		profile.Positions[key] = pos
		profile.CashBalance = profile.CashBalance.Sub(req.AmountUSD)

	case SideSell:
		pos, exists := profile.Positions[key]
		if !exists {
			return Order{}, fmt.Errorf("%w: no position in %s", ErrInsufficientPosition, key)
		}
		if shares.GreaterThan(pos.Shares.Add(sharesEpsilon)) {
			return Order{}, fmt.Errorf("%w: holding %s shares, requested %s",
				ErrInsufficientPosition, pos.Shares, shares)
		}
		if shares.GreaterThan(pos.Shares) {
			shares = pos.Shares
			order.Shares = shares
		}

		proceeds := shares.Mul(req.ReferencePrice)
		costBasis := shares.Mul(pos.AvgEntryPrice)
		order.RealizedPnL = proceeds.Sub(costBasis)

		pos.Shares = pos.Shares.Sub(shares)
		pos.Invested = pos.Invested.Sub(costBasis)
		profile.CashBalance = profile.CashBalance.Add(proceeds)

		if pos.Shares.LessThanOrEqual(sharesEpsilon) {
			delete(profile.Positions, key)
		} else {
			profile.Positions[key] = pos
		}
	}

	profile.History = append(profile.History, order)
	return order, nil
}
