package copytrade

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyradar/internal/models"
	"polyradar/internal/paper"
	"polyradar/internal/repository"
)

// PortfolioRecorder takes periodic equity snapshots of the active profile
// so reporting endpoints can chart equity over time.
type PortfolioRecorder struct {
	Store  *paper.Store
	Repo   repository.Repository
	Prices PriceSource
	Logger *zap.Logger
}

func (r *PortfolioRecorder) RunOnce(ctx context.Context) error {
	if r == nil || r.Store == nil || r.Repo == nil {
		return nil
	}
	profile, err := r.Store.ActiveProfile(ctx)
	if err != nil {
		return err
	}

	prices := map[string]decimal.Decimal{}
	if r.Prices != nil {
		for key, pos := range profile.Positions {
			price, err := r.Prices.CurrentPrice(ctx, pos.MarketID, pos.Outcome)
			if err != nil || !price.IsPositive() {
				continue
			}
			prices[key] = price
		}
	}

	portfolio, err := r.Store.Portfolio(ctx, prices)
	if err != nil {
		return err
	}
	row := &models.PortfolioSnapshot{
		ProfileID:      portfolio.ProfileID,
		SnapshotAt:     time.Now().UTC(),
		OpenPositions:  len(portfolio.Positions),
		CashBalance:    portfolio.CashBalance,
		PositionsValue: portfolio.PositionsValue,
		UnrealizedPnL:  portfolio.UnrealizedPnL,
		TotalEquity:    portfolio.TotalEquity,
	}
	if err := r.Repo.InsertPortfolioSnapshot(ctx, row); err != nil {
		return err
	}
	if r.Logger != nil {
		r.Logger.Debug("portfolio snapshot recorded",
			zap.String("profile_id", row.ProfileID),
			zap.String("total_equity", row.TotalEquity.String()),
		)
	}
	return nil
}
