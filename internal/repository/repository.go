package repository

import (
	"context"
	"time"

	"polyradar/internal/models"
)

// LedgerRepository is the narrow durable surface the profile store depends
// on. Nothing else writes ledger snapshots.
type LedgerRepository interface {
	GetLedgerSnapshot(ctx context.Context) (*models.LedgerSnapshot, error)
	SaveLedgerSnapshot(ctx context.Context, item *models.LedgerSnapshot) error
}

// Repository is the full durable surface: ledger snapshot plus observed
// wallet activity and portfolio history for reporting.
type Repository interface {
	LedgerRepository

	InsertWalletTrade(ctx context.Context, item *models.WalletTrade) error
	ListWalletTrades(ctx context.Context, params ListWalletTradesParams) ([]models.WalletTrade, error)
	CountWalletTrades(ctx context.Context, params ListWalletTradesParams) (int64, error)
	ListWalletAddresses(ctx context.Context, minTrades int) ([]string, error)

	InsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error
	ListPortfolioSnapshots(ctx context.Context, params ListPortfolioSnapshotsParams) ([]models.PortfolioSnapshot, error)
}

type ListWalletTradesParams struct {
	Limit    int
	Offset   int
	Address  *string
	MarketID *string
	Outcome  *string
	Side     *string
	Since    *time.Time
	Settled  *bool
	OrderBy  string
	Asc      *bool
}

type ListPortfolioSnapshotsParams struct {
	Limit     int
	Offset    int
	ProfileID *string
	Since     *time.Time
	Until     *time.Time
}
