package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"polyradar/internal/models"
	"polyradar/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// --- ledger snapshot --------------------------------------------------------

const ledgerSnapshotID = 1

func (s *Store) GetLedgerSnapshot(ctx context.Context) (*models.LedgerSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.LedgerSnapshot
	err := s.db.WithContext(ctx).First(&item, "id = ?", ledgerSnapshotID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveLedgerSnapshot(ctx context.Context, item *models.LedgerSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.ID = ledgerSnapshotID
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "state", "updated_at"}),
	}).Create(item).Error
}

// --- observed wallet trades -------------------------------------------------

func (s *Store) InsertWalletTrade(ctx context.Context, item *models.WalletTrade) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListWalletTrades(ctx context.Context, params repository.ListWalletTradesParams) ([]models.WalletTrade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.walletTradeQuery(ctx, params)
	query = applyOrder(query, params.OrderBy, params.Asc, "traded_at")
	limit := normalizeLimit(params.Limit, 200)
	offset := normalizeOffset(params.Offset)
	var items []models.WalletTrade
	if err := query.Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountWalletTrades(ctx context.Context, params repository.ListWalletTradesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	if err := s.walletTradeQuery(ctx, params).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (s *Store) walletTradeQuery(ctx context.Context, params repository.ListWalletTradesParams) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&models.WalletTrade{})
	if params.Address != nil && strings.TrimSpace(*params.Address) != "" {
		query = query.Where("wallet_address = ?", strings.TrimSpace(*params.Address))
	}
	if params.MarketID != nil && strings.TrimSpace(*params.MarketID) != "" {
		query = query.Where("market_id = ?", strings.TrimSpace(*params.MarketID))
	}
	if params.Outcome != nil && strings.TrimSpace(*params.Outcome) != "" {
		query = query.Where("outcome = ?", strings.TrimSpace(*params.Outcome))
	}
	if params.Side != nil && strings.TrimSpace(*params.Side) != "" {
		query = query.Where("side = ?", strings.TrimSpace(*params.Side))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("traded_at >= ?", *params.Since)
	}
	if params.Settled != nil {
		if *params.Settled {
			query = query.Where("realized_pnl IS NOT NULL")
		} else {
			query = query.Where("realized_pnl IS NULL")
		}
	}
	return query
}

func (s *Store) ListWalletAddresses(ctx context.Context, minTrades int) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if minTrades < 1 {
		minTrades = 1
	}
	var addrs []string
	err := s.db.WithContext(ctx).
		Model(&models.WalletTrade{}).
		Select("wallet_address").
		Group("wallet_address").
		Having("count(*) >= ?", minTrades).
		Order("wallet_address asc").
		Pluck("wallet_address", &addrs).Error
	if err != nil {
		return nil, err
	}
	return addrs, nil
}

// --- portfolio snapshots ----------------------------------------------------

func (s *Store) InsertPortfolioSnapshot(ctx context.Context, item *models.PortfolioSnapshot) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListPortfolioSnapshots(ctx context.Context, params repository.ListPortfolioSnapshotsParams) ([]models.PortfolioSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.PortfolioSnapshot{})
	if params.ProfileID != nil && strings.TrimSpace(*params.ProfileID) != "" {
		query = query.Where("profile_id = ?", strings.TrimSpace(*params.ProfileID))
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("snapshot_at >= ?", *params.Since)
	}
	if params.Until != nil && !params.Until.IsZero() {
		query = query.Where("snapshot_at <= ?", *params.Until)
	}
	limit := normalizeLimit(params.Limit, 500)
	offset := normalizeOffset(params.Offset)
	var items []models.PortfolioSnapshot
	if err := query.Order("snapshot_at desc").Limit(limit).Offset(offset).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- helpers ----------------------------------------------------------------

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 5000 {
		return 5000
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	col := strings.TrimSpace(orderBy)
	if col == "" {
		col = fallback
	}
	dir := "desc"
	if asc != nil && *asc {
		dir = "asc"
	}
	return query.Order(col + " " + dir)
}
