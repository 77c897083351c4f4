package db

import (
	"polyradar/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.LedgerSnapshot{},
		&models.WalletTrade{},
		&models.PortfolioSnapshot{},
	)
}
