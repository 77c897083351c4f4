package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PortfolioSnapshot struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	ProfileID  string    `gorm:"type:varchar(64);not null;index"`
	SnapshotAt time.Time `gorm:"type:timestamptz;not null;index"`

	OpenPositions int `gorm:"not null"`

	CashBalance    decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	PositionsValue decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	UnrealizedPnL  decimal.Decimal `gorm:"column:unrealized_pnl;type:numeric(30,10);not null"`
	TotalEquity    decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (PortfolioSnapshot) TableName() string {
	return "portfolio_snapshots"
}
