package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletTrade is one observed trade by an external (followed) wallet.
// RealizedPnL is nullable: it is only known once the wallet's position is
// closed or the market settles; metric computations skip rows without it.
type WalletTrade struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	WalletAddress string `gorm:"type:varchar(64);not null;index"`
	MarketID      string `gorm:"type:varchar(100);not null;index"`
	MarketTitle   string `gorm:"type:text"`

	Side    string `gorm:"type:varchar(10);not null"`
	Outcome string `gorm:"type:varchar(10);not null"`

	AmountUSD   decimal.Decimal  `gorm:"column:amount_usd;type:numeric(30,10);not null"`
	Price       decimal.Decimal  `gorm:"type:numeric(20,10);not null"`
	RealizedPnL *decimal.Decimal `gorm:"column:realized_pnl;type:numeric(30,10)"`

	Category string `gorm:"type:varchar(50);index"`

	TradedAt  time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (WalletTrade) TableName() string {
	return "wallet_trades"
}
