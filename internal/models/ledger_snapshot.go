package models

import (
	"time"

	"gorm.io/datatypes"
)

// LedgerSnapshot is the single durable record for the paper-trading engine:
// the serialized {activeProfileId, profiles} state. Exactly one row exists per
// installation; every ledger mutation rewrites it as its final step.
type LedgerSnapshot struct {
	ID      uint64         `gorm:"primaryKey"`
	Version uint64         `gorm:"not null;default:0"`
	State   datatypes.JSON `gorm:"type:jsonb;not null"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (LedgerSnapshot) TableName() string {
	return "ledger_snapshots"
}
