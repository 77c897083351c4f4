package paper

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors for the simulated ledger. Handlers map these onto HTTP
// statuses; everything else is treated as an internal failure.
var (
	ErrValidation           = errors.New("validation failed")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientPosition = errors.New("insufficient position")
	ErrNotFound             = errors.New("not found")
	ErrPersistence          = errors.New("persistence failed")
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Flip returns the opposite side of a binary market.
func (o Outcome) Flip() Outcome {
	if o == OutcomeYes {
		return OutcomeNo
	}
	return OutcomeYes
}

type OrderStatus string

const (
	StatusFilled   OrderStatus = "FILLED"
	StatusRejected OrderStatus = "REJECTED"
)

type OrderSource string

const (
	SourceManual OrderSource = "manual"
	SourceSignal OrderSource = "signal"
	SourceCopy   OrderSource = "copy"
)

type CopyMode string

const (
	CopyModeFixed       CopyMode = "fixed"
	CopyModePercentage  CopyMode = "percentage"
	CopyModeSmartMirror CopyMode = "smart_mirror"
)

// DefaultProfileID is the profile every installation starts with. It cannot
// be deleted so the ledger always holds at least one account.
const DefaultProfileID = "default"

// Position is one long-only holding in a (market, outcome) pair.
// AvgEntryPrice is the cost-basis-weighted entry and always equals
// Invested / Shares while the position is open. SourceWallet records the
// followed wallet whose copy rule opened the position; empty for positions
// opened manually or by signals.
type Position struct {
	MarketID      string          `json:"marketId"`
	MarketTitle   string          `json:"marketTitle,omitempty"`
	Outcome       Outcome         `json:"outcome"`
	Shares        decimal.Decimal `json:"shares"`
	AvgEntryPrice decimal.Decimal `json:"avgEntryPrice"`
	Invested      decimal.Decimal `json:"invested"`
	SourceWallet  string          `json:"sourceWallet,omitempty"`
	OpenedAt      time.Time       `json:"openedAt"`
}

// PositionKey is the map key for Profile.Positions.
func PositionKey(marketID string, outcome Outcome) string {
	return fmt.Sprintf("%s-%s", marketID, outcome)
}

// ValuedPosition is a Position priced against a caller-supplied current
// price. Never persisted; derived at read time to avoid staleness.
type ValuedPosition struct {
	Position
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	CurrentValue decimal.Decimal `json:"currentValue"`
	PnL          decimal.Decimal `json:"pnl"`
	PnLPercent   decimal.Decimal `json:"pnlPercent"`
}

// Valued prices the position at the given current price.
func (p Position) Valued(price decimal.Decimal) ValuedPosition {
	value := p.Shares.Mul(price)
	pnl := value.Sub(p.Invested)
	pct := decimal.Zero
	if p.Invested.IsPositive() {
		pct = pnl.Div(p.Invested).Mul(decimal.NewFromInt(100))
	}
	return ValuedPosition{
		Position:     p,
		CurrentPrice: price,
		CurrentValue: value,
		PnL:          pnl,
		PnLPercent:   pct,
	}
}

// CopySetting is one follow rule against an external wallet. Exactly one
// setting exists per wallet address per profile.
type CopySetting struct {
	WalletAddress    string          `json:"walletAddress"`
	Enabled          bool            `json:"enabled"`
	Label            string          `json:"label,omitempty"`
	CopyMode         CopyMode        `json:"copyMode"`
	FixedAmount      decimal.Decimal `json:"fixedAmount"`
	PercentageAmount decimal.Decimal `json:"percentageAmount"`
	MaxCap           decimal.Decimal `json:"maxCap"`
	StopLoss         decimal.Decimal `json:"stopLoss"`
	Inverse          bool            `json:"inverse"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// CopySettingPatch carries partial-update fields for UpsertCopySetting.
// Nil fields keep their prior values (or the first-time defaults).
type CopySettingPatch struct {
	Enabled          *bool            `json:"enabled"`
	Label            *string          `json:"label"`
	CopyMode         *CopyMode        `json:"copyMode"`
	FixedAmount      *decimal.Decimal `json:"fixedAmount"`
	PercentageAmount *decimal.Decimal `json:"percentageAmount"`
	MaxCap           *decimal.Decimal `json:"maxCap"`
	StopLoss         *decimal.Decimal `json:"stopLoss"`
	Inverse          *bool            `json:"inverse"`
}

// Order is an immutable fill record. Created by the executor at fill time,
// appended to the profile history, never mutated afterward.
type Order struct {
	ID              string          `json:"id"`
	Timestamp       time.Time       `json:"timestamp"`
	MarketID        string          `json:"marketId"`
	MarketTitle     string          `json:"marketTitle,omitempty"`
	Side            Side            `json:"side"`
	Outcome         Outcome         `json:"outcome"`
	RequestedAmount decimal.Decimal `json:"requestedAmount"`
	AvgPrice        decimal.Decimal `json:"avgPrice"`
	Shares          decimal.Decimal `json:"shares"`
	Status          OrderStatus     `json:"status"`
	Source          OrderSource     `json:"source"`
	RealizedPnL     decimal.Decimal `json:"realizedPnl"`
	Notes           string          `json:"notes,omitempty"`
}

// ProfileSettings are per-account knobs applied by the automated paths.
type ProfileSettings struct {
	RiskPerTrade   decimal.Decimal `json:"riskPerTrade"`
	AutoStopLoss   decimal.Decimal `json:"autoStopLoss"`
	AutoTakeProfit decimal.Decimal `json:"autoTakeProfit"`
}

// Profile is one simulated trading account.
type Profile struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	CreatedAt    time.Time              `json:"createdAt"`
	CashBalance  decimal.Decimal        `json:"cashBalance"`
	Positions    map[string]Position    `json:"positions"`
	CopySettings map[string]CopySetting `json:"copySettings"`
	History      []Order                `json:"history"`
	Settings     ProfileSettings        `json:"settings"`
}

// Ledger is the full durable state: every profile plus the active pointer.
type Ledger struct {
	ActiveProfileID string              `json:"activeProfileId"`
	Profiles        map[string]*Profile `json:"profiles"`
}

// Portfolio is the active profile valued against caller-supplied prices.
type Portfolio struct {
	ProfileID      string           `json:"profileId"`
	CashBalance    decimal.Decimal  `json:"cashBalance"`
	Positions      []ValuedPosition `json:"positions"`
	PositionsValue decimal.Decimal  `json:"positionsValue"`
	UnrealizedPnL  decimal.Decimal  `json:"unrealizedPnl"`
	TotalEquity    decimal.Decimal  `json:"totalEquity"`
}
