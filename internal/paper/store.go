package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"polyradar/internal/config"
	"polyradar/internal/models"
	"polyradar/internal/repository"
)

// Store owns the simulated-trading ledger. Every mutation runs as one
// critical section: copy the in-memory state, apply the transition, persist
// the snapshot, then commit the copy. Concurrent submissions from different
// triggers (manual, copy feed, stop-loss sweep) serialize on the mutex, so
// two BUYs can never both read the same pre-mutation balance.
type Store struct {
	Repo   repository.LedgerRepository
	Logger *zap.Logger
	Config config.PaperConfig

	mu      sync.Mutex
	ledger  *Ledger
	version uint64
}

func NewStore(repo repository.LedgerRepository, logger *zap.Logger, cfg config.PaperConfig) *Store {
	return &Store{Repo: repo, Logger: logger, Config: cfg}
}

// ensureLoaded loads the ledger from the snapshot row, initializing a fresh
// ledger with the default profile (and persisting it immediately) when no
// row exists yet. Callers must hold s.mu.
func (s *Store) ensureLoaded(ctx context.Context) error {
	if s.ledger != nil {
		return nil
	}
	if s.Repo != nil {
		row, err := s.Repo.GetLedgerSnapshot(ctx)
		if err != nil {
			return fmt.Errorf("%w: load snapshot: %v", ErrPersistence, err)
		}
		if row != nil {
			var ledger Ledger
			if err := json.Unmarshal(row.State, &ledger); err != nil {
				return fmt.Errorf("%w: decode snapshot: %v", ErrPersistence, err)
			}
			normalizeLedger(&ledger)
			s.ledger = &ledger
			s.version = row.Version
			return nil
		}
	}

	ledger := &Ledger{
		ActiveProfileID: DefaultProfileID,
		Profiles: map[string]*Profile{
			DefaultProfileID: s.newProfile(DefaultProfileID, "Default", s.startingBalance()),
		},
	}
	if err := s.persist(ctx, ledger); err != nil {
		return err
	}
	s.ledger = ledger
	return nil
}

func normalizeLedger(ledger *Ledger) {
	if ledger.Profiles == nil {
		ledger.Profiles = map[string]*Profile{}
	}
	for _, p := range ledger.Profiles {
		if p.Positions == nil {
			p.Positions = map[string]Position{}
		}
		if p.CopySettings == nil {
			p.CopySettings = map[string]CopySetting{}
		}
	}
}

func (s *Store) newProfile(id, name string, balance decimal.Decimal) *Profile {
	return &Profile{
		ID:           id,
		Name:         name,
		CreatedAt:    time.Now().UTC(),
		CashBalance:  balance,
		Positions:    map[string]Position{},
		CopySettings: map[string]CopySetting{},
		History:      []Order{},
	}
}

func (s *Store) startingBalance() decimal.Decimal {
	if s.Config.StartingBalance > 0 {
		return decimal.NewFromFloat(s.Config.StartingBalance)
	}
	return decimal.NewFromInt(1000)
}

// persist writes the ledger snapshot. A persistence failure leaves the
// in-memory state untouched; the caller must not commit the working copy.
func (s *Store) persist(ctx context.Context, ledger *Ledger) error {
	if s.Repo == nil {
		return nil
	}
	raw, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", ErrPersistence, err)
	}
	row := &models.LedgerSnapshot{Version: s.version + 1, State: raw}
	if err := s.Repo.SaveLedgerSnapshot(ctx, row); err != nil {
		return fmt.Errorf("%w: save snapshot: %v", ErrPersistence, err)
	}
	s.version++
	return nil
}

// cloneProfile deep-copies one profile so callers never hold a pointer into
// store-owned state.
func cloneProfile(src *Profile) (*Profile, error) {
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("clone profile: %w", err)
	}
	var dst Profile
	if err := json.Unmarshal(raw, &dst); err != nil {
		return nil, fmt.Errorf("clone profile: %w", err)
	}
	if dst.Positions == nil {
		dst.Positions = map[string]Position{}
	}
	if dst.CopySettings == nil {
		dst.CopySettings = map[string]CopySetting{}
	}
	return &dst, nil
}

// cloneLedger deep-copies the ledger via a JSON round-trip so a mutation can
// be abandoned wholesale when validation or persistence fails.
func cloneLedger(src *Ledger) (*Ledger, error) {
	raw, err := json.Marshal(src)
	if err != nil {
		return nil, fmt.Errorf("clone ledger: %w", err)
	}
	var dst Ledger
	if err := json.Unmarshal(raw, &dst); err != nil {
		return nil, fmt.Errorf("clone ledger: %w", err)
	}
	normalizeLedger(&dst)
	return &dst, nil
}

// Mutate runs fn against a working copy of the ledger inside the critical
// section, persists the result, and commits the copy only if both succeed.
// This is the single mutation path; nothing else writes ledger state.
func (s *Store) Mutate(ctx context.Context, fn func(ledger *Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	working, err := cloneLedger(s.ledger)
	if err != nil {
		return err
	}
	if err := fn(working); err != nil {
		return err
	}
	if err := s.persist(ctx, working); err != nil {
		return err
	}
	s.ledger = working
	return nil
}

// MutateActive is Mutate scoped to the active profile.
func (s *Store) MutateActive(ctx context.Context, fn func(profile *Profile) error) error {
	return s.Mutate(ctx, func(ledger *Ledger) error {
		profile, ok := ledger.Profiles[ledger.ActiveProfileID]
		if !ok {
			return fmt.Errorf("%w: active profile %q", ErrNotFound, ledger.ActiveProfileID)
		}
		return fn(profile)
	})
}

// GetAllProfiles returns a deep copy of the full ledger. The first call on a
// fresh installation initializes and persists the default profile.
func (s *Store) GetAllProfiles(ctx context.Context) (*Ledger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	return cloneLedger(s.ledger)
}

// ActiveProfile returns a deep copy of the active profile.
func (s *Store) ActiveProfile(ctx context.Context) (*Profile, error) {
	ledger, err := s.GetAllProfiles(ctx)
	if err != nil {
		return nil, err
	}
	profile, ok := ledger.Profiles[ledger.ActiveProfileID]
	if !ok {
		return nil, fmt.Errorf("%w: active profile %q", ErrNotFound, ledger.ActiveProfileID)
	}
	return profile, nil
}

// CreateProfile adds a new named profile. An empty name is a validation
// failure; a zero initial balance falls back to the configured default.
func (s *Store) CreateProfile(ctx context.Context, name string, initialBalance decimal.Decimal, settings ProfileSettings) (*Profile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: profile name is required", ErrValidation)
	}
	if initialBalance.IsNegative() {
		return nil, fmt.Errorf("%w: initial balance must not be negative", ErrValidation)
	}
	if initialBalance.IsZero() {
		initialBalance = s.startingBalance()
	}

	var created *Profile
	err := s.Mutate(ctx, func(ledger *Ledger) error {
		id := uuid.NewString()
		profile := s.newProfile(id, name, initialBalance)
		profile.Settings = settings
		ledger.Profiles[id] = profile
		copied, err := cloneProfile(profile)
		if err != nil {
			return err
		}
		created = copied
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// SetActiveProfile switches the active pointer.
func (s *Store) SetActiveProfile(ctx context.Context, id string) error {
	return s.Mutate(ctx, func(ledger *Ledger) error {
		if _, ok := ledger.Profiles[id]; !ok {
			return fmt.Errorf("%w: profile %q", ErrNotFound, id)
		}
		ledger.ActiveProfileID = id
		return nil
	})
}

// DeleteProfile removes a profile. The default profile is protected so the
// ledger never ends up empty; deleting the active profile falls back to the
// default pointer.
func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	if id == DefaultProfileID {
		return fmt.Errorf("%w: the default profile cannot be deleted", ErrValidation)
	}
	return s.Mutate(ctx, func(ledger *Ledger) error {
		if _, ok := ledger.Profiles[id]; !ok {
			return fmt.Errorf("%w: profile %q", ErrNotFound, id)
		}
		delete(ledger.Profiles, id)
		if ledger.ActiveProfileID == id {
			ledger.ActiveProfileID = DefaultProfileID
		}
		return nil
	})
}

// UpsertCopySetting creates or patches the follow rule for a wallet on the
// given profile. Unset patch fields keep prior values; the first save of a
// wallet applies the documented defaults.
func (s *Store) UpsertCopySetting(ctx context.Context, profileID, walletAddress string, patch CopySettingPatch) (*CopySetting, error) {
	walletAddress = strings.ToLower(strings.TrimSpace(walletAddress))
	if walletAddress == "" {
		return nil, fmt.Errorf("%w: wallet address is required", ErrValidation)
	}

	var saved CopySetting
	err := s.Mutate(ctx, func(ledger *Ledger) error {
		if profileID == "" {
			profileID = ledger.ActiveProfileID
		}
		profile, ok := ledger.Profiles[profileID]
		if !ok {
			return fmt.Errorf("%w: profile %q", ErrNotFound, profileID)
		}
		setting, exists := profile.CopySettings[walletAddress]
		if !exists {
			setting = CopySetting{
				WalletAddress: walletAddress,
				Enabled:       true,
				CopyMode:      CopyModeFixed,
				FixedAmount:   s.defaultFixedAmount(),
				CreatedAt:     time.Now().UTC(),
			}
		}
		applyCopyPatch(&setting, patch)
		profile.CopySettings[walletAddress] = setting
		saved = setting
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Store) defaultFixedAmount() decimal.Decimal {
	if s.Config.DefaultFixedAmount > 0 {
		return decimal.NewFromFloat(s.Config.DefaultFixedAmount)
	}
	return decimal.NewFromInt(10)
}

func applyCopyPatch(setting *CopySetting, patch CopySettingPatch) {
	if patch.Enabled != nil {
		setting.Enabled = *patch.Enabled
	}
	if patch.Label != nil {
		setting.Label = *patch.Label
	}
	if patch.CopyMode != nil {
		setting.CopyMode = *patch.CopyMode
	}
	if patch.FixedAmount != nil {
		setting.FixedAmount = *patch.FixedAmount
	}
	if patch.PercentageAmount != nil {
		setting.PercentageAmount = *patch.PercentageAmount
	}
	if patch.MaxCap != nil {
		setting.MaxCap = *patch.MaxCap
	}
	if patch.StopLoss != nil {
		setting.StopLoss = *patch.StopLoss
	}
	if patch.Inverse != nil {
		setting.Inverse = *patch.Inverse
	}
}

// RemoveCopySetting drops the follow rule for a wallet.
func (s *Store) RemoveCopySetting(ctx context.Context, profileID, walletAddress string) error {
	walletAddress = strings.ToLower(strings.TrimSpace(walletAddress))
	return s.Mutate(ctx, func(ledger *Ledger) error {
		if profileID == "" {
			profileID = ledger.ActiveProfileID
		}
		profile, ok := ledger.Profiles[profileID]
		if !ok {
			return fmt.Errorf("%w: profile %q", ErrNotFound, profileID)
		}
		if _, ok := profile.CopySettings[walletAddress]; !ok {
			return fmt.Errorf("%w: copy setting for %q", ErrNotFound, walletAddress)
		}
		delete(profile.CopySettings, walletAddress)
		return nil
	})
}

// Deposit adds cash to the active profile.
func (s *Store) Deposit(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: deposit amount must be positive", ErrValidation)
	}
	return s.MutateActive(ctx, func(profile *Profile) error {
		profile.CashBalance = profile.CashBalance.Add(amount)
		return nil
	})
}

// Withdraw removes cash from the active profile, never below zero.
func (s *Store) Withdraw(ctx context.Context, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: withdraw amount must be positive", ErrValidation)
	}
	return s.MutateActive(ctx, func(profile *Profile) error {
		if amount.GreaterThan(profile.CashBalance) {
			return fmt.Errorf("%w: balance %s, requested %s",
				ErrInsufficientFunds, profile.CashBalance, amount)
		}
		profile.CashBalance = profile.CashBalance.Sub(amount)
		return nil
	})
}

// Portfolio values the active profile's positions against the supplied
// prices, keyed like Positions. Positions without a price entry fall back to
// their entry price (zero unrealized PnL).
func (s *Store) Portfolio(ctx context.Context, prices map[string]decimal.Decimal) (*Portfolio, error) {
	profile, err := s.ActiveProfile(ctx)
	if err != nil {
		return nil, err
	}

	out := &Portfolio{
		ProfileID:   profile.ID,
		CashBalance: profile.CashBalance,
	}
	for key, pos := range profile.Positions {
		price, ok := prices[key]
		if !ok || !price.IsPositive() {
			price = pos.AvgEntryPrice
		}
		valued := pos.Valued(price)
		out.Positions = append(out.Positions, valued)
		out.PositionsValue = out.PositionsValue.Add(valued.CurrentValue)
		out.UnrealizedPnL = out.UnrealizedPnL.Add(valued.PnL)
	}
	out.TotalEquity = out.CashBalance.Add(out.PositionsValue)
	return out, nil
}
