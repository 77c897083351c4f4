package paper

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"polyradar/internal/config"
	"polyradar/internal/models"
)

type memRepo struct {
	row     *models.LedgerSnapshot
	saves   int
	failSet bool
}

func (r *memRepo) GetLedgerSnapshot(ctx context.Context) (*models.LedgerSnapshot, error) {
	if r.row == nil {
		return nil, nil
	}
	copied := *r.row
	return &copied, nil
}

func (r *memRepo) SaveLedgerSnapshot(ctx context.Context, item *models.LedgerSnapshot) error {
	if r.failSet {
		return errors.New("disk full")
	}
	r.saves++
	copied := *item
	r.row = &copied
	return nil
}

func newTestStore(t *testing.T) (*Store, *memRepo) {
	t.Helper()
	repo := &memRepo{}
	store := NewStore(repo, nil, config.PaperConfig{StartingBalance: 1000, DefaultFixedAmount: 10})
	return store, repo
}

func TestGetAllProfiles_InitializesDefault(t *testing.T) {
	store, repo := newTestStore(t)
	ledger, err := store.GetAllProfiles(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if ledger.ActiveProfileID != DefaultProfileID {
		t.Fatalf("active=%q want %q", ledger.ActiveProfileID, DefaultProfileID)
	}
	p := ledger.Profiles[DefaultProfileID]
	if p == nil {
		t.Fatalf("default profile missing")
	}
	if p.CashBalance.Cmp(decimal.NewFromInt(1000)) != 0 {
		t.Fatalf("balance=%s want 1000", p.CashBalance)
	}
	if repo.saves != 1 {
		t.Fatalf("saves=%d want 1 (initial state persisted)", repo.saves)
	}
}

func TestGetAllProfiles_ReadIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	first, err := store.GetAllProfiles(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	second, err := store.GetAllProfiles(context.Background())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if first.ActiveProfileID != second.ActiveProfileID {
		t.Fatalf("active changed between reads: %q vs %q", first.ActiveProfileID, second.ActiveProfileID)
	}
	if len(first.Profiles) != len(second.Profiles) {
		t.Fatalf("profile count changed between reads")
	}
}

func TestCreateProfile(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := store.CreateProfile(ctx, "", decimal.Zero, ProfileSettings{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty name err=%v want ErrValidation", err)
	}

	p, err := store.CreateProfile(ctx, "aggressive", decimal.NewFromInt(500), ProfileSettings{})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if p.CashBalance.Cmp(decimal.NewFromInt(500)) != 0 {
		t.Fatalf("balance=%s want 500", p.CashBalance)
	}

	// Zero balance falls back to the configured starting balance.
	p2, err := store.CreateProfile(ctx, "defaulted", decimal.Zero, ProfileSettings{})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if p2.CashBalance.Cmp(decimal.NewFromInt(1000)) != 0 {
		t.Fatalf("balance=%s want 1000", p2.CashBalance)
	}
}

func TestCreateProfile_ReturnsDetachedCopy(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateProfile(ctx, "isolated", decimal.NewFromInt(500), ProfileSettings{})
	if err != nil {
		t.Fatalf("err=%v", err)
	}

	// Writes through the returned pointer must not reach store state.
	created.CashBalance = decimal.Zero
	created.Positions["m1-YES"] = Position{MarketID: "m1", Outcome: OutcomeYes}

	ledger, _ := store.GetAllProfiles(ctx)
	stored := ledger.Profiles[created.ID]
	if stored == nil {
		t.Fatalf("created profile missing")
	}
	if stored.CashBalance.Cmp(decimal.NewFromInt(500)) != 0 {
		t.Fatalf("balance=%s mutated through returned pointer", stored.CashBalance)
	}
	if len(stored.Positions) != 0 {
		t.Fatalf("positions mutated through returned pointer")
	}
}

func TestSetActiveProfile(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.SetActiveProfile(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}

	p, err := store.CreateProfile(ctx, "second", decimal.NewFromInt(100), ProfileSettings{})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := store.SetActiveProfile(ctx, p.ID); err != nil {
		t.Fatalf("err=%v", err)
	}
	ledger, _ := store.GetAllProfiles(ctx)
	if ledger.ActiveProfileID != p.ID {
		t.Fatalf("active=%q want %q", ledger.ActiveProfileID, p.ID)
	}
}

func TestDeleteProfile_DefaultProtected(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.DeleteProfile(ctx, DefaultProfileID); !errors.Is(err, ErrValidation) {
		t.Fatalf("err=%v want ErrValidation", err)
	}
	ledger, _ := store.GetAllProfiles(ctx)
	if _, ok := ledger.Profiles[DefaultProfileID]; !ok {
		t.Fatalf("default profile was removed")
	}
}

func TestDeleteProfile_ActiveFallsBack(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	p, err := store.CreateProfile(ctx, "temp", decimal.NewFromInt(100), ProfileSettings{})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := store.SetActiveProfile(ctx, p.ID); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := store.DeleteProfile(ctx, p.ID); err != nil {
		t.Fatalf("err=%v", err)
	}
	ledger, _ := store.GetAllProfiles(ctx)
	if ledger.ActiveProfileID != DefaultProfileID {
		t.Fatalf("active=%q want default fallback", ledger.ActiveProfileID)
	}
	if err := store.DeleteProfile(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err=%v want ErrNotFound", err)
	}
}

func TestUpsertCopySetting_DefaultsAndPatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	s, err := store.UpsertCopySetting(ctx, "", "0xABC", CopySettingPatch{})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if s.WalletAddress != "0xabc" {
		t.Fatalf("address=%q want lowercased", s.WalletAddress)
	}
	if !s.Enabled || s.CopyMode != CopyModeFixed || s.FixedAmount.Cmp(decimal.NewFromInt(10)) != 0 {
		t.Fatalf("first-save defaults wrong: %+v", s)
	}
	if s.Inverse {
		t.Fatalf("inverse should default to false")
	}

	inverse := true
	mode := CopyModeSmartMirror
	updated, err := store.UpsertCopySetting(ctx, "", "0xabc", CopySettingPatch{
		Inverse:  &inverse,
		CopyMode: &mode,
	})
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !updated.Inverse || updated.CopyMode != CopyModeSmartMirror {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.FixedAmount.Cmp(decimal.NewFromInt(10)) != 0 {
		t.Fatalf("unpatched field changed: %s", updated.FixedAmount)
	}

	profile, _ := store.ActiveProfile(ctx)
	if len(profile.CopySettings) != 1 {
		t.Fatalf("settings=%d want 1 (updated in place)", len(profile.CopySettings))
	}
}

func TestRemoveCopySetting(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.RemoveCopySetting(ctx, "", "0xabc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
	if _, err := store.UpsertCopySetting(ctx, "", "0xabc", CopySettingPatch{}); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := store.RemoveCopySetting(ctx, "", "0xabc"); err != nil {
		t.Fatalf("err=%v", err)
	}
	profile, _ := store.ActiveProfile(ctx)
	if len(profile.CopySettings) != 0 {
		t.Fatalf("setting not removed")
	}
}

func TestDepositWithdraw(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Deposit(ctx, decimal.NewFromInt(250)); err != nil {
		t.Fatalf("err=%v", err)
	}
	if err := store.Withdraw(ctx, decimal.NewFromInt(2000)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}
	if err := store.Withdraw(ctx, decimal.NewFromInt(1250)); err != nil {
		t.Fatalf("err=%v", err)
	}
	profile, _ := store.ActiveProfile(ctx)
	if !profile.CashBalance.IsZero() {
		t.Fatalf("balance=%s want 0", profile.CashBalance)
	}
}

func TestMutate_PersistenceFailureLeavesState(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetAllProfiles(ctx); err != nil {
		t.Fatalf("err=%v", err)
	}
	repo.failSet = true
	err := store.Deposit(ctx, decimal.NewFromInt(100))
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err=%v want ErrPersistence", err)
	}
	repo.failSet = false
	profile, _ := store.ActiveProfile(ctx)
	if profile.CashBalance.Cmp(decimal.NewFromInt(1000)) != 0 {
		t.Fatalf("balance=%s want 1000 (mutation must not commit)", profile.CashBalance)
	}
}

func TestEnsureLoaded_ReadsExistingSnapshot(t *testing.T) {
	store, repo := newTestStore(t)
	ctx := context.Background()

	if err := store.Deposit(ctx, decimal.NewFromInt(500)); err != nil {
		t.Fatalf("err=%v", err)
	}

	// A fresh store instance over the same repo must see the same state.
	second := NewStore(repo, nil, config.PaperConfig{StartingBalance: 1000})
	profile, err := second.ActiveProfile(ctx)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if profile.CashBalance.Cmp(decimal.NewFromInt(1500)) != 0 {
		t.Fatalf("balance=%s want 1500", profile.CashBalance)
	}
}
