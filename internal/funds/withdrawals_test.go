package funds

import (
	"context"
	"testing"
	"time"

	"referral_system/internal/apperr"
	"referral_system/internal/domain"
	"referral_system/internal/ledger"
	"referral_system/internal/settings"
	"referral_system/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *store.Memory, *settings.Cache) {
	t.Helper()
	mem := store.NewMemory()
	cache := settings.NewCache(mem.Settings(), nil)
	bank := ledger.New(mem, mem.Txs())
	svc := NewService(mem, mem.Withdrawals(), bank, cache)
	return svc, mem, cache
}

func seedUser(t *testing.T, mem *store.Memory, balance float64, createdAt time.Time) *domain.User {
	t.Helper()
	u := &domain.User{Username: "alice", IsActive: true, Balance: balance, CreatedAt: createdAt}
	require.NoError(t, mem.Create(u))
	return u
}

func TestWithdrawalBlockedInsideLockPeriod(t *testing.T) {
	svc, mem, _ := newTestService(t)
	now := time.Now()
	svc.now = func() time.Time { return now }
	// Registered 10 days ago with the default 30-day lock on 500: of the 600
	// balance only 100 is withdrawable.
	user := seedUser(t, mem, 600, now.AddDate(0, 0, -10))

	_, err := svc.RequestWithdrawal(context.Background(), user.ID, 200, "addr-1")
	var locked *apperr.LockedBalanceError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, 500.0, locked.LockedAmount)
	assert.Equal(t, 100.0, locked.AvailableBalance)
	assert.Equal(t, 21, locked.RemainingDays)

	// Nothing moved.
	got, err := mem.ByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 600.0, got.Balance)
}

func TestWithdrawalWithinAvailablePortionSucceeds(t *testing.T) {
	svc, mem, _ := newTestService(t)
	now := time.Now()
	svc.now = func() time.Time { return now }
	user := seedUser(t, mem, 600, now.AddDate(0, 0, -10))

	w, err := svc.RequestWithdrawal(context.Background(), user.ID, 100, "addr-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, w.Status)
	assert.Equal(t, "addr-1", w.WalletAddress)

	got, err := mem.ByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 500.0, got.Balance, "the hold debits at request time")
}

func TestWithdrawalAfterLockPeriodIgnoresLock(t *testing.T) {
	svc, mem, _ := newTestService(t)
	now := time.Now()
	svc.now = func() time.Time { return now }
	user := seedUser(t, mem, 600, now.AddDate(0, 0, -31))

	_, err := svc.RequestWithdrawal(context.Background(), user.ID, 600, "addr-1")
	require.NoError(t, err)
	got, err := mem.ByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Balance)
}

func TestRejectedWithdrawalRestoresBalance(t *testing.T) {
	svc, mem, _ := newTestService(t)
	now := time.Now()
	svc.now = func() time.Time { return now }
	user := seedUser(t, mem, 600, now.AddDate(0, 0, -31))

	w, err := svc.RequestWithdrawal(context.Background(), user.ID, 250, "addr-1")
	require.NoError(t, err)
	rejected, err := svc.RejectWithdrawal(w.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestRejected, rejected.Status)

	got, err := mem.ByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 600.0, got.Balance, "rejection must restore the pre-request balance")
	assert.Equal(t, 0.0, got.TotalWithdrawals)
}

func TestApprovedWithdrawalBumpsLifetimeTotal(t *testing.T) {
	svc, mem, _ := newTestService(t)
	now := time.Now()
	svc.now = func() time.Time { return now }
	user := seedUser(t, mem, 600, now.AddDate(0, 0, -31))

	w, err := svc.RequestWithdrawal(context.Background(), user.ID, 250, "addr-1")
	require.NoError(t, err)
	approved, err := svc.ApproveWithdrawal(w.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, approved.Status)

	// Double resolution is a conflict either way.
	_, err = svc.ApproveWithdrawal(w.ID, 7)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = svc.RejectWithdrawal(w.ID, 7)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := mem.ByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 350.0, got.Balance)
	assert.Equal(t, 250.0, got.TotalWithdrawals)
}

func TestWithdrawalsDisabledSetting(t *testing.T) {
	svc, mem, cache := newTestService(t)
	ctx := context.Background()
	user := seedUser(t, mem, 600, time.Now().AddDate(0, 0, -31))
	require.NoError(t, cache.Update(ctx, settings.KeyWithdrawalsEnabled, false, "panic switch"))

	_, err := svc.RequestWithdrawal(ctx, user.ID, 100, "addr-1")
	assert.ErrorIs(t, err, apperr.ErrDisabled)
}

func TestWithdrawalValidation(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	user := seedUser(t, mem, 600, time.Now().AddDate(0, 0, -31))

	var validation *apperr.ValidationError
	_, err := svc.RequestWithdrawal(ctx, user.ID, -5, "addr-1")
	assert.ErrorAs(t, err, &validation)
	_, err = svc.RequestWithdrawal(ctx, user.ID, 100, "")
	assert.ErrorAs(t, err, &validation)

	user.IsActive = false
	require.NoError(t, mem.Save(user))
	_, err = svc.RequestWithdrawal(ctx, user.ID, 100, "addr-1")
	assert.ErrorAs(t, err, &validation)
}

func TestSpinDailyRewardOncePerDay(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	user := seedUser(t, mem, 0, now.AddDate(0, 0, -40))

	tx, err := svc.SpinDailyReward(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxDailyReward, tx.Type)
	assert.GreaterOrEqual(t, tx.Amount, 0.5)
	assert.LessOrEqual(t, tx.Amount, 5.0)

	got, err := mem.ByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Amount, got.Balance)
	require.NotNil(t, got.SpinWheelLastUsed)
	assert.Equal(t, 1, got.SpinWheelCount)

	// Later the same UTC day: refused.
	now = now.Add(10 * time.Hour)
	_, err = svc.SpinDailyReward(ctx, user.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	// Next UTC day: allowed again, balance accumulates.
	now = now.Add(6 * time.Hour)
	tx2, err := svc.SpinDailyReward(ctx, user.ID)
	require.NoError(t, err)
	got, err = mem.ByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Amount+tx2.Amount, got.Balance)
	assert.Equal(t, 2, got.SpinWheelCount)
}

// hookedUsers lets a test interleave work right before the spin-state write.
type hookedUsers struct {
	store.UserStore
	beforeSpinWrite func()
}

func (h *hookedUsers) UpdateSpinState(userID uint, lastUsed time.Time) error {
	if h.beforeSpinWrite != nil {
		h.beforeSpinWrite()
	}
	return h.UserStore.UpdateSpinState(userID, lastUsed)
}

func TestSpinDoesNotClobberConcurrentCredit(t *testing.T) {
	mem := store.NewMemory()
	cache := settings.NewCache(mem.Settings(), nil)
	bank := ledger.New(mem, mem.Txs())
	hooked := &hookedUsers{UserStore: mem}
	svc := NewService(hooked, mem.Withdrawals(), bank, cache)
	user := seedUser(t, mem, 0, time.Now().AddDate(0, 0, -40))

	// A bonus credit lands between the spin payout and the spin-state write.
	// The write is field-scoped, so the credit must survive.
	hooked.beforeSpinWrite = func() {
		_, err := bank.Credit(user.ID, 5, domain.TxBonus, "bonus during spin")
		require.NoError(t, err)
	}
	tx, err := svc.SpinDailyReward(context.Background(), user.ID)
	require.NoError(t, err)

	got, err := mem.ByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Amount+5, got.Balance, "interleaved credit must not be lost")
	require.NotNil(t, got.SpinWheelLastUsed)
	assert.Equal(t, 1, got.SpinWheelCount)
}

func TestSpinRequiresActiveAccount(t *testing.T) {
	svc, mem, _ := newTestService(t)
	user := seedUser(t, mem, 0, time.Now())
	user.IsActive = false
	require.NoError(t, mem.Save(user))

	var validation *apperr.ValidationError
	_, err := svc.SpinDailyReward(context.Background(), user.ID)
	assert.ErrorAs(t, err, &validation)
}
