// Package store is the persistence seam between the core services and the
// database. The core depends only on these interfaces; production binds them
// to gorm (gorm.go) and tests to the in-memory implementation (memory.go).
//
// All ByX lookups return an error wrapping apperr.ErrNotFound when the record
// does not exist.
package store

import (
	"time"

	"referral_system/internal/domain"
)

// UserStore persists users. Save writes the whole record and is reserved for
// the ledger, which serializes balance access; every other component writes
// through the field-scoped UpdateX methods so a concurrent balance mutation
// is never clobbered.
type UserStore interface {
	Create(u *domain.User) error
	ByID(id uint) (*domain.User, error)
	ByUsername(username string) (*domain.User, error)
	ByReferralCode(code string) (*domain.User, error)
	Count() (int64, error)
	Save(u *domain.User) error
	// UpdateAchievedLevels writes only the achievement set.
	UpdateAchievedLevels(userID uint, levels domain.LevelSet) error
	// UpdateSpinState writes the spin timestamp and bumps the lifetime
	// counter.
	UpdateSpinState(userID uint, lastUsed time.Time) error
	// UpdateActivationFlags writes only the registration/activation flags.
	UpdateActivationFlags(userID uint, active, paid, verified bool) error
}

// EdgeStore persists referral edges.
type EdgeStore interface {
	Create(e *domain.ReferralEdge) error
	ByReferred(referredID uint) (*domain.ReferralEdge, error)
	CountByReferrer(referrerID uint) (int64, error)
	// CountActiveBySide counts active edges under referrerID grouped by side.
	CountActiveBySide(referrerID uint) (left int64, right int64, err error)
	ListByReferrer(referrerID uint) ([]domain.ReferralEdge, error)
	Save(e *domain.ReferralEdge) error
}

// TransactionStore persists the append-only transaction log. Save is only
// ever used for status transitions pending -> completed/rejected/cancelled.
type TransactionStore interface {
	Create(t *domain.Transaction) error
	ByID(id uint) (*domain.Transaction, error)
	Save(t *domain.Transaction) error
	// ListByUser returns a page of the user's transactions, newest first,
	// along with the total count.
	ListByUser(userID uint, offset, limit int) ([]domain.Transaction, int64, error)
}

// DepositStore persists deposit requests.
type DepositStore interface {
	Create(d *domain.Deposit) error
	ByID(id uint) (*domain.Deposit, error)
	Save(d *domain.Deposit) error
}

// WithdrawalStore persists withdrawal requests.
type WithdrawalStore interface {
	Create(w *domain.Withdrawal) error
	ByID(id uint) (*domain.Withdrawal, error)
	Save(w *domain.Withdrawal) error
}

// SettingStore is the durable settings table behind the tiered cache. Reads
// are always batched; single-key lookups go through FindByKeys too.
type SettingStore interface {
	FindByKeys(keys []string) ([]domain.Setting, error)
	Upsert(key, value, description string) error
}
