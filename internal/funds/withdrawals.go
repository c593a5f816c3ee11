// Package funds covers user-initiated money movement outside the activation
// workflow: withdrawal requests with the lock-period rule, their admin
// resolution, and the daily spin reward.
package funds

import (
	"context"
	"time"

	"referral_system/internal/apperr"
	"referral_system/internal/domain"
	"referral_system/internal/ledger"
	"referral_system/internal/settings"
	"referral_system/internal/store"

	"github.com/sirupsen/logrus"
)

// Service handles withdrawals and daily rewards.
type Service struct {
	users       store.UserStore
	withdrawals store.WithdrawalStore
	ledger      *ledger.Ledger
	settings    *settings.Cache
	now         func() time.Time // Injected for lock-period and spin tests
}

// NewService builds the funds service.
func NewService(users store.UserStore, withdrawals store.WithdrawalStore,
	l *ledger.Ledger, cache *settings.Cache) *Service {
	return &Service{
		users:       users,
		withdrawals: withdrawals,
		ledger:      l,
		settings:    cache,
		now:         time.Now,
	}
}

// RequestWithdrawal debits the balance optimistically and creates a pending
// withdrawal. Inside the lock period the configured lock amount is frozen:
// a request exceeding balance-minus-lock is rejected with the locked amount,
// remaining days and computed available balance instead of a bare
// insufficient-funds error.
func (s *Service) RequestWithdrawal(ctx context.Context, userID uint, amount float64, walletAddress string) (*domain.Withdrawal, error) {
	if s.settings.GetBool(ctx, settings.KeyMaintenanceMode, false) {
		return nil, apperr.Disabled("maintenance mode")
	}
	if !s.settings.GetBool(ctx, settings.KeyWithdrawalsEnabled, true) {
		return nil, apperr.Disabled("withdrawals")
	}
	if amount <= 0 {
		return nil, apperr.Validation("withdrawal amount must be positive, got %.2f", amount)
	}
	if walletAddress == "" {
		return nil, apperr.Validation("wallet address is required")
	}
	user, err := s.users.ByID(userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Validation("account is not active")
	}

	// Lock-period rule: one batch read for both parameters.
	vals := s.settings.GetMany(ctx,
		[]string{settings.KeyWithdrawLockAmount, settings.KeyWithdrawLockDays},
		settings.Defaults)
	lockAmount := floatValue(vals[settings.KeyWithdrawLockAmount])
	lockDays := intValue(vals[settings.KeyWithdrawLockDays])
	lockEnd := user.CreatedAt.AddDate(0, 0, lockDays)
	if now := s.now(); now.Before(lockEnd) && lockAmount > 0 {
		available := user.Balance - lockAmount
		if available < 0 {
			available = 0
		}
		if amount > available {
			remaining := int(lockEnd.Sub(now).Hours()/24) + 1
			return nil, &apperr.LockedBalanceError{
				LockedAmount:     lockAmount,
				AvailableBalance: available,
				RemainingDays:    remaining,
			}
		}
	}

	tx, err := s.ledger.Hold(userID, amount, walletAddress, "Withdrawal request")
	if err != nil {
		return nil, err
	}
	withdrawal := &domain.Withdrawal{
		UserID:        userID,
		Amount:        amount,
		WalletAddress: walletAddress,
		Status:        domain.RequestPending,
		TransactionID: tx.ID,
	}
	if err := s.withdrawals.Create(withdrawal); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":       userID,
		"withdrawal_id": withdrawal.ID,
		"amount":        amount,
	}).Info("Withdrawal requested")
	return withdrawal, nil
}

// ApproveWithdrawal finalizes a pending withdrawal; the balance already moved
// at request time.
func (s *Service) ApproveWithdrawal(withdrawalID, adminID uint) (*domain.Withdrawal, error) {
	w, err := s.withdrawals.ByID(withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.RequestPending {
		return nil, apperr.Conflict("withdrawal already resolved")
	}
	if _, err := s.ledger.SettleHold(w.TransactionID, adminID); err != nil {
		return nil, err
	}
	return s.resolve(w, domain.RequestApproved, adminID)
}

// RejectWithdrawal refunds the held amount, restoring the balance to exactly
// its pre-request value, and resolves the record.
func (s *Service) RejectWithdrawal(withdrawalID, adminID uint) (*domain.Withdrawal, error) {
	w, err := s.withdrawals.ByID(withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.RequestPending {
		return nil, apperr.Conflict("withdrawal already resolved")
	}
	if _, err := s.ledger.Reject(w.TransactionID, adminID, true); err != nil {
		return nil, err
	}
	return s.resolve(w, domain.RequestRejected, adminID)
}

func (s *Service) resolve(w *domain.Withdrawal, status domain.RequestStatus, adminID uint) (*domain.Withdrawal, error) {
	now := s.now()
	w.Status = status
	w.ProcessedBy = &adminID
	w.ProcessedAt = &now
	if err := s.withdrawals.Save(w); err != nil {
		return nil, err
	}
	return w, nil
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func floatValue(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
