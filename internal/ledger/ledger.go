// Package ledger owns the per-user balance and its append-only transaction
// log. Every balance mutation happens under that user's lock and writes
// exactly one transaction record, so concurrent requests never observe a
// balance change without its audit entry.
package ledger

import (
	"time"

	"referral_system/internal/apperr"
	"referral_system/internal/domain"
	"referral_system/internal/lock"
	"referral_system/internal/store"

	"github.com/google/uuid"     // Transaction references
	"github.com/sirupsen/logrus" // Structured logging of money events
)

// Ledger applies balance mutations. It owns its KeyedMutex; callers holding
// locks from other components may call in freely.
type Ledger struct {
	users store.UserStore
	txs   store.TransactionStore
	locks *lock.KeyedMutex
}

// New builds a Ledger over the given stores.
func New(users store.UserStore, txs store.TransactionStore) *Ledger {
	return &Ledger{users: users, txs: txs, locks: lock.NewKeyedMutex()}
}

// Credit adds amount to the user's balance and records a completed
// transaction of the given type.
func (l *Ledger) Credit(userID uint, amount float64, txType domain.TxType, description string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, apperr.Validation("credit amount must be positive, got %.2f", amount)
	}
	l.locks.Lock(userID)
	defer l.locks.Unlock(userID)

	user, err := l.users.ByID(userID)
	if err != nil {
		return nil, err
	}
	user.Balance += amount
	if err := l.users.Save(user); err != nil {
		return nil, err
	}
	tx := l.newTx(userID, amount, txType, domain.TxCompleted, description)
	if err := l.txs.Create(tx); err != nil {
		return nil, err
	}
	l.logMoney("credit", user, tx)
	return tx, nil
}

// Debit subtracts amount from the user's balance and records a completed
// transaction. Fails with InsufficientBalanceError when amount exceeds the
// balance at the lock point; the balance is left unchanged on failure.
func (l *Ledger) Debit(userID uint, amount float64, txType domain.TxType, description string) (*domain.Transaction, error) {
	return l.debit(userID, amount, txType, domain.TxCompleted, description)
}

// Hold debits the balance optimistically and records a pending transaction
// carrying the destination address. Used by withdrawal requests: the money
// leaves the balance immediately and comes back through Reject if an
// administrator declines.
func (l *Ledger) Hold(userID uint, amount float64, walletAddress, description string) (*domain.Transaction, error) {
	return l.debitTo(userID, amount, domain.TxWithdrawal, domain.TxPending, walletAddress, description)
}

// Record writes a pending transaction without touching the balance. Used by
// deposit submissions; the credit lands later through SettleCredit.
func (l *Ledger) Record(userID uint, amount float64, txType domain.TxType, txHash, description string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, apperr.Validation("amount must be positive, got %.2f", amount)
	}
	if _, err := l.users.ByID(userID); err != nil {
		return nil, err
	}
	tx := l.newTx(userID, amount, txType, domain.TxPending, description)
	tx.TransactionHash = txHash
	if err := l.txs.Create(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func (l *Ledger) newTx(userID uint, amount float64, txType domain.TxType, status domain.TxStatus, description string) *domain.Transaction {
	return &domain.Transaction{
		UserID:      userID,
		Type:        txType,
		Amount:      amount,
		Status:      status,
		Description: description,
		Reference:   uuid.NewString(),
	}
}

// SettleCredit completes a pending credit-side transaction: the amount is
// applied to the balance now, TotalDeposits grows for deposit types, and the
// record moves to completed. Conflict if the transaction is not pending.
func (l *Ledger) SettleCredit(txID, processedBy uint) (*domain.Transaction, error) {
	tx, err := l.txs.ByID(txID)
	if err != nil {
		return nil, err
	}
	l.locks.Lock(tx.UserID)
	defer l.locks.Unlock(tx.UserID)

	tx, err = l.txs.ByID(txID) // Re-read under the lock
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.TxPending {
		return nil, apperr.Conflict("transaction already resolved")
	}
	user, err := l.users.ByID(tx.UserID)
	if err != nil {
		return nil, err
	}
	user.Balance += tx.Amount
	if tx.Type == domain.TxDeposit {
		user.TotalDeposits += tx.Amount
	}
	if err := l.users.Save(user); err != nil {
		return nil, err
	}
	if err := l.resolve(tx, domain.TxCompleted, processedBy); err != nil {
		return nil, err
	}
	l.logMoney("settle_credit", user, tx)
	return tx, nil
}

// SettleHold completes a pending debit-side transaction. The balance already
// moved at Hold time; this only finalizes the record and the lifetime total.
func (l *Ledger) SettleHold(txID, processedBy uint) (*domain.Transaction, error) {
	tx, err := l.txs.ByID(txID)
	if err != nil {
		return nil, err
	}
	l.locks.Lock(tx.UserID)
	defer l.locks.Unlock(tx.UserID)

	tx, err = l.txs.ByID(txID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.TxPending {
		return nil, apperr.Conflict("transaction already resolved")
	}
	if tx.Type == domain.TxWithdrawal {
		user, err := l.users.ByID(tx.UserID)
		if err != nil {
			return nil, err
		}
		user.TotalWithdrawals += tx.Amount
		if err := l.users.Save(user); err != nil {
			return nil, err
		}
	}
	if err := l.resolve(tx, domain.TxCompleted, processedBy); err != nil {
		return nil, err
	}
	return tx, nil
}

// Reject moves a pending transaction to rejected. When refund is true the
// held amount is credited back, restoring the balance to its pre-hold value.
func (l *Ledger) Reject(txID, processedBy uint, refund bool) (*domain.Transaction, error) {
	tx, err := l.txs.ByID(txID)
	if err != nil {
		return nil, err
	}
	l.locks.Lock(tx.UserID)
	defer l.locks.Unlock(tx.UserID)

	tx, err = l.txs.ByID(txID)
	if err != nil {
		return nil, err
	}
	if tx.Status != domain.TxPending {
		return nil, apperr.Conflict("transaction already resolved")
	}
	if refund {
		user, err := l.users.ByID(tx.UserID)
		if err != nil {
			return nil, err
		}
		user.Balance += tx.Amount
		if err := l.users.Save(user); err != nil {
			return nil, err
		}
		l.logMoney("refund", user, tx)
	}
	if err := l.resolve(tx, domain.TxRejected, processedBy); err != nil {
		return nil, err
	}
	return tx, nil
}

func (l *Ledger) debit(userID uint, amount float64, txType domain.TxType, status domain.TxStatus, description string) (*domain.Transaction, error) {
	return l.debitTo(userID, amount, txType, status, "", description)
}

func (l *Ledger) debitTo(userID uint, amount float64, txType domain.TxType, status domain.TxStatus, walletAddress, description string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, apperr.Validation("debit amount must be positive, got %.2f", amount)
	}
	l.locks.Lock(userID)
	defer l.locks.Unlock(userID)

	user, err := l.users.ByID(userID)
	if err != nil {
		return nil, err
	}
	if amount > user.Balance {
		return nil, &apperr.InsufficientBalanceError{Requested: amount, Available: user.Balance}
	}
	user.Balance -= amount
	if err := l.users.Save(user); err != nil {
		return nil, err
	}
	tx := l.newTx(userID, amount, txType, status, description)
	tx.WalletAddress = walletAddress
	if err := l.txs.Create(tx); err != nil {
		return nil, err
	}
	l.logMoney("debit", user, tx)
	return tx, nil
}

func (l *Ledger) resolve(tx *domain.Transaction, status domain.TxStatus, processedBy uint) error {
	now := time.Now()
	tx.Status = status
	tx.ProcessedBy = &processedBy
	tx.ProcessedAt = &now
	return l.txs.Save(tx)
}

func (l *Ledger) logMoney(event string, user *domain.User, tx *domain.Transaction) {
	logrus.WithFields(logrus.Fields{
		"event":     event,
		"user_id":   user.ID,
		"amount":    tx.Amount,
		"type":      tx.Type,
		"status":    tx.Status,
		"balance":   user.Balance,
		"reference": tx.Reference,
	}).Info("Ledger transaction")
}
