// Package activation drives the registration-deposit state machine:
// Dormant -> DepositSubmitted -> Active | Rejected. Approving the one-time
// registration deposit activates the user, flips their inbound referral edge
// and triggers reward evaluation for the sponsor. Ordinary deposits share the
// submit/approve/reject surface but never touch referral state.
package activation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"referral_system/internal/apperr"
	"referral_system/internal/domain"
	"referral_system/internal/ledger"
	"referral_system/internal/referral"
	"referral_system/internal/settings"
	"referral_system/internal/store"

	"github.com/sirupsen/logrus"
)

// Workflow wires the stores and core services the cascade touches.
type Workflow struct {
	users    store.UserStore
	deposits store.DepositStore
	ledger   *ledger.Ledger
	graph    *referral.Graph
	engine   *referral.Engine
	settings *settings.Cache
}

// New builds the activation workflow.
func New(users store.UserStore, deposits store.DepositStore, l *ledger.Ledger,
	graph *referral.Graph, engine *referral.Engine, cache *settings.Cache) *Workflow {
	return &Workflow{
		users:    users,
		deposits: deposits,
		ledger:   l,
		graph:    graph,
		engine:   engine,
		settings: cache,
	}
}

// SubmitRegistrationDeposit moves a dormant user to DepositSubmitted. Only
// one registration deposit may ever be submitted; resubmission is a conflict
// even after rejection.
func (w *Workflow) SubmitRegistrationDeposit(ctx context.Context, userID uint, amount float64, txHash string) (*domain.Deposit, error) {
	if w.settings.GetBool(ctx, settings.KeyMaintenanceMode, false) {
		return nil, apperr.Disabled("maintenance mode")
	}
	if !w.settings.GetBool(ctx, settings.KeyDepositsEnabled, true) {
		return nil, apperr.Disabled("deposits")
	}
	min := w.settings.GetFloat(ctx, settings.KeyMinRegistrationDeposit, 60)
	if amount < min {
		return nil, apperr.Validation("registration deposit must be at least %.2f", min)
	}
	user, err := w.users.ByID(userID)
	if err != nil {
		return nil, err
	}
	if user.RegistrationDepositPaid {
		return nil, apperr.Conflict("registration deposit already submitted")
	}

	tx, err := w.ledger.Record(userID, amount, domain.TxDeposit, txHash, "Registration deposit")
	if err != nil {
		return nil, err
	}
	deposit := &domain.Deposit{
		UserID:                userID,
		Amount:                amount,
		Status:                domain.RequestPending,
		TransactionID:         tx.ID,
		IsRegistrationDeposit: true,
		TransactionHash:       txHash,
	}
	if err := w.deposits.Create(deposit); err != nil {
		return nil, err
	}
	if err := w.users.UpdateActivationFlags(userID, false, true, false); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id":    userID,
		"deposit_id": deposit.ID,
		"amount":     amount,
	}).Info("Registration deposit submitted")
	return deposit, nil
}

// ApproveRegistrationDeposit runs the activation cascade in order: credit the
// balance, activate the user, flip the inbound referral edge, evaluate the
// sponsor's rewards, complete the pending transaction. A failure partway
// leaves the earlier steps applied; each step logs so the state can be
// reconciled manually.
func (w *Workflow) ApproveRegistrationDeposit(depositID, adminID uint) (*domain.Deposit, error) {
	deposit, err := w.deposits.ByID(depositID)
	if err != nil {
		return nil, err
	}
	if !deposit.IsRegistrationDeposit {
		return nil, apperr.Validation("deposit %d is not a registration deposit", depositID)
	}
	if deposit.Status != domain.RequestPending {
		return nil, apperr.Conflict("deposit already resolved")
	}

	log := logrus.WithFields(logrus.Fields{
		"deposit_id": depositID,
		"user_id":    deposit.UserID,
		"admin_id":   adminID,
	})

	// 1. Credit the balance and lifetime deposits, completing the pending
	// transaction created at submission time.
	if _, err := w.ledger.SettleCredit(deposit.TransactionID, adminID); err != nil {
		return nil, err
	}
	log.Info("Activation cascade: deposit credited")

	// 2. Activate the user. Only the flags are written; the balance belongs
	// to the ledger and may move concurrently.
	if err := w.users.UpdateActivationFlags(deposit.UserID, true, true, true); err != nil {
		return nil, fmt.Errorf("activation cascade interrupted after credit: %w", err)
	}
	log.Info("Activation cascade: user activated")

	// 3. Flip the inbound referral edge, then 4. evaluate the sponsor. The
	// engine reads the just-flipped edge, so the order is load-bearing.
	edge, err := w.graph.Activate(deposit.UserID)
	switch {
	case err == nil:
		log.WithField("sponsor_id", edge.ReferrerID).Info("Activation cascade: referral edge activated")
		if _, err := w.engine.Evaluate(edge.ReferrerID); err != nil {
			return nil, fmt.Errorf("activation cascade interrupted before sponsor evaluation: %w", err)
		}
	case errors.Is(err, apperr.ErrNotFound):
		log.Info("Activation cascade: user has no sponsor, skipping reward evaluation")
	default:
		return nil, fmt.Errorf("activation cascade interrupted before edge activation: %w", err)
	}

	// 5. Resolve the deposit record itself.
	return w.resolveDeposit(deposit, domain.RequestApproved, adminID)
}

// RejectRegistrationDeposit resolves the deposit as rejected. No credit ever
// happened, so there is nothing to refund; the user and their inbound edge
// stay inactive.
func (w *Workflow) RejectRegistrationDeposit(depositID, adminID uint) (*domain.Deposit, error) {
	deposit, err := w.deposits.ByID(depositID)
	if err != nil {
		return nil, err
	}
	if !deposit.IsRegistrationDeposit {
		return nil, apperr.Validation("deposit %d is not a registration deposit", depositID)
	}
	if deposit.Status != domain.RequestPending {
		return nil, apperr.Conflict("deposit already resolved")
	}
	if _, err := w.ledger.Reject(deposit.TransactionID, adminID, false); err != nil {
		return nil, err
	}
	if err := w.users.UpdateActivationFlags(deposit.UserID, false, true, false); err != nil {
		return nil, err
	}
	if err := w.graph.Deactivate(deposit.UserID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"deposit_id": depositID,
		"user_id":    deposit.UserID,
		"admin_id":   adminID,
	}).Info("Registration deposit rejected")
	return w.resolveDeposit(deposit, domain.RequestRejected, adminID)
}

// SubmitDeposit creates an ordinary (non-registration) deposit request. The
// user must already be active.
func (w *Workflow) SubmitDeposit(ctx context.Context, userID uint, amount float64, txHash string) (*domain.Deposit, error) {
	if w.settings.GetBool(ctx, settings.KeyMaintenanceMode, false) {
		return nil, apperr.Disabled("maintenance mode")
	}
	if !w.settings.GetBool(ctx, settings.KeyDepositsEnabled, true) {
		return nil, apperr.Disabled("deposits")
	}
	user, err := w.users.ByID(userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Validation("account is not active")
	}
	tx, err := w.ledger.Record(userID, amount, domain.TxDeposit, txHash, "Deposit")
	if err != nil {
		return nil, err
	}
	deposit := &domain.Deposit{
		UserID:          userID,
		Amount:          amount,
		Status:          domain.RequestPending,
		TransactionID:   tx.ID,
		TransactionHash: txHash,
	}
	if err := w.deposits.Create(deposit); err != nil {
		return nil, err
	}
	return deposit, nil
}

// ApproveDeposit resolves an ordinary deposit: balance credit only, no
// referral activation, no reward evaluation.
func (w *Workflow) ApproveDeposit(depositID, adminID uint) (*domain.Deposit, error) {
	deposit, err := w.deposits.ByID(depositID)
	if err != nil {
		return nil, err
	}
	if deposit.IsRegistrationDeposit {
		return nil, apperr.Validation("deposit %d is a registration deposit", depositID)
	}
	if deposit.Status != domain.RequestPending {
		return nil, apperr.Conflict("deposit already resolved")
	}
	if _, err := w.ledger.SettleCredit(deposit.TransactionID, adminID); err != nil {
		return nil, err
	}
	return w.resolveDeposit(deposit, domain.RequestApproved, adminID)
}

// RejectDeposit resolves an ordinary deposit as rejected.
func (w *Workflow) RejectDeposit(depositID, adminID uint) (*domain.Deposit, error) {
	deposit, err := w.deposits.ByID(depositID)
	if err != nil {
		return nil, err
	}
	if deposit.IsRegistrationDeposit {
		return nil, apperr.Validation("deposit %d is a registration deposit", depositID)
	}
	if deposit.Status != domain.RequestPending {
		return nil, apperr.Conflict("deposit already resolved")
	}
	if _, err := w.ledger.Reject(deposit.TransactionID, adminID, false); err != nil {
		return nil, err
	}
	return w.resolveDeposit(deposit, domain.RequestRejected, adminID)
}

func (w *Workflow) resolveDeposit(deposit *domain.Deposit, status domain.RequestStatus, adminID uint) (*domain.Deposit, error) {
	now := time.Now()
	deposit.Status = status
	deposit.ProcessedBy = &adminID
	deposit.ProcessedAt = &now
	if err := w.deposits.Save(deposit); err != nil {
		return nil, err
	}
	return deposit, nil
}
