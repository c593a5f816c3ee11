package activation

import (
	"context"
	"testing"

	"referral_system/internal/apperr"
	"referral_system/internal/domain"
	"referral_system/internal/ledger"
	"referral_system/internal/referral"
	"referral_system/internal/settings"
	"referral_system/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	mem      *store.Memory
	graph    *referral.Graph
	engine   *referral.Engine
	workflow *Workflow
	cache    *settings.Cache
}

func newFixture(t *testing.T, tiers []referral.Tier) *fixture {
	t.Helper()
	mem := store.NewMemory()
	cache := settings.NewCache(mem.Settings(), nil)
	bank := ledger.New(mem, mem.Txs())
	graph := referral.NewGraph(mem.Edges())
	engine := referral.NewEngine(mem, mem.Edges(), bank, tiers)
	workflow := New(mem, mem.Deposits(), bank, graph, engine, cache)
	return &fixture{mem: mem, graph: graph, engine: engine, workflow: workflow, cache: cache}
}

func (f *fixture) newUser(t *testing.T, name string) *domain.User {
	t.Helper()
	u := &domain.User{Username: name}
	require.NoError(t, f.mem.Create(u))
	return u
}

func (f *fixture) referredUser(t *testing.T, sponsor *domain.User, name string) *domain.User {
	t.Helper()
	u := f.newUser(t, name)
	u.ReferredByID = &sponsor.ID
	require.NoError(t, f.mem.Save(u))
	_, err := f.graph.Place(sponsor.ID, u.ID)
	require.NoError(t, err)
	return u
}

func TestRegistrationDepositLifecycle(t *testing.T) {
	f := newFixture(t, referral.DefaultTiers)
	sponsor := f.newUser(t, "sponsor")
	user := f.referredUser(t, sponsor, "newbie")
	ctx := context.Background()

	// Submit a deposit of 90 against the default minimum of 60.
	deposit, err := f.workflow.SubmitRegistrationDeposit(ctx, user.ID, 90, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestPending, deposit.Status)
	assert.True(t, deposit.IsRegistrationDeposit)

	submitted, err := f.mem.ByID(user.ID)
	require.NoError(t, err)
	assert.True(t, submitted.RegistrationDepositPaid)
	assert.False(t, submitted.IsActive)

	// Approval runs the activation cascade.
	approved, err := f.workflow.ApproveRegistrationDeposit(deposit.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestApproved, approved.Status)
	require.NotNil(t, approved.ProcessedBy)
	assert.Equal(t, uint(42), *approved.ProcessedBy)

	activated, err := f.mem.ByID(user.ID)
	require.NoError(t, err)
	assert.True(t, activated.IsActive)
	assert.True(t, activated.RegistrationDepositVerified)
	assert.Equal(t, 90.0, activated.Balance)
	assert.Equal(t, 90.0, activated.TotalDeposits)

	// The sponsor's inbound edge flipped active.
	edge, err := f.mem.Edges().ByReferred(user.ID)
	require.NoError(t, err)
	assert.True(t, edge.IsActive)

	// The linked transaction completed.
	tx, err := f.mem.Txs().ByID(deposit.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxCompleted, tx.Status)
}

func TestApprovalTriggersSponsorEvaluation(t *testing.T) {
	tiers := []referral.Tier{{Level: 1, LeftRequired: 1, RightRequired: 1, Reward: 11}}
	f := newFixture(t, tiers)
	sponsor := f.newUser(t, "sponsor")
	left := f.referredUser(t, sponsor, "leftref")
	right := f.referredUser(t, sponsor, "rightref")
	ctx := context.Background()

	for _, u := range []*domain.User{left, right} {
		deposit, err := f.workflow.SubmitRegistrationDeposit(ctx, u.ID, 60, "")
		require.NoError(t, err)
		_, err = f.workflow.ApproveRegistrationDeposit(deposit.ID, 1)
		require.NoError(t, err)
	}

	// The second activation completed the 1/1 tier: the engine ran as part
	// of the cascade and credited the sponsor without any explicit check.
	got, err := f.mem.ByID(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, 11.0, got.Balance)
	assert.Equal(t, domain.LevelSet{1}, got.AchievedLevels)
}

func TestDuplicateSubmissionIsConflict(t *testing.T) {
	f := newFixture(t, referral.DefaultTiers)
	user := f.newUser(t, "solo")
	ctx := context.Background()

	_, err := f.workflow.SubmitRegistrationDeposit(ctx, user.ID, 70, "")
	require.NoError(t, err)
	_, err = f.workflow.SubmitRegistrationDeposit(ctx, user.ID, 70, "")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestBelowMinimumIsValidationError(t *testing.T) {
	f := newFixture(t, referral.DefaultTiers)
	user := f.newUser(t, "cheap")

	var validation *apperr.ValidationError
	_, err := f.workflow.SubmitRegistrationDeposit(context.Background(), user.ID, 59.99, "")
	assert.ErrorAs(t, err, &validation)
}

func TestDoubleApprovalIsConflict(t *testing.T) {
	f := newFixture(t, referral.DefaultTiers)
	user := f.newUser(t, "eager")
	deposit, err := f.workflow.SubmitRegistrationDeposit(context.Background(), user.ID, 80, "")
	require.NoError(t, err)

	_, err = f.workflow.ApproveRegistrationDeposit(deposit.ID, 1)
	require.NoError(t, err)
	_, err = f.workflow.ApproveRegistrationDeposit(deposit.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRejectionLeavesUserDormant(t *testing.T) {
	f := newFixture(t, referral.DefaultTiers)
	sponsor := f.newUser(t, "sponsor")
	user := f.referredUser(t, sponsor, "unlucky")
	deposit, err := f.workflow.SubmitRegistrationDeposit(context.Background(), user.ID, 75, "")
	require.NoError(t, err)

	rejected, err := f.workflow.RejectRegistrationDeposit(deposit.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestRejected, rejected.Status)

	got, err := f.mem.ByID(user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.False(t, got.RegistrationDepositVerified)
	assert.Equal(t, 0.0, got.Balance, "no credit on rejection")

	edge, err := f.mem.Edges().ByReferred(user.ID)
	require.NoError(t, err)
	assert.False(t, edge.IsActive)

	tx, err := f.mem.Txs().ByID(deposit.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxRejected, tx.Status)

	// Rejection does not reopen the submission slot.
	_, err = f.workflow.SubmitRegistrationDeposit(context.Background(), user.ID, 80, "")
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestOrdinaryDepositNeverTouchesReferrals(t *testing.T) {
	tiers := []referral.Tier{{Level: 1, LeftRequired: 1, RightRequired: 0, Reward: 5}}
	f := newFixture(t, tiers)
	sponsor := f.newUser(t, "sponsor")
	user := f.referredUser(t, sponsor, "regular")
	ctx := context.Background()

	// Activate through the registration flow first.
	reg, err := f.workflow.SubmitRegistrationDeposit(ctx, user.ID, 60, "")
	require.NoError(t, err)
	_, err = f.workflow.ApproveRegistrationDeposit(reg.ID, 1)
	require.NoError(t, err)
	sponsorAfterActivation, err := f.mem.ByID(sponsor.ID)
	require.NoError(t, err)

	// An ordinary deposit moves balance only.
	deposit, err := f.workflow.SubmitDeposit(ctx, user.ID, 500, "hash-2")
	require.NoError(t, err)
	assert.False(t, deposit.IsRegistrationDeposit)
	_, err = f.workflow.ApproveDeposit(deposit.ID, 1)
	require.NoError(t, err)

	got, err := f.mem.ByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 560.0, got.Balance)

	sponsorAfterDeposit, err := f.mem.ByID(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, sponsorAfterActivation.Balance, sponsorAfterDeposit.Balance)
	assert.Equal(t, sponsorAfterActivation.AchievedLevels, sponsorAfterDeposit.AchievedLevels)
}

func TestDepositsDisabledSetting(t *testing.T) {
	f := newFixture(t, referral.DefaultTiers)
	user := f.newUser(t, "blocked")
	ctx := context.Background()
	require.NoError(t, f.cache.Update(ctx, settings.KeyDepositsEnabled, false, "maintenance"))

	_, err := f.workflow.SubmitRegistrationDeposit(ctx, user.ID, 100, "")
	assert.ErrorIs(t, err, apperr.ErrDisabled)
}

// hookedUsers lets a test interleave work right before the flag write.
type hookedUsers struct {
	store.UserStore
	beforeFlagWrite func()
}

func (h *hookedUsers) UpdateActivationFlags(userID uint, active, paid, verified bool) error {
	if h.beforeFlagWrite != nil {
		h.beforeFlagWrite()
	}
	return h.UserStore.UpdateActivationFlags(userID, active, paid, verified)
}

func TestApprovalDoesNotClobberConcurrentCredit(t *testing.T) {
	mem := store.NewMemory()
	cache := settings.NewCache(mem.Settings(), nil)
	bank := ledger.New(mem, mem.Txs())
	graph := referral.NewGraph(mem.Edges())
	engine := referral.NewEngine(mem, mem.Edges(), bank, referral.DefaultTiers)
	hooked := &hookedUsers{UserStore: mem}
	workflow := New(hooked, mem.Deposits(), bank, graph, engine, cache)

	user := &domain.User{Username: "racer"}
	require.NoError(t, mem.Create(user))
	deposit, err := workflow.SubmitRegistrationDeposit(context.Background(), user.ID, 90, "")
	require.NoError(t, err)

	// A bonus credit lands between the deposit settlement and the activation
	// flag write. The write is field-scoped, so the credit must survive.
	hooked.beforeFlagWrite = func() {
		_, err := bank.Credit(user.ID, 5, domain.TxBonus, "bonus during approval")
		require.NoError(t, err)
	}
	_, err = workflow.ApproveRegistrationDeposit(deposit.ID, 1)
	require.NoError(t, err)

	got, err := mem.ByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 95.0, got.Balance, "interleaved credit must not be lost")
	assert.True(t, got.IsActive)
	assert.True(t, got.RegistrationDepositVerified)
}

func TestRegistrationWorkflowRejectsOrdinaryDeposit(t *testing.T) {
	f := newFixture(t, referral.DefaultTiers)
	user := f.newUser(t, "mixed")
	user.IsActive = true
	require.NoError(t, f.mem.Save(user))
	ctx := context.Background()

	deposit, err := f.workflow.SubmitDeposit(ctx, user.ID, 40, "")
	require.NoError(t, err)

	var validation *apperr.ValidationError
	_, err = f.workflow.ApproveRegistrationDeposit(deposit.ID, 1)
	assert.ErrorAs(t, err, &validation)
}
