package referral

import (
	"testing"

	"referral_system/internal/domain"
	"referral_system/internal/ledger"
	"referral_system/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildSponsor creates a sponsor with nLeft active left and nRight active
// right referrals.
func buildSponsor(t *testing.T, mem *store.Memory, graph *Graph, nLeft, nRight int) *domain.User {
	t.Helper()
	sponsor := &domain.User{Username: "sponsor", IsActive: true}
	require.NoError(t, mem.Create(sponsor))
	total := nLeft + nRight
	if nRight > nLeft {
		total = 2 * nRight // Right slots come second, place enough pairs
	}
	if nLeft > nRight {
		total = 2*nLeft - 1
	}
	activatedLeft, activatedRight := 0, 0
	for i := 0; i < total; i++ {
		u := &domain.User{Username: "ref" + string(rune('a'+i))}
		require.NoError(t, mem.Create(u))
		edge, err := graph.Place(sponsor.ID, u.ID)
		require.NoError(t, err)
		if edge.Side == domain.SideLeft && activatedLeft < nLeft {
			_, err = graph.Activate(u.ID)
			require.NoError(t, err)
			activatedLeft++
		}
		if edge.Side == domain.SideRight && activatedRight < nRight {
			_, err = graph.Activate(u.ID)
			require.NoError(t, err)
			activatedRight++
		}
	}
	return sponsor
}

func TestEvaluateCreditsNewTier(t *testing.T) {
	mem := store.NewMemory()
	graph := NewGraph(mem.Edges())
	bank := ledger.New(mem, mem.Txs())
	tiers := []Tier{{Level: 1, LeftRequired: 1, RightRequired: 1, Reward: 11}}
	engine := NewEngine(mem, mem.Edges(), bank, tiers)

	sponsor := buildSponsor(t, mem, graph, 1, 1)
	eval, err := engine.Evaluate(sponsor.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(1), eval.LeftCount)
	assert.Equal(t, int64(1), eval.RightCount)
	require.Len(t, eval.NewlyAchieved, 1)
	assert.Equal(t, 1, eval.NewlyAchieved[0].Level)
	assert.Equal(t, 11.0, eval.NewlyAchieved[0].Reward)
	assert.Equal(t, 11.0, eval.Balance)

	// A level_reward transaction of the tier amount was recorded.
	txs, _, err := mem.Txs().ListByUser(sponsor.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.TxLevelReward, txs[0].Type)
	assert.Equal(t, 11.0, txs[0].Amount)
	assert.Equal(t, domain.TxCompleted, txs[0].Status)
}

func TestEvaluateIsIdempotent(t *testing.T) {
	mem := store.NewMemory()
	graph := NewGraph(mem.Edges())
	bank := ledger.New(mem, mem.Txs())
	tiers := []Tier{{Level: 1, LeftRequired: 1, RightRequired: 1, Reward: 11}}
	engine := NewEngine(mem, mem.Edges(), bank, tiers)

	sponsor := buildSponsor(t, mem, graph, 1, 1)
	first, err := engine.Evaluate(sponsor.ID)
	require.NoError(t, err)
	require.Len(t, first.NewlyAchieved, 1)

	// No referral changes in between: the second call awards nothing.
	second, err := engine.Evaluate(sponsor.ID)
	require.NoError(t, err)
	assert.Empty(t, second.NewlyAchieved)
	assert.Equal(t, first.Balance, second.Balance)
	assert.Equal(t, first.AchievedLevels, second.AchievedLevels)
}

func TestEvaluateAwardsMultipleTiersAscending(t *testing.T) {
	mem := store.NewMemory()
	graph := NewGraph(mem.Edges())
	bank := ledger.New(mem, mem.Txs())
	tiers := []Tier{
		{Level: 2, LeftRequired: 2, RightRequired: 2, Reward: 30},
		{Level: 1, LeftRequired: 1, RightRequired: 1, Reward: 10},
	}
	engine := NewEngine(mem, mem.Edges(), bank, tiers) // Deliberately unsorted input

	sponsor := buildSponsor(t, mem, graph, 2, 2)
	eval, err := engine.Evaluate(sponsor.ID)
	require.NoError(t, err)

	require.Len(t, eval.NewlyAchieved, 2)
	assert.Equal(t, 1, eval.NewlyAchieved[0].Level, "tiers are credited in ascending order")
	assert.Equal(t, 2, eval.NewlyAchieved[1].Level)
	assert.Equal(t, 40.0, eval.Balance)
	assert.Equal(t, domain.LevelSet{1, 2}, eval.AchievedLevels)
}

func TestEvaluateSkipsUnmetTiers(t *testing.T) {
	mem := store.NewMemory()
	graph := NewGraph(mem.Edges())
	bank := ledger.New(mem, mem.Txs())
	engine := NewEngine(mem, mem.Edges(), bank, DefaultTiers)

	// One active left edge only: no tier requires less than 1/1.
	sponsor := buildSponsor(t, mem, graph, 1, 0)
	eval, err := engine.Evaluate(sponsor.ID)
	require.NoError(t, err)
	assert.Empty(t, eval.NewlyAchieved)
	assert.Equal(t, 0.0, eval.Balance)
	assert.Empty(t, eval.AchievedLevels)
}

// hookedUsers lets a test interleave work right before the level-set write.
type hookedUsers struct {
	store.UserStore
	beforeLevelWrite func()
}

func (h *hookedUsers) UpdateAchievedLevels(userID uint, levels domain.LevelSet) error {
	if h.beforeLevelWrite != nil {
		h.beforeLevelWrite()
	}
	return h.UserStore.UpdateAchievedLevels(userID, levels)
}

func TestEvaluateDoesNotClobberConcurrentCredit(t *testing.T) {
	mem := store.NewMemory()
	graph := NewGraph(mem.Edges())
	bank := ledger.New(mem, mem.Txs())
	tiers := []Tier{{Level: 1, LeftRequired: 1, RightRequired: 1, Reward: 11}}
	sponsor := buildSponsor(t, mem, graph, 1, 1)

	hooked := &hookedUsers{UserStore: mem}
	engine := NewEngine(hooked, mem.Edges(), bank, tiers)
	// A daily-reward credit lands between the tier payout and the level-set
	// write. The write is field-scoped, so the credit must survive.
	hooked.beforeLevelWrite = func() {
		_, err := bank.Credit(sponsor.ID, 5, domain.TxDailyReward, "spin during evaluation")
		require.NoError(t, err)
	}

	eval, err := engine.Evaluate(sponsor.ID)
	require.NoError(t, err)
	require.Len(t, eval.NewlyAchieved, 1)

	got, err := mem.ByID(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, 16.0, got.Balance, "interleaved credit must not be lost")
	assert.Equal(t, domain.LevelSet{1}, got.AchievedLevels)
	_, total, err := mem.Txs().ListByUser(sponsor.ID, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "both mutations keep their transaction record")
}

func TestAchievedLevelsNeverShrink(t *testing.T) {
	mem := store.NewMemory()
	graph := NewGraph(mem.Edges())
	bank := ledger.New(mem, mem.Txs())
	tiers := []Tier{{Level: 1, LeftRequired: 1, RightRequired: 1, Reward: 10}}
	engine := NewEngine(mem, mem.Edges(), bank, tiers)

	sponsor := buildSponsor(t, mem, graph, 1, 1)
	_, err := engine.Evaluate(sponsor.ID)
	require.NoError(t, err)

	// Deactivate both edges; the achieved level must survive.
	edges, err := mem.Edges().ListByReferrer(sponsor.ID)
	require.NoError(t, err)
	for i := range edges {
		edges[i].IsActive = false
		require.NoError(t, mem.Edges().Save(&edges[i]))
	}
	eval, err := engine.Evaluate(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LevelSet{1}, eval.AchievedLevels, "levels are never revoked")
	assert.Empty(t, eval.NewlyAchieved)
}
