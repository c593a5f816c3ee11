package referral

import (
	"sync"
	"testing"

	"referral_system/internal/apperr"
	"referral_system/internal/domain"
	"referral_system/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUsers(t *testing.T, mem *store.Memory, n int) []*domain.User {
	t.Helper()
	users := make([]*domain.User, n)
	for i := range users {
		users[i] = &domain.User{Username: "user" + string(rune('a'+i))}
		require.NoError(t, mem.Create(users[i]))
	}
	return users
}

func TestPlacementAlternatesStartingLeft(t *testing.T) {
	mem := store.NewMemory()
	graph := NewGraph(mem.Edges())
	users := newUsers(t, mem, 5)
	sponsor := users[0]

	want := []domain.Side{domain.SideLeft, domain.SideRight, domain.SideLeft, domain.SideRight}
	for i, side := range want {
		edge, err := graph.Place(sponsor.ID, users[i+1].ID)
		require.NoError(t, err)
		assert.Equal(t, side, edge.Side, "placement %d", i+1)
		assert.False(t, edge.IsActive, "new edges start inactive")
		assert.Equal(t, domain.DefaultCommissionRate, edge.CommissionRate)
	}
}

func TestPlacementCountsInactiveEdges(t *testing.T) {
	mem := store.NewMemory()
	graph := NewGraph(mem.Edges())
	users := newUsers(t, mem, 4)
	sponsor := users[0]

	// First referral goes left and stays inactive; the second must still go
	// right because the count includes inactive edges.
	first, err := graph.Place(sponsor.ID, users[1].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SideLeft, first.Side)

	second, err := graph.Place(sponsor.ID, users[2].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SideRight, second.Side)
}

func TestSecondSponsorIsConflict(t *testing.T) {
	mem := store.NewMemory()
	graph := NewGraph(mem.Edges())
	users := newUsers(t, mem, 3)

	_, err := graph.Place(users[0].ID, users[2].ID)
	require.NoError(t, err)
	_, err = graph.Place(users[1].ID, users[2].ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestSelfReferralRejected(t *testing.T) {
	mem := store.NewMemory()
	graph := NewGraph(mem.Edges())
	users := newUsers(t, mem, 1)

	var validation *apperr.ValidationError
	_, err := graph.Place(users[0].ID, users[0].ID)
	assert.ErrorAs(t, err, &validation)
}

func TestActivateFlipsOnlyInboundEdge(t *testing.T) {
	mem := store.NewMemory()
	graph := NewGraph(mem.Edges())
	users := newUsers(t, mem, 3)
	sponsor := users[0]

	_, err := graph.Place(sponsor.ID, users[1].ID)
	require.NoError(t, err)
	_, err = graph.Place(sponsor.ID, users[2].ID)
	require.NoError(t, err)

	edge, err := graph.Activate(users[1].ID)
	require.NoError(t, err)
	assert.True(t, edge.IsActive)

	left, right, err := mem.Edges().CountActiveBySide(sponsor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), left)
	assert.Equal(t, int64(0), right)

	// Activating again is a no-op, not an error.
	_, err = graph.Activate(users[1].ID)
	require.NoError(t, err)
}

func TestActivateWithoutSponsorIsNotFound(t *testing.T) {
	mem := store.NewMemory()
	graph := NewGraph(mem.Edges())
	users := newUsers(t, mem, 1)

	_, err := graph.Activate(users[0].ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcurrentPlacementsSplitEvenly(t *testing.T) {
	mem := store.NewMemory()
	graph := NewGraph(mem.Edges())
	sponsor := &domain.User{Username: "sponsor"}
	require.NoError(t, mem.Create(sponsor))

	const n = 40
	referred := make([]*domain.User, n)
	for i := range referred {
		referred[i] = &domain.User{Username: "r" + string(rune('0'+i%10)) + string(rune('a'+i/10))}
		require.NoError(t, mem.Create(referred[i]))
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := graph.Place(sponsor.ID, referred[i].ID)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// The per-sponsor insertion lock keeps the alternation exact even under
	// concurrent referrals: an even number of placements splits evenly.
	edges, err := mem.Edges().ListByReferrer(sponsor.ID)
	require.NoError(t, err)
	require.Len(t, edges, n)
	var left, right int
	for _, e := range edges {
		if e.Side == domain.SideLeft {
			left++
		} else {
			right++
		}
	}
	assert.Equal(t, n/2, left)
	assert.Equal(t, n/2, right)
}
