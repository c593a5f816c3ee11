package referral

import (
	"fmt"
	"sort"

	"referral_system/internal/domain"
	"referral_system/internal/ledger"
	"referral_system/internal/lock"
	"referral_system/internal/store"

	"github.com/sirupsen/logrus"
)

// AchievedTier is one newly unlocked level with its credited reward.
type AchievedTier struct {
	Level  int     `json:"level"`
	Reward float64 `json:"reward"`
}

// Evaluation is the result of one reward evaluation for a sponsor.
type Evaluation struct {
	LeftCount      int64           `json:"left_count"`
	RightCount     int64           `json:"right_count"`
	AchievedLevels domain.LevelSet `json:"achieved_levels"`
	NewlyAchieved  []AchievedTier  `json:"newly_achieved"`
	Balance        float64         `json:"balance"`
}

// Engine evaluates the tier table against a sponsor's active referral counts
// and credits newly reached tiers exactly once. Achievement is gated on
// membership in the user's achieved-level set, which is updated before
// Evaluate returns, so back-to-back calls with unchanged edges award nothing
// the second time.
type Engine struct {
	users  store.UserStore
	edges  store.EdgeStore
	ledger *ledger.Ledger
	tiers  []Tier
	locks  *lock.KeyedMutex // Serializes the check-and-append per sponsor
}

// NewEngine builds an Engine with the given tier table. The table is copied
// and sorted ascending by level. Pass DefaultTiers for production.
func NewEngine(users store.UserStore, edges store.EdgeStore, l *ledger.Ledger, tiers []Tier) *Engine {
	sorted := append([]Tier{}, tiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	return &Engine{
		users:  users,
		edges:  edges,
		ledger: l,
		tiers:  sorted,
		locks:  lock.NewKeyedMutex(),
	}
}

// Evaluate recomputes the sponsor's active side counts, credits every tier
// that is newly satisfied in ascending level order, and persists the grown
// achievement set in a single field-scoped write. Idempotent: safe to invoke
// from both the user-initiated check and the post-activation cascade.
func (e *Engine) Evaluate(sponsorID uint) (*Evaluation, error) {
	e.locks.Lock(sponsorID)
	defer e.locks.Unlock(sponsorID)

	sponsor, err := e.users.ByID(sponsorID)
	if err != nil {
		return nil, err
	}
	left, right, err := e.edges.CountActiveBySide(sponsorID)
	if err != nil {
		return nil, err
	}

	var newly []AchievedTier
	levels := sponsor.AchievedLevels
	for _, tier := range e.tiers {
		if levels.Contains(tier.Level) {
			continue // Already credited, levels are never revoked
		}
		if left < int64(tier.LeftRequired) || right < int64(tier.RightRequired) {
			continue
		}
		desc := fmt.Sprintf("Level %d reward %.2f (left %d/%d, right %d/%d)",
			tier.Level, tier.Reward, left, tier.LeftRequired, right, tier.RightRequired)
		if _, err := e.ledger.Credit(sponsorID, tier.Reward, domain.TxLevelReward, desc); err != nil {
			return nil, err
		}
		levels = levels.Add(tier.Level)
		newly = append(newly, AchievedTier{Level: tier.Level, Reward: tier.Reward})
		logrus.WithFields(logrus.Fields{
			"sponsor_id": sponsorID,
			"level":      tier.Level,
			"reward":     tier.Reward,
			"left":       left,
			"right":      right,
		}).Info("Level reward credited")
	}

	if len(newly) > 0 {
		// Write only the grown level set; the balance belongs to the ledger
		// and may move concurrently. Re-read for the post-credit balance.
		if err := e.users.UpdateAchievedLevels(sponsorID, levels); err != nil {
			return nil, err
		}
		sponsor, err = e.users.ByID(sponsorID)
		if err != nil {
			return nil, err
		}
	}

	return &Evaluation{
		LeftCount:      left,
		RightCount:     right,
		AchievedLevels: levels,
		NewlyAchieved:  newly,
		Balance:        sponsor.Balance,
	}, nil
}
