package referral

// Tier is one row of the level-reward table: a sponsor reaching the required
// counts of active direct referrals on each side earns the fixed reward once.
type Tier struct {
	Level         int     // 1..N, ascending
	LeftRequired  int     // Active left referrals required
	RightRequired int     // Active right referrals required
	Reward        float64 // One-time cash reward
}

// DefaultTiers is the production reward table. Thresholds and rewards are
// strictly increasing in level.
var DefaultTiers = []Tier{
	{Level: 1, LeftRequired: 1, RightRequired: 1, Reward: 10},
	{Level: 2, LeftRequired: 3, RightRequired: 3, Reward: 30},
	{Level: 3, LeftRequired: 7, RightRequired: 7, Reward: 80},
	{Level: 4, LeftRequired: 15, RightRequired: 15, Reward: 200},
	{Level: 5, LeftRequired: 30, RightRequired: 30, Reward: 500},
}
