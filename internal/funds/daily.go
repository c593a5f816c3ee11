package funds

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"referral_system/internal/apperr"
	"referral_system/internal/domain"
	"referral_system/internal/settings"
)

// SpinDailyReward credits a random amount within the configured daily-reward
// range, once per UTC day. The spin timestamp and lifetime counter live on
// the user record.
func (s *Service) SpinDailyReward(ctx context.Context, userID uint) (*domain.Transaction, error) {
	if s.settings.GetBool(ctx, settings.KeyMaintenanceMode, false) {
		return nil, apperr.Disabled("maintenance mode")
	}
	user, err := s.users.ByID(userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Validation("account is not active")
	}
	now := s.now().UTC()
	if last := user.SpinWheelLastUsed; last != nil {
		lastDay := last.UTC().Truncate(24 * time.Hour)
		today := now.Truncate(24 * time.Hour)
		if lastDay.Equal(today) {
			return nil, apperr.Conflict("daily reward already claimed today")
		}
	}

	vals := s.settings.GetMany(ctx,
		[]string{settings.KeyMinDailyReward, settings.KeyMaxDailyReward},
		settings.Defaults)
	min := floatValue(vals[settings.KeyMinDailyReward])
	max := floatValue(vals[settings.KeyMaxDailyReward])
	if max < min {
		max = min
	}
	amount := min + rand.Float64()*(max-min)

	tx, err := s.ledger.Credit(userID, amount, domain.TxDailyReward,
		fmt.Sprintf("Daily spin reward %.2f", amount))
	if err != nil {
		return nil, err
	}
	// Write only the spin fields; the balance belongs to the ledger and may
	// move concurrently.
	if err := s.users.UpdateSpinState(userID, now); err != nil {
		return nil, err
	}
	return tx, nil
}
