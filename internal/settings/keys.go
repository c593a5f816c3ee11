package settings

// Configuration keys consumed by the core. Every key has a fallback default
// used (and cached) when the settings table has no row for it.
const (
	KeyWithdrawLockAmount     = "withdrawLockAmount"     // Amount frozen during the lock period
	KeyWithdrawLockDays       = "withdrawLockDays"       // Lock period length in days
	KeyMinDailyReward         = "minDailyReward"         // Daily spin lower bound
	KeyMaxDailyReward         = "maxDailyReward"         // Daily spin upper bound
	KeyDepositsEnabled        = "depositsEnabled"        // Deposit submission toggle
	KeyWithdrawalsEnabled     = "withdrawalsEnabled"     // Withdrawal request toggle
	KeyNewRegistrations       = "newRegistrations"       // Registration toggle
	KeyMaxUsersEnabled        = "maxUsersEnabled"        // Registration cap toggle
	KeyMaxUsersLimit          = "maxUsersLimit"          // Registration cap
	KeyMaintenanceMode        = "maintenanceMode"        // Global write freeze
	KeyMinRegistrationDeposit = "minRegistrationDeposit" // Activation deposit minimum
)

// Defaults maps every known key to its fallback value.
var Defaults = map[string]any{
	KeyWithdrawLockAmount:     500.0,
	KeyWithdrawLockDays:       30,
	KeyMinDailyReward:         0.5,
	KeyMaxDailyReward:         5.0,
	KeyDepositsEnabled:        true,
	KeyWithdrawalsEnabled:     true,
	KeyNewRegistrations:       true,
	KeyMaxUsersEnabled:        false,
	KeyMaxUsersLimit:          10000,
	KeyMaintenanceMode:        false,
	KeyMinRegistrationDeposit: 60.0,
}
