package domain

import "time"

// TxType classifies a balance-affecting event.
type TxType string

const (
	TxDeposit     TxType = "deposit"      // Deposit credit
	TxWithdrawal  TxType = "withdrawal"   // Withdrawal debit
	TxReferral    TxType = "referral"     // Referral commission
	TxDailyReward TxType = "daily_reward" // Daily spin reward
	TxBonus       TxType = "bonus"        // Manual/admin bonus
	TxLevelReward TxType = "level_reward" // Level achievement reward
)

// TxStatus is the lifecycle state of a transaction. Records only ever move
// pending -> completed/rejected/cancelled; completed records are final.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxCompleted TxStatus = "completed"
	TxRejected  TxStatus = "rejected"
	TxCancelled TxStatus = "cancelled"
)

// Transaction Model — append-only audit record for every balance mutation.
type Transaction struct {
	ID              uint       `gorm:"primaryKey"`                       // Primary key
	UserID          uint       `gorm:"index;not null"`                   // Owning user
	Type            TxType     `gorm:"type:varchar(16)"`                 // Transaction type
	Amount          float64    `gorm:"not null"`                         // Amount of the transaction
	Status          TxStatus   `gorm:"type:varchar(16);default:pending"` // Lifecycle status
	Description     string     // Human-readable context (level, counts, reward)
	Reference       string     `gorm:"uniqueIndex"` // UUID reference for external reconciliation
	TransactionHash string     // Opaque payment hash, never validated on-chain
	WalletAddress   string     // Destination address for withdrawals
	ProcessedBy     *uint      // Admin who resolved the transaction
	ProcessedAt     *time.Time // When the transaction was resolved
	CreatedAt       int64      `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}
