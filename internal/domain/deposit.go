package domain

import "time"

// RequestStatus is the lifecycle state of a deposit or withdrawal request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Deposit is a user-submitted deposit awaiting admin verification, linked 1:1
// to a pending deposit transaction at creation time. IsRegistrationDeposit
// permanently routes the record through the activation workflow.
type Deposit struct {
	ID                    uint          `gorm:"primaryKey"`                       // Primary key
	UserID                uint          `gorm:"index;not null"`                   // Depositing user
	Amount                float64       `gorm:"not null"`                         // Deposit amount
	Status                RequestStatus `gorm:"type:varchar(16);default:pending"` // Request status
	TransactionID         uint          `gorm:"index"`                            // Linked pending transaction
	IsRegistrationDeposit bool          `gorm:"default:false"`                    // One-time activation deposit flag
	TransactionHash       string        // Opaque payment hash supplied by the user
	ProcessedBy           *uint         // Admin who resolved the request
	ProcessedAt           *time.Time    // When the request was resolved
	CreatedAt             time.Time     // Submission time
}

// Withdrawal is a user-requested payout. The balance is debited optimistically
// at request time and refunded if the request is rejected.
type Withdrawal struct {
	ID            uint          `gorm:"primaryKey"`                       // Primary key
	UserID        uint          `gorm:"index;not null"`                   // Withdrawing user
	Amount        float64       `gorm:"not null"`                         // Withdrawal amount
	WalletAddress string        `gorm:"not null"`                         // Destination address
	Status        RequestStatus `gorm:"type:varchar(16);default:pending"` // Request status
	TransactionID uint          `gorm:"index"`                            // Linked pending transaction
	ProcessedBy   *uint         // Admin who resolved the request
	ProcessedAt   *time.Time    // When the request was resolved
	CreatedAt     time.Time     // Request time
}
