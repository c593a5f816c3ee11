package domain

import "time"

// Side is the binary slot a referral occupies under its sponsor.
type Side string

const (
	SideLeft  Side = "left"  // Odd placements (1st, 3rd, ...)
	SideRight Side = "right" // Even placements (2nd, 4th, ...)
)

// DefaultCommissionRate is the commission recorded on every new edge.
const DefaultCommissionRate = 0.10

// ReferralEdge records a sponsor -> referred relationship. One edge per
// referred user; IsActive tracks the referred user's activation state.
type ReferralEdge struct {
	ID             uint      `gorm:"primaryKey"`              // Primary key
	ReferrerID     uint      `gorm:"index;not null"`          // Sponsor side of the edge
	ReferredID     uint      `gorm:"uniqueIndex;not null"`    // Referred user, at most one sponsor each
	Side           Side      `gorm:"type:varchar(8)"`         // left or right slot
	IsActive       bool      `gorm:"default:false"`           // Flipped when the referred user's deposit is verified
	CommissionRate float64   `gorm:"default:0.1"`             // Commission rate captured at placement time
	CreatedAt      time.Time // Placement time, defines the alternation order
}
