package domain

import (
	"database/sql/driver" // Valuer/Scanner interfaces for custom column types
	"encoding/json"       // JSON (de)serialization of the level set
	"errors"              // Error values
	"sort"                // Keeping the level set ordered
	"time"                // Timestamps
)

// LevelSet is the set of reward levels a user has achieved, stored as a JSON
// array column. Levels are only ever added, never removed. A NULL or empty
// column reads as the empty set so legacy rows behave the same as new ones.
type LevelSet []int

// Contains reports whether level is already in the set.
func (s LevelSet) Contains(level int) bool {
	for _, l := range s {
		if l == level {
			return true // Level already achieved
		}
	}
	return false
}

// Add returns the set with level appended, kept in ascending order.
func (s LevelSet) Add(level int) LevelSet {
	if s.Contains(level) {
		return s // Already present, no change
	}
	out := append(append(LevelSet{}, s...), level)
	sort.Ints(out)
	return out
}

// Value implements driver.Valuer so gorm can persist the set as JSON text.
func (s LevelSet) Value() (driver.Value, error) {
	if s == nil {
		s = LevelSet{} // Persist the empty set, never NULL
	}
	b, err := json.Marshal(s)
	return string(b), err
}

// Scan implements sql.Scanner; NULL and empty columns become the empty set.
func (s *LevelSet) Scan(src any) error {
	if src == nil {
		*s = LevelSet{} // Legacy rows without the column
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("unsupported source type for LevelSet")
	}
	if len(b) == 0 {
		*s = LevelSet{} // Empty column, treat as empty set
		return nil
	}
	return json.Unmarshal(b, s)
}

// User Model
type User struct {
	ID                          uint       `gorm:"primaryKey"`         // Primary key
	Username                    string     `gorm:"unique;not null"`    // Unique username
	Password                    string     `gorm:"not null" json:"-"`  // Hashed password
	Role                        string     `gorm:"default:user"`       // Role: user or admin
	Balance                     float64    `gorm:"not null;default:0"` // Current balance
	TotalDeposits               float64    `gorm:"not null;default:0"` // Lifetime approved deposits
	TotalWithdrawals            float64    `gorm:"not null;default:0"` // Lifetime approved withdrawals
	ReferralCode                string     `gorm:"uniqueIndex"`        // Unique code handed to invitees
	ReferredByID                *uint      `gorm:"index"`              // Sponsor user ID, nil for root users
	IsActive                    bool       `gorm:"default:false"`      // Set when registration deposit is verified
	RegistrationDepositPaid     bool       `gorm:"default:false"`      // Registration deposit submitted once
	RegistrationDepositVerified bool       `gorm:"default:false"`      // Registration deposit approved by admin
	AchievedLevels              LevelSet   `gorm:"type:text"`          // Reward levels already credited, never shrinks
	SpinWheelLastUsed           *time.Time // Last daily spin timestamp
	SpinWheelCount              int        `gorm:"default:0"` // Lifetime daily spin count
	CreatedAt                   time.Time  // Account creation time, anchors the withdrawal lock period
}
