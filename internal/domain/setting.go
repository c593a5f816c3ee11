package domain

import "time"

// Setting is a durable configuration entry. Value is a JSON-encoded payload
// so a single table carries booleans, numbers and strings alike. Rows are
// created lazily on first write or first read-with-default.
type Setting struct {
	ID          uint      `gorm:"primaryKey"`             // Primary key
	Key         string    `gorm:"uniqueIndex;not null"`   // Configuration key
	Value       string    `gorm:"type:text"`              // JSON-encoded value
	Description string    // Operator-facing description
	UpdatedAt   time.Time // Last write time
}
