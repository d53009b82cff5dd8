package models

import "time"

// Challenge is a numeric goal a streamer tracks on their overlay,
// e.g. "100 new followers". CurrentValue is capped at MaxValue by the
// store's mutation operations, not by the schema.
type Challenge struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"index;not null" json:"user_id"`
	Title        string     `gorm:"size:255;not null" json:"title"`
	MaxValue     int        `gorm:"not null;default:1" json:"maxValue"`
	CurrentValue int        `gorm:"not null;default:0" json:"currentValue"`
	EndDate      *time.Time `json:"endDate"`
	IsActive     bool       `gorm:"default:false" json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Remaining returns how far the challenge is from its target.
func (c Challenge) Remaining() int {
	if r := c.MaxValue - c.CurrentValue; r > 0 {
		return r
	}
	return 0
}

// Completed reports whether the target has been reached.
func (c Challenge) Completed() bool {
	return c.CurrentValue >= c.MaxValue
}
