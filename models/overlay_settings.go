package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// AssetLinks holds the uploaded asset URLs for the three mutation slots.
// It is persisted as a JSON text column. Historical rows were written both
// as raw JSON objects and as JSON-encoded strings containing JSON, so Scan
// accepts either form; Value always writes the raw-object form.
type AssetLinks struct {
	IncrementURL *string `json:"increment_url"`
	DecrementURL *string `json:"decrement_url"`
	ResetURL     *string `json:"reset_url"`
}

// Value implements driver.Valuer.
func (a AssetLinks) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner, tolerating both object and
// double-encoded string representations.
func (a *AssetLinks) Scan(value interface{}) error {
	if value == nil {
		*a = AssetLinks{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported asset links column type %T", value)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*a = AssetLinks{}
		return nil
	}

	// Double-encoded form: the column holds a JSON string whose content is JSON.
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return fmt.Errorf("decode asset links wrapper: %w", err)
		}
		raw = []byte(inner)
	}

	out := AssetLinks{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode asset links: %w", err)
	}
	*a = out
	return nil
}

// URLFor returns the URL stored for a slot ("increment", "decrement", "reset").
func (a AssetLinks) URLFor(slot string) *string {
	switch slot {
	case "increment":
		return a.IncrementURL
	case "decrement":
		return a.DecrementURL
	case "reset":
		return a.ResetURL
	}
	return nil
}

// WithURL returns a copy with the given slot replaced. A nil url clears the slot.
func (a AssetLinks) WithURL(slot string, url *string) AssetLinks {
	switch slot {
	case "increment":
		a.IncrementURL = url
	case "decrement":
		a.DecrementURL = url
	case "reset":
		a.ResetURL = url
	}
	return a
}

// OverlaySettings is the per-challenge display configuration for the
// browser-source overlay. A nil ChallengeID marks the user's default row.
// Position and size are percentages of the viewport, 0-100.
type OverlaySettings struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	UserID          uint       `gorm:"index;not null" json:"user_id"`
	ChallengeID     *uint      `gorm:"index" json:"challenge_id"`
	PositionX       float64    `json:"position_x"`
	PositionY       float64    `json:"position_y"`
	Width           float64    `json:"width"`
	Height          float64    `json:"height"`
	ReactCode       string     `gorm:"type:text" json:"react_code"`
	ConfettiEnabled bool       `gorm:"default:true" json:"confetti_enabled"`
	SoundEnabled    bool       `gorm:"default:true" json:"sound_enabled"`
	SoundType       AssetLinks `gorm:"type:text" json:"sound_type"`
	ConfettiType    AssetLinks `gorm:"type:text" json:"confetti_type"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
