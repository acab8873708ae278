package events

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"
)

// DirectReferrer is the sentinel stored when the client arrived with no
// referrer at all.
const DirectReferrer = "direct"

// AnalyticsEvent represents a single recorded page view. Events are
// append-only: once written they are never mutated or deleted individually,
// only a bulk reset may purge the log.
type AnalyticsEvent struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	PagePath   string    `gorm:"index;not null" json:"page_path"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"`
	Hour       int       `gorm:"not null" json:"hour"`
	DayOfWeek  int       `gorm:"not null" json:"day_of_week"`
	Referrer   string    `json:"referrer"`
	UserAgent  string    `json:"user_agent"`
	DeviceType string    `gorm:"index" json:"device_type"`
	Browser    string    `gorm:"index" json:"browser"`
	OS         string    `json:"os"`
	UserID     string    `gorm:"index;size:64" json:"user_id"`
	VisitCount int       `json:"visit_count"`
	FirstVisit time.Time `json:"first_visit"`
}

// ConversionEvent represents a designated high-value action, logged
// separately from page views. The identity fields are captured the same way
// as on AnalyticsEvent, at the moment the conversion occurs.
type ConversionEvent struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	PagePath   string    `gorm:"index" json:"page_path"`
	Timestamp  time.Time `gorm:"index;not null" json:"timestamp"`
	Referrer   string    `json:"referrer"`
	UserID     string    `gorm:"index;size:64" json:"user_id"`
	VisitCount int       `json:"visit_count"`
	FirstVisit time.Time `json:"first_visit"`
}

// NewEventID builds a unique, monotonic-enough event token derived from the
// event timestamp. Collisions within the same millisecond are averted by a
// short random suffix; uniqueness is not otherwise enforced.
func NewEventID(t time.Time) string {
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return strconv.FormatInt(t.UnixMilli(), 36) + "-" + hex.EncodeToString(suffix)
}
