// Package model defines the domain types used across the application.
package model

import "time"

// DateLayout is the canonical calendar-date format for Entry.Date.
const DateLayout = "2006-01-02"

// DeletionReason records why an entry was soft-deleted.
type DeletionReason string

// Supported deletion reasons.
const (
	ReasonManual    DeletionReason = "manual"
	ReasonExpired   DeletionReason = "expired"
	ReasonDuplicate DeletionReason = "duplicate"
)

// Entry represents one availability announcement: a person flying from
// Departure to Arrival on Date. Entries imported from an old board have a
// nil UserID until a user with a matching username claims them.
type Entry struct {
	ID           int64
	UserID       *int64 // nil = imported, not yet claimed
	Username     string // display handle as submitted; matched case-insensitively
	Date         string // YYYY-MM-DD
	Departure    string // 3-letter uppercase airport code
	Arrival      string // 3-letter uppercase airport code
	OriginalText string // literal command text, echoed back in error replies
	ExpiresAt    time.Time
	CreatedAt    time.Time
	DeletedAt    *time.Time
	DeleteReason DeletionReason // empty while active
}

// LastMessage tracks the most recently published board message per chat.
// Exactly one row per chat, overwritten on every republish.
type LastMessage struct {
	ChatID    int64
	MessageID int
	UpdatedAt time.Time
}
