// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"fmt"

	"flightboard_bot/internal/model"
)

// MaxEntriesPerUser is the quota of active entries a claimed user may hold.
const MaxEntriesPerUser = 3

// QuotaExceededError rejects an add for a user already holding the maximum
// number of active entries. OriginalText carries the offending command so
// replies can quote it.
type QuotaExceededError struct {
	OriginalText string
	Limit        int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("maximum %d entries reached", e.Limit)
}

// DuplicateEntryError rejects an add whose (user, date, departure, arrival)
// tuple already exists as an active entry.
type DuplicateEntryError struct {
	OriginalText string
	Date         string
	Departure    string
	Arrival      string
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("entry %s %s %s already exists", e.Date, e.Departure, e.Arrival)
}

// Storage is the interface for all persistence operations. It is the sole
// authority on entry invariants: the per-user quota and the active-tuple
// uniqueness check run inside the same atomic operation as the insert.
type Storage interface {
	AddEntry(ctx context.Context, entry *model.Entry) error
	RemoveEntry(ctx context.Context, userID int64, date, departure, arrival string, reason model.DeletionReason) (bool, error)
	ClearEntries(ctx context.Context, userID int64, reason model.DeletionReason) (int64, error)
	ListActive(ctx context.Context) ([]model.Entry, error)
	ListUserActive(ctx context.Context, userID int64) ([]model.Entry, error)
	ClaimImports(ctx context.Context, userID int64, username string) (int64, error)
	PurgeExpired(ctx context.Context) (int64, error)

	SetLastMessage(ctx context.Context, chatID int64, messageID int) error
	GetLastMessage(ctx context.Context, chatID int64) (*model.LastMessage, error)

	Close() error
}
