package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"flightboard_bot/internal/model"
	"flightboard_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB

	// now supplies the current time for every expiry comparison; tests
	// override it to pin the clock.
	now func() time.Time
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SetNow overrides the store's time source. Tests use it to pin the clock
// that drives every expiry comparison.
func (s *SQLite) SetNow(now func() time.Time) {
	s.now = now
}

// AddEntry inserts a new entry and populates its ID and CreatedAt. For a
// claimed entry (non-nil UserID) the quota and uniqueness checks run inside
// the same transaction as the insert; imports (nil UserID) bypass both.
func (s *SQLite) AddEntry(ctx context.Context, entry *model.Entry) error {
	now := s.now().UTC()
	nowStr := now.Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Lazily retire anything already past its expiry so stale rows never
	// count toward the quota or block the uniqueness check.
	if _, err := sweepExpired(ctx, tx, nowStr); err != nil {
		return err
	}

	if entry.UserID != nil {
		var count int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM entries WHERE user_id = ? AND deleted_at IS NULL`,
			*entry.UserID,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("count user entries: %w", err)
		}
		if count >= MaxEntriesPerUser {
			return &QuotaExceededError{OriginalText: entry.OriginalText, Limit: MaxEntriesPerUser}
		}

		var dup int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM entries
			 WHERE user_id = ? AND date = ? AND departure = ? AND arrival = ?
			   AND deleted_at IS NULL`,
			*entry.UserID, entry.Date, entry.Departure, entry.Arrival,
		).Scan(&dup)
		if err != nil {
			return fmt.Errorf("check duplicate: %w", err)
		}
		if dup > 0 {
			return &DuplicateEntryError{
				OriginalText: entry.OriginalText,
				Date:         entry.Date,
				Departure:    entry.Departure,
				Arrival:      entry.Arrival,
			}
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO entries (user_id, username, date, departure, arrival, original_text, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.UserID, entry.Username, entry.Date, entry.Departure, entry.Arrival,
		entry.OriginalText, entry.ExpiresAt.UTC().Format(timeLayout), nowStr,
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	entry.ID = id
	entry.CreatedAt, _ = time.Parse(timeLayout, nowStr)
	return nil
}

// RemoveEntry soft-deletes the single matching active entry and reports
// whether a row was affected.
func (s *SQLite) RemoveEntry(ctx context.Context, userID int64, date, departure, arrival string, reason model.DeletionReason) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entries SET deleted_at = ?, delete_reason = ?
		 WHERE user_id = ? AND date = ? AND departure = ? AND arrival = ?
		   AND deleted_at IS NULL`,
		s.now().UTC().Format(timeLayout), string(reason), userID, date, departure, arrival,
	)
	if err != nil {
		return false, fmt.Errorf("remove entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ClearEntries soft-deletes all of a user's active entries and returns the
// count affected.
func (s *SQLite) ClearEntries(ctx context.Context, userID int64, reason model.DeletionReason) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE entries SET deleted_at = ?, delete_reason = ?
		 WHERE user_id = ? AND deleted_at IS NULL`,
		s.now().UTC().Format(timeLayout), string(reason), userID,
	)
	if err != nil {
		return 0, fmt.Errorf("clear entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ListActive returns all active, non-expired entries sorted by date then
// departure. A lazy expiry sweep runs first so a stale entry never leaks
// through a read even when the scheduler has not fired yet.
func (s *SQLite) ListActive(ctx context.Context) ([]model.Entry, error) {
	return s.listActive(ctx, nil)
}

// ListUserActive returns the given user's active, non-expired entries in
// board order.
func (s *SQLite) ListUserActive(ctx context.Context, userID int64) ([]model.Entry, error) {
	return s.listActive(ctx, &userID)
}

func (s *SQLite) listActive(ctx context.Context, userID *int64) ([]model.Entry, error) {
	nowStr := s.now().UTC().Format(timeLayout)
	if _, err := sweepExpired(ctx, s.db, nowStr); err != nil {
		return nil, err
	}

	query := `SELECT id, user_id, username, date, departure, arrival, original_text,
	                 expires_at, created_at, deleted_at, delete_reason
	          FROM entries
	          WHERE deleted_at IS NULL AND expires_at > ?`
	args := []any{nowStr}
	if userID != nil {
		query += ` AND user_id = ?`
		args = append(args, *userID)
	}
	query += ` ORDER BY date(date) ASC, departure ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanEntries(rows)
}

// ClaimImports attributes unclaimed imported entries with a matching
// username (case-insensitive) to the given user and returns the count
// claimed. Imported boards may carry the same line twice, and a line may
// collide with an entry the user already holds, so claiming takes one row
// per distinct (date, departure, arrival) tuple not already held and
// retires the leftover copies.
func (s *SQLite) ClaimImports(ctx context.Context, userID int64, username string) (int64, error) {
	nowStr := s.now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Retire expired claimed rows first so a stale held tuple does not
	// block its imported copy from being claimed.
	if _, err := sweepExpired(ctx, tx, nowStr); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE entries SET user_id = ?
		 WHERE id IN (
		   SELECT MIN(id) FROM entries
		   WHERE user_id IS NULL AND deleted_at IS NULL
		     AND username = ? COLLATE NOCASE
		     AND NOT EXISTS (
		       SELECT 1 FROM entries held
		       WHERE held.user_id = ? AND held.deleted_at IS NULL
		         AND held.date = entries.date
		         AND held.departure = entries.departure
		         AND held.arrival = entries.arrival
		     )
		   GROUP BY date, departure, arrival
		 )`,
		userID, username, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("claim imports: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	// Whatever is still unclaimed under this username duplicates a row the
	// user now holds.
	if _, err := tx.ExecContext(ctx,
		`UPDATE entries SET deleted_at = ?, delete_reason = ?
		 WHERE user_id IS NULL AND deleted_at IS NULL
		   AND username = ? COLLATE NOCASE`,
		nowStr, string(model.ReasonDuplicate), username,
	); err != nil {
		return 0, fmt.Errorf("retire duplicate imports: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// PurgeExpired soft-deletes every claimed entry whose expiry instant has
// passed and returns the count removed. Unclaimed imports are left alone;
// they stay hidden by the read filter until claimed or manually removed.
func (s *SQLite) PurgeExpired(ctx context.Context) (int64, error) {
	return sweepExpired(ctx, s.db, s.now().UTC().Format(timeLayout))
}

// execer covers *sql.DB and *sql.Tx for the shared sweep statement.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func sweepExpired(ctx context.Context, db execer, nowStr string) (int64, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE entries SET deleted_at = ?, delete_reason = ?
		 WHERE deleted_at IS NULL AND user_id IS NOT NULL AND expires_at <= ?`,
		nowStr, string(model.ReasonExpired), nowStr,
	)
	if err != nil {
		return 0, fmt.Errorf("sweep expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// SetLastMessage records the most recently published board message for a
// chat, overwriting any previous row.
func (s *SQLite) SetLastMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO last_messages (chat_id, message_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET message_id = excluded.message_id, updated_at = excluded.updated_at`,
		chatID, messageID, s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("set last message: %w", err)
	}
	return nil
}

// GetLastMessage returns the last published board message for a chat, or
// (nil, nil) when none has been recorded.
func (s *SQLite) GetLastMessage(ctx context.Context, chatID int64) (*model.LastMessage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT chat_id, message_id, updated_at FROM last_messages WHERE chat_id = ?`, chatID,
	)
	var m model.LastMessage
	var updated string
	err := row.Scan(&m.ChatID, &m.MessageID, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan last message: %w", err)
	}
	m.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &m, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (*model.Entry, error) {
	var e model.Entry
	var userID sql.NullInt64
	var expires, created string
	var deleted, reason sql.NullString
	err := row.Scan(&e.ID, &userID, &e.Username, &e.Date, &e.Departure, &e.Arrival,
		&e.OriginalText, &expires, &created, &deleted, &reason)
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	if userID.Valid {
		v := userID.Int64
		e.UserID = &v
	}
	e.ExpiresAt, _ = time.Parse(timeLayout, expires)
	e.CreatedAt, _ = time.Parse(timeLayout, created)
	if deleted.Valid {
		t, _ := time.Parse(timeLayout, deleted.String)
		e.DeletedAt = &t
	}
	if reason.Valid {
		e.DeleteReason = model.DeletionReason(reason.String)
	}
	return &e, nil
}

func scanEntries(rows *sql.Rows) ([]model.Entry, error) {
	var entries []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
