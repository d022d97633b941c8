package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/storefront/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:"
	// databases from splitting across pool connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// notificationRow is the storage shape of a cached notification.
type notificationRow struct {
	OwnerID   string    `db:"owner_id"`
	ID        string    `db:"id"`
	Type      string    `db:"type"`
	Message   string    `db:"message"`
	Anchor    string    `db:"anchor"`
	Status    string    `db:"status"`
	UserID    string    `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
}

func toNotificationRow(ownerID string, n model.Notification) notificationRow {
	status := model.StatusUnread
	if !n.IsUnread() {
		status = model.StatusRead
	}
	return notificationRow{
		OwnerID:   ownerID,
		ID:        n.ID,
		Type:      string(n.Type),
		Message:   n.Message,
		Anchor:    n.Anchor,
		Status:    string(status),
		UserID:    n.UserID,
		CreatedAt: n.CreatedAt.UTC(),
	}
}

func (r notificationRow) toModel() model.Notification {
	return model.Notification{
		ID:        r.ID,
		Type:      model.NotificationType(r.Type),
		Message:   r.Message,
		Anchor:    r.Anchor,
		Status:    model.ReadStatus(r.Status),
		UserID:    r.UserID,
		CreatedAt: r.CreatedAt,
	}
}

const upsertNotificationSQL = `
	INSERT INTO notifications (
		owner_id, id, type, message, anchor, status, user_id, created_at
	) VALUES (
		:owner_id, :id, :type, :message, :anchor, :status, :user_id, :created_at
	)
	ON CONFLICT(owner_id, id) DO UPDATE SET
		type = excluded.type,
		message = excluded.message,
		anchor = excluded.anchor,
		status = CASE WHEN notifications.status = 'READ' THEN 'READ' ELSE excluded.status END,
		user_id = excluded.user_id,
		created_at = excluded.created_at`

// ReplaceNotifications swaps ownerID's cached set for ns in one transaction.
func (s *SQLiteStore) ReplaceNotifications(
	ctx context.Context,
	ownerID string,
	ns []model.Notification,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE owner_id = ?", ownerID); err != nil {
		return fmt.Errorf("clearing notifications for %s: %w", ownerID, err)
	}

	const insert = `
		INSERT OR REPLACE INTO notifications (
			owner_id, id, type, message, anchor, status, user_id, created_at
		) VALUES (
			:owner_id, :id, :type, :message, :anchor, :status, :user_id, :created_at
		)`

	for _, n := range ns {
		if _, err := tx.NamedExecContext(ctx, insert, toNotificationRow(ownerID, n)); err != nil {
			return fmt.Errorf("inserting notification %s: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// UpsertNotification inserts or updates a single cached notification.
// A cached read status is never downgraded to unread.
func (s *SQLiteStore) UpsertNotification(
	ctx context.Context,
	ownerID string,
	n model.Notification,
) error {
	if _, err := s.db.NamedExecContext(ctx, upsertNotificationSQL, toNotificationRow(ownerID, n)); err != nil {
		return fmt.Errorf("upserting notification %s: %w", n.ID, err)
	}
	return nil
}

// GetNotifications returns ownerID's cached notifications, newest first.
func (s *SQLiteStore) GetNotifications(
	ctx context.Context,
	ownerID string,
) ([]model.Notification, error) {
	return s.selectNotifications(ctx,
		"SELECT * FROM notifications WHERE owner_id = ? ORDER BY created_at DESC, id", ownerID)
}

// GetUnreadNotifications returns ownerID's cached unread notifications,
// newest first.
func (s *SQLiteStore) GetUnreadNotifications(
	ctx context.Context,
	ownerID string,
) ([]model.Notification, error) {
	return s.selectNotifications(ctx,
		"SELECT * FROM notifications WHERE owner_id = ? AND status = 'UNREAD' ORDER BY created_at DESC, id", ownerID)
}

func (s *SQLiteStore) selectNotifications(
	ctx context.Context,
	query string,
	args ...interface{},
) ([]model.Notification, error) {
	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}

	out := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// MarkNotificationRead marks a single cached notification as read.
func (s *SQLiteStore) MarkNotificationRead(
	ctx context.Context,
	ownerID, id string,
) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET status = 'READ' WHERE owner_id = ? AND id = ?", ownerID, id,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	return nil
}

// MarkAllNotificationsRead marks every cached notification of ownerID as read.
func (s *SQLiteStore) MarkAllNotificationsRead(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET status = 'READ' WHERE owner_id = ?", ownerID,
	)
	if err != nil {
		return fmt.Errorf("marking notifications of %s as read: %w", ownerID, err)
	}
	return nil
}

// DeleteNotification removes a cached notification.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, ownerID, id string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE owner_id = ? AND id = ?", ownerID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

// chatRow is the storage shape of a scrollback line.
type chatRow struct {
	Seq     int64     `db:"seq"`
	OwnerID string    `db:"owner_id"`
	ID      string    `db:"id"`
	Sender  string    `db:"sender"`
	Text    string    `db:"text"`
	SentAt  time.Time `db:"sent_at"`
}

// AppendChatMessage adds a line to the end of ownerID's scrollback.
func (s *SQLiteStore) AppendChatMessage(
	ctx context.Context,
	ownerID string,
	msg model.ChatMessage,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (owner_id, id, sender, text, sent_at)
		VALUES (?, ?, ?, ?, ?)`,
		ownerID, msg.ID, msg.Sender, msg.Text, msg.SentAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending chat message: %w", err)
	}
	return nil
}

// GetChatMessages returns the last limit lines of ownerID's scrollback in
// insertion order. A non-positive limit returns everything.
func (s *SQLiteStore) GetChatMessages(
	ctx context.Context,
	ownerID string,
	limit int,
) ([]model.ChatMessage, error) {
	query := "SELECT * FROM chat_messages WHERE owner_id = ? ORDER BY seq DESC"
	args := []interface{}{ownerID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows []chatRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying chat messages: %w", err)
	}

	out := make([]model.ChatMessage, len(rows))
	for i, r := range rows {
		// Rows come newest first; flip back to insertion order.
		out[len(rows)-1-i] = model.ChatMessage{
			ID:     r.ID,
			Sender: r.Sender,
			Text:   r.Text,
			SentAt: r.SentAt,
		}
	}
	return out, nil
}

// ClearOwner removes every cached notification and chat line of ownerID.
func (s *SQLiteStore) ClearOwner(ctx context.Context, ownerID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE owner_id = ?", ownerID); err != nil {
		return fmt.Errorf("clearing notifications for %s: %w", ownerID, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM chat_messages WHERE owner_id = ?", ownerID); err != nil {
		return fmt.Errorf("clearing chat for %s: %w", ownerID, err)
	}

	return tx.Commit()
}

// GetValue returns the value stored under key, or ErrNotFound.
func (s *SQLiteStore) GetValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM kv WHERE key = ?", key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("getting value %q: %w", key, err)
	}
	return value, nil
}

// SetValue stores value under key, replacing any previous value.
func (s *SQLiteStore) SetValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting value %q: %w", key, err)
	}
	return nil
}

// DeleteValue removes key. Deleting a missing key is not an error.
func (s *SQLiteStore) DeleteValue(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting value %q: %w", key, err)
	}
	return nil
}

// valueTimeout bounds the context-free Values adapter calls.
const valueTimeout = 5 * time.Second

// Values adapts the key/value table to a context-free Get/Set/Delete API,
// the shape the session token store expects from its backends.
type Values struct {
	s Store
}

// NewValues returns a Values adapter over s.
func NewValues(s Store) *Values {
	return &Values{s: s}
}

// Get returns the value under key, or ErrNotFound.
func (v *Values) Get(key string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), valueTimeout)
	defer cancel()
	return v.s.GetValue(ctx, key)
}

// Set stores value under key.
func (v *Values) Set(key, value string) error {
	ctx, cancel := context.WithTimeout(context.Background(), valueTimeout)
	defer cancel()
	return v.s.SetValue(ctx, key, value)
}

// Delete removes key.
func (v *Values) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), valueTimeout)
	defer cancel()
	return v.s.DeleteValue(ctx, key)
}
