package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}
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

// SetClock replaces the time source used for read and delivery stamps.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
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

// Publish stores msg and delivers it to every user in userIDs.
func (s *SQLiteStore) Publish(
	ctx context.Context,
	msg Message,
	userIDs []int64,
) (Message, error) {
	if msg.Type.Name == "" {
		return Message{}, errors.New("publishing message: type name is required")
	}
	if msg.Type.Renderer == "" {
		return Message{}, fmt.Errorf("publishing message: type %s has no renderer", msg.Type.Name)
	}
	if msg.Created.IsZero() {
		msg.Created = s.now()
	}
	msg.Created = msg.Created.UTC()
	if msg.Payload == nil {
		msg.Payload = map[string]any{}
	}

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshaling payload: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO msg_types (name, renderer) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET renderer = excluded.renderer`,
		msg.Type.Name, msg.Type.Renderer,
	)
	if err != nil {
		return Message{}, fmt.Errorf("registering type %s: %w", msg.Type.Name, err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (namespace, msg_type, payload, created_at)
		VALUES (?, ?, ?, ?)`,
		msg.Namespace, msg.Type.Name, string(payload), msg.Created,
	)
	if err != nil {
		return Message{}, fmt.Errorf("inserting message: %w", err)
	}
	msg.ID, err = res.LastInsertId()
	if err != nil {
		return Message{}, fmt.Errorf("reading message id: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT OR IGNORE INTO user_notifications (user_id, msg_id, created_at)
		VALUES (?, ?, ?)`)
	if err != nil {
		return Message{}, fmt.Errorf("preparing delivery statement: %w", err)
	}
	defer stmt.Close()

	for _, uid := range userIDs {
		if _, err := stmt.ExecContext(ctx, uid, msg.ID, msg.Created); err != nil {
			return Message{}, fmt.Errorf("delivering message %d to user %d: %w", msg.ID, uid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("committing message %d: %w", msg.ID, err)
	}
	return msg, nil
}

// notificationRow is the joined shape of a user notification.
type notificationRow struct {
	ID           int64        `db:"id"`
	UserID       int64        `db:"user_id"`
	ReadAt       sql.NullTime `db:"read_at"`
	CreatedAt    time.Time    `db:"created_at"`
	MsgID        int64        `db:"msg_id"`
	Namespace    string       `db:"namespace"`
	TypeName     string       `db:"type_name"`
	Renderer     string       `db:"renderer"`
	Payload      string       `db:"payload"`
	MsgCreatedAt time.Time    `db:"msg_created_at"`
}

const selectNotifications = `
	SELECT
		un.id, un.user_id, un.read_at, un.created_at,
		m.id AS msg_id, m.namespace, m.payload, m.created_at AS msg_created_at,
		t.name AS type_name, t.renderer
	FROM user_notifications un
	JOIN messages m ON m.id = un.msg_id
	JOIN msg_types t ON t.name = m.msg_type`

// where builds the WHERE clause shared by list and count queries.
func (f NotificationFilter) where(userID int64) (string, []any, error) {
	if !f.Read && !f.Unread {
		return "", nil, ErrInvalidFilter
	}

	conditions := []string{"un.user_id = ?"}
	args := []any{userID}

	switch {
	case f.Read && !f.Unread:
		conditions = append(conditions, "un.read_at IS NOT NULL")
	case f.Unread && !f.Read:
		conditions = append(conditions, "un.read_at IS NULL")
	}
	if f.Namespace != nil {
		conditions = append(conditions, "m.namespace = ?")
		args = append(args, *f.Namespace)
	}
	if f.TypeName != nil {
		conditions = append(conditions, "m.msg_type = ?")
		args = append(args, *f.TypeName)
	}

	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}

// Notifications lists a user's notifications, newest first.
func (s *SQLiteStore) Notifications(
	ctx context.Context,
	userID int64,
	filter NotificationFilter,
) ([]UserNotification, error) {
	where, args, err := filter.where(userID)
	if err != nil {
		return nil, err
	}

	query := selectNotifications + where + " ORDER BY m.created_at DESC, m.id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}

	out := make([]UserNotification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toNotification()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// CountNotifications counts a user's notifications matching filter,
// ignoring its pagination.
func (s *SQLiteStore) CountNotifications(
	ctx context.Context,
	userID int64,
	filter NotificationFilter,
) (int, error) {
	where, args, err := filter.where(userID)
	if err != nil {
		return 0, err
	}

	query := `
		SELECT COUNT(*)
		FROM user_notifications un
		JOIN messages m ON m.id = un.msg_id` + where

	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return count, nil
}

// Notification returns the user's copy of message msgID.
func (s *SQLiteStore) Notification(
	ctx context.Context,
	userID, msgID int64,
) (*UserNotification, error) {
	var row notificationRow
	err := s.db.GetContext(ctx, &row,
		selectNotifications+" WHERE un.user_id = ? AND un.msg_id = ?",
		userID, msgID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification %d: %w", msgID, err)
	}

	n, err := row.toNotification()
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// SetRead marks the user's copy of message msgID read or unread. Marking
// an already read notification read keeps its original read time.
func (s *SQLiteStore) SetRead(ctx context.Context, userID, msgID int64, read bool) error {
	var (
		res sql.Result
		err error
	)
	if read {
		res, err = s.db.ExecContext(ctx, `
			UPDATE user_notifications SET read_at = COALESCE(read_at, ?)
			WHERE user_id = ? AND msg_id = ?`,
			s.now().UTC(), userID, msgID,
		)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE user_notifications SET read_at = NULL
			WHERE user_id = ? AND msg_id = ?`,
			userID, msgID,
		)
	}
	if err != nil {
		return fmt.Errorf("marking notification %d: %w", msgID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking notification %d: %w", msgID, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read.
func (s *SQLiteStore) MarkAllRead(
	ctx context.Context,
	userID int64,
	namespace *string,
) (int64, error) {
	query := `
		UPDATE user_notifications SET read_at = ?
		WHERE user_id = ? AND read_at IS NULL`
	args := []any{s.now().UTC(), userID}

	if namespace != nil {
		query += " AND msg_id IN (SELECT id FROM messages WHERE namespace = ?)"
		args = append(args, *namespace)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("marking all notifications read: %w", err)
	}
	return n, nil
}

// MessageTypes lists the registered message types by name.
func (s *SQLiteStore) MessageTypes(ctx context.Context) ([]MessageType, error) {
	var types []MessageType
	if err := s.db.SelectContext(ctx, &types, "SELECT name, renderer FROM msg_types ORDER BY name"); err != nil {
		return nil, fmt.Errorf("querying message types: %w", err)
	}
	return types, nil
}

func (r notificationRow) toNotification() (UserNotification, error) {
	var payload map[string]any
	if r.Payload != "" {
		if err := json.Unmarshal([]byte(r.Payload), &payload); err != nil {
			return UserNotification{}, fmt.Errorf("unmarshaling payload of message %d: %w", r.MsgID, err)
		}
	}

	n := UserNotification{
		ID:      r.ID,
		UserID:  r.UserID,
		Created: r.CreatedAt,
		Message: Message{
			ID:        r.MsgID,
			Namespace: r.Namespace,
			Type:      MessageType{Name: r.TypeName, Renderer: r.Renderer},
			Payload:   payload,
			Created:   r.MsgCreatedAt,
		},
	}
	if r.ReadAt.Valid {
		readAt := r.ReadAt.Time
		n.ReadAt = &readAt
	}
	return n, nil
}
