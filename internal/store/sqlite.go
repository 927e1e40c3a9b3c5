package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	// Pure-Go sqlite driver registered as "sqlite".
	_ "modernc.org/sqlite"

	"github.com/dispatchworks/alarmhub/internal/domain/operation"
)

// SQLiteStore persists operations in a local sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS operations (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	guid             TEXT NOT NULL,
	operation_number TEXT NOT NULL DEFAULT '',
	alarm_at         TEXT NOT NULL DEFAULT '',
	income_at        TEXT NOT NULL DEFAULT '',
	messenger        TEXT NOT NULL DEFAULT '',
	priority         TEXT NOT NULL DEFAULT '',
	comment          TEXT NOT NULL DEFAULT '',
	picture          TEXT NOT NULL DEFAULT '',
	plan             TEXT NOT NULL DEFAULT '',
	einsatzort       TEXT NOT NULL DEFAULT '{}',
	zielort          TEXT NOT NULL DEFAULT '{}',
	keywords         TEXT NOT NULL DEFAULT '{}',
	loops            TEXT NOT NULL DEFAULT '',
	resources        TEXT NOT NULL DEFAULT '[]',
	custom_data      TEXT NOT NULL DEFAULT '{}',
	acknowledged     INTEGER NOT NULL DEFAULT 0
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_operations_number
	ON operations (operation_number COLLATE NOCASE)
	WHERE operation_number <> '';
`

const operationColumns = `id, guid, operation_number, alarm_at, income_at,
	messenger, priority, comment, picture, plan,
	einsatzort, zielort, keywords, loops, resources, custom_data, acknowledged`

// NewSQLiteStore opens (and if necessary creates) the database at path.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// The engine serializes writes; a single connection avoids
	// SQLITE_BUSY churn from concurrent readers in async jobs.
	db.SetMaxOpenConns(1)

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Exists reports whether an operation with the number is already stored.
func (s *SQLiteStore) Exists(ctx context.Context, operationNumber string) (bool, error) {
	if operationNumber == "" {
		return false, nil
	}

	var found bool

	row := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM operations WHERE operation_number = ? COLLATE NOCASE)`,
		operationNumber)
	if err := row.Scan(&found); err != nil {
		return false, fmt.Errorf("query operation number: %w", err)
	}

	return found, nil
}

// Store persists the operation and returns a copy carrying the assigned ID.
func (s *SQLiteStore) Store(ctx context.Context, op *operation.Operation) (*operation.Operation, error) {
	einsatzort, err := json.Marshal(op.Einsatzort)
	if err != nil {
		return nil, fmt.Errorf("encode einsatzort: %w", err)
	}

	zielort, err := json.Marshal(op.Zielort)
	if err != nil {
		return nil, fmt.Errorf("encode zielort: %w", err)
	}

	keywords, err := json.Marshal(op.Keywords)
	if err != nil {
		return nil, fmt.Errorf("encode keywords: %w", err)
	}

	resources, err := json.Marshal(op.Resources)
	if err != nil {
		return nil, fmt.Errorf("encode resources: %w", err)
	}

	customData, err := json.Marshal(op.CustomData)
	if err != nil {
		return nil, fmt.Errorf("encode custom data: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (guid, operation_number, alarm_at, income_at,
			messenger, priority, comment, picture, plan,
			einsatzort, zielort, keywords, loops, resources, custom_data, acknowledged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.GUID, op.Number, encodeTime(op.AlarmAt), encodeTime(op.IncomeAt),
		op.Messenger, op.Priority, op.Comment, op.Picture, op.Plan,
		string(einsatzort), string(zielort), string(keywords),
		op.Loops.String(), string(resources), string(customData), op.Acknowledged)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateNumber
		}

		return nil, fmt.Errorf("insert operation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	stored := op.Clone()
	stored.ID = id

	return stored, nil
}

// Get loads an operation by its ID.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (*operation.Operation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM operations WHERE id = ?`, id)

	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return op, nil
}

// Acknowledge marks the operation as handled.
func (s *SQLiteStore) Acknowledge(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE operations SET acknowledged = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("acknowledge operation: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// List returns the most recent operations, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]*operation.Operation, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var all []*operation.Operation

	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}

		all = append(all, op)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operations: %w", err)
	}

	return all, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*operation.Operation, error) {
	var (
		op                    operation.Operation
		alarmAt, incomeAt     string
		einsatzort, zielort   string
		keywords, loops       string
		resources, customData string
	)

	err := row.Scan(&op.ID, &op.GUID, &op.Number, &alarmAt, &incomeAt,
		&op.Messenger, &op.Priority, &op.Comment, &op.Picture, &op.Plan,
		&einsatzort, &zielort, &keywords, &loops, &resources, &customData,
		&op.Acknowledged)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("scan operation: %w", err)
	}

	if op.AlarmAt, err = decodeTime(alarmAt); err != nil {
		return nil, fmt.Errorf("decode alarm timestamp: %w", err)
	}

	if op.IncomeAt, err = decodeTime(incomeAt); err != nil {
		return nil, fmt.Errorf("decode income timestamp: %w", err)
	}

	if err = json.Unmarshal([]byte(einsatzort), &op.Einsatzort); err != nil {
		return nil, fmt.Errorf("decode einsatzort: %w", err)
	}

	if err = json.Unmarshal([]byte(zielort), &op.Zielort); err != nil {
		return nil, fmt.Errorf("decode zielort: %w", err)
	}

	if err = json.Unmarshal([]byte(keywords), &op.Keywords); err != nil {
		return nil, fmt.Errorf("decode keywords: %w", err)
	}

	if err = json.Unmarshal([]byte(resources), &op.Resources); err != nil {
		return nil, fmt.Errorf("decode resources: %w", err)
	}

	if err = json.Unmarshal([]byte(customData), &op.CustomData); err != nil {
		return nil, fmt.Errorf("decode custom data: %w", err)
	}

	op.Loops = operation.ParseLoopList(loops)

	return &op, nil
}

func encodeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func decodeTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}

	return time.Parse(time.RFC3339Nano, s)
}

// isUniqueViolation detects the unique index on the operation number.
// The driver does not expose typed errors for constraint failures.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
