package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/itiky/educhain-dao/model"
)

const journalTimeLayout = time.RFC3339Nano

// SQLJournal implements Journal on top of a SQLite database.
type SQLJournal struct {
	db *sql.DB
}

// Append implements Journal interface.
// All the operations are written within a single transaction.
func (j *SQLJournal) Append(ctx context.Context, ops ...Operation) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	for i, op := range ops {
		opType, raw, err := marshalOperation(op)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("op[%d]: %w", i, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO journal (op_type, payload, principal, created_at) VALUES (?, ?, ?, ?)`,
			string(opType), string(raw), string(op.GetPrincipal()), op.GetTimestamp().UTC().Format(journalTimeLayout),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("op[%d] (%s): insert: %w", i, opType, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Replay implements Journal interface.
func (j *SQLJournal) Replay(ctx context.Context, fn func(op Operation) error) error {
	rows, err := j.db.QueryContext(ctx, `SELECT seq, op_type, payload FROM journal ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq     int64
			opType  string
			payload string
		)
		if err := rows.Scan(&seq, &opType, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}

		op, err := unmarshalOperation(model.OperationType(opType), []byte(payload))
		if err != nil {
			return fmt.Errorf("journal[%d]: %w", seq, err)
		}
		if err := fn(op); err != nil {
			return fmt.Errorf("journal[%d]: %w", seq, err)
		}
	}

	return rows.Err()
}

// Close implements Journal interface.
func (j *SQLJournal) Close() error {
	return j.db.Close()
}

func (j *SQLJournal) migrate(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS journal (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		op_type    TEXT    NOT NULL,
		payload    TEXT    NOT NULL,
		principal  TEXT    NOT NULL DEFAULT '',
		created_at TEXT    NOT NULL
	);`

	_, err := j.db.ExecContext(ctx, schema)
	return err
}

// OpenSQLJournal opens (or creates) a SQLite journal database.
func OpenSQLJournal(ctx context.Context, dbPath string) (*SQLJournal, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%s: empty", "dbPath")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open DB: %w", err)
	}

	// Busy timeout avoids "database is locked" on concurrent writers
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	j := &SQLJournal{db: db}
	if err := j.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return j, nil
}
