// Package sqlite persists alert snapshots so the in-memory registry
// survives restarts. The engine core only knows Snapshot/Restore; this
// store is the external durable side of that contract.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"pricewatch/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/alerts.db"
}

// Store is a single-writer SQLite alert store.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database with WAL mode and initializes the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS alerts (
			id           TEXT PRIMARY KEY,
			owner        TEXT    NOT NULL,
			asset        TEXT    NOT NULL,
			cond_type    TEXT    NOT NULL,
			threshold    REAL    NOT NULL,
			kind         TEXT,
			period       INTEGER,
			direction    TEXT,
			state        TEXT    NOT NULL,
			one_shot     INTEGER NOT NULL,
			created_at   INTEGER NOT NULL,
			triggered_at INTEGER,
			last_side    INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_owner ON alerts(owner);
		CREATE INDEX IF NOT EXISTS idx_alerts_asset_state ON alerts(asset, state);
	`)
	return err
}

// SaveAlerts upserts a full registry snapshot in a single transaction.
func (s *Store) SaveAlerts(ctx context.Context, alerts []model.Alert) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO alerts
			(id, owner, asset, cond_type, threshold, kind, period, direction,
			 state, one_shot, created_at, triggered_at, last_side)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, a := range alerts {
		oneShot := 0
		if a.OneShot {
			oneShot = 1
		}
		var triggeredAt int64
		if !a.TriggeredAt.IsZero() {
			triggeredAt = a.TriggeredAt.Unix()
		}
		_, err := stmt.Exec(
			a.ID, a.Owner, a.Asset,
			string(a.Condition.Type), a.Condition.Threshold,
			string(a.Condition.Kind), a.Condition.Period, string(a.Condition.Direction),
			string(a.State), oneShot, a.CreatedAt.Unix(), triggeredAt, int(a.LastSide),
		)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// LoadAlerts reads every stored alert, oldest first.
func (s *Store) LoadAlerts(ctx context.Context) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner, asset, cond_type, threshold, kind, period, direction,
		       state, one_shot, created_at, triggered_at, last_side
		FROM alerts ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var (
			a           model.Alert
			condType    string
			kind        sql.NullString
			period      sql.NullInt64
			direction   sql.NullString
			state       string
			oneShot     int
			createdAt   int64
			triggeredAt sql.NullInt64
			lastSide    int
		)
		if err := rows.Scan(
			&a.ID, &a.Owner, &a.Asset, &condType, &a.Condition.Threshold,
			&kind, &period, &direction, &state, &oneShot, &createdAt, &triggeredAt, &lastSide,
		); err != nil {
			return nil, err
		}
		a.Condition.Type = model.ConditionType(condType)
		a.Condition.Kind = model.IndicatorKind(kind.String)
		a.Condition.Period = int(period.Int64)
		a.Condition.Direction = model.CrossDirection(direction.String)
		a.State = model.AlertState(state)
		a.OneShot = oneShot != 0
		a.CreatedAt = time.Unix(createdAt, 0).UTC()
		if triggeredAt.Valid && triggeredAt.Int64 > 0 {
			a.TriggeredAt = time.Unix(triggeredAt.Int64, 0).UTC()
		}
		a.LastSide = model.Side(lastSide)
		out = append(out, a)
	}
	return out, rows.Err()
}

// PruneTerminal deletes terminal alerts older than the cutoff. Keeps the
// table from growing forever under one-shot heavy usage.
func (s *Store) PruneTerminal(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM alerts
		WHERE state IN (?, ?) AND created_at < ?
	`, string(model.StateFired), string(model.StateCancelled), before.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
