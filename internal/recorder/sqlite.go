package recorder

import (
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"StockScreener/internal/model"
	"StockScreener/internal/scan"
)

// SQLiteRecorder persists scan history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	log *zap.Logger
	mu  sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *zap.Logger) (*SQLiteRecorder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode for better concurrent read performance while scans write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scans (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			profile     TEXT,
			state       TEXT,
			total       INTEGER,
			matched     INTEGER,
			filtered    INTEGER,
			failed      INTEGER,
			elapsed_ms  INTEGER
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_scans_session ON scans(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_scans_started ON scans(started_at)`,

		`CREATE TABLE IF NOT EXISTS scan_results (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id   TEXT NOT NULL,
			symbol       TEXT NOT NULL,
			name         TEXT,
			verdict      TEXT,
			reason       TEXT,
			data_failure INTEGER,
			close        REAL,
			ma55         REAL,
			deviation    REAL,
			dif          REAL,
			dea          REAL,
			macd_bar     REAL,
			peak_dea     REAL,
			signal       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_session ON scan_results(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_symbol ON scan_results(symbol)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordScan writes the scan header and every per-symbol row in one
// transaction, so a crash never leaves a half-recorded scan behind.
func (r *SQLiteRecorder) RecordScan(res *scan.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO scans
		(session_id, started_at, profile, state, total, matched, filtered, failed, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.SessionID, res.StartedAt.Unix(), res.Profile, string(res.State),
		res.Stats.Total, res.Stats.Matched, res.Stats.Filtered, res.Stats.Failed,
		res.Stats.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO scan_results
		(session_id, symbol, name, verdict, reason, data_failure,
		 close, ma55, deviation, dif, dea, macd_bar, peak_dea, signal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare results: %w", err)
	}
	defer stmt.Close()

	insert := func(rows []model.ScreenResult) error {
		for _, row := range rows {
			s := row.Snapshot
			if _, err := stmt.Exec(
				res.SessionID, row.Symbol, row.Name, string(row.Verdict), row.Reason, boolToInt(row.DataFailure),
				s.Close, s.MA55, s.Deviation, s.DIF, s.DEA, s.MACDBar, s.PeakDEA, s.Signal); err != nil {
				return fmt.Errorf("insert result %s: %w", row.Symbol, err)
			}
		}
		return nil
	}
	if err := insert(res.Accepted); err != nil {
		return err
	}
	if err := insert(res.Rejected); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	r.log.Debug("scan recorded",
		zap.String("session", res.SessionID),
		zap.Int("rows", len(res.Accepted)+len(res.Rejected)))
	return nil
}

func (r *SQLiteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
