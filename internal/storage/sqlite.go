package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore 基于 SQLite (WAL 模式) 的持久化实现
// SQLiteStore implements Store using SQLite with WAL mode.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore 创建并初始化数据库
// NewSQLiteStore creates and initializes the database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	store := &SQLiteStore{db: db, path: dbPath}
	if err := store.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		dataset       TEXT NOT NULL DEFAULT '',
		model         TEXT NOT NULL DEFAULT '',
		goal          TEXT NOT NULL DEFAULT '',
		plan          TEXT NOT NULL DEFAULT '',
		solution      TEXT NOT NULL DEFAULT '',
		iterations    INTEGER NOT NULL DEFAULT 0,
		limit_reached INTEGER NOT NULL DEFAULT 0,
		status        TEXT NOT NULL DEFAULT 'running',
		artifacts_dir TEXT NOT NULL DEFAULT '',
		log_path      TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		idx         INTEGER NOT NULL,
		code        TEXT NOT NULL DEFAULT '',
		stdout      TEXT NOT NULL DEFAULT '',
		error       TEXT NOT NULL DEFAULT '',
		success     INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		figures     INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		UNIQUE(run_id, idx)
	);

	CREATE TABLE IF NOT EXISTS figures (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		record_idx INTEGER NOT NULL,
		seq        INTEGER NOT NULL,
		path       TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(run_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id, idx);
	CREATE INDEX IF NOT EXISTS idx_figures_run ON figures(run_id, seq);
	CREATE INDEX IF NOT EXISTS idx_runs_updated ON runs(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(meta RunMeta) error {
	now := nowUTC()
	if strings.TrimSpace(meta.CreatedAt) == "" {
		meta.CreatedAt = now
	}
	if strings.TrimSpace(meta.Status) == "" {
		meta.Status = "running"
	}
	meta.UpdatedAt = now
	_, err := s.db.Exec(`
		INSERT INTO runs (id, dataset, model, goal, plan, solution, iterations, limit_reached, status, artifacts_dir, log_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.Dataset, meta.Model, meta.Goal, meta.Plan, meta.Solution,
		meta.Iterations, boolToInt(meta.LimitReached), meta.Status,
		meta.ArtifactsDir, meta.LogPath, meta.CreatedAt, meta.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CompleteRun(meta RunMeta) error {
	meta.UpdatedAt = nowUTC()
	_, err := s.db.Exec(`
		UPDATE runs SET plan=?, solution=?, iterations=?, limit_reached=?, status=?,
			artifacts_dir=?, log_path=?, updated_at=?
		WHERE id=?`,
		meta.Plan, meta.Solution, meta.Iterations, boolToInt(meta.LimitReached),
		meta.Status, meta.ArtifactsDir, meta.LogPath, meta.UpdatedAt, meta.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadRun(id string) (RunMeta, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return RunMeta{}, fmt.Errorf("run id is empty")
	}
	row := s.db.QueryRow(`
		SELECT id, dataset, model, goal, plan, solution, iterations, limit_reached, status, artifacts_dir, log_path, created_at, updated_at
		FROM runs WHERE id=?`, id)
	meta, err := scanRun(row)
	if err == sql.ErrNoRows {
		return RunMeta{}, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return RunMeta{}, fmt.Errorf("load run: %w", err)
	}
	return meta, nil
}

func (s *SQLiteStore) ListRuns() ([]RunMeta, error) {
	rows, err := s.db.Query(`
		SELECT id, dataset, model, goal, plan, solution, iterations, limit_reached, status, artifacts_dir, log_path, created_at, updated_at
		FROM runs ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var metas []RunMeta
	for rows.Next() {
		meta, err := scanRun(rows)
		if err != nil {
			continue
		}
		metas = append(metas, meta)
	}
	return metas, rows.Err()
}

func (s *SQLiteStore) SaveRecords(runID string, records []RecordRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM records WHERE run_id=?", runID); err != nil {
		return fmt.Errorf("delete old records: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO records (run_id, idx, code, stdout, error, success, duration_ms, figures, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := nowUTC()
	for _, rec := range records {
		if _, err := stmt.Exec(runID, rec.Index, rec.Code, rec.Stdout, rec.Error,
			boolToInt(rec.Success), rec.DurationMS, rec.Figures, now); err != nil {
			return fmt.Errorf("insert record %d: %w", rec.Index, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadRecords(runID string) ([]RecordRow, error) {
	rows, err := s.db.Query(`
		SELECT run_id, idx, code, stdout, error, success, duration_ms, figures
		FROM records WHERE run_id=? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var rec RecordRow
		var success int
		if err := rows.Scan(&rec.RunID, &rec.Index, &rec.Code, &rec.Stdout,
			&rec.Error, &success, &rec.DurationMS, &rec.Figures); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Success = success != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveFigures(runID string, figures []FigureRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM figures WHERE run_id=?", runID); err != nil {
		return fmt.Errorf("delete old figures: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO figures (run_id, record_idx, seq, path, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := nowUTC()
	for _, fig := range figures {
		if _, err := stmt.Exec(runID, fig.RecordIndex, fig.Seq, fig.Path, now); err != nil {
			return fmt.Errorf("insert figure %d: %w", fig.Seq, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) LoadFigures(runID string) ([]FigureRow, error) {
	rows, err := s.db.Query(`
		SELECT run_id, record_idx, seq, path
		FROM figures WHERE run_id=? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("load figures: %w", err)
	}
	defer rows.Close()

	var out []FigureRow
	for rows.Next() {
		var fig FigureRow
		if err := rows.Scan(&fig.RunID, &fig.RecordIndex, &fig.Seq, &fig.Path); err != nil {
			return nil, fmt.Errorf("scan figure: %w", err)
		}
		out = append(out, fig)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunMeta, error) {
	var meta RunMeta
	var limitReached int
	err := row.Scan(&meta.ID, &meta.Dataset, &meta.Model, &meta.Goal, &meta.Plan,
		&meta.Solution, &meta.Iterations, &limitReached, &meta.Status,
		&meta.ArtifactsDir, &meta.LogPath, &meta.CreatedAt, &meta.UpdatedAt)
	if err != nil {
		return RunMeta{}, err
	}
	meta.LimitReached = limitReached != 0
	return meta, nil
}

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
