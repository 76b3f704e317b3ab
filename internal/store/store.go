package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/formsmith/formsmith/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		prompt TEXT NOT NULL,
		form_type TEXT NOT NULL DEFAULT '',
		domain TEXT NOT NULL DEFAULT '',
		complexity TEXT NOT NULL DEFAULT '',
		tone TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		field_count INTEGER NOT NULL DEFAULT 0,
		stages TEXT NOT NULL DEFAULT '[]',
		models_used TEXT NOT NULL DEFAULT '[]',
		latency_ms INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		form TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_form_type ON runs(form_type);

	CREATE TABLE IF NOT EXISTS app_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT INTO app_metadata (key, value) VALUES ('schema_version', '1')
		ON CONFLICT(key) DO UPDATE SET value = '1';
	`
	_, err := s.db.Exec(schema)
	return err
}

// InsertRun records one pipeline run, successful or failed.
func (s *Store) InsertRun(r model.Run) error {
	stages, err := json.Marshal(r.Stages)
	if err != nil {
		return fmt.Errorf("encode stages: %w", err)
	}
	models, err := json.Marshal(r.ModelsUsed)
	if err != nil {
		return fmt.Errorf("encode models: %w", err)
	}
	var form sql.NullString
	if r.Form != nil {
		data, err := json.Marshal(r.Form)
		if err != nil {
			return fmt.Errorf("encode form: %w", err)
		}
		form = sql.NullString{String: string(data), Valid: true}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err = s.db.Exec(
		`INSERT INTO runs (id, prompt, form_type, domain, complexity, tone, title,
			field_count, stages, models_used, latency_ms, status, error, form, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Prompt, string(r.FormType), string(r.Domain), string(r.Complexity),
		string(r.Tone), r.Title, r.FieldCount, string(stages), string(models),
		r.LatencyMs, string(r.Status), r.Error, form, r.CreatedAt,
	)
	return err
}

// GetRun returns the run with the given ID, or nil if not found.
func (s *Store) GetRun(id string) (*model.Run, error) {
	row := s.db.QueryRow(
		`SELECT id, prompt, form_type, domain, complexity, tone, title,
			field_count, stages, models_used, latency_ms, status, error, form, created_at
		 FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RunFilter narrows ListRuns. Zero values mean no filtering.
type RunFilter struct {
	Status   model.RunStatus
	FormType model.FormType
	Limit    int
}

// ListRuns returns runs matching the filter, newest first.
func (s *Store) ListRuns(filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, prompt, form_type, domain, complexity, tone, title,
		field_count, stages, models_used, latency_ms, status, error, form, created_at
	 FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.FormType != "" {
		query += ` AND form_type = ?`
		args = append(args, string(filter.FormType))
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunCount returns the total number of recorded runs.
func (s *Store) RunCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}

// CountRunsByStatus returns the number of runs with the given status.
func (s *Store) CountRunsByStatus(status model.RunStatus) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM runs WHERE status = ?`, string(status)).Scan(&count)
	return count, err
}

// AverageLatencyMs returns the mean latency of succeeded runs, 0 when there
// are none.
func (s *Store) AverageLatencyMs() (int64, error) {
	var avg int64
	err := s.db.QueryRow(
		`SELECT COALESCE(CAST(AVG(latency_ms) AS INTEGER), 0) FROM runs WHERE status = ?`,
		string(model.RunSucceeded),
	).Scan(&avg)
	return avg, err
}

// TopFormTypes returns the most generated form types, ties broken
// alphabetically.
func (s *Store) TopFormTypes(limit int) ([]model.FormTypeCount, error) {
	rows, err := s.db.Query(
		`SELECT form_type, COUNT(*) AS n FROM runs
		 WHERE form_type != ''
		 GROUP BY form_type
		 ORDER BY n DESC, form_type
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []model.FormTypeCount
	for rows.Next() {
		var c model.FormTypeCount
		if err := rows.Scan(&c.FormType, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// Stats summarizes the run ledger.
func (s *Store) Stats() (model.LedgerStats, error) {
	var stats model.LedgerStats
	var err error

	if stats.TotalRuns, err = s.RunCount(); err != nil {
		return stats, fmt.Errorf("count runs: %w", err)
	}
	if stats.Succeeded, err = s.CountRunsByStatus(model.RunSucceeded); err != nil {
		return stats, fmt.Errorf("count succeeded: %w", err)
	}
	if stats.Failed, err = s.CountRunsByStatus(model.RunFailed); err != nil {
		return stats, fmt.Errorf("count failed: %w", err)
	}
	if stats.AvgLatencyMs, err = s.AverageLatencyMs(); err != nil {
		return stats, fmt.Errorf("average latency: %w", err)
	}
	if stats.TopFormTypes, err = s.TopFormTypes(5); err != nil {
		return stats, fmt.Errorf("top form types: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.Run, error) {
	var (
		r      model.Run
		stages string
		models string
		form   sql.NullString
	)
	err := row.Scan(&r.ID, &r.Prompt, &r.FormType, &r.Domain, &r.Complexity,
		&r.Tone, &r.Title, &r.FieldCount, &stages, &models, &r.LatencyMs,
		&r.Status, &r.Error, &form, &r.CreatedAt)
	if err != nil {
		return model.Run{}, err
	}
	if err := json.Unmarshal([]byte(stages), &r.Stages); err != nil {
		return model.Run{}, fmt.Errorf("decode stages: %w", err)
	}
	if err := json.Unmarshal([]byte(models), &r.ModelsUsed); err != nil {
		return model.Run{}, fmt.Errorf("decode models: %w", err)
	}
	if form.Valid && form.String != "" {
		var f model.GeneratedForm
		if err := json.Unmarshal([]byte(form.String), &f); err != nil {
			return model.Run{}, fmt.Errorf("decode form: %w", err)
		}
		r.Form = &f
	}
	return r, nil
}
