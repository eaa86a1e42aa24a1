package forecast

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// ModelStore persists training diagnostics locally so model quality can be
// inspected across restarts without a round trip to the main databases.
type ModelStore struct {
	db *sql.DB
}

// OpenModelStore opens or creates a SQLite database at the given path.
func OpenModelStore(path string) (*ModelStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open model store: %w", err)
	}

	// Enable WAL mode for better concurrent access.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS model_runs (
		model_key   TEXT NOT NULL,
		trained_at  TEXT NOT NULL,
		rows        INTEGER NOT NULL,
		rmse        REAL NOT NULL,
		mae         REAL NOT NULL,
		r_squared   REAL NOT NULL,
		PRIMARY KEY (model_key, trained_at)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create model store schema: %w", err)
	}

	return &ModelStore{db: db}, nil
}

// Close closes the database connection.
func (s *ModelStore) Close() error {
	return s.db.Close()
}

// SaveDiagnostics records one training run.
func (s *ModelStore) SaveDiagnostics(key string, d Diagnostics) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO model_runs (model_key, trained_at, rows, rmse, mae, r_squared)
		VALUES (?, ?, ?, ?, ?, ?)
	`, key, d.TrainedAt.UTC().Format("2006-01-02T15:04:05Z"), d.Rows, d.RMSE, d.MAE, d.RSquared)
	if err != nil {
		return fmt.Errorf("save diagnostics: %w", err)
	}
	return nil
}

// LatestDiagnostics returns the most recent run for a model key, or nil
// when none is recorded.
func (s *ModelStore) LatestDiagnostics(key string) (*Diagnostics, error) {
	row := s.db.QueryRow(`
		SELECT rows, rmse, mae, r_squared
		FROM model_runs
		WHERE model_key = ?
		ORDER BY trained_at DESC
		LIMIT 1
	`, key)

	var d Diagnostics
	err := row.Scan(&d.Rows, &d.RMSE, &d.MAE, &d.RSquared)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest diagnostics: %w", err)
	}
	return &d, nil
}
