package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// AlertHistory is a compact record of one alert occurrence. It feeds the
// debounce filter's recent-occurrence lookups and the anomaly model's
// retraining set.
type AlertHistory struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Resolved  bool      `json:"resolved"`
	Features  []float64 `json:"features,omitempty"`
}

// HistoryStore defines the interface for historical alert storage
type HistoryStore interface {
	// Append stores one occurrence record
	Append(ctx context.Context, record *AlertHistory) error

	// RecentOccurrences returns occurrences of the named alert since the
	// given time, newest first
	RecentOccurrences(ctx context.Context, name string, since time.Time) ([]*AlertHistory, error)

	// CountSince returns how many occurrences of the named alert were
	// recorded since the given time
	CountSince(ctx context.Context, name string, since time.Time) (int, error)

	// Count returns the total number of records
	Count(ctx context.Context) (int, error)

	// FeatureSamples returns the most recent stored feature vectors,
	// up to limit
	FeatureSamples(ctx context.Context, limit int) ([][]float64, error)

	// DeleteBefore deletes records older than the specified time
	DeleteBefore(ctx context.Context, before time.Time) error
}

// SQLiteHistory implements HistoryStore using SQLite
type SQLiteHistory struct {
	logger *zap.Logger
	db     *sql.DB
}

// NewSQLiteHistory opens (or creates) an alert history database at dbPath.
func NewSQLiteHistory(logger *zap.Logger, dbPath string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteHistory{
		logger: logger,
		db:     db,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initialize creates the necessary tables if they don't exist
func (s *SQLiteHistory) initialize() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS alert_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			value REAL NOT NULL,
			resolved INTEGER NOT NULL DEFAULT 0,
			features TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_alert_history_name ON alert_history(name);
		CREATE INDEX IF NOT EXISTS idx_alert_history_timestamp ON alert_history(timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	return nil
}

// Append implements HistoryStore.Append
func (s *SQLiteHistory) Append(ctx context.Context, record *AlertHistory) error {
	var featuresStr string
	if len(record.Features) > 0 {
		data, err := json.Marshal(record.Features)
		if err != nil {
			return fmt.Errorf("failed to marshal features: %w", err)
		}
		featuresStr = string(data)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_history (name, timestamp, value, resolved, features)
		VALUES (?, ?, ?, ?, ?)`,
		record.Name,
		record.Timestamp,
		record.Value,
		record.Resolved,
		sql.NullString{String: featuresStr, Valid: featuresStr != ""},
	)
	if err != nil {
		return fmt.Errorf("failed to store alert history: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		record.ID = id
	}
	return nil
}

// RecentOccurrences implements HistoryStore.RecentOccurrences
func (s *SQLiteHistory) RecentOccurrences(ctx context.Context, name string, since time.Time) ([]*AlertHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, timestamp, value, resolved, features
		FROM alert_history
		WHERE name = ? AND timestamp >= ?
		ORDER BY timestamp DESC`,
		name, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert history: %w", err)
	}
	defer rows.Close()

	var records []*AlertHistory
	for rows.Next() {
		record, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return records, nil
}

// CountSince implements HistoryStore.CountSince
func (s *SQLiteHistory) CountSince(ctx context.Context, name string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM alert_history WHERE name = ? AND timestamp >= ?",
		name, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count alert history: %w", err)
	}
	return count, nil
}

// Count implements HistoryStore.Count
func (s *SQLiteHistory) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_history").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count alert history: %w", err)
	}
	return count, nil
}

// FeatureSamples implements HistoryStore.FeatureSamples
func (s *SQLiteHistory) FeatureSamples(ctx context.Context, limit int) ([][]float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT features FROM alert_history
		WHERE features IS NOT NULL
		ORDER BY timestamp DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature samples: %w", err)
	}
	defer rows.Close()

	var samples [][]float64
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan feature sample: %w", err)
		}

		var features []float64
		if err := json.Unmarshal([]byte(raw), &features); err != nil {
			s.logger.Warn("Skipping malformed feature sample", zap.Error(err))
			continue
		}
		samples = append(samples, features)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return samples, nil
}

// DeleteBefore implements HistoryStore.DeleteBefore
func (s *SQLiteHistory) DeleteBefore(ctx context.Context, before time.Time) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM alert_history WHERE timestamp < ?", before)
	if err != nil {
		return fmt.Errorf("failed to delete alert history: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	s.logger.Info("Deleted old alert history records",
		zap.Time("before", before),
		zap.Int64("deleted", affected))

	return nil
}

// Close closes the database connection
func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}

func scanHistory(rows *sql.Rows) (*AlertHistory, error) {
	record := &AlertHistory{}
	var features sql.NullString

	err := rows.Scan(
		&record.ID,
		&record.Name,
		&record.Timestamp,
		&record.Value,
		&record.Resolved,
		&features,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan alert history: %w", err)
	}

	if features.Valid && features.String != "" {
		if err := json.Unmarshal([]byte(features.String), &record.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal features: %w", err)
		}
	}
	return record, nil
}
