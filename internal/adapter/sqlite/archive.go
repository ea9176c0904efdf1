package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/gfs-forecast-service/internal/domain"
)

const (
	defaultRecentLimit = 50
	// Fixed-width so processed_at sorts lexically.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Record is the archived summary of one snapshot. Grid values are not kept.
type Record struct {
	Key          string    `json:"key"`
	Run          string    `json:"run"`
	Region       string    `json:"region"`
	Field        string    `json:"field"`
	Unit         string    `json:"unit"`
	ForecastHour int       `json:"forecast_hour"`
	ValidTime    time.Time `json:"valid_time"`
	Address      string    `json:"address"`
	Min          float64   `json:"min"`
	Max          float64   `json:"max"`
	Mean         float64   `json:"mean"`
	Count        int       `json:"count"`
	MarkerValue  *float64  `json:"marker_value,omitempty"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Archive stores snapshot summaries in SQLite. It implements forecast.Sink.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewArchive opens (or creates) the database at path and applies the schema.
func NewArchive(path string, logger *slog.Logger) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("archive %q: %w", pragma, err)
		}
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("snapshot archive ready", "path", path)
	return &Archive{db: db, logger: logger}, nil
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshots (
			key           TEXT PRIMARY KEY,
			run           TEXT NOT NULL,
			region        TEXT NOT NULL,
			field         TEXT NOT NULL,
			unit          TEXT NOT NULL,
			forecast_hour INTEGER NOT NULL,
			valid_time    TEXT NOT NULL,
			address       TEXT NOT NULL,
			min           REAL,
			max           REAL,
			mean          REAL,
			count         INTEGER NOT NULL,
			marker_value  REAL,
			processed_at  TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create snapshots table: %w", err)
	}
	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_snapshots_region_processed
			ON snapshots (region, processed_at DESC)
	`); err != nil {
		return fmt.Errorf("create snapshots index: %w", err)
	}
	return nil
}

func (a *Archive) Name() string { return "sqlite" }

// Publish upserts the snapshot summary. Rebuilding the same run, region,
// field and hour replaces the earlier row.
func (a *Archive) Publish(ctx context.Context, snap domain.Snapshot) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots
			(key, run, region, field, unit, forecast_hour, valid_time, address,
			 min, max, mean, count, marker_value, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.Key(),
		snap.Run.String(),
		snap.Region.Key,
		snap.Field.Key,
		snap.Field.Unit,
		snap.ForecastHour,
		snap.ValidTime.UTC().Format(time.RFC3339),
		snap.Address,
		snap.Stats.Min,
		snap.Stats.Max,
		snap.Stats.Mean,
		snap.Stats.Count,
		snap.MarkerValue,
		snap.ProcessedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("archive snapshot %s: %w", snap.Key(), err)
	}
	return nil
}

// Recent returns the newest records for region, most recently processed
// first. An empty region matches every region. A non-positive limit uses
// the default of 50.
func (a *Archive) Recent(ctx context.Context, region string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT key, run, region, field, unit, forecast_hour, valid_time, address,
		       min, max, mean, count, marker_value, processed_at
		FROM snapshots
		WHERE ? = '' OR region = ?
		ORDER BY processed_at DESC, key
		LIMIT ?`, region, region, limit)
	if err != nil {
		return nil, fmt.Errorf("query archive: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			r                      Record
			validTime, processedAt string
			marker                 sql.NullFloat64
		)
		if err := rows.Scan(&r.Key, &r.Run, &r.Region, &r.Field, &r.Unit, &r.ForecastHour,
			&validTime, &r.Address, &r.Min, &r.Max, &r.Mean, &r.Count, &marker, &processedAt); err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}
		if r.ValidTime, err = time.Parse(time.RFC3339, validTime); err != nil {
			return nil, fmt.Errorf("archive row %s: valid_time: %w", r.Key, err)
		}
		if r.ProcessedAt, err = time.Parse(timestampLayout, processedAt); err != nil {
			return nil, fmt.Errorf("archive row %s: processed_at: %w", r.Key, err)
		}
		if marker.Valid {
			v := marker.Float64
			r.MarkerValue = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CheckReadiness pings the database.
func (a *Archive) CheckReadiness(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

func (a *Archive) Close() error {
	return a.db.Close()
}
