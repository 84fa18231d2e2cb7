package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Nilscreate/websitecrawltool/audit"
	"github.com/Nilscreate/websitecrawltool/logging"
	"github.com/Nilscreate/websitecrawltool/report"
)

// PostgresStore keeps reports in PostgreSQL as JSONB documents
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, pings and prepares the schema
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open DB: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logging.Log.Info("Connected to PostgreSQL successfully")
	return s, nil
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_reports (
		id          UUID        PRIMARY KEY,
		url         TEXT        NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL,
		payload     JSONB       NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_reports_created_at ON audit_reports (created_at DESC);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, r *audit.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report %s: %w", r.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_reports (id, url, created_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload
	`, r.ID, r.URL, r.CreatedAt, payload)
	if err != nil {
		return fmt.Errorf("failed to insert report %s: %w", r.ID, err)
	}

	logging.Log.Debug("Saved report", zap.String("id", r.ID), zap.Int("bytes", len(payload)))
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*audit.Report, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM audit_reports WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, audit.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}

	var r audit.Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return &r, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]audit.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, created_at, payload->'summary'
		FROM audit_reports
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	listings := make([]audit.Listing, 0, limit)
	for rows.Next() {
		var l audit.Listing
		var summary []byte
		if err := rows.Scan(&l.ID, &l.URL, &l.CreatedAt, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		var sum report.Summary
		if err := json.Unmarshal(summary, &sum); err != nil {
			return nil, fmt.Errorf("failed to decode summary of %s: %w", l.ID, err)
		}
		l.Summary = sum
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return listings, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
