package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
)

const schema = `
CREATE TABLE IF NOT EXISTS grants (
    grant_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    data JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL
);
CREATE TABLE IF NOT EXISTS org_profiles (
    org_id TEXT PRIMARY KEY,
    data JSONB NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
);
`

// PostgresStore keeps records as JSONB rows
type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

// OpenPostgres connects through the pgx database/sql driver
func OpenPostgres(dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("database url is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an open database
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, schema)
	})
	return s.schemaErr
}

// GetGrant implements GrantStore
func (s *PostgresStore) GetGrant(ctx context.Context, id string) (*grant.Grant, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM grants WHERE grant_id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load grant %s: %w", id, err)
	}

	var g grant.Grant
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("failed to decode grant %s: %w", id, err)
	}
	return &g, nil
}

// PutGrant implements GrantStore
func (s *PostgresStore) PutGrant(ctx context.Context, g *grant.Grant) error {
	if err := ValidateID(g.ID); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode grant %s: %w", g.ID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO grants (grant_id, status, data, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (grant_id)
DO UPDATE SET status=EXCLUDED.status, data=EXCLUDED.data, updated_at=EXCLUDED.updated_at
`, g.ID, string(g.Status), data, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save grant %s: %w", g.ID, err)
	}
	return nil
}

// ListGrants implements GrantStore. Most recently updated first.
func (s *PostgresStore) ListGrants(ctx context.Context) ([]*grant.Grant, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM grants ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var out []*grant.Grant
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		var g grant.Grant
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("failed to decode grant: %w", err)
		}
		out = append(out, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProfile implements GrantStore
func (s *PostgresStore) GetProfile(ctx context.Context, orgID string) (*grant.OrganizationProfile, error) {
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM org_profiles WHERE org_id = $1`, orgID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile %s: %w", orgID, err)
	}

	var p grant.OrganizationProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", orgID, err)
	}
	return &p, nil
}

// PutProfile implements GrantStore
func (s *PostgresStore) PutProfile(ctx context.Context, p *grant.OrganizationProfile) error {
	if err := ValidateID(p.OrgID); err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile %s: %w", p.OrgID, err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO org_profiles (org_id, data, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (org_id)
DO UPDATE SET data=EXCLUDED.data, updated_at=EXCLUDED.updated_at
`, p.OrgID, data)
	if err != nil {
		return fmt.Errorf("failed to save profile %s: %w", p.OrgID, err)
	}
	return nil
}

// Close implements GrantStore
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
