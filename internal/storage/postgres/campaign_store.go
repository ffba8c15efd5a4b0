// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adpage/campaign-generator/internal/campaign"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// CampaignStoreConfig controls the Postgres connection pool used for campaign rows.
type CampaignStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxQuerier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// CampaignStore reads and writes campaign rows in Postgres.
type CampaignStore struct {
	pool  pgxQuerier
	table string
	clock campaign.Clock
}

// NewCampaignStore creates a Postgres-backed CampaignStore using the provided config.
func NewCampaignStore(ctx context.Context, cfg CampaignStoreConfig, clock campaign.Clock) (*CampaignStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "campaigns"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &CampaignStore{
		pool:  pool,
		table: table,
		clock: clock,
	}, nil
}

// NewCampaignStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewCampaignStoreWithPool(pool pgxQuerier, table string, clock campaign.Clock) (*CampaignStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "campaigns"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &CampaignStore{pool: pool, table: table, clock: clock}, nil
}

// Close releases the underlying pool resources.
func (s *CampaignStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// InitSchema creates the campaigns table when it does not already exist.
func (s *CampaignStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id BIGSERIAL PRIMARY KEY,
	original_url TEXT NOT NULL,
	product_name TEXT NOT NULL,
	product_description TEXT NOT NULL,
	generated_content JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create campaigns table: %w", err)
	}
	return nil
}

// Insert writes the campaign as a new row. The store assigns the creation
// time and the returned campaign carries the database-generated ID.
func (s *CampaignStore) Insert(ctx context.Context, c campaign.Campaign) (campaign.Campaign, error) {
	contentJSON, err := json.Marshal(c.GeneratedContent)
	if err != nil {
		return campaign.Campaign{}, fmt.Errorf("marshal generated content: %w", err)
	}
	c.CreatedAt = s.clock.Now()

	query := fmt.Sprintf(`
INSERT INTO %s (original_url, product_name, product_description, generated_content, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`, s.table)

	row := s.pool.QueryRow(ctx, query, c.OriginalURL, c.ProductName, c.ProductDescription, contentJSON, c.CreatedAt)
	if err := row.Scan(&c.ID); err != nil {
		return campaign.Campaign{}, fmt.Errorf("insert campaign: %w", err)
	}
	return c, nil
}

// GetByID fetches a single campaign. It returns campaign.ErrNotFound when no
// row matches the ID.
func (s *CampaignStore) GetByID(ctx context.Context, id int64) (campaign.Campaign, error) {
	query := fmt.Sprintf(`
SELECT id, original_url, product_name, product_description, generated_content, created_at
FROM %s
WHERE id = $1`, s.table)

	c, err := scanCampaign(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return campaign.Campaign{}, campaign.ErrNotFound
		}
		return campaign.Campaign{}, fmt.Errorf("get campaign %d: %w", id, err)
	}
	return c, nil
}

// ListAll returns all campaigns, newest first.
func (s *CampaignStore) ListAll(ctx context.Context) ([]campaign.Campaign, error) {
	query := fmt.Sprintf(`
SELECT id, original_url, product_name, product_description, generated_content, created_at
FROM %s
ORDER BY created_at DESC, id DESC`, s.table)

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	campaigns := make([]campaign.Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign row: %w", err)
		}
		campaigns = append(campaigns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate campaign rows: %w", err)
	}
	return campaigns, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCampaign(row rowScanner) (campaign.Campaign, error) {
	var (
		c           campaign.Campaign
		contentJSON []byte
	)
	if err := row.Scan(&c.ID, &c.OriginalURL, &c.ProductName, &c.ProductDescription, &contentJSON, &c.CreatedAt); err != nil {
		return campaign.Campaign{}, err
	}
	if err := json.Unmarshal(contentJSON, &c.GeneratedContent); err != nil {
		return campaign.Campaign{}, fmt.Errorf("unmarshal generated content: %w", err)
	}
	c.GeneratedContent.Normalize()
	return c, nil
}
