package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/serroba/linkpulse/internal/analytics"
	"github.com/serroba/linkpulse/internal/shortener"
)

//go:embed schema.sql
var schema string

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
	invalidText         = "22P02"

	shortCodeConstraint = "short_links_short_code_key"
	ownerURLConstraint  = "short_links_owner_url_idx"
)

const linkColumns = `
	l.id, l.short_code, l.long_url, l.description, l.owner_id,
	l.created_at, l.is_active, l.click_count,
	COALESCE(array_agg(c.category_id) FILTER (WHERE c.category_id IS NOT NULL), '{}')`

const linkFrom = `
	FROM short_links l
	LEFT JOIN short_link_categories c ON c.short_link_id = l.id`

// PostgresStore is the durable store for short links and click records.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store over an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates missing tables and indexes.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	return nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) GetByCode(ctx context.Context, code shortener.Code) (*shortener.ShortLink, error) {
	query := `SELECT ` + linkColumns + linkFrom + `
		WHERE l.short_code = $1
		GROUP BY l.id`

	return p.queryLink(ctx, query, string(code))
}

func (p *PostgresStore) GetByID(ctx context.Context, id int64) (*shortener.ShortLink, error) {
	query := `SELECT ` + linkColumns + linkFrom + `
		WHERE l.id = $1
		GROUP BY l.id`

	return p.queryLink(ctx, query, id)
}

func (p *PostgresStore) FindByOwnerURL(ctx context.Context, ownerID int64, longURL string) (*shortener.ShortLink, error) {
	query := `SELECT ` + linkColumns + linkFrom + `
		WHERE l.owner_id = $1 AND md5(l.long_url) = md5($2) AND l.long_url = $2
		GROUP BY l.id`

	return p.queryLink(ctx, query, ownerID, longURL)
}

func (p *PostgresStore) CodeExists(ctx context.Context, code shortener.Code) (bool, error) {
	var exists bool

	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM short_links WHERE short_code = $1)`,
		string(code),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check short code: %w", err)
	}

	return exists, nil
}

func (p *PostgresStore) Create(ctx context.Context, link *shortener.ShortLink) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO short_links (short_code, long_url, description, owner_id, is_active)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, click_count`,
			string(link.ShortCode),
			link.LongURL,
			link.Description,
			link.OwnerID,
			link.IsActive,
		).Scan(&link.ID, &link.CreatedAt, &link.ClickCount)
		if err != nil {
			return mapLinkError(err)
		}

		for _, categoryID := range link.CategoryIDs {
			_, err = tx.Exec(ctx, `
				INSERT INTO short_link_categories (short_link_id, category_id)
				VALUES ($1, $2)
				ON CONFLICT DO NOTHING`,
				link.ID, categoryID,
			)
			if err != nil {
				return mapLinkError(err)
			}
		}

		return nil
	})
}

func (p *PostgresStore) SetActive(ctx context.Context, code shortener.Code, active bool) (*shortener.ShortLink, error) {
	result, err := p.pool.Exec(ctx,
		`UPDATE short_links SET is_active = $2 WHERE short_code = $1`,
		string(code), active,
	)
	if err != nil {
		return nil, fmt.Errorf("update short link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return nil, shortener.ErrNotFound
	}

	return p.GetByCode(ctx, code)
}

func (p *PostgresStore) TopLinks(ctx context.Context, limit int) ([]*shortener.ShortLink, error) {
	query := `SELECT ` + linkColumns + linkFrom + `
		WHERE l.is_active
		GROUP BY l.id
		ORDER BY l.click_count DESC, l.id
		LIMIT $1`

	rows, err := p.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query top links: %w", err)
	}
	defer rows.Close()

	var links []*shortener.ShortLink

	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}

		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top links: %w", err)
	}

	return links, nil
}

// SaveClick inserts the click with its location and device and bumps the
// link's click count in a single transaction. A repeated EventID inserts
// nothing and reports false.
func (p *PostgresStore) SaveClick(ctx context.Context, record *analytics.ClickRecord) (bool, error) {
	inserted := false

	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO click_records (event_id, clicked_at, ip_address, user_agent, short_link_id)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (event_id) DO NOTHING
			RETURNING id`,
			record.EventID,
			record.ClickedAt,
			record.IPAddress,
			record.UserAgent,
			record.ShortLinkID,
		).Scan(&record.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}

			return mapClickError(err)
		}

		loc := record.Location

		_, err = tx.Exec(ctx, `
			INSERT INTO click_locations
				(click_record_id, city, region, country, country_code, continent, latitude, longitude)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			record.ID, loc.City, loc.Region, loc.Country, loc.CountryCode, loc.Continent, loc.Latitude, loc.Longitude,
		)
		if err != nil {
			return fmt.Errorf("insert click location: %w", err)
		}

		dev := record.Device

		_, err = tx.Exec(ctx, `
			INSERT INTO click_devices (click_record_id, os, client, brand, model, is_bot, bot_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			record.ID, dev.OS, dev.Client, dev.Brand, dev.Model, dev.IsBot, dev.BotName,
		)
		if err != nil {
			return fmt.Errorf("insert click device: %w", err)
		}

		result, err := tx.Exec(ctx,
			`UPDATE short_links SET click_count = click_count + 1 WHERE id = $1`,
			record.ShortLinkID,
		)
		if err != nil {
			return fmt.Errorf("increment click count: %w", err)
		}

		if result.RowsAffected() == 0 {
			return shortener.ErrNotFound
		}

		inserted = true

		return nil
	})
	if err != nil {
		return false, err
	}

	return inserted, nil
}

// ClickCount returns the number of stored clicks for a link.
func (p *PostgresStore) ClickCount(ctx context.Context, linkID int64) (int64, error) {
	var count int64

	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM click_records WHERE short_link_id = $1`, linkID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count clicks: %w", err)
	}

	return count, nil
}

// Shutdown is a no-op; the pool is closed by its owner.
func (p *PostgresStore) Shutdown() error {
	return nil
}

func (p *PostgresStore) queryLink(ctx context.Context, query string, args ...any) (*shortener.ShortLink, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query short link: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query short link: %w", err)
		}

		return nil, shortener.ErrNotFound
	}

	return scanLink(rows)
}

func scanLink(rows pgx.Rows) (*shortener.ShortLink, error) {
	var (
		link shortener.ShortLink
		code string
	)

	err := rows.Scan(
		&link.ID,
		&code,
		&link.LongURL,
		&link.Description,
		&link.OwnerID,
		&link.CreatedAt,
		&link.IsActive,
		&link.ClickCount,
		&link.CategoryIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("scan short link: %w", err)
	}

	link.ShortCode = shortener.Code(code)

	if len(link.CategoryIDs) == 0 {
		link.CategoryIDs = nil
	}

	return &link, nil
}

func mapLinkError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("insert short link: %w", err)
	}

	switch {
	case pgErr.Code == uniqueViolation && pgErr.ConstraintName == shortCodeConstraint:
		return shortener.ErrCodeTaken
	case pgErr.Code == uniqueViolation && pgErr.ConstraintName == ownerURLConstraint:
		return shortener.ErrDuplicateLink
	case pgErr.Code == foreignKeyViolation:
		verr := &shortener.ValidationError{}
		verr.Add("categories", "unknown category", pgErr.Detail)

		return verr
	default:
		return fmt.Errorf("insert short link: %w", err)
	}
}

func mapClickError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case foreignKeyViolation:
			return fmt.Errorf("click for unknown link: %w", shortener.ErrNotFound)
		case invalidText:
			return fmt.Errorf("malformed click event id: %w", err)
		}
	}

	return fmt.Errorf("insert click record: %w", err)
}
