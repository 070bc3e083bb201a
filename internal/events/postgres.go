package events

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaSQL is embedded so the service can bootstrap its own tables.
//
//go:embed schema.sql
var schemaSQL string

const pageViewColumns = `id, page_url, page_title, visitor_id, session_id, referrer,
	user_agent, country, device, ts, duration, bounced`

// PostgresStore is the durable event store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a connection pool and fails fast if the database is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping validates connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

func (p *PostgresStore) RecordPageView(ctx context.Context, input PageViewInput) (PageView, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO page_views (page_url, page_title, visitor_id, session_id, referrer,
			user_agent, country, device, ts, duration, bounced)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+pageViewColumns,
		input.PageURL, input.PageTitle, input.VisitorID, input.SessionID, input.Referrer,
		input.UserAgent, input.Country, input.Device, input.Timestamp.UTC(), input.Duration, input.Bounced,
	)

	view, err := scanPageView(row)
	if err != nil {
		return PageView{}, fmt.Errorf("failed to record page view: %w", err)
	}
	return view, nil
}

func (p *PostgresStore) GetPageViews(ctx context.Context, start, end time.Time) ([]PageView, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+pageViewColumns+`
		FROM page_views
		WHERE ts >= $1 AND ts <= $2
		ORDER BY id ASC
	`, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("error fetching page views: %w", err)
	}
	defer rows.Close()

	views := make([]PageView, 0)
	for rows.Next() {
		view, err := scanPageView(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning page view: %w", err)
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error fetching page views: %w", err)
	}
	return views, nil
}

func (p *PostgresStore) GetVisitor(ctx context.Context, id string) (*Visitor, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, first_seen, last_seen, visits FROM visitors WHERE id = $1
	`, id)
	return scanVisitor(row)
}

func (p *PostgresStore) SaveVisitor(ctx context.Context, visitor Visitor) (Visitor, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO visitors (id, first_seen, last_seen, visits)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (id) DO UPDATE
			SET first_seen = EXCLUDED.first_seen, last_seen = EXCLUDED.last_seen, visits = 1
		RETURNING id, first_seen, last_seen, visits
	`, visitor.ID, visitor.FirstSeen.UTC(), visitor.LastSeen.UTC())

	saved, err := scanVisitor(row)
	if err != nil {
		return Visitor{}, err
	}
	if saved == nil {
		return Visitor{}, fmt.Errorf("failed to save visitor %q", visitor.ID)
	}
	return *saved, nil
}

func (p *PostgresStore) UpdateVisitor(ctx context.Context, id string, lastSeen time.Time) (*Visitor, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE visitors SET last_seen = $2, visits = visits + 1
		WHERE id = $1
		RETURNING id, first_seen, last_seen, visits
	`, id, lastSeen.UTC())
	return scanVisitor(row)
}

func scanPageView(row pgx.Row) (PageView, error) {
	var view PageView
	var id int64
	err := row.Scan(
		&id, &view.PageURL, &view.PageTitle, &view.VisitorID, &view.SessionID, &view.Referrer,
		&view.UserAgent, &view.Country, &view.Device, &view.Timestamp, &view.Duration, &view.Bounced,
	)
	if err != nil {
		return PageView{}, err
	}
	view.ID = uint(id)
	view.Timestamp = view.Timestamp.UTC()
	return view, nil
}

// scanVisitor maps "no rows" to an absent visitor.
func scanVisitor(row pgx.Row) (*Visitor, error) {
	var visitor Visitor
	err := row.Scan(&visitor.ID, &visitor.FirstSeen, &visitor.LastSeen, &visitor.Visits)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error scanning visitor: %w", err)
	}
	visitor.FirstSeen = visitor.FirstSeen.UTC()
	visitor.LastSeen = visitor.LastSeen.UTC()
	return &visitor, nil
}
