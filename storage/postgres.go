package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"court-notifier/types"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrNotFound = errors.New("not found")

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Postgres holds clubs, courts and booking requests.
type Postgres struct {
	pool *pgxpool.Pool
}

func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnLifetime = 5 * time.Minute
	cfg.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return p.pool.Ping(ctx)
}

// Migrate applies embedded migrations in file name order, once each.
func (p *Postgres) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	if _, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`); err != nil {
		return err
	}

	for _, f := range files {
		var applied bool
		if err := p.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, f).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}
		sql, err := migrations.ReadFile("migrations/" + f)
		if err != nil {
			return err
		}
		if err := p.applyMigration(ctx, f, string(sql)); err != nil {
			return err
		}
	}
	return nil
}

// applyMigration runs one migration and records it in the same transaction.
func (p *Postgres) applyMigration(ctx context.Context, version, sql string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin %s: %w", version, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("apply %s: %w", version, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, version); err != nil {
		return fmt.Errorf("record %s: %w", version, err)
	}
	return tx.Commit(ctx)
}

// ===== Catalog =====

func (p *Postgres) SaveClub(ctx context.Context, club types.ClubRef) error {
	query, args, err := psql.Insert("clubs").
		Columns("slug", "name").
		Values(club.Slug, club.Name).
		Suffix("ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name").
		ToSql()
	if err != nil {
		return fmt.Errorf("build save club query failed: %w", err)
	}
	_, err = p.pool.Exec(ctx, query, args...)
	return err
}

func (p *Postgres) SaveCourt(ctx context.Context, club string, court types.CourtRef) error {
	query, args, err := psql.Insert("courts").
		Columns("club_slug", "court_id", "display_number", "surface", "roofed").
		Values(club, court.ID, court.DisplayNumber, string(court.Surface), court.Roofed).
		Suffix("ON CONFLICT (club_slug, court_id) DO UPDATE SET display_number = EXCLUDED.display_number, surface = EXCLUDED.surface, roofed = EXCLUDED.roofed").
		ToSql()
	if err != nil {
		return fmt.Errorf("build save court query failed: %w", err)
	}
	_, err = p.pool.Exec(ctx, query, args...)
	return err
}

func (p *Postgres) ListClubs(ctx context.Context) ([]types.ClubRef, error) {
	query, args, err := psql.Select("slug", "name").From("clubs").OrderBy("slug").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list clubs query failed: %w", err)
	}
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list clubs failed: %w", err)
	}
	defer rows.Close()

	var out []types.ClubRef
	for rows.Next() {
		var c types.ClubRef
		if err := rows.Scan(&c.Slug, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) ListCourts(ctx context.Context, club string) ([]types.CourtRef, error) {
	query, args, err := psql.Select("court_id", "display_number", "surface", "roofed").
		From("courts").
		Where(squirrel.Eq{"club_slug": club}).
		OrderBy("display_number").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list courts query failed: %w", err)
	}
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list courts failed: %w", err)
	}
	defer rows.Close()

	var out []types.CourtRef
	for rows.Next() {
		var (
			c       types.CourtRef
			surface string
		)
		if err := rows.Scan(&c.ID, &c.DisplayNumber, &surface, &c.Roofed); err != nil {
			return nil, err
		}
		c.Surface = types.Surface(surface)
		c.Known = true
		out = append(out, c)
	}
	return out, rows.Err()
}

// ===== Booking requests =====

var requestColumns = []string{
	"id", "chat_id", "date", "start_minute", "end_minute", "duration_minutes", "quantity", "surfaces", "roofed",
}

func (p *Postgres) CreateRequest(ctx context.Context, r *types.BookingRequest) error {
	date, err := time.Parse(time.DateOnly, r.Date)
	if err != nil {
		return fmt.Errorf("%w: bad date %q", types.ErrInvalidBookingRequest, r.Date)
	}
	surfaces := make([]string, len(r.Surfaces))
	for i, s := range r.Surfaces {
		surfaces[i] = string(s)
	}
	roofed := r.Roofed
	if roofed == nil {
		roofed = []bool{}
	}

	query, args, err := psql.Insert("booking_requests").
		Columns("chat_id", "date", "start_minute", "end_minute", "duration_minutes", "quantity", "surfaces", "roofed").
		Values(r.ChatID, date, int(r.From), int(r.To), int(r.Duration), r.Quantity, surfaces, roofed).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create request query failed: %w", err)
	}
	return p.pool.QueryRow(ctx, query, args...).Scan(&r.ID)
}

// ActiveRequests lists requests still marked actual, oldest first.
func (p *Postgres) ActiveRequests(ctx context.Context) ([]types.BookingRequest, error) {
	return p.listRequests(ctx, squirrel.Eq{"actual": true})
}

func (p *Postgres) RequestsByChat(ctx context.Context, chatID int64) ([]types.BookingRequest, error) {
	return p.listRequests(ctx, squirrel.Eq{"actual": true, "chat_id": chatID})
}

func (p *Postgres) listRequests(ctx context.Context, where squirrel.Eq) ([]types.BookingRequest, error) {
	query, args, err := psql.Select(requestColumns...).
		From("booking_requests").
		Where(where).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list requests query failed: %w", err)
	}
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests failed: %w", err)
	}
	defer rows.Close()

	var out []types.BookingRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (types.BookingRequest, error) {
	var (
		r                  types.BookingRequest
		date               time.Time
		from, to, duration int
		surfaces           []string
	)
	if err := row.Scan(&r.ID, &r.ChatID, &date, &from, &to, &duration, &r.Quantity, &surfaces, &r.Roofed); err != nil {
		return r, err
	}
	r.Date = date.Format(time.DateOnly)
	r.From, r.To, r.Duration = types.Clock(from), types.Clock(to), types.Clock(duration)
	for _, s := range surfaces {
		r.Surfaces = append(r.Surfaces, types.Surface(s))
	}
	return r, nil
}

// DeactivateRequest marks one of the chat's requests as no longer actual.
func (p *Postgres) DeactivateRequest(ctx context.Context, chatID, id int64) error {
	query, args, err := psql.Update("booking_requests").
		Set("actual", false).
		Where(squirrel.Eq{"id": id, "chat_id": chatID, "actual": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build deactivate request query failed: %w", err)
	}
	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivatePast marks requests dated before today as no longer actual.
func (p *Postgres) DeactivatePast(ctx context.Context, today time.Time) (int64, error) {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	query, args, err := psql.Update("booking_requests").
		Set("actual", false).
		Where(squirrel.And{squirrel.Eq{"actual": true}, squirrel.Lt{"date": day}}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build deactivate past query failed: %w", err)
	}
	tag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
