package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/jack/golang-shortlink-service/internal/config"
	"github.com/jack/golang-shortlink-service/internal/model"
)

var (
	// ErrLinkNotFound is returned both when no row exists and when the row
	// belongs to a different owner. Do not split these cases: a Forbidden
	// error would leak link existence to unauthorized callers.
	ErrLinkNotFound = errors.New("link not found")
	ErrAliasTaken   = errors.New("short code or alias already taken")
)

const linkColumns = `id, short_code, custom_alias, original_url, title, description,
		owner_id, password_hash, is_active, is_public, click_count,
		created_at, updated_at, expires_at, last_accessed_at`

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(cfg *config.PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// CreateLink inserts a new short link. The unique constraint spanning
// short_code and custom_alias is the final arbiter of uniqueness; a violation
// surfaces as ErrAliasTaken.
func (r *PostgresRepository) CreateLink(ctx context.Context, link *model.ShortLink) (*model.ShortLink, error) {
	query := `
		INSERT INTO short_links
			(short_code, custom_alias, original_url, title, description,
			 owner_id, password_hash, is_public, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, is_active, click_count, created_at, updated_at
	`

	created := *link
	err := r.pool.QueryRow(ctx, query,
		link.ShortCode,
		link.CustomAlias,
		link.OriginalURL,
		link.Title,
		link.Description,
		link.OwnerID,
		link.PasswordHash,
		link.IsPublic,
		link.ExpiresAt,
	).Scan(
		&created.ID,
		&created.IsActive,
		&created.ClickCount,
		&created.CreatedAt,
		&created.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAliasTaken
		}
		return nil, fmt.Errorf("failed to create link: %w", err)
	}

	return &created, nil
}

// GetLinkByCode returns the raw record matching either short_code or
// custom_alias. Liveness policy (active/expired) is the resolver's job, not
// the store's. Uniqueness spans both columns, so a double match indicates
// corrupted data; the exact short_code match wins and a warning is logged.
func (r *PostgresRepository) GetLinkByCode(ctx context.Context, code string) (*model.ShortLink, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM short_links
		WHERE short_code = $1 OR custom_alias = $1
		LIMIT 2
	`

	rows, err := r.pool.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}
	defer rows.Close()

	var matches []*model.ShortLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		matches = append(matches, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read links: %w", err)
	}

	switch len(matches) {
	case 0:
		return nil, ErrLinkNotFound
	case 1:
		return matches[0], nil
	default:
		log.Warn().Str("code", code).
			Msg("integrity violation: code matches multiple links, preferring exact short_code")
		for _, m := range matches {
			if m.ShortCode == code {
				return m, nil
			}
		}
		return matches[0], nil
	}
}

// GetLinkByID fetches a link owned by ownerID. Missing row and foreign owner
// are indistinguishable to the caller on purpose.
func (r *PostgresRepository) GetLinkByID(ctx context.Context, id, ownerID int64) (*model.ShortLink, error) {
	query := `
		SELECT ` + linkColumns + `
		FROM short_links
		WHERE id = $1 AND owner_id = $2
	`

	row := r.pool.QueryRow(ctx, query, id, ownerID)
	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link by id: %w", err)
	}

	return link, nil
}

// UpdateLink applies a typed patch to a link owned by ownerID and returns the
// updated record.
func (r *PostgresRepository) UpdateLink(ctx context.Context, id, ownerID int64, patch *model.LinkPatch) (*model.ShortLink, error) {
	query := `
		UPDATE short_links SET
			title        = COALESCE($3, title),
			description  = COALESCE($4, description),
			is_active    = COALESCE($5, is_active),
			is_public    = COALESCE($6, is_public),
			expires_at   = CASE WHEN $8 THEN NULL ELSE COALESCE($7, expires_at) END,
			updated_at   = now()
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + linkColumns + `
	`

	row := r.pool.QueryRow(ctx, query, id, ownerID,
		patch.Title, patch.Description, patch.IsActive, patch.IsPublic,
		patch.ExpiresAt, patch.ClearExpiry)
	link, err := scanLink(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to update link: %w", err)
	}

	return link, nil
}

// DeleteLink removes the row, freeing the code and alias for reuse.
func (r *PostgresRepository) DeleteLink(ctx context.Context, id, ownerID int64) error {
	query := `DELETE FROM short_links WHERE id = $1 AND owner_id = $2`

	result, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// CodeInUse reports whether code is occupied by any short_code or
// custom_alias. Satisfies codegen.UniquenessChecker.
func (r *PostgresRepository) CodeInUse(ctx context.Context, code string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM short_links WHERE short_code = $1 OR custom_alias = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check code: %w", err)
	}

	return exists, nil
}

// IncrementClickCountBy bumps the persisted counter atomically at the storage
// layer; used by the click sync scheduler, never by the redirect path.
func (r *PostgresRepository) IncrementClickCountBy(ctx context.Context, code string, count int64) error {
	query := `UPDATE short_links SET click_count = click_count + $1 WHERE short_code = $2`

	result, err := r.pool.Exec(ctx, query, count, code)
	if err != nil {
		return fmt.Errorf("failed to increment click count by %d: %w", count, err)
	}
	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

// TouchLastAccessed records a successful resolution timestamp.
func (r *PostgresRepository) TouchLastAccessed(ctx context.Context, id int64) error {
	query := `UPDATE short_links SET last_accessed_at = now() WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to touch last accessed: %w", err)
	}

	return nil
}

// InsertClickEvent appends one analytics record. Click events are never
// updated or deleted by this service.
func (r *PostgresRepository) InsertClickEvent(ctx context.Context, event *model.ClickEvent) error {
	query := `
		INSERT INTO click_events
			(id, link_id, ip_address, user_agent, referer,
			 country, region, city, device_type, browser, os, is_bot, clicked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.pool.Exec(ctx, query,
		event.ID, event.LinkID, event.IPAddress, event.UserAgent, event.Referer,
		event.Country, event.Region, event.City, event.DeviceType,
		event.Browser, event.OS, event.IsBot, event.ClickedAt)
	if err != nil {
		return fmt.Errorf("failed to insert click event: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Health(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanLink(row pgx.Row) (*model.ShortLink, error) {
	var link model.ShortLink
	err := row.Scan(
		&link.ID,
		&link.ShortCode,
		&link.CustomAlias,
		&link.OriginalURL,
		&link.Title,
		&link.Description,
		&link.OwnerID,
		&link.PasswordHash,
		&link.IsActive,
		&link.IsPublic,
		&link.ClickCount,
		&link.CreatedAt,
		&link.UpdatedAt,
		&link.ExpiresAt,
		&link.LastAccessed,
	)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
