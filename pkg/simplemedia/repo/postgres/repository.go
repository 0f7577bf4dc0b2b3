package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

// Schema creates the media table. Derivative paths are not stored.
const Schema = `
CREATE TABLE IF NOT EXISTS media (
	id            UUID PRIMARY KEY,
	seq           BIGSERIAL,
	owner_type    TEXT NOT NULL,
	owner_id      BIGINT NOT NULL,
	kind          TEXT NOT NULL,
	source        TEXT NOT NULL,
	primary_path  TEXT NOT NULL,
	caption       TEXT NOT NULL DEFAULT '',
	mime_type     TEXT NOT NULL DEFAULT '',
	width         INTEGER,
	height        INTEGER,
	byte_size     BIGINT NOT NULL DEFAULT 0,
	display_order INTEGER NOT NULL DEFAULT 0,
	flags         TEXT[] NOT NULL DEFAULT '{}',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS media_owner_idx ON media (owner_type, owner_id, display_order, seq);
`

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements simplemedia.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// EnsureSchema creates the media table if it does not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return handlePostgresError("ensure schema", err)
	}
	return nil
}

// Error handling helper
func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("media already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return simplemedia.ErrMediaNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

const mediaColumns = `id, owner_type, owner_id, kind, source, primary_path, caption,
	mime_type, width, height, byte_size, display_order, flags, created_at, updated_at`

func flagStrings(flags []simplemedia.Flag) []string {
	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = string(f)
	}
	return out
}

func scanMedia(row pgx.Row) (*simplemedia.MediaAsset, error) {
	var (
		m     simplemedia.MediaAsset
		flags []string
	)
	err := row.Scan(
		&m.ID, &m.OwnerType, &m.OwnerID, &m.Kind, &m.Source, &m.PrimaryPath, &m.Caption,
		&m.MimeType, &m.Width, &m.Height, &m.ByteSize, &m.DisplayOrder, &flags, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	for _, f := range flags {
		m.Flags = append(m.Flags, simplemedia.Flag(f))
	}
	return &m, nil
}

func (r *Repository) CreateMedia(ctx context.Context, media *simplemedia.MediaAsset) error {
	if media.ID == uuid.Nil {
		media.ID = uuid.New()
	}
	query := `INSERT INTO media (` + mediaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.Exec(ctx, query,
		media.ID, string(media.OwnerType), media.OwnerID, string(media.Kind), string(media.Source),
		media.PrimaryPath, media.Caption, media.MimeType, media.Width, media.Height, media.ByteSize,
		media.DisplayOrder, flagStrings(media.Flags), media.CreatedAt, media.UpdatedAt)
	if err != nil {
		return handlePostgresError("create media", err)
	}
	return nil
}

func (r *Repository) GetMedia(ctx context.Context, id uuid.UUID) (*simplemedia.MediaAsset, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE id = $1`

	m, err := scanMedia(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, handlePostgresError("get media", err)
	}
	return m, nil
}

// UpdateMedia writes the mutable fields. Owner, kind and paths never change.
func (r *Repository) UpdateMedia(ctx context.Context, media *simplemedia.MediaAsset) error {
	query := `
		UPDATE media SET
			caption = $2, display_order = $3, flags = $4, updated_at = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		media.ID, media.Caption, media.DisplayOrder, flagStrings(media.Flags), media.UpdatedAt)
	if err != nil {
		return handlePostgresError("update media", err)
	}
	if tag.RowsAffected() == 0 {
		return simplemedia.ErrMediaNotFound
	}
	return nil
}

func (r *Repository) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return handlePostgresError("delete media", err)
	}
	if tag.RowsAffected() == 0 {
		return simplemedia.ErrMediaNotFound
	}
	return nil
}

func (r *Repository) ListMediaByOwner(ctx context.Context, owner simplemedia.Owner) ([]*simplemedia.MediaAsset, error) {
	query := `SELECT ` + mediaColumns + ` FROM media
		WHERE owner_type = $1 AND owner_id = $2
		ORDER BY display_order ASC, seq ASC`

	rows, err := r.db.Query(ctx, query, string(owner.Type), owner.ID)
	if err != nil {
		return nil, handlePostgresError("list media", err)
	}
	defer rows.Close()

	var result []*simplemedia.MediaAsset
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, handlePostgresError("list media", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list media", err)
	}
	return result, nil
}

func (r *Repository) MaxDisplayOrder(ctx context.Context, owner simplemedia.Owner) (int, error) {
	query := `SELECT COALESCE(MAX(display_order), 0) FROM media WHERE owner_type = $1 AND owner_id = $2`

	var highest int
	if err := r.db.QueryRow(ctx, query, string(owner.Type), owner.ID).Scan(&highest); err != nil {
		return 0, handlePostgresError("max display order", err)
	}
	return highest, nil
}
