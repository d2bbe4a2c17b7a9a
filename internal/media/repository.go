package media

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const mediaColumns = `id, owner_id, original_name, stored_key, mime_type, size_bytes,
	width, height, status, uploaded_at, deleted_at`

// PostgresRepository handles all media database operations.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgresRepository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new record and returns it with database-assigned fields.
func (r *PostgresRepository) Create(ctx context.Context, obj *MediaObject) (*MediaObject, error) {
	created := &MediaObject{}
	err := r.db.QueryRow(ctx,
		`INSERT INTO media_objects (id, owner_id, original_name, stored_key, mime_type, size_bytes, width, height, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+mediaColumns,
		obj.ID, obj.OwnerID, obj.OriginalName, obj.StoredKey, obj.MimeType,
		obj.SizeBytes, obj.Width, obj.Height, StatusActive,
	).Scan(
		&created.ID, &created.OwnerID, &created.OriginalName, &created.StoredKey,
		&created.MimeType, &created.SizeBytes, &created.Width, &created.Height,
		&created.Status, &created.UploadedAt, &created.DeletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create media record: %w", err)
	}
	return created, nil
}

// List returns up to limit records ordered by upload time descending. ownerID
// nil means all owners; before restricts to records uploaded at or before the
// given instant (keyset pagination); deleted records are included only when
// includeDeleted is set.
func (r *PostgresRepository) List(ctx context.Context, ownerID *string, limit int, before *time.Time, includeDeleted bool) ([]*MediaObject, error) {
	var (
		conds []string
		args  []interface{}
	)
	if ownerID != nil {
		args = append(args, *ownerID)
		conds = append(conds, "owner_id = $"+strconv.Itoa(len(args)))
	}
	if !includeDeleted {
		args = append(args, StatusActive)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if before != nil {
		args = append(args, *before)
		conds = append(conds, "uploaded_at <= $"+strconv.Itoa(len(args)))
	}

	query := "SELECT " + mediaColumns + " FROM media_objects"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, limit)
	query += " ORDER BY uploaded_at DESC LIMIT $" + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list media records: %w", err)
	}
	defer rows.Close()

	var records []*MediaObject
	for rows.Next() {
		obj := &MediaObject{}
		if err := rows.Scan(
			&obj.ID, &obj.OwnerID, &obj.OriginalName, &obj.StoredKey,
			&obj.MimeType, &obj.SizeBytes, &obj.Width, &obj.Height,
			&obj.Status, &obj.UploadedAt, &obj.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan media record: %w", err)
		}
		records = append(records, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate media records: %w", err)
	}
	return records, nil
}

// GetByID fetches a record by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*MediaObject, error) {
	obj := &MediaObject{}
	err := r.db.QueryRow(ctx,
		"SELECT "+mediaColumns+" FROM media_objects WHERE id = $1",
		id,
	).Scan(
		&obj.ID, &obj.OwnerID, &obj.OriginalName, &obj.StoredKey,
		&obj.MimeType, &obj.SizeBytes, &obj.Width, &obj.Height,
		&obj.Status, &obj.UploadedAt, &obj.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get media record: %w", err)
	}
	return obj, nil
}

// SoftDelete transitions an ACTIVE record to DELETED. Returns ErrNotFound when
// the record does not exist or was already deleted, so a repeated delete is a
// no-op observable as "not found".
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) (*MediaObject, error) {
	obj := &MediaObject{}
	err := r.db.QueryRow(ctx,
		`UPDATE media_objects SET status = $1, deleted_at = now()
		 WHERE id = $2 AND status = $3
		 RETURNING `+mediaColumns,
		StatusDeleted, id, StatusActive,
	).Scan(
		&obj.ID, &obj.OwnerID, &obj.OriginalName, &obj.StoredKey,
		&obj.MimeType, &obj.SizeBytes, &obj.Width, &obj.Height,
		&obj.Status, &obj.UploadedAt, &obj.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("soft delete media record: %w", err)
	}
	return obj, nil
}
