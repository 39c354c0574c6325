package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"galleryapi/internal/model"
	"galleryapi/internal/repository"
)

// MediaPostgres is a PostgreSQL implementation of repository.MediaRepository.
// It uses database/sql with parameterized queries and contains no business logic.
// Tags and likes are stored as JSONB arrays of strings.
type MediaPostgres struct {
	db *sql.DB
}

// NewMediaPostgres creates a new MediaPostgres repository.
func NewMediaPostgres(db *sql.DB) *MediaPostgres {
	return &MediaPostgres{db: db}
}

var _ repository.MediaRepository = (*MediaPostgres)(nil)

const mediaColumns = `id, title, description, tags, storage_key, thumbnail_key, size, mime_type,
		width, height, owner_id, visibility, lifecycle, view_count, download_count, likes,
		created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (*model.MediaItem, error) {
	var (
		m           model.MediaItem
		tags, likes []byte
	)
	if err := row.Scan(
		&m.ID,
		&m.Title,
		&m.Description,
		&tags,
		&m.StorageKey,
		&m.ThumbnailKey,
		&m.Size,
		&m.MimeType,
		&m.Dimensions.Width,
		&m.Dimensions.Height,
		&m.OwnerID,
		&m.Visibility,
		&m.Lifecycle,
		&m.ViewCount,
		&m.DownloadCount,
		&likes,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeStrings(tags, &m.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := decodeStrings(likes, &m.Likes); err != nil {
		return nil, fmt.Errorf("decode likes: %w", err)
	}
	return &m, nil
}

func decodeStrings(raw []byte, dst *[]string) error {
	*dst = []string{}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func encodeStrings(v []string) string {
	if v == nil {
		v = []string{}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

// Create inserts a new media row and returns the stored record.
func (r *MediaPostgres) Create(ctx context.Context, item *model.MediaItem) (*model.MediaItem, error) {
	q := `
		INSERT INTO media_items (` + mediaColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING ` + mediaColumns
	row := r.db.QueryRowContext(ctx, q,
		item.ID,
		item.Title,
		item.Description,
		encodeStrings(item.Tags),
		item.StorageKey,
		item.ThumbnailKey,
		item.Size,
		item.MimeType,
		item.Dimensions.Width,
		item.Dimensions.Height,
		item.OwnerID,
		item.Visibility,
		item.Lifecycle,
		item.ViewCount,
		item.DownloadCount,
		encodeStrings(item.Likes),
		item.CreatedAt,
		item.UpdatedAt,
	)
	return scanMedia(row)
}

// FindByID fetches a single active media item by its ID.
func (r *MediaPostgres) FindByID(ctx context.Context, id string) (*model.MediaItem, error) {
	q := `SELECT ` + mediaColumns + `
		FROM media_items
		WHERE id = $1 AND lifecycle = 'active'`
	m, err := scanMedia(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// FindActiveByIDs fetches all active items whose id is listed. The id list is
// passed as a JSON array so a single parameter carries any number of ids.
func (r *MediaPostgres) FindActiveByIDs(ctx context.Context, ids []string) ([]model.MediaItem, error) {
	if len(ids) == 0 {
		return []model.MediaItem{}, nil
	}
	q := `SELECT ` + mediaColumns + `
		FROM media_items
		WHERE id::text IN (SELECT jsonb_array_elements_text($1::jsonb)) AND lifecycle = 'active'`
	rows, err := r.db.QueryContext(ctx, q, encodeStrings(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

func collect(rows *sql.Rows) ([]model.MediaItem, error) {
	items := make([]model.MediaItem, 0)
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

var sortColumns = map[repository.SortField]string{
	repository.SortCreatedAt:     "created_at",
	repository.SortViewCount:     "view_count",
	repository.SortDownloadCount: "download_count",
	repository.SortTitle:         "title",
}

// buildWhere renders the filter as a WHERE clause with positional arguments.
func buildWhere(f repository.MediaFilter) (string, []any) {
	clauses := []string{"lifecycle = 'active'"}
	args := make([]any, 0, 3)
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Search != "" {
		p := next("%" + escapeLike(f.Search) + "%")
		clauses = append(clauses, fmt.Sprintf(
			"(title ILIKE %[1]s OR description ILIKE %[1]s OR EXISTS (SELECT 1 FROM jsonb_array_elements_text(tags) t WHERE t ILIKE %[1]s))", p))
	}
	if len(f.Tags) > 0 {
		p := next(encodeStrings(f.Tags))
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(tags) t WHERE t IN (SELECT jsonb_array_elements_text(%s::jsonb)))", p))
	}
	if f.OwnerID != "" {
		clauses = append(clauses, "owner_id = "+next(f.OwnerID))
	}
	if f.PublicOnly {
		clauses = append(clauses, "visibility = 'public'")
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func orderBy(f repository.MediaFilter) string {
	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if f.SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id %s", col, dir, dir)
}

// List returns media using LIMIT/OFFSET pagination and a total count.
func (r *MediaPostgres) List(ctx context.Context, f repository.MediaFilter, pq repository.PageQuery) (*repository.PageResult[model.MediaItem], error) {
	where, args := buildWhere(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media_items `+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	n := len(args)
	q := fmt.Sprintf(`SELECT %s FROM media_items %s %s LIMIT $%d OFFSET $%d`,
		mediaColumns, where, orderBy(f), n+1, n+2)
	rows, err := r.db.QueryContext(ctx, q, append(args, pq.Limit, pq.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := collect(rows)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.MediaItem]{
		Items: items,
		Total: total,
	}, nil
}

// Update writes the editable fields of an active item.
func (r *MediaPostgres) Update(ctx context.Context, item *model.MediaItem) error {
	const q = `
		UPDATE media_items
		SET title = $2, description = $3, tags = $4, visibility = $5, updated_at = $6
		WHERE id = $1 AND lifecycle = 'active'
	`
	res, err := r.db.ExecContext(ctx, q,
		item.ID,
		item.Title,
		item.Description,
		encodeStrings(item.Tags),
		item.Visibility,
		item.UpdatedAt,
	)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// SoftDelete marks an active item deleted.
func (r *MediaPostgres) SoftDelete(ctx context.Context, id string) error {
	const q = `
		UPDATE media_items
		SET lifecycle = 'deleted', updated_at = $2
		WHERE id = $1 AND lifecycle = 'active'
	`
	res, err := r.db.ExecContext(ctx, q, id, time.Now().UTC())
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// IncrementDownloadCount adds one in a single statement so concurrent
// downloads of the same item never lose an update.
func (r *MediaPostgres) IncrementDownloadCount(ctx context.Context, id string) error {
	const q = `UPDATE media_items SET download_count = download_count + 1 WHERE id = $1 AND lifecycle = 'active'`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// IncrementViewCount adds one to the view counter.
func (r *MediaPostgres) IncrementViewCount(ctx context.Context, id string) error {
	const q = `UPDATE media_items SET view_count = view_count + 1 WHERE id = $1 AND lifecycle = 'active'`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// ToggleLike flips membership of userID in the like set in one statement.
func (r *MediaPostgres) ToggleLike(ctx context.Context, id, userID string) (*model.MediaItem, error) {
	q := `
		UPDATE media_items
		SET likes = CASE WHEN likes ? $2 THEN likes - $2 ELSE likes || jsonb_build_array($2::text) END,
		    updated_at = $3
		WHERE id = $1 AND lifecycle = 'active'
		RETURNING ` + mediaColumns
	m, err := scanMedia(r.db.QueryRowContext(ctx, q, id, userID, time.Now().UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
