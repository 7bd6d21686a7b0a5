package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tendant/simple-review/pkg/simplereview"
)

//go:embed schema.sql
var schemaSQL string

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements every simplereview repository on top of a DBTX
type Repository struct {
	db DBTX
}

// New creates a repository bound to a connection or a transaction
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Scripts() simplereview.ScriptRepository { return r }
func (r *Repository) Versions() simplereview.VersionRepository { return r }
func (r *Repository) Images() simplereview.ImageRepository { return r }
func (r *Repository) Reviews() simplereview.ReviewRepository { return r }
func (r *Repository) Engagement() simplereview.EngagementRepository { return r }

// Store implements simplereview.Store using a PostgreSQL connection pool
type Store struct {
	*Repository
	pool *pgxpool.Pool
}

var _ simplereview.Store = (*Store)(nil)

// NewWithPool creates a new PostgreSQL store with connection pool
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{Repository: New(pool), pool: pool}
}

// Connect opens a pool for databaseURL. When schema is set every session
// uses it as search_path.
func Connect(ctx context.Context, databaseURL, schema string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s", pgx.Identifier{schema}.Sanitize()))
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return NewWithPool(pool), nil
}

// Migrate creates the tables and indexes when they do not exist yet
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// WithTx runs fn inside one database transaction. Row locks taken through
// GetScriptForUpdate are held until fn returns.
func (s *Store) WithTx(ctx context.Context, fn func(tx simplereview.Repositories) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(New(tx))
	})
}

// Pool exposes the underlying connection pool
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *Store) Close() {
	s.pool.Close()
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w (%s)", operation, simplereview.ErrDuplicate, pgErr.ConstraintName)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", operation, simplereview.ErrScriptNotFound)
		case "23502": // not_null_violation
			return fmt.Errorf("%s: %w: %s is required", operation, simplereview.ErrInvalidArgument, pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("%s: table does not exist - database migration required", operation)
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Script operations

const scriptColumns = `id, title, description, author_name, state, owner_id, system_owned,
	original_owner_id, transferred_at, published_at, created_at, updated_at`

func scanScript(row pgx.Row) (*simplereview.Script, error) {
	var s simplereview.Script
	var state string
	err := row.Scan(&s.ID, &s.Title, &s.Description, &s.AuthorName, &state, &s.OwnerID, &s.SystemOwned,
		&s.OriginalOwnerID, &s.TransferredAt, &s.PublishedAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.State = simplereview.State(state)
	return &s, nil
}

func (r *Repository) CreateScript(ctx context.Context, s *simplereview.Script) error {
	query := `
		INSERT INTO scripts (` + scriptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.Exec(ctx, query,
		s.ID, s.Title, s.Description, s.AuthorName, string(s.State), s.OwnerID, s.SystemOwned,
		s.OriginalOwnerID, s.TransferredAt, s.PublishedAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("create script", err, simplereview.ErrScriptNotFound)
	}
	return nil
}

func (r *Repository) GetScript(ctx context.Context, id uuid.UUID) (*simplereview.Script, error) {
	query := `SELECT ` + scriptColumns + ` FROM scripts WHERE id = $1`
	s, err := scanScript(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("get script", err, simplereview.ErrScriptNotFound)
	}
	return s, nil
}

func (r *Repository) GetScriptForUpdate(ctx context.Context, id uuid.UUID) (*simplereview.Script, error) {
	query := `SELECT ` + scriptColumns + ` FROM scripts WHERE id = $1 FOR UPDATE`
	s, err := scanScript(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, r.handlePostgresError("lock script", err, simplereview.ErrScriptNotFound)
	}
	return s, nil
}

func (r *Repository) UpdateScript(ctx context.Context, s *simplereview.Script) error {
	query := `
		UPDATE scripts SET
			title = $2, description = $3, author_name = $4, state = $5, owner_id = $6,
			system_owned = $7, original_owner_id = $8, transferred_at = $9,
			published_at = $10, updated_at = $11
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		s.ID, s.Title, s.Description, s.AuthorName, string(s.State), s.OwnerID,
		s.SystemOwned, s.OriginalOwnerID, s.TransferredAt, s.PublishedAt, s.UpdatedAt)
	if err != nil {
		return r.handlePostgresError("update script", err, simplereview.ErrScriptNotFound)
	}
	if tag.RowsAffected() == 0 {
		return simplereview.ErrScriptNotFound
	}
	return nil
}

func (r *Repository) DeleteScript(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM scripts WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete script", err, simplereview.ErrScriptNotFound)
	}
	if tag.RowsAffected() == 0 {
		return simplereview.ErrScriptNotFound
	}
	return nil
}

func (r *Repository) ListScripts(ctx context.Context, filter simplereview.ScriptFilter) ([]*simplereview.Script, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.State != nil {
		args = append(args, string(*filter.State))
		conds = append(conds, fmt.Sprintf("state = $%d", len(args)))
	}
	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}

	query := `SELECT ` + scriptColumns + ` FROM scripts`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list scripts", err, simplereview.ErrScriptNotFound)
	}
	defer rows.Close()

	var scripts []*simplereview.Script
	for rows.Next() {
		s, err := scanScript(rows)
		if err != nil {
			return nil, r.handlePostgresError("scan script", err, simplereview.ErrScriptNotFound)
		}
		scripts = append(scripts, s)
	}
	return scripts, rows.Err()
}

func (r *Repository) CountScriptsByState(ctx context.Context) (map[simplereview.State]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT state, COUNT(*) FROM scripts GROUP BY state`)
	if err != nil {
		return nil, r.handlePostgresError("count scripts", err, simplereview.ErrScriptNotFound)
	}
	defer rows.Close()

	counts := make(map[simplereview.State]int64)
	for rows.Next() {
		var state string
		var n int64
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[simplereview.State(state)] = n
	}
	return counts, rows.Err()
}

// Version operations

const versionColumns = `id, script_id, number, content, content_hash, path, schema_valid, created_at`

func scanVersion(row pgx.Row) (*simplereview.Version, error) {
	var v simplereview.Version
	err := row.Scan(&v.ID, &v.ScriptID, &v.Number, &v.Content, &v.ContentHash, &v.Path, &v.SchemaValid, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repository) CreateVersion(ctx context.Context, v *simplereview.Version) error {
	query := `INSERT INTO script_versions (` + versionColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.db.Exec(ctx, query, v.ID, v.ScriptID, v.Number, v.Content, v.ContentHash, v.Path, v.SchemaValid, v.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create version", err, simplereview.ErrVersionNotFound)
	}
	return nil
}

func (r *Repository) GetVersion(ctx context.Context, scriptID uuid.UUID, number int) (*simplereview.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM script_versions WHERE script_id = $1 AND number = $2`
	v, err := scanVersion(r.db.QueryRow(ctx, query, scriptID, number))
	if err != nil {
		return nil, r.handlePostgresError("get version", err, simplereview.ErrVersionNotFound)
	}
	return v, nil
}

func (r *Repository) GetLatestVersion(ctx context.Context, scriptID uuid.UUID) (*simplereview.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM script_versions WHERE script_id = $1 ORDER BY number DESC LIMIT 1`
	v, err := scanVersion(r.db.QueryRow(ctx, query, scriptID))
	if err != nil {
		return nil, r.handlePostgresError("get latest version", err, simplereview.ErrVersionNotFound)
	}
	return v, nil
}

func (r *Repository) ListVersions(ctx context.Context, scriptID uuid.UUID) ([]*simplereview.Version, error) {
	query := `SELECT ` + versionColumns + ` FROM script_versions WHERE script_id = $1 ORDER BY number`
	rows, err := r.db.Query(ctx, query, scriptID)
	if err != nil {
		return nil, r.handlePostgresError("list versions", err, simplereview.ErrVersionNotFound)
	}
	defer rows.Close()

	var versions []*simplereview.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (r *Repository) NextVersionNumber(ctx context.Context, scriptID uuid.UUID) (int, error) {
	var next int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM script_versions WHERE script_id = $1`, scriptID).Scan(&next)
	if err != nil {
		return 0, r.handlePostgresError("next version number", err, simplereview.ErrVersionNotFound)
	}
	return next, nil
}

func (r *Repository) DeleteVersionsByScript(ctx context.Context, scriptID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM script_versions WHERE script_id = $1`, scriptID); err != nil {
		return r.handlePostgresError("delete versions", err, simplereview.ErrVersionNotFound)
	}
	return nil
}

// Image operations

const imageColumns = `id, script_id, path, mime_type, size, sha256, sort_order, is_cover, created_at`

func scanImage(row pgx.Row) (*simplereview.ImageAsset, error) {
	var img simplereview.ImageAsset
	err := row.Scan(&img.ID, &img.ScriptID, &img.Path, &img.MimeType, &img.Size, &img.SHA256,
		&img.SortOrder, &img.IsCover, &img.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

func (r *Repository) CreateImage(ctx context.Context, img *simplereview.ImageAsset) error {
	query := `INSERT INTO script_images (` + imageColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(ctx, query, img.ID, img.ScriptID, img.Path, img.MimeType, img.Size, img.SHA256,
		img.SortOrder, img.IsCover, img.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create image", err, simplereview.ErrImageNotFound)
	}
	return nil
}

func (r *Repository) GetImage(ctx context.Context, id uuid.UUID) (*simplereview.ImageAsset, error) {
	img, err := scanImage(r.db.QueryRow(ctx, `SELECT `+imageColumns+` FROM script_images WHERE id = $1`, id))
	if err != nil {
		return nil, r.handlePostgresError("get image", err, simplereview.ErrImageNotFound)
	}
	return img, nil
}

func (r *Repository) ListImages(ctx context.Context, scriptID uuid.UUID) ([]*simplereview.ImageAsset, error) {
	query := `SELECT ` + imageColumns + ` FROM script_images WHERE script_id = $1 ORDER BY sort_order, created_at`
	rows, err := r.db.Query(ctx, query, scriptID)
	if err != nil {
		return nil, r.handlePostgresError("list images", err, simplereview.ErrImageNotFound)
	}
	defer rows.Close()

	var images []*simplereview.ImageAsset
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (r *Repository) CountImages(ctx context.Context, scriptID uuid.UUID) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM script_images WHERE script_id = $1`, scriptID).Scan(&n); err != nil {
		return 0, r.handlePostgresError("count images", err, simplereview.ErrImageNotFound)
	}
	return n, nil
}

func (r *Repository) UpdateImage(ctx context.Context, img *simplereview.ImageAsset) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE script_images SET sort_order = $2, is_cover = $3 WHERE id = $1`,
		img.ID, img.SortOrder, img.IsCover)
	if err != nil {
		return r.handlePostgresError("update image", err, simplereview.ErrImageNotFound)
	}
	if tag.RowsAffected() == 0 {
		return simplereview.ErrImageNotFound
	}
	return nil
}

func (r *Repository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM script_images WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete image", err, simplereview.ErrImageNotFound)
	}
	if tag.RowsAffected() == 0 {
		return simplereview.ErrImageNotFound
	}
	return nil
}

func (r *Repository) DeleteImagesByScript(ctx context.Context, scriptID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM script_images WHERE script_id = $1`, scriptID); err != nil {
		return r.handlePostgresError("delete images", err, simplereview.ErrImageNotFound)
	}
	return nil
}

// Review operations

func (r *Repository) CreateReview(ctx context.Context, rv *simplereview.Review) error {
	query := `
		INSERT INTO script_reviews (id, script_id, reviewer_id, decision, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.Exec(ctx, query, rv.ID, rv.ScriptID, rv.ReviewerID, string(rv.Decision), rv.Reason, rv.CreatedAt)
	if err != nil {
		return r.handlePostgresError("create review", err, simplereview.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListReviews(ctx context.Context, scriptID uuid.UUID) ([]*simplereview.Review, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, script_id, reviewer_id, decision, reason, created_at
		FROM script_reviews WHERE script_id = $1 ORDER BY created_at, id`, scriptID)
	if err != nil {
		return nil, r.handlePostgresError("list reviews", err, simplereview.ErrNotFound)
	}
	defer rows.Close()

	var reviews []*simplereview.Review
	for rows.Next() {
		var rv simplereview.Review
		var decision string
		if err := rows.Scan(&rv.ID, &rv.ScriptID, &rv.ReviewerID, &decision, &rv.Reason, &rv.CreatedAt); err != nil {
			return nil, err
		}
		rv.Decision = simplereview.Decision(decision)
		reviews = append(reviews, &rv)
	}
	return reviews, rows.Err()
}

func (r *Repository) DeleteReviewsByScript(ctx context.Context, scriptID uuid.UUID) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM script_reviews WHERE script_id = $1`, scriptID); err != nil {
		return r.handlePostgresError("delete reviews", err, simplereview.ErrNotFound)
	}
	return nil
}

// Engagement operations

func factTable(kind simplereview.FactKind) string {
	if kind == simplereview.FactFavorite {
		return "script_favorites"
	}
	return "script_likes"
}

func (r *Repository) AddFact(ctx context.Context, kind simplereview.FactKind, scriptID, userID uuid.UUID) (bool, error) {
	query := `INSERT INTO ` + factTable(kind) + ` (script_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	tag, err := r.db.Exec(ctx, query, scriptID, userID)
	if err != nil {
		return false, r.handlePostgresError("add "+string(kind), err, simplereview.ErrScriptNotFound)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) RemoveFact(ctx context.Context, kind simplereview.FactKind, scriptID, userID uuid.UUID) (bool, error) {
	query := `DELETE FROM ` + factTable(kind) + ` WHERE script_id = $1 AND user_id = $2`
	tag, err := r.db.Exec(ctx, query, scriptID, userID)
	if err != nil {
		return false, r.handlePostgresError("remove "+string(kind), err, simplereview.ErrScriptNotFound)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) HasFact(ctx context.Context, kind simplereview.FactKind, scriptID, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM ` + factTable(kind) + ` WHERE script_id = $1 AND user_id = $2)`
	if err := r.db.QueryRow(ctx, query, scriptID, userID).Scan(&exists); err != nil {
		return false, r.handlePostgresError("has "+string(kind), err, simplereview.ErrScriptNotFound)
	}
	return exists, nil
}

func (r *Repository) CountFacts(ctx context.Context, kind simplereview.FactKind, scriptID uuid.UUID) (int64, error) {
	var n int64
	query := `SELECT COUNT(*) FROM ` + factTable(kind) + ` WHERE script_id = $1`
	if err := r.db.QueryRow(ctx, query, scriptID).Scan(&n); err != nil {
		return 0, r.handlePostgresError("count "+string(kind), err, simplereview.ErrScriptNotFound)
	}
	return n, nil
}

func (r *Repository) AppendDownload(ctx context.Context, e *simplereview.DownloadEvent) error {
	query := `
		INSERT INTO script_downloads (id, script_id, version_id, user_id, ip, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query, e.ID, e.ScriptID, e.VersionID, e.UserID, e.IP, e.UserAgent, e.CreatedAt)
	if err != nil {
		return r.handlePostgresError("append download", err, simplereview.ErrScriptNotFound)
	}
	return nil
}

func (r *Repository) CountDownloads(ctx context.Context, scriptID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM script_downloads WHERE script_id = $1`, scriptID).Scan(&n); err != nil {
		return 0, r.handlePostgresError("count downloads", err, simplereview.ErrScriptNotFound)
	}
	return n, nil
}

func ledgerTable(kind simplereview.LeaderboardKind) string {
	switch kind {
	case simplereview.LeaderboardDownloads:
		return "script_downloads"
	case simplereview.LeaderboardFavorites:
		return "script_favorites"
	default:
		return "script_likes"
	}
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (r *Repository) CountByScripts(ctx context.Context, kind simplereview.LeaderboardKind, scriptIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(scriptIDs))
	if len(scriptIDs) == 0 {
		return counts, nil
	}
	query := `SELECT script_id, COUNT(*) FROM ` + ledgerTable(kind) + `
		WHERE script_id = ANY($1::uuid[]) GROUP BY script_id`
	rows, err := r.db.Query(ctx, query, idStrings(scriptIDs))
	if err != nil {
		return nil, r.handlePostgresError("count "+string(kind), err, simplereview.ErrScriptNotFound)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var n int64
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

func (r *Repository) FactsForUser(ctx context.Context, kind simplereview.FactKind, scriptIDs []uuid.UUID, userID uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool)
	if len(scriptIDs) == 0 {
		return out, nil
	}
	query := `SELECT script_id FROM ` + factTable(kind) + ` WHERE user_id = $1 AND script_id = ANY($2::uuid[])`
	rows, err := r.db.Query(ctx, query, userID, idStrings(scriptIDs))
	if err != nil {
		return nil, r.handlePostgresError(string(kind)+" facts for user", err, simplereview.ErrScriptNotFound)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (r *Repository) Leaderboard(ctx context.Context, kind simplereview.LeaderboardKind, limit int) ([]*simplereview.LeaderboardEntry, error) {
	query := `
		SELECT s.id, s.title, COUNT(*) AS n
		FROM ` + ledgerTable(kind) + ` l JOIN scripts s ON s.id = l.script_id
		WHERE s.state = 'published'
		GROUP BY s.id, s.title
		ORDER BY n DESC, s.title, s.id
		LIMIT NULLIF($1::int, 0)`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, r.handlePostgresError("leaderboard "+string(kind), err, simplereview.ErrScriptNotFound)
	}
	defer rows.Close()

	var entries []*simplereview.LeaderboardEntry
	for rows.Next() {
		var e simplereview.LeaderboardEntry
		if err := rows.Scan(&e.ScriptID, &e.Title, &e.Count); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (r *Repository) DeleteEngagementByScript(ctx context.Context, scriptID uuid.UUID) error {
	for _, table := range []string{"script_likes", "script_favorites", "script_downloads"} {
		if _, err := r.db.Exec(ctx, `DELETE FROM `+table+` WHERE script_id = $1`, scriptID); err != nil {
			return r.handlePostgresError("delete engagement", err, simplereview.ErrScriptNotFound)
		}
	}
	return nil
}
