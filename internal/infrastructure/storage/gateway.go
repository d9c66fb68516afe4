// Package storage persists the article collection. All SQL goes through
// the gateway; nothing else in the application touches the database.
//
// The url column carries no unique constraint, so idempotence is enforced
// in code: UpsertByURL does select-then-write, and DedupeByURL repairs the
// collection when concurrent writers still race a duplicate in.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsPipeline/internal/domain"
	"NewsPipeline/internal/ports"
)

// dedupeWindow bounds how many recent rows a dedupe pass inspects.
const dedupeWindow = 300

const postgresSchema = `
CREATE TABLE IF NOT EXISTS articles (
    id BIGSERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    image_url TEXT NOT NULL DEFAULT '',
    image_attribution TEXT NOT NULL DEFAULT '',
    published_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_articles_url ON articles (url);
CREATE INDEX IF NOT EXISTS idx_articles_published_at ON articles (published_at);
`

// orderColumnCandidates are probed in order to find the column that
// defines "newest" for retention. id is always present and closes the
// chain.
var orderColumnCandidates = []string{"published_at", "created_at", "inserted_at", "id"}

// Gateway implements ports.ArticleStore on database/sql.
type Gateway struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	schema  string
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.ArticleStore = (*Gateway)(nil)

// Option adjusts gateway construction.
type Option func(*Gateway)

// WithStatementBuilder overrides the placeholder format. Tests use this
// to run the gateway against SQLite.
func WithStatementBuilder(b sq.StatementBuilderType) Option {
	return func(g *Gateway) { g.builder = b }
}

// WithSchema overrides the DDL applied by EnsureSchema.
func WithSchema(ddl string) Option {
	return func(g *Gateway) { g.schema = ddl }
}

// New wires a gateway over an open database handle. Defaults target
// Postgres.
func New(db *sql.DB, logger *slog.Logger, opts ...Option) *Gateway {
	g := &Gateway{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		schema:  postgresSchema,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// EnsureSchema creates the articles table and indexes if absent.
func (g *Gateway) EnsureSchema(ctx context.Context) error {
	if _, err := g.db.ExecContext(ctx, g.schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ExistingByURL returns stored articles keyed by URL for the given set.
// When duplicates exist for a URL the newest row wins.
func (g *Gateway) ExistingByURL(ctx context.Context, urls []string) (map[string]domain.Article, error) {
	result := make(map[string]domain.Article)
	if len(urls) == 0 {
		return result, nil
	}

	query, args, err := g.builder.
		Select(articleColumns...).
		From("articles").
		Where(sq.Eq{"url": urls}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build existing query: %w", err)
	}

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query existing: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan existing: %w", err)
		}
		current, seen := result[article.URL]
		if !seen || newerArticle(article, current) {
			result[article.URL] = article
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("existing rows: %w", err)
	}

	return result, nil
}

// UpsertByURL writes the article keyed by its URL: an existing row is
// updated in place, otherwise a new row is inserted. With duplicate rows
// present, the newest one is updated.
func (g *Gateway) UpsertByURL(ctx context.Context, article domain.Article) error {
	if article.URL == "" {
		return fmt.Errorf("upsert: article has no URL")
	}

	query, args, err := g.builder.
		Select("id").
		From("articles").
		Where(sq.Eq{"url": article.URL}).
		OrderBy("id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return fmt.Errorf("build lookup: %w", err)
	}

	var id int64
	now := g.now().UTC()

	switch err := g.db.QueryRowContext(ctx, query, args...).Scan(&id); err {
	case nil:
		update, args, err := g.builder.
			Update("articles").
			Set("title", article.Title).
			Set("summary", article.Summary).
			Set("content", article.Content).
			Set("category", article.Category).
			Set("source", article.Source).
			Set("image_url", article.ImageURL).
			Set("image_attribution", article.ImageAttribution).
			Set("published_at", article.PublishedAt).
			Set("updated_at", now).
			Where(sq.Eq{"id": id}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build update: %w", err)
		}
		if _, err := g.db.ExecContext(ctx, update, args...); err != nil {
			return fmt.Errorf("update article: %w", err)
		}
		return nil

	case sql.ErrNoRows:
		insert, args, err := g.builder.
			Insert("articles").
			Columns("title", "summary", "content", "category", "url", "source",
				"image_url", "image_attribution", "published_at", "created_at", "updated_at").
			Values(article.Title, article.Summary, article.Content, article.Category,
				article.URL, article.Source, article.ImageURL, article.ImageAttribution,
				article.PublishedAt, now, now).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		if _, err := g.db.ExecContext(ctx, insert, args...); err != nil {
			return fmt.Errorf("insert article: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("lookup article: %w", err)
	}
}

// DedupeByURL removes duplicate rows sharing a URL within the recent
// window, keeping the newest row per URL. Rows without a publish
// timestamp fall back to their creation timestamp; ties go to the
// higher id. Returns the number of rows removed.
func (g *Gateway) DedupeByURL(ctx context.Context) (int, error) {
	query, args, err := g.builder.
		Select("id", "url", "published_at", "created_at").
		From("articles").
		OrderBy("id DESC").
		Limit(dedupeWindow).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build dedupe query: %w", err)
	}

	rows, err := g.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("query dedupe window: %w", err)
	}
	defer rows.Close()

	keep := make(map[string]rowRef)
	var victims []int64

	for rows.Next() {
		var (
			ref rowRef
			url string
		)
		if err := rows.Scan(&ref.id, &url, &ref.published, &ref.created); err != nil {
			return 0, fmt.Errorf("scan dedupe row: %w", err)
		}

		current, seen := keep[url]
		if !seen {
			keep[url] = ref
			continue
		}
		if ref.newerThan(current) {
			victims = append(victims, current.id)
			keep[url] = ref
		} else {
			victims = append(victims, ref.id)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("dedupe rows: %w", err)
	}

	if len(victims) == 0 {
		return 0, nil
	}

	del, args, err := g.builder.Delete("articles").Where(sq.Eq{"id": victims}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build dedupe delete: %w", err)
	}
	if _, err := g.db.ExecContext(ctx, del, args...); err != nil {
		return 0, fmt.Errorf("delete duplicates: %w", err)
	}

	g.debug("removed duplicate articles", "count", len(victims))
	return len(victims), nil
}

// PruneToNewest keeps the n newest articles and deletes the rest.
// "Newest" is defined by the first order column the table actually has.
// Returns the number of rows removed.
func (g *Gateway) PruneToNewest(ctx context.Context, n int) (int, error) {
	if n < 0 {
		n = 0
	}

	orderColumn, err := g.probeOrderColumn(ctx)
	if err != nil {
		return 0, err
	}

	var keepIDs []int64
	if n > 0 {
		query, args, err := g.builder.
			Select("id").
			From("articles").
			OrderBy(orderColumn+" DESC", "id DESC").
			Limit(uint64(n)).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("build keep query: %w", err)
		}

		rows, err := g.db.QueryContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("query keep set: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return 0, fmt.Errorf("scan keep id: %w", err)
			}
			keepIDs = append(keepIDs, id)
		}
		if err := rows.Err(); err != nil {
			return 0, fmt.Errorf("keep rows: %w", err)
		}
	}

	del := g.builder.Delete("articles")
	if len(keepIDs) > 0 {
		del = del.Where(sq.NotEq{"id": keepIDs})
	}
	query, args, err := del.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build prune delete: %w", err)
	}

	result, err := g.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune articles: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune affected: %w", err)
	}

	if affected > 0 {
		g.debug("pruned old articles", "count", affected, "orderColumn", orderColumn)
	}
	return int(affected), nil
}

// probeOrderColumn finds the first candidate column the table has.
func (g *Gateway) probeOrderColumn(ctx context.Context) (string, error) {
	for _, column := range orderColumnCandidates {
		query, args, err := g.builder.Select(column).From("articles").Limit(1).ToSql()
		if err != nil {
			return "", fmt.Errorf("build probe: %w", err)
		}
		rows, err := g.db.QueryContext(ctx, query, args...)
		if err != nil {
			continue
		}
		_ = rows.Close()
		return column, nil
	}
	return "", fmt.Errorf("no usable order column on articles")
}

var articleColumns = []string{
	"id", "title", "summary", "content", "category", "url", "source",
	"image_url", "image_attribution", "published_at", "created_at", "updated_at",
}

func scanArticle(rows *sql.Rows) (domain.Article, error) {
	var (
		a         domain.Article
		published sql.NullTime
		created   sql.NullTime
		updated   sql.NullTime
	)
	err := rows.Scan(&a.ID, &a.Title, &a.Summary, &a.Content, &a.Category, &a.URL,
		&a.Source, &a.ImageURL, &a.ImageAttribution, &published, &created, &updated)
	if err != nil {
		return domain.Article{}, err
	}
	a.PublishedAt = published.Time
	a.CreatedAt = created.Time
	a.UpdatedAt = updated.Time
	return a, nil
}

func newerArticle(candidate, current domain.Article) bool {
	if !candidate.PublishedAt.Equal(current.PublishedAt) {
		return candidate.PublishedAt.After(current.PublishedAt)
	}
	return candidate.ID > current.ID
}

// rowRef is a dedupe-window row: its id and the timestamps that define
// recency.
type rowRef struct {
	id        int64
	published sql.NullTime
	created   sql.NullTime
}

// timestamp is the row's effective recency: publish time when present,
// else creation time.
func (r rowRef) timestamp() sql.NullTime {
	if r.published.Valid {
		return r.published
	}
	return r.created
}

func (r rowRef) newerThan(other rowRef) bool {
	a, b := r.timestamp(), other.timestamp()
	switch {
	case a.Valid && !b.Valid:
		return true
	case !a.Valid && b.Valid:
		return false
	case a.Valid && b.Valid && !a.Time.Equal(b.Time):
		return a.Time.After(b.Time)
	}
	return r.id > other.id
}

func (g *Gateway) debug(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}
