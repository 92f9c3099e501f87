package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"NewsletterAgent/internal/config"
	"NewsletterAgent/internal/domain"
	"NewsletterAgent/internal/ports"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

// SQLRepository keeps archived newsletters and the history of published article
// URLs in SQLite or Postgres.
type SQLRepository struct {
	db      *sql.DB
	driver  string
	builder sq.StatementBuilderType
}

var (
	_ ports.ArticleRepository = (*SQLRepository)(nil)
	_ ports.Archiver          = (*SQLRepository)(nil)
)

// OpenSQL connects to the configured database and ensures the schema exists.
func OpenSQL(ctx context.Context, cfg config.StorageConfig) (*SQLRepository, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", driverSQLite, "sqlite3":
		driver = driverSQLite
	case driverPostgres, "postgresql", "pq":
		driver = driverPostgres
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("storage dsn is empty")
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == driverSQLite {
		db.SetMaxOpenConns(1)
	}

	repo := NewSQLRepository(db, driver)
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// NewSQLRepository wraps an open handle. driver selects the placeholder style.
func NewSQLRepository(db *sql.DB, driver string) *SQLRepository {
	builder := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if driver == driverPostgres {
		builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &SQLRepository{db: db, driver: driver, builder: builder}
}

// Migrate creates the tables when missing.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	scoreType := "REAL"
	if r.driver == driverPostgres {
		scoreType = "DOUBLE PRECISION"
	}
	statements := []string{
		`CREATE TABLE IF NOT EXISTS newsletters (
			run_id TEXT PRIMARY KEY,
			subject TEXT NOT NULL,
			markdown TEXT NOT NULL,
			html TEXT NOT NULL,
			approved BOOLEAN NOT NULL,
			quality_score ` + scoreType + ` NOT NULL,
			article_count INTEGER NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS published_articles (
			url TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			title TEXT NOT NULL,
			category TEXT NOT NULL,
			published_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Close releases the database handle.
func (r *SQLRepository) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Store upserts the newsletter of a run and returns its reference.
func (r *SQLRepository) Store(ctx context.Context, entry domain.ArchiveEntry) (string, error) {
	if r.db == nil {
		return "", fmt.Errorf("sql archive: no database")
	}

	query, args, err := r.builder.
		Insert("newsletters").
		Columns("run_id", "subject", "markdown", "html", "approved", "quality_score", "article_count", "created_at").
		Values(entry.RunID, entry.Subject, entry.Markdown, entry.HTML, entry.Approved, entry.QualityScore, len(entry.Articles), entry.CreatedAt.UTC()).
		Suffix(`ON CONFLICT (run_id) DO UPDATE SET
			subject = excluded.subject,
			markdown = excluded.markdown,
			html = excluded.html,
			approved = excluded.approved,
			quality_score = excluded.quality_score,
			article_count = excluded.article_count,
			created_at = excluded.created_at`).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build archive insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("archive newsletter: %w", err)
	}
	return "sql:newsletters/" + entry.RunID, nil
}

// AlreadyPublished returns the subset of urls sent in an earlier newsletter.
func (r *SQLRepository) AlreadyPublished(ctx context.Context, urls []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if r.db == nil || len(urls) == 0 {
		return result, nil
	}

	selectURLs := r.builder.Select("url").From("published_articles")
	if r.driver == driverPostgres {
		selectURLs = selectURLs.Where(sq.Expr("url = ANY(?)", pq.StringArray(urls)))
	} else {
		selectURLs = selectURLs.Where(sq.Eq{"url": urls})
	}
	query, args, err := selectURLs.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build published query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query published: %w", err)
	}

	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan url: %w", err)
		}
		result[url] = true
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

// MarkPublished records article URLs of a sent newsletter. Known URLs keep their first run.
func (r *SQLRepository) MarkPublished(ctx context.Context, runID string, articles []domain.NewsletterArticle) error {
	if r.db == nil || len(articles) == 0 {
		return nil
	}

	now := timeNow().UTC()
	insert := r.builder.
		Insert("published_articles").
		Columns("url", "run_id", "title", "category", "published_at").
		Suffix("ON CONFLICT (url) DO NOTHING")

	seen := make(map[string]bool, len(articles))
	for _, a := range articles {
		url := strings.TrimSpace(a.URL)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		insert = insert.Values(url, runID, a.Title, a.Category, now)
	}
	if len(seen) == 0 {
		return nil
	}

	query, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build publish insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
