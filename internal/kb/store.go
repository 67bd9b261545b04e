package kb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/helpdeskbr/n1agent/internal/db"
)

// Store provides CRUD operations for knowledge articles.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a new article. The slug must be unused.
func (s *Store) Create(ctx context.Context, a Article) (*Article, error) {
	slug, err := NormalizeSlug(a.Slug)
	if err != nil {
		return nil, err
	}
	a.Slug = slug
	a.Tags = cleanList(a.Tags)
	a.Synonyms = cleanList(a.Synonyms)
	a.UpdatedAt = time.Now().UTC()

	tags, synonyms, err := marshalLists(a)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO articles (slug, title, tags, synonyms, active, content, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(slug) DO NOTHING`,
		a.Slug, a.Title, tags, synonyms, boolInt(a.Active), a.Content,
		a.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting article: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSlug, a.Slug)
	}
	return &a, nil
}

// Update replaces the mutable fields of an existing article.
func (s *Store) Update(ctx context.Context, a Article) (*Article, error) {
	slug, err := NormalizeSlug(a.Slug)
	if err != nil {
		return nil, err
	}
	a.Slug = slug
	a.Tags = cleanList(a.Tags)
	a.Synonyms = cleanList(a.Synonyms)
	a.UpdatedAt = time.Now().UTC()

	tags, synonyms, err := marshalLists(a)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE articles
		   SET title = ?, tags = ?, synonyms = ?, active = ?, content = ?, updated_at = ?
		 WHERE slug = ?`,
		a.Title, tags, synonyms, boolInt(a.Active), a.Content,
		a.UpdatedAt.Format(time.RFC3339), a.Slug,
	)
	if err != nil {
		return nil, fmt.Errorf("updating article: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, a.Slug)
	}
	return &a, nil
}

// SetActive toggles an article in or out of the retrievable corpus.
func (s *Store) SetActive(ctx context.Context, slug string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE articles SET active = ?, updated_at = ? WHERE slug = ?`,
		boolInt(active), time.Now().UTC().Format(time.RFC3339), slug)
	if err != nil {
		return fmt.Errorf("toggling article: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return nil
}

// Get retrieves a single article by slug.
func (s *Store) Get(ctx context.Context, slug string) (*Article, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT slug, title, tags, synonyms, active, content, updated_at
		  FROM articles WHERE slug = ?`, slug)
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, slug)
	}
	return a, err
}

// List returns all articles, active and inactive, ordered by slug.
func (s *Store) List(ctx context.Context) ([]Article, error) {
	return s.list(ctx, `
		SELECT slug, title, tags, synonyms, active, content, updated_at
		  FROM articles ORDER BY slug`)
}

// ListActive returns the indexable corpus, ordered by slug for deterministic
// index builds.
func (s *Store) ListActive(ctx context.Context) ([]Article, error) {
	return s.list(ctx, `
		SELECT slug, title, tags, synonyms, active, content, updated_at
		  FROM articles WHERE active = 1 ORDER BY slug`)
}

func (s *Store) list(ctx context.Context, query string) ([]Article, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var (
		a         Article
		tags      string
		synonyms  string
		active    int
		updatedAt string
	)
	if err := row.Scan(&a.Slug, &a.Title, &tags, &synonyms, &active, &a.Content, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
		return nil, fmt.Errorf("unmarshalling tags: %w", err)
	}
	if err := json.Unmarshal([]byte(synonyms), &a.Synonyms); err != nil {
		return nil, fmt.Errorf("unmarshalling synonyms: %w", err)
	}
	a.Active = active != 0
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		a.UpdatedAt = t
	}
	return &a, nil
}

func marshalLists(a Article) (tags string, synonyms string, err error) {
	tb, err := json.Marshal(a.Tags)
	if err != nil {
		return "", "", fmt.Errorf("marshalling tags: %w", err)
	}
	sb, err := json.Marshal(a.Synonyms)
	if err != nil {
		return "", "", fmt.Errorf("marshalling synonyms: %w", err)
	}
	return string(tb), string(sb), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
