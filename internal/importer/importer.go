// Package importer seeds the knowledge base from a directory of markdown
// files. Each file becomes one article; an optional YAML frontmatter block
// carries title, tags, synonyms and the active flag.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"

	"github.com/helpdeskbr/n1agent/internal/kb"
)

// Options configures one import run.
type Options struct {
	// Include restricts the run to paths matching any pattern (doublestar
	// globs, relative to the root). Empty means every .md file.
	Include []string
	// Quiet suppresses the terminal progress bar.
	Quiet bool
}

// Result summarizes an import run.
type Result struct {
	Created int
	Updated int
	Skipped int
}

// Importer loads markdown articles into the knowledge store.
type Importer struct {
	store *kb.Store
}

// New creates an Importer writing to the given store.
func New(store *kb.Store) *Importer {
	return &Importer{store: store}
}

// Run imports every matching markdown file under root. Existing slugs are
// updated in place; files whose name does not yield a valid slug are
// skipped with a warning in the result.
func (im *Importer) Run(ctx context.Context, root string, opts Options) (*Result, error) {
	files, err := collectFiles(root, opts.Include)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no markdown files found under %s", root)
	}

	var bar *progressbar.ProgressBar
	if !opts.Quiet {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Importing articles"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	res := &Result{}
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := im.importFile(ctx, root, path, res); err != nil {
			return res, fmt.Errorf("importing %s: %w", path, err)
		}
		if bar != nil {
			bar.Describe(filepath.Base(path))
			_ = bar.Set(i + 1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return res, nil
}

func (im *Importer) importFile(ctx context.Context, root, path string, res *Result) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fm, body := parseFrontmatter(string(raw))

	slugSource := fm.Slug
	if slugSource == "" {
		base := filepath.Base(path)
		slugSource = strings.TrimSuffix(base, filepath.Ext(base))
		slugSource = strings.ReplaceAll(slugSource, " ", "-")
	}
	slug, err := kb.NormalizeSlug(slugSource)
	if err != nil {
		res.Skipped++
		return nil
	}

	title := fm.Title
	if title == "" {
		title = firstHeading(body)
	}
	if title == "" {
		title = slug
	}

	article := kb.Article{
		Slug:     slug,
		Title:    title,
		Tags:     fm.Tags,
		Synonyms: fm.Synonyms,
		Active:   fm.Active == nil || *fm.Active,
		Content:  body,
	}

	_, err = im.store.Create(ctx, article)
	switch {
	case err == nil:
		res.Created++
		return nil
	case errors.Is(err, kb.ErrDuplicateSlug):
		if _, err := im.store.Update(ctx, article); err != nil {
			return err
		}
		res.Updated++
		return nil
	default:
		return err
	}
}

// collectFiles walks root and returns the matching markdown paths, sorted by
// the walk order (lexicographic), so repeated runs are deterministic.
func collectFiles(root string, include []string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if !matchesInclude(rel, include) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

func matchesInclude(rel string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	normalized := filepath.ToSlash(rel)
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(pattern)
		if ok, err := doublestar.PathMatch(pattern, normalized); err == nil && ok {
			return true
		}
		if ok, err := doublestar.PathMatch(pattern, filepath.Base(normalized)); err == nil && ok {
			return true
		}
	}
	return false
}
