// Package crawl discovers candidate source files under a project root.
package crawl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jward/pennyone/internal/paths"
)

// DefaultExtensions is the allow-list used when none is configured.
var DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".py", ".go", ".md", ".qmd"}

// DefaultExcludeDirs is the deny-list used when none is configured. Hidden
// directories are always skipped.
var DefaultExcludeDirs = []string{
	"node_modules", "vendor", "dist", "build", "out", "coverage",
	"__pycache__", ".git", ".venv", "venv", ".stats",
}

// Crawler lists candidate files. It holds no state between calls.
type Crawler struct {
	reg        *paths.Registry
	extensions map[string]bool
	exclude    map[string]bool
	useGit     bool
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithExtensions replaces the extension allow-list.
func WithExtensions(exts ...string) Option {
	return func(c *Crawler) {
		c.extensions = make(map[string]bool, len(exts))
		for _, e := range exts {
			c.extensions[strings.ToLower(e)] = true
		}
	}
}

// WithExcludeDirs replaces the directory deny-list.
func WithExcludeDirs(dirs ...string) Option {
	return func(c *Crawler) {
		c.exclude = make(map[string]bool, len(dirs))
		for _, d := range dirs {
			c.exclude[d] = true
		}
	}
}

// WithGit controls whether git ls-files is attempted before walking.
func WithGit(enabled bool) Option {
	return func(c *Crawler) {
		c.useGit = enabled
	}
}

// New creates a Crawler that canonicalizes results through reg.
func New(reg *paths.Registry, opts ...Option) *Crawler {
	c := &Crawler{reg: reg, useGit: true}
	WithExtensions(DefaultExtensions...)(c)
	WithExcludeDirs(DefaultExcludeDirs...)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl returns the sorted, deduplicated canonical paths of every candidate
// file under root. Inside a git work tree .gitignore is respected; otherwise
// the filesystem is walked.
func (c *Crawler) Crawl(ctx context.Context, root string) ([]string, error) {
	var (
		found []string
		err   error
	)
	if c.useGit {
		found, err = c.gitListFiles(ctx, root)
	}
	if !c.useGit || err != nil {
		found, err = c.walkListFiles(ctx, root)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(found))
	out := make([]string, 0, len(found))
	for _, p := range found {
		canon := c.reg.Normalize(p)
		if seen[canon] {
			continue
		}
		seen[canon] = true
		out = append(out, canon)
	}
	sort.Strings(out)
	return out, nil
}

// Accepts reports whether a root-relative or absolute path passes both the
// extension allow-list and the directory deny-list.
func (c *Crawler) Accepts(path string) bool {
	rel := c.reg.Relative(path)
	if !c.extensions[strings.ToLower(filepath.Ext(rel))] {
		return false
	}
	parts := strings.Split(rel, "/")
	for _, dir := range parts[:len(parts)-1] {
		if c.skipDir(dir) {
			return false
		}
	}
	return true
}

// SkipDir reports whether a directory with this base name is never crawled.
func (c *Crawler) SkipDir(name string) bool {
	return c.skipDir(name)
}

func (c *Crawler) skipDir(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".") || c.exclude[name]
}

func (c *Crawler) gitListFiles(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}

	var out []string
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		abs := filepath.Join(root, line)
		if !c.Accepts(abs) {
			continue
		}
		// Tracked files deleted from the work tree are still listed.
		if _, err := os.Lstat(abs); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		out = append(out, abs)
	}
	return out, nil
}

func (c *Crawler) walkListFiles(ctx context.Context, root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && c.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if c.extensions[strings.ToLower(filepath.Ext(path))] {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}
	return out, nil
}
