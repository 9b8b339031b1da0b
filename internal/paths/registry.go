// Package paths canonicalizes file paths against a single project root.
//
// Every other component compares paths as plain strings, so all of them must
// go through the same Registry: a canonical path is absolute, cleaned, and
// uses forward slashes regardless of the host separator.
package paths

import (
	"path"
	"path/filepath"
	"strings"
)

// Registry normalizes paths relative to one project root.
type Registry struct {
	root string
}

// New creates a Registry rooted at root. A relative root is resolved against
// the process working directory.
func New(root string) *Registry {
	abs := root
	if !isAbs(toSlash(root)) {
		if a, err := filepath.Abs(root); err == nil {
			abs = a
		}
	}
	return &Registry{root: clean(toSlash(abs))}
}

// Root returns the canonical project root.
func (r *Registry) Root() string {
	return r.root
}

// Normalize converts p into canonical form. Relative paths are joined to the
// root. Normalize is idempotent.
func (r *Registry) Normalize(p string) string {
	if p == "" {
		return ""
	}
	s := toSlash(p)
	if isAbs(s) {
		return clean(s)
	}
	return clean(r.root + "/" + s)
}

// Resolve resolves spec against the directory containing sourceFile.
func (r *Registry) Resolve(sourceFile, spec string) string {
	dir := path.Dir(r.Normalize(sourceFile))
	s := toSlash(spec)
	if isAbs(s) {
		return clean(s)
	}
	return clean(dir + "/" + s)
}

// Join resolves spec as a root-relative path. A leading slash is treated as
// the project root, not the filesystem root, unless spec already lies under
// the root.
func (r *Registry) Join(spec string) string {
	s := toSlash(spec)
	if isAbs(s) && r.Within(clean(s)) {
		return clean(s)
	}
	return clean(r.root + "/" + strings.TrimLeft(s, "/"))
}

// Relative returns p relative to the root, using forward slashes. Paths
// outside the root are returned in canonical absolute form.
func (r *Registry) Relative(p string) string {
	abs := r.Normalize(p)
	if abs == r.root {
		return "."
	}
	if !r.Within(abs) {
		return abs
	}
	return strings.TrimPrefix(abs, strings.TrimSuffix(r.root, "/")+"/")
}

// Within reports whether canonical path p lies under the root.
func (r *Registry) Within(p string) bool {
	if p == r.root {
		return true
	}
	return strings.HasPrefix(p, strings.TrimSuffix(r.root, "/")+"/")
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// isAbs accepts both POSIX roots and Windows drive letters.
func isAbs(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	return len(p) >= 3 && p[1] == ':' && p[2] == '/' && isLetter(p[0])
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// clean is path.Clean that keeps a Windows drive prefix intact.
func clean(p string) string {
	if len(p) >= 2 && p[1] == ':' && isLetter(p[0]) {
		rest := path.Clean("/" + strings.TrimPrefix(p[2:], "/"))
		return p[:2] + rest
	}
	return path.Clean(p)
}
