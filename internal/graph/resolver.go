package graph

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/jward/pennyone/internal/model"
	"github.com/jward/pennyone/internal/paths"
)

// ResolveExtensions are tried, in order, after an exact match fails.
var ResolveExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".py", ".go"}

// higherExtensions maps a generic extension to the ones that commonly
// replace it after compilation (./b.js imported from TypeScript is b.ts).
var higherExtensions = map[string][]string{
	".js":  {".ts", ".tsx"},
	".jsx": {".tsx"},
}

// Resolver maps raw import specifiers to canonical paths in a known set.
type Resolver struct {
	reg   *paths.Registry
	known map[string]bool

	// goModule is the root's Go module path; goPackages maps a package
	// directory to the file that stands for it.
	goModule   string
	goPackages map[string]string
}

// NewResolver creates a Resolver against a fixed snapshot of known paths.
// A non-empty goModule lets imports under that module resolve to the
// package's files.
func NewResolver(reg *paths.Registry, known map[string]bool, goModule string) *Resolver {
	r := &Resolver{reg: reg, known: known, goModule: goModule}
	if goModule != "" {
		r.goPackages = goPackageFiles(known)
	}
	return r
}

// GoModulePath returns the module path declared by root/go.mod, or "" when
// there is none.
func GoModulePath(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

// goPackageFiles picks one file per Go package directory: <dir>/<base>.go
// when present, otherwise the first non-test file by name.
func goPackageFiles(known map[string]bool) map[string]string {
	var files []string
	for p := range known {
		if strings.HasSuffix(p, ".go") && !strings.HasSuffix(p, "_test.go") {
			files = append(files, p)
		}
	}
	sort.Strings(files)
	out := make(map[string]string)
	for _, f := range files {
		dir := path.Dir(f)
		if _, ok := out[dir]; !ok {
			out[dir] = f
		}
	}
	for dir := range out {
		if named := dir + "/" + path.Base(dir) + ".go"; known[named] {
			out[dir] = named
		}
	}
	return out
}

// Resolve returns the canonical target of edge imported from source. An
// unresolved dependency returns false and is dropped by the caller.
func (r *Resolver) Resolve(source string, edge model.ImportEdge) (string, bool) {
	spec := strings.TrimSpace(edge.Source)
	if spec == "" {
		return "", false
	}
	if rel, ok := r.inGoModule(spec); ok {
		target, ok := r.goPackages[r.reg.Join(rel)]
		return target, ok
	}
	if dotted(spec) {
		if target, ok := r.resolveSpec(source, strings.ReplaceAll(spec, ".", "/")); ok {
			return target, true
		}
	}
	return r.resolveSpec(source, spec)
}

func (r *Resolver) resolveSpec(source, spec string) (string, bool) {
	var base string
	if relative(spec) {
		base = r.reg.Resolve(source, spec)
	} else {
		base = r.reg.Join(spec)
	}
	if target, ok := r.probe(base); ok {
		return target, true
	}
	ext := path.Ext(base)
	for _, alt := range higherExtensions[ext] {
		if target, ok := r.probe(strings.TrimSuffix(base, ext) + alt); ok {
			return target, true
		}
	}
	return "", false
}

// probe tries base exactly, with each extension, then as a directory index.
func (r *Resolver) probe(base string) (string, bool) {
	if r.known[base] {
		return base, true
	}
	for _, ext := range ResolveExtensions {
		if r.known[base+ext] {
			return base + ext, true
		}
	}
	for _, ext := range ResolveExtensions {
		if idx := base + "/index" + ext; r.known[idx] {
			return idx, true
		}
	}
	return "", false
}

// inGoModule strips the module path from an import inside it.
func (r *Resolver) inGoModule(spec string) (string, bool) {
	if r.goModule == "" {
		return "", false
	}
	if spec == r.goModule {
		return "", true
	}
	rel, ok := strings.CutPrefix(spec, r.goModule+"/")
	return rel, ok
}

// dotted reports a module path like "core.engine": no separators and no
// leading dot.
func dotted(spec string) bool {
	return strings.Contains(spec, ".") &&
		!strings.HasPrefix(spec, ".") &&
		!strings.ContainsAny(spec, `/\`)
}

func relative(spec string) bool {
	s := strings.ReplaceAll(spec, `\`, "/")
	return s == "." || s == ".." || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../")
}
