// Package pennyone scores a source tree file by file, links the files into
// a dependency graph, and records how agents move through it.
//
// # Pipeline
//
// [Engine.Scan] runs in three phases:
//
//  1. Crawl the root (git ls-files when available, otherwise a directory
//     walk), read and hash every supported file, and reuse the prior
//     record of any file whose hash is unchanged.
//  2. Parse changed files with tree-sitter on a bounded worker pool and
//     derive logic, style and documentation scores, imports, exports and
//     HTTP endpoints.
//  3. Resolve imports against the set of scanned paths, compile the graph
//     and write it atomically to <statsDir>/matrix-graph.json.
//
// [Engine.Refresh] re-analyzes individual files after an edit.
//
// # Telemetry
//
// Agents report what they touch as pings. The [Store] groups pings into
// sessions per agent and project, and the ping count of a file (its
// gravity) feeds back into its overall score on the next scan.
//
// # Usage
//
//	cfg, err := config.Load("path/to/project")
//	if err != nil { ... }
//	e, err := pennyone.New(cfg)
//	if err != nil { ... }
//	defer e.Close()
//
//	g, err := e.Scan(ctx)
//	hits := e.Query().Search("auth")
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] provides:
//
//   - [QueryBuilder.Search] - files by intent, path or endpoint.
//   - [QueryBuilder.Dependencies] - what a file imports.
//   - [QueryBuilder.Dependents] - who imports a file.
//   - [QueryBuilder.Hotspots] - the most visited files.
package pennyone
