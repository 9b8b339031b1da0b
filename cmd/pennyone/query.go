package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jward/pennyone"
	"github.com/jward/pennyone/internal/model"
)

var errNoGraph = errors.New("no compiled graph found (run 'pennyone scan' first)")

var flagLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find files by intent, path or endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, done, err := openQuery()
		if err != nil {
			return outputError("search", err)
		}
		defer done()
		hits := q.Search(args[0])
		if hits == nil {
			hits = []pennyone.SearchResult{}
		}
		return outputResult(cmd, CLIResult{Command: "search", Results: hits})
	},
}

var fileCmd = &cobra.Command{
	Use:   "file <path>",
	Short: "Show one file's scores and graph neighbours",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, done, err := openQuery()
		if err != nil {
			return outputError("file", err)
		}
		defer done()
		rec, ok := q.File(args[0])
		if !ok {
			return outputError("file", fmt.Errorf("file not in graph: %s", args[0]))
		}
		return outputResult(cmd, CLIResult{Command: "file", Results: fileDetail(q, rec)})
	},
}

var hotspotsCmd = &cobra.Command{
	Use:   "hotspots",
	Short: "List the files agents touch most",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q, done, err := openQuery()
		if err != nil {
			return outputError("hotspots", err)
		}
		defer done()
		hot := q.Hotspots(flagLimit)
		if hot == nil {
			hot = []model.FileRecord{}
		}
		return outputResult(cmd, CLIResult{Command: "hotspots", Results: hot})
	},
}

func init() {
	hotspotsCmd.Flags().IntVar(&flagLimit, "limit", 10, "maximum number of files")
}

// openQuery opens the engine over the last compiled graph. The returned func
// releases it.
func openQuery() (*pennyone.QueryBuilder, func(), error) {
	engine, err := openEngine(nil)
	if err != nil {
		return nil, nil, err
	}
	if engine.Graph() == nil {
		engine.Close()
		return nil, nil, errNoGraph
	}
	return engine.Query(), func() { engine.Close() }, nil
}

func fileDetail(q *pennyone.QueryBuilder, rec model.FileRecord) CLIFileDetail {
	d := CLIFileDetail{
		Path:         rec.Path,
		Language:     rec.Language,
		LineCount:    rec.LineCount,
		Intent:       rec.Intent,
		Overall:      rec.Scores.Overall,
		Logic:        rec.Scores.Logic,
		Style:        rec.Scores.Style,
		Docs:         rec.Scores.Documentation,
		Gravity:      rec.Scores.Gravity,
		Endpoints:    rec.Endpoints,
		Dependencies: q.Dependencies(rec.Path),
		Dependents:   q.Dependents(rec.Path),
	}
	if d.Dependencies == nil {
		d.Dependencies = []string{}
	}
	if d.Dependents == nil {
		d.Dependents = []string{}
	}
	return d
}
