package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Analyze every source file and compile the matrix graph",
	Long:  "Crawls the project, scores each supported file, resolves imports and writes .stats/matrix-graph.json. Unchanged files are reused from the previous graph.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	engine, err := openEngine(args)
	if err != nil {
		return outputError("scan", err)
	}
	defer engine.Close()

	g, scanErr := engine.Scan(cmd.Context())
	if g == nil {
		return outputError("scan", fmt.Errorf("scanning: %w", scanErr))
	}

	rep := engine.LastReport()
	out := CLIScanReport{
		Root:       engine.Root(),
		Files:      rep.Files,
		Analyzed:   rep.Analyzed,
		Reused:     rep.Reused,
		Partial:    rep.Partial,
		Skipped:    rep.Skipped,
		DurationMS: rep.Duration.Milliseconds(),
		TotalLines: g.Summary.TotalLines,
		AvgScore:   g.Summary.AverageScore,
		GraphPath:  engine.Config().GraphPath(),
	}
	for _, e := range rep.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	if scanErr != nil {
		fmt.Fprintf(os.Stderr, "Scan finished with %d file error(s)\n", len(rep.Errors))
	}
	return outputResult(cmd, CLIResult{Command: "scan", Results: out})
}
