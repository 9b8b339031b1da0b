package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// CLIResult is the JSON envelope every command writes.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIScanReport is the JSON form of a scan outcome.
type CLIScanReport struct {
	Root       string   `json:"root"`
	Files      int      `json:"files"`
	Analyzed   int      `json:"analyzed"`
	Reused     int      `json:"reused"`
	Partial    int      `json:"partial"`
	Skipped    int      `json:"skipped"`
	Errors     []string `json:"errors,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	TotalLines int      `json:"total_lines"`
	AvgScore   float64  `json:"average_score"`
	GraphPath  string   `json:"graph_path"`
}

// CLIFileDetail is one file with its graph neighbours.
type CLIFileDetail struct {
	Path         string   `json:"path"`
	Language     string   `json:"language"`
	LineCount    int      `json:"line_count"`
	Intent       string   `json:"intent,omitempty"`
	Overall      float64  `json:"overall"`
	Logic        float64  `json:"logic"`
	Style        float64  `json:"style"`
	Docs         float64  `json:"documentation"`
	Gravity      int      `json:"gravity"`
	Endpoints    []string `json:"endpoints,omitempty"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`
}

// outputResult writes result to the command's stdout in the selected format.
func outputResult(cmd *cobra.Command, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(cmd.OutOrStdout(), result)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
