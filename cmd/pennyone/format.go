package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jward/pennyone"
	"github.com/jward/pennyone/internal/model"
)

func formatScanText(w io.Writer, r CLIScanReport) {
	fmt.Fprintf(w, "Scanned %s in %dms\n", r.Root, r.DurationMS)
	fmt.Fprintf(w, "Files: %d (analyzed %d, reused %d, partial %d, skipped %d)\n",
		r.Files, r.Analyzed, r.Reused, r.Partial, r.Skipped)
	fmt.Fprintf(w, "Lines: %d\n", r.TotalLines)
	fmt.Fprintf(w, "Average score: %.2f\n", r.AvgScore)
	fmt.Fprintf(w, "Graph: %s\n", r.GraphPath)
	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
}

func formatSearchText(w io.Writer, hits []pennyone.SearchResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSCORE\tMATCHED\tINTENT")
	for _, h := range hits {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\n",
			h.RelPath, h.Scores.Overall, strings.Join(h.MatchedOn, ","), h.Intent)
	}
	tw.Flush()
}

func formatRecordsText(w io.Writer, recs []model.FileRecord) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tGRAVITY\tSCORE\tLOC")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%d\n", r.Path, r.Scores.Gravity, r.Scores.Overall, r.LineCount)
	}
	tw.Flush()
}

func formatFileText(w io.Writer, f CLIFileDetail) {
	fmt.Fprintf(w, "File: %s\n", f.Path)
	fmt.Fprintf(w, "Language: %s\n", f.Language)
	fmt.Fprintf(w, "Lines: %d\n", f.LineCount)
	if f.Intent != "" {
		fmt.Fprintf(w, "Intent: %s\n", f.Intent)
	}
	fmt.Fprintf(w, "Scores: overall %.2f, logic %.2f, style %.2f, documentation %.2f\n",
		f.Overall, f.Logic, f.Style, f.Docs)
	fmt.Fprintf(w, "Gravity: %d\n", f.Gravity)
	for _, group := range []struct {
		title string
		items []string
	}{
		{"Endpoints", f.Endpoints},
		{"Dependencies", f.Dependencies},
		{"Dependents", f.Dependents},
	} {
		if len(group.items) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s:\n", group.title)
		for _, item := range group.items {
			fmt.Fprintf(w, "  %s\n", item)
		}
	}
}

func formatSessionsText(w io.Writer, sessions []model.SessionSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAGENT\tSTART\tPINGS\tSUMMARY")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			s.ID, s.AgentID, s.Start.Format("2006-01-02 15:04:05"), s.TotalPings, s.Summary)
	}
	tw.Flush()
}

func formatPingsText(w io.Writer, pings []model.Ping) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tAGENT\tACTION\tTARGET")
	for _, p := range pings {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			p.Timestamp.Format("15:04:05.000"), p.AgentID, p.Action, p.TargetPath)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case CLIScanReport:
		formatScanText(w, v)
	case []pennyone.SearchResult:
		formatSearchText(w, v)
	case []model.FileRecord:
		formatRecordsText(w, v)
	case CLIFileDetail:
		formatFileText(w, v)
	case []model.SessionSummary:
		formatSessionsText(w, v)
	case []model.Ping:
		formatPingsText(w, v)
	case string:
		fmt.Fprintln(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}
