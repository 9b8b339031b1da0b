package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/pennyone/internal/model"
)

var flagOutDir string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect recorded agent sessions",
}

func init() {
	sessionsExportCmd.Flags().StringVar(&flagOutDir, "out", "", "output directory (default: .stats/sessions)")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsPingsCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions for the project, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := openEngine(nil)
		if err != nil {
			return outputError("sessions list", err)
		}
		defer engine.Close()
		sessions, err := engine.Store().SessionsWithSummaries(engine.Root())
		if err != nil {
			return outputError("sessions list", err)
		}
		if sessions == nil {
			sessions = []model.SessionSummary{}
		}
		return outputResult(cmd, CLIResult{Command: "sessions list", Results: sessions})
	},
}

var sessionsPingsCmd = &cobra.Command{
	Use:   "pings <id>",
	Short: "Show a session's pings in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseSessionID(args[0])
		if err != nil {
			return outputError("sessions pings", err)
		}
		engine, err := openEngine(nil)
		if err != nil {
			return outputError("sessions pings", err)
		}
		defer engine.Close()
		if _, err := engine.Store().Session(id); err != nil {
			return outputError("sessions pings", err)
		}
		pings, err := engine.Store().SessionPings(id)
		if err != nil {
			return outputError("sessions pings", err)
		}
		if pings == nil {
			pings = []model.Ping{}
		}
		return outputResult(cmd, CLIResult{Command: "sessions pings", Results: pings})
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Write a session and its pings to session_<id>.json",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseSessionID(args[0])
		if err != nil {
			return outputError("sessions export", err)
		}
		engine, err := openEngine(nil)
		if err != nil {
			return outputError("sessions export", err)
		}
		defer engine.Close()
		dir := flagOutDir
		if dir == "" {
			dir = filepath.Join(engine.Config().StatsDir, "sessions")
		}
		path, err := engine.Store().ExportSession(id, dir)
		if err != nil {
			return outputError("sessions export", err)
		}
		return outputResult(cmd, CLIResult{Command: "sessions export", Results: path})
	},
}

func parseSessionID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id %q", raw)
	}
	return id, nil
}
