package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jward/pennyone"
	"github.com/jward/pennyone/internal/config"
	"github.com/jward/pennyone/internal/logging"
)

var (
	flagRoot     string
	flagDB       string
	flagFormat   string
	flagLogLevel string
)

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "pennyone",
	Short:         "Structural quality matrix and agent telemetry for a codebase",
	Long:          "PennyOne scores every source file, compiles a dependency graph, records agent activity and streams both to observers.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(flagFormat)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "project root (default: enclosing git repository or current directory)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "telemetry database path (default: .stats/pennyone.db under the root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug|info|warn|error")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(hotspotsCmd)
	rootCmd.AddCommand(sessionsCmd)
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to .pennyone/config.json",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := resolveRoot(args)
		if err != nil {
			return outputError("init", err)
		}
		cfg := config.Default()
		if err := cfg.Save(root); err != nil {
			return outputError("init", fmt.Errorf("saving config: %w", err))
		}
		return outputResult(cmd, CLIResult{
			Command: "init",
			Results: filepath.Join(root, ".pennyone", "config.json"),
		})
	},
}

// resolveRoot picks the project root: the positional argument, then --root,
// then the repository enclosing the working directory.
func resolveRoot(args []string) (string, error) {
	if len(args) > 0 {
		return resolveTargetDir(args[0])
	}
	if flagRoot != "" {
		return resolveTargetDir(flagRoot)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return findRepoRoot(cwd), nil
}

// resolveTargetDir returns the absolute path of an existing directory.
func resolveTargetDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// loadConfig reads the project's config and applies command-line overrides.
func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.Root = root
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagLogLevel != "" {
		cfg.Logging.Level = flagLogLevel
	}
	return cfg, nil
}

// openEngine loads config for the resolved root and builds an Engine that
// logs to stderr.
func openEngine(args []string) (*pennyone.Engine, error) {
	root, err := resolveRoot(args)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	engine, err := pennyone.New(cfg, pennyone.WithLogger(logging.New(cfg.Logging, os.Stderr)))
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, nil
}
