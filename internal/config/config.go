package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete PennyOne configuration.
type Config struct {
	Root     string `json:"root" mapstructure:"root"`
	StatsDir string `json:"statsDir" mapstructure:"statsDir"`
	DBPath   string `json:"dbPath" mapstructure:"dbPath"`
	Workers  int    `json:"workers" mapstructure:"workers"`

	Crawl   CrawlConfig   `json:"crawl" mapstructure:"crawl"`
	Scoring ScoringConfig `json:"scoring" mapstructure:"scoring"`
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Relay   RelayConfig   `json:"relay" mapstructure:"relay"`
	Hooks   HooksConfig   `json:"hooks" mapstructure:"hooks"`
	Reports ReportsConfig `json:"reports" mapstructure:"reports"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// CrawlConfig controls which files are candidates for analysis.
type CrawlConfig struct {
	Extensions  []string `json:"extensions" mapstructure:"extensions"`
	ExcludeDirs []string `json:"excludeDirs" mapstructure:"excludeDirs"`
	UseGit      bool     `json:"useGit" mapstructure:"useGit"`
}

// ScoringConfig holds the heuristic constants of the score calculus. None of
// them are load-bearing; they are tunable.
type ScoringConfig struct {
	SymmetryDivisor       float64 `json:"symmetryDivisor" mapstructure:"symmetryDivisor"`
	SymmetryWeight        float64 `json:"symmetryWeight" mapstructure:"symmetryWeight"`
	NamingWeight          float64 `json:"namingWeight" mapstructure:"namingWeight"`
	DensityWeight         float64 `json:"densityWeight" mapstructure:"densityWeight"`
	ClaustrophobiaRun     int     `json:"claustrophobiaRun" mapstructure:"claustrophobiaRun"`
	ClaustrophobiaPenalty float64 `json:"claustrophobiaPenalty" mapstructure:"claustrophobiaPenalty"`
	UtilityClassPenalty   float64 `json:"utilityClassPenalty" mapstructure:"utilityClassPenalty"`
	DocDensityScale       float64 `json:"docDensityScale" mapstructure:"docDensityScale"`
	ExportBonus           float64 `json:"exportBonus" mapstructure:"exportBonus"`
	GravityThreshold      int     `json:"gravityThreshold" mapstructure:"gravityThreshold"`
	GravitySurcharge      float64 `json:"gravitySurcharge" mapstructure:"gravitySurcharge"`
	AnomalyWeight         float64 `json:"anomalyWeight" mapstructure:"anomalyWeight"`
}

// ServerConfig configures the HTTP bridge.
type ServerConfig struct {
	Addr      string  `json:"addr" mapstructure:"addr"`
	StaticDir string  `json:"staticDir" mapstructure:"staticDir"`
	Token     string  `json:"token" mapstructure:"token"`
	PingRate  float64 `json:"pingRate" mapstructure:"pingRate"`
	PingBurst int     `json:"pingBurst" mapstructure:"pingBurst"`
	ProjectID string  `json:"projectId" mapstructure:"projectId"`
}

// RelayConfig configures the live relay.
type RelayConfig struct {
	PingInterval  time.Duration `json:"pingInterval" mapstructure:"pingInterval"`
	Debounce      time.Duration `json:"debounce" mapstructure:"debounce"`
	ReplayMinStep time.Duration `json:"replayMinStep" mapstructure:"replayMinStep"`
	ReplayMaxStep time.Duration `json:"replayMaxStep" mapstructure:"replayMaxStep"`
}

// HooksConfig names optional Risor scripts.
type HooksConfig struct {
	IntentScript  string `json:"intentScript" mapstructure:"intentScript"`
	AnomalyScript string `json:"anomalyScript" mapstructure:"anomalyScript"`
}

// ReportsConfig controls the per-file report writer.
type ReportsConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Root:     ".",
		StatsDir: ".stats",
		DBPath:   ".stats/pennyone.db",
		Workers:  runtime.NumCPU(),
		Crawl: CrawlConfig{
			Extensions: []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".py", ".go", ".md", ".qmd"},
			ExcludeDirs: []string{
				"node_modules", "vendor", "dist", "build", "out", "coverage",
				"__pycache__", ".git", ".venv", "venv", ".stats",
			},
			UseGit: true,
		},
		Scoring: ScoringConfig{
			SymmetryDivisor:       8,
			SymmetryWeight:        0.2,
			NamingWeight:          0.2,
			DensityWeight:         0.6,
			ClaustrophobiaRun:     10,
			ClaustrophobiaPenalty: 2.0,
			UtilityClassPenalty:   1.5,
			DocDensityScale:       30,
			ExportBonus:           1.5,
			GravityThreshold:      10,
			GravitySurcharge:      1.0,
			AnomalyWeight:         2.0,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:4000",
			PingRate:  50,
			PingBurst: 100,
		},
		Relay: RelayConfig{
			PingInterval:  30 * time.Second,
			Debounce:      100 * time.Millisecond,
			ReplayMinStep: 50 * time.Millisecond,
			ReplayMaxStep: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// Load reads <root>/.pennyone/config.{json,yaml,toml} and PENNYONE_* env
// vars. A missing config file yields the defaults.
func Load(root string) (*Config, error) {
	def := Default()
	v := viper.New()
	setDefaults(v, def)

	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(root, ".pennyone"))
	v.SetEnvPrefix("PENNYONE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Root == "" || cfg.Root == "." {
		cfg.Root = root
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("root", def.Root)
	v.SetDefault("statsDir", def.StatsDir)
	v.SetDefault("dbPath", def.DBPath)
	v.SetDefault("workers", def.Workers)

	v.SetDefault("crawl.extensions", def.Crawl.Extensions)
	v.SetDefault("crawl.excludeDirs", def.Crawl.ExcludeDirs)
	v.SetDefault("crawl.useGit", def.Crawl.UseGit)

	s := def.Scoring
	v.SetDefault("scoring.symmetryDivisor", s.SymmetryDivisor)
	v.SetDefault("scoring.symmetryWeight", s.SymmetryWeight)
	v.SetDefault("scoring.namingWeight", s.NamingWeight)
	v.SetDefault("scoring.densityWeight", s.DensityWeight)
	v.SetDefault("scoring.claustrophobiaRun", s.ClaustrophobiaRun)
	v.SetDefault("scoring.claustrophobiaPenalty", s.ClaustrophobiaPenalty)
	v.SetDefault("scoring.utilityClassPenalty", s.UtilityClassPenalty)
	v.SetDefault("scoring.docDensityScale", s.DocDensityScale)
	v.SetDefault("scoring.exportBonus", s.ExportBonus)
	v.SetDefault("scoring.gravityThreshold", s.GravityThreshold)
	v.SetDefault("scoring.gravitySurcharge", s.GravitySurcharge)
	v.SetDefault("scoring.anomalyWeight", s.AnomalyWeight)

	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("server.staticDir", def.Server.StaticDir)
	v.SetDefault("server.token", def.Server.Token)
	v.SetDefault("server.pingRate", def.Server.PingRate)
	v.SetDefault("server.pingBurst", def.Server.PingBurst)
	v.SetDefault("server.projectId", def.Server.ProjectID)

	v.SetDefault("relay.pingInterval", def.Relay.PingInterval)
	v.SetDefault("relay.debounce", def.Relay.Debounce)
	v.SetDefault("relay.replayMinStep", def.Relay.ReplayMinStep)
	v.SetDefault("relay.replayMaxStep", def.Relay.ReplayMaxStep)

	v.SetDefault("hooks.intentScript", def.Hooks.IntentScript)
	v.SetDefault("hooks.anomalyScript", def.Hooks.AnomalyScript)
	v.SetDefault("reports.enabled", def.Reports.Enabled)

	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.level", def.Logging.Level)
}

// Resolve returns a copy of c with StatsDir and DBPath made absolute under
// Root.
func (c *Config) Resolve() *Config {
	out := *c
	if !filepath.IsAbs(out.StatsDir) {
		out.StatsDir = filepath.Join(out.Root, out.StatsDir)
	}
	if out.DBPath != ":memory:" && !filepath.IsAbs(out.DBPath) {
		out.DBPath = filepath.Join(out.Root, out.DBPath)
	}
	return &out
}

// GraphPath is the location of the compiled graph artifact.
func (c *Config) GraphPath() string {
	return filepath.Join(c.Resolve().StatsDir, "matrix-graph.json")
}

// Save writes the configuration to <root>/.pennyone/config.json.
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, ".pennyone")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return &Error{Field: "workers", Message: "must not be negative"}
	}
	if len(c.Crawl.Extensions) == 0 {
		return &Error{Field: "crawl.extensions", Message: "at least one extension is required"}
	}
	if c.Scoring.SymmetryDivisor <= 0 {
		return &Error{Field: "scoring.symmetryDivisor", Message: "must be positive"}
	}
	if c.Relay.ReplayMinStep > c.Relay.ReplayMaxStep {
		return &Error{Field: "relay.replayMinStep", Message: "must not exceed relay.replayMaxStep"}
	}
	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return &Error{Field: "logging.format", Message: "must be human or json"}
	}
	return nil
}

// Error represents a configuration error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
