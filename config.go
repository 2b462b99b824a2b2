package docsect

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/brunobiangulo/docsect/record"
	"github.com/brunobiangulo/docsect/segment"
)

// EnvPrefix is the prefix for environment overrides, e.g. DOCSECT_WORKERS.
const EnvPrefix = "DOCSECT"

// Config holds all configuration for the docsect engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.docsect/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "docsect".
	DBName string `json:"db_name" yaml:"db_name" mapstructure:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.docsect/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir" mapstructure:"storage_dir"`

	// Workers bounds concurrent documents in IngestDir.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`

	// AlphaOnly drops paragraphs with no letters before segmentation.
	AlphaOnly bool `json:"alpha_only" yaml:"alpha_only" mapstructure:"alpha_only"`

	// Heuristics selects the active header rules.
	Heuristics segment.Config `json:"heuristics" yaml:"heuristics" mapstructure:"heuristics"`

	// Extraction toggles
	ExtractDocText    bool `json:"extract_doc_text" yaml:"extract_doc_text" mapstructure:"extract_doc_text"`
	ExtractSections   bool `json:"extract_sections" yaml:"extract_sections" mapstructure:"extract_sections"`
	ExtractTableText  bool `json:"extract_table_text" yaml:"extract_table_text" mapstructure:"extract_table_text"`
	ExtractProperties bool `json:"extract_properties" yaml:"extract_properties" mapstructure:"extract_properties"`
}

// DefaultConfig returns a Config that extracts everything with every
// heuristic enabled. Database is stored in ~/.docsect/docsect.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:            "docsect",
		StorageDir:        "home",
		Workers:           4,
		LogLevel:          "info",
		AlphaOnly:         true,
		Heuristics:        segment.DefaultConfig(),
		ExtractDocText:    true,
		ExtractSections:   true,
		ExtractTableText:  true,
		ExtractProperties: true,
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidConfig, c.Workers)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch c.StorageDir {
	case "", "home", "local", "cwd":
	default:
		return fmt.Errorf("%w: storage_dir must be home or local, got %q", ErrInvalidConfig, c.StorageDir)
	}
	return nil
}

// SlogLevel returns the configured log level, falling back to info.
func (c *Config) SlogLevel() slog.Level {
	lvl, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", s)
}

func (c *Config) recordOptions() record.Options {
	return record.Options{
		Heuristics: c.Heuristics,
		AlphaOnly:  c.AlphaOnly,
		DocText:    c.ExtractDocText,
		Sections:   c.ExtractSections,
		TableText:  c.ExtractTableText,
		Properties: c.ExtractProperties,
	}
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "docsect"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".docsect", name+".db")
	}
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"db":          "db_path",
	"db-name":     "db_name",
	"storage-dir": "storage_dir",
	"workers":     "workers",
	"log-level":   "log_level",
	"alpha-only":  "alpha_only",
}

// RegisterFlags defines the configuration flags on fs with defaults taken
// from DefaultConfig.
func RegisterFlags(fs *pflag.FlagSet) {
	d := DefaultConfig()
	fs.String("db", d.DBPath, "Path to the SQLite database (default ~/.docsect/docsect.db)")
	fs.String("db-name", d.DBName, "Database name when --db is not set")
	fs.String("storage-dir", d.StorageDir, "Where to place the database: home or local")
	fs.Int("workers", d.Workers, "Documents processed concurrently by ingest")
	fs.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	fs.Bool("alpha-only", d.AlphaOnly, "Skip paragraphs that contain no letters")
}

// LoadConfig layers defaults, the optional config file at path (yaml, json
// or toml), DOCSECT_* environment variables and any flags changed on fs, in
// that order of increasing precedence. fs may be nil.
func LoadConfig(path string, fs *pflag.FlagSet) (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return cfg, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during
// Unmarshal.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("db_path", cfg.DBPath)
	v.SetDefault("db_name", cfg.DBName)
	v.SetDefault("storage_dir", cfg.StorageDir)
	v.SetDefault("workers", cfg.Workers)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("alpha_only", cfg.AlphaOnly)
	v.SetDefault("extract_doc_text", cfg.ExtractDocText)
	v.SetDefault("extract_sections", cfg.ExtractSections)
	v.SetDefault("extract_table_text", cfg.ExtractTableText)
	v.SetDefault("extract_properties", cfg.ExtractProperties)

	h := cfg.Heuristics
	v.SetDefault("heuristics.use_headings", h.UseHeadings)
	v.SetDefault("heuristics.use_capitalization", h.UseCapitalization)
	v.SetDefault("heuristics.use_bold", h.UseBold)
	v.SetDefault("heuristics.use_underline", h.UseUnderline)
	v.SetDefault("heuristics.use_bold_until_colon", h.UseBoldUntilColon)
	v.SetDefault("heuristics.use_capital_letter_list", h.UseCapitalLetterList)
	v.SetDefault("heuristics.use_roman_numeral_list", h.UseRomanNumeralList)
	v.SetDefault("heuristics.ignore_bullets", h.IgnoreBullets)
}
