package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/a3tai/pdf-evidence/internal/evidence"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeCLI   = "cli"
	ModeStdio = "stdio"

	// Default values
	DefaultLogLevel   = "info"
	DefaultMaxXref    = evidence.DefaultMaxXref
	DefaultOCRCommand = "tesseract"
	DefaultOCRTimeout = 30 * time.Second
	DefaultJobs       = 1

	// EnvPrefix is prepended to every environment variable, e.g. PDF_EVIDENCE_MAX_XREF.
	EnvPrefix = "PDF_EVIDENCE"
)

// ErrVersionRequested is returned by Load when --version was given.
var ErrVersionRequested = errors.New("version requested")

// Config holds all configuration for an evidence collection session
type Config struct {
	// Run mode: "cli" processes Inputs, "stdio" serves MCP tools
	Mode string

	// Collection configuration
	OutputDir       string
	MaxXref         int
	OCR             bool
	OCRCommand      string
	OCRTimeout      time.Duration
	Embedded        bool
	MsgpackManifest bool
	MaxFileSize     int64 // 0 means no limit
	Jobs            int

	// Application configuration
	LogLevel   string
	Quiet      bool
	NoColor    bool
	ConfigFile string
	Version    string
	ServerName string

	// Inputs are the positional PDF paths.
	Inputs []string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:       ModeCLI,
		MaxXref:    DefaultMaxXref,
		OCR:        true,
		OCRCommand: DefaultOCRCommand,
		OCRTimeout: DefaultOCRTimeout,
		Embedded:   true,
		Jobs:       DefaultJobs,
		LogLevel:   DefaultLogLevel,
		Version:    "1.0.0",
		ServerName: evidence.ToolName,
	}
}

// LoadFromFlags parses the process arguments and returns a configuration
func LoadFromFlags() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds a configuration from defaults, an optional config file, the
// environment and args, in increasing order of precedence.
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	fs := defineCommandLineFlags(cfg)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if v, _ := fs.GetBool("version"); v {
		return nil, ErrVersionRequested
	}

	v := viper.New()
	setupViperEnvironment(v, cfg)
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	populateConfigFromViper(v, cfg)
	cfg.Inputs = fs.Args()

	if cfg.OutputDir != "" {
		if abs, err := filepath.Abs(cfg.OutputDir); err == nil {
			cfg.OutputDir = abs
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupViperEnvironment configures environment lookup and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("out", cfg.OutputDir)
	v.SetDefault("max-xref", cfg.MaxXref)
	v.SetDefault("ocr", cfg.OCR)
	v.SetDefault("ocr-command", cfg.OCRCommand)
	v.SetDefault("ocr-timeout", cfg.OCRTimeout)
	v.SetDefault("embedded", cfg.Embedded)
	v.SetDefault("msgpack", cfg.MsgpackManifest)
	v.SetDefault("max-file-size", cfg.MaxFileSize)
	v.SetDefault("jobs", cfg.Jobs)
	v.SetDefault("log-level", cfg.LogLevel)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet(cfg.ServerName, pflag.ContinueOnError)
	fs.SortFlags = false

	fs.String("mode", cfg.Mode, "Run mode: 'cli' to process the given files, 'stdio' for an MCP server on standard I/O")
	fs.StringP("out", "o", cfg.OutputDir, "Case folder (default evidence_<unix time> in the working directory)")
	fs.Int("max-xref", cfg.MaxXref, "Highest object number examined by triage")
	fs.Bool("ocr", cfg.OCR, "Run OCR on extracted images when the engine is installed")
	fs.String("ocr-command", cfg.OCRCommand, "OCR engine executable")
	fs.Duration("ocr-timeout", cfg.OCRTimeout, "Time limit for a single OCR call")
	fs.Bool("embedded", cfg.Embedded, "Extract embedded file attachments")
	fs.Bool("msgpack", cfg.MsgpackManifest, "Also write the manifest in MessagePack form")
	fs.Int64("max-file-size", cfg.MaxFileSize, "Reject documents larger than this many bytes (0 for no limit)")
	fs.IntP("jobs", "j", cfg.Jobs, "Input files processed in parallel")
	fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.BoolP("quiet", "q", cfg.Quiet, "Only log warnings and errors; no progress output")
	fs.Bool("no-color", cfg.NoColor, "Disable colored console output")
	fs.StringP("config", "c", cfg.ConfigFile, "Configuration file (YAML, TOML or JSON)")
	fs.BoolP("version", "v", false, "Print version information and exit")

	fs.Usage = func() { printUsage(fs) }
	return fs
}

func printUsage(fs *pflag.FlagSet) {
	name := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <file.pdf> [file.pdf ...]\n", name)
	fmt.Fprintf(os.Stderr, "\nPDF Evidence - forensic evidence collection and triage for PDF documents\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s suspicious.pdf                      # case folder evidence_<unix time>\n", name)
	fmt.Fprintf(os.Stderr, "  %s -o case-0142 suspicious.pdf         # explicit case folder\n", name)
	fmt.Fprintf(os.Stderr, "  %s -o batch -j 4 a.pdf b.pdf c.pdf     # one case folder per input under batch/\n", name)
	fmt.Fprintf(os.Stderr, "  %s --mode=stdio                        # MCP server\n", name)
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  %s_<OPTION>   any option, upper case with '-' as '_' (e.g. %s_MAX_XREF)\n", EnvPrefix, EnvPrefix)
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString("mode")
	cfg.OutputDir = v.GetString("out")
	cfg.MaxXref = v.GetInt("max-xref")
	cfg.OCR = v.GetBool("ocr")
	cfg.OCRCommand = v.GetString("ocr-command")
	cfg.OCRTimeout = v.GetDuration("ocr-timeout")
	cfg.Embedded = v.GetBool("embedded")
	cfg.MsgpackManifest = v.GetBool("msgpack")
	cfg.MaxFileSize = v.GetInt64("max-file-size")
	cfg.Jobs = v.GetInt("jobs")
	cfg.LogLevel = v.GetString("log-level")
	cfg.Quiet = v.GetBool("quiet")
	cfg.NoColor = v.GetBool("no-color")
	cfg.ConfigFile = v.GetString("config")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeCLI && c.Mode != ModeStdio {
		return errors.New("mode must be either 'cli' or 'stdio'")
	}

	if c.MaxXref < 1 {
		return errors.New("max-xref must be at least 1")
	}

	if c.Jobs < 1 {
		return errors.New("jobs must be at least 1")
	}

	if c.OCR && c.OCRTimeout <= 0 {
		return errors.New("ocr-timeout must be positive")
	}

	if c.MaxFileSize < 0 {
		return errors.New("maximum file size cannot be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.Mode == ModeCLI && len(c.Inputs) == 0 {
		return errors.New("no input files given")
	}

	return nil
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// IsStdioMode returns true if the tools are served over MCP stdio
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// SlogLevel maps LogLevel to a slog level. Quiet raises anything below warn
// to warn.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if c.Quiet && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	return level
}

// EvidenceOptions projects the configuration onto the collector options.
// The OCR engine, logger and progress callback are left for the caller.
func (c *Config) EvidenceOptions() evidence.Options {
	opts := evidence.DefaultOptions()
	opts.OutputDir = c.OutputDir
	opts.MaxXref = c.MaxXref
	opts.ExtractEmbedded = c.Embedded
	opts.Msgpack = c.MsgpackManifest
	opts.OCRTimeout = c.OCRTimeout
	opts.ToolVersion = c.Version
	return opts
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, OutputDir: %s, MaxXref: %d, OCR: %t, Embedded: %t, Msgpack: %t, Jobs: %d, LogLevel: %s, Inputs: %d}",
		c.Mode, c.OutputDir, c.MaxXref, c.OCR, c.Embedded, c.MsgpackManifest, c.Jobs, c.LogLevel, len(c.Inputs))
}
