package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

// clearEnvVars unsets every variable Load reads for the duration of the test.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MODE", "OUT", "MAX_XREF", "OCR", "OCR_COMMAND", "OCR_TIMEOUT", "EMBEDDED",
		"MSGPACK", "MAX_FILE_SIZE", "JOBS", "LOG_LEVEL", "QUIET", "NO_COLOR", "CONFIG",
	} {
		name := EnvPrefix + "_" + key
		if old, ok := os.LookupEnv(name); ok {
			os.Unsetenv(name)
			t.Cleanup(func() { os.Setenv(name, old) })
		}
	}
}

func TestLoad_DefaultConfig(t *testing.T) {
	clearEnvVars(t)

	cfg, err := Load([]string{"sample.pdf"})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.Mode != "cli" {
		t.Errorf("Load() Mode = %v, want %v", cfg.Mode, "cli")
	}
	if cfg.MaxXref != 200 {
		t.Errorf("Load() MaxXref = %v, want %v", cfg.MaxXref, 200)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Load() LogLevel = %v, want %v", cfg.LogLevel, "info")
	}
	if !cfg.OCR || !cfg.Embedded || cfg.MsgpackManifest {
		t.Errorf("Load() OCR=%t Embedded=%t Msgpack=%t", cfg.OCR, cfg.Embedded, cfg.MsgpackManifest)
	}
	if len(cfg.Inputs) != 1 || cfg.Inputs[0] != "sample.pdf" {
		t.Errorf("Load() Inputs = %v, want [sample.pdf]", cfg.Inputs)
	}
}

func TestLoad_ValidFlags(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "case folder is made absolute",
			args: []string{"--out=case-0142", "a.pdf"},
			check: func(t *testing.T, cfg *Config) {
				if !filepath.IsAbs(cfg.OutputDir) || filepath.Base(cfg.OutputDir) != "case-0142" {
					t.Errorf("OutputDir = %v, want absolute path ending in case-0142", cfg.OutputDir)
				}
			},
		},
		{
			name: "short flags",
			args: []string{"-o", "/tmp/cases", "-j", "3", "-q", "a.pdf", "b.pdf"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.OutputDir != "/tmp/cases" || cfg.Jobs != 3 || !cfg.Quiet {
					t.Errorf("OutputDir=%v Jobs=%v Quiet=%v", cfg.OutputDir, cfg.Jobs, cfg.Quiet)
				}
				if len(cfg.Inputs) != 2 {
					t.Errorf("Inputs = %v, want two files", cfg.Inputs)
				}
			},
		},
		{
			name: "collection switches",
			args: []string{"--max-xref=50", "--ocr=false", "--embedded=false", "--msgpack", "a.pdf"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.MaxXref != 50 || cfg.OCR || cfg.Embedded || !cfg.MsgpackManifest {
					t.Errorf("MaxXref=%v OCR=%v Embedded=%v Msgpack=%v", cfg.MaxXref, cfg.OCR, cfg.Embedded, cfg.MsgpackManifest)
				}
			},
		},
		{
			name: "ocr engine settings",
			args: []string{"--ocr-command=/opt/ocr/bin/tesseract", "--ocr-timeout=5s", "a.pdf"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.OCRCommand != "/opt/ocr/bin/tesseract" || cfg.OCRTimeout != 5*time.Second {
					t.Errorf("OCRCommand=%v OCRTimeout=%v", cfg.OCRCommand, cfg.OCRTimeout)
				}
			},
		},
		{
			name: "stdio mode needs no inputs",
			args: []string{"--mode=stdio", "--log-level=debug"},
			check: func(t *testing.T, cfg *Config) {
				if !cfg.IsStdioMode() || !cfg.IsDebug() {
					t.Errorf("Mode=%v LogLevel=%v", cfg.Mode, cfg.LogLevel)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)

			cfg, err := Load(tt.args)
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("PDF_EVIDENCE_MAX_XREF", "75")
	t.Setenv("PDF_EVIDENCE_OCR", "false")
	t.Setenv("PDF_EVIDENCE_LOG_LEVEL", "warn")
	t.Setenv("PDF_EVIDENCE_OCR_TIMEOUT", "10s")
	t.Setenv("PDF_EVIDENCE_OUT", "/tmp/env-case")

	cfg, err := Load([]string{"a.pdf"})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.MaxXref != 75 {
		t.Errorf("Load() MaxXref = %v, want %v", cfg.MaxXref, 75)
	}
	if cfg.OCR {
		t.Error("Load() OCR = true, want false from environment")
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("Load() LogLevel = %v, want %v", cfg.LogLevel, "warn")
	}
	if cfg.OCRTimeout != 10*time.Second {
		t.Errorf("Load() OCRTimeout = %v, want %v", cfg.OCRTimeout, 10*time.Second)
	}
	if cfg.OutputDir != "/tmp/env-case" {
		t.Errorf("Load() OutputDir = %v, want %v", cfg.OutputDir, "/tmp/env-case")
	}
}

func TestLoad_FlagOverridesEnvironment(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("PDF_EVIDENCE_MAX_XREF", "75")
	t.Setenv("PDF_EVIDENCE_LOG_LEVEL", "warn")

	cfg, err := Load([]string{"--max-xref=10", "--log-level=error", "a.pdf"})
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if cfg.MaxXref != 10 {
		t.Errorf("Load() MaxXref = %v, want %v (should override env)", cfg.MaxXref, 10)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("Load() LogLevel = %v, want %v (should override env)", cfg.LogLevel, "error")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnvVars(t)

	path := filepath.Join(t.TempDir(), "evidence.yaml")
	content := "max-xref: 400\nembedded: false\nlog-level: debug\nocr-timeout: 2m\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Run("file values apply", func(t *testing.T) {
		cfg, err := Load([]string{"--config=" + path, "a.pdf"})
		if err != nil {
			t.Fatalf("Load() unexpected error: %v", err)
		}
		if cfg.MaxXref != 400 || cfg.Embedded || cfg.LogLevel != "debug" || cfg.OCRTimeout != 2*time.Minute {
			t.Errorf("Load() MaxXref=%v Embedded=%v LogLevel=%v OCRTimeout=%v", cfg.MaxXref, cfg.Embedded, cfg.LogLevel, cfg.OCRTimeout)
		}
	})

	t.Run("environment beats file", func(t *testing.T) {
		t.Setenv("PDF_EVIDENCE_MAX_XREF", "30")
		cfg, err := Load([]string{"-c", path, "a.pdf"})
		if err != nil {
			t.Fatalf("Load() unexpected error: %v", err)
		}
		if cfg.MaxXref != 30 {
			t.Errorf("Load() MaxXref = %v, want %v", cfg.MaxXref, 30)
		}
	})

	t.Run("flag beats file", func(t *testing.T) {
		cfg, err := Load([]string{"-c", path, "--max-xref=5", "a.pdf"})
		if err != nil {
			t.Fatalf("Load() unexpected error: %v", err)
		}
		if cfg.MaxXref != 5 {
			t.Errorf("Load() MaxXref = %v, want %v", cfg.MaxXref, 5)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load([]string{"--config=" + filepath.Join(t.TempDir(), "absent.yaml"), "a.pdf"})
		if err == nil || !strings.Contains(err.Error(), "read config file") {
			t.Errorf("Load() error = %v, want config file error", err)
		}
	})
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"invalid mode", []string{"--mode=server", "a.pdf"}, "mode must be either 'cli' or 'stdio'"},
		{"invalid log level", []string{"--log-level=invalid", "a.pdf"}, "invalid log level"},
		{"zero max-xref", []string{"--max-xref=0", "a.pdf"}, "max-xref must be at least 1"},
		{"no inputs", []string{}, "no input files given"},
		{"unknown flag", []string{"--port=8080", "a.pdf"}, "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)

			_, err := Load(tt.args)
			if err == nil {
				t.Fatalf("Load() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_VersionFlag(t *testing.T) {
	clearEnvVars(t)

	for _, arg := range []string{"--version", "-v"} {
		_, err := Load([]string{arg})
		if !errors.Is(err, ErrVersionRequested) {
			t.Errorf("Load(%s) error = %v, want ErrVersionRequested", arg, err)
		}
	}
}

func TestLoad_Help(t *testing.T) {
	clearEnvVars(t)

	_, err := Load([]string{"--help"})
	if !errors.Is(err, pflag.ErrHelp) {
		t.Errorf("Load(--help) error = %v, want pflag.ErrHelp", err)
	}
}
