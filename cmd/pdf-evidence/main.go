package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/pdf-evidence/internal/config"
	"github.com/a3tai/pdf-evidence/internal/evidence"
	"github.com/a3tai/pdf-evidence/internal/mcp"
	"github.com/a3tai/pdf-evidence/internal/ocr"
	"github.com/a3tai/pdf-evidence/internal/pdf"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging returns the process logger. Logs always go to stderr so
// stdout stays free for results and the MCP protocol.
func setupLogging(cfg *config.Config, stderr io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run is main without the process globals. It returns the exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := config.Load(args)
	switch {
	case errors.Is(err, config.ErrVersionRequested):
		printVersion(stdout)
		return 0
	case errors.Is(err, pflag.ErrHelp):
		return 0
	case err != nil:
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 2
	}

	if version != "dev" {
		cfg.Version = version
	}
	if cfg.NoColor {
		color.NoColor = true
	}

	log := setupLogging(cfg, stderr)
	log.Debug("configuration loaded", "config", cfg.String())

	opener := pdf.NewProvider(pdf.Config{MaxFileSize: cfg.MaxFileSize})
	recognizer := ocr.New(ocr.Config{Enabled: cfg.OCR, Command: cfg.OCRCommand, Logger: log})

	if cfg.IsStdioMode() {
		return runStdioMode(ctx, cfg, opener, recognizer, log)
	}
	return runCLIMode(ctx, cfg, opener, recognizer, log, stdout, stderr)
}

// runStdioMode serves the evidence tools over MCP stdio
func runStdioMode(ctx context.Context, cfg *config.Config, opener evidence.Opener, recognizer evidence.Recognizer, log *slog.Logger) int {
	server, err := mcp.NewServer(cfg, opener, recognizer, log)
	if err != nil {
		log.Error("failed to create MCP server", "err", err)
		return 1
	}
	if err := server.Run(ctx); err != nil {
		log.Error("server error", "err", err)
		return 1
	}
	return 0
}

// runCLIMode collects evidence for every input, cfg.Jobs at a time. A failed
// input does not stop the others; the exit code is 1 if any failed.
func runCLIMode(ctx context.Context, cfg *config.Config, opener evidence.Opener, recognizer evidence.Recognizer,
	log *slog.Logger, stdout, stderr io.Writer,
) int {
	folders := caseFolders(cfg.OutputDir, cfg.Inputs, time.Now())
	showProgress := !cfg.Quiet && cfg.Jobs == 1

	manifests := make([]*evidence.Manifest, len(cfg.Inputs))
	errs := make([]error, len(cfg.Inputs))

	var g errgroup.Group
	g.SetLimit(cfg.Jobs)
	for i, input := range cfg.Inputs {
		g.Go(func() error {
			opts := cfg.EvidenceOptions()
			opts.OutputDir = folders[i]
			opts.OCR = recognizer
			opts.Logger = log
			if showProgress {
				opts.Progress = progressReporter(stderr, filepath.Base(input))
			}
			manifests[i], errs[i] = evidence.NewCollector(opener, opts).Run(ctx, input)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for i, input := range cfg.Inputs {
		if errs[i] != nil {
			failed++
			printFailure(stdout, input, errs[i])
			continue
		}
		printSuccess(stdout, manifests[i])
	}

	if len(cfg.Inputs) > 1 && !cfg.Quiet {
		fmt.Fprintf(stdout, "%d of %d documents collected\n", len(cfg.Inputs)-failed, len(cfg.Inputs))
	}
	if failed > 0 {
		return 1
	}
	return 0
}

// caseFolders assigns a case folder per input. A single input uses out
// directly. Several inputs get out/<stem>, with a numeric suffix when stems
// repeat. An empty out means evidence_<unix seconds> in the working
// directory.
func caseFolders(out string, inputs []string, now time.Time) []string {
	folders := make([]string, len(inputs))
	if len(inputs) == 1 {
		folders[0] = out
		return folders
	}
	if out == "" {
		out = fmt.Sprintf("evidence_%d", now.Unix())
	}

	used := make(map[string]int)
	for i, input := range inputs {
		base := filepath.Base(input)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		used[stem]++
		if n := used[stem]; n > 1 {
			stem = fmt.Sprintf("%s_%d", stem, n)
		}
		folders[i] = filepath.Join(out, stem)
	}
	return folders
}

// progressReporter draws a page progress bar. The bar is created on the first
// callback, once the page count is known.
func progressReporter(w io.Writer, name string) func(done, total int) {
	var bar *progressbar.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription(name),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
	}
}

func printSuccess(w io.Writer, m *evidence.Manifest) {
	color.New(color.FgGreen).Fprintf(w, "✔ %s", m.SourcePath)
	fmt.Fprintf(w, " -> %s\n", m.CaseFolder)
	fmt.Fprintf(w, "  %s, %d pages, %d images, %d links, %d suspicious objects\n",
		humanize.Bytes(uint64(m.FileSize)), m.PageCount, m.Summary.TotalImages, m.Summary.TotalLinks,
		len(m.Suspicious.JavaScript)+len(m.Suspicious.EmbeddedFile))
	fmt.Fprintf(w, "  report: %s\n", m.ReportFile(".txt"))
}

func printFailure(w io.Writer, input string, err error) {
	color.New(color.FgRed).Fprintf(w, "✘ %s", input)
	fmt.Fprintf(w, ": %v\n", err)
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "PDF Evidence\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
