package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/a3tai/pdf-evidence/internal/config"
	"github.com/a3tai/pdf-evidence/internal/descriptions"
	"github.com/a3tai/pdf-evidence/internal/evidence"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	opener    evidence.Opener
	ocr       evidence.Recognizer
	log       *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance. ocr may be nil.
func NewServer(cfg *config.Config, opener evidence.Opener, ocr evidence.Recognizer, log *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if opener == nil {
		return nil, fmt.Errorf("opener cannot be nil")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		opener:    opener,
		ocr:       ocr,
		log:       log,
		mcpServer: mcpServer,
	}
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	collectTool := mcp.NewTool(
		"collect_evidence",
		mcp.WithDescription(descriptions.CollectEvidenceDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description(descriptions.ParamPath),
		),
		mcp.WithString("out",
			mcp.Description(descriptions.ParamOut),
		),
		mcp.WithNumber("max_xref",
			mcp.Description(descriptions.ParamMaxXref),
		),
		mcp.WithBoolean("ocr",
			mcp.Description(descriptions.ParamOCR),
		),
		mcp.WithBoolean("embedded",
			mcp.Description(descriptions.ParamEmbedded),
		),
	)
	s.mcpServer.AddTool(collectTool, s.handleCollectEvidence)

	iocTool := mcp.NewTool(
		"extract_iocs",
		mcp.WithDescription(descriptions.ExtractIOCsDescription),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description(descriptions.ParamText),
		),
	)
	s.mcpServer.AddTool(iocTool, s.handleExtractIOCs)

	hashTool := mcp.NewTool(
		"hash_file",
		mcp.WithDescription(descriptions.HashFileDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description(descriptions.ParamPath),
		),
	)
	s.mcpServer.AddTool(hashTool, s.handleHashFile)
}

// collectOptions builds the run options for one collect_evidence call.
func (s *Server) collectOptions(request mcp.CallToolRequest) evidence.Options {
	opts := s.config.EvidenceOptions()
	opts.Logger = s.log
	opts.OutputDir = request.GetString("out", opts.OutputDir)
	opts.MaxXref = request.GetInt("max_xref", opts.MaxXref)
	opts.ExtractEmbedded = request.GetBool("embedded", opts.ExtractEmbedded)
	if request.GetBool("ocr", s.config.OCR) {
		opts.OCR = s.ocr
	}
	return opts
}

// Handler functions
func (s *Server) handleCollectEvidence(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := s.collectOptions(request)
	if opts.MaxXref < 1 {
		return mcp.NewToolResultError("max_xref must be at least 1"), nil
	}

	m, err := evidence.NewCollector(s.opener, opts).Run(ctx, path)
	if err != nil {
		stage, _ := evidence.FailedStage(err)
		s.log.Warn("evidence run failed", "path", path, "stage", stage.String(), "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatCollectResult(m)), nil
}

func (s *Server) formatCollectResult(m *evidence.Manifest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Evidence collected for %s\n", m.SourcePath)
	fmt.Fprintf(&b, "Case folder: %s\n", m.CaseFolder)
	fmt.Fprintf(&b, "Manifest: %s\n", m.ReportFile(".json"))
	fmt.Fprintf(&b, "Report: %s\n", m.ReportFile(".txt"))
	if s.config.MsgpackManifest {
		fmt.Fprintf(&b, "MessagePack manifest: %s\n", m.ReportFile(".msgpack"))
	}
	b.WriteString("\n")
	b.WriteString(evidence.RenderNarrative(m))
	return b.String()
}

func (s *Server) handleExtractIOCs(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := json.MarshalIndent(evidence.ExtractIOCs(text), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) handleHashFile(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	hashes, err := evidence.HashFile(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("File: %s\nMD5: %s\nSHA1: %s\nSHA256: %s\n", path, hashes.MD5, hashes.SHA1, hashes.SHA256)
	return mcp.NewToolResultText(text), nil
}

// Run serves the tools over stdio until the client disconnects.
func (s *Server) Run(_ context.Context) error {
	s.log.Info("starting MCP server on stdio", "name", s.config.ServerName, "version", s.config.Version)

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
