package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/config"
	"github.com/a3tai/mcp-grant-filler/internal/descriptions"
	"github.com/a3tai/mcp-grant-filler/internal/grant"
	"github.com/a3tai/mcp-grant-filler/internal/service"
)

const shutdownTimeout = 10 * time.Second

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	service   *service.Service
	mcpServer *server.MCPServer
	logger    *zap.Logger

	stdin  io.Reader
	stdout io.Writer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, svc *service.Service, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	s := &Server{
		config:    cfg,
		service:   svc,
		mcpServer: mcpServer,
		logger:    logger,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
	}
	s.registerTools()
	return s, nil
}

func tool(name string, opts ...mcp.ToolOption) mcp.Tool {
	return mcp.NewTool(name, append([]mcp.ToolOption{mcp.WithDescription(descriptions.GetToolDescription(name))}, opts...)...)
}

func grantIDParam() mcp.ToolOption {
	return mcp.WithString("grant_id",
		mcp.Required(),
		mcp.Description("Identifier of the grant record"),
	)
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(tool(descriptions.GrantGet, grantIDParam()), s.handleGrantGet)

	s.mcpServer.AddTool(tool(descriptions.GrantSave,
		mcp.WithObject("grant",
			mcp.Required(),
			mcp.Description("The full grant record: grant_id, grant_name, grant_url, portal_url, status, responses"),
		),
	), s.handleGrantSave)

	s.mcpServer.AddTool(tool(descriptions.GrantFillWeb,
		grantIDParam(),
		mcp.WithString("url",
			mcp.Description("Form URL to open instead of the grant's portal_url or grant_url"),
		),
		mcp.WithNumber("max_pages",
			mcp.Description("Lower page ceiling for this run; cannot exceed the server ceiling, which is used if omitted"),
		),
	), s.handleGrantFillWeb)

	s.mcpServer.AddTool(tool(descriptions.GrantExportPDF, grantIDParam()), s.handleGrantExportPDF)

	s.mcpServer.AddTool(tool(descriptions.GrantPDFFields,
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the PDF, relative to the data directory"),
		),
	), s.handleGrantPDFFields)

	s.mcpServer.AddTool(tool(descriptions.GrantExtractQuestions, grantIDParam()), s.handleGrantExtractQuestions)
	s.mcpServer.AddTool(tool(descriptions.GrantGenerateDrafts, grantIDParam()), s.handleGrantGenerateDrafts)
	s.mcpServer.AddTool(tool(descriptions.ProfileGet), s.handleProfileGet)

	s.mcpServer.AddTool(tool(descriptions.ProfileSave,
		mcp.WithObject("profile",
			mcp.Required(),
			mcp.Description("The organization profile: legal_name, mission_short, mission_long, address, extra_sections"),
		),
	), s.handleProfileSave)

	s.mcpServer.AddTool(tool(descriptions.GrantServerInfo), s.handleGrantServerInfo)
}

// Handler functions
func (s *Server) handleGrantGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("grant_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.service.GetGrant(ctx, id)
	if err != nil {
		return s.toolError(descriptions.GrantGet, err), nil
	}
	return jsonResult(g)
}

func (s *Server) handleGrantSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var g grant.Grant
	if err := decodeArgument(request, "grant", &g); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	saved, err := s.service.SaveGrant(ctx, &g)
	if err != nil {
		return s.toolError(descriptions.GrantSave, err), nil
	}
	return jsonResult(saved)
}

func (s *Server) handleGrantFillWeb(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("grant_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	args := request.GetArguments()

	req := service.FillWebRequest{GrantID: id}
	if u, ok := args["url"].(string); ok {
		req.URL = u
	}
	if n, ok := args["max_pages"].(float64); ok {
		ceiling := s.service.Engine.Config().MaxPages
		if n < 1 || n > float64(ceiling) || n != math.Trunc(n) {
			return mcp.NewToolResultError(fmt.Sprintf("max_pages must be a whole number between 1 and %d", ceiling)), nil
		}
		req.MaxPages = int(n)
	}

	report, err := s.service.FillWeb(ctx, req)
	if err != nil {
		return s.toolError(descriptions.GrantFillWeb, err), nil
	}
	return mcp.NewToolResultText(formatFillReport(report)), nil
}

func (s *Server) handleGrantExportPDF(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("grant_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.service.ExportPDF(ctx, id)
	if err != nil {
		return s.toolError(descriptions.GrantExportPDF, err), nil
	}
	return jsonResult(res)
}

func (s *Server) handleGrantPDFFields(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.service.PDFFields(path)
	if err != nil {
		return s.toolError(descriptions.GrantPDFFields, err), nil
	}
	if len(res.Fields) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("PDF %s has no fillable form fields", res.Path)), nil
	}
	return jsonResult(res)
}

func (s *Server) handleGrantExtractQuestions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("grant_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.service.ExtractQuestions(ctx, id)
	if err != nil {
		return s.toolError(descriptions.GrantExtractQuestions, err), nil
	}
	return jsonResult(g)
}

func (s *Server) handleGrantGenerateDrafts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("grant_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.service.GenerateDrafts(ctx, id)
	if err != nil {
		return s.toolError(descriptions.GrantGenerateDrafts, err), nil
	}
	return jsonResult(g)
}

func (s *Server) handleProfileGet(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := s.service.GetProfile(ctx)
	if err != nil {
		return s.toolError(descriptions.ProfileGet, err), nil
	}
	return jsonResult(p)
}

func (s *Server) handleProfileSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var p grant.OrganizationProfile
	if err := decodeArgument(request, "profile", &p); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	saved, err := s.service.SaveProfile(ctx, &p)
	if err != nil {
		return s.toolError(descriptions.ProfileSave, err), nil
	}
	return jsonResult(saved)
}

func (s *Server) handleGrantServerInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatServerInfo(s.service.ServerInfo())), nil
}

// toolError logs a failed call and turns it into a tool result the client
// can show
func (s *Server) toolError(toolName string, err error) *mcp.CallToolResult {
	s.logger.Warn("tool call failed",
		zap.String("tool", toolName),
		zap.String("kind", grant.KindOf(err).String()),
		zap.Error(err))
	return mcp.NewToolResultError(err.Error())
}

// decodeArgument reads an object argument, also accepting it as a JSON
// string for clients that cannot send nested objects
func decodeArgument(request mcp.CallToolRequest, name string, v any) error {
	raw, ok := request.GetArguments()[name]
	if !ok || raw == nil {
		return fmt.Errorf("required argument %q not found", name)
	}
	var data []byte
	if str, ok := raw.(string); ok {
		data = []byte(str)
	} else {
		var err error
		if data, err = json.Marshal(raw); err != nil {
			return fmt.Errorf("argument %q: %w", name, err)
		}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("argument %q is not a valid %s: %w", name, name, err)
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// Formatting methods
func formatFillReport(r *grant.FillReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Fill run %s\n", r.RunID)
	fmt.Fprintf(&b, "Pages visited: %d\n", r.PagesVisited)
	fmt.Fprintf(&b, "Fields filled: %d\n", r.FieldsFilled)
	fmt.Fprintf(&b, "Fields skipped: %d\n", r.FieldsSkipped)

	if len(r.Mappings) > 0 {
		b.WriteString("\nFilled:\n")
		for i, m := range r.Mappings {
			fmt.Fprintf(&b, "%d. %s -> %s (confidence %.2f, page %d)\n", i+1, m.QuestionText, m.Selector, m.Confidence, m.Page)
		}
	}
	if len(r.Skipped) > 0 {
		b.WriteString("\nSkipped:\n")
		for i, sk := range r.Skipped {
			fmt.Fprintf(&b, "%d. %s: %s", i+1, sk.QuestionText, sk.Reason)
			if sk.Detail != "" {
				fmt.Fprintf(&b, " (%s)", sk.Detail)
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\nThe form was not submitted. Review the filled pages before submitting.\n")
	return b.String()
}

func formatServerInfo(info service.Info) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%s - Server Information\n", info.ServerName, info.Version)
	fmt.Fprintf(&b, "Surface: %s\n", info.Surface)
	fmt.Fprintf(&b, "Grant store: %s\n", info.GrantStore)
	fmt.Fprintf(&b, "Object store: %s\n", info.ObjectStore)
	fmt.Fprintf(&b, "Language model configured: %t\n", info.ModelConfigured)
	fmt.Fprintf(&b, "Max pages per fill: %d\n", info.MaxPages)
	fmt.Fprintf(&b, "Max file size: %d MB\n", info.MaxFileSize/(1024*1024))
	fmt.Fprintf(&b, "Thresholds: field %.2f, option %.2f, pdf %.2f\n",
		info.Thresholds.Field, info.Thresholds.Option, info.Thresholds.PDF)

	b.WriteString("\nAvailable Tools:\n")
	for _, t := range info.Tools {
		fmt.Fprintf(&b, "• %s: %s\n", t.Name, t.Summary)
	}
	b.WriteString("\nTypical workflow: grant_save -> grant_extract_questions -> profile_save -> " +
		"grant_generate_drafts -> review with grant_get -> grant_fill_web or grant_export_pdf\n")
	return b.String()
}

// Run starts the MCP server in the configured mode
func (s *Server) Run(ctx context.Context) error {
	switch {
	case s.config.IsServerMode():
		return s.runServerMode(ctx)
	case s.config.IsStdioMode():
		return s.runStdioMode(ctx)
	default:
		return fmt.Errorf("unsupported mode: %s", s.config.Mode)
	}
}

// runStdioMode serves MCP over stdin/stdout until ctx is done or input ends
func (s *Server) runStdioMode(ctx context.Context) error {
	s.logger.Info("starting MCP server in stdio mode", zap.String("data_dir", s.config.DataDir))

	stdio := server.NewStdioServer(s.mcpServer)
	if err := stdio.Listen(ctx, s.stdin, s.stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// handler routes the SSE transport and the metrics endpoint
func (s *Server) handler() http.Handler {
	sse := server.NewSSEServer(s.mcpServer,
		server.WithBaseURL("http://"+s.config.Address()),
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/", sse)
	return mux
}

// runServerMode serves MCP over HTTP with server-sent events
func (s *Server) runServerMode(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting MCP server in server mode", zap.String("address", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		s.logger.Info("MCP server stopped")
		return nil
	}
}
