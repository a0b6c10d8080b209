package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/config"
	"github.com/a3tai/mcp-grant-filler/internal/logging"
	"github.com/a3tai/mcp-grant-filler/internal/mcp"
	"github.com/a3tai/mcp-grant-filler/internal/service"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

func main() {
	// A missing .env file is fine; the environment and flags still apply
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if err := run(ctx, os.Args[0], os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-grant-filler: %v\n", err)
		os.Exit(1)
	}
}

// run loads configuration, builds the service and serves MCP until ctx is
// done or the client disconnects
func run(ctx context.Context, program string, args []string, stdout io.Writer) error {
	cfg, err := config.Load(program, args)
	if errors.Is(err, config.ErrVersionRequested) {
		printVersion(stdout)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if version != "dev" {
		cfg.Version = version
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.With(zap.String("mode", cfg.Mode))
	logger.Debug("starting with configuration", zap.String("config", cfg.String()))

	svc, err := service.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("closing service failed", zap.Error(err))
		}
	}()

	server, err := mcp.NewServer(cfg, svc, logger)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "MCP Grant Filler\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
