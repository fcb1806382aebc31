package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ironsheep/tracevision-mcp/internal/config"
	"github.com/ironsheep/tracevision-mcp/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// newLogger returns a JSON slog.Logger writing to w. Stdout is reserved for
// the MCP protocol, so main passes stderr.
func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

func printHelp() {
	fmt.Println("tracevision-mcp - MCP server for tracing photos over a camera view")
	fmt.Println()
	fmt.Println("Usage: tracevision-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  TRACEVISION_CONFIG=<file>        JSON configuration file")
	fmt.Println("  TRACEVISION_LOG_LEVEL=debug      Log level (debug, info, warn, error)")
	fmt.Println("  TRACEVISION_STATE_DIR=<dir>      Where the onboarding flag is kept")
	fmt.Println("  TRACEVISION_CAMERA=<file>        Camera frame file rewritten by a capture process")
	fmt.Println("  TRACEVISION_THRESHOLD=<n>        Edge threshold (default 15)")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
	fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("tracevision-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			printHelp()
			return
		}
	}

	cfg, cfgErr := config.FromEnv(os.Getenv)
	logger := newLogger(os.Stderr, cfg.Level())
	slog.SetDefault(logger)
	if cfgErr != nil {
		// Defaults are still usable.
		logger.Warn("failed to load config", "path", os.Getenv(config.EnvConfig), "error", cfgErr)
	}

	logger.Info("starting tracevision-mcp",
		"version", Version,
		"built", BuildTime,
		"commit", GitCommit,
		"state_dir", cfg.StateDir,
		"camera", cfg.CameraPath,
		"threshold", cfg.Threshold)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(server.Options{
		Config:  cfg,
		Logger:  logger,
		Version: Version,
	})
	if err := srv.Run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
