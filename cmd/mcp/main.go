package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/rtCamp/wpai-chatbot-example-sub001/internal/adapters/mcp"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/bootstrap"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/config"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config_load_failed", "error", err.Error())
		os.Exit(1)
	}
	// stdout carries the protocol.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, cfg.ServiceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err.Error())
		os.Exit(1)
	}
	defer app.Close()

	server, err := mcpadapter.NewServer(app.Retrieval)
	if err != nil {
		slog.Error("mcp_init_failed", "error", err.Error())
		os.Exit(1)
	}

	if cfg.MCPHTTPAddr != "" {
		slog.Info("mcp_http_listening", "addr", cfg.MCPHTTPAddr)
		err = server.RunHTTP(ctx, cfg.MCPHTTPAddr)
	} else {
		err = server.Run(ctx, os.Stdin, os.Stdout)
	}
	if err != nil && ctx.Err() == nil {
		slog.Error("mcp_server_failed", "error", err.Error())
		os.Exit(1)
	}
}
