// Package mcpadapter exposes retrieval as Model Context Protocol tools.
package mcpadapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/ports"
)

const Version = "0.1.0"

type Server struct {
	retrieval ports.RetrievalService
	server    *server.MCPServer
}

func NewServer(retrieval ports.RetrievalService) (*Server, error) {
	if retrieval == nil {
		return nil, errors.New("retrieval service is required")
	}
	s := &Server{
		retrieval: retrieval,
		server: server.NewMCPServer("wpai-retrieval", Version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or stdin closes.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.server).Listen(ctx, in, out)
}

// RunHTTP serves the streamable HTTP transport on addr.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.NewStreamableHTTPServer(s.server),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mcp http server: %w", err)
	}
	return nil
}
