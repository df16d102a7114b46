package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/HendryAvila/backlog/internal/config"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"
)

// shutdownTimeout bounds how long open connections get to drain.
const shutdownTimeout = 5 * time.Second

// httpTransport is the lifecycle shared by the SSE and streamable HTTP servers.
type httpTransport interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

// Serve runs s on the configured transport until ctx is cancelled.
func Serve(ctx context.Context, cfg config.Config, s *server.MCPServer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Transport {
	case config.TransportStdio:
		logger.Info("serving MCP over stdio")
		stdio := server.NewStdioServer(s)
		stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
		err := stdio.Listen(ctx, os.Stdin, os.Stdout)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("stdio transport: %w", err)
		}
		return nil

	case config.TransportSSE:
		logger.Info("serving MCP over SSE", "addr", cfg.Addr(), "endpoint", "/sse")
		return serveHTTP(ctx, server.NewSSEServer(s), cfg.Addr(), logger)

	case config.TransportHTTP:
		logger.Info("serving MCP over streamable HTTP", "addr", cfg.Addr(), "endpoint", "/mcp")
		return serveHTTP(ctx, server.NewStreamableHTTPServer(s), cfg.Addr(), logger)

	default:
		return fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

// serveHTTP starts t and shuts it down once ctx is cancelled or the
// listener fails.
func serveHTTP(ctx context.Context, t httpTransport, addr string, logger *slog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := t.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening on %s: %w", addr, err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down transport", "addr", addr)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := t.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	})

	return g.Wait()
}
