package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mcpserver "github.com/felixgeelhaar/codequest/internal/mcp"
)

// cmdMCP serves the MCP tools on stdio. Logs go to stderr so stdout stays
// a clean protocol stream.
func cmdMCP() error {
	l, err := openLocal(true)
	if err != nil {
		return err
	}
	defer l.Close()

	srv := mcpserver.NewServer(mcpserver.Config{
		Tasks:    l.catalog,
		Grader:   l.grader,
		Progress: l.progress,
		UserID:   localUser,
		Version:  Version,
		Logger:   l.logger.Named("mcp"),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.ServeStdio(ctx)
}
