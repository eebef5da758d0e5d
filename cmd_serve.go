package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the document root and serve search over MCP",
	Long: `Syncs the document root with the store, keeps watching it for changes and
serves the search tools over an MCP SSE endpoint.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.DocRoot != "" {
		reg := &DocRegistry{
			log:              a.log,
			root:             a.cfg.DocRoot,
			mergeEventsDelay: time.Duration(a.cfg.MergeEventsMs) * time.Millisecond,
			catalog:          a.docs,
			indexer:          a.indexer,
			reader:           a.reader,
		}

		go func() {
			if err := reg.Sync(ctx); err != nil {
				a.log.Error("document sync failed", "root", a.cfg.DocRoot, "error", err)
				return
			}

			if err := reg.Watch(ctx); err != nil {
				a.log.Error("document watch failed", "root", a.cfg.DocRoot, "error", err)
			}
		}()
	}

	srv := NewDocSearchServer(a.log, a.searcher, a.docs, a.indexer, a.cfg.Results)
	sse := server.NewSSEServer(srv, server.WithBaseURL(fmt.Sprintf("http://%s", a.cfg.ServerAddr)))

	errc := make(chan error, 1)
	go func() {
		a.log.Info("serving MCP", "addr", a.cfg.ServerAddr)
		errc <- sse.Start(a.cfg.ServerAddr)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("MCP server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	return sse.Shutdown(shutdownCtx)
}
