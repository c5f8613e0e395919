package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"passerelle/internal/corpus"
	"passerelle/internal/server"
	"passerelle/internal/tools"
)

var serveWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the gateway as an MCP server on stdio",
	Long: `Expose the gateway tools over the Model Context Protocol on stdio.

The server registers the chat, search, ingest, reindex, governance and
status tools, posts heartbeat events while running, and optionally keeps
the corpus folder indexed with --watch.

Examples:
  passerelle serve
  passerelle serve --watch`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "watch the corpus folder while serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	deps := &tools.Dependencies{
		Router:  chatR,
		Index:   vecIndex,
		Gate:    gate,
		Events:  events,
		Metrics: collector,
		Logger:  logger,
	}

	srv := server.New(Version, deps, cfg, logger)
	srv.Setup()

	go events.Heartbeat(ctx, cfg.PingInterval)

	if serveWatch {
		watcher := corpus.NewWatcher(vecIndex, cfg.CorpusDir, corpus.DefaultExtensions, logger)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("corpus watcher stopped", "error", err)
			}
		}()
	}

	logger.Info("passerelle serving",
		"version", Version,
		"policy", cfg.Policy,
		"external_provider", cfg.ExternalProvider,
		"documents", vecIndex.Count(),
	)

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
