package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"passerelle/internal/corpus"
)

var (
	reindexWatch bool
	reindexExts  []string
)

var reindexCmd = &cobra.Command{
	Use:   "reindex [folder]",
	Short: "Rebuild the index from the corpus folder",
	Long: `Rebuild the index from a corpus folder (full replace).

Existing documents are dropped and every readable file with an allowed
extension is re-ingested. With --watch the command then keeps running
and re-ingests files as they are created or modified.

Examples:
  passerelle reindex
  passerelle reindex ./docs --ext .txt --ext .md
  passerelle reindex --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReindex,
}

func init() {
	reindexCmd.Flags().BoolVarP(&reindexWatch, "watch", "w", false, "keep watching the folder after reindexing")
	reindexCmd.Flags().StringSliceVar(&reindexExts, "ext", corpus.DefaultExtensions, "file extensions to ingest")
}

func runReindex(cmd *cobra.Command, args []string) error {
	folder := cfg.CorpusDir
	if len(args) == 1 {
		folder = args[0]
	}

	count, err := vecIndex.Reindex(folder, reindexExts)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	fmt.Printf("Indexed %d documents from %s\n", count, folder)

	if !reindexWatch {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", folder)
	watcher := corpus.NewWatcher(vecIndex, folder, reindexExts, logger)
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}
