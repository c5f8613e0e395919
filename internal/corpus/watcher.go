// Package corpus keeps the vector index in sync with a document folder.
package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"passerelle/internal/index"

	"github.com/fsnotify/fsnotify"
)

// DefaultExtensions is the ingestion allow-list.
var DefaultExtensions = []string{".txt", ".md", ".json"}

// Watcher re-ingests corpus files as they are created or modified.
type Watcher struct {
	ix      *index.Index
	dir     string
	allowed map[string]bool
	logger  *slog.Logger
}

// NewWatcher creates a watcher over dir for the given extensions.
func NewWatcher(ix *index.Index, dir string, extensions []string, logger *slog.Logger) *Watcher {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}
	return &Watcher{ix: ix, dir: dir, allowed: allowed, logger: logger}
}

// Run watches the corpus folder (and its subfolders) until ctx is done.
// Matching files are re-ingested on create and write; newly created
// directories are added to the watch set.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := w.addRecursive(fsw, w.dir); err != nil {
		return err
	}
	w.logger.Info("corpus watcher started", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(fsw, event)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("corpus watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, event fsnotify.Event) {
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	// New subdirectories join the watch set.
	if event.Op.Has(fsnotify.Create) {
		if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
			if err := w.addRecursive(fsw, event.Name); err != nil {
				w.logger.Warn("failed to watch new folder", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !w.allowed[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}
	id, err := w.ix.IngestFile(event.Name, map[string]any{"source": "corpus"})
	if err != nil {
		w.logger.Error("corpus ingest failed", "path", event.Name, "error", err)
		return
	}
	if id != "" {
		w.logger.Info("corpus file ingested", "path", event.Name, "doc_id", id)
	}
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}
