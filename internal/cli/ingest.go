package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"passerelle/internal/index"
)

var (
	ingestDocID string
	ingestFile  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <text|path>",
	Short: "Add or replace a document in the local index",
	Long: `Add or replace a document in the local TF-IDF index.

By default the argument is raw text. With --file it is read from disk
and the document id is derived from the file name.

Examples:
  passerelle ingest "La charte 6S couvre la sécurité et la sobriété." --id charte
  passerelle ingest notes/plan_sobriete.md --file`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDocID, "id", "", "document id (generated when empty)")
	ingestCmd.Flags().BoolVar(&ingestFile, "file", false, "treat the argument as a file path")
}

func runIngest(cmd *cobra.Command, args []string) error {
	var (
		docID string
		err   error
	)
	if ingestFile {
		docID, err = vecIndex.IngestFile(args[0], nil)
	} else {
		docID, err = vecIndex.Ingest(args[0], ingestDocID, nil)
	}

	switch {
	case errors.Is(err, index.ErrEmptyText), errors.Is(err, index.ErrNoTokens):
		return fmt.Errorf("nothing to index: %w", err)
	case err != nil:
		return fmt.Errorf("ingest: %w", err)
	}

	if docID == "" {
		// Unreadable file: logged, index untouched.
		fmt.Println("Skipped unreadable file.")
		return nil
	}

	fmt.Printf("Indexed %s (%d documents total)\n", docID, vecIndex.Count())
	return nil
}
