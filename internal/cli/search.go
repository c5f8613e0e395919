package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var searchTopK int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Rank indexed documents against a query",
	Long: `Rank indexed documents against a query with TF-IDF cosine similarity.

Only documents sharing at least one term with the query are returned.

Examples:
  passerelle search "gouvernance des données"
  passerelle search "plan de sobriété" -k 5`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 3, "max results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	results := vecIndex.Search(args[0], searchTopK)

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(results))
	for i, result := range results {
		fmt.Printf("%d. %s (%.4f)\n", i+1, result.DocID, result.Score)
		text := result.Text
		if runes := []rune(text); len(runes) > 160 {
			text = string(runes[:160]) + "..."
		}
		if text != "" {
			fmt.Printf("   %s\n", text)
		}
		if verbose && len(result.Metadata) > 0 {
			fmt.Printf("   Metadata: %v\n", result.Metadata)
		}
		fmt.Println()
	}

	return nil
}
