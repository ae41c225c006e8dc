package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"ragchat/internal/domain"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Show the passages retrieved for a question",
	Long: `Embed the question and print the closest passages from the index, without
rewriting or generating an answer. Useful to inspect retrieval quality.

Examples:
  ragchat query -q "carbon tax"
  ragchat query -q "sea level rise" --top-k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

type queryResult struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Text   string  `json:"text"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	rt, err := loadRuntime(cmd.Context(), cfg, GetRootDir())
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.embedder == nil {
		return fmt.Errorf("embedding: %w", domain.ErrCredentialMissing)
	}

	topK := cfg.Retrieve.TopK
	if queryTopK > 0 {
		topK = queryTopK
	}

	vecs, err := rt.embedder.Embed(cmd.Context(), []string{queryText})
	if err != nil {
		return &domain.EmbeddingError{Op: "query", Err: err}
	}
	if len(vecs) != 1 {
		return &domain.EmbeddingError{Op: "query", Err: fmt.Errorf("expected 1 vector, got %d", len(vecs))}
	}

	hits, err := rt.holder.Query(vecs[0], topK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	results := make([]queryResult, len(hits))
	for i, h := range hits {
		results[i] = queryResult{Source: h.Document.SourceID, Score: h.Score, Text: h.Document.Text}
	}

	if queryJSON {
		return printJSON(os.Stdout, results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), queryText)
	for i, r := range results {
		fmt.Printf("--- [%d] %s (score: %.3f) ---\n", i+1, r.Source, r.Score)
		fmt.Println(truncate(r.Text, 500))
		fmt.Println()
	}
	return nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}
