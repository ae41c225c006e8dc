package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"ragchat/internal/session"
	"ragchat/internal/usecase"
)

var (
	askQuestion string
	askSources  bool
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a single question",
	Long: `Answer one question with an empty conversation history.

Examples:
  ragchat ask -q "What does the NCCS do?"
  ragchat ask -q "What is the carbon tax rate?" --sources`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "query", "q", "", "question (required)")
	askCmd.Flags().BoolVar(&askSources, "sources", false, "print the passages the answer is based on")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd.Context(), GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer rt.Close()

	ans, err := rt.pipeline.Ask(cmd.Context(), session.New(), askQuestion)
	if err != nil {
		return err
	}

	if askJSON {
		return printJSON(os.Stdout, ans)
	}

	fmt.Println(ans.Text)
	if askSources {
		printSources(ans)
	}
	return nil
}

func printSources(ans *usecase.Answer) {
	if len(ans.Sources) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for i, s := range ans.Sources {
		fmt.Printf("  [%d] %s (score: %.3f)\n", i+1, s.Document.SourceID, s.Score)
	}
}
