package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"ragchat/internal/domain"
)

var (
	promptQuestion    string
	promptHistoryFile string
	promptContextFile string
	promptCondense    bool
	promptTopK        int
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the prompt that would be sent to the LLM",
	Long: `Render the answer prompt (default) or the condense prompt (--condense)
without calling the LLM.

The answer prompt's context is read from --context, or retrieved from the
index when no file is given. Conversation history for the condense prompt is
a JSON array of {"question": "...", "answer": "..."} objects.

Examples:
  ragchat prompt -q "What is the carbon tax?"
  ragchat prompt --condense -q "And in 2030?" --history turns.json
  ragchat prompt -q "What is the carbon tax?" --context passages.txt`,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVarP(&promptQuestion, "query", "q", "", "question (required)")
	promptCmd.Flags().StringVar(&promptHistoryFile, "history", "", "JSON file with prior turns")
	promptCmd.Flags().StringVar(&promptContextFile, "context", "", "file used as retrieved context")
	promptCmd.Flags().BoolVar(&promptCondense, "condense", false, "render the condense prompt instead")
	promptCmd.Flags().IntVarP(&promptTopK, "top-k", "k", 0, "passages to retrieve (default from config)")
	promptCmd.MarkFlagRequired("query")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	tmpl, err := newTemplates(cfg)
	if err != nil {
		return err
	}

	if promptCondense {
		history, err := readHistory(promptHistoryFile)
		if err != nil {
			return err
		}
		out, err := tmpl.Condense(history, promptQuestion)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	var passages string
	if promptContextFile != "" {
		data, err := os.ReadFile(promptContextFile)
		if err != nil {
			return fmt.Errorf("failed to read context: %w", err)
		}
		passages = string(data)
	} else {
		rt, err := loadRuntime(cmd.Context(), cfg, GetRootDir())
		if err != nil {
			return err
		}
		defer rt.Close()

		topK := cfg.Retrieve.TopK
		if promptTopK > 0 {
			topK = promptTopK
		}
		assembled, err := rt.pipeline.Assembler().Assemble(cmd.Context(), promptQuestion, topK)
		if err != nil {
			return err
		}
		passages = assembled.Text
	}

	out, err := tmpl.Answer(promptQuestion, passages)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func readHistory(path string) ([]domain.Turn, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	var turns []domain.Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("invalid history file: %w", err)
	}
	return turns, nil
}
