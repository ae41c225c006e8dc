package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"ragchat/internal/session"
	"ragchat/internal/usecase"
)

var chatSources bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	Long: `Ask questions interactively. Follow-up questions may refer to earlier turns;
they are rewritten into standalone questions before retrieval.

Type "exit" or press Ctrl-D to leave. "/history" prints the conversation so
far and "/reset" starts a new one.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().BoolVar(&chatSources, "sources", false, "print sources after each answer")
}

func runChat(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd.Context(), GetConfig(), GetRootDir())
	if err != nil {
		return err
	}
	defer rt.Close()

	return chatLoop(cmd.Context(), rt.pipeline, os.Stdin, cmd.OutOrStdout())
}

func chatLoop(ctx context.Context, pipeline *usecase.Pipeline, in io.Reader, out io.Writer) error {
	sess := session.New()
	scanner := bufio.NewScanner(in)

	fmt.Fprintf(out, "Chat session %s. Type \"exit\" to quit.\n", sess.ID())
	for {
		fmt.Fprint(out, "\nQuestion: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/history":
			for i, t := range sess.History() {
				fmt.Fprintf(out, "%d. Human: %s\n   Assistant: %s\n", i+1, t.Question, t.Answer)
			}
			continue
		case "/reset":
			sess = session.New()
			fmt.Fprintf(out, "New session %s.\n", sess.ID())
			continue
		}

		ans, err := pipeline.Ask(ctx, sess, line)
		if err != nil {
			// Failed turns are reported and the conversation continues.
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}

		fmt.Fprintf(out, "\n%s\n", ans.Text)
		if ans.State == usecase.StateRejected {
			return nil
		}
		if chatSources && len(ans.Sources) > 0 {
			fmt.Fprintln(out, "\nSources:")
			for i, s := range ans.Sources {
				fmt.Fprintf(out, "  [%d] %s (score: %.3f)\n", i+1, s.Document.SourceID, s.Score)
			}
		}
	}
}
