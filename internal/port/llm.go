package port

import "context"

// Generator produces text from a prompt. It backs both the condense step and
// the final answer.
type Generator interface {
	// Generate returns the completion for prompt.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
