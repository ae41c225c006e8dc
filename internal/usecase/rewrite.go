package usecase

import (
	"context"
	"errors"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/port"
	"ragchat/internal/prompt"
)

// QueryRewriter turns a follow-up question into one that can be understood
// without the conversation, so retrieval can work off it alone.
type QueryRewriter struct {
	generator port.Generator
	templates *prompt.Templates
}

// NewQueryRewriter creates a rewriter. A nil templates value uses the
// built-in prompts.
func NewQueryRewriter(generator port.Generator, templates *prompt.Templates) *QueryRewriter {
	if templates == nil {
		templates = prompt.Default()
	}
	return &QueryRewriter{
		generator: generator,
		templates: templates,
	}
}

// Rewrite returns question unchanged when history is empty. Otherwise it asks
// the generator for a standalone question; any failure is a RewriteError.
func (r *QueryRewriter) Rewrite(ctx context.Context, history []domain.Turn, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}
	if r.generator == nil {
		return "", &domain.RewriteError{Err: domain.ErrCredentialMissing}
	}

	p, err := r.templates.Condense(history, question)
	if err != nil {
		return "", &domain.RewriteError{Err: err}
	}

	out, err := r.generator.Generate(ctx, p)
	if err != nil {
		return "", &domain.RewriteError{Err: err}
	}

	standalone := strings.TrimSpace(out)
	if standalone == "" {
		return "", &domain.RewriteError{Err: errors.New("generator returned an empty question")}
	}
	return standalone, nil
}
