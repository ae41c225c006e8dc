package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/port"
	"ragchat/internal/prompt"
	"ragchat/internal/session"
)

// State is a step of a single Ask call.
type State string

const (
	StateStart      State = "start"
	StateRewriting  State = "rewriting"
	StateRetrieving State = "retrieving"
	StateGenerating State = "generating"
	StateDone       State = "done"
	StateRejected   State = "rejected"
	StateFailed     State = "failed"
)

// CredentialMessage is returned to the user when no API key is configured.
const CredentialMessage = "Please paste your OpenAI key to use"

const DefaultTopK = 4

// Answer is the outcome of one Ask call.
type Answer struct {
	Text       string                  `json:"answer"`
	Standalone string                  `json:"standalone_question,omitempty"`
	Sources    []domain.ScoredDocument `json:"sources,omitempty"`
	State      State                   `json:"state"`
}

type PipelineOptions struct {
	TopK      int
	Assembler AssemblerOptions
	Templates *prompt.Templates
	Logger    *slog.Logger
}

// Pipeline answers questions within a conversation: rewrite, retrieve,
// generate, then record the turn.
type Pipeline struct {
	generator port.Generator
	embedder  port.Embedder
	rewriter  *QueryRewriter
	assembler *ContextAssembler
	templates *prompt.Templates
	topK      int
	logger    *slog.Logger
}

// NewPipeline wires the pipeline. generator and embedder may be nil when no
// credential is configured; Ask then rejects every question.
func NewPipeline(generator port.Generator, embedder port.Embedder, retriever port.Retriever, opts PipelineOptions) *Pipeline {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Templates == nil {
		opts.Templates = prompt.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Pipeline{
		generator: generator,
		embedder:  embedder,
		rewriter:  NewQueryRewriter(generator, opts.Templates),
		assembler: NewContextAssembler(embedder, retriever, opts.Assembler),
		templates: opts.Templates,
		topK:      opts.TopK,
		logger:    opts.Logger,
	}
}

// Ask runs one exchange on sess. At most one Ask runs per session at a time,
// so the history read and the final append are atomic with respect to other
// turns. A missing credential is not an error: the answer comes back in the
// rejected state with a guidance message. On any failure the session is left
// unchanged and the typed error is returned; nothing is retried.
func (p *Pipeline) Ask(ctx context.Context, sess *session.Session, question string) (*Answer, error) {
	if sess == nil {
		return nil, fmt.Errorf("nil session: %w", domain.ErrInvalidInput)
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("empty question: %w", domain.ErrInvalidInput)
	}

	log := p.logger.With("session", sess.ID())
	start := time.Now()
	state := StateStart

	move := func(next State) {
		log.Debug("ask state", "from", state, "to", next)
		state = next
	}
	fail := func(err error) (*Answer, error) {
		failedIn := state
		move(StateFailed)
		log.Warn("ask failed", "state", failedIn, "error", err)
		return nil, err
	}

	if p.generator == nil || p.embedder == nil {
		move(StateRejected)
		return &Answer{Text: CredentialMessage, State: StateRejected}, nil
	}

	sess.Lock()
	defer sess.Unlock()

	move(StateRewriting)
	standalone, err := p.rewriter.Rewrite(ctx, sess.History(), question)
	if err != nil {
		return fail(err)
	}
	log.Debug("standalone question", "question", standalone)

	move(StateRetrieving)
	assembled, err := p.assembler.Assemble(ctx, standalone, p.topK)
	if err != nil {
		return fail(err)
	}
	log.Debug("context assembled", "passages", len(assembled.Sources), "chars", len(assembled.Text))

	move(StateGenerating)
	answerPrompt, err := p.templates.Answer(standalone, assembled.Text)
	if err != nil {
		return fail(&domain.GenerationError{Err: err})
	}
	text, err := p.generator.Generate(ctx, answerPrompt)
	if err != nil {
		return fail(&domain.GenerationError{Err: err})
	}
	text = strings.TrimSpace(text)

	sess.Append(question, text)
	move(StateDone)
	log.Info("question answered", "sources", len(assembled.Sources), "duration", time.Since(start))

	return &Answer{
		Text:       text,
		Standalone: standalone,
		Sources:    assembled.Sources,
		State:      StateDone,
	}, nil
}

// Ready reports whether both capabilities are configured.
func (p *Pipeline) Ready() bool {
	return p.generator != nil && p.embedder != nil
}

// Assembler exposes the context assembler for retrieval-only callers.
func (p *Pipeline) Assembler() *ContextAssembler {
	return p.assembler
}
