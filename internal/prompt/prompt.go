// Package prompt renders the two prompts sent to the generator: the condense
// prompt that turns a follow-up into a standalone question, and the answer
// prompt that grounds the reply in retrieved context.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"ragchat/internal/domain"
)

//go:embed templates/*.tmpl
var builtinTemplates embed.FS

const DefaultTopic = "climate change and the Singapore government"

// Options selects the topic and optional override files. Empty fields fall
// back to the built-in templates and DefaultTopic.
type Options struct {
	Topic        string
	CondenseFile string
	AnswerFile   string
}

type Templates struct {
	topic    string
	condense *template.Template
	answer   *template.Template
}

type condenseData struct {
	ChatHistory string
	Question    string
}

type answerData struct {
	Topic    string
	Question string
	Context  string
}

func New(opts Options) (*Templates, error) {
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}

	condense, err := load("condense", "templates/condense.tmpl", opts.CondenseFile)
	if err != nil {
		return nil, err
	}
	answer, err := load("answer", "templates/answer.tmpl", opts.AnswerFile)
	if err != nil {
		return nil, err
	}

	return &Templates{
		topic:    opts.Topic,
		condense: condense,
		answer:   answer,
	}, nil
}

// Default returns the built-in templates. They are compiled into the binary,
// so a parse failure is a programming error.
func Default() *Templates {
	t, err := New(Options{})
	if err != nil {
		panic(err)
	}
	return t
}

func load(name, builtin, override string) (*template.Template, error) {
	var content []byte
	var err error
	if override != "" {
		content, err = os.ReadFile(override)
	} else {
		content, err = builtinTemplates.ReadFile(builtin)
	}
	if err != nil {
		return nil, fmt.Errorf("template %s not found: %w", name, err)
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
	}
	return tmpl, nil
}

// Condense renders the prompt asking for a standalone version of question.
func (t *Templates) Condense(history []domain.Turn, question string) (string, error) {
	return render(t.condense, condenseData{
		ChatHistory: FormatHistory(history),
		Question:    question,
	})
}

// Answer renders the grounded answer prompt.
func (t *Templates) Answer(question, context string) (string, error) {
	return render(t.answer, answerData{
		Topic:    t.topic,
		Question: question,
		Context:  context,
	})
}

func (t *Templates) Topic() string {
	return t.topic
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s template: %w", tmpl.Name(), err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// FormatHistory renders turns oldest first, one "Human:" and one
// "Assistant:" line per turn.
func FormatHistory(turns []domain.Turn) string {
	var sb strings.Builder
	for _, turn := range turns {
		sb.WriteString("Human: ")
		sb.WriteString(turn.Question)
		sb.WriteString("\nAssistant: ")
		sb.WriteString(turn.Answer)
		sb.WriteString("\n")
	}
	return sb.String()
}
