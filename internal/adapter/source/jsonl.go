package source

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ragchat/internal/domain"
	"ragchat/internal/port"
)

var _ port.DocumentSource = (*JSONLSource)(nil)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 4 * 1024 * 1024

// JSONLSource loads documents from newline-delimited JSON files where every
// line is {"text": ..., "source": ...}.
type JSONLSource struct {
	root   string
	walker *Walker
	logger *slog.Logger
}

type Option func(*JSONLSource)

func WithLogger(l *slog.Logger) Option {
	return func(s *JSONLSource) {
		s.logger = l
	}
}

func NewJSONLSource(root string, includes, excludes []string, opts ...Option) *JSONLSource {
	s := &JSONLSource{
		root:   root,
		walker: NewWalker(includes, excludes),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads every matching file. Malformed lines and records without text
// are skipped with a warning; failing to open or read a file is fatal.
func (s *JSONLSource) Load(ctx context.Context) ([]domain.Document, error) {
	files, err := s.walker.Walk(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.root, err)
	}

	var docs []domain.Document
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fileDocs, err := s.loadFile(path)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("loaded source file", "path", path, "documents", len(fileDocs))
		docs = append(docs, fileDocs...)
	}

	return docs, nil
}

func (s *JSONLSource) loadFile(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var docs []domain.Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var doc domain.Document
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			s.logger.Warn("skipping malformed line", "path", path, "line", lineNo, "error", err)
			continue
		}
		if strings.TrimSpace(doc.Text) == "" {
			s.logger.Warn("skipping record without text", "path", path, "line", lineNo)
			continue
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return docs, nil
}
