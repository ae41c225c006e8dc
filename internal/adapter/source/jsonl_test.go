package source

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestJSONLSource_Load(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "train_data.jsonl"),
		`{"text": "The NCCS coordinates climate policy.", "source": "https://www.nccs.gov.sg/"}`+"\n"+
			`{"text": "Singapore aims for net zero by 2050.", "source": "https://www.nccs.gov.sg/net-zero"}`+"\n")
	writeFile(t, filepath.Join(dir, "nested", "more.jsonl"),
		`{"text": "Carbon tax applies to large emitters.", "source": "tax"}`+"\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a record")

	src := NewJSONLSource(dir, nil, nil)
	docs, err := src.Load(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 3)
	assert.Equal(t, domain.Document{Text: "Carbon tax applies to large emitters.", SourceID: "tax"}, docs[0], "nested sorts before train_data")
	assert.Equal(t, "https://www.nccs.gov.sg/", docs[1].SourceID)
	assert.Equal(t, "Singapore aims for net zero by 2050.", docs[2].Text)
}

func TestJSONLSource_SkipsBadLines(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "data.jsonl"),
		`{"text": "good", "source": "a"}`+"\n"+
			`{not json`+"\n"+
			"\n"+
			`{"text": "   ", "source": "blank"}`+"\n"+
			`{"text": "also good", "source": "b"}`+"\n")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	docs, err := NewJSONLSource(dir, nil, nil, WithLogger(logger)).Load(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "good", docs[0].Text)
	assert.Equal(t, "also good", docs[1].Text)
	assert.Contains(t, logs.String(), "skipping malformed line")
	assert.Contains(t, logs.String(), "skipping record without text")
}

func TestJSONLSource_SingleFileRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.data")
	writeFile(t, path, `{"text": "only", "source": "x"}`)

	docs, err := NewJSONLSource(path, nil, nil).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "only", docs[0].Text)
}

func TestJSONLSource_Excludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.jsonl"), `{"text": "keep", "source": "k"}`)
	writeFile(t, filepath.Join(dir, "archive", "old.jsonl"), `{"text": "old", "source": "o"}`)

	docs, err := NewJSONLSource(dir, []string{"**/*.jsonl"}, []string{"archive/**"}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "keep", docs[0].Text)
}

func TestJSONLSource_MissingRoot(t *testing.T) {
	_, err := NewJSONLSource(filepath.Join(t.TempDir(), "missing"), nil, nil).Load(context.Background())
	assert.Error(t, err)
}

func TestJSONLSource_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jsonl"), `{"text": "a", "source": "a"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewJSONLSource(dir, nil, nil).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalker_Patterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jsonl"), "")
	writeFile(t, filepath.Join(dir, "b.json"), "")
	writeFile(t, filepath.Join(dir, "sub", "c.jsonl"), "")

	files, err := NewWalker([]string{"*.jsonl"}, nil).Walk(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.jsonl", filepath.Base(files[0]))

	files, err = NewWalker(nil, nil).Walk(dir)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}
