package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/adapter/index"
	"ragchat/internal/domain"
	"ragchat/internal/port"
	"ragchat/internal/session"
	"ragchat/internal/usecase"
)

type stubGenerator struct {
	answer string
	err    error
}

func (g *stubGenerator) Generate(context.Context, string) (string, error) {
	return g.answer, g.err
}

func (g *stubGenerator) ModelName() string { return "stub" }

type stubEmbedder struct {
	vector []float32
	err    error
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = e.vector
	}
	return out, nil
}

func (e *stubEmbedder) Dimension() int    { return len(e.vector) }
func (e *stubEmbedder) ModelName() string { return "stub" }

func testIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.New(2, index.MetricCosine)
	require.NoError(t, err)
	require.NoError(t, idx.Add([]domain.EmbeddedDocument{
		{Document: domain.Document{Text: "NCCS was set up in 2010.", SourceID: "about"}, Vector: []float32{1, 0}},
		{Document: domain.Document{Text: "Carbon tax started in 2019.", SourceID: "tax"}, Vector: []float32{0, 1}},
	}))
	return idx
}

// pipelineDeps keeps missing capabilities as nil interfaces so the pipeline
// sees them as unconfigured.
func pipelineDeps(gen *stubGenerator, emb *stubEmbedder) (port.Generator, port.Embedder) {
	var g port.Generator
	var e port.Embedder
	if gen != nil {
		g = gen
	}
	if emb != nil {
		e = emb
	}
	return g, e
}

type fixture struct {
	srv      *Server
	sessions *session.Manager
	holder   *usecase.IndexHolder
}

func newFixture(t *testing.T, gen *stubGenerator, emb *stubEmbedder, reload ReloadFunc) *fixture {
	t.Helper()

	holder := usecase.NewIndexHolder(testIndex(t))
	sessions := session.NewManager()

	g, e := pipelineDeps(gen, emb)
	pipeline := usecase.NewPipeline(g, e, holder, usecase.PipelineOptions{TopK: 1})

	return &fixture{
		srv:      New(pipeline, sessions, holder, Options{Reload: reload}),
		sessions: sessions,
		holder:   holder,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, &stubGenerator{answer: "a"}, &stubEmbedder{vector: []float32{1, 0}}, nil)

	status, body := f.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["ready"])
	assert.Equal(t, float64(2), body["documents"])
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, &stubGenerator{answer: "It was set up in 2010."}, &stubEmbedder{vector: []float32{1, 0}}, nil)

	status, created := f.do(t, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, status)
	id := created["id"].(string)
	require.NotEmpty(t, id)

	status, ans := f.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/ask", `{"question":"When was NCCS set up?"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "It was set up in 2010.", ans["answer"])
	assert.Equal(t, "done", ans["state"])
	assert.Equal(t, "When was NCCS set up?", ans["standalone_question"])
	sources := ans["sources"].([]any)
	require.Len(t, sources, 1)
	assert.Equal(t, "about", sources[0].(map[string]any)["source"])

	status, got := f.do(t, http.MethodGet, "/api/v1/sessions/"+id, "")
	require.Equal(t, http.StatusOK, status)
	history := got["history"].([]any)
	require.Len(t, history, 1)
	assert.Equal(t, "When was NCCS set up?", history[0].(map[string]any)["question"])

	status, _ = f.do(t, http.MethodDelete, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = f.do(t, http.MethodGet, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAsk_UnknownSession(t *testing.T) {
	f := newFixture(t, &stubGenerator{answer: "a"}, &stubEmbedder{vector: []float32{1, 0}}, nil)

	status, body := f.do(t, http.MethodPost, "/api/v1/sessions/nope/ask", `{"question":"q"}`)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body["error"], "not found")
}

func TestAsk_BadRequests(t *testing.T) {
	f := newFixture(t, &stubGenerator{answer: "a"}, &stubEmbedder{vector: []float32{1, 0}}, nil)
	sess := f.sessions.Create()

	status, _ := f.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID()+"/ask", `{not json`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = f.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID()+"/ask", `{"question":"   "}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 0, sess.Len())
}

func TestAsk_RejectedWithoutCredentials(t *testing.T) {
	f := newFixture(t, nil, &stubEmbedder{vector: []float32{1, 0}}, nil)
	sess := f.sessions.Create()

	status, body := f.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID()+"/ask", `{"question":"q"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "rejected", body["state"])
	assert.Equal(t, usecase.CredentialMessage, body["answer"])
	assert.Equal(t, 0, sess.Len())
}

func TestAsk_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		gen    *stubGenerator
		emb    *stubEmbedder
		status int
	}{
		{"generation", &stubGenerator{err: errors.New("down")}, &stubEmbedder{vector: []float32{1, 0}}, http.StatusBadGateway},
		{"embedding", &stubGenerator{answer: "a"}, &stubEmbedder{vector: []float32{1, 0}, err: errors.New("down")}, http.StatusBadGateway},
		{"dimension", &stubGenerator{answer: "a"}, &stubEmbedder{vector: []float32{1, 0, 0}}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.gen, tt.emb, nil)
			sess := f.sessions.Create()

			status, body := f.do(t, http.MethodPost, "/api/v1/sessions/"+sess.ID()+"/ask", `{"question":"q"}`)
			assert.Equal(t, tt.status, status)
			assert.NotEmpty(t, body["error"])
			assert.Equal(t, 0, sess.Len())
		})
	}
}

func TestReload(t *testing.T) {
	replacement, err := index.New(2, index.MetricCosine)
	require.NoError(t, err)

	f := newFixture(t, &stubGenerator{answer: "a"}, &stubEmbedder{vector: []float32{1, 0}},
		func(context.Context) (*index.Index, error) { return replacement, nil })

	status, body := f.do(t, http.MethodPost, "/api/v1/index/reload", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(0), body["documents"])
	assert.Same(t, replacement, f.holder.Current())
}

func TestReload_NotRegisteredWithoutLoader(t *testing.T) {
	f := newFixture(t, &stubGenerator{answer: "a"}, &stubEmbedder{vector: []float32{1, 0}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/reload", nil)
	resp, err := f.srv.App().Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(domain.ErrEmptyIndex))
	assert.Equal(t, http.StatusBadGateway, statusFor(&domain.RewriteError{Err: errors.New("x")}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("other")))
}
