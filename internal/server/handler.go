package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"

	"ragchat/internal/domain"
	"ragchat/internal/session"
	"ragchat/internal/usecase"
)

// SessionHandler handles conversation endpoints.
type SessionHandler struct {
	pipeline *usecase.Pipeline
	sessions *session.Manager
	timeout  time.Duration
}

func NewSessionHandler(pipeline *usecase.Pipeline, sessions *session.Manager, timeout time.Duration) *SessionHandler {
	return &SessionHandler{
		pipeline: pipeline,
		sessions: sessions,
		timeout:  timeout,
	}
}

// Register sets up session routes.
func (h *SessionHandler) Register(router fiber.Router) {
	router.Post("/sessions", h.Create)
	router.Get("/sessions/:id", h.Get)
	router.Delete("/sessions/:id", h.Delete)
	router.Post("/sessions/:id/ask", h.Ask)
}

type turnResponse struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type sessionResponse struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	History   []turnResponse `json:"history"`
}

type sourceResponse struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

type askResponse struct {
	Answer     string           `json:"answer"`
	Standalone string           `json:"standalone_question,omitempty"`
	Sources    []sourceResponse `json:"sources"`
	State      string           `json:"state"`
}

func (h *SessionHandler) Create(c fiber.Ctx) error {
	sess := h.sessions.Create()
	return c.Status(fiber.StatusCreated).JSON(toSessionResponse(sess))
}

func (h *SessionHandler) Get(c fiber.Ctx) error {
	sess, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(toSessionResponse(sess))
}

func (h *SessionHandler) Delete(c fiber.Ctx) error {
	if err := h.sessions.Delete(c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Ask answers one question within the session.
func (h *SessionHandler) Ask(c fiber.Ctx) error {
	sess, err := h.sessions.Get(c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}

	var body struct {
		Question string `json:"question"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	ctx := c.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	ans, err := h.pipeline.Ask(ctx, sess, body.Question)
	if err != nil {
		return writeError(c, err)
	}

	sources := make([]sourceResponse, len(ans.Sources))
	for i, s := range ans.Sources {
		sources[i] = sourceResponse{
			Text:   s.Document.Text,
			Source: s.Document.SourceID,
			Score:  s.Score,
		}
	}

	return c.JSON(askResponse{
		Answer:     ans.Text,
		Standalone: ans.Standalone,
		Sources:    sources,
		State:      string(ans.State),
	})
}

func toSessionResponse(sess *session.Session) sessionResponse {
	history := sess.History()
	turns := make([]turnResponse, len(history))
	for i, t := range history {
		turns[i] = turnResponse{Question: t.Question, Answer: t.Answer}
	}
	return sessionResponse{
		ID:        sess.ID(),
		CreatedAt: sess.CreatedAt(),
		History:   turns,
	}
}

// IndexHandler handles index maintenance endpoints.
type IndexHandler struct {
	holder *usecase.IndexHolder
	reload ReloadFunc
	logger *slog.Logger
}

func NewIndexHandler(holder *usecase.IndexHolder, reload ReloadFunc, logger *slog.Logger) *IndexHandler {
	return &IndexHandler{holder: holder, reload: reload, logger: logger}
}

func (h *IndexHandler) Register(router fiber.Router) {
	router.Post("/index/reload", h.Reload)
}

// Reload swaps in a freshly loaded index. Queries already running finish on
// the previous one.
func (h *IndexHandler) Reload(c fiber.Ctx) error {
	idx, err := h.reload(c.Context())
	if err != nil {
		return writeError(c, err)
	}

	h.holder.Swap(idx)
	h.logger.Info("index reloaded", "documents", idx.Len(), "dimension", idx.Dimension())

	return c.JSON(fiber.Map{
		"documents": idx.Len(),
		"dimension": idx.Dimension(),
	})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrDimensionMismatch):
		return fiber.StatusInternalServerError
	case errors.Is(err, domain.ErrEmptyIndex):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, domain.ErrEmbedding),
		errors.Is(err, domain.ErrRewrite),
		errors.Is(err, domain.ErrGeneration):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{"error": err.Error()})
}
