package handlers

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"todo/internal/core"
	"todo/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

// ItemCore is the part of the sync core the handlers use.
type ItemCore interface {
	State() core.State
	Watch(ctx context.Context) <-chan core.State
	SubmitUpsert(item models.Item) *core.Pending
	SubmitDelete(item models.Item) *core.Pending
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	core      ItemCore
	templates *template.Template
	logger    *zap.Logger
	origins   []string
}

// Option configures Handlers.
type Option func(*Handlers)

// WithAllowedOrigins lets browsers on other hosts open the state stream.
// Patterns use path.Match syntax against the Origin host, e.g.
// "localhost:3000" or "*.example.com".
func WithAllowedOrigins(patterns ...string) Option {
	return func(h *Handlers) {
		h.origins = append(h.origins, patterns...)
	}
}

// New creates a new Handlers instance.
func New(c ItemCore, logger *zap.Logger, opts ...Option) (*Handlers, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	h := &Handlers{
		core:      c,
		templates: tmpl,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Routes returns the router serving the page, the item API and the state stream.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", h.Home)
	r.Get("/health", h.Health)
	r.Get("/items", h.ItemList)

	r.Get("/api/items", h.ListItems)
	r.Post("/api/items", h.CreateItem)
	r.Get("/api/items/stream", h.Stream)
	r.Put("/api/items/{id}", h.UpdateItem)
	r.Post("/api/items/{id}/toggle", h.ToggleItem)
	r.Delete("/api/items/{id}", h.DeleteItem)

	return r
}

func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"stats": func(items []models.Item) map[string]int {
			done, pending := models.Stats(items)
			return map[string]int{"Done": done, "Pending": pending, "Total": len(items)}
		},
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return tmpl, nil
}

// parseID extracts and parses an integer ID from URL parameters.
func parseID(r *http.Request, param string) (int64, error) {
	idStr := chi.URLParam(r, param)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid id %d", id)
	}
	return id, nil
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, code int, message string) {
	w.WriteHeader(code)
	w.Write([]byte(message))
}

func (h *Handlers) respondServerError(w http.ResponseWriter, err error) {
	h.logger.Error("internal server error", zap.Error(err))
	respondError(w, http.StatusInternalServerError, "internal server error")
}

// await waits for a submitted write and reports failures. It returns false
// when a response has already been written or the client went away.
func (h *Handlers) await(w http.ResponseWriter, r *http.Request, p *core.Pending) bool {
	err := p.Wait(r.Context())
	if err == nil {
		return true
	}

	switch {
	case r.Context().Err() != nil:
		// The client stopped waiting; the write is still queued.
		h.logger.Debug("client left before write finished", zap.String("op", string(p.Op())))
	case errors.Is(err, core.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, "shutting down")
	default:
		h.respondServerError(w, err)
	}
	return false
}

func (h *Handlers) render(w http.ResponseWriter, name string, data interface{}) {
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		h.respondServerError(w, err)
	}
}

// renderTemplate renders a full page.
func (h *Handlers) renderTemplate(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	h.render(w, name, data)
}

// renderPartial renders a fragment for htmx responses.
func (h *Handlers) renderPartial(w http.ResponseWriter, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	h.render(w, name, data)
}
