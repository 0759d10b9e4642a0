// Package web serves the studio page, its JSON API and the live state socket.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/tikzstudio/internal/export"
	"github.com/ziadkadry99/tikzstudio/internal/studio"
	"github.com/ziadkadry99/tikzstudio/internal/view"
)

// MetaFunc reports the process-level page information. It is called on every
// render so a credential added at runtime shows up without a restart.
type MetaFunc func() view.Meta

// Handler provides the studio routes.
type Handler struct {
	registry *studio.Registry
	renderer *view.Renderer
	meta     MetaFunc
	export   export.Options
	now      func() time.Time
}

// New creates a Handler.
func New(registry *studio.Registry, renderer *view.Renderer, meta MetaFunc, exportOpts export.Options) *Handler {
	if meta == nil {
		meta = func() view.Meta { return view.Meta{} }
	}
	return &Handler{
		registry: registry,
		renderer: renderer,
		meta:     meta,
		export:   exportOpts,
		now:      time.Now,
	}
}

// RegisterRoutes mounts all studio routes onto the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleNewSession)
	r.With(h.session).Get("/s/{id}", h.handlePage)
	r.With(h.session).Get("/ws/sessions/{id}", h.handleWebSocket)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(h.session)
			r.Get("/", h.handleState)
			r.Delete("/", h.handleDelete)
			r.Post("/mode", h.handleMode)
			r.Put("/input", h.handleText(func(c *studio.Controller, s string) { c.SetInputText(s) }))
			r.Put("/refinement", h.handleText(func(c *studio.Controller, s string) { c.SetRefinementText(s) }))
			r.Put("/markup", h.handleMarkup)
			r.Post("/image", h.handleImage)
			r.Delete("/image", h.handleClearImage)
			r.Post("/submit", h.handleAction((*studio.Controller).SubmitPrimary))
			r.Post("/run", h.handleAction((*studio.Controller).RunEditedMarkup))
			r.Post("/refine", h.handleAction((*studio.Controller).Refine))
			r.Post("/reset", h.handleReset)
			r.Get("/export.svg", h.handleExportSVG)
			r.Get("/export.png", h.handleExportPNG)
		})
	})
}

type ctxKey struct{}

// session loads the controller named by the {id} URL parameter.
func (h *Handler) session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := h.registry.Get(chi.URLParam(r, "id"))
		if !ok {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, c)))
	})
}

func controllerFrom(r *http.Request) *studio.Controller {
	return r.Context().Value(ctxKey{}).(*studio.Controller)
}

// project builds the page for the controller's current state.
func (h *Handler) project(c *studio.Controller) (studio.State, view.Page) {
	st := c.Snapshot()
	return st, view.Project(c.ID(), st, h.meta())
}
