package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/ziadkadry99/tikzstudio/internal/export"
	"github.com/ziadkadry99/tikzstudio/internal/llm"
	"github.com/ziadkadry99/tikzstudio/internal/prompts"
	"github.com/ziadkadry99/tikzstudio/internal/studio"
	"github.com/ziadkadry99/tikzstudio/internal/view"
)

const maxImageBytes = 10 << 20

// sessionResponse is the JSON body returned by every session endpoint.
type sessionResponse struct {
	ID    string       `json:"id"`
	State studio.State `json:"state"`
	Page  view.Page    `json:"page"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type textRequest struct {
	Text string `json:"text"`
}

type markupRequest struct {
	Markup string `json:"markup"`
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, c *studio.Controller) {
	st, page := h.project(c)
	writeJSON(w, status, sessionResponse{ID: c.ID(), State: st, Page: page})
}

func (h *Handler) handleNewSession(w http.ResponseWriter, r *http.Request) {
	c := h.registry.Create()
	http.Redirect(w, r, "/s/"+c.ID(), http.StatusSeeOther)
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	_, page := h.project(controllerFrom(r))

	var buf bytes.Buffer
	if err := h.renderer.Document(&buf, page); err != nil {
		log.Printf("web: rendering page: %v", err)
		http.Error(w, "rendering failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	h.writeSession(w, http.StatusCreated, h.registry.Create())
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	h.writeSession(w, http.StatusOK, controllerFrom(r))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	h.registry.Remove(controllerFrom(r).ID())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMode(w http.ResponseWriter, r *http.Request) {
	var req modeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	mode, err := prompts.ParseMode(req.Mode)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c := controllerFrom(r)
	c.SwitchMode(mode)
	h.writeSession(w, http.StatusOK, c)
}

func (h *Handler) handleText(set func(*studio.Controller, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req textRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		c := controllerFrom(r)
		set(c, req.Text)
		h.writeSession(w, http.StatusOK, c)
	}
}

func (h *Handler) handleMarkup(w http.ResponseWriter, r *http.Request) {
	var req markupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	c := controllerFrom(r)
	c.SetEditedMarkup(req.Markup)
	h.writeSession(w, http.StatusOK, c)
}

func (h *Handler) handleImage(w http.ResponseWriter, r *http.Request) {
	img, err := readImage(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c := controllerFrom(r)
	c.SetInputImage(img)
	h.writeSession(w, http.StatusOK, c)
}

// readImage accepts either a multipart form with an "image" file or a raw
// image request body.
func readImage(w http.ResponseWriter, r *http.Request) (llm.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)

	var (
		data     []byte
		mimeType string
		err      error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, ferr := r.FormFile("image")
		if ferr != nil {
			return llm.Image{}, fmt.Errorf("reading image field: %w", ferr)
		}
		defer file.Close()
		data, err = io.ReadAll(file)
		mimeType = header.Header.Get("Content-Type")
	} else {
		data, err = io.ReadAll(r.Body)
		mimeType = r.Header.Get("Content-Type")
	}
	if err != nil {
		return llm.Image{}, fmt.Errorf("reading image: %w", err)
	}
	return llm.NewImage(data, mimeType)
}

func (h *Handler) handleClearImage(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r)
	c.ClearInputImage()
	h.writeSession(w, http.StatusOK, c)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r)
	c.Reset()
	h.writeSession(w, http.StatusOK, c)
}

// handleAction runs a model-backed action and answers once it has finished.
// The call is not tied to the request: a client going away does not cancel it.
func (h *Handler) handleAction(action func(*studio.Controller, context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := controllerFrom(r)
		if err := action(c, context.WithoutCancel(r.Context())); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
			return
		}
		h.writeSession(w, http.StatusOK, c)
	}
}

func (h *Handler) handleExportSVG(w http.ResponseWriter, r *http.Request) {
	st := controllerFrom(r).Snapshot()
	if st.Result == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: export.ErrNoPreview.Error()})
		return
	}
	doc, err := export.SVG(st.Result.PreviewMarkup)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	attachment(w, "image/svg+xml", export.Filename("svg", h.now()))
	w.Write(doc)
}

func (h *Handler) handleExportPNG(w http.ResponseWriter, r *http.Request) {
	st := controllerFrom(r).Snapshot()
	if st.Result == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: export.ErrNoPreview.Error()})
		return
	}
	var buf bytes.Buffer
	if err := export.PNG(&buf, st.Result.PreviewMarkup, h.export); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, export.ErrNoPreview) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	attachment(w, "image/png", export.Filename("png", h.now()))
	w.Write(buf.Bytes())
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
