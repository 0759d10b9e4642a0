package web

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/tikzstudio/internal/prompts"
	"github.com/ziadkadry99/tikzstudio/internal/studio"
	"github.com/ziadkadry99/tikzstudio/internal/view"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// socketRequest is the incoming WebSocket message format.
type socketRequest struct {
	Type   string `json:"type"`   // "action"
	Action string `json:"action"` // submit, run, refine, reset, mode, input, refinement, markup
	Mode   string `json:"mode,omitempty"`
	Text   string `json:"text,omitempty"`
}

// socketMessage is the outgoing WebSocket message format.
type socketMessage struct {
	Type    string        `json:"type"` // "state" or "error"
	HTML    string        `json:"html,omitempty"`
	State   *studio.State `json:"state,omitempty"`
	Page    *view.Page    `json:"page,omitempty"`
	Message string        `json:"message,omitempty"`
}

// handleWebSocket pushes the rendered session to the client after every state
// change, and accepts actions in the other direction.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	c := controllerFrom(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// One pending signal is enough: the writer always sends the latest snapshot.
	changed := make(chan struct{}, 1)
	changed <- struct{}{}
	unsubscribe := c.Subscribe(func(studio.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	outbox := make(chan socketMessage, 8)
	done := make(chan struct{})
	go h.readLoop(conn, c, outbox, done)

	for {
		select {
		case <-done:
			return
		case <-changed:
			msg, err := h.stateMessage(c)
			if err != nil {
				log.Printf("web: rendering session %s: %v", c.ID(), err)
				msg = socketMessage{Type: "error", Message: "rendering failed"}
			}
			if !send(conn, msg) {
				return
			}
		case msg := <-outbox:
			if !send(conn, msg) {
				return
			}
		}
	}
}

func (h *Handler) stateMessage(c *studio.Controller) (socketMessage, error) {
	st, page := h.project(c)
	html, err := h.renderer.Fragment(page)
	if err != nil {
		return socketMessage{}, err
	}
	return socketMessage{Type: "state", HTML: html, State: &st, Page: &page}, nil
}

func (h *Handler) readLoop(conn *websocket.Conn, c *studio.Controller, outbox chan<- socketMessage, done chan<- struct{}) {
	defer close(done)
	for {
		var req socketRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket read: %v", err)
			}
			return
		}
		if req.Type != "action" {
			reply(outbox, "unknown message type: "+req.Type)
			continue
		}
		h.dispatch(c, req, outbox)
	}
}

func (h *Handler) dispatch(c *studio.Controller, req socketRequest, outbox chan<- socketMessage) {
	run := func(action func(*studio.Controller, context.Context) error) {
		go func() {
			if err := action(c, context.Background()); err != nil {
				reply(outbox, err.Error())
			}
		}()
	}

	switch req.Action {
	case "submit":
		run((*studio.Controller).SubmitPrimary)
	case "run":
		run((*studio.Controller).RunEditedMarkup)
	case "refine":
		run((*studio.Controller).Refine)
	case "reset":
		c.Reset()
	case "mode":
		mode, err := prompts.ParseMode(req.Mode)
		if err != nil {
			reply(outbox, err.Error())
			return
		}
		c.SwitchMode(mode)
	case "input":
		c.SetInputText(req.Text)
	case "refinement":
		c.SetRefinementText(req.Text)
	case "markup":
		c.SetEditedMarkup(req.Text)
	default:
		reply(outbox, "unknown action: "+req.Action)
	}
}

func reply(outbox chan<- socketMessage, message string) {
	select {
	case outbox <- socketMessage{Type: "error", Message: message}:
	default:
	}
}

func send(conn *websocket.Conn, msg socketMessage) bool {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("web: websocket write: %v", err)
		return false
	}
	return true
}
