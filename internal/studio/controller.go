// Package studio holds the per-session view-state machine: the input buffers,
// the current Result, and the actions that move between them.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/ziadkadry99/tikzstudio/internal/gateway"
	"github.com/ziadkadry99/tikzstudio/internal/llm"
	"github.com/ziadkadry99/tikzstudio/internal/prompts"
)

var (
	// ErrNothingToSubmit is returned when the primary input is empty.
	ErrNothingToSubmit = errors.New("studio: nothing to submit")
	// ErrNothingToRun is returned when the edited markup is empty.
	ErrNothingToRun = errors.New("studio: no markup to run")
	// ErrNothingToRefine is returned when there is no refinement text or no
	// markup to refine.
	ErrNothingToRefine = errors.New("studio: nothing to refine")
)

// Generator is the subset of the model gateway the controller drives.
type Generator interface {
	GenerateFromText(ctx context.Context, prompt, priorMarkup string, mode prompts.Mode) (*gateway.Result, error)
	GenerateFromImage(ctx context.Context, image llm.Image, instruction string) (*gateway.Result, error)
	RenderMarkup(ctx context.Context, markup, refinement string) (*gateway.Result, error)
}

// OverlapPolicy decides what happens when a call finishes after a newer one
// was dispatched.
type OverlapPolicy string

const (
	// LastWins applies every response in the order it arrives.
	LastWins OverlapPolicy = "last_wins"
	// LatestOnly drops responses that are not from the most recent request,
	// including responses that arrive after a mode switch or reset.
	LatestOnly OverlapPolicy = "latest_only"
)

// ParseOverlapPolicy validates a policy name. Empty means LastWins.
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch OverlapPolicy(s) {
	case "", LastWins:
		return LastWins, nil
	case LatestOnly:
		return LatestOnly, nil
	}
	return "", fmt.Errorf("unknown overlap policy %q (want %s or %s)", s, LastWins, LatestOnly)
}

// Controller owns one session's State. All methods are safe for concurrent use.
type Controller struct {
	id     string
	gen    Generator
	policy OverlapPolicy

	mu        sync.Mutex
	state     State
	token     uint64
	listeners map[int]func(State)
	nextID    int
}

// NewController creates a controller in the initial state.
func NewController(id string, gen Generator, policy OverlapPolicy) *Controller {
	if policy == "" {
		policy = LastWins
	}
	return &Controller{
		id:        id,
		gen:       gen,
		policy:    policy,
		state:     newState(),
		listeners: make(map[int]func(State)),
	}
}

// ID returns the session identifier.
func (c *Controller) ID() string { return c.id }

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn to be called with a fresh snapshot after every
// change. The returned func removes the listener.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// update applies fn under the lock and notifies listeners.
func (c *Controller) update(fn func(s *State)) {
	c.mu.Lock()
	fn(&c.state)
	snap := c.state.clone()
	fns := make([]func(State), 0, len(c.listeners))
	for _, l := range c.listeners {
		fns = append(fns, l)
	}
	c.mu.Unlock()

	for _, l := range fns {
		l(snap)
	}
}

// SwitchMode moves to mode m and clears the input buffers, result and error.
func (c *Controller) SwitchMode(m prompts.Mode) {
	c.update(func(s *State) {
		c.clearWorkspace(s)
		s.Mode = m
	})
}

// Reset clears the workspace while keeping the current mode.
func (c *Controller) Reset() {
	c.update(c.clearWorkspace)
}

func (c *Controller) clearWorkspace(s *State) {
	s.InputText = ""
	s.RefinementText = ""
	s.InputImage = nil
	s.Result = nil
	s.EditedMarkup = ""
	s.Error = ""
	if c.policy == LatestOnly {
		// Invalidate anything in flight; its response will be dropped.
		c.token++
		s.Loading = false
	}
}

// SetInputText replaces the primary text input.
func (c *Controller) SetInputText(text string) {
	c.update(func(s *State) { s.InputText = text })
}

// SetRefinementText replaces the refine bar text.
func (c *Controller) SetRefinementText(text string) {
	c.update(func(s *State) { s.RefinementText = text })
}

// SetEditedMarkup replaces the editor buffer. Result is never touched.
func (c *Controller) SetEditedMarkup(markup string) {
	c.update(func(s *State) { s.EditedMarkup = markup })
}

// SetInputImage attaches img as the image-mode input.
func (c *Controller) SetInputImage(img llm.Image) {
	c.update(func(s *State) { s.InputImage = &img })
}

// ClearInputImage removes the attached image.
func (c *Controller) ClearInputImage() {
	c.update(func(s *State) { s.InputImage = nil })
}

// SubmitPrimary sends the primary input for the current mode: the text box in
// text modes, the attached image (with the text box as an optional
// instruction) in image mode. In editor mode it runs the edited markup.
func (c *Controller) SubmitPrimary(ctx context.Context) error {
	st := c.Snapshot()

	switch st.Mode {
	case prompts.ModeImage:
		if st.InputImage == nil {
			return ErrNothingToSubmit
		}
		img, instruction := *st.InputImage, strings.TrimSpace(st.InputText)
		c.dispatch(ctx, func(ctx context.Context) (*gateway.Result, error) {
			return c.gen.GenerateFromImage(ctx, img, instruction)
		}, nil)
	case prompts.ModeEditor:
		return c.RunEditedMarkup(ctx)
	default:
		if strings.TrimSpace(st.InputText) == "" {
			return ErrNothingToSubmit
		}
		prompt, mode := st.InputText, st.Mode
		c.dispatch(ctx, func(ctx context.Context) (*gateway.Result, error) {
			return c.gen.GenerateFromText(ctx, prompt, "", mode)
		}, nil)
	}
	return nil
}

// RunEditedMarkup asks for a fresh preview of the editor buffer.
func (c *Controller) RunEditedMarkup(ctx context.Context) error {
	st := c.Snapshot()
	if strings.TrimSpace(st.EditedMarkup) == "" {
		return ErrNothingToRun
	}
	markup := st.EditedMarkup
	c.dispatch(ctx, func(ctx context.Context) (*gateway.Result, error) {
		return c.gen.RenderMarkup(ctx, markup, "")
	}, nil)
	return nil
}

// Refine applies the refinement text to the current markup. In editor mode
// with no result yet, the refinement text is treated as a new request.
func (c *Controller) Refine(ctx context.Context) error {
	st := c.Snapshot()
	refinement := st.RefinementText
	if strings.TrimSpace(refinement) == "" {
		return ErrNothingToRefine
	}

	source := st.EditedMarkup
	if source == "" && st.Result != nil {
		source = st.Result.Markup
	}

	var call func(ctx context.Context) (*gateway.Result, error)
	switch {
	case st.Mode == prompts.ModeEditor && st.Result == nil:
		call = func(ctx context.Context) (*gateway.Result, error) {
			return c.gen.GenerateFromText(ctx, refinement, "", prompts.ModeFigure)
		}
	case source == "":
		return ErrNothingToRefine
	default:
		mode := st.Mode
		call = func(ctx context.Context) (*gateway.Result, error) {
			return c.gen.GenerateFromText(ctx, refinement, source, mode)
		}
	}

	c.dispatch(ctx, call, func(s *State) { s.RefinementText = "" })
	return nil
}

// dispatch runs one gateway call with the loading/error contract: Loading is
// set before the call and always cleared after it, a failure becomes
// State.Error, and a success replaces Result and reseeds EditedMarkup.
func (c *Controller) dispatch(ctx context.Context, call func(context.Context) (*gateway.Result, error), onSuccess func(*State)) {
	var tok uint64
	c.update(func(s *State) {
		c.token++
		tok = c.token
		s.Loading = true
		s.Error = ""
	})

	var (
		res *gateway.Result
		err error
	)
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("unexpected failure: %v", p)
		}
		c.finish(tok, res, err, onSuccess)
	}()
	res, err = call(gateway.WithSessionID(ctx, c.id))
}

func (c *Controller) finish(tok uint64, res *gateway.Result, err error, onSuccess func(*State)) {
	dropped := false
	c.update(func(s *State) {
		if c.policy == LatestOnly && tok != c.token {
			dropped = true
			return
		}
		s.Loading = false
		if err != nil {
			s.Error = err.Error()
			return
		}
		if res == nil {
			s.Error = "no response from AI"
			return
		}
		s.Result = res
		s.EditedMarkup = res.Markup
		s.Error = ""
		if onSuccess != nil {
			onSuccess(s)
		}
	})
	if dropped {
		log.Printf("studio: session %s dropped a superseded response", c.id)
	}
}
