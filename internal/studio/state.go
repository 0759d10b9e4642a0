package studio

import (
	"github.com/ziadkadry99/tikzstudio/internal/gateway"
	"github.com/ziadkadry99/tikzstudio/internal/llm"
	"github.com/ziadkadry99/tikzstudio/internal/prompts"
)

// State is everything one studio session shows. It is owned by a Controller;
// callers only ever see copies.
type State struct {
	Mode           prompts.Mode    `json:"mode"`
	InputText      string          `json:"inputText"`
	RefinementText string          `json:"refinementText"`
	InputImage     *llm.Image      `json:"-"`
	Result         *gateway.Result `json:"result,omitempty"`
	EditedMarkup   string          `json:"editedMarkup"`
	Loading        bool            `json:"loading"`
	Error          string          `json:"error,omitempty"`
}

// HasImage reports whether an input image is attached.
func (s State) HasImage() bool { return s.InputImage != nil }

func newState() State {
	return State{Mode: prompts.ModeFigure}
}

func (s State) clone() State {
	out := s
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	if s.InputImage != nil {
		img := *s.InputImage
		out.InputImage = &img
	}
	return out
}
