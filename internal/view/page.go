// Package view projects a studio session onto what the page displays. Project
// is a pure function of its inputs; Renderer turns its output into HTML.
package view

import (
	"strings"

	"github.com/ziadkadry99/tikzstudio/internal/prompts"
	"github.com/ziadkadry99/tikzstudio/internal/studio"
)

// Layout is the top-level arrangement of the page.
type Layout string

const (
	// LayoutHero is the centered input card shown before the first result.
	LayoutHero Layout = "hero"
	// LayoutWorkspace is the split editor/preview view with the refine bar.
	LayoutWorkspace Layout = "workspace"
)

// Affordance is the kind of primary input the hero card offers.
type Affordance string

const (
	AffordanceText  Affordance = "text"
	AffordanceImage Affordance = "image"
)

// Meta is the process-level information the page shows next to the session.
type Meta struct {
	ModelName         string
	CredentialMissing bool
}

// Tab is one navigation entry.
type Tab struct {
	Mode   prompts.Mode `json:"mode"`
	Label  string       `json:"label"`
	Active bool         `json:"active"`
}

// Hero is the content of the pre-result input card.
type Hero struct {
	Title       string     `json:"title"`
	Subtitle    string     `json:"subtitle"`
	Affordance  Affordance `json:"affordance"`
	Placeholder string     `json:"placeholder"`
	InputText   string     `json:"inputText"`
	HasImage    bool       `json:"hasImage"`
	ButtonLabel string     `json:"buttonLabel"`
	CanSubmit   bool       `json:"canSubmit"`
	ErrorTitle  string     `json:"errorTitle"`
}

// Workspace is the content of the split view.
type Workspace struct {
	Markup            string `json:"markup"`
	PreviewMarkup     string `json:"previewMarkup"`
	HasPreview        bool   `json:"hasPreview"`
	Explanation       string `json:"explanation,omitempty"`
	RefinePlaceholder string `json:"refinePlaceholder"`
	RefinementText    string `json:"refinementText"`
	RefineLabel       string `json:"refineLabel"`
	CanRun            bool   `json:"canRun"`
	CanRefine         bool   `json:"canRefine"`
	CanExport         bool   `json:"canExport"`
}

// Page is everything the page displays for one session.
type Page struct {
	SessionID         string     `json:"sessionId"`
	Layout            Layout     `json:"layout"`
	Tabs              []Tab      `json:"tabs"`
	Badge             string     `json:"badge"`
	Loading           bool       `json:"loading"`
	Error             string     `json:"error,omitempty"`
	ShowReset         bool       `json:"showReset"`
	Hero              *Hero      `json:"hero,omitempty"`
	Workspace         *Workspace `json:"workspace,omitempty"`
	ModelName         string     `json:"modelName"`
	CredentialMissing bool       `json:"credentialMissing"`
}

const (
	refineHint = "Ask AI to refine (e.g., 'Change the color to blue', 'Rotate by 90 deg')"
	drawHint   = "Describe what to draw..."
)

// Project computes the page for a session state.
func Project(sessionID string, s studio.State, meta Meta) Page {
	p := Page{
		SessionID:         sessionID,
		Layout:            LayoutHero,
		Badge:             badge(s.Mode),
		Loading:           s.Loading,
		Error:             s.Error,
		ModelName:         meta.ModelName,
		CredentialMissing: meta.CredentialMissing,
	}
	for _, m := range prompts.Modes() {
		p.Tabs = append(p.Tabs, Tab{Mode: m, Label: m.Label(), Active: m == s.Mode})
	}

	if s.Result != nil || s.Mode == prompts.ModeEditor {
		p.Layout = LayoutWorkspace
		p.ShowReset = true
		p.Workspace = workspace(s)
		return p
	}
	p.Hero = hero(s)
	return p
}

func badge(m prompts.Mode) string {
	switch m {
	case prompts.ModeVariationTable:
		return "Table Mode"
	case prompts.ModeFunctionGraph:
		return "Graph Mode"
	case prompts.ModeImage:
		return "Vision Mode"
	case prompts.ModeEditor:
		return "Editor Mode"
	default:
		return "Creation Mode"
	}
}

func hero(s studio.State) *Hero {
	h := &Hero{
		Affordance:  AffordanceText,
		Placeholder: "e.g. A red triangle ABC...",
		InputText:   s.InputText,
		HasImage:    s.HasImage(),
		ButtonLabel: "Generate",
		CanSubmit:   !s.Loading && hasText(s.InputText),
		ErrorTitle:  "Generation Failed",
	}

	switch s.Mode {
	case prompts.ModeVariationTable:
		h.Title = "Create Variation Tables"
		h.Subtitle = "Describe your function (e.g. 'y = x^3 - 3x') to generate a complete variation table."
		h.Placeholder = "e.g. y = x^3 - 3x + 1 on [-2, 2]"
	case prompts.ModeFunctionGraph:
		h.Title = "Plot Functions"
		h.Subtitle = "Draw mathematical function graphs with axes, grids, and labels."
	case prompts.ModeImage:
		h.Title = "Vision to TikZ"
		h.Subtitle = "Upload an image of a diagram to convert it into LaTeX code."
		h.Affordance = AffordanceImage
		h.Placeholder = "Optional: Add instructions (e.g., 'Make lines thicker')"
		h.ButtonLabel = "Convert"
		h.CanSubmit = !s.Loading && s.HasImage()
		h.ErrorTitle = "Processing Failed"
	default:
		h.Title = "What do you want to draw?"
		h.Subtitle = "Describe your geometric figure, graph, or diagram in natural language."
	}
	return h
}

func workspace(s studio.State) *Workspace {
	w := &Workspace{
		Markup:            s.EditedMarkup,
		RefinePlaceholder: refineHint,
		RefinementText:    s.RefinementText,
		RefineLabel:       "Send",
		CanRun:            !s.Loading && hasText(s.EditedMarkup),
	}
	if s.Result != nil {
		w.PreviewMarkup = s.Result.PreviewMarkup
		w.HasPreview = hasText(s.Result.PreviewMarkup)
		w.Explanation = s.Result.Explanation
		w.CanExport = w.HasPreview
	}
	if s.Mode == prompts.ModeEditor && s.Result == nil {
		w.RefinePlaceholder = drawHint
	}
	if s.Loading {
		w.RefineLabel = "Working..."
	}

	source := s.Mode == prompts.ModeEditor || s.EditedMarkup != "" || s.Result != nil
	w.CanRefine = !s.Loading && hasText(s.RefinementText) && source
	return w
}

func hasText(s string) bool {
	return strings.TrimSpace(s) != ""
}
