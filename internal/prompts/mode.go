package prompts

import "fmt"

// Mode selects the diagram-generation variant: which instruction template is
// sent to the model and which input affordance the page shows.
type Mode string

const (
	ModeFigure         Mode = "figure"
	ModeVariationTable Mode = "variation_table"
	ModeFunctionGraph  Mode = "function_graph"
	ModeImage          Mode = "image"
	ModeEditor         Mode = "editor"
)

// Modes returns every mode in navigation order.
func Modes() []Mode {
	return []Mode{ModeFigure, ModeVariationTable, ModeFunctionGraph, ModeImage, ModeEditor}
}

// ParseMode converts a string into a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Label is the human-readable navigation label.
func (m Mode) Label() string {
	switch m {
	case ModeVariationTable:
		return "Variation Table"
	case ModeFunctionGraph:
		return "Function Graph"
	case ModeImage:
		return "Image to TikZ"
	case ModeEditor:
		return "TikZ Editor"
	default:
		return "Text to TikZ"
	}
}

// TakesText reports whether the primary input of the mode is a text box.
func (m Mode) TakesText() bool {
	return m != ModeImage && m != ModeEditor
}
