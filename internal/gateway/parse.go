package gateway

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// Result is one parsed model reply. It is never mutated after creation.
type Result struct {
	Markup        string `json:"markup"`
	PreviewMarkup string `json:"previewMarkup"`
	Explanation   string `json:"explanation,omitempty"`
}

var (
	leadingJSONFence = regexp.MustCompile("(?i)^```json\\s*")
	leadingFence     = regexp.MustCompile("^```\\s*")
	trailingFence    = regexp.MustCompile("\\s*```$")
)

// StripFences removes a surrounding markdown code fence from a model reply.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	text = leadingJSONFence.ReplaceAllString(text, "")
	text = leadingFence.ReplaceAllString(text, "")
	text = trailingFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// wireResult uses pointers so absent fields can be told apart from empty ones.
type wireResult struct {
	Markup        *string `json:"markup"`
	PreviewMarkup *string `json:"previewMarkup"`
	Explanation   *string `json:"explanation"`
}

// ParseReply turns raw model text into a Result.
func ParseReply(text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errEmpty
	}

	var w wireResult
	if err := json.Unmarshal([]byte(StripFences(text)), &w); err != nil {
		return nil, malformed(err)
	}
	switch {
	case w.Markup == nil:
		return nil, malformed(errors.New(`reply is missing "markup"`))
	case w.PreviewMarkup == nil:
		return nil, malformed(errors.New(`reply is missing "previewMarkup"`))
	}

	res := &Result{Markup: *w.Markup, PreviewMarkup: *w.PreviewMarkup}
	if w.Explanation != nil {
		res.Explanation = *w.Explanation
	}
	return res, nil
}
