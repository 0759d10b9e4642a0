// Package history records every model call made by the studio so past
// diagrams and their cost can be looked up later.
package history

import (
	"time"

	"github.com/ziadkadry99/tikzstudio/internal/gateway"
	"github.com/ziadkadry99/tikzstudio/internal/prompts"
)

// Entry is one recorded gateway call.
type Entry struct {
	ID            string            `json:"id"`
	CreatedAt     time.Time         `json:"createdAt"`
	SessionID     string            `json:"sessionId,omitempty"`
	Operation     gateway.Operation `json:"operation"`
	Mode          prompts.Mode      `json:"mode"`
	Prompt        string            `json:"prompt"`
	Markup        string            `json:"markup,omitempty"`
	PreviewMarkup string            `json:"previewMarkup,omitempty"`
	Explanation   string            `json:"explanation,omitempty"`
	ErrorKind     gateway.Kind      `json:"errorKind,omitempty"`
	Error         string            `json:"error,omitempty"`
	Model         string            `json:"model"`
	DurationMS    int64             `json:"durationMs"`
	InputTokens   int               `json:"inputTokens"`
	OutputTokens  int               `json:"outputTokens"`
	CostUSD       float64           `json:"costUsd"`
}

// Failed reports whether the call ended in an error.
func (e Entry) Failed() bool { return e.Error != "" }

// FromCall converts a finished gateway call into an Entry.
func FromCall(sessionID string, call gateway.Call) Entry {
	e := Entry{
		SessionID:    sessionID,
		Operation:    call.Operation,
		Mode:         call.Mode,
		Prompt:       call.Prompt,
		Model:        call.Model,
		DurationMS:   call.Duration.Milliseconds(),
		InputTokens:  call.InputTokens,
		OutputTokens: call.OutputTokens,
		CostUSD:      call.CostUSD,
	}
	if call.Result != nil {
		e.Markup = call.Result.Markup
		e.PreviewMarkup = call.Result.PreviewMarkup
		e.Explanation = call.Result.Explanation
	}
	if call.Err != nil {
		e.ErrorKind = gateway.KindOf(call.Err)
		e.Error = call.Err.Error()
	}
	return e
}
