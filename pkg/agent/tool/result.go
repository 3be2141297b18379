package tool

import (
	"context"

	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/gyges/pkg/domain/model"
)

// Result is what a status tool produced for one call. It is either
// NeedsConfirmation or Direct.
type Result interface {
	// Data is the payload handed back to the language model
	Data() map[string]any
	result()
}

// NeedsConfirmation carries a mutating action that must not run until the
// requesting user approves it.
type NeedsConfirmation struct {
	Action model.Action
}

// Direct is a read-only tool result
type Direct struct {
	Payload map[string]any
}

func (r NeedsConfirmation) Data() map[string]any {
	params, err := model.ActionParams(r.Action)
	if err != nil {
		params = map[string]any{}
	}
	return map[string]any{
		"needsConfirmation": true,
		"params":            params,
	}
}

func (r Direct) Data() map[string]any {
	if r.Payload == nil {
		return map[string]any{}
	}
	return r.Payload
}

func (NeedsConfirmation) result() {}
func (Direct) result()            {}

// Invoker is a gollem.Tool that also exposes its typed Result, so the
// orchestrator can tell proposals apart from plain data without inspecting maps.
type Invoker interface {
	gollem.Tool
	Invoke(ctx context.Context, args map[string]any) (Result, error)
}
