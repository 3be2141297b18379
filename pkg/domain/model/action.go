package model

import (
	"bytes"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// ErrInvalidAction is returned when an action fails schema validation
var ErrInvalidAction = goerr.New("invalid action")

// Action is a proposed mutation awaiting human confirmation. The set of
// implementations is closed: CreateStatusReport, AddStatusReportUpdate,
// UpdateStatusReport and ResolveStatusReport.
type Action interface {
	Type() types.ActionType
	Validate() error
	sealed()
}

// CreateStatusReport creates a new report together with its first update
type CreateStatusReport struct {
	Title            string             `json:"title"`
	Status           types.ReportStatus `json:"status"`
	Message          string             `json:"message"`
	PageID           int64              `json:"pageId"`
	PageComponentIDs []string           `json:"pageComponentIds,omitempty"`
}

// AddStatusReportUpdate appends an update and moves the report to Status
type AddStatusReportUpdate struct {
	StatusReportID int64              `json:"statusReportId"`
	Status         types.ReportStatus `json:"status"`
	Message        string             `json:"message"`
}

// UpdateStatusReport patches report metadata only. A nil Title keeps the
// current title; a nil PageComponentIDs keeps the current associations while
// an empty non-nil slice clears them.
type UpdateStatusReport struct {
	StatusReportID   int64    `json:"statusReportId"`
	Title            *string  `json:"title,omitempty"`
	PageComponentIDs []string `json:"pageComponentIds"`
}

// ResolveStatusReport appends a final update with status resolved
type ResolveStatusReport struct {
	StatusReportID int64  `json:"statusReportId"`
	Message        string `json:"message"`
}

func (CreateStatusReport) Type() types.ActionType    { return types.ActionTypeCreateStatusReport }
func (AddStatusReportUpdate) Type() types.ActionType { return types.ActionTypeAddStatusReportUpdate }
func (UpdateStatusReport) Type() types.ActionType    { return types.ActionTypeUpdateStatusReport }
func (ResolveStatusReport) Type() types.ActionType   { return types.ActionTypeResolveStatusReport }

func (CreateStatusReport) sealed()    {}
func (AddStatusReportUpdate) sealed() {}
func (UpdateStatusReport) sealed()    {}
func (ResolveStatusReport) sealed()   {}

func (a CreateStatusReport) Validate() error {
	switch {
	case a.Title == "":
		return goerr.Wrap(ErrInvalidAction, "title is required")
	case !a.Status.IsValid():
		return goerr.Wrap(ErrInvalidAction, "invalid status", goerr.V("status", a.Status))
	case a.Message == "":
		return goerr.Wrap(ErrInvalidAction, "message is required")
	case a.PageID <= 0:
		return goerr.Wrap(ErrInvalidAction, "pageId is required", goerr.V("pageId", a.PageID))
	}
	return validateComponentIDs(a.PageComponentIDs)
}

func (a AddStatusReportUpdate) Validate() error {
	switch {
	case a.StatusReportID <= 0:
		return goerr.Wrap(ErrInvalidAction, "statusReportId is required", goerr.V("statusReportId", a.StatusReportID))
	case !a.Status.IsValid():
		return goerr.Wrap(ErrInvalidAction, "invalid status", goerr.V("status", a.Status))
	case a.Message == "":
		return goerr.Wrap(ErrInvalidAction, "message is required")
	}
	return nil
}

func (a UpdateStatusReport) Validate() error {
	if a.StatusReportID <= 0 {
		return goerr.Wrap(ErrInvalidAction, "statusReportId is required", goerr.V("statusReportId", a.StatusReportID))
	}
	if a.Title != nil && *a.Title == "" {
		return goerr.Wrap(ErrInvalidAction, "title must not be empty when given")
	}
	return validateComponentIDs(a.PageComponentIDs)
}

func (a ResolveStatusReport) Validate() error {
	switch {
	case a.StatusReportID <= 0:
		return goerr.Wrap(ErrInvalidAction, "statusReportId is required", goerr.V("statusReportId", a.StatusReportID))
	case a.Message == "":
		return goerr.Wrap(ErrInvalidAction, "message is required")
	}
	return nil
}

func validateComponentIDs(ids []string) error {
	for i, id := range ids {
		if id == "" {
			return goerr.Wrap(ErrInvalidAction, "empty page component id", goerr.V("index", i))
		}
	}
	return nil
}

type actionEnvelope struct {
	Type   types.ActionType `json:"type"`
	Params json.RawMessage  `json:"params"`
}

// MarshalAction encodes an action as {"type": tag, "params": {...}}
func MarshalAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, goerr.Wrap(ErrInvalidAction, "action is nil")
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	params, err := json.Marshal(a)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal action params", goerr.V("type", a.Type()))
	}

	data, err := json.Marshal(actionEnvelope{Type: a.Type(), Params: params})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal action", goerr.V("type", a.Type()))
	}
	return data, nil
}

// UnmarshalAction decodes and validates an action. Unknown tags, unknown
// params, missing required params and out-of-enum statuses are all rejected.
func UnmarshalAction(data []byte) (Action, error) {
	var env actionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, goerr.Wrap(ErrInvalidAction, "malformed action", goerr.V("error", err.Error()))
	}
	if len(env.Params) == 0 || bytes.Equal(env.Params, []byte("null")) {
		return nil, goerr.Wrap(ErrInvalidAction, "params are required", goerr.V("type", env.Type))
	}

	var a Action
	var err error
	switch env.Type {
	case types.ActionTypeCreateStatusReport:
		a, err = decodeParams[CreateStatusReport](env.Params)
	case types.ActionTypeAddStatusReportUpdate:
		a, err = decodeParams[AddStatusReportUpdate](env.Params)
	case types.ActionTypeUpdateStatusReport:
		a, err = decodeParams[UpdateStatusReport](env.Params)
	case types.ActionTypeResolveStatusReport:
		a, err = decodeParams[ResolveStatusReport](env.Params)
	default:
		return nil, goerr.Wrap(ErrInvalidAction, "unknown action type", goerr.V("type", env.Type))
	}
	if err != nil {
		return nil, err
	}

	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

func decodeParams[T Action](raw json.RawMessage) (T, error) {
	var v T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, goerr.Wrap(ErrInvalidAction, "malformed action params",
			goerr.V("type", v.Type()),
			goerr.V("error", err.Error()),
		)
	}
	return v, nil
}

// ActionParams returns the action's parameters as a generic map, the shape
// handed back to the language model as a tool result.
func ActionParams(a Action) (map[string]any, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal action params", goerr.V("type", a.Type()))
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal action params", goerr.V("type", a.Type()))
	}
	return out, nil
}
