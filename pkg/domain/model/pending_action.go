package model

import (
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ErrInvalidPendingAction is returned when a stored record fails validation
var ErrInvalidPendingAction = goerr.New("invalid pending action")

// PendingAction is a proposed action waiting for its initiator to approve or
// cancel it. It lives only in the pending action store and expires with it.
type PendingAction struct {
	ID          string
	WorkspaceID int64
	// Limits is the workspace plan snapshot taken at proposal time
	Limits Limits
	// BotToken is the credential that posted the confirmation message
	BotToken  string `masq:"secret"`
	ChannelID string
	ThreadTS  string
	MessageTS string
	UserID    string
	CreatedAt time.Time
	Action    Action
}

type pendingActionRecord struct {
	ID          string          `json:"id"`
	WorkspaceID int64           `json:"workspaceId"`
	Limits      *Limits         `json:"limits"`
	BotToken    string          `json:"botToken,omitempty"`
	ChannelID   string          `json:"channelId"`
	ThreadTS    string          `json:"threadTs"`
	MessageTS   string          `json:"messageTs"`
	UserID      string          `json:"userId"`
	CreatedAt   int64           `json:"createdAt"`
	Action      json.RawMessage `json:"action"`
}

// Validate checks every field of the record including the action variant
func (p *PendingAction) Validate() error {
	switch {
	case p.ID == "":
		return goerr.Wrap(ErrInvalidPendingAction, "id is required")
	case p.WorkspaceID <= 0:
		return goerr.Wrap(ErrInvalidPendingAction, "workspaceId is required", goerr.V("id", p.ID))
	case p.ChannelID == "":
		return goerr.Wrap(ErrInvalidPendingAction, "channelId is required", goerr.V("id", p.ID))
	case p.ThreadTS == "":
		return goerr.Wrap(ErrInvalidPendingAction, "threadTs is required", goerr.V("id", p.ID))
	case p.MessageTS == "":
		return goerr.Wrap(ErrInvalidPendingAction, "messageTs is required", goerr.V("id", p.ID))
	case p.UserID == "":
		return goerr.Wrap(ErrInvalidPendingAction, "userId is required", goerr.V("id", p.ID))
	case p.CreatedAt.IsZero():
		return goerr.Wrap(ErrInvalidPendingAction, "createdAt is required", goerr.V("id", p.ID))
	case p.Action == nil:
		return goerr.Wrap(ErrInvalidPendingAction, "action is required", goerr.V("id", p.ID))
	}

	if err := p.Action.Validate(); err != nil {
		return goerr.Wrap(err, "invalid pending action payload", goerr.V("id", p.ID))
	}
	return nil
}

// MarshalPendingAction encodes a validated record for the key/value store.
// createdAt is written as unix milliseconds.
func MarshalPendingAction(p *PendingAction) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	action, err := MarshalAction(p.Action)
	if err != nil {
		return nil, err
	}

	limits := p.Limits
	data, err := json.Marshal(pendingActionRecord{
		ID:          p.ID,
		WorkspaceID: p.WorkspaceID,
		Limits:      &limits,
		BotToken:    p.BotToken,
		ChannelID:   p.ChannelID,
		ThreadTS:    p.ThreadTS,
		MessageTS:   p.MessageTS,
		UserID:      p.UserID,
		CreatedAt:   p.CreatedAt.UnixMilli(),
		Action:      action,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal pending action", goerr.V("id", p.ID))
	}
	return data, nil
}

// ParsePendingAction decodes and validates a stored record. A record that
// fails any check is rejected as a whole; callers must treat the error as
// absence, never as a partially trusted value.
func ParsePendingAction(data []byte) (*PendingAction, error) {
	var rec pendingActionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, goerr.Wrap(ErrInvalidPendingAction, "malformed pending action", goerr.V("error", err.Error()))
	}
	if rec.Limits == nil {
		return nil, goerr.Wrap(ErrInvalidPendingAction, "limits are required", goerr.V("id", rec.ID))
	}
	if rec.CreatedAt <= 0 {
		return nil, goerr.Wrap(ErrInvalidPendingAction, "createdAt is required", goerr.V("id", rec.ID))
	}

	action, err := UnmarshalAction(rec.Action)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid pending action payload", goerr.V("id", rec.ID))
	}

	p := &PendingAction{
		ID:          rec.ID,
		WorkspaceID: rec.WorkspaceID,
		Limits:      *rec.Limits,
		BotToken:    rec.BotToken,
		ChannelID:   rec.ChannelID,
		ThreadTS:    rec.ThreadTS,
		MessageTS:   rec.MessageTS,
		UserID:      rec.UserID,
		CreatedAt:   time.UnixMilli(rec.CreatedAt).UTC(),
		Action:      action,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
