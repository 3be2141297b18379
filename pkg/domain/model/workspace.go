package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ErrWorkspaceNotFound is returned when no workspace matches a lookup
var ErrWorkspaceNotFound = goerr.New("workspace not found")

// Limits is the subset of a workspace plan consulted by the chat pipeline
type Limits struct {
	StatusSubscribers    bool `json:"statusSubscribers"`
	NotificationChannels int  `json:"notificationChannels"`
}

// Workspace is a tenant
type Workspace struct {
	ID     int64
	Name   string
	Slug   string
	Limits Limits
}

// SlackIntegration binds a Slack team to a workspace
type SlackIntegration struct {
	TeamID      string
	WorkspaceID int64
	BotToken    string `masq:"secret"`
	BotUserID   string
	InstalledAt time.Time
}
