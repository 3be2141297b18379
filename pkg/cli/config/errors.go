package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound     = goerr.New("configuration file not found")
	ErrInvalidConfig      = goerr.New("invalid configuration")
	ErrDuplicateID        = goerr.New("duplicate id")
	ErrUnknownWorkspace   = goerr.New("unknown workspace")
	ErrDuplicateComponent = goerr.New("duplicate page component id")
	ErrMissingName        = goerr.New("name is required")
)

// Context keys for error values
const (
	ConfigPathKey  = "config_path"
	WorkspaceIDKey = "workspace_id"
	TeamIDKey      = "team_id"
	PageIDKey      = "page_id"
	ComponentIDKey = "component_id"
)
