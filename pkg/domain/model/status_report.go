package model

import (
	"fmt"
	"time"

	"github.com/secmon-lab/gyges/pkg/domain/types"
)

// StatusPage is a public page that status reports are published on
type StatusPage struct {
	ID           int64
	WorkspaceID  int64
	Title        string
	Slug         string
	CustomDomain string
	Components   []PageComponent
}

// PageComponent is a monitored part of a status page
type PageComponent struct {
	ID          string
	WorkspaceID int64
	PageID      int64
	Name        string
}

// BaseURL returns the public origin of the page. The custom domain wins; the
// slug is otherwise served under statusDomain. Empty when neither is known.
func (p *StatusPage) BaseURL(statusDomain string) string {
	switch {
	case p.CustomDomain != "":
		return "https://" + p.CustomDomain
	case p.Slug != "" && statusDomain != "":
		return fmt.Sprintf("https://%s.%s", p.Slug, statusDomain)
	default:
		return ""
	}
}

// ReportURL returns the public link of a report on the page
func (p *StatusPage) ReportURL(statusDomain string, reportID int64) string {
	base := p.BaseURL(statusDomain)
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/events/report/%d", base, reportID)
}

// StatusReport is an incident communication on a status page
type StatusReport struct {
	ID               int64
	WorkspaceID      int64
	PageID           int64
	Title            string
	Status           types.ReportStatus
	PageComponentIDs []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// StatusReportUpdate is one timestamped entry of a report
type StatusReportUpdate struct {
	ID             int64
	StatusReportID int64
	Status         types.ReportStatus
	Message        string
	Date           time.Time
}

// StatusReportMetadata is the patch applied by UpdateStatusReport. A nil Title
// keeps the title; PageComponentIDs replaces the associations only when
// ReplaceComponents is set.
type StatusReportMetadata struct {
	Title             *string
	PageComponentIDs  []string
	ReplaceComponents bool
}

// Notification is a queued announcement to status page subscribers
type Notification struct {
	ID             string
	WorkspaceID    int64
	PageID         int64
	StatusReportID int64
	ReportTitle    string
	Status         types.ReportStatus
	Message        string
	Date           time.Time
	CreatedAt      time.Time
}
