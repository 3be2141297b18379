package types

import (
	"fmt"
	"strings"
)

// ReportStatus is the lifecycle status of a status report and of each of its
// updates. The progression investigating -> identified -> monitoring ->
// resolved is advisory; nothing here enforces ordering.
type ReportStatus string

const (
	ReportStatusInvestigating ReportStatus = "investigating"
	ReportStatusIdentified    ReportStatus = "identified"
	ReportStatusMonitoring    ReportStatus = "monitoring"
	ReportStatusResolved      ReportStatus = "resolved"
)

// AllReportStatuses returns all valid report statuses in progression order
func AllReportStatuses() []ReportStatus {
	return []ReportStatus{
		ReportStatusInvestigating,
		ReportStatusIdentified,
		ReportStatusMonitoring,
		ReportStatusResolved,
	}
}

// IsValid checks if the report status is valid
func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportStatusInvestigating,
		ReportStatusIdentified,
		ReportStatusMonitoring,
		ReportStatusResolved:
		return true
	default:
		return false
	}
}

func (s ReportStatus) String() string {
	return string(s)
}

// Label returns the capitalised form shown to chat users, e.g. "Investigating"
func (s ReportStatus) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// ParseReportStatus parses a string into a ReportStatus
func ParseReportStatus(s string) (ReportStatus, error) {
	status := ReportStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid report status: %s", s)
	}
	return status, nil
}

// ReportStatusStrings returns the valid statuses as strings, for tool schemas
func ReportStatusStrings() []string {
	all := AllReportStatuses()
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.String()
	}
	return out
}
