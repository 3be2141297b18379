package memory

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/gyges/pkg/domain/interfaces"
)

// ErrNotFound is returned by write operations that target a missing entity
var ErrNotFound = goerr.New("not found")

type Memory struct {
	workspace    *workspaceRepository
	integration  *integrationRepository
	statusPage   *statusPageRepository
	statusReport *statusReportRepository
	notification *notificationRepository
	kv           *KV
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		workspace:    newWorkspaceRepository(),
		integration:  newIntegrationRepository(),
		statusPage:   newStatusPageRepository(),
		statusReport: newStatusReportRepository(),
		notification: newNotificationRepository(),
		kv:           NewKV(),
	}
}

func (m *Memory) Workspace() interfaces.WorkspaceRepository {
	return m.workspace
}

func (m *Memory) Integration() interfaces.IntegrationRepository {
	return m.integration
}

func (m *Memory) StatusPage() interfaces.StatusPageRepository {
	return m.statusPage
}

func (m *Memory) StatusReport() interfaces.StatusReportRepository {
	return m.statusReport
}

func (m *Memory) Notification() interfaces.NotificationRepository {
	return m.notification
}

func (m *Memory) KV() interfaces.KeyValueStore {
	return m.kv
}

func (m *Memory) Close() error {
	return nil
}
