package persistence

import (
	"time"

	"github.com/xkayo32/pydevbot/model"
)

type FlowStorage interface {
	// SaveFlow persists the flow and its current graph generation as
	// one atomic write.
	SaveFlow(flow *model.Flow) error
	GetFlow(id string) (*model.Flow, error)
	DeleteFlow(id string) error
	ListFlows() ([]*model.Flow, error)
	// GetGeneration loads the graph and settings a session captured at
	// start time.
	GetGeneration(flowId string, generation int) (*model.FlowGraph, map[string]any, error)
}

type TemplateStorage interface {
	SaveTemplate(tpl model.ComponentTemplate) error
	GetTemplate(nodeType model.NodeType) (*model.ComponentTemplate, error)
	DeleteTemplate(nodeType model.NodeType) error
	ListTemplates() ([]model.ComponentTemplate, error)
}

type SessionStorage interface {
	SaveSession(session *model.Session) error
	// SaveSessionStep persists the session together with the log
	// entries and messages produced by one interpreter step, atomically.
	SaveSessionStep(session *model.Session, entries []model.ExecutionLogEntry, messages []model.Message) error
	GetSession(id string) (*model.Session, error)
	ListSessions(filter model.SessionFilter) ([]*model.Session, error)
	GetExecutionLog(sessionId string) ([]model.ExecutionLogEntry, error)
	GetMessages(sessionId string) ([]model.Message, error)
	// IdleSessions returns ids of non-terminal sessions with no
	// activity since the given instant.
	IdleSessions(since time.Time) ([]string, error)
}

type VersionStorage interface {
	SaveVersion(version *model.FlowVersion) error
	GetVersion(flowId string, versionNumber int) (*model.FlowVersion, error)
	LatestVersionNumber(flowId string) (int, error)
	ListVersions(flowId string) ([]*model.FlowVersion, error)
	DeleteVersions(flowId string) error
}

type WebhookStorage interface {
	SaveEvent(event *model.WebhookEvent) error
	GetEvent(id string) (*model.WebhookEvent, error)
	ListEvents(filter model.WebhookFilter) ([]*model.WebhookEvent, error)
	// ClaimEvent conditionally moves an event out of pending/retrying
	// so that concurrent attempts on the same event are impossible.
	// Returns false when the event is already claimed or terminal.
	ClaimEvent(id string) (*model.WebhookEvent, bool, error)
	// ScheduleRetry makes the event visible to PollDue after delay.
	ScheduleRetry(id string, delay time.Duration) error
	// PollDue pops event ids whose retry time has passed.
	PollDue() ([]string, error)
}
