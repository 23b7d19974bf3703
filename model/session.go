package model

import "time"

type SessionStatus string

const SESSION_ACTIVE SessionStatus = "active"
const SESSION_WAITING SessionStatus = "waiting"
const SESSION_COMPLETED SessionStatus = "completed"
const SESSION_ABANDONED SessionStatus = "abandoned"
const SESSION_ERROR SessionStatus = "error"

func (s SessionStatus) Terminal() bool {
	return s == SESSION_COMPLETED || s == SESSION_ABANDONED || s == SESSION_ERROR
}

// Session is one user's traversal of a flow graph. Generation pins the
// graph the session was started against; edits and restores of the
// flow never change it.
type Session struct {
	Id            string         `json:"id"`
	FlowId        string         `json:"flowId"`
	Generation    int            `json:"generation"`
	UserId        string         `json:"userId"`
	CurrentNodeId string         `json:"currentNodeId"`
	Variables     map[string]any `json:"variables"`
	Status        SessionStatus  `json:"status"`
	MessageCount  int            `json:"messageCount"`
	StartTime     time.Time      `json:"startTime"`
	LastActivity  time.Time      `json:"lastActivity"`
	EndTime       *time.Time     `json:"endTime,omitempty"`
}

type LogStatus string

const LOG_STARTED LogStatus = "started"
const LOG_COMPLETED LogStatus = "completed"
const LOG_FAILED LogStatus = "failed"
const LOG_SKIPPED LogStatus = "skipped"

// ExecutionLogEntry is one append-only audit record per node visited.
type ExecutionLogEntry struct {
	Id              string         `json:"id"`
	SessionId       string         `json:"sessionId"`
	NodeId          string         `json:"nodeId"`
	ComponentType   NodeType       `json:"componentType"`
	Status          LogStatus      `json:"status"`
	InputData       map[string]any `json:"inputData"`
	OutputData      map[string]any `json:"outputData"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	ExecutionTimeMs int64          `json:"executionTimeMs"`
	StartedAt       time.Time      `json:"startedAt"`
	CompletedAt     time.Time      `json:"completedAt"`
}

type MessageType string

const MESSAGE_BOT MessageType = "bot"
const MESSAGE_USER MessageType = "user"
const MESSAGE_SYSTEM MessageType = "system"

type Message struct {
	Id        string      `json:"id"`
	SessionId string      `json:"sessionId"`
	NodeId    string      `json:"nodeId,omitempty"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	SentAt    time.Time   `json:"sentAt"`
}

type StartSessionRequest struct {
	FlowId      string         `json:"flowId"`
	UserId      string         `json:"userId"`
	InitialData map[string]any `json:"initialData"`
}

type SubmitInputRequest struct {
	Value string `json:"value"`
}

type SessionFilter struct {
	FlowId string
	UserId string
	Status SessionStatus
}
