package model

import "time"

type WebhookStatus string

const WEBHOOK_PENDING WebhookStatus = "pending"
const WEBHOOK_SENT WebhookStatus = "sent"
const WEBHOOK_FAILED WebhookStatus = "failed"
const WEBHOOK_RETRYING WebhookStatus = "retrying"

// WebhookEvent is one outbound delivery record with its own retry
// lifecycle. Only the delivery subsystem mutates it after creation.
type WebhookEvent struct {
	Id             string            `json:"id"`
	SessionId      string            `json:"sessionId"`
	EventType      string            `json:"eventType"`
	Url            string            `json:"url"`
	Method         string            `json:"method"`
	Headers        map[string]string `json:"headers"`
	Payload        map[string]any    `json:"payload"`
	Status         WebhookStatus     `json:"status"`
	RetryCount     int               `json:"retryCount"`
	MaxRetries     int               `json:"maxRetries"`
	NextRetryAt    *time.Time        `json:"nextRetryAt,omitempty"`
	ResponseStatus int               `json:"responseStatus,omitempty"`
	ErrorMessage   string            `json:"errorMessage,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	SentAt         *time.Time        `json:"sentAt,omitempty"`
}

type WebhookFilter struct {
	SessionId string
	Status    WebhookStatus
}
