package redis

import "github.com/xkayo32/pydevbot/persistence"

// Storage bundles the redis DAOs over one shared client.
type Storage struct {
	Flows     persistence.FlowStorage
	Templates persistence.TemplateStorage
	Sessions  persistence.SessionStorage
	Versions  persistence.VersionStorage
	Webhooks  persistence.WebhookStorage
}

func NewStorage(conf Config) *Storage {
	base := newBaseDao(conf)
	return &Storage{
		Flows:     NewRedisFlowDao(*base),
		Templates: NewRedisTemplateDao(*base),
		Sessions:  NewRedisSessionDao(*base),
		Versions:  NewRedisVersionDao(*base),
		Webhooks:  NewRedisWebhookDao(*base),
	}
}
