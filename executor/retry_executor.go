package executor

import (
	"sync"
	"time"

	"github.com/xkayo32/pydevbot/delivery"
	"github.com/xkayo32/pydevbot/logger"
	"github.com/xkayo32/pydevbot/persistence"
	"github.com/xkayo32/pydevbot/util"
	"go.uber.org/zap"
)

// WebhookRetryExecutor polls the due set and feeds ripe events back to
// the dispatcher. At-least-once comes from here: an event that failed
// or never left the queue is always picked up again.
type WebhookRetryExecutor struct {
	storage    persistence.WebhookStorage
	dispatcher *delivery.Dispatcher
	tw         *util.TickWorker
}

func NewWebhookRetryExecutor(storage persistence.WebhookStorage, dispatcher *delivery.Dispatcher, interval time.Duration, wg *sync.WaitGroup) *WebhookRetryExecutor {
	ex := &WebhookRetryExecutor{
		storage:    storage,
		dispatcher: dispatcher,
	}
	ex.tw = util.NewTickWorker("webhook-retry-executor", interval, ex.handle, wg)
	return ex
}

func (ex *WebhookRetryExecutor) Start() {
	ex.tw.Start()
}

func (ex *WebhookRetryExecutor) Stop() {
	ex.tw.Stop()
}

func (ex *WebhookRetryExecutor) handle() {
	ids, err := ex.storage.PollDue()
	if err != nil {
		logger.Error("error polling due webhook events", zap.Error(err))
		return
	}
	for _, id := range ids {
		ex.dispatcher.Submit(id)
	}
}
