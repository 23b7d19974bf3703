package delivery

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/xkayo32/pydevbot/config"
	"github.com/xkayo32/pydevbot/logger"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence"
	"github.com/xkayo32/pydevbot/util"
	"go.uber.org/zap"
)

// Dispatcher delivers webhook events at least once with bounded
// retries. Sends happen on a buffered worker so callers never block on
// the network.
type Dispatcher struct {
	storage persistence.WebhookStorage
	client  *http.Client
	conf    config.WebhookConfig
	worker  *util.Worker
}

func NewDispatcher(storage persistence.WebhookStorage, conf config.WebhookConfig, wg *sync.WaitGroup, capacity int) *Dispatcher {
	if capacity <= 0 {
		capacity = 512
	}
	d := &Dispatcher{
		storage: storage,
		conf:    conf,
		client: &http.Client{
			Timeout: conf.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: conf.SkipTLSVerify},
			},
		},
	}
	d.worker = util.NewWorker("webhook-dispatcher", wg, d.handle, capacity)
	return d
}

func (d *Dispatcher) Start() {
	d.worker.Start()
}

func (d *Dispatcher) Stop() {
	d.worker.Stop()
}

// Enqueue persists the event as pending and hands it to the send
// worker. When the worker queue is full the event is parked in the due
// set instead so the retry executor picks it up.
func (d *Dispatcher) Enqueue(event *model.WebhookEvent) error {
	if event.MaxRetries <= 0 {
		event.MaxRetries = d.conf.MaxRetries
	}
	if event.Status == "" {
		event.Status = model.WEBHOOK_PENDING
	}
	if err := d.storage.SaveEvent(event); err != nil {
		return err
	}
	select {
	case d.worker.Sender() <- event.Id:
	default:
		return d.storage.ScheduleRetry(event.Id, 0)
	}
	return nil
}

// Submit feeds an already persisted event id to the send worker.
func (d *Dispatcher) Submit(eventId string) {
	select {
	case d.worker.Sender() <- eventId:
	default:
		if err := d.storage.ScheduleRetry(eventId, 0); err != nil {
			logger.Error("error rescheduling webhook event", zap.String("event", eventId), zap.Error(err))
		}
	}
}

// RetryNow is the manual override: the event re-enters pending and is
// sent immediately, ignoring nextRetryAt.
func (d *Dispatcher) RetryNow(eventId string) (*model.WebhookEvent, error) {
	event, err := d.storage.GetEvent(eventId)
	if err != nil {
		return nil, err
	}
	if event.Status == model.WEBHOOK_SENT {
		return nil, fmt.Errorf("webhook event %s already delivered", eventId)
	}
	if event.RetryCount >= event.MaxRetries {
		return nil, fmt.Errorf("webhook event %s exhausted %d retries", eventId, event.MaxRetries)
	}
	event.Status = model.WEBHOOK_PENDING
	event.NextRetryAt = nil
	if err := d.storage.SaveEvent(event); err != nil {
		return nil, err
	}
	d.Submit(eventId)
	return event, nil
}

func (d *Dispatcher) handle(task util.Task) error {
	return d.Attempt(task.(string))
}

// Attempt claims the event and performs one send. Concurrent attempts
// on the same event lose the claim and return without touching it.
func (d *Dispatcher) Attempt(eventId string) error {
	event, ok, err := d.storage.ClaimEvent(eventId)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	status, sendErr := d.send(event)
	if sendErr == nil {
		now := time.Now()
		event.Status = model.WEBHOOK_SENT
		event.ResponseStatus = status
		event.SentAt = &now
		event.NextRetryAt = nil
		event.ErrorMessage = ""
		logger.Info("webhook delivered", zap.String("event", event.Id), zap.String("url", event.Url), zap.Int("status", status))
		return d.storage.SaveEvent(event)
	}
	return d.recordFailure(event, status, sendErr)
}

func (d *Dispatcher) send(event *model.WebhookEvent) (int, error) {
	body, err := json.Marshal(event.Payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequest(event.Method, event.Url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range event.Headers {
		req.Header.Set(k, v)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func (d *Dispatcher) recordFailure(event *model.WebhookEvent, status int, cause error) error {
	event.RetryCount++
	event.ResponseStatus = status
	event.ErrorMessage = cause.Error()
	if event.RetryCount >= event.MaxRetries {
		event.Status = model.WEBHOOK_FAILED
		event.NextRetryAt = nil
		logger.Error("webhook retries exhausted", zap.String("event", event.Id), zap.String("url", event.Url), zap.Int("maxRetries", event.MaxRetries), zap.Error(cause))
		return d.storage.SaveEvent(event)
	}
	delay := d.retryDelay(event.RetryCount)
	next := time.Now().Add(delay)
	event.Status = model.WEBHOOK_RETRYING
	event.NextRetryAt = &next
	logger.Warn("webhook delivery failed, retrying", zap.String("event", event.Id), zap.String("url", event.Url), zap.Int("retry", event.RetryCount), zap.Duration("after", delay), zap.Error(cause))
	if err := d.storage.SaveEvent(event); err != nil {
		return err
	}
	return d.storage.ScheduleRetry(event.Id, delay)
}

func (d *Dispatcher) retryDelay(retryCount int) time.Duration {
	switch d.conf.RetryPolicy {
	case config.RETRY_POLICY_BACKOFF:
		return d.conf.RetryDelay * time.Duration(retryCount)
	default:
		return d.conf.RetryDelay
	}
}
