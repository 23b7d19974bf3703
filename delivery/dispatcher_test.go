package delivery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xkayo32/pydevbot/config"
	"github.com/xkayo32/pydevbot/model"
	"github.com/xkayo32/pydevbot/persistence/inmem"
)

func newTestDispatcher(t *testing.T, policy config.RetryPolicy) (*Dispatcher, *inmem.Storage) {
	var wg sync.WaitGroup
	conf := config.WebhookConfig{
		Timeout:     2 * time.Second,
		RetryDelay:  10 * time.Millisecond,
		RetryPolicy: policy,
		MaxRetries:  3,
	}
	storage := inmem.NewStorage()
	return NewDispatcher(storage, conf, &wg, 16), storage
}

func newTestEvent(url string) *model.WebhookEvent {
	return &model.WebhookEvent{
		Id:        uuid.New().String(),
		SessionId: "s1",
		EventType: "integration",
		Url:       url,
		Method:    "POST",
		Payload:   map[string]any{"name": "ana"},
		Status:    model.WEBHOOK_PENDING,
		CreatedAt: time.Now(),
	}
}

func TestDispatcher(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T){
		"successful delivery marks sent":    testDeliverySuccess,
		"failure schedules retry":           testDeliveryRetry,
		"retries exhaust into failed":       testRetriesExhausted,
		"claim blocks concurrent attempt":   testClaimBlocks,
		"backoff grows delay with attempts": testBackoffDelay,
		"manual retry re-enters pending":    testManualRetry,
		"manual retry rejects sent event":   testManualRetrySent,
		"enqueue defaults max retries":      testEnqueueDefaults,
	} {
		t.Run(scenario, fn)
	}
}

func testDeliverySuccess(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, storage := newTestDispatcher(t, config.RETRY_POLICY_FIXED)
	event := newTestEvent(srv.URL)
	require.NoError(t, storage.SaveEvent(event))
	require.NoError(t, d.Attempt(event.Id))

	stored, err := storage.GetEvent(event.Id)
	require.NoError(t, err)
	require.Equal(t, model.WEBHOOK_SENT, stored.Status)
	require.Equal(t, http.StatusOK, stored.ResponseStatus)
	require.NotNil(t, stored.SentAt)
	require.Equal(t, 0, stored.RetryCount)
	require.Equal(t, "ana", got["name"])
}

func testDeliveryRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d, storage := newTestDispatcher(t, config.RETRY_POLICY_FIXED)
	event := newTestEvent(srv.URL)
	require.NoError(t, storage.SaveEvent(event))
	require.NoError(t, d.Attempt(event.Id))

	stored, err := storage.GetEvent(event.Id)
	require.NoError(t, err)
	require.Equal(t, model.WEBHOOK_RETRYING, stored.Status)
	require.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.NextRetryAt)
	require.NotEmpty(t, stored.ErrorMessage)

	time.Sleep(20 * time.Millisecond)
	due, err := storage.PollDue()
	require.NoError(t, err)
	require.Contains(t, due, event.Id)
}

func testRetriesExhausted(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	d, storage := newTestDispatcher(t, config.RETRY_POLICY_FIXED)
	event := newTestEvent(srv.URL)
	require.NoError(t, storage.SaveEvent(event))
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Attempt(event.Id))
	}

	stored, err := storage.GetEvent(event.Id)
	require.NoError(t, err)
	require.Equal(t, model.WEBHOOK_FAILED, stored.Status)
	require.Equal(t, 3, stored.RetryCount)
	require.Equal(t, 3, attempts)

	// further attempts never reach the endpoint
	require.NoError(t, d.Attempt(event.Id))
	require.Equal(t, 3, attempts)
}

func testClaimBlocks(t *testing.T) {
	d, storage := newTestDispatcher(t, config.RETRY_POLICY_FIXED)
	event := newTestEvent("http://unreachable.local")
	require.NoError(t, storage.SaveEvent(event))

	claimed, ok, err := storage.ClaimEvent(event.Id)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, claimed)

	// the dispatcher loses the claim and leaves the event alone
	require.NoError(t, d.Attempt(event.Id))
	stored, err := storage.GetEvent(event.Id)
	require.NoError(t, err)
	require.Equal(t, model.WEBHOOK_PENDING, stored.Status)
	require.Equal(t, 0, stored.RetryCount)
}

func testBackoffDelay(t *testing.T) {
	d, _ := newTestDispatcher(t, config.RETRY_POLICY_BACKOFF)
	require.Equal(t, 10*time.Millisecond, d.retryDelay(1))
	require.Equal(t, 30*time.Millisecond, d.retryDelay(3))

	fixed, _ := newTestDispatcher(t, config.RETRY_POLICY_FIXED)
	require.Equal(t, 10*time.Millisecond, fixed.retryDelay(1))
	require.Equal(t, 10*time.Millisecond, fixed.retryDelay(3))
}

func testManualRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d, storage := newTestDispatcher(t, config.RETRY_POLICY_FIXED)
	event := newTestEvent(srv.URL)
	require.NoError(t, storage.SaveEvent(event))
	require.NoError(t, d.Attempt(event.Id))

	stored, err := storage.GetEvent(event.Id)
	require.NoError(t, err)
	require.Equal(t, model.WEBHOOK_RETRYING, stored.Status)

	retried, err := d.RetryNow(event.Id)
	require.NoError(t, err)
	require.Equal(t, model.WEBHOOK_PENDING, retried.Status)
	require.Nil(t, retried.NextRetryAt)
	require.Equal(t, 1, retried.RetryCount)
}

func testManualRetrySent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d, storage := newTestDispatcher(t, config.RETRY_POLICY_FIXED)
	event := newTestEvent(srv.URL)
	require.NoError(t, storage.SaveEvent(event))
	require.NoError(t, d.Attempt(event.Id))

	_, err := d.RetryNow(event.Id)
	require.Error(t, err)
}

func testEnqueueDefaults(t *testing.T) {
	d, storage := newTestDispatcher(t, config.RETRY_POLICY_FIXED)
	d.Start()
	defer d.Stop()

	event := newTestEvent("http://crm.local/hook")
	event.MaxRetries = 0
	require.NoError(t, d.Enqueue(event))
	require.Equal(t, 3, event.MaxRetries)

	stored, err := storage.GetEvent(event.Id)
	require.NoError(t, err)
	require.Equal(t, 3, stored.MaxRetries)
}
