package executor

import (
	"sync"
	"time"

	"github.com/xkayo32/pydevbot/logger"
	"github.com/xkayo32/pydevbot/persistence"
	"github.com/xkayo32/pydevbot/session"
	"github.com/xkayo32/pydevbot/util"
	"go.uber.org/zap"
)

// IdleSessionExecutor abandons sessions with no activity inside the
// configured timeout. It goes through the session service, so a reap
// waits for any in-flight submit on the same session.
type IdleSessionExecutor struct {
	sessions persistence.SessionStorage
	service  *session.Service
	timeout  time.Duration
	tw       *util.TickWorker
}

func NewIdleSessionExecutor(sessions persistence.SessionStorage, service *session.Service, timeout time.Duration, interval time.Duration, wg *sync.WaitGroup) *IdleSessionExecutor {
	ex := &IdleSessionExecutor{
		sessions: sessions,
		service:  service,
		timeout:  timeout,
	}
	ex.tw = util.NewTickWorker("idle-session-executor", interval, ex.handle, wg)
	return ex
}

func (ex *IdleSessionExecutor) Start() {
	ex.tw.Start()
}

func (ex *IdleSessionExecutor) Stop() {
	ex.tw.Stop()
}

func (ex *IdleSessionExecutor) handle() {
	ids, err := ex.sessions.IdleSessions(time.Now().Add(-ex.timeout))
	if err != nil {
		logger.Error("error listing idle sessions", zap.Error(err))
		return
	}
	for _, id := range ids {
		if _, err := ex.service.Abandon(id); err != nil {
			logger.Error("error abandoning idle session", zap.String("session", id), zap.Error(err))
			continue
		}
		logger.Info("idle session abandoned", zap.String("session", id))
	}
}
