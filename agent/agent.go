package agent

import (
	"sync"

	"github.com/xkayo32/pydevbot/analytics"
	"github.com/xkayo32/pydevbot/config"
	"github.com/xkayo32/pydevbot/delivery"
	"github.com/xkayo32/pydevbot/executor"
	"github.com/xkayo32/pydevbot/interpreter"
	"github.com/xkayo32/pydevbot/logger"
	"github.com/xkayo32/pydevbot/metadata"
	"github.com/xkayo32/pydevbot/persistence"
	"github.com/xkayo32/pydevbot/persistence/inmem"
	"github.com/xkayo32/pydevbot/persistence/redis"
	"github.com/xkayo32/pydevbot/registry"
	"github.com/xkayo32/pydevbot/rest"
	"github.com/xkayo32/pydevbot/session"
	"github.com/xkayo32/pydevbot/version"
)

type storageSet struct {
	flows     persistence.FlowStorage
	templates persistence.TemplateStorage
	sessions  persistence.SessionStorage
	versions  persistence.VersionStorage
	webhooks  persistence.WebhookStorage
}

type Agent struct {
	Config          config.Config
	storage         storageSet
	registry        registry.Registry
	metadataService *metadata.Service
	sessionService  *session.Service
	versionStore    *version.Store
	dispatcher      *delivery.Dispatcher
	retryExecutor   *executor.WebhookRetryExecutor
	idleExecutor    *executor.IdleSessionExecutor
	httpServer      *rest.Server
	shutdown        bool
	shutdowns       chan struct{}
	shutdownLock    sync.Mutex
	wg              sync.WaitGroup
}

func New(config config.Config) (*Agent, error) {
	a := &Agent{
		Config:    config,
		shutdowns: make(chan struct{}),
	}
	setup := []func() error{
		a.setupAnalytics,
		a.setupStorage,
		a.setupRegistry,
		a.setupDispatcher,
		a.setupServices,
		a.setupExecutors,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupAnalytics() error {
	return analytics.InitDataCollector(a.Config.AnalyticsConfig)
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		rs := redis.NewStorage(redis.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
		})
		a.storage = storageSet{
			flows:     rs.Flows,
			templates: rs.Templates,
			sessions:  rs.Sessions,
			versions:  rs.Versions,
			webhooks:  rs.Webhooks,
		}
	default:
		ms := inmem.NewStorage()
		a.storage = storageSet{
			flows:     ms,
			templates: ms,
			sessions:  ms,
			versions:  ms,
			webhooks:  ms,
		}
	}
	return nil
}

// setupRegistry seeds the builtin component contracts so a fresh
// install can run flows immediately; existing templates are kept.
func (a *Agent) setupRegistry() error {
	a.registry = registry.NewRegistry(a.storage.templates)
	for _, tpl := range registry.BuiltinTemplates() {
		_, err := a.storage.templates.GetTemplate(tpl.Type)
		if err == nil {
			continue
		}
		if !persistence.IsNotFound(err) {
			return err
		}
		if err := a.storage.templates.SaveTemplate(tpl); err != nil {
			return err
		}
	}
	return nil
}

func (a *Agent) setupDispatcher() error {
	a.dispatcher = delivery.NewDispatcher(a.storage.webhooks, a.Config.Webhook, &a.wg, a.Config.DispatcherCapacity)
	return nil
}

func (a *Agent) setupServices() error {
	interp := interpreter.New(a.registry, a.dispatcher, a.Config.MaxStepsPerAdvance)
	a.sessionService = session.NewService(a.storage.flows, a.storage.sessions, interp)
	a.metadataService = metadata.NewService(a.storage.flows, a.storage.templates, a.storage.versions, a.registry)
	a.versionStore = version.NewStore(a.storage.flows, a.storage.versions)
	return nil
}

func (a *Agent) setupExecutors() error {
	a.retryExecutor = executor.NewWebhookRetryExecutor(a.storage.webhooks, a.dispatcher, a.Config.RetryPollInterval, &a.wg)
	a.idleExecutor = executor.NewIdleSessionExecutor(a.storage.sessions, a.sessionService, a.Config.SessionIdleTimeout, a.Config.IdleCheckInterval, &a.wg)
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.metadataService, a.sessionService, a.versionStore, a.dispatcher, a.storage.webhooks)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	a.dispatcher.Start()
	a.retryExecutor.Start()
	a.idleExecutor.Start()
	go func() {
		if err := a.httpServer.Start(); err != nil {
			_ = a.Shutdown()
			panic(err)
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true
	close(a.shutdowns)

	shutdown := []func() error{
		a.httpServer.Stop,
		func() error {
			a.idleExecutor.Stop()
			return nil
		},
		func() error {
			a.retryExecutor.Stop()
			return nil
		},
		func() error {
			a.dispatcher.Stop()
			return nil
		},
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	logger.Info("waiting for all services to shutdown...")
	a.wg.Wait()
	return nil
}
