package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	api "github.com/xkayo32/pydevbot/api/v1"
	"github.com/xkayo32/pydevbot/delivery"
	"github.com/xkayo32/pydevbot/logger"
	"github.com/xkayo32/pydevbot/metadata"
	"github.com/xkayo32/pydevbot/persistence"
	"github.com/xkayo32/pydevbot/session"
	"github.com/xkayo32/pydevbot/version"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port            int
	metadataService *metadata.Service
	sessionService  *session.Service
	versionStore    *version.Store
	dispatcher      *delivery.Dispatcher
	webhooks        persistence.WebhookStorage
}

func NewServer(httpPort int, metadataService *metadata.Service, sessionService *session.Service, versionStore *version.Store, dispatcher *delivery.Dispatcher, webhooks persistence.WebhookStorage) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr: fmt.Sprintf(":%d", httpPort),
		},
		metadataService: metadataService,
		sessionService:  sessionService,
		versionStore:    versionStore,
		dispatcher:      dispatcher,
		webhooks:        webhooks,
		Port:            httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc("/flow", s.HandleCreateFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow", s.HandleListFlows).Methods(http.MethodGet)
	router.HandleFunc("/flow/validate", s.HandleValidateFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow/{id}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/flow/{id}", s.HandleUpdateFlow).Methods(http.MethodPut)
	router.HandleFunc("/flow/{id}", s.HandleDeleteFlow).Methods(http.MethodDelete)
	router.HandleFunc("/flow/{id}/version", s.HandleSnapshotFlow).Methods(http.MethodPost)
	router.HandleFunc("/flow/{id}/version", s.HandleListVersions).Methods(http.MethodGet)
	router.HandleFunc("/flow/{id}/version/{number}", s.HandleGetVersion).Methods(http.MethodGet)
	router.HandleFunc("/flow/{id}/version/{number}/restore", s.HandleRestoreVersion).Methods(http.MethodPost)
	router.HandleFunc("/template", s.HandleSaveTemplate).Methods(http.MethodPost)
	router.HandleFunc("/template", s.HandleListTemplates).Methods(http.MethodGet)
	router.HandleFunc("/template/{type}", s.HandleGetTemplate).Methods(http.MethodGet)
	router.HandleFunc("/template/{type}", s.HandleDeleteTemplate).Methods(http.MethodDelete)
	router.HandleFunc("/session", s.HandleStartSession).Methods(http.MethodPost)
	router.HandleFunc("/session", s.HandleListSessions).Methods(http.MethodGet)
	router.HandleFunc("/session/{id}", s.HandleGetSession).Methods(http.MethodGet)
	router.HandleFunc("/session/{id}/input", s.HandleSubmitInput).Methods(http.MethodPost)
	router.HandleFunc("/session/{id}/advance", s.HandleAdvanceSession).Methods(http.MethodPost)
	router.HandleFunc("/session/{id}/abandon", s.HandleAbandonSession).Methods(http.MethodPost)
	router.HandleFunc("/webhook", s.HandleListWebhooks).Methods(http.MethodGet)
	router.HandleFunc("/webhook/{id}", s.HandleGetWebhook).Methods(http.MethodGet)
	router.HandleFunc("/webhook/{id}/retry", s.HandleRetryWebhook).Methods(http.MethodPost)
	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("startting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message string) {

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(200)
	res, _ := json.Marshal(map[string]string{"message": message})
	w.Write(res)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithDomainError maps service errors onto http status codes.
func respondWithDomainError(w http.ResponseWriter, err error) {
	switch {
	case persistence.IsNotFound(err):
		respondWithError(w, http.StatusNotFound, err.Error())
	case api.IsConflict(err):
		respondWithError(w, http.StatusConflict, err.Error())
	case api.IsInvalidSessionState(err):
		respondWithError(w, http.StatusUnprocessableEntity, err.Error())
	case api.IsTemplateNotFound(err):
		respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
