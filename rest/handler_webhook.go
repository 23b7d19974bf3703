package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xkayo32/pydevbot/logger"
	"github.com/xkayo32/pydevbot/model"
)

func (s *Server) HandleListWebhooks(w http.ResponseWriter, r *http.Request) {
	filter := model.WebhookFilter{
		SessionId: r.URL.Query().Get("sessionId"),
		Status:    model.WebhookStatus(r.URL.Query().Get("status")),
	}
	events, err := s.webhooks.ListEvents(filter)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, events)
}

func (s *Server) HandleGetWebhook(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	event, err := s.webhooks.GetEvent(vars["id"])
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}

func (s *Server) HandleRetryWebhook(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	event, err := s.dispatcher.RetryNow(vars["id"])
	if err != nil {
		logger.Error("error retrying webhook event", zap.String("event", vars["id"]), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}
