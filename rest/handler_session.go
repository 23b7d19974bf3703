package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xkayo32/pydevbot/logger"
	"github.com/xkayo32/pydevbot/model"
)

type sessionResponse struct {
	Session  *model.Session  `json:"session"`
	Messages []model.Message `json:"messages"`
}

func (s *Server) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	var req model.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid session payload")
		return
	}
	defer r.Body.Close()
	if req.FlowId == "" {
		respondWithError(w, http.StatusBadRequest, "flowId is required")
		return
	}
	session, messages, err := s.sessionService.Start(req)
	if err != nil {
		logger.Error("error starting session", zap.String("flow", req.FlowId), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, sessionResponse{Session: session, Messages: messages})
}

func (s *Server) HandleSubmitInput(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req model.SubmitInputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid input payload")
		return
	}
	defer r.Body.Close()
	session, messages, err := s.sessionService.SubmitInput(vars["id"], req.Value)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sessionResponse{Session: session, Messages: messages})
}

func (s *Server) HandleAdvanceSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	session, messages, err := s.sessionService.Advance(vars["id"])
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sessionResponse{Session: session, Messages: messages})
}

func (s *Server) HandleAbandonSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	session, err := s.sessionService.Abandon(vars["id"])
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, session)
}

func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	detail, err := s.sessionService.Get(vars["id"])
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

func (s *Server) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	filter := model.SessionFilter{
		FlowId: r.URL.Query().Get("flowId"),
		UserId: r.URL.Query().Get("userId"),
		Status: model.SessionStatus(r.URL.Query().Get("status")),
	}
	sessions, err := s.sessionService.List(filter)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sessions)
}
