package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xkayo32/pydevbot/logger"
	"github.com/xkayo32/pydevbot/model"
)

func (s *Server) HandleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl model.ComponentTemplate
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid template payload")
		return
	}
	defer r.Body.Close()
	if tpl.Type == "" {
		respondWithError(w, http.StatusBadRequest, "template type is required")
		return
	}
	if err := s.metadataService.SaveTemplate(tpl); err != nil {
		logger.Error("error saving component template", zap.String("type", string(tpl.Type)), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, "saved")
}

func (s *Server) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tpl, err := s.metadataService.GetTemplate(model.NodeType(vars["type"]))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tpl)
}

func (s *Server) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.metadataService.ListTemplates()
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, templates)
}

func (s *Server) HandleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.metadataService.DeleteTemplate(model.NodeType(vars["type"])); err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, "deleted")
}
