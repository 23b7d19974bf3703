package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xkayo32/pydevbot/logger"
	"github.com/xkayo32/pydevbot/model"
)

func (s *Server) HandleCreateFlow(w http.ResponseWriter, r *http.Request) {
	var flow model.Flow
	if err := json.NewDecoder(r.Body).Decode(&flow); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid flow payload")
		return
	}
	defer r.Body.Close()
	violations, err := s.metadataService.CreateFlow(&flow)
	if err != nil {
		logger.Error("error creating flow", zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	if len(violations) > 0 {
		respondWithJSON(w, http.StatusBadRequest, map[string]any{"errors": violations})
		return
	}
	respondWithJSON(w, http.StatusCreated, flow)
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	flow, err := s.metadataService.GetFlow(vars["id"])
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, flow)
}

func (s *Server) HandleUpdateFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var flow model.Flow
	if err := json.NewDecoder(r.Body).Decode(&flow); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid flow payload")
		return
	}
	defer r.Body.Close()
	flow.Id = vars["id"]
	violations, err := s.metadataService.UpdateFlow(&flow)
	if err != nil {
		logger.Error("error updating flow", zap.String("flow", flow.Id), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	if len(violations) > 0 {
		respondWithJSON(w, http.StatusBadRequest, map[string]any{"errors": violations})
		return
	}
	respondWithJSON(w, http.StatusOK, flow)
}

func (s *Server) HandleDeleteFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.metadataService.DeleteFlow(vars["id"]); err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondOK(w, "deleted")
}

func (s *Server) HandleListFlows(w http.ResponseWriter, r *http.Request) {
	flows, err := s.metadataService.ListFlows()
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, flows)
}

func (s *Server) HandleValidateFlow(w http.ResponseWriter, r *http.Request) {
	var g model.FlowGraph
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid graph payload")
		return
	}
	defer r.Body.Close()
	violations := s.metadataService.ValidateFlow(&g)
	respondWithJSON(w, http.StatusOK, map[string]any{"valid": len(violations) == 0, "errors": violations})
}

type snapshotRequest struct {
	Notes     string `json:"notes"`
	CreatedBy string `json:"createdBy"`
}

func (s *Server) HandleSnapshotFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req snapshotRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
		defer r.Body.Close()
	}
	flow, err := s.metadataService.GetFlow(vars["id"])
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	// only structurally valid graphs are publishable
	if violations := s.metadataService.ValidateFlow(&flow.Graph); len(violations) > 0 {
		respondWithJSON(w, http.StatusBadRequest, map[string]any{"errors": violations})
		return
	}
	version, err := s.versionStore.Snapshot(vars["id"], req.Notes, req.CreatedBy)
	if err != nil {
		logger.Error("error creating flow version", zap.String("flow", vars["id"]), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, version)
}

func (s *Server) HandleListVersions(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	versions, err := s.versionStore.List(vars["id"])
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, versions)
}

func (s *Server) HandleGetVersion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	number, err := strconv.Atoi(vars["number"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid version number")
		return
	}
	version, err := s.versionStore.Get(vars["id"], number)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, version)
}

func (s *Server) HandleRestoreVersion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	number, err := strconv.Atoi(vars["number"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid version number")
		return
	}
	flow, err := s.versionStore.Restore(vars["id"], number)
	if err != nil {
		logger.Error("error restoring flow version", zap.String("flow", vars["id"]), zap.Int("version", number), zap.Error(err))
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, flow)
}
