package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"serverwatch/internal/domain"
	"serverwatch/internal/scheduler"
)

type serverPayload struct {
	Domain         string `json:"domain"`
	ExpectedStatus int    `json:"expectedStatusCode"`
}

func (p serverPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Domain, validation.Required, validation.Length(1, 2048)),
		validation.Field(&p.ExpectedStatus, validation.Min(100), validation.Max(599)),
	)
}

type autoCheckPayload struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"intervalMinutes"`
}

func (p autoCheckPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.IntervalMinutes,
			validation.Min(scheduler.MinIntervalMinutes),
			validation.Max(scheduler.MaxIntervalMinutes)),
	)
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.reg.SnapshotAll())
}

func (s *Server) handleAddServer(w http.ResponseWriter, r *http.Request) {
	var p serverPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.ExpectedStatus == 0 {
		p.ExpectedStatus = http.StatusOK
	}

	srv := s.reg.Add(r.Context(), p.Domain, p.ExpectedStatus)
	s.log.Info("server_added",
		zap.String("server_id", string(srv.ID)),
		zap.String("domain", srv.Domain),
	)
	writeJSON(w, http.StatusCreated, srv)
}

func (s *Server) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	id := domain.ServerID(chi.URLParam(r, "id"))
	var p serverPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if p.ExpectedStatus == 0 {
		p.ExpectedStatus = http.StatusOK
	}

	if !s.reg.Update(r.Context(), id, p.Domain, p.ExpectedStatus) {
		writeError(w, http.StatusNotFound, "unknown server id")
		return
	}
	srv, _ := s.reg.Get(id)
	writeJSON(w, http.StatusOK, srv)
}

type removePayload struct {
	IDs []domain.ServerID `json:"ids"`
}

func (p removePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.IDs, validation.Required),
	)
}

func (s *Server) handleRemoveServers(w http.ResponseWriter, r *http.Request) {
	var p removePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.reg.Remove(r.Context(), p.IDs)
	s.log.Info("servers_removed", zap.Int("count", len(p.IDs)))
	w.WriteHeader(http.StatusNoContent)
}

type checkResponse struct {
	Result     domain.CheckResult `json:"result"`
	Diagnostic string             `json:"diagnostic,omitempty"`
}

func (s *Server) handleCheckServer(w http.ResponseWriter, r *http.Request) {
	id := domain.ServerID(chi.URLParam(r, "id"))
	res, diag, ok := s.sched.CheckOne(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown server id")
		return
	}
	writeJSON(w, http.StatusOK, checkResponse{Result: res, Diagnostic: diag})
}

func (s *Server) handleCheckAll(w http.ResponseWriter, r *http.Request) {
	// a sweep over many servers can outlive the request; run it detached
	go s.sched.CheckAll(context.Background())
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleGetAutoCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.AutoCheckConfig())
}

func (s *Server) handlePutAutoCheck(w http.ResponseWriter, r *http.Request) {
	var p autoCheckPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if p.IntervalMinutes == 0 {
		p.IntervalMinutes = scheduler.DefaultIntervalMinutes
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg := s.sched.Reconfigure(r.Context(), p.Enabled, p.IntervalMinutes)
	writeJSON(w, http.StatusOK, cfg)
}
