// Package server exposes the memory tiers over an HTTP JSON API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/memory"
	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/model"
)

// Server routes API requests to the memory managers.
type Server struct {
	stm       *memory.ShortTermManager
	ltm       *memory.LongTermManager
	lifecycle *memory.Lifecycle
	world     *memory.WorldState
	log       *zap.Logger
}

func New(stm *memory.ShortTermManager, ltm *memory.LongTermManager, lifecycle *memory.Lifecycle, world *memory.WorldState, log *zap.Logger) *Server {
	return &Server{stm: stm, ltm: ltm, lifecycle: lifecycle, world: world, log: log}
}

// Handler returns the request multiplexer for the full API surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /memory/short-term", s.handleShortTermCreate)
	mux.HandleFunc("GET /memory/short-term/{id}", s.handleShortTermGet)
	mux.HandleFunc("PATCH /memory/short-term/{id}", s.handleShortTermUpdate)
	mux.HandleFunc("DELETE /memory/short-term/{id}", s.handleShortTermDelete)
	mux.HandleFunc("POST /memory/short-term/{id}/lock", s.handleShortTermLock)
	mux.HandleFunc("POST /memory/short-term/{id}/unlock", s.handleShortTermUnlock)
	mux.HandleFunc("POST /memory/short-term/{id}/ttl", s.handleShortTermTTL)
	mux.HandleFunc("POST /memory/short-term/search", s.handleShortTermSearch)

	mux.HandleFunc("POST /memory/long-term", s.handleLongTermCreate)
	mux.HandleFunc("GET /memory/long-term/{id}", s.handleLongTermGet)
	mux.HandleFunc("PATCH /memory/long-term/{id}", s.handleLongTermUpdate)
	mux.HandleFunc("DELETE /memory/long-term/{id}", s.handleLongTermDelete)
	mux.HandleFunc("POST /memory/long-term/{id}/retrieve", s.handleLongTermRetrieve)
	mux.HandleFunc("POST /memory/long-term/search", s.handleLongTermSearch)

	mux.HandleFunc("GET /world-state", s.handleWorldStateGet)
	mux.HandleFunc("POST /world-state/update", s.handleWorldStateUpdate)
	mux.HandleFunc("GET /world-state/version/{version}", s.handleWorldStateVersion)
	mux.HandleFunc("POST /world-state/rollback", s.handleWorldStateRollback)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ttlFromSeconds maps wire TTL intent to a duration: nil means the manager
// default, -1 means no expiry, a positive value is seconds.
func ttlFromSeconds(secs *int64) (time.Duration, error) {
	if secs == nil {
		return memory.TTLDefault, nil
	}
	switch {
	case *secs == -1:
		return memory.TTLNone, nil
	case *secs > 0:
		return time.Duration(*secs) * time.Second, nil
	default:
		return 0, fmt.Errorf("ttl_seconds must be positive or -1, got %d", *secs)
	}
}

type createRequest struct {
	Data       model.Record `json:"data"`
	TTLSeconds *int64       `json:"ttl_seconds"`
}

func (s *Server) handleShortTermCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Data) == 0 {
		s.writeError(w, http.StatusBadRequest, "data is required")
		return
	}
	ttl, err := ttlFromSeconds(req.TTLSeconds)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.stm.Create(r.Context(), req.Data, ttl)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleShortTermGet(w http.ResponseWriter, r *http.Request) {
	rec, ok, err := s.stm.Get(r.Context(), r.PathValue("id"))
	s.writeRecord(w, r, rec, ok, err)
}

func (s *Server) handleShortTermUpdate(w http.ResponseWriter, r *http.Request) {
	var fields model.Record
	if !s.decode(w, r, &fields) {
		return
	}
	if len(fields) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one field is required")
		return
	}
	ok, err := s.stm.Update(r.Context(), r.PathValue("id"), fields)
	s.writeOutcome(w, r, ok, err)
}

func (s *Server) handleShortTermDelete(w http.ResponseWriter, r *http.Request) {
	ok, err := s.stm.Delete(r.Context(), r.PathValue("id"))
	s.writeOutcome(w, r, ok, err)
}

func (s *Server) handleShortTermLock(w http.ResponseWriter, r *http.Request) {
	ok, err := s.stm.Lock(r.Context(), r.PathValue("id"))
	s.writeOutcome(w, r, ok, err)
}

type unlockRequest struct {
	TTLSeconds *int64 `json:"ttl_seconds"`
}

func (s *Server) handleShortTermUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	ttl, err := ttlFromSeconds(req.TTLSeconds)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.stm.Unlock(r.Context(), r.PathValue("id"), ttl)
	s.writeOutcome(w, r, ok, err)
}

type ttlRequest struct {
	TTLSeconds int64 `json:"ttl_seconds"`
}

func (s *Server) handleShortTermTTL(w http.ResponseWriter, r *http.Request) {
	var req ttlRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.TTLSeconds <= 0 {
		s.writeError(w, http.StatusBadRequest, "ttl_seconds must be positive")
		return
	}
	ok, err := s.stm.ExtendTTL(r.Context(), r.PathValue("id"), time.Duration(req.TTLSeconds)*time.Second)
	s.writeOutcome(w, r, ok, err)
}

type searchRequest struct {
	Query model.Record `json:"query"`
	Limit int          `json:"limit"`
}

func (s *Server) handleShortTermSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	results, err := s.stm.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleLongTermCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Data) == 0 {
		s.writeError(w, http.StatusBadRequest, "data is required")
		return
	}
	id, err := s.ltm.Create(r.Context(), req.Data)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleLongTermGet(w http.ResponseWriter, r *http.Request) {
	rec, ok, err := s.ltm.Get(r.Context(), r.PathValue("id"))
	s.writeRecord(w, r, rec, ok, err)
}

func (s *Server) handleLongTermUpdate(w http.ResponseWriter, r *http.Request) {
	var fields model.Record
	if !s.decode(w, r, &fields) {
		return
	}
	if len(fields) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one field is required")
		return
	}
	ok, err := s.ltm.Update(r.Context(), r.PathValue("id"), fields)
	s.writeOutcome(w, r, ok, err)
}

func (s *Server) handleLongTermDelete(w http.ResponseWriter, r *http.Request) {
	ok, err := s.lifecycle.Forget(r.Context(), r.PathValue("id"))
	s.writeOutcome(w, r, ok, err)
}

func (s *Server) handleLongTermRetrieve(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}
	ttl, err := ttlFromSeconds(req.TTLSeconds)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, ok, err := s.lifecycle.RetrieveToShortTerm(r.Context(), r.PathValue("id"), ttl)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleLongTermSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	results, err := s.ltm.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleWorldStateGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.world.Current(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

type worldUpdateRequest struct {
	Updates map[string]any `json:"updates"`
}

func (s *Server) handleWorldStateUpdate(w http.ResponseWriter, r *http.Request) {
	var req worldUpdateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Updates) == 0 {
		s.writeError(w, http.StatusBadRequest, "updates is required")
		return
	}
	version, err := s.world.Update(r.Context(), req.Updates)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"version": version})
}

func (s *Server) handleWorldStateVersion(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "version must be an integer")
		return
	}
	rec, ok, err := s.world.Version(r.Context(), version)
	s.writeRecord(w, r, rec, ok, err)
}

type rollbackRequest struct {
	Version int `json:"version"`
}

func (s *Server) handleWorldStateRollback(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Version < 1 {
		s.writeError(w, http.StatusBadRequest, "version must be positive")
		return
	}
	ok, err := s.world.RollbackTo(r.Context(), req.Version)
	s.writeOutcome(w, r, ok, err)
}

// decode parses the JSON body into dst, requiring a body to be present.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// decodeOptional parses the JSON body when one is present; an empty body
// leaves dst at its zero value.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) writeRecord(w http.ResponseWriter, r *http.Request, rec model.Record, ok bool, err error) {
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request, ok bool, err error) {
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}
