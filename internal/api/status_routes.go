package api

import (
	"net/http"
)

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	eng := s.svc.Engine()
	if eng == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	writeJSON(w, http.StatusOK, eng.MarketSnapshot())
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	eng := s.svc.Engine()
	if eng == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	writeJSON(w, http.StatusOK, eng.PositionStatus())
}

func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	eng := s.svc.Engine()
	if eng == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	writeJSON(w, http.StatusOK, eng.Counters())
}

func (s *Server) handlePaperStats(w http.ResponseWriter, r *http.Request) {
	stats := s.svc.PaperStats()
	if stats == nil {
		writeError(w, http.StatusNotFound, "not running in paper mode")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleLastSignal(w http.ResponseWriter, r *http.Request) {
	eng := s.svc.Engine()
	if eng == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not running")
		return
	}
	last := eng.LastSignal()
	if last == nil {
		writeError(w, http.StatusNotFound, "no signal detected yet")
		return
	}
	writeJSON(w, http.StatusOK, last)
}
