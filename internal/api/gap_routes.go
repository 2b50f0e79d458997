package api

import (
	"fmt"
	"net/http"
)

func (s *Server) handleGapsByDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !validateDate(date) {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	points, err := s.gapRepo.GetByDay(r.Context(), date)
	if err != nil {
		fmt.Printf("Error fetching gaps for %s: %v\n", date, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch gap history")
		return
	}
	writeJSON(w, http.StatusOK, points)
}

func (s *Server) handleGapDays(w http.ResponseWriter, r *http.Request) {
	days, err := s.gapRepo.GetAvailableDays(r.Context())
	if err != nil {
		fmt.Printf("Error fetching gap days: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch available days")
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (s *Server) handleLatestGap(w http.ResponseWriter, r *http.Request) {
	point, err := s.gapRepo.GetLatest(r.Context())
	if err != nil {
		fmt.Printf("Error fetching latest gap: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch latest gap")
		return
	}
	if point == nil {
		writeError(w, http.StatusNotFound, "no gap observations recorded yet")
		return
	}
	writeJSON(w, http.StatusOK, point)
}
