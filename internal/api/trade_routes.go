package api

import (
	"fmt"
	"net/http"

	"dexarb/internal/models"
	"dexarb/internal/repository"
)

type tradeJSON struct {
	T            int64   `json:"t"`
	Side         string  `json:"side"`
	AmountIn     float64 `json:"amountIn"`
	AmountOut    float64 `json:"amountOut"`
	RefPrice     float64 `json:"refPrice"`
	DexPrice     float64 `json:"dexPrice"`
	GapPct       float64 `json:"gapPct"`
	Outcome      string  `json:"outcome"`
	Reason       string  `json:"reason"`
	TxHash       *string `json:"txHash,omitempty"`
	IsPaperTrade bool    `json:"isPaperTrade"`
}

func tradesResponse(trades []models.TradeRecord) []tradeJSON {
	out := make([]tradeJSON, len(trades))
	for i, t := range trades {
		out[i] = tradeJSON{
			T: t.Timestamp.UnixMilli(), Side: t.Side,
			AmountIn: t.AmountIn, AmountOut: t.AmountOut,
			RefPrice: t.ReferencePrice, DexPrice: t.DexPrice,
			GapPct: t.GapPct, Outcome: t.Outcome, Reason: t.Reason,
			TxHash: t.TxHash, IsPaperTrade: t.IsPaperTrade,
		}
	}
	return out
}

func (s *Server) handleTradesToday(w http.ResponseWriter, r *http.Request) {
	today := repository.TradingDayNow()

	trades, err := s.tradeRepo.GetByDay(r.Context(), today)
	if err != nil {
		fmt.Printf("Error fetching today's trades: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}
	writeJSON(w, http.StatusOK, tradesResponse(trades))
}

func (s *Server) handleTradesByDay(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	if !validateDate(date) {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	trades, err := s.tradeRepo.GetByDay(r.Context(), date)
	if err != nil {
		fmt.Printf("Error fetching trades for %s: %v\n", date, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}
	writeJSON(w, http.StatusOK, tradesResponse(trades))
}

func (s *Server) handleAllTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100)

	trades, err := s.tradeRepo.GetAll(r.Context(), limit)
	if err != nil {
		fmt.Printf("Error fetching all trades: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleTradeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tradeRepo.GetStats(r.Context())
	if err != nil {
		fmt.Printf("Error fetching trade stats: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch trade stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
