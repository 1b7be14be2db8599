package api

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	apperrors "github.com/vault-holdings/internal/errors"
)

// handleGetHoldings returns the daily holdings valuation series for an
// address: GET /api/holdings/{address}?days=N
func (s *Server) handleGetHoldings(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if !common.IsHexAddress(address) {
		respondServiceError(w, apperrors.NewInvalidAddressError(address))
		return
	}

	periodDays := s.config.DefaultPeriodDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondServiceError(w, apperrors.NewInvalidParameterError("days", "must be a positive integer"))
			return
		}
		if s.config.MaxPeriodDays > 0 && parsed > s.config.MaxPeriodDays {
			respondServiceError(w, apperrors.NewInvalidParameterError("days",
				"exceeds maximum of "+strconv.Itoa(s.config.MaxPeriodDays)))
			return
		}
		periodDays = parsed
	}

	series, err := s.holdingsService.GetHoldingsSeries(r.Context(), address, periodDays)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, series)
}

// handleInvalidateAddress drops cached valuations for one address:
// DELETE /api/holdings/{address}/cache
func (s *Server) handleInvalidateAddress(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	if !common.IsHexAddress(address) {
		respondServiceError(w, apperrors.NewInvalidAddressError(address))
		return
	}

	if err := s.holdingsService.Invalidate(r.Context(), address); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "invalidated",
		"address": address,
	})
}

// handleInvalidateAll drops every cached valuation:
// DELETE /api/holdings-cache
func (s *Server) handleInvalidateAll(w http.ResponseWriter, r *http.Request) {
	if err := s.holdingsService.Invalidate(r.Context(), ""); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "invalidated",
		"scope":  "all",
	})
}
