package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
)

type MatchHandler interface {
	GetMatch(w http.ResponseWriter, r *http.Request)
}

type matchSource interface {
	Snapshot() entity.MatchSnapshot
}

type matchHandler struct {
	logger *slog.Logger
	match  matchSource
}

func NewMatchHandler(logger *slog.Logger, match matchSource) MatchHandler {
	return &matchHandler{
		logger: logger.With("component", "match_handler"),
		match:  match,
	}
}

// GetMatch returns the local view of the match as JSON.
func (that *matchHandler) GetMatch(w http.ResponseWriter, _ *http.Request) {
	writeJSON(that.logger, w, http.StatusOK, that.match.Snapshot())
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to write response", "error", err)
	}
}
