package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"optionforge/internal/backtest"
	"optionforge/internal/domain"
	"optionforge/internal/metrics"
)

type createStrategyRequest struct {
	Name        string                     `json:"name"`
	Description string                     `json:"description"`
	Definition  *domain.StrategyDefinition `json:"definition"`
}

type strategyListItem struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleCreateStrategy(w http.ResponseWriter, r *http.Request) {
	var req createStrategyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.Definition == nil {
		writeError(w, http.StatusBadRequest, "Strategy name and definition are required")
		return
	}
	if err := backtest.Validate(*req.Definition); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	strategy := &domain.Strategy{
		Name:        req.Name,
		Description: req.Description,
		Definition:  *req.Definition,
	}
	if err := s.strategies.Insert(r.Context(), strategy); err != nil {
		s.writeStoreError(w, "strategy", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Strategy created successfully",
		"id":      strategy.ID,
	})
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	list, err := s.strategies.List(r.Context())
	if err != nil {
		s.writeStoreError(w, "strategies", err)
		return
	}
	items := make([]strategyListItem, 0, len(list))
	for _, st := range list {
		items = append(items, strategyListItem{
			ID:          st.ID,
			Name:        st.Name,
			Description: st.Description,
			CreatedAt:   st.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategies": items})
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.strategies.GetByID(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, "strategy", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStrategySummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.strategies.GetByID(r.Context(), id); err != nil {
		s.writeStoreError(w, "strategy", err)
		return
	}
	summary, err := s.aggregator.Summarize(r.Context(), id)
	if errors.Is(err, metrics.ErrNoRuns) {
		writeError(w, http.StatusNotFound, "Strategy has no backtests")
		return
	}
	if err != nil {
		s.writeStoreError(w, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
