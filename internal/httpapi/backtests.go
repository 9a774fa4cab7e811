package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"optionforge/internal/dispatcher"
	"optionforge/internal/domain"
)

// Websocket timings.
const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

type launchBacktestRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type backtestStatusResponse struct {
	BacktestID        string           `json:"backtest_id"`
	StrategyID        *int64           `json:"strategy_id,omitempty"`
	Status            domain.RunStatus `json:"status"`
	ProgressPct       int              `json:"progress_pct"`
	Info              string           `json:"info,omitempty"`
	ErrorKind         string           `json:"error_kind,omitempty"`
	Error             string           `json:"error,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	StartedAt         *time.Time       `json:"started_at,omitempty"`
	CompletedAt       *time.Time       `json:"completed_at,omitempty"`
	ResultsURL        string           `json:"results_url,omitempty"`
	ProgressStreamURL string           `json:"progress_stream_url,omitempty"`
}

func (s *Server) handleLaunchBacktest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req launchBacktestRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.StartDate == "" || req.EndDate == "" {
		writeError(w, http.StatusBadRequest, "Start date and end date are required")
		return
	}
	start, errStart := domain.ParseDate(req.StartDate)
	end, errEnd := domain.ParseDate(req.EndDate)
	if errStart != nil || errEnd != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD.")
		return
	}

	run, err := s.dispatcher.Submit(r.Context(), dispatcher.SubmitRequest{
		StrategyID: &id,
		Start:      start,
		End:        end,
	})
	if err != nil {
		if errors.Is(err, dispatcher.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "Backtest queue is shutting down")
			return
		}
		s.writeStoreError(w, "strategy", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"message":     "Backtest launched successfully.",
		"backtest_id": run.RunID,
		"status_url":  absoluteURL(r, fmt.Sprintf("/api/backtests/%s/status", run.RunID)),
	})
}

func (s *Server) handleBacktestStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, "backtest", err)
		return
	}

	resp := backtestStatusResponse{
		BacktestID:  run.RunID,
		StrategyID:  run.StrategyID,
		Status:      run.Status,
		ProgressPct: run.ProgressPct,
		Info:        run.ProgressMessage,
		ErrorKind:   run.ErrorKind,
		Error:       run.ErrorMessage,
		CreatedAt:   run.CreatedAt,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
	}
	switch run.Status {
	case domain.RunStatusPending:
		resp.Info = "Task is waiting to be processed."
		resp.ProgressStreamURL = wsURL(r, fmt.Sprintf("/ws/backtests/%s", run.RunID))
	case domain.RunStatusRunning:
		resp.ProgressStreamURL = wsURL(r, fmt.Sprintf("/ws/backtests/%s", run.RunID))
	case domain.RunStatusCompleted:
		resp.ResultsURL = absoluteURL(r, fmt.Sprintf("/api/backtests/%s/results", run.RunID))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBacktestResults(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, "backtest", err)
		return
	}
	if run.Status != domain.RunStatusCompleted || run.Result == nil {
		writeError(w, http.StatusNotFound, "Backtest is not yet complete.")
		return
	}
	writeJSON(w, http.StatusOK, run.Result)
}

// handleProgressStream pushes progress of one run over a websocket until the
// run finishes or the client goes away. The first message is the stored state.
func (s *Server) handleProgressStream(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	// subscribe before reading the snapshot so no update falls in between
	updates, cancel := s.dispatcher.Subscribe(runID)
	defer cancel()

	run, err := s.runs.GetByID(r.Context(), runID)
	if err != nil {
		s.writeStoreError(w, "backtest", err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade for %s: %v", runID, err)
		return
	}
	defer conn.Close()
	s.metrics.WSSubscribers.Inc()
	defer s.metrics.WSSubscribers.Dec()

	snapshot := dispatcher.Progress{
		RunID:     run.RunID,
		Status:    run.Status,
		Pct:       run.ProgressPct,
		Message:   run.ProgressMessage,
		ErrorKind: run.ErrorKind,
		Error:     run.ErrorMessage,
	}
	if err := writeWS(conn, snapshot); err != nil || snapshot.Terminal() {
		closeWS(conn)
		return
	}

	// reads only detect the client closing
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case p, ok := <-updates:
			if !ok {
				closeWS(conn)
				return
			}
			if p.Pct < snapshot.Pct && !p.Terminal() {
				continue
			}
			if err := writeWS(conn, p); err != nil {
				return
			}
			if p.Terminal() {
				closeWS(conn)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeWS(conn *websocket.Conn, p dispatcher.Progress) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(p)
}

func closeWS(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

func wsURL(r *http.Request, path string) string {
	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	return scheme + "://" + r.Host + path
}
