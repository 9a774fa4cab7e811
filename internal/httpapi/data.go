package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"optionforge/internal/domain"
)

// chainOption is one contract of the option chain response.
type chainOption struct {
	Strike       float64  `json:"strike"`
	LastPrice    float64  `json:"lastPrice"`
	Bid          float64  `json:"bid"`
	Ask          float64  `json:"ask"`
	Volume       int64    `json:"volume"`
	OpenInterest int64    `json:"openInterest"`
	IV           float64  `json:"iv"`
	Delta        *float64 `json:"delta"`
	Gamma        *float64 `json:"gamma"`
	Theta        *float64 `json:"theta"`
	Vega         *float64 `json:"vega"`
}

// chainExpiration groups the contracts of one expiration.
type chainExpiration struct {
	Calls []chainOption `json:"calls"`
	Puts  []chainOption `json:"puts"`
}

func (s *Server) handleOptionChain(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("ticker")))
	dateStr := r.URL.Query().Get("date")
	if ticker == "" || dateStr == "" {
		writeError(w, http.StatusBadRequest, "Ticker and date parameters are required")
		return
	}
	date, err := domain.ParseDate(dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format. Use YYYY-MM-DD.")
		return
	}

	quotes, err := s.quotes.GetChainOnDate(r.Context(), ticker, date)
	if err != nil {
		s.writeStoreError(w, "option chain", err)
		return
	}
	if len(quotes) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("No data found for %s on %s", ticker, dateStr))
		return
	}
	writeJSON(w, http.StatusOK, groupByExpiration(quotes))
}

// groupByExpiration keys the chain by expiration date. Quotes arrive ordered
// by expiration and strike, so each side stays strike-ordered.
func groupByExpiration(quotes []*domain.OptionQuote) map[string]*chainExpiration {
	out := make(map[string]*chainExpiration)
	for _, q := range quotes {
		key := q.Expiration.String()
		group, ok := out[key]
		if !ok {
			group = &chainExpiration{Calls: []chainOption{}, Puts: []chainOption{}}
			out[key] = group
		}
		opt := chainOption{
			Strike:       q.Strike,
			LastPrice:    q.Last,
			Bid:          q.Bid,
			Ask:          q.Ask,
			Volume:       q.Volume,
			OpenInterest: q.OpenInterest,
			IV:           q.ImpliedVolatility,
			Delta:        q.Delta,
			Gamma:        q.Gamma,
			Theta:        q.Theta,
			Vega:         q.Vega,
		}
		if q.Type == domain.OptionTypeCall {
			group.Calls = append(group.Calls, opt)
		} else {
			group.Puts = append(group.Puts, opt)
		}
	}
	return out
}
