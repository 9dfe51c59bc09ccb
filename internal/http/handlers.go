package http

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"vaultbot/internal/aggregate"
	"vaultbot/internal/core"
	applog "vaultbot/internal/log"
	"vaultbot/internal/services"
)

const dateLayout = "2006-01-02"

// requireToken accepts "Authorization: Bearer <token>" or ?token= when a
// notify token is configured.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.NotifyToken == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if got == "" {
			got = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.deps.NotifyToken)) != 1 {
			ErrorJSON(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(r.URL.Query().Get("chatId"), 10, 64)
	if err != nil {
		ErrorJSON(w, http.StatusBadRequest, "chatId must be an integer")
		return
	}
	if err := s.deps.Notifier.NotifyStart(r.Context(), chatID); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to notify chat",
			applog.FieldChatID, chatID, applog.FieldError, err)
		ErrorJSON(w, http.StatusBadGateway, "notification failed")
		return
	}
	JSON(w, http.StatusOK, map[string]int{"notified": 1})
}

func (s *Server) handleNotifyAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	chats, err := s.deps.Recipients.Recipients(ctx)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to list recipients", applog.FieldError, err)
		ErrorJSON(w, http.StatusInternalServerError, "cannot list recipients")
		return
	}
	sent := 0
	for _, chatID := range chats {
		if err := s.deps.Notifier.NotifyStart(ctx, chatID); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Failed to notify chat",
				applog.FieldChatID, chatID, applog.FieldError, err)
			continue
		}
		sent++
	}
	JSON(w, http.StatusOK, map[string]int{"notified": sent, "recipients": len(chats)})
}

type amountJSON struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

type changeJSON struct {
	Currency  string   `json:"currency"`
	Amount    float64  `json:"amount"`
	Previous  *float64 `json:"previous,omitempty"`
	Delta     *float64 `json:"delta,omitempty"`
	Percent   *float64 `json:"percent,omitempty"`
	Direction string   `json:"direction,omitempty"`
}

type summaryJSON struct {
	PeriodID    string       `json:"periodId"`
	Date        string       `json:"date"`
	Totals      []changeJSON `json:"totals"`
	Equivalence changeJSON   `json:"equivalence"`
}

func toChangeJSON(c aggregate.Change) changeJSON {
	out := changeJSON{Currency: c.Currency, Amount: c.Current}
	if c.HasPrevious {
		prev, delta, pct := c.Previous, c.Delta, c.Percent
		out.Previous, out.Delta, out.Percent = &prev, &delta, &pct
		out.Direction = c.Direction.String()
	}
	return out
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	latest, previous, err := s.deps.Reports.Summaries(r.Context())
	if errors.Is(err, services.ErrNoData) {
		ErrorJSON(w, http.StatusNotFound, "no reported periods yet")
		return
	}
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to summarize", applog.FieldError, err)
		ErrorJSON(w, http.StatusInternalServerError, "cannot compute summary")
		return
	}

	cmp := aggregate.Compare(*latest, previous)
	out := summaryJSON{
		PeriodID:    latest.PeriodID,
		Date:        latest.Date.Format(dateLayout),
		Totals:      make([]changeJSON, 0, len(cmp.ByCurrency)),
		Equivalence: toChangeJSON(cmp.Equivalence),
	}
	for _, c := range cmp.ByCurrency {
		out.Totals = append(out.Totals, toChangeJSON(c))
	}
	JSON(w, http.StatusOK, out)
}

type seriesJSON struct {
	Key     string    `json:"key"`
	Amounts []float64 `json:"amounts"`
}

type timeSeriesJSON struct {
	Dates  []string     `json:"dates"`
	Series []seriesJSON `json:"series"`
}

// handleTimeSeries returns every series, or only ?key= when given.
func (s *Server) handleTimeSeries(w http.ResponseWriter, r *http.Request) {
	ts, err := s.deps.Reports.ChartData(r.Context())
	if errors.Is(err, services.ErrNoData) {
		ErrorJSON(w, http.StatusNotFound, "no reported periods yet")
		return
	}
	if err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to build time series", applog.FieldError, err)
		ErrorJSON(w, http.StatusInternalServerError, "cannot build time series")
		return
	}

	out := timeSeriesJSON{Dates: make([]string, len(ts.Dates))}
	for i, d := range ts.Dates {
		out.Dates[i] = d.Format(dateLayout)
	}
	if key := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("key"))); key != "" {
		amounts, ok := ts.Amounts(key)
		if !ok {
			ErrorJSON(w, http.StatusNotFound, "unknown series "+key)
			return
		}
		out.Series = []seriesJSON{{Key: key, Amounts: amounts}}
	} else {
		out.Series = seriesList(ts)
	}
	JSON(w, http.StatusOK, out)
}

func seriesList(ts core.TimeSeries) []seriesJSON {
	out := make([]seriesJSON, 0, len(ts.Series))
	for _, s := range ts.Series {
		out = append(out, seriesJSON{Key: s.Key, Amounts: s.Amounts})
	}
	return out
}
