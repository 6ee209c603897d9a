package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"dental-clinic/internal/middleware"
	"dental-clinic/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, d *Dispatcher) {
	r.Route("/admin/notifications", func(ar chi.Router) {
		ar.Use(middleware.RequireRole(auth.RoleAdmin))
		ar.Get("/", listLogsHandler(d))
		ar.Get("/{notificationID}", getLogHandler(d))
	})
}

type logResponse struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Channel   string     `json:"channel"`
	Recipient string     `json:"recipient"`
	Subject   string     `json:"subject,omitempty"`
	RelatedID string     `json:"related_id,omitempty"`
	Status    string     `json:"status"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"last_error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// listLogsHandler godoc
// @Summary Bitácora de notificaciones
// @Tags notifications
// @Produce json
// @Param status query string false "queued|sent|failed"
// @Param channel query string false "email|sms|push"
// @Param limit query int false "máximo"
// @Success 200 {array} logResponse
// @Router /admin/notifications [get]
func listLogsHandler(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))

		logs, err := d.ListLogs(r.Context(), LogFilter{
			Status:  Status(q.Get("status")),
			Channel: Channel(q.Get("channel")),
			Limit:   limit,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]logResponse, 0, len(logs))
		for _, l := range logs {
			out = append(out, toResponse(l))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getLogHandler(d *Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := d.GetLog(r.Context(), chi.URLParam(r, "notificationID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(l))
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toResponse(l Log) logResponse {
	return logResponse{
		ID:        l.ID,
		Kind:      string(l.Kind),
		Channel:   string(l.Channel),
		Recipient: l.Recipient,
		Subject:   l.Subject,
		RelatedID: l.RelatedID,
		Status:    string(l.Status),
		Attempts:  l.Attempts,
		LastError: l.LastError,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
		SentAt:    l.SentAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
