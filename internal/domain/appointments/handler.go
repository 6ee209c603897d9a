package appointments

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dental-clinic/internal/middleware"
	"dental-clinic/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Get("/availability", availabilityHandler(svc))

	r.Route("/appointments", func(ar chi.Router) {
		ar.Use(middleware.RequireAuth)
		ar.Post("/", bookHandler(svc))
		ar.Get("/", listHandler(svc))
		ar.Get("/{appointmentID}", getHandler(svc))
		ar.Post("/{appointmentID}/cancel", cancelHandler(svc))

		ar.Group(func(sr chi.Router) {
			sr.Use(middleware.RequireRole(auth.RoleStaff, auth.RoleAdmin))
			sr.Post("/{appointmentID}/approve", approveHandler(svc))
			sr.Post("/{appointmentID}/reject", rejectHandler(svc))
			sr.Post("/{appointmentID}/no-show", noShowHandler(svc))
		})
	})
}

type bookRequest struct {
	PatientID string    `json:"patient_id"` // solo staff
	ServiceID string    `json:"service_id"`
	StartsAt  time.Time `json:"starts_at"`
	Notes     string    `json:"notes"`
}

type decisionRequest struct {
	DentistID string `json:"dentist_id"`
	Reason    string `json:"reason"`
}

type appointmentResponse struct {
	ID             string     `json:"id"`
	Reference      string     `json:"reference"`
	PatientID      string     `json:"patient_id"`
	ServiceID      string     `json:"service_id"`
	DentistID      string     `json:"dentist_id,omitempty"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         time.Time  `json:"ends_at"`
	Status         string     `json:"status"`
	Notes          string     `json:"notes,omitempty"`
	Channel        string     `json:"channel"`
	CancelReason   string     `json:"cancel_reason,omitempty"`
	DecidedBy      string     `json:"decided_by,omitempty"`
	DecidedAt      *time.Time `json:"decided_at,omitempty"`
	ReminderSentAt *time.Time `json:"reminder_sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type slotResponse struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Capacity  int       `json:"capacity"`
	Remaining int       `json:"remaining"`
}

// availabilityHandler godoc
// @Summary Franjas disponibles de un día
// @Tags appointments
// @Produce json
// @Param date query string true "YYYY-MM-DD"
// @Param service_id query string true "Service ID"
// @Success 200 {array} slotResponse
// @Router /availability [get]
func availabilityHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		slots, err := svc.Availability(r.Context(), q.Get("date"), q.Get("service_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]slotResponse, 0, len(slots))
		for _, s := range slots {
			out = append(out, slotResponse(s))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// bookHandler godoc
// @Summary Reservar cita
// @Description Pacientes reservan online para sí mismos; staff reserva para cualquier paciente.
// @Tags appointments
// @Accept json
// @Produce json
// @Param payload body bookRequest true "Reserva"
// @Success 201 {object} appointmentResponse
// @Failure 403 {string} string "booking blocked"
// @Failure 409 {string} string "slot is full"
// @Router /appointments [post]
func bookHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req bookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		in := BookInput{
			PatientID: req.PatientID,
			ServiceID: req.ServiceID,
			StartsAt:  req.StartsAt,
			Notes:     req.Notes,
			IP:        clientIP(r),
			Channel:   ChannelStaff,
		}
		if !claims.Role.IsStaffLevel() {
			p, err := svc.PatientForUser(r.Context(), claims.UserID)
			if err != nil {
				writeError(w, err)
				return
			}
			in.PatientID = p.ID
			in.Channel = ChannelOnline
		}

		a, err := svc.Book(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(a))
	}
}

// listHandler godoc
// @Summary Listar citas
// @Tags appointments
// @Produce json
// @Param status query string false "estado"
// @Param patient_id query string false "solo staff"
// @Param from query string false "RFC3339"
// @Param to query string false "RFC3339"
// @Success 200 {array} appointmentResponse
// @Router /appointments [get]
func listHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		q := r.URL.Query()

		f := Filter{
			PatientID: q.Get("patient_id"),
			Status:    Status(q.Get("status")),
		}
		f.Limit, _ = strconv.Atoi(q.Get("limit"))
		var err error
		if f.From, err = parseTime(q.Get("from")); err != nil {
			http.Error(w, "invalid from", http.StatusBadRequest)
			return
		}
		if f.To, err = parseTime(q.Get("to")); err != nil {
			http.Error(w, "invalid to", http.StatusBadRequest)
			return
		}

		// un paciente solo ve lo suyo
		if !claims.Role.IsStaffLevel() {
			p, err := svc.PatientForUser(r.Context(), claims.UserID)
			if err != nil {
				writeJSON(w, http.StatusOK, []appointmentResponse{})
				return
			}
			f.PatientID = p.ID
		}

		items, err := svc.List(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]appointmentResponse, 0, len(items))
		for _, a := range items {
			out = append(out, toResponse(a))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		a, err := svc.Get(r.Context(), chi.URLParam(r, "appointmentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if !claims.Role.IsStaffLevel() {
			p, err := svc.PatientForUser(r.Context(), claims.UserID)
			if err != nil || p.ID != a.PatientID {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
		}
		writeJSON(w, http.StatusOK, toResponse(a))
	}
}

func cancelHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		req, ok := decodeDecision(w, r)
		if !ok {
			return
		}
		a, err := svc.Cancel(r.Context(), claims, chi.URLParam(r, "appointmentID"), req.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(a))
	}
}

// approveHandler godoc
// @Summary Aprobar cita pendiente
// @Tags appointments
// @Accept json
// @Produce json
// @Param appointmentID path string true "Appointment ID"
// @Param payload body decisionRequest false "Dentista asignado"
// @Success 200 {object} appointmentResponse
// @Failure 409 {string} string "invalid state"
// @Router /appointments/{appointmentID}/approve [post]
func approveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		req, ok := decodeDecision(w, r)
		if !ok {
			return
		}
		a, err := svc.Approve(r.Context(), claims.UserID, chi.URLParam(r, "appointmentID"), req.DentistID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(a))
	}
}

func rejectHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		req, ok := decodeDecision(w, r)
		if !ok {
			return
		}
		a, err := svc.Reject(r.Context(), claims.UserID, chi.URLParam(r, "appointmentID"), req.Reason)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(a))
	}
}

func noShowHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		a, err := svc.MarkNoShow(r.Context(), claims.UserID, chi.URLParam(r, "appointmentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(a))
	}
}

// decodeDecision acepta body vacío.
func decodeDecision(w http.ResponseWriter, r *http.Request) (decisionRequest, bool) {
	var req decisionRequest
	if r.ContentLength == 0 {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrOutsideWindow):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrBlocked):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrBadState), errors.Is(err, ErrSlotFull), errors.Is(err, ErrAlreadyBooked):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseTime(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func toResponse(a Appointment) appointmentResponse {
	return appointmentResponse{
		ID:             a.ID,
		Reference:      a.Reference,
		PatientID:      a.PatientID,
		ServiceID:      a.ServiceID,
		DentistID:      a.DentistID,
		StartsAt:       a.StartsAt,
		EndsAt:         a.EndsAt,
		Status:         string(a.Status),
		Notes:          a.Notes,
		Channel:        string(a.Channel),
		CancelReason:   a.CancelReason,
		DecidedBy:      a.DecidedBy,
		DecidedAt:      a.DecidedAt,
		ReminderSentAt: a.ReminderSentAt,
		CreatedAt:      a.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
