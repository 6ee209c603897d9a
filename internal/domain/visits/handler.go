package visits

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

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/visits", func(vr chi.Router) {
		vr.Use(middleware.RequireRole(auth.RoleStaff, auth.RoleAdmin))
		vr.Post("/", startHandler(svc))
		vr.Get("/", listHandler(svc))
		vr.Get("/{visitID}", getHandler(svc))
		vr.Post("/{visitID}/complete", completeHandler(svc))
		vr.Post("/{visitID}/no-show", noShowHandler(svc))
	})
}

// PatientRoutes cuelga /{patientID}/visits bajo el router de /patients.
func PatientRoutes(svc *Service) func(chi.Router) {
	return func(pr chi.Router) {
		pr.Get("/{patientID}/visits", patientVisitsHandler(svc))
	}
}

type startRequest struct {
	AppointmentID string `json:"appointment_id"`
	PatientID     string `json:"patient_id"`
	ServiceID     string `json:"service_id"`
	Notes         string `json:"notes"`
}

type itemRequest struct {
	ItemID string `json:"item_id"`
	Qty    int    `json:"qty"`
}

type completeRequest struct {
	Notes string        `json:"notes"`
	Teeth []string      `json:"teeth_treated"`
	Items []itemRequest `json:"items"`
}

type visitResponse struct {
	ID            string        `json:"id"`
	PatientID     string        `json:"patient_id"`
	AppointmentID string        `json:"appointment_id,omitempty"`
	ServiceID     string        `json:"service_id"`
	Status        string        `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       *time.Time    `json:"ended_at,omitempty"`
	Notes         string        `json:"notes,omitempty"`
	TeethTreated  []string      `json:"teeth_treated,omitempty"`
	Items         []itemRequest `json:"items,omitempty"`
	CompletedBy   string        `json:"completed_by,omitempty"`
	PaymentID     string        `json:"payment_id,omitempty"`
}

// startHandler godoc
// @Summary Iniciar visita
// @Description Desde una cita aprobada (appointment_id) o walk-in (patient_id + service_id).
// @Tags visits
// @Accept json
// @Produce json
// @Param payload body startRequest true "Visita"
// @Success 201 {object} visitResponse
// @Failure 409 {string} string "appointment already has an open visit"
// @Router /visits [post]
func startHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		v, err := svc.Start(r.Context(), StartInput{
			StaffID:       claims.UserID,
			AppointmentID: req.AppointmentID,
			PatientID:     req.PatientID,
			ServiceID:     req.ServiceID,
			Notes:         req.Notes,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(v))
	}
}

func listHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := Filter{PatientID: q.Get("patient_id"), Status: Status(q.Get("status"))}
		f.Limit, _ = strconv.Atoi(q.Get("limit"))
		items, err := svc.List(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		writeList(w, items)
	}
}

func getHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.Get(r.Context(), chi.URLParam(r, "visitID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(v))
	}
}

// completeHandler godoc
// @Summary Completar visita
// @Description Descuenta insumos FEFO, completa la cita y genera el pago pendiente.
// @Tags visits
// @Accept json
// @Produce json
// @Param visitID path string true "Visit ID"
// @Param payload body completeRequest true "Cierre"
// @Success 200 {object} visitResponse
// @Failure 409 {string} string "insufficient stock"
// @Router /visits/{visitID}/complete [post]
func completeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		var req completeRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}
		items := make([]ConsumedItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, ConsumedItem(it))
		}
		v, err := svc.Complete(r.Context(), CompleteInput{
			StaffID: claims.UserID,
			VisitID: chi.URLParam(r, "visitID"),
			Notes:   req.Notes,
			Teeth:   req.Teeth,
			Items:   items,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(v))
	}
}

func noShowHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		v, err := svc.MarkNoShow(r.Context(), claims.UserID, chi.URLParam(r, "visitID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(v))
	}
}

func patientVisitsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		patientID := chi.URLParam(r, "patientID")
		if !claims.Role.IsStaffLevel() && !svc.OwnsPatient(r.Context(), claims.UserID, patientID) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		items, err := svc.ListByPatient(r.Context(), patientID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeList(w, items)
	}
}

func writeList(w http.ResponseWriter, items []Visit) {
	out := make([]visitResponse, 0, len(items))
	for _, v := range items {
		out = append(out, toResponse(v))
	}
	writeJSON(w, http.StatusOK, out)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrBadState), errors.Is(err, ErrConflict), errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrStockChanged):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toResponse(v Visit) visitResponse {
	items := make([]itemRequest, 0, len(v.Items))
	for _, it := range v.Items {
		items = append(items, itemRequest(it))
	}
	return visitResponse{
		ID:            v.ID,
		PatientID:     v.PatientID,
		AppointmentID: v.AppointmentID,
		ServiceID:     v.ServiceID,
		Status:        string(v.Status),
		StartedAt:     v.StartedAt,
		EndedAt:       v.EndedAt,
		Notes:         v.Notes,
		TeethTreated:  v.TeethTreated,
		Items:         items,
		CompletedBy:   v.CompletedBy,
		PaymentID:     v.PaymentID,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
