package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"dental-clinic/internal/middleware"
	"dental-clinic/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Svc) {
	// Público: catálogo activo para el formulario de reserva
	r.Get("/services", listActiveHandler(svc))

	r.Route("/admin/services", func(ar chi.Router) {
		ar.Use(middleware.RequireRole(auth.RoleAdmin))
		ar.Get("/", listAllHandler(svc))
		ar.Post("/", createHandler(svc))
		ar.Patch("/{serviceID}", updateHandler(svc))
	})
}

type createServiceRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	PriceCents      int64  `json:"price_cents"`
	DurationMinutes int    `json:"duration_minutes"`
}

type updateServiceRequest struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	PriceCents      *int64  `json:"price_cents"`
	DurationMinutes *int    `json:"duration_minutes"`
	IsActive        *bool   `json:"is_active"`
}

type serviceResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	PriceCents      int64     `json:"price_cents"`
	DurationMinutes int       `json:"duration_minutes"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// listActiveHandler godoc
// @Summary Listar servicios activos
// @Tags catalog
// @Produce json
// @Success 200 {array} serviceResponse
// @Router /services [get]
func listActiveHandler(svc *Svc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context(), true)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toResponses(items))
	}
}

func listAllHandler(svc *Svc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context(), false)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toResponses(items))
	}
}

// createHandler godoc
// @Summary Crear servicio dental
// @Tags catalog
// @Accept json
// @Produce json
// @Param payload body createServiceRequest true "Servicio"
// @Success 201 {object} serviceResponse
// @Failure 400 {string} string "invalid input"
// @Router /admin/services [post]
func createHandler(svc *Svc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createServiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		s, err := svc.Create(r.Context(), CreateInput{
			Name:            req.Name,
			Description:     req.Description,
			PriceCents:      req.PriceCents,
			DurationMinutes: req.DurationMinutes,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(s))
	}
}

func updateHandler(svc *Svc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()

		var req updateServiceRequest
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		s, err := svc.Update(r.Context(), chi.URLParam(r, "serviceID"), UpdateInput{
			Name:            req.Name,
			Description:     req.Description,
			PriceCents:      req.PriceCents,
			DurationMinutes: req.DurationMinutes,
			IsActive:        req.IsActive,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(s))
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

func toResponses(items []Service) []serviceResponse {
	out := make([]serviceResponse, 0, len(items))
	for _, s := range items {
		out = append(out, toResponse(s))
	}
	return out
}

func toResponse(s Service) serviceResponse {
	return serviceResponse{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description,
		PriceCents:      s.PriceCents,
		DurationMinutes: s.DurationMinutes,
		IsActive:        s.IsActive,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
