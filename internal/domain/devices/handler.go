package devices

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"dental-clinic/internal/middleware"
	"dental-clinic/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.With(middleware.RequireRole(auth.RoleStaff, auth.RoleAdmin)).Get("/me/devices", myDevicesHandler(svc))

	r.Route("/admin/devices", func(ar chi.Router) {
		ar.Use(middleware.RequireRole(auth.RoleAdmin))
		ar.Get("/", listHandler(svc))
		ar.Post("/{deviceID}/approve", approveHandler(svc))
		ar.Post("/{deviceID}/reject", rejectHandler(svc))
		ar.Post("/{deviceID}/revoke", revokeHandler(svc))
	})
}

type approveRequest struct {
	Label string `json:"label"`
}

type deviceResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Label      string     `json:"label,omitempty"`
	UserAgent  string     `json:"user_agent"`
	Platform   string     `json:"platform,omitempty"`
	IP         string     `json:"ip,omitempty"`
	Status     string     `json:"status"`
	ApprovedBy string     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// listHandler godoc
// @Summary Listar dispositivos de staff
// @Tags devices
// @Produce json
// @Param status query string false "pending|approved|rejected|revoked"
// @Success 200 {array} deviceResponse
// @Router /admin/devices [get]
func listHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context(), Status(r.URL.Query().Get("status")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponses(items))
	}
}

// approveHandler godoc
// @Summary Aprobar dispositivo pendiente
// @Tags devices
// @Accept json
// @Produce json
// @Param deviceID path string true "Device ID"
// @Param payload body approveRequest false "Etiqueta"
// @Success 200 {object} deviceResponse
// @Failure 409 {string} string "invalid state"
// @Router /admin/devices/{deviceID}/approve [post]
func approveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req approveRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "invalid json", http.StatusBadRequest)
				return
			}
		}

		d, err := svc.Approve(r.Context(), claims.UserID, chi.URLParam(r, "deviceID"), req.Label)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(d))
	}
}

func rejectHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		d, err := svc.Reject(r.Context(), claims.UserID, chi.URLParam(r, "deviceID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(d))
	}
}

func revokeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		d, err := svc.Revoke(r.Context(), claims.UserID, chi.URLParam(r, "deviceID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(d))
	}
}

func myDevicesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		items, err := svc.ListByUser(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponses(items))
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrBadState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toResponses(items []Device) []deviceResponse {
	out := make([]deviceResponse, 0, len(items))
	for _, d := range items {
		out = append(out, toResponse(d))
	}
	return out
}

func toResponse(d Device) deviceResponse {
	return deviceResponse{
		ID:         d.ID,
		UserID:     d.UserID,
		Label:      d.Label,
		UserAgent:  d.UserAgent,
		Platform:   d.Platform,
		IP:         d.IP,
		Status:     string(d.Status),
		ApprovedBy: d.ApprovedBy,
		ApprovedAt: d.ApprovedAt,
		LastSeenAt: d.LastSeenAt,
		CreatedAt:  d.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
