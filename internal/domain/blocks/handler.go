package blocks

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
	r.Route("/admin/blocks", func(ar chi.Router) {
		ar.Use(middleware.RequireRole(auth.RoleAdmin))
		ar.Get("/", listHandler(svc))
		ar.Post("/", createHandler(svc))
		ar.Post("/{blockID}/lift", liftHandler(svc))
	})
}

type createBlockRequest struct {
	Type      string `json:"type"` // account|ip|both
	PatientID string `json:"patient_id"`
	IP        string `json:"ip"`
	Reason    string `json:"reason"`
}

type blockResponse struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	PatientID string     `json:"patient_id,omitempty"`
	IPRule    string     `json:"ip_rule,omitempty"`
	Reason    string     `json:"reason"`
	Status    string     `json:"status"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	LiftedBy  string     `json:"lifted_by,omitempty"`
	LiftedAt  *time.Time `json:"lifted_at,omitempty"`
}

// listHandler godoc
// @Summary Listar bloqueos
// @Tags blocks
// @Produce json
// @Param status query string false "active|lifted"
// @Success 200 {array} blockResponse
// @Router /admin/blocks [get]
func listHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context(), Status(r.URL.Query().Get("status")))
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]blockResponse, 0, len(items))
		for _, b := range items {
			out = append(out, toResponse(b))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// createHandler godoc
// @Summary Bloquear cuenta y/o IP
// @Tags blocks
// @Accept json
// @Produce json
// @Param payload body createBlockRequest true "Bloqueo"
// @Success 201 {object} blockResponse
// @Failure 400 {string} string "invalid input"
// @Router /admin/blocks [post]
func createHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createBlockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		b, err := svc.Create(r.Context(), CreateInput{
			Type:      Type(req.Type),
			PatientID: req.PatientID,
			IP:        req.IP,
			Reason:    req.Reason,
			CreatedBy: claims.UserID,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(b))
	}
}

func liftHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		b, err := svc.Lift(r.Context(), chi.URLParam(r, "blockID"), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(b))
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

func toResponse(b Block) blockResponse {
	return blockResponse{
		ID:        b.ID,
		Type:      string(b.Type),
		PatientID: b.PatientID,
		IPRule:    b.IPRule,
		Reason:    b.Reason,
		Status:    string(b.Status),
		CreatedBy: b.CreatedBy,
		CreatedAt: b.CreatedAt,
		LiftedBy:  b.LiftedBy,
		LiftedAt:  b.LiftedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
