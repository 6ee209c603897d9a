package schedules

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
	r.Route("/admin/dentists", func(ar chi.Router) {
		ar.With(middleware.RequireRole(auth.RoleStaff, auth.RoleAdmin)).Get("/", listDentistsHandler(svc))

		ar.Group(func(wr chi.Router) {
			wr.Use(middleware.RequireRole(auth.RoleAdmin))
			wr.Post("/", createDentistHandler(svc))
			wr.Post("/{dentistID}/status", dentistStatusHandler(svc))
			wr.Get("/{dentistID}/schedule", getWeekHandler(svc))
			wr.Put("/{dentistID}/schedule", setWeekHandler(svc))
		})
	})

	r.Route("/admin/closures", func(ar chi.Router) {
		ar.Use(middleware.RequireRole(auth.RoleAdmin))
		ar.Get("/", listClosuresHandler(svc))
		ar.Post("/", addClosureHandler(svc))
		ar.Delete("/{date}", removeClosureHandler(svc))
	})
}

type dentistRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type dentistResponse struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type entryDTO struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type weekRequest struct {
	Entries []entryDTO `json:"entries"`
}

type closureRequest struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

type closureResponse struct {
	Date      string    `json:"date"`
	Reason    string    `json:"reason"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func listDentistsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListDentists(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]dentistResponse, 0, len(items))
		for _, d := range items {
			out = append(out, toDentistResponse(d))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// createDentistHandler godoc
// @Summary Crear dentista
// @Tags schedules
// @Accept json
// @Produce json
// @Param payload body dentistRequest true "Dentista"
// @Success 201 {object} dentistResponse
// @Failure 409 {string} string "conflict"
// @Router /admin/dentists [post]
func createDentistHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dentistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		d, err := svc.CreateDentist(r.Context(), DentistInput(req))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toDentistResponse(d))
	}
}

func dentistStatusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		d, err := svc.SetDentistStatus(r.Context(), chi.URLParam(r, "dentistID"), DentistStatus(req.Status))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toDentistResponse(d))
	}
}

func getWeekHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.Week(r.Context(), chi.URLParam(r, "dentistID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryDTOs(entries))
	}
}

// setWeekHandler godoc
// @Summary Reemplazar horario semanal del dentista
// @Tags schedules
// @Accept json
// @Produce json
// @Param dentistID path string true "Dentist ID"
// @Param payload body weekRequest true "Turnos"
// @Success 200 {array} entryDTO
// @Router /admin/dentists/{dentistID}/schedule [put]
func setWeekHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req weekRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		in := make([]EntryInput, 0, len(req.Entries))
		for _, e := range req.Entries {
			in = append(in, EntryInput(e))
		}
		entries, err := svc.SetWeek(r.Context(), chi.URLParam(r, "dentistID"), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toEntryDTOs(entries))
	}
}

func listClosuresHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListClosures(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]closureResponse, 0, len(items))
		for _, c := range items {
			out = append(out, closureResponse(c))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// addClosureHandler godoc
// @Summary Cerrar la clínica un día
// @Tags schedules
// @Accept json
// @Produce json
// @Param payload body closureRequest true "Cierre"
// @Success 201 {object} closureResponse
// @Router /admin/closures [post]
func addClosureHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req closureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		c, err := svc.AddClosure(r.Context(), req.Date, req.Reason, claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, closureResponse(c))
	}
}

func removeClosureHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.RemoveClosure(r.Context(), chi.URLParam(r, "date")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toDentistResponse(d Dentist) dentistResponse {
	return dentistResponse{
		ID:        d.ID,
		Code:      d.Code,
		Name:      d.Name,
		Status:    string(d.Status),
		CreatedAt: d.CreatedAt,
	}
}

func toEntryDTOs(entries []Entry) []entryDTO {
	out := make([]entryDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryDTO{Weekday: e.Weekday, Start: e.Start, End: e.End})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
