package patients

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dental-clinic/internal/middleware"
	"dental-clinic/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

// extra permite a otros módulos colgar subrutas de /patients/{patientID}.
func RegisterRoutes(r chi.Router, svc *Service, extra ...func(chi.Router)) {
	r.Get("/me/patient", mePatientHandler(svc))

	r.Route("/patients", func(pr chi.Router) {
		pr.With(middleware.RequireRole(auth.RoleStaff, auth.RoleAdmin)).Get("/", searchHandler(svc))
		pr.With(middleware.RequireRole(auth.RoleStaff, auth.RoleAdmin)).Post("/", createHandler(svc))
		pr.Get("/{patientID}", getHandler(svc))
		pr.Patch("/{patientID}", updateHandler(svc))
		for _, fn := range extra {
			fn(pr)
		}
	})
}

type patientRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	BirthDate *string `json:"birth_date"` // YYYY-MM-DD
	Sex       *string `json:"sex"`
	Address   *string `json:"address"`
	Notes     *string `json:"notes"`
}

type patientResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	BirthDate string    `json:"birth_date,omitempty"`
	Sex       string    `json:"sex"`
	Address   string    `json:"address,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// searchHandler godoc
// @Summary Buscar pacientes
// @Tags patients
// @Produce json
// @Param q query string false "texto"
// @Param limit query int false "máximo de resultados"
// @Success 200 {array} patientResponse
// @Router /patients [get]
func searchHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		items, err := svc.Search(r.Context(), r.URL.Query().Get("q"), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]patientResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// createHandler godoc
// @Summary Registrar paciente (walk-in)
// @Tags patients
// @Accept json
// @Produce json
// @Param payload body patientRequest true "Paciente"
// @Success 201 {object} patientResponse
// @Failure 400 {string} string "invalid input"
// @Router /patients [post]
func createHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req patientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		bd, err := parseDate(req.BirthDate)
		if err != nil {
			http.Error(w, "invalid birth_date", http.StatusBadRequest)
			return
		}

		p, err := svc.Create(r.Context(), CreateInput{
			FirstName: deref(req.FirstName),
			LastName:  deref(req.LastName),
			Email:     deref(req.Email),
			Phone:     deref(req.Phone),
			BirthDate: bd,
			Sex:       Sex(deref(req.Sex)),
			Address:   deref(req.Address),
			Notes:     deref(req.Notes),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(p))
	}
}

func getHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		p, err := svc.GetByID(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if !CanView(p, claims.UserID, claims.Role.IsStaffLevel()) {
			// no filtramos existencia
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(p))
	}
}

// updateHandler godoc
// @Summary Actualizar paciente (PATCH)
// @Tags patients
// @Accept json
// @Produce json
// @Param patientID path string true "Patient ID"
// @Param payload body patientRequest true "Campos a modificar"
// @Success 200 {object} patientResponse
// @Router /patients/{patientID} [patch]
func updateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		cur, err := svc.GetByID(r.Context(), chi.URLParam(r, "patientID"))
		if err != nil {
			writeError(w, err)
			return
		}
		if !CanView(cur, claims.UserID, claims.Role.IsStaffLevel()) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		var req patientRequest
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		// Las notas clínicas sólo las toca el staff
		if !claims.Role.IsStaffLevel() && req.Notes != nil {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		bd, err := parseDate(req.BirthDate)
		if err != nil {
			http.Error(w, "invalid birth_date", http.StatusBadRequest)
			return
		}
		var sex *Sex
		if req.Sex != nil {
			v := Sex(*req.Sex)
			sex = &v
		}

		p, err := svc.Update(r.Context(), cur.ID, UpdateInput{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Email:     req.Email,
			Phone:     req.Phone,
			BirthDate: bd,
			Sex:       sex,
			Address:   req.Address,
			Notes:     req.Notes,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(p))
	}
}

func mePatientHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		p, err := svc.GetByUserID(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(p))
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseDate(v *string) (*time.Time, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(*v))
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func toResponse(p Patient) patientResponse {
	out := patientResponse{
		ID:        p.ID,
		UserID:    p.UserID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     p.Phone,
		Sex:       string(p.Sex),
		Address:   p.Address,
		Notes:     p.Notes,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.BirthDate != nil {
		out.BirthDate = p.BirthDate.Format(time.DateOnly)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
