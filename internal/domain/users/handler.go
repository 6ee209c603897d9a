package users

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"dental-clinic/internal/domain/devices"
	"dental-clinic/internal/middleware"
	"dental-clinic/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Post("/auth/register", registerHandler(svc))
	r.Post("/auth/login", loginHandler(svc))

	r.Get("/me", meHandler(svc))
	r.Post("/me/password", changePasswordHandler(svc))

	r.Route("/admin/users", func(ar chi.Router) {
		ar.Use(middleware.RequireRole(auth.RoleAdmin))
		ar.Get("/", listHandler(svc))
		ar.Post("/", createStaffHandler(svc))
		ar.Post("/{userID}/status", setStatusHandler(svc))
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

type deviceMeta struct {
	Platform       string `json:"platform"`
	ClientDeviceID string `json:"client_device_id"`
}

type loginRequest struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Device   deviceMeta `json:"device"`
}

type loginResponse struct {
	Token    string       `json:"token,omitempty"`
	User     userResponse `json:"user"`
	DeviceID string       `json:"device_id,omitempty"`
}

type devicePendingResponse struct {
	Error    string `json:"error"`
	DeviceID string `json:"device_id,omitempty"`
}

type createStaffRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Role     string `json:"role"` // staff|admin
}

type statusRequest struct {
	Status string `json:"status"`
}

type passwordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	Status      string     `json:"status"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

type registerResponse struct {
	User      userResponse `json:"user"`
	PatientID string       `json:"patient_id"`
}

// registerHandler godoc
// @Summary Registro de paciente
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body registerRequest true "Cuenta"
// @Success 201 {object} registerResponse
// @Failure 409 {string} string "email already registered"
// @Router /auth/register [post]
func registerHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		u, p, err := svc.RegisterPatient(r.Context(), RegisterInput(req))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, registerResponse{User: toResponse(u), PatientID: p.ID})
	}
}

// loginHandler godoc
// @Summary Login (JWT)
// @Description Staff debe entrar desde un dispositivo aprobado; uno nuevo queda pendiente (403).
// @Tags auth
// @Accept json
// @Produce json
// @Param payload body loginRequest true "Credenciales"
// @Success 200 {object} loginResponse
// @Failure 401 {string} string "invalid credentials"
// @Failure 403 {object} devicePendingResponse
// @Router /auth/login [post]
func loginHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		res, err := svc.Login(r.Context(), LoginInput{
			Email:    req.Email,
			Password: req.Password,
			Device: devices.Meta{
				UserAgent:      r.UserAgent(),
				AcceptLanguage: r.Header.Get("Accept-Language"),
				Platform:       req.Device.Platform,
				ClientDeviceID: req.Device.ClientDeviceID,
			},
			IP: clientIP(r),
		})
		switch {
		case errors.Is(err, ErrDevicePending), errors.Is(err, ErrDeviceRejected):
			writeJSON(w, http.StatusForbidden, devicePendingResponse{Error: err.Error(), DeviceID: res.DeviceID})
			return
		case err != nil:
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, loginResponse{Token: res.Token, User: toResponse(res.User), DeviceID: res.DeviceID})
	}
}

func meHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		u, err := svc.Me(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(u))
	}
}

func changePasswordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req passwordRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := svc.ChangePassword(r.Context(), claims.UserID, req.OldPassword, req.NewPassword); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func listHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context(), auth.Role(r.URL.Query().Get("role")))
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]userResponse, 0, len(items))
		for _, u := range items {
			out = append(out, toResponse(u))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// createStaffHandler godoc
// @Summary Crear usuario staff/admin
// @Tags users
// @Accept json
// @Produce json
// @Param payload body createStaffRequest true "Usuario"
// @Success 201 {object} userResponse
// @Router /admin/users [post]
func createStaffHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req createStaffRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		u, err := svc.CreateStaff(r.Context(), claims, RegisterInput{
			Email:    req.Email,
			Password: req.Password,
			Name:     req.Name,
			Phone:    req.Phone,
		}, auth.Role(strings.ToLower(req.Role)))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(u))
	}
}

func setStatusHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req statusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		u, err := svc.SetStatus(r.Context(), claims, chi.URLParam(r, "userID"), Status(req.Status))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(u))
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrAccountDisabled):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrEmailTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// clientIP usa RemoteAddr; solo un proxy confiable puede reescribirlo (TrustedRealIP).
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func toResponse(u User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Role:        string(u.Role),
		Status:      string(u.Status),
		Name:        u.Name,
		Phone:       u.Phone,
		CreatedAt:   u.CreatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
