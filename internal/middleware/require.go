package middleware

import (
	"context"
	"net/http"

	"dental-clinic/internal/ports/auth"
)

// RequireAuth corta con 401 si no hay claims.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetClaims(r.Context()); !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole corta con 401 sin claims y 403 si el rol no está permitido.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	allowed := map[auth.Role]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DeviceApprover evita importar el paquete devices.
type DeviceApprover interface {
	IsApproved(ctx context.Context, deviceID, userID string) bool
}

// RequireApprovedDevice: el staff solo opera desde dispositivos aprobados.
// Admin, paciente y requests anónimos pasan; los guards de cada ruta deciden 401/403.
func RequireApprovedDevice(devices DeviceApprover) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if ok && claims.Role == auth.RoleStaff {
				if claims.DeviceID == "" || !devices.IsApproved(r.Context(), claims.DeviceID, claims.UserID) {
					http.Error(w, "device not approved", http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccountChecker evita importar el paquete users.
type AccountChecker interface {
	IsDeactivated(ctx context.Context, userID string) bool
}

// RequireActiveUser corta con 403 a las cuentas desactivadas aunque su token siga vigente.
func RequireActiveUser(accounts AccountChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := GetClaims(r.Context()); ok && accounts.IsDeactivated(r.Context(), claims.UserID) {
				http.Error(w, "account disabled", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
