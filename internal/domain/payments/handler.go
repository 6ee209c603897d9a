package payments

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
	r.Route("/payments", func(pr chi.Router) {
		// el proveedor llama sin sesión; el evento se valida contra su API
		pr.Post("/webhooks/omise", webhookHandler(svc))

		pr.Group(func(ar chi.Router) {
			ar.Use(middleware.RequireAuth)
			ar.Get("/", listHandler(svc))
			ar.Get("/{paymentID}", getHandler(svc))
			ar.Get("/{paymentID}/receipt", receiptHandler(svc))
			ar.Post("/{paymentID}/card", cardHandler(svc))
			ar.With(middleware.RequireRole(auth.RoleStaff, auth.RoleAdmin)).Post("/{paymentID}/cash", cashHandler(svc))
		})
	})
}

type cardRequest struct {
	Token string `json:"token"`
}

type paymentResponse struct {
	ID            string     `json:"id"`
	PatientID     string     `json:"patient_id"`
	VisitID       string     `json:"visit_id,omitempty"`
	AppointmentID string     `json:"appointment_id,omitempty"`
	Description   string     `json:"description,omitempty"`
	AmountCents   int64      `json:"amount_cents"`
	RefundedCents int64      `json:"refunded_cents"`
	Currency      string     `json:"currency"`
	Method        string     `json:"method,omitempty"`
	Status        string     `json:"status"`
	Provider      string     `json:"provider,omitempty"`
	ProviderRef   string     `json:"provider_ref,omitempty"`
	FailureMsg    string     `json:"failure_message,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// listHandler godoc
// @Summary Listar pagos
// @Description El paciente ve solo los suyos.
// @Tags payments
// @Produce json
// @Param status query string false "unpaid|pending|paid|failed|refunded"
// @Param patient_id query string false "solo staff"
// @Success 200 {array} paymentResponse
// @Router /payments [get]
func listHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		q := r.URL.Query()
		f := Filter{PatientID: q.Get("patient_id"), Status: Status(q.Get("status"))}
		f.Limit, _ = strconv.Atoi(q.Get("limit"))

		if !claims.Role.IsStaffLevel() {
			p, err := svc.PatientForUser(r.Context(), claims.UserID)
			if err != nil {
				writeJSON(w, http.StatusOK, []paymentResponse{})
				return
			}
			f.PatientID = p.ID
		}

		items, err := svc.List(r.Context(), f)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]paymentResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		p, err := svc.GetFor(r.Context(), claims, chi.URLParam(r, "paymentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(p))
	}
}

// receiptHandler godoc
// @Summary Recibo de pago
// @Tags payments
// @Produce json
// @Param paymentID path string true "Payment ID"
// @Success 200 {object} Receipt
// @Failure 409 {string} string "invalid payment state"
// @Router /payments/{paymentID}/receipt [get]
func receiptHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		rc, err := svc.Receipt(r.Context(), claims, chi.URLParam(r, "paymentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rc)
	}
}

// cardHandler godoc
// @Summary Pagar con tarjeta
// @Tags payments
// @Accept json
// @Produce json
// @Param paymentID path string true "Payment ID"
// @Param payload body cardRequest true "Token de tarjeta"
// @Success 200 {object} paymentResponse
// @Failure 502 {string} string "payment gateway error"
// @Router /payments/{paymentID}/card [post]
func cardHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		var req cardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		p, err := svc.ChargeCard(r.Context(), claims, chi.URLParam(r, "paymentID"), req.Token)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(p))
	}
}

func cashHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		p, err := svc.RecordCash(r.Context(), claims.UserID, chi.URLParam(r, "paymentID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(p))
	}
}

type webhookEvent struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

func webhookHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()

		var ev webhookEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.ID == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_, err := svc.HandleEvent(r.Context(), ev.ID)
		switch {
		case err == nil, errors.Is(err, ErrNotFound):
			// cargos que no son nuestros se ignoran
			w.WriteHeader(http.StatusOK)
		case errors.Is(err, ErrGateway):
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		default:
			writeError(w, err)
		}
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
	case errors.Is(err, ErrBadState), errors.Is(err, ErrOverRefund):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrGateway):
		http.Error(w, "payment gateway error", http.StatusBadGateway)
	case errors.Is(err, ErrGatewayUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toResponse(p Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		PatientID:     p.PatientID,
		VisitID:       p.VisitID,
		AppointmentID: p.AppointmentID,
		Description:   p.Description,
		AmountCents:   p.AmountCents,
		RefundedCents: p.RefundedCents,
		Currency:      p.Currency,
		Method:        string(p.Method),
		Status:        string(p.Status),
		Provider:      p.Provider,
		ProviderRef:   p.ProviderRef,
		FailureMsg:    p.FailureMsg,
		PaidAt:        p.PaidAt,
		CreatedAt:     p.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
