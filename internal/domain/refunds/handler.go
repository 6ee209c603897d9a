package refunds

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"dental-clinic/internal/domain/payments"
	"dental-clinic/internal/middleware"
	"dental-clinic/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/refunds", func(rr chi.Router) {
		rr.Use(middleware.RequireAuth)
		rr.With(middleware.RequireRole(auth.RolePatient)).Post("/", requestHandler(svc))
		rr.Get("/", listHandler(svc))
	})

	r.Route("/admin/refunds", func(ar chi.Router) {
		ar.Use(middleware.RequireRole(auth.RoleAdmin))
		ar.Post("/{refundID}/approve", approveHandler(svc))
		ar.Post("/{refundID}/reject", rejectHandler(svc))
		ar.Post("/{refundID}/processed", processedHandler(svc))
	})
}

type createRequest struct {
	PaymentID   string `json:"payment_id"`
	AmountCents int64  `json:"amount_cents"`
	Reason      string `json:"reason"`
}

type reviewRequest struct {
	Note string `json:"note"`
}

type refundResponse struct {
	ID          string     `json:"id"`
	PaymentID   string     `json:"payment_id"`
	PatientID   string     `json:"patient_id"`
	AmountCents int64      `json:"amount_cents"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	ReviewedBy  string     `json:"reviewed_by,omitempty"`
	ReviewNote  string     `json:"review_note,omitempty"`
	ProviderRef string     `json:"provider_ref,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// requestHandler godoc
// @Summary Solicitar reembolso
// @Tags refunds
// @Accept json
// @Produce json
// @Param payload body createRequest true "Solicitud"
// @Success 201 {object} refundResponse
// @Failure 409 {string} string "payment already has an open refund request"
// @Router /refunds [post]
func requestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		p, err := svc.PatientForUser(r.Context(), claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		rq, err := svc.Request(r.Context(), RequestInput{
			PatientID:   p.ID,
			PaymentID:   req.PaymentID,
			AmountCents: req.AmountCents,
			Reason:      req.Reason,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toResponse(rq))
	}
}

// listHandler godoc
// @Summary Listar solicitudes de reembolso
// @Tags refunds
// @Produce json
// @Param status query string false "pending|approved|rejected|processed"
// @Success 200 {array} refundResponse
// @Router /refunds [get]
func listHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var (
			items []Request
			err   error
		)
		if claims.Role.IsStaffLevel() {
			items, err = svc.List(r.Context(), Status(r.URL.Query().Get("status")))
		} else {
			p, perr := svc.PatientForUser(r.Context(), claims.UserID)
			if perr != nil {
				writeJSON(w, http.StatusOK, []refundResponse{})
				return
			}
			items, err = svc.ListByPatient(r.Context(), p.ID)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]refundResponse, 0, len(items))
		for _, rq := range items {
			out = append(out, toResponse(rq))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// approveHandler godoc
// @Summary Aprobar reembolso
// @Description Tarjeta: se devuelve por el gateway. Efectivo: queda aprobado hasta marcarlo entregado.
// @Tags refunds
// @Accept json
// @Produce json
// @Param refundID path string true "Refund ID"
// @Param payload body reviewRequest false "Nota"
// @Success 200 {object} refundResponse
// @Router /admin/refunds/{refundID}/approve [post]
func approveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		req, ok := decodeReview(w, r)
		if !ok {
			return
		}
		rq, err := svc.Approve(r.Context(), claims.UserID, chi.URLParam(r, "refundID"), req.Note)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(rq))
	}
}

func rejectHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		req, ok := decodeReview(w, r)
		if !ok {
			return
		}
		rq, err := svc.Reject(r.Context(), claims.UserID, chi.URLParam(r, "refundID"), req.Note)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(rq))
	}
}

func processedHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		rq, err := svc.MarkProcessed(r.Context(), claims.UserID, chi.URLParam(r, "refundID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponse(rq))
	}
}

func decodeReview(w http.ResponseWriter, r *http.Request) (reviewRequest, bool) {
	var req reviewRequest
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
	case errors.Is(err, ErrInvalidInput), errors.Is(err, payments.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrNotFound), errors.Is(err, payments.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrBadState), errors.Is(err, ErrOpenRequest), errors.Is(err, ErrNotRefundable),
		errors.Is(err, payments.ErrBadState), errors.Is(err, payments.ErrOverRefund):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, payments.ErrGateway):
		http.Error(w, "payment gateway error", http.StatusBadGateway)
	case errors.Is(err, payments.ErrGatewayUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toResponse(r Request) refundResponse {
	return refundResponse{
		ID:          r.ID,
		PaymentID:   r.PaymentID,
		PatientID:   r.PatientID,
		AmountCents: r.AmountCents,
		Reason:      r.Reason,
		Status:      string(r.Status),
		ReviewedBy:  r.ReviewedBy,
		ReviewNote:  r.ReviewNote,
		ProviderRef: r.ProviderRef,
		CreatedAt:   r.CreatedAt,
		ProcessedAt: r.ProcessedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
