package inventory

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

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/admin/inventory", func(ir chi.Router) {
		ir.Use(middleware.RequireRole(auth.RoleStaff, auth.RoleAdmin))

		ir.Get("/stock", stockHandler(svc))
		ir.Get("/expiring", expiringHandler(svc))

		ir.Get("/items", listItemsHandler(svc))
		ir.With(middleware.RequireRole(auth.RoleAdmin)).Post("/items", createItemHandler(svc))
		ir.With(middleware.RequireRole(auth.RoleAdmin)).Patch("/items/{itemID}", updateItemHandler(svc))

		ir.Get("/items/{itemID}/batches", listBatchesHandler(svc))
		ir.Post("/items/{itemID}/batches", receiveHandler(svc))
		ir.Post("/items/{itemID}/consume", consumeHandler(svc))
		ir.Get("/items/{itemID}/movements", movementsHandler(svc))

		ir.Post("/batches/{batchID}/adjust", adjustHandler(svc))
	})
}

type itemRequest struct {
	SKU               string `json:"sku"`
	Name              string `json:"name"`
	Unit              string `json:"unit"`
	LowStockThreshold int    `json:"low_stock_threshold"`
}

type itemUpdateRequest struct {
	Name              *string `json:"name"`
	Unit              *string `json:"unit"`
	LowStockThreshold *int    `json:"low_stock_threshold"`
	IsActive          *bool   `json:"is_active"`
}

type itemResponse struct {
	ID                string    `json:"id"`
	SKU               string    `json:"sku"`
	Name              string    `json:"name"`
	Unit              string    `json:"unit"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type receiveRequest struct {
	LotNumber string `json:"lot_number"`
	Supplier  string `json:"supplier"`
	CostCents int64  `json:"cost_cents"`
	Qty       int    `json:"qty"`
	ExpiresAt string `json:"expires_at"` // YYYY-MM-DD o RFC3339
}

type batchResponse struct {
	ID          string     `json:"id"`
	ItemID      string     `json:"item_id"`
	LotNumber   string     `json:"lot_number"`
	Supplier    string     `json:"supplier,omitempty"`
	CostCents   int64      `json:"cost_cents"`
	QtyReceived int        `json:"qty_received"`
	QtyOnHand   int        `json:"qty_on_hand"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
}

type consumeRequest struct {
	Qty       int    `json:"qty"`
	Reference string `json:"reference"`
}

type adjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

type movementResponse struct {
	ID        string    `json:"id"`
	ItemID    string    `json:"item_id"`
	BatchID   string    `json:"batch_id"`
	Type      string    `json:"type"`
	Qty       int       `json:"qty"`
	Reference string    `json:"reference,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type stockResponse struct {
	Item       itemResponse `json:"item"`
	OnHand     int          `json:"on_hand"`
	ExpiredQty int          `json:"expired_qty"`
	Low        bool         `json:"low"`
}

// stockHandler godoc
// @Summary Existencias por item
// @Tags inventory
// @Produce json
// @Success 200 {array} stockResponse
// @Router /admin/inventory/stock [get]
func stockHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lines, err := svc.Stock(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]stockResponse, 0, len(lines))
		for _, l := range lines {
			out = append(out, stockResponse{Item: toItemResponse(l.Item), OnHand: l.OnHand, ExpiredQty: l.ExpiredQty, Low: l.Low})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func expiringHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 30
		if v := r.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, "invalid days", http.StatusBadRequest)
				return
			}
			days = n
		}
		batches, err := svc.Expiring(r.Context(), days)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBatchResponses(batches))
	}
}

func listItemsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListItems(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]itemResponse, 0, len(items))
		for _, it := range items {
			out = append(out, toItemResponse(it))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// createItemHandler godoc
// @Summary Crear item de inventario
// @Tags inventory
// @Accept json
// @Produce json
// @Param payload body itemRequest true "Item"
// @Success 201 {object} itemResponse
// @Failure 409 {string} string "sku already exists"
// @Router /admin/inventory/items [post]
func createItemHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req itemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		it, err := svc.CreateItem(r.Context(), ItemInput(req))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toItemResponse(it))
	}
}

func updateItemHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req itemUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		it, err := svc.UpdateItem(r.Context(), chi.URLParam(r, "itemID"), ItemUpdate(req))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toItemResponse(it))
	}
}

func listBatchesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batches, err := svc.Batches(r.Context(), chi.URLParam(r, "itemID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBatchResponses(batches))
	}
}

// receiveHandler godoc
// @Summary Recibir lote
// @Tags inventory
// @Accept json
// @Produce json
// @Param itemID path string true "Item ID"
// @Param payload body receiveRequest true "Lote"
// @Success 201 {object} batchResponse
// @Router /admin/inventory/items/{itemID}/batches [post]
func receiveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req receiveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		exp, err := parseExpiry(req.ExpiresAt)
		if err != nil {
			http.Error(w, "invalid expires_at", http.StatusBadRequest)
			return
		}

		b, err := svc.Receive(r.Context(), ReceiveInput{
			ItemID:    chi.URLParam(r, "itemID"),
			LotNumber: req.LotNumber,
			Supplier:  req.Supplier,
			CostCents: req.CostCents,
			Qty:       req.Qty,
			ExpiresAt: exp,
			UserID:    claims.UserID,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toBatchResponse(b))
	}
}

func consumeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req consumeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		mvs, err := svc.Consume(r.Context(), []Line{{ItemID: chi.URLParam(r, "itemID"), Qty: req.Qty}}, req.Reference, claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toMovementResponses(mvs))
	}
}

func movementsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mvs, err := svc.Movements(r.Context(), chi.URLParam(r, "itemID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toMovementResponses(mvs))
	}
}

func adjustHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req adjustRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		b, err := svc.Adjust(r.Context(), chi.URLParam(r, "batchID"), req.Delta, req.Reason, claims.UserID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toBatchResponse(b))
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrConflict), errors.Is(err, ErrBadState),
		errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrStockChanged):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseExpiry(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func toItemResponse(it Item) itemResponse {
	return itemResponse{
		ID:                it.ID,
		SKU:               it.SKU,
		Name:              it.Name,
		Unit:              it.Unit,
		LowStockThreshold: it.LowStockThreshold,
		IsActive:          it.IsActive,
		CreatedAt:         it.CreatedAt,
		UpdatedAt:         it.UpdatedAt,
	}
}

func toBatchResponse(b Batch) batchResponse {
	return batchResponse(b)
}

func toBatchResponses(items []Batch) []batchResponse {
	out := make([]batchResponse, 0, len(items))
	for _, b := range items {
		out = append(out, toBatchResponse(b))
	}
	return out
}

func toMovementResponses(items []Movement) []movementResponse {
	out := make([]movementResponse, 0, len(items))
	for _, m := range items {
		out = append(out, movementResponse{
			ID:        m.ID,
			ItemID:    m.ItemID,
			BatchID:   m.BatchID,
			Type:      string(m.Type),
			Qty:       m.Qty,
			Reference: m.Reference,
			UserID:    m.UserID,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
