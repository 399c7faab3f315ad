package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopcore-ng/commerce-core/internal/inventory/application"
	"github.com/shopcore-ng/commerce-core/internal/inventory/domain"
)

// Handler is the thin HTTP surface the checkout and admin collaborators call.
type Handler struct {
	log     *slog.Logger
	manager *application.ReservationManager
	mutator *application.StockMutator
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, manager *application.ReservationManager, mutator *application.StockMutator) *Handler {
	return &Handler{
		log:     log,
		manager: manager,
		mutator: mutator,
		tracer:  otel.Tracer("inventory-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/reservations", h.reserve)
	r.Post("/reservations/bulk", h.bulkReserve)
	r.Delete("/reservations/{id}", h.release)
	r.Delete("/orders/{orderID}/reservations", h.releaseByOrder)
	r.Get("/products/{id}/availability", h.availability)
	r.Post("/movements", h.applyMovement)
	r.Post("/movements/bulk", h.bulkAdjust)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}

type reserveReq struct {
	ProductID  string  `json:"product_id"`
	Quantity   int     `json:"quantity"`
	OrderID    *string `json:"order_id,omitempty"`
	TTLMinutes int     `json:"ttl_minutes,omitempty"`
}

type reservationResp struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Reserve")
	defer span.End()

	var req reserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	hold, err := h.manager.Reserve(ctx, req.ProductID, req.Quantity, req.OrderID, time.Duration(req.TTLMinutes)*time.Minute)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(reservationResp{
		ID: hold.ID, ProductID: hold.ProductID, Quantity: hold.Quantity, ExpiresAt: hold.ExpiresAt,
	})
}

type bulkReserveReq struct {
	OrderID    *string                   `json:"order_id,omitempty"`
	TTLMinutes int                       `json:"ttl_minutes,omitempty"`
	Items      []application.ReserveItem `json:"items"`
}

func (h *Handler) bulkReserve(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "BulkReserve")
	defer span.End()

	var req bulkReserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	holds, err := h.manager.BulkReserve(ctx, req.Items, req.OrderID, time.Duration(req.TTLMinutes)*time.Minute)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]reservationResp, 0, len(holds))
	for _, hold := range holds {
		out = append(out, reservationResp{ID: hold.ID, ProductID: hold.ProductID, Quantity: hold.Quantity, ExpiresAt: hold.ExpiresAt})
	}
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"reservations": out})
}

func (h *Handler) release(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Release")
	defer span.End()

	ok, err := h.manager.Release(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"released": ok})
}

func (h *Handler) releaseByOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReleaseByOrder")
	defer span.End()

	ok, err := h.manager.ReleaseByOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"released": ok})
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Availability")
	defer span.End()

	a, err := h.manager.Availability(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"product_id": a.ProductID,
		"on_hand":    a.OnHand,
		"reserved":   a.Reserved,
		"available":  a.Available(),
	})
}

type movementReq struct {
	ProductID string `json:"product_id"`
	Type      string `json:"type"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason,omitempty"`
	Reference string `json:"reference,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
}

func (h *Handler) applyMovement(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ApplyMovement")
	defer span.End()

	var req movementReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	level, err := h.mutator.ApplyMovement(ctx, application.MovementRequest{
		ProductID: req.ProductID,
		Type:      domain.MovementType(req.Type),
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		Reference: req.Reference,
		CreatedBy: req.CreatedBy,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"product_id": level.ProductID,
		"quantity":   level.Quantity,
		"low_stock":  level.LowStock,
	})
}

type bulkAdjustReq struct {
	BatchReason string `json:"batch_reason"`
	CreatedBy   string `json:"created_by"`
	Updates     []struct {
		ProductID string `json:"product_id"`
		Type      string `json:"type"`
		Quantity  int    `json:"quantity"`
	} `json:"updates"`
}

func (h *Handler) bulkAdjust(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "BulkAdjust")
	defer span.End()

	var req bulkAdjustReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	items := make([]application.BulkAdjustItem, 0, len(req.Updates))
	for _, u := range req.Updates {
		items = append(items, application.BulkAdjustItem{
			ProductID: u.ProductID,
			Type:      domain.MovementType(u.Type),
			Quantity:  u.Quantity,
		})
	}
	res, err := h.mutator.BulkAdjust(ctx, items, req.BatchReason, req.CreatedBy)
	if err != nil {
		h.writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(res)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrProductNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		h.log.Error("inventory request failed", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
