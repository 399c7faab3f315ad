package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/shopcore-ng/commerce-core/internal/reconciliation/application"
)

// Handler exposes the operator surface: manual and emergency reconciliation
// runs. Customer traffic never reaches this service.
type Handler struct {
	log    *slog.Logger
	engine *application.Engine
	tracer trace.Tracer
}

func NewHandler(log *slog.Logger, engine *application.Engine) *Handler {
	return &Handler{
		log:    log,
		engine: engine,
		tracer: otel.Tracer("reconciliation-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/reconcile", h.reconcile)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}

type reconcileReq struct {
	Mode          string `json:"mode,omitempty"` // manual (default) or emergency
	LookbackHours int    `json:"lookback_hours,omitempty"`
	BatchSize     int    `json:"batch_size,omitempty"`
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ManualReconcile")
	defer span.End()

	var req reconcileReq
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}

	opts := application.RunOptions{OnlyUnconfirmed: true}
	if req.Mode == "emergency" {
		opts = application.EmergencyOptions()
	}
	if req.LookbackHours > 0 {
		opts.Lookback = time.Duration(req.LookbackHours) * time.Hour
	}
	if req.BatchSize > 0 {
		opts.BatchSize = req.BatchSize
	}

	h.log.Info("manual reconciliation requested", "mode", req.Mode, "lookback_hours", req.LookbackHours)

	report, err := h.engine.Run(ctx, opts)
	if err != nil {
		h.log.Error("manual reconciliation failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(report)
}
