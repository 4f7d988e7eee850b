package inventory

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/purchasing/internal/platform/httpx"
	"github.com/odyssey-erp/purchasing/internal/shared"
)

// Handler wires HTTP endpoints for inventory reads.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items/{id}", h.handleBalance)
	r.Get("/items/{id}/movements", h.handleStockCard)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, ErrItemNotFound)
		return
	}
	balance, err := h.service.Balance(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, balance)
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, ErrItemNotFound)
		return
	}
	q := r.URL.Query()
	filter := StockCardFilter{ItemID: id}
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	if raw := q.Get("from"); raw != "" {
		if filter.From, err = time.Parse(time.RFC3339, raw); err != nil {
			httpx.RespondError(w, shared.NewDomainError(shared.ErrValidation, "INVALID_DATE", "from must be RFC3339"))
			return
		}
	}
	if raw := q.Get("to"); raw != "" {
		if filter.To, err = time.Parse(time.RFC3339, raw); err != nil {
			httpx.RespondError(w, shared.NewDomainError(shared.ErrValidation, "INVALID_DATE", "to must be RFC3339"))
			return
		}
	}
	entries, err := h.service.StockCard(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if entries == nil {
		entries = []StockCardEntry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error("inventory request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
