package procurement

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/purchasing/internal/platform/httpx"
	"github.com/odyssey-erp/purchasing/internal/shared"
)

// Handler serves purchase orders and goods receipts over JSON.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers purchase order routes. write guards mutating routes.
func (h *Handler) MountRoutes(r chi.Router, write func(http.Handler) http.Handler) {
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleShow)
	r.Get("/{id}/receipts", h.handleListReceipts)
	r.Group(func(r chi.Router) {
		r.Use(write)
		r.Post("/", h.handleCreate)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/approve", h.handleApprove)
		r.Post("/{id}/send", h.handleSend)
		r.Post("/{id}/cancel", h.handleCancel)
		r.Post("/{id}/payment-status", h.handlePaymentStatus)
		r.Post("/{id}/receive", h.handleReceive)
		r.Post("/{id}/receipts/{receiptID}/reconcile", h.handleReconcile)
	})
}

type listResponse struct {
	Data       []PurchaseOrder   `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	supplierID, _ := strconv.ParseInt(q.Get("supplier_id"), 10, 64)
	from, err := parseDate("from", q.Get("from"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	to, err := parseDate("to", q.Get("to"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if to != nil {
		// the to day is inclusive
		end := to.Add(24 * time.Hour)
		to = &end
	}
	filters := ListFilters{
		Status:     Status(q.Get("status")),
		SupplierID: supplierID,
		Search:     q.Get("search"),
		From:       from,
		To:         to,
		Page:       page,
		Limit:      limit,
		SortBy:     q.Get("sort"),
		SortDir:    q.Get("dir"),
	}
	orders, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, r, "list purchase orders failed", err)
		return
	}
	if orders == nil {
		orders = []PurchaseOrder{}
	}
	norm := shared.ListFilters{Page: page, Limit: limit}.Normalize()
	httpx.JSON(w, http.StatusOK, listResponse{Data: orders, Pagination: shared.NewPagination(norm.Page, norm.Limit, total)})
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	po, err, _ := singleflightLoad(r.Context(), "po:"+strconv.FormatInt(id, 10), func(ctx context.Context) (PurchaseOrder, error) {
		return h.service.Get(ctx, id)
	})
	if err != nil {
		h.fail(w, r, "get purchase order failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handleListReceipts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list goods receipts failed", err)
		return
	}
	receipts := po.Receipts
	if receipts == nil {
		receipts = []GoodsReceipt{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": receipts})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.Create(r.Context(), input, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "create purchase order failed", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.UpdateDraft(r.Context(), id, input, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "update purchase order failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteDraft(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, r, "delete purchase order failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve purchase order failed", h.service.Approve)
}

func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "send purchase order failed", h.service.Send)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	var input CancelInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.Cancel(r.Context(), id, input.Reason, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "cancel purchase order failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	var input PaymentStatusInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	po, err := h.service.UpdatePaymentStatus(r.Context(), id, input.PaymentStatus, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "update payment status failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	var input ReceiveInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.SubmitReceipt(r.Context(), id, input, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, "submit goods receipt failed", err)
		return
	}
	status := http.StatusCreated
	if result.ReconcilePending {
		status = http.StatusAccepted
	}
	httpx.JSON(w, status, result)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	receiptID, ok := h.parseID(w, r, "receiptID")
	if !ok {
		return
	}
	res, err := h.service.ReconcileReceipt(r.Context(), id, receiptID)
	if err != nil {
		h.fail(w, r, "reconcile goods receipt failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, msg string, fn func(context.Context, int64, int64) (PurchaseOrder, error)) {
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	po, err := fn(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, r, msg, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		if param == "receiptID" {
			httpx.RespondError(w, ErrReceiptNotFound)
		} else {
			httpx.RespondError(w, ErrNotFound)
		}
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err), slog.String("path", r.URL.Path))
	}
	httpx.RespondError(w, err)
}

func parseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, ErrInvalidFilter.WithFields(map[string]string{field: "must be a date in YYYY-MM-DD format"})
	}
	return &t, nil
}
