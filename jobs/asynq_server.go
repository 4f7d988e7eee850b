package jobs

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/purchasing/internal/jobs"
	"github.com/odyssey-erp/purchasing/internal/procurement"
)

// Worker wraps the Asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      *slog.Logger
	Concurrency int
	Handlers    []TaskHandler
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	mux := asynq.NewServeMux()
	registered := 0
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		mux.HandleFunc(h.Type, h.Handler)
		registered++
	}
	if registered == 0 {
		return nil, errors.New("worker: no task handlers registered")
	}
	return &Worker{server: srv, mux: mux, logger: cfg.Logger}, nil
}

// Run starts processing jobs and shuts the server down on context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.logger.Info("worker started")
	<-ctx.Done()
	w.logger.Info("worker stopping")
	w.server.Shutdown()
	return ctx.Err()
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// Client submits jobs to the queue. It implements procurement.Notifier and
// procurement.Reconciler.
type Client struct {
	client  enqueuer
	metrics *jobmetrics.Metrics
}

var (
	_ procurement.Notifier   = (*Client)(nil)
	_ procurement.Reconciler = (*Client)(nil)
)

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt, metrics *jobmetrics.Metrics) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client, metrics: metrics}, nil
}

// PurchaseOrderSent enqueues the supplier notification for a sent purchase order.
func (c *Client) PurchaseOrderSent(ctx context.Context, po procurement.PurchaseOrder) error {
	payload := PurchaseOrderSentPayload{
		POID:       po.ID,
		PONumber:   po.Number,
		SupplierID: po.SupplierID,
		Total:      po.Total.String(),
	}
	if po.SentAt != nil {
		payload.SentAt = *po.SentAt
	}
	task, err := NewPurchaseOrderSentTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// ReceiptCompleted enqueues the staff notification for a fully received purchase order.
func (c *Client) ReceiptCompleted(ctx context.Context, po procurement.PurchaseOrder, receipt procurement.GoodsReceipt) error {
	task, err := NewReceiptCompletedTask(ReceiptCompletedPayload{
		POID:             po.ID,
		PONumber:         po.Number,
		ReceiptID:        receipt.ID,
		GRNNumber:        receipt.Number,
		InspectionStatus: string(receipt.InspectionStatus),
	})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// EnqueueReconcile schedules a gateway retry for a receipt.
func (c *Client) EnqueueReconcile(ctx context.Context, poID, receiptID int64) error {
	task, err := NewInventoryReconcileTask(InventoryReconcilePayload{POID: poID, ReceiptID: receiptID})
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task) error {
	if c == nil || c.client == nil {
		return errors.New("jobs: client not configured")
	}
	_, err := c.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		err = nil
	}
	c.metrics.Enqueued(task.Type(), err)
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	inspector *asynq.Inspector
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"queue":"default","pending":0}`))
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	pending := 0
	queueName := QueueDefault
	if info != nil {
		pending = int(info.Pending)
		queueName = info.Queue
	}
	_, _ = w.Write([]byte(`{"queue":"` + queueName + `","pending":` + itoa(pending) + `}`))
}

func itoa(i int) string {
	return strconv.FormatInt(int64(i), 10)
}
