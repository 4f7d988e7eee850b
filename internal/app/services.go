package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/purchasing/internal/audit"
	"github.com/odyssey-erp/purchasing/internal/inventory"
	"github.com/odyssey-erp/purchasing/internal/observability"
	"github.com/odyssey-erp/purchasing/internal/procurement"
	"github.com/odyssey-erp/purchasing/internal/shared"
	"github.com/odyssey-erp/purchasing/internal/suppliers"
)

// Services groups the domain services shared by the server and the worker.
type Services struct {
	Suppliers   *suppliers.Service
	Inventory   *inventory.Service
	Procurement *procurement.Service
	Audit       *audit.Service
}

// ServicesParams carries infrastructure for NewServices.
type ServicesParams struct {
	Config     *Config
	Logger     *slog.Logger
	Pool       *pgxpool.Pool
	Redis      redis.UniversalClient
	Metrics    *observability.Metrics
	Notifier   procurement.Notifier
	Reconciler procurement.Reconciler
}

// NewServices wires repositories and services over one pool.
func NewServices(p ServicesParams) *Services {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	supplierService := suppliers.NewService(suppliers.NewRepository(p.Pool), logger)

	inventoryRepo := inventory.NewRepository(p.Pool)
	inventoryService := inventory.NewService(
		inventoryRepo,
		shared.NewAuditLogger(p.Pool),
		inventory.NewThresholdEvaluator(inventoryRepo, logger),
		p.Metrics,
		logger,
		inventory.ServiceConfig{CostPrecision: p.Config.InventoryCostPrecision},
	)

	procurementService := procurement.NewService(procurement.NewRepository(p.Pool), supplierService, inventoryService, procurement.Options{
		Locker:     NewLocker(p.Config, p.Redis),
		LockTTL:    p.Config.POLockTTL,
		Notifier:   p.Notifier,
		Reconciler: p.Reconciler,
		Metrics:    p.Metrics,
		Logger:     logger,
	})

	return &Services{
		Suppliers:   supplierService,
		Inventory:   inventoryService,
		Procurement: procurementService,
		Audit:       audit.NewService(audit.NewRepository(p.Pool)),
	}
}

// NewLocker selects the per purchase order lock backend.
func NewLocker(cfg *Config, client redis.UniversalClient) shared.Locker {
	if cfg != nil && cfg.LockBackend == LockBackendRedis && client != nil {
		return shared.NewRedisLocker(client)
	}
	return shared.NewLocalLocker()
}
