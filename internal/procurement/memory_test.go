package procurement

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/purchasing/internal/inventory"
	"github.com/odyssey-erp/purchasing/internal/shared"
	"github.com/odyssey-erp/purchasing/internal/suppliers"
)

type memoryState struct {
	poSeq, itemSeq, receiptSeq, lineSeq, movementSeq, numberSeq, grnSeq int64

	pos       map[int64]PurchaseOrder
	receipts  []GoodsReceipt
	movements []inventory.Movement
	audits    []shared.AuditLog
}

func (s memoryState) clone() memoryState {
	out := s
	out.pos = make(map[int64]PurchaseOrder, len(s.pos))
	for id, po := range s.pos {
		po.Items = append([]Item(nil), po.Items...)
		out.pos[id] = po
	}
	out.receipts = make([]GoodsReceipt, len(s.receipts))
	for i, rc := range s.receipts {
		rc.Lines = append([]ReceiptLine(nil), rc.Lines...)
		out.receipts[i] = rc
	}
	out.movements = append([]inventory.Movement(nil), s.movements...)
	out.audits = append([]shared.AuditLog(nil), s.audits...)
	return out
}

// withReceived fills item received totals from stored receipt lines.
func (s memoryState) withReceived(po PurchaseOrder) PurchaseOrder {
	po.Items = append([]Item(nil), po.Items...)
	for idx := range po.Items {
		item := &po.Items[idx]
		item.QuantityGood, item.QuantityDamaged, item.QuantityRejected = decimal.Zero, decimal.Zero, decimal.Zero
		for _, rc := range s.receipts {
			if rc.POID != po.ID {
				continue
			}
			for _, line := range rc.Lines {
				if line.POItemID == item.ID {
					item.addDisposition(line.QualityStatus, line.QuantityReceived)
				}
			}
		}
		item.QuantityRemaining = item.Remaining()
	}
	return po
}

type memoryRepo struct {
	mu    sync.Mutex
	state memoryState
	// failInsertReceipt makes InsertReceipt fail after the PO row was read.
	failInsertReceipt error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: memoryState{pos: make(map[int64]PurchaseOrder)}}
}

type memoryTx struct {
	repo  *memoryRepo
	state *memoryState
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	working := m.state.clone()
	if err := fn(ctx, &memoryTx{repo: m, state: &working}); err != nil {
		return err
	}
	m.state = working
	return nil
}

func (m *memoryRepo) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	po, ok := m.state.pos[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return m.state.withReceived(po), nil
}

func (m *memoryRepo) ListPOs(ctx context.Context, filters ListFilters) ([]PurchaseOrder, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PurchaseOrder
	for _, po := range m.state.pos {
		if filters.Status != "" && po.Status != filters.Status {
			continue
		}
		if filters.SupplierID > 0 && po.SupplierID != filters.SupplierID {
			continue
		}
		if filters.From != nil && po.OrderDate.Before(*filters.From) {
			continue
		}
		if filters.To != nil && !po.OrderDate.Before(*filters.To) {
			continue
		}
		po.Items = nil
		out = append(out, po)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) ListReceipts(ctx context.Context, poID int64) ([]GoodsReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []GoodsReceipt
	for _, rc := range m.state.receipts {
		if rc.POID == poID {
			out = append(out, rc)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetReceipt(ctx context.Context, poID, receiptID int64) (GoodsReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rc := range m.state.receipts {
		if rc.ID == receiptID && rc.POID == poID {
			return rc, nil
		}
	}
	return GoodsReceipt{}, ErrReceiptNotFound
}

func (m *memoryRepo) snapshot() memoryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (t *memoryTx) NextPONumber(ctx context.Context, at time.Time) (string, error) {
	t.state.numberSeq++
	return FormatNumber("PO", at, t.state.numberSeq), nil
}

func (t *memoryTx) NextGRNNumber(ctx context.Context, at time.Time) (string, error) {
	t.state.grnSeq++
	return FormatNumber("GRN", at, t.state.grnSeq), nil
}

func (t *memoryTx) GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := t.state.pos[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return t.state.withReceived(po), nil
}

func (t *memoryTx) InsertPO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	t.state.poSeq++
	po.ID = t.state.poSeq
	po.Version = 1
	po.CreatedAt = po.OrderDate
	po.UpdatedAt = po.OrderDate
	po.Items = nil
	t.state.pos[po.ID] = po
	return po, nil
}

func (t *memoryTx) ReplaceItems(ctx context.Context, poID int64, items []Item) ([]Item, error) {
	po, ok := t.state.pos[poID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]Item, len(items))
	for i, item := range items {
		t.state.itemSeq++
		item.ID = t.state.itemSeq
		item.POID = poID
		out[i] = item
	}
	po.Items = out
	t.state.pos[poID] = po
	return append([]Item(nil), out...), nil
}

func (t *memoryTx) UpdatePO(ctx context.Context, po PurchaseOrder, expectedVersion int64) (PurchaseOrder, error) {
	stored, ok := t.state.pos[po.ID]
	if !ok || stored.Version != expectedVersion {
		return PurchaseOrder{}, ErrVersionConflict
	}
	po.Items = stored.Items
	po.Receipts = nil
	po.Version = expectedVersion + 1
	po.UpdatedAt = time.Now()
	t.state.pos[po.ID] = po
	return po, nil
}

func (t *memoryTx) DeletePO(ctx context.Context, id int64, expectedVersion int64) error {
	stored, ok := t.state.pos[id]
	if !ok || stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	delete(t.state.pos, id)
	return nil
}

func (t *memoryTx) InsertReceipt(ctx context.Context, rc GoodsReceipt) (GoodsReceipt, error) {
	if t.repo.failInsertReceipt != nil {
		return GoodsReceipt{}, t.repo.failInsertReceipt
	}
	t.state.receiptSeq++
	rc.ID = t.state.receiptSeq
	rc.Lines = append([]ReceiptLine(nil), rc.Lines...)
	for i := range rc.Lines {
		t.state.lineSeq++
		rc.Lines[i].ID = t.state.lineSeq
		rc.Lines[i].ReceiptID = rc.ID
	}
	t.state.receipts = append(t.state.receipts, rc)
	return rc, nil
}

func (t *memoryTx) StageMovements(ctx context.Context, movements []inventory.Movement) ([]inventory.Movement, error) {
	out := make([]inventory.Movement, len(movements))
	for i, m := range movements {
		t.state.movementSeq++
		m.ID = t.state.movementSeq
		out[i] = m
	}
	t.state.movements = append(t.state.movements, out...)
	return out, nil
}

func (t *memoryTx) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	t.state.audits = append(t.state.audits, log)
	return nil
}

type stubSuppliers map[int64]suppliers.Supplier

func (s stubSuppliers) Get(ctx context.Context, id int64) (suppliers.Supplier, error) {
	sup, ok := s[id]
	if !ok {
		return suppliers.Supplier{}, suppliers.ErrNotFound
	}
	return sup, nil
}

type stubGateway struct {
	mu      sync.Mutex
	err     error
	applied []inventory.Movement
	pending []int64
}

func (g *stubGateway) Apply(ctx context.Context, movements []inventory.Movement) (inventory.ApplyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return inventory.ApplyResult{}, g.err
	}
	g.applied = append(g.applied, movements...)
	return inventory.ApplyResult{Applied: len(movements)}, nil
}

func (g *stubGateway) ApplyPending(ctx context.Context, receiptID int64) (inventory.ApplyResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.pending = append(g.pending, receiptID)
	return inventory.ApplyResult{Applied: 1}, nil
}

type stubNotifier struct {
	mu        sync.Mutex
	sent      []int64
	completed []int64
}

func (n *stubNotifier) PurchaseOrderSent(ctx context.Context, po PurchaseOrder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, po.ID)
	return nil
}

func (n *stubNotifier) ReceiptCompleted(ctx context.Context, po PurchaseOrder, receipt GoodsReceipt) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, receipt.ID)
	return nil
}

type stubReconciler struct {
	mu       sync.Mutex
	receipts []int64
}

func (r *stubReconciler) EnqueueReconcile(ctx context.Context, poID, receiptID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts = append(r.receipts, receiptID)
	return nil
}

type busyLocker struct{}

func (busyLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	return nil, shared.ErrLockNotObtained
}

type countingMetrics struct {
	mu          sync.Mutex
	transitions map[string]int
	receipts    map[string]int
	lockFails   int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{transitions: map[string]int{}, receipts: map[string]int{}}
}

func (m *countingMetrics) POTransition(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitions[status]++
}

func (m *countingMetrics) ReceiptSubmitted(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[status]++
}

func (m *countingMetrics) LockFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockFails++
}

var errGatewayDown = errors.New("inventory unavailable")
