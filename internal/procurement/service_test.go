package procurement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/purchasing/internal/inventory"
	"github.com/odyssey-erp/purchasing/internal/shared"
	"github.com/odyssey-erp/purchasing/internal/suppliers"
)

const (
	activeSupplier  int64 = 1
	blockedSupplier int64 = 2
	buyer           int64 = 7
)

type fixture struct {
	svc        *Service
	repo       *memoryRepo
	gateway    *stubGateway
	notifier   *stubNotifier
	reconciler *stubReconciler
	metrics    *countingMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:       newMemoryRepo(),
		gateway:    &stubGateway{},
		notifier:   &stubNotifier{},
		reconciler: &stubReconciler{},
		metrics:    newCountingMetrics(),
	}
	sups := stubSuppliers{
		activeSupplier:  {ID: activeSupplier, Code: "SUP-000001", Status: suppliers.StatusActive},
		blockedSupplier: {ID: blockedSupplier, Code: "SUP-000002", Status: suppliers.StatusBlocked},
	}
	f.svc = NewService(f.repo, sups, f.gateway, Options{
		Locker:     shared.NewLocalLocker(),
		Notifier:   f.notifier,
		Reconciler: f.reconciler,
		Metrics:    f.metrics,
	})
	f.svc.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }
	return f
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

// tenAtHundred is the ten units at 100 with a 10% discount order.
func tenAtHundred() CreateInput {
	return CreateInput{
		SupplierID: activeSupplier,
		Items: []ItemInput{{
			InventoryItemID:    501,
			QuantityOrdered:    dec("10"),
			UnitCost:           dec("100"),
			DiscountPercentage: decPtr("10"),
		}},
	}
}

func (f *fixture) sentPO(t *testing.T, input CreateInput) PurchaseOrder {
	t.Helper()
	ctx := context.Background()
	po, err := f.svc.Create(ctx, input, buyer)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, po.ID, buyer)
	require.NoError(t, err)
	po, err = f.svc.Send(ctx, po.ID, buyer)
	require.NoError(t, err)
	return po
}

func TestCreateComputesTotals(t *testing.T) {
	f := newFixture(t)
	input := tenAtHundred()
	input.TaxAmount = dec("90")
	input.ShippingCost = dec("15.50")
	input.DiscountAmount = dec("5.50")

	po, err := f.svc.Create(context.Background(), input, buyer)
	require.NoError(t, err)
	require.Equal(t, "PO-2026-000001", po.Number)
	require.Equal(t, StatusDraft, po.Status)
	require.Equal(t, PaymentPending, po.PaymentStatus)
	require.Equal(t, buyer, po.CreatedBy)
	require.Len(t, po.Items, 1)
	requireDecimal(t, "100", po.Items[0].DiscountAmount)
	requireDecimal(t, "900", po.Items[0].LineTotal)
	requireDecimal(t, "10", po.Items[0].QuantityRemaining)
	requireDecimal(t, "900", po.Subtotal)
	requireDecimal(t, "1000", po.Total)

	state := f.repo.snapshot()
	require.Len(t, state.audits, 1)
	require.Equal(t, ActionCreated, state.audits[0].Action)
	require.Equal(t, shared.AuditEntityPurchaseOrder, state.audits[0].Entity)
	require.Equal(t, 1, f.metrics.transitions[string(StatusDraft)])
}

func TestExplicitDiscountAmountAppliesWithoutPercentage(t *testing.T) {
	f := newFixture(t)
	input := CreateInput{SupplierID: activeSupplier, Items: []ItemInput{
		{InventoryItemID: 1, QuantityOrdered: dec("3"), UnitCost: dec("12.50"), DiscountAmount: decPtr("2.50")},
		{InventoryItemID: 2, QuantityOrdered: dec("1"), UnitCost: dec("5"), DiscountPercentage: decPtr("20"), DiscountAmount: decPtr("4")},
	}}
	po, err := f.svc.Create(context.Background(), input, buyer)
	require.NoError(t, err)
	requireDecimal(t, "35", po.Items[0].LineTotal)
	requireDecimal(t, "1", po.Items[1].DiscountAmount)
	requireDecimal(t, "4", po.Items[1].LineTotal)
	requireDecimal(t, "39", po.Subtotal)
}

func TestPercentageDiscountRoundsToStoredScale(t *testing.T) {
	f := newFixture(t)
	input := CreateInput{SupplierID: activeSupplier, Items: []ItemInput{
		{InventoryItemID: 1, QuantityOrdered: dec("3"), UnitCost: dec("33.3333"), DiscountPercentage: decPtr("10")},
		{InventoryItemID: 2, QuantityOrdered: dec("0.0001"), UnitCost: dec("0.0001")},
	}}
	po, err := f.svc.Create(context.Background(), input, buyer)
	require.NoError(t, err)
	requireDecimal(t, "10", po.Items[0].DiscountAmount)
	requireDecimal(t, "89.9999", po.Items[0].LineTotal)
	requireDecimal(t, "0", po.Items[1].LineTotal)

	sum := decimal.Zero
	for _, item := range po.Items {
		require.True(t, item.LineTotal.Equal(item.LineTotal.Round(4)), item.LineTotal.String())
		sum = sum.Add(item.LineTotal)
	}
	requireDecimal(t, sum.String(), po.Subtotal)
	requireDecimal(t, "89.9999", po.Total)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	zeroQty := tenAtHundred()
	zeroQty.Items[0].QuantityOrdered = decimal.Zero
	negativeCost := tenAtHundred()
	negativeCost.Items[0].UnitCost = dec("-1")
	badPct := tenAtHundred()
	badPct.Items[0].DiscountPercentage = decPtr("120")
	negativeTotal := tenAtHundred()
	negativeTotal.DiscountAmount = dec("901")
	negativeTax := tenAtHundred()
	negativeTax.TaxAmount = dec("-0.01")
	blocked := tenAtHundred()
	blocked.SupplierID = blockedSupplier
	unknown := tenAtHundred()
	unknown.SupplierID = 99
	finerQty := tenAtHundred()
	finerQty.Items[0].QuantityOrdered = dec("0.00001")
	finerCost := tenAtHundred()
	finerCost.Items[0].UnitCost = dec("33.33333")
	hugeCost := tenAtHundred()
	hugeCost.Items[0].UnitCost = dec("100000000000000")
	finerShipping := tenAtHundred()
	finerShipping.ShippingCost = dec("1.00005")

	cases := map[string]struct {
		input CreateInput
		want  error
	}{
		"no items":         {CreateInput{SupplierID: activeSupplier}, ErrEmptyItems},
		"zero quantity":    {zeroQty, ErrInvalidQuantity},
		"negative cost":    {negativeCost, ErrInvalidAmount},
		"percentage range": {badPct, ErrInvalidAmount},
		"negative total":   {negativeTotal, ErrNegativeTotal},
		"negative tax":     {negativeTax, ErrInvalidAmount},
		"blocked supplier": {blocked, ErrSupplierBlocked},
		"unknown supplier": {unknown, ErrUnknownSupplier},
		"qty precision":    {finerQty, ErrInvalidQuantity},
		"cost precision":   {finerCost, ErrInvalidAmount},
		"cost range":       {hugeCost, ErrInvalidAmount},
		"header precision": {finerShipping, ErrInvalidAmount},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.input, buyer)
			require.ErrorIs(t, err, tc.want)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}

	_, err := f.svc.Create(ctx, tenAtHundred(), 0)
	require.ErrorIs(t, err, ErrActorRequired)
	require.Empty(t, f.repo.snapshot().pos)
}

func TestLifecycleTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po, err := f.svc.Create(ctx, tenAtHundred(), buyer)
	require.NoError(t, err)

	_, err = f.svc.Send(ctx, po.ID, buyer)
	require.ErrorIs(t, err, ErrCannotSend)

	approved, err := f.svc.Approve(ctx, po.ID, 8)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Equal(t, int64(8), *approved.ApprovedBy)
	require.Equal(t, po.Version+1, approved.Version)

	_, err = f.svc.Approve(ctx, po.ID, 8)
	require.ErrorIs(t, err, ErrCannotApprove)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	sent, err := f.svc.Send(ctx, po.ID, buyer)
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)
	require.NotNil(t, sent.SentAt)
	require.Equal(t, []int64{po.ID}, f.notifier.sent)

	_, err = f.svc.Cancel(ctx, po.ID, "supplier closed", buyer)
	require.ErrorIs(t, err, ErrCannotCancel)

	state := f.repo.snapshot()
	actions := make([]string, 0, len(state.audits))
	for _, a := range state.audits {
		actions = append(actions, a.Action)
	}
	require.Equal(t, []string{ActionCreated, ActionApproved, ActionSent}, actions)
}

func TestCancelledOrderCannotBeApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po, err := f.svc.Create(ctx, tenAtHundred(), buyer)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, po.ID, "   ", buyer)
	require.ErrorIs(t, err, ErrCancelReasonRequired)

	cancelled, err := f.svc.Cancel(ctx, po.ID, " duplicate order ", buyer)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Equal(t, "duplicate order", cancelled.CancelReason)
	require.True(t, cancelled.Status.IsTerminal())

	_, err = f.svc.Approve(ctx, po.ID, buyer)
	require.ErrorIs(t, err, ErrCannotApprove)

	state := f.repo.snapshot()
	last := state.audits[len(state.audits)-1]
	require.Equal(t, ActionCancelled, last.Action)
	require.Equal(t, "duplicate order", last.Meta["reason"])
}

func TestUpdateAndDeleteDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po, err := f.svc.Create(ctx, tenAtHundred(), buyer)
	require.NoError(t, err)

	stale := po.Version - 1
	update := UpdateInput{CreateInput: tenAtHundred(), Version: &stale}
	_, err = f.svc.UpdateDraft(ctx, po.ID, update, buyer)
	require.ErrorIs(t, err, ErrVersionConflict)
	require.ErrorIs(t, err, shared.ErrConflict)

	update.Version = &po.Version
	update.Items[0].QuantityOrdered = dec("20")
	updated, err := f.svc.UpdateDraft(ctx, po.ID, update, buyer)
	require.NoError(t, err)
	requireDecimal(t, "1800", updated.Subtotal)
	require.Len(t, updated.Items, 1)

	_, err = f.svc.Approve(ctx, po.ID, buyer)
	require.NoError(t, err)
	_, err = f.svc.UpdateDraft(ctx, po.ID, UpdateInput{CreateInput: tenAtHundred()}, buyer)
	require.ErrorIs(t, err, ErrCannotEdit)
	require.ErrorIs(t, f.svc.DeleteDraft(ctx, po.ID, buyer), ErrCannotEdit)

	other, err := f.svc.Create(ctx, tenAtHundred(), buyer)
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteDraft(ctx, other.ID, buyer))
	_, err = f.svc.Get(ctx, other.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPaymentStatusIndependentOfLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.Create(ctx, tenAtHundred(), buyer)
	require.NoError(t, err)
	_, err = f.svc.UpdatePaymentStatus(ctx, draft.ID, PaymentPaid, buyer)
	require.ErrorIs(t, err, ErrCannotChangePayment)

	po := f.sentPO(t, tenAtHundred())
	_, err = f.svc.UpdatePaymentStatus(ctx, po.ID, "refunded", buyer)
	require.ErrorIs(t, err, ErrInvalidPaymentStatus)

	paid, err := f.svc.UpdatePaymentStatus(ctx, po.ID, PaymentPartial, buyer)
	require.NoError(t, err)
	require.Equal(t, PaymentPartial, paid.PaymentStatus)
	require.Equal(t, StatusSent, paid.Status)
}

func TestFullGoodReceiptPassesInspection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po := f.sentPO(t, tenAtHundred())
	requireDecimal(t, "900", po.Total)

	result, err := f.svc.SubmitReceipt(ctx, po.ID, ReceiveInput{Lines: []ReceiveLineInput{
		{POItemID: po.Items[0].ID, QuantityReceived: dec("10"), QualityStatus: QualityGood},
	}}, buyer)
	require.NoError(t, err)
	require.False(t, result.ReconcilePending)
	require.Equal(t, StatusReceived, result.PurchaseOrder.Status)
	require.Equal(t, InspectionPassed, result.Receipt.InspectionStatus)
	require.False(t, result.Receipt.InspectionOverridden)

	require.Len(t, result.Movements, 1)
	mv := result.Movements[0]
	require.Equal(t, int64(501), mv.ItemID)
	requireDecimal(t, "10", mv.Quantity)
	requireDecimal(t, "100", mv.UnitCost)
	require.Len(t, f.gateway.applied, 1)
	requireDecimal(t, "10", f.gateway.applied[0].Quantity)
	requireDecimal(t, "0", result.PurchaseOrder.Items[0].QuantityRemaining)
	require.Equal(t, 1, f.metrics.receipts[string(InspectionPassed)])
}

func TestReceiptWithDamagedGoodsCompletesOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po := f.sentPO(t, tenAtHundred())
	itemID := po.Items[0].ID

	result, err := f.svc.SubmitReceipt(ctx, po.ID, ReceiveInput{Lines: []ReceiveLineInput{
		{POItemID: itemID, QuantityReceived: dec("6"), QualityStatus: QualityGood},
		{POItemID: itemID, QuantityReceived: dec("4"), QualityStatus: QualityDamaged, Notes: "crushed cartons"},
	}}, buyer)
	require.NoError(t, err)
	require.False(t, result.ReconcilePending)
	require.Equal(t, "GRN-2026-000001", result.Receipt.Number)
	require.Equal(t, InspectionPartial, result.Receipt.InspectionStatus)
	require.False(t, result.Receipt.InspectionOverridden)
	require.Equal(t, StatusReceived, result.PurchaseOrder.Status)

	require.Len(t, result.Movements, 1)
	mv := result.Movements[0]
	require.Equal(t, int64(501), mv.ItemID)
	requireDecimal(t, "6", mv.Quantity)
	requireDecimal(t, "100", mv.UnitCost)
	require.Equal(t, inventory.MovementTypeIn, mv.Type)
	require.Equal(t, inventory.ReasonPurchaseReceipt, mv.Reason)
	require.Equal(t, result.Receipt.Number, mv.Reference)
	require.Equal(t, result.Receipt.Lines[0].ID, mv.ReceiptLineID)
	require.Equal(t, 1, result.Inventory.Applied)
	require.Len(t, f.gateway.applied, 1)

	item := result.PurchaseOrder.Items[0]
	requireDecimal(t, "6", item.QuantityGood)
	requireDecimal(t, "4", item.QuantityDamaged)
	requireDecimal(t, "0", item.QuantityRemaining)
	require.Equal(t, []int64{result.Receipt.ID}, f.notifier.completed)
	require.Equal(t, 1, f.metrics.receipts[string(InspectionPartial)])

	loaded, err := f.svc.Get(ctx, po.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Receipts, 1)
	require.Equal(t, StatusReceived, loaded.Status)

	_, err = f.svc.SubmitReceipt(ctx, po.ID, ReceiveInput{Lines: []ReceiveLineInput{
		{POItemID: itemID, QuantityReceived: dec("1"), QualityStatus: QualityGood},
	}}, buyer)
	require.ErrorIs(t, err, ErrCannotReceive)
}

func TestPartialReceiptsAccumulate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po := f.sentPO(t, tenAtHundred())
	itemID := po.Items[0].ID

	first, err := f.svc.SubmitReceipt(ctx, po.ID, ReceiveInput{Lines: []ReceiveLineInput{
		{POItemID: itemID, QuantityReceived: dec("4"), QualityStatus: QualityGood},
	}}, buyer)
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyReceived, first.PurchaseOrder.Status)
	require.Equal(t, InspectionPassed, first.Receipt.InspectionStatus)
	requireDecimal(t, "6", first.PurchaseOrder.Items[0].QuantityRemaining)
	require.Empty(t, f.notifier.completed)

	second, err := f.svc.SubmitReceipt(ctx, po.ID, ReceiveInput{Lines: []ReceiveLineInput{
		{POItemID: itemID, QuantityReceived: dec("5"), QualityStatus: QualityGood},
		{POItemID: itemID, QuantityReceived: dec("1"), QualityStatus: QualityRejected},
	}}, buyer)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, second.PurchaseOrder.Status)
	require.Equal(t, "GRN-2026-000002", second.Receipt.Number)
	require.Len(t, f.gateway.applied, 2)
}

func TestOverReceiptCommitsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po := f.sentPO(t, tenAtHundred())
	before := f.repo.snapshot()

	_, err := f.svc.SubmitReceipt(ctx, po.ID, ReceiveInput{Lines: []ReceiveLineInput{
		{POItemID: po.Items[0].ID, QuantityReceived: dec("8"), QualityStatus: QualityGood},
		{POItemID: po.Items[0].ID, QuantityReceived: dec("3"), QualityStatus: QualityDamaged},
	}}, buyer)
	require.ErrorIs(t, err, ErrOverReceipt)
	require.ErrorIs(t, err, shared.ErrValidation)

	after := f.repo.snapshot()
	require.Empty(t, after.receipts)
	require.Empty(t, after.movements)
	require.Len(t, after.audits, len(before.audits))
	require.Equal(t, before.pos[po.ID].Version, after.pos[po.ID].Version)
	require.Equal(t, StatusSent, after.pos[po.ID].Status)
	require.Empty(t, f.gateway.applied)
}

func TestFailedReceiptInsertRollsBack(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(t, tenAtHundred())
	f.repo.failInsertReceipt = context.DeadlineExceeded

	_, err := f.svc.SubmitReceipt(context.Background(), po.ID, ReceiveInput{Lines: []ReceiveLineInput{
		{POItemID: po.Items[0].ID, QuantityReceived: dec("2"), QualityStatus: QualityGood},
	}}, buyer)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	state := f.repo.snapshot()
	require.Equal(t, StatusSent, state.pos[po.ID].Status)
	require.Zero(t, state.grnSeq)
}

func TestReceiptValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po := f.sentPO(t, tenAtHundred())
	itemID := po.Items[0].ID
	bogus := InspectionStatus("excellent")

	cases := map[string]struct {
		input ReceiveInput
		want  error
	}{
		"no lines":       {ReceiveInput{}, ErrEmptyReceipt},
		"all zero":       {ReceiveInput{Lines: []ReceiveLineInput{{POItemID: itemID, QualityStatus: QualityGood}}}, ErrEmptyReceipt},
		"negative":       {ReceiveInput{Lines: []ReceiveLineInput{{POItemID: itemID, QuantityReceived: dec("-1"), QualityStatus: QualityGood}}}, ErrInvalidQuantity},
		"bad quality":    {ReceiveInput{Lines: []ReceiveLineInput{{POItemID: itemID, QuantityReceived: dec("1"), QualityStatus: "meh"}}}, ErrInvalidQualityStatus},
		"bad override":   {ReceiveInput{InspectionStatus: &bogus, Lines: []ReceiveLineInput{{POItemID: itemID, QuantityReceived: dec("1"), QualityStatus: QualityGood}}}, ErrInvalidInspectionStatus},
		"foreign item":   {ReceiveInput{Lines: []ReceiveLineInput{{POItemID: 9999, QuantityReceived: dec("1"), QualityStatus: QualityGood}}}, ErrUnknownPOItem},
		"missing itemID": {ReceiveInput{Lines: []ReceiveLineInput{{QuantityReceived: dec("1"), QualityStatus: QualityGood}}}, shared.ErrValidation},
		"too precise":    {ReceiveInput{Lines: []ReceiveLineInput{{POItemID: itemID, QuantityReceived: dec("0.00004"), QualityStatus: QualityGood}}}, ErrInvalidQuantity},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SubmitReceipt(ctx, po.ID, tc.input, buyer)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := f.svc.SubmitReceipt(ctx, po.ID, ReceiveInput{Lines: []ReceiveLineInput{{POItemID: itemID, QuantityReceived: dec("1"), QualityStatus: QualityGood}}}, 0)
	require.ErrorIs(t, err, ErrActorRequired)

	draft, err := f.svc.Create(ctx, tenAtHundred(), buyer)
	require.NoError(t, err)
	_, err = f.svc.SubmitReceipt(ctx, draft.ID, ReceiveInput{Lines: []ReceiveLineInput{{POItemID: draft.Items[0].ID, QuantityReceived: dec("1"), QualityStatus: QualityGood}}}, buyer)
	require.ErrorIs(t, err, ErrCannotReceive)
}

func TestInspectionOverrideWins(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(t, tenAtHundred())
	failed := InspectionFailed

	result, err := f.svc.SubmitReceipt(context.Background(), po.ID, ReceiveInput{
		InspectionStatus: &failed,
		QualityNotes:     "temperature log missing",
		Lines:            []ReceiveLineInput{{POItemID: po.Items[0].ID, QuantityReceived: dec("2"), QualityStatus: QualityGood}},
	}, buyer)
	require.NoError(t, err)
	require.Equal(t, InspectionFailed, result.Receipt.InspectionStatus)
	require.True(t, result.Receipt.InspectionOverridden)
	require.Len(t, result.Movements, 1)
}

func TestDeriveInspectionStatus(t *testing.T) {
	require.Equal(t, InspectionPassed, DeriveInspectionStatus([]ReceiptLine{{QualityStatus: QualityGood}}))
	require.Equal(t, InspectionPartial, DeriveInspectionStatus([]ReceiptLine{{QualityStatus: QualityGood}, {QualityStatus: QualityRejected}}))
	require.Equal(t, InspectionPartial, DeriveInspectionStatus([]ReceiptLine{{QualityStatus: QualityDamaged}}))
}

func TestConcurrentReceiptsNeverOverReceive(t *testing.T) {
	f := newFixture(t)
	po := f.sentPO(t, tenAtHundred())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.SubmitReceipt(context.Background(), po.ID, ReceiveInput{Lines: []ReceiveLineInput{
				{POItemID: po.Items[0].ID, QuantityReceived: dec("6"), QualityStatus: QualityGood},
			}}, buyer)
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		default:
			require.ErrorIs(t, err, ErrOverReceipt)
			rejected++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, rejected)

	loaded, err := f.svc.Get(context.Background(), po.ID)
	require.NoError(t, err)
	requireDecimal(t, "6", loaded.Items[0].QuantityGood)
	require.Equal(t, StatusPartiallyReceived, loaded.Status)
}

func TestBusyLockReturnsConflict(t *testing.T) {
	f := newFixture(t)
	po, err := f.svc.Create(context.Background(), tenAtHundred(), buyer)
	require.NoError(t, err)
	f.svc.locker = busyLocker{}

	_, err = f.svc.Approve(context.Background(), po.ID, buyer)
	require.ErrorIs(t, err, ErrPOLocked)
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, 1, f.metrics.lockFails)
}

func TestGatewayFailureSchedulesReconcile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	po := f.sentPO(t, tenAtHundred())
	f.gateway.err = errGatewayDown

	result, err := f.svc.SubmitReceipt(ctx, po.ID, ReceiveInput{Lines: []ReceiveLineInput{
		{POItemID: po.Items[0].ID, QuantityReceived: dec("10"), QualityStatus: QualityGood},
	}}, buyer)
	require.NoError(t, err)
	require.True(t, result.ReconcilePending)
	require.Equal(t, StatusReceived, result.PurchaseOrder.Status)
	require.Equal(t, []int64{result.Receipt.ID}, f.reconciler.receipts)
	require.Len(t, f.repo.snapshot().movements, 1)

	res, err := f.svc.ReconcileReceipt(ctx, po.ID, result.Receipt.ID)
	require.NoError(t, err)
	require.Equal(t, 1, res.Applied)
	require.Equal(t, []int64{result.Receipt.ID}, f.gateway.pending)

	_, err = f.svc.ReconcileReceipt(ctx, po.ID, 404)
	require.ErrorIs(t, err, ErrReceiptNotFound)
}

func TestListValidatesStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.sentPO(t, tenAtHundred())
	_, err := f.svc.Create(ctx, tenAtHundred(), buyer)
	require.NoError(t, err)

	sent, total, err := f.svc.List(ctx, ListFilters{Status: StatusSent})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, StatusSent, sent[0].Status)

	_, _, err = f.svc.List(ctx, ListFilters{Status: "shipped"})
	require.ErrorIs(t, err, shared.ErrValidation)
}
