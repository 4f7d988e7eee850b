package procurement

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/purchasing/internal/shared"
)

func newTestRouter(f *fixture) http.Handler {
	h := NewHandler(nil, f.svc)
	withActor := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64); err == nil {
				r = r.WithContext(shared.ContextWithActor(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
	r := chi.NewRouter()
	r.Route("/purchase-orders", func(r chi.Router) {
		h.MountRoutes(r, withActor)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerPurchaseOrderFlow(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	rec := do(t, router, http.MethodPost, "/purchase-orders/",
		`{"supplier_id":1,"items":[{"inventory_item_id":501,"quantity_ordered":"10","unit_cost":"100","discount_percentage":"10"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created PurchaseOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	requireDecimal(t, "900", created.Subtotal)
	base := "/purchase-orders/" + strconv.FormatInt(created.ID, 10)

	rec = do(t, router, http.MethodPost, base+"/send", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "CANNOT_SEND")

	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, base+"/approve", "").Code)
	require.Equal(t, http.StatusOK, do(t, router, http.MethodPost, base+"/send", "").Code)

	itemID := strconv.FormatInt(created.Items[0].ID, 10)
	rec = do(t, router, http.MethodPost, base+"/receive", `{"lines":[{"po_item_id":`+itemID+`,"quantity_received":"11","quality_status":"good"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "OVER_RECEIPT")

	rec = do(t, router, http.MethodPost, base+"/receive", `{"lines":[{"po_item_id":`+itemID+`,"quantity_received":"6","quality_status":"good"},{"po_item_id":`+itemID+`,"quantity_received":"4","quality_status":"damaged"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result ReceiptResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, StatusReceived, result.PurchaseOrder.Status)
	require.Len(t, result.Movements, 1)

	rec = do(t, router, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var loaded PurchaseOrder
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loaded))
	require.Len(t, loaded.Receipts, 1)
}

func TestHandlerErrorMapping(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)

	require.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/purchase-orders/42", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/purchase-orders/abc", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/purchase-orders/", `{"supplier_id":`).Code)
	require.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/purchase-orders/", `{"vendor":1}`).Code)

	rec := do(t, router, http.MethodPost, "/purchase-orders/", `{"supplier_id":2,"items":[{"inventory_item_id":1,"quantity_ordered":"1","unit_cost":"1"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Contains(t, rec.Body.String(), "SUPPLIER_BLOCKED")

	req := httptest.NewRequest(http.MethodPost, "/purchase-orders/", strings.NewReader(`{"supplier_id":1,"items":[{"inventory_item_id":1,"quantity_ordered":"1","unit_cost":"1"}]}`))
	anon := httptest.NewRecorder()
	router.ServeHTTP(anon, req)
	require.Equal(t, http.StatusUnauthorized, anon.Code)
}

func TestHandlerListDateFilters(t *testing.T) {
	f := newFixture(t)
	router := newTestRouter(f)
	rec := do(t, router, http.MethodPost, "/purchase-orders/",
		`{"supplier_id":1,"items":[{"inventory_item_id":501,"quantity_ordered":"1","unit_cost":"5"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	total := func(query string) int {
		t.Helper()
		rec := do(t, router, http.MethodGet, "/purchase-orders/?"+query, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var body struct {
			Pagination shared.Pagination `json:"pagination"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body.Pagination.Total
	}
	// created at 09:30 on 2026-03-14
	require.Equal(t, 1, total("to=2026-03-14"))
	require.Equal(t, 1, total("from=2026-03-14&to=2026-03-14"))
	require.Equal(t, 0, total("to=2026-03-13"))
	require.Equal(t, 0, total("from=2026-03-15"))

	for _, query := range []string{"from=14-03-2026", "to=yesterday", "from=2026-03-15&to=2026-03-01"} {
		rec := do(t, router, http.MethodGet, "/purchase-orders/?"+query, "")
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, query)
		require.Contains(t, rec.Body.String(), "INVALID_FILTER", query)
	}
}
