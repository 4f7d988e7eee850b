package procurement

import (
	"context"

	"golang.org/x/sync/singleflight"
)

var detailGroup singleflight.Group

// singleflightLoad collapses concurrent detail reads of the same purchase order.
func singleflightLoad(ctx context.Context, key string, fn func(context.Context) (PurchaseOrder, error)) (PurchaseOrder, error, bool) {
	resultChan := detailGroup.DoChan(key, func() (interface{}, error) {
		return fn(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return PurchaseOrder{}, ctx.Err(), false
	case res := <-resultChan:
		if res.Err != nil {
			return PurchaseOrder{}, res.Err, res.Shared
		}
		return res.Val.(PurchaseOrder), nil, res.Shared
	}
}
