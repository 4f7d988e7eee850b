package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	locker := NewRedisLocker(client)
	locker.retries = 1
	locker.backoff = time.Millisecond
	ctx := context.Background()
	key := PurchaseOrderLockKey(7)
	require.Equal(t, "purchasing:po:7:lock", key)

	first, err := locker.Obtain(ctx, key, time.Minute)
	require.NoError(t, err)

	_, err = locker.Obtain(ctx, key, time.Minute)
	require.ErrorIs(t, err, ErrLockNotObtained)

	require.NoError(t, first.Release(ctx))
	second, err := locker.Obtain(ctx, key, time.Minute)
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	held, err := locker.Obtain(ctx, "po:1", 0)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = locker.Obtain(waitCtx, "po:1", 0)
	require.ErrorIs(t, err, ErrLockNotObtained)

	other, err := locker.Obtain(ctx, "po:2", 0)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, held.Release(ctx))
	again, err := locker.Obtain(ctx, "po:1", 0)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestDomainErrorUnwrapsToKind(t *testing.T) {
	err := NewDomainError(ErrInvalidState, "CANNOT_CANCEL", "cannot cancel purchase order in status sent")
	require.ErrorIs(t, err, ErrInvalidState)
	require.NotErrorIs(t, err, ErrValidation)
	require.Equal(t, "CANNOT_CANCEL", ErrorCode(err))
	require.Equal(t, "cannot cancel purchase order in status sent", UserSafeMessage(err))
	require.Equal(t, "internal error", UserSafeMessage(context.DeadlineExceeded))
}
