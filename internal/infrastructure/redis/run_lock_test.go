package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRunLock_ExclusivoHastaLiberar(t *testing.T) {
	client, mr := newTestClient(t)
	a := NewRunLock(client, "reconcile", time.Minute)
	b := NewRunLock(client, "reconcile", time.Minute)
	ctx := context.Background()

	unlock, ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists(keyPrefix+"reconcile"))
	assert.True(t, mr.TTL(keyPrefix+"reconcile") > 0, "el lease debe vencer")

	_, ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	unlock()
	assert.False(t, mr.Exists(keyPrefix+"reconcile"))

	unlockB, ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	unlockB()
}

func TestRunLock_DuenoVencidoNoLiberaLeaseAjeno(t *testing.T) {
	client, mr := newTestClient(t)
	a := NewRunLock(client, "reconcile", time.Second)
	b := NewRunLock(client, "reconcile", time.Minute)
	ctx := context.Background()

	unlockA, ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	unlockA()
	assert.True(t, mr.Exists(keyPrefix+"reconcile"), "el lease de b sigue vigente")
}

func TestRunLock_ErrorDeRedis(t *testing.T) {
	client, mr := newTestClient(t)
	mr.SetError("LOADING Redis is loading the dataset in memory")

	_, ok, err := NewRunLock(client, "reconcile", time.Minute).TryLock(context.Background())
	require.Error(t, err)
	assert.False(t, ok)
}
