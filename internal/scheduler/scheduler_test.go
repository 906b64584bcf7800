package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventory-ledger/internal/application/ledger"
	"github.com/jhoicas/inventory-ledger/internal/domain/entity"
)

type blockingReconciler struct {
	calls   atomic.Int32
	source  atomic.Value
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *blockingReconciler) ReconcileAll(_ context.Context, source string) (*ledger.BatchReport, error) {
	r.calls.Add(1)
	r.source.Store(source)
	r.once.Do(func() { close(r.started) })
	<-r.release
	return &ledger.BatchReport{Source: source}, nil
}

func TestRunOnce_OmiteDisparoSiHayCorridaEnCurso(t *testing.T) {
	rec := &blockingReconciler{started: make(chan struct{}), release: make(chan struct{})}
	s := New("*/15 * * * *", time.Second, rec, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		s.RunOnce()
		close(done)
	}()
	<-rec.started

	s.RunOnce() // vuelve de inmediato
	assert.Equal(t, int32(1), rec.calls.Load())

	close(rec.release)
	<-done
	assert.Equal(t, entity.DriftSourceScheduled, rec.source.Load())

	s.RunOnce()
	assert.Equal(t, int32(2), rec.calls.Load(), "terminada la corrida, el siguiente disparo se ejecuta")
}

func TestStart_ExpresionInvalida(t *testing.T) {
	s := New("cada quince minutos", 0, &blockingReconciler{}, zerolog.Nop())
	require.Error(t, s.Start())
}

func TestStartStop(t *testing.T) {
	s := New("@every 1h", 0, &blockingReconciler{}, zerolog.Nop())
	require.NoError(t, s.Start())
	s.Stop()
}

type fakeLock struct {
	held     bool
	err      error
	released atomic.Int32
}

func (l *fakeLock) TryLock(context.Context) (func(), bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	return func() { l.released.Add(1) }, true, nil
}

func finished() *blockingReconciler {
	rec := &blockingReconciler{started: make(chan struct{}), release: make(chan struct{})}
	close(rec.release)
	return rec
}

func TestRunOnce_ConLease(t *testing.T) {
	t.Run("tomado por otra instancia", func(t *testing.T) {
		rec := finished()
		New("@every 1h", time.Second, rec, zerolog.Nop()).WithLock(&fakeLock{held: true}).RunOnce()
		assert.Equal(t, int32(0), rec.calls.Load())
	})
	t.Run("libre se toma y se libera", func(t *testing.T) {
		rec, lock := finished(), &fakeLock{}
		New("@every 1h", time.Second, rec, zerolog.Nop()).WithLock(lock).RunOnce()
		assert.Equal(t, int32(1), rec.calls.Load())
		assert.Equal(t, int32(1), lock.released.Load())
	})
	t.Run("redis caído concilia igual", func(t *testing.T) {
		rec := finished()
		New("@every 1h", time.Second, rec, zerolog.Nop()).WithLock(&fakeLock{err: errors.New("connection refused")}).RunOnce()
		assert.Equal(t, int32(1), rec.calls.Load())
	})
}
