package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/model"
)

func TestSchedulerConsolidatesPeriodically(t *testing.T) {
	// Registered before the store cleanups so it runs after they close
	// their backends; a plain defer would fire while the SQLite pool's
	// goroutines are still alive.
	t.Cleanup(func() { goleak.VerifyNone(t) })

	ctx := context.Background()
	stm := newTestSTM(t)
	ltm := newTestLTM(t)
	log := zaptest.NewLogger(t)
	lc := NewLifecycle(stm, ltm, 1, log)

	id, err := stm.Create(ctx, model.Record{"topic": "dns"}, TTLDefault)
	require.NoError(t, err)
	heat(t, stm, id, 1)

	s := NewScheduler(lc, 20*time.Millisecond, time.Second, log)
	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		_, ok, err := ltm.Get(ctx, id)
		return err == nil && ok
	}, 2*time.Second, 10*time.Millisecond, "scheduler should promote the hot record")

	_, ok, err := stm.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSchedulerStopIsBounded(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	stm := newTestSTM(t)
	ltm := newTestLTM(t)
	log := zaptest.NewLogger(t)
	lc := NewLifecycle(stm, ltm, 1, log)

	s := NewScheduler(lc, time.Hour, time.Second, log)
	s.Start()

	start := time.Now()
	s.Stop()
	assert.Less(t, time.Since(start), time.Second)

	// Stop again is a no-op.
	s.Stop()
}

func TestSchedulerStartTwice(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })

	stm := newTestSTM(t)
	ltm := newTestLTM(t)
	log := zaptest.NewLogger(t)

	s := NewScheduler(NewLifecycle(stm, ltm, 1, log), time.Hour, time.Second, log)
	s.Start()
	s.Start()
	s.Stop()
}
