package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/model"
)

func newTestLifecycle(t *testing.T, threshold int) (*Lifecycle, *ShortTermManager, *LongTermManager) {
	t.Helper()
	stm := newTestSTM(t)
	ltm := newTestLTM(t)
	return NewLifecycle(stm, ltm, threshold, zaptest.NewLogger(t)), stm, ltm
}

func heat(t *testing.T, stm *ShortTermManager, id string, reads int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < reads; i++ {
		_, ok, err := stm.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestRunConsolidationPromotesHotRecords(t *testing.T) {
	ctx := context.Background()
	lc, stm, ltm := newTestLifecycle(t, 3)

	id, err := stm.Create(ctx, model.Record{"topic": "dns", "answer": 42}, TTLDefault)
	require.NoError(t, err)
	heat(t, stm, id, 3)

	require.NoError(t, lc.RunConsolidation(ctx))

	// Gone from the short-term tier.
	_, ok, err := stm.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	// Present in the long-term tier under the same id, version 1, with
	// the short-term bookkeeping stripped and tier timestamps renamed.
	rec, ok, err := ltm.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, rec.Int(model.FieldVersion))
	assert.Equal(t, "dns", rec.String("topic"))
	assert.NotContains(t, rec, model.FieldAccessCount)
	assert.NotContains(t, rec, model.FieldLastAccessedAt)
	assert.NotContains(t, rec, model.FieldCreatedAt)
	assert.NotEmpty(t, rec.String(model.FieldSTMCreatedAt))
	assert.NotEmpty(t, rec.String(model.FieldConsolidatedAt))
}

func TestRunConsolidationSkipsColdAndLocked(t *testing.T) {
	ctx := context.Background()
	lc, stm, ltm := newTestLifecycle(t, 3)

	cold, _ := stm.Create(ctx, model.Record{"name": "cold"}, TTLDefault)
	locked, _ := stm.Create(ctx, model.Record{"name": "locked"}, TTLDefault)
	heat(t, stm, locked, 5)
	_, err := stm.Lock(ctx, locked)
	require.NoError(t, err)

	require.NoError(t, lc.RunConsolidation(ctx))

	for _, id := range []string{cold, locked} {
		_, ok, err := ltm.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok, "record %s should not be promoted", id)
	}
}

func TestRunConsolidationPreservesWorldState(t *testing.T) {
	ctx := context.Background()
	lc, stm, ltm := newTestLifecycle(t, 3)
	world := NewWorldState(stm, 100, zaptest.NewLogger(t))

	_, err := world.Update(ctx, map[string]any{"phase": "explore"})
	require.NoError(t, err)
	v, err := world.Update(ctx, map[string]any{"step": 7})
	require.NoError(t, err)
	require.Equal(t, 3, v)

	// Reads against the fixed keys accumulate access counts past the
	// threshold like any other record; version lookups read the history
	// record the same way.
	for i := 0; i < 4; i++ {
		_, err := world.Current(ctx)
		require.NoError(t, err)
		_, ok, err := world.Version(ctx, 2)
		require.NoError(t, err)
		require.True(t, ok)
	}

	require.NoError(t, lc.RunConsolidation(ctx))

	// Neither fixed key was promoted.
	for _, id := range []string{WorldStateKey, WorldStateHistoryKey} {
		_, ok, err := ltm.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok, "%s should never be promoted", id)
	}

	// The version chain survives the cycle and keeps moving forward.
	cur, err := world.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cur.Int("version"))
	assert.Equal(t, "explore", stateMap(cur).String("phase"))

	v, err = world.Update(ctx, map[string]any{"phase": "exploit"})
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	_, ok, err := world.Version(ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConsolidationFailureIsolation(t *testing.T) {
	ctx := context.Background()
	stm := newTestSTM(t)
	docs := newTestDocs(t)

	first, _ := stm.Create(ctx, model.Record{"seq": 1}, TTLDefault)
	second, _ := stm.Create(ctx, model.Record{"seq": 2}, TTLDefault)
	third, _ := stm.Create(ctx, model.Record{"seq": 3}, TTLDefault)
	for _, id := range []string{first, second, third} {
		heat(t, stm, id, 2)
	}

	log := zaptest.NewLogger(t)
	ltm := NewLongTermManager(&flakyDocStore{Store: docs, failID: second}, log)
	lc := NewLifecycle(stm, ltm, 2, log)

	require.NoError(t, lc.RunConsolidation(ctx))

	// First and third made it across.
	for _, id := range []string{first, third} {
		_, ok, err := ltm.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok, "record %s should be consolidated", id)
	}

	// The failed record remains in short-term storage, untouched.
	remaining, err := stm.Search(ctx, model.Record{"seq": 2}, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, second, remaining[0].ID())
	assert.Equal(t, 2, remaining[0].Int(model.FieldAccessCount))

	_, ok, _ := ltm.Get(ctx, second)
	assert.False(t, ok)
}

func TestRetrieveToShortTerm(t *testing.T) {
	ctx := context.Background()
	lc, stm, ltm := newTestLifecycle(t, 3)

	ltmID, err := ltm.Create(ctx, model.Record{"topic": "dns"})
	require.NoError(t, err)

	stmID, ok, err := lc.RetrieveToShortTerm(ctx, ltmID, TTLDefault)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, stmID)
	assert.NotEqual(t, ltmID, stmID, "short-term copy gets a fresh identifier")

	rec, found, err := stm.Get(ctx, stmID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ltmID, rec.String(model.FieldLTMID))
	assert.True(t, rec.Bool(model.FieldRetrievedFromLTM))
	assert.NotEmpty(t, rec.String(model.FieldRetrievedAt))
	assert.Equal(t, "dns", rec.String("topic"))

	// Retrieval is non-destructive and repeatable.
	stmID2, ok, err := lc.RetrieveToShortTerm(ctx, ltmID, TTLDefault)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, stmID, stmID2)

	rec2, _, _ := stm.Get(ctx, stmID2)
	assert.Equal(t, ltmID, rec2.String(model.FieldLTMID))

	_, stillThere, err := ltm.Get(ctx, ltmID)
	require.NoError(t, err)
	assert.True(t, stillThere, "long-term original is left in place")
}

func TestRetrieveMissingRecord(t *testing.T) {
	ctx := context.Background()
	lc, _, _ := newTestLifecycle(t, 3)

	_, ok, err := lc.RetrieveToShortTerm(ctx, "missing", TTLDefault)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetrievedRecordExpires(t *testing.T) {
	ctx := context.Background()
	lc, stm, ltm := newTestLifecycle(t, 3)

	ltmID, _ := ltm.Create(ctx, model.Record{"topic": "dns"})

	stmID, ok, err := lc.RetrieveToShortTerm(ctx, ltmID, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, live, _ := stm.Get(ctx, stmID)
	assert.False(t, live)
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	lc, _, ltm := newTestLifecycle(t, 3)

	ltmID, _ := ltm.Create(ctx, model.Record{"topic": "dns"})

	ok, err := lc.Forget(ctx, ltmID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, found, _ := ltm.Get(ctx, ltmID)
	assert.False(t, found)

	ok, err = lc.Forget(ctx, ltmID)
	require.NoError(t, err)
	assert.False(t, ok)
}
