package memory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/docstore"
	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/kvstore"
	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/model"
)

const testDefaultTTL = time.Hour

func newTestSTM(t *testing.T) *ShortTermManager {
	t.Helper()
	return newTestSTMWithTTL(t, testDefaultTTL)
}

func newTestSTMWithTTL(t *testing.T, defaultTTL time.Duration) *ShortTermManager {
	t.Helper()
	kv := kvstore.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })
	return NewShortTermManager(kv, defaultTTL, zaptest.NewLogger(t))
}

func newTestDocs(t *testing.T) docstore.Store {
	t.Helper()
	s, err := docstore.NewSQLiteStore(filepath.Join(t.TempDir(), "ltm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestLTM(t *testing.T) *LongTermManager {
	t.Helper()
	return NewLongTermManager(newTestDocs(t), zaptest.NewLogger(t))
}

// flakyDocStore fails inserts for one specific record id, for exercising
// partial-failure isolation during consolidation.
type flakyDocStore struct {
	docstore.Store
	failID string
}

var errSimulatedWrite = errors.New("simulated document write failure")

func (f *flakyDocStore) Insert(ctx context.Context, doc model.Record) error {
	if doc.ID() == f.failID {
		return errSimulatedWrite
	}
	return f.Store.Insert(ctx, doc)
}
