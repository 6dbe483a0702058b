package memory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/model"
)

// Lifecycle implements the tier transition policy: promoting hot short-term
// records into long-term storage and materializing long-term records back
// into short-term form. The access-count threshold graduates frequently-read
// knowledge to durable storage instead of letting it expire; locked records
// are exempt because locking signals active use that tier migration should
// not interrupt.
type Lifecycle struct {
	stm       *ShortTermManager
	ltm       *LongTermManager
	threshold int
	log       *zap.Logger
}

// NewLifecycle creates the transition policy with the given access-count
// consolidation threshold.
func NewLifecycle(stm *ShortTermManager, ltm *LongTermManager, threshold int, log *zap.Logger) *Lifecycle {
	return &Lifecycle{stm: stm, ltm: ltm, threshold: threshold, log: log}
}

// RunConsolidation promotes every eligible short-term record. Records are
// processed independently: a failure on one is logged and does not abort
// the rest. The returned error covers only the eligibility scan itself.
func (l *Lifecycle) RunConsolidation(ctx context.Context) error {
	eligible, err := l.stm.ListForConsolidation(ctx, l.threshold)
	if err != nil {
		return fmt.Errorf("list consolidation candidates: %w", err)
	}
	if len(eligible) == 0 {
		l.log.Debug("no records eligible for consolidation")
		return nil
	}

	l.log.Info("running consolidation", zap.Int("eligible", len(eligible)))

	for _, rec := range eligible {
		if err := l.Consolidate(ctx, rec); err != nil {
			l.log.Error("consolidation failed",
				zap.String("id", rec.ID()), zap.Error(err))
		}
	}
	return nil
}

// Consolidate promotes a single record to long-term storage and, only once
// the long-term write has succeeded, deletes the short-term source. On a
// failed long-term write the source is left untouched: a record is never
// deleted before its replacement is durably written.
func (l *Lifecycle) Consolidate(ctx context.Context, rec model.Record) error {
	id := rec.ID()

	if _, err := l.ltm.Create(ctx, prepareForLongTerm(rec)); err != nil {
		return fmt.Errorf("promote record %s: %w", id, err)
	}

	if _, err := l.stm.Delete(ctx, id); err != nil {
		// The durable copy exists; the stale short-term copy will age out
		// on its own TTL.
		return fmt.Errorf("remove consolidated record %s: %w", id, err)
	}

	l.log.Debug("consolidated record", zap.String("id", id))
	return nil
}

// RetrieveToShortTerm materializes a long-term record as a fresh short-term
// record and returns the new id. The long-term original is left in place.
// ok is false when the long-term record does not exist.
func (l *Lifecycle) RetrieveToShortTerm(ctx context.Context, ltmID string, ttl time.Duration) (string, bool, error) {
	rec, ok, err := l.ltm.Get(ctx, ltmID)
	if err != nil || !ok {
		return "", ok, err
	}

	stmID, err := l.stm.Create(ctx, prepareForShortTerm(rec), ttl)
	if err != nil {
		return "", false, fmt.Errorf("retrieve record %s: %w", ltmID, err)
	}

	l.log.Debug("retrieved record to short-term",
		zap.String("ltm_id", ltmID), zap.String("stm_id", stmID))
	return stmID, true, nil
}

// Forget permanently deletes a long-term record. Returns whether deletion
// occurred.
func (l *Lifecycle) Forget(ctx context.Context, ltmID string) (bool, error) {
	ok, err := l.ltm.Delete(ctx, ltmID)
	if err != nil {
		return false, err
	}
	if ok {
		l.log.Debug("forgot long-term record", zap.String("id", ltmID))
	}
	return ok, nil
}

// prepareForLongTerm strips short-term bookkeeping and renames the tier
// timestamps. The identifier carries over unchanged.
func prepareForLongTerm(rec model.Record) model.Record {
	out := rec.Clone()

	delete(out, model.FieldAccessCount)
	delete(out, model.FieldLastAccessedAt)
	delete(out, model.FieldLocked)
	delete(out, model.FieldLockedAt)

	now := model.Now()
	out[model.FieldSTMCreatedAt] = popString(out, model.FieldCreatedAt, now)
	out[model.FieldSTMUpdatedAt] = popString(out, model.FieldUpdatedAt, now)
	out[model.FieldConsolidatedAt] = now

	return out
}

// prepareForShortTerm strips the long-term identifier (the short-term copy
// gets a fresh one) and stamps retrieval provenance.
func prepareForShortTerm(rec model.Record) model.Record {
	out := rec.Clone()

	out[model.FieldLTMID] = out.ID()
	delete(out, model.FieldID)
	out[model.FieldRetrievedAt] = model.Now()
	out[model.FieldRetrievedFromLTM] = true

	return out
}

func popString(rec model.Record, key, fallback string) string {
	if s := rec.String(key); s != "" {
		delete(rec, key)
		return s
	}
	delete(rec, key)
	return fallback
}
