// Package memory implements the tiered memory core: the short-term record
// manager, the long-term record manager, the tier transition lifecycle, the
// versioned world state, and the consolidation scheduler.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/kvstore"
	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/model"
)

// TTL sentinels for Create/Unlock. Any positive duration is an explicit
// expiration.
const (
	// TTLDefault applies the manager's configured default expiration.
	TTLDefault time.Duration = 0
	// TTLNone stores the record with no expiration.
	TTLNone time.Duration = -1
)

const (
	stmNamespace       = "stm:"
	stmScanCount       = 1000
	defaultSearchLimit = 100
)

// ShortTermManager owns short-term record CRUD against the TTL store,
// access bookkeeping, locking, and consolidation-candidate scanning.
type ShortTermManager struct {
	kv         kvstore.Store
	defaultTTL time.Duration
	log        *zap.Logger
}

// NewShortTermManager creates a manager over the given TTL store.
func NewShortTermManager(kv kvstore.Store, defaultTTL time.Duration, log *zap.Logger) *ShortTermManager {
	return &ShortTermManager{kv: kv, defaultTTL: defaultTTL, log: log}
}

func (m *ShortTermManager) key(id string) string {
	return stmNamespace + id
}

func newID() string {
	return ulid.Make().String()
}

func (m *ShortTermManager) resolveTTL(ttl time.Duration) time.Duration {
	switch {
	case ttl == TTLNone:
		return 0 // persistent in the store
	case ttl == TTLDefault:
		return m.defaultTTL
	default:
		return ttl
	}
}

// Create stores a new record with a fresh identifier and returns the id.
// Identifiers are never supplied by the caller.
func (m *ShortTermManager) Create(ctx context.Context, data model.Record, ttl time.Duration) (string, error) {
	return m.createWithID(ctx, newID(), data, ttl)
}

// createWithID is the internal creation path used for well-known fixed keys
// (world state and its history).
func (m *ShortTermManager) createWithID(ctx context.Context, id string, data model.Record, ttl time.Duration) (string, error) {
	rec := data.Clone()
	rec[model.FieldID] = id
	rec[model.FieldCreatedAt] = model.Now()
	rec[model.FieldAccessCount] = 0

	resolved := m.resolveTTL(ttl)
	if err := m.write(ctx, id, rec, resolved); err != nil {
		return "", err
	}

	m.log.Debug("created short-term record",
		zap.String("id", id), zap.Duration("ttl", resolved))
	return id, nil
}

// Get retrieves a record by id. A successful read increments the access
// count and stamps the last-accessed timestamp, written back without
// altering the remaining TTL. ok is false when the record is absent or
// expired.
func (m *ShortTermManager) Get(ctx context.Context, id string) (model.Record, bool, error) {
	rec, ok, err := m.read(ctx, id)
	if err != nil || !ok {
		return nil, ok, err
	}

	rec[model.FieldAccessCount] = rec.Int(model.FieldAccessCount) + 1
	rec[model.FieldLastAccessedAt] = model.Now()

	if err := m.write(ctx, id, rec, kvstore.KeepTTL); err != nil {
		return nil, false, err
	}

	m.log.Debug("retrieved short-term record",
		zap.String("id", id), zap.Int("access_count", rec.Int(model.FieldAccessCount)))
	return rec, true, nil
}

// Update merges fields into an existing record, stamps the updated
// timestamp, and preserves the remaining TTL. ok is false if the record is
// absent.
func (m *ShortTermManager) Update(ctx context.Context, id string, fields model.Record) (bool, error) {
	rec, ok, err := m.read(ctx, id)
	if err != nil || !ok {
		return false, err
	}

	rec.Merge(fields)
	rec[model.FieldUpdatedAt] = model.Now()

	if err := m.write(ctx, id, rec, kvstore.KeepTTL); err != nil {
		return false, err
	}

	m.log.Debug("updated short-term record", zap.String("id", id))
	return true, nil
}

// Delete removes a record. Returns whether a record was actually removed.
func (m *ShortTermManager) Delete(ctx context.Context, id string) (bool, error) {
	n, err := m.kv.Delete(ctx, m.key(id))
	if err != nil {
		return false, fmt.Errorf("delete record %s: %w", id, err)
	}
	if n > 0 {
		m.log.Debug("deleted short-term record", zap.String("id", id))
	}
	return n > 0, nil
}

// ExtendTTL resets the expiration countdown on a record. Returns whether
// the record existed.
func (m *ShortTermManager) ExtendTTL(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	ok, err := m.kv.Expire(ctx, m.key(id), ttl)
	if err != nil {
		return false, fmt.Errorf("extend ttl for %s: %w", id, err)
	}
	if ok {
		m.log.Debug("extended short-term record ttl",
			zap.String("id", id), zap.Duration("ttl", ttl))
	}
	return ok, nil
}

// Lock flags a record as locked and strips its expiration: the record
// persists until explicitly unlocked or deleted. A crash before unlock
// leaves the record persistent; that is the documented contract.
func (m *ShortTermManager) Lock(ctx context.Context, id string) (bool, error) {
	rec, ok, err := m.read(ctx, id)
	if err != nil || !ok {
		return false, err
	}

	rec[model.FieldLocked] = true
	rec[model.FieldLockedAt] = model.Now()

	// A plain persistent write both stores the flags and removes the TTL.
	if err := m.write(ctx, id, rec, 0); err != nil {
		return false, err
	}

	m.log.Debug("locked short-term record", zap.String("id", id))
	return true, nil
}

// Unlock clears the locked flags and re-applies an expiration.
func (m *ShortTermManager) Unlock(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	rec, ok, err := m.read(ctx, id)
	if err != nil || !ok {
		return false, err
	}

	delete(rec, model.FieldLocked)
	delete(rec, model.FieldLockedAt)

	resolved := m.resolveTTL(ttl)
	if err := m.write(ctx, id, rec, resolved); err != nil {
		return false, err
	}

	m.log.Debug("unlocked short-term record",
		zap.String("id", id), zap.Duration("ttl", resolved))
	return true, nil
}

// Search scans all live records and returns up to limit records whose
// fields equal every key in the query, in encounter order. This is a full
// namespace scan: O(total live records). Acceptable because the short-term
// store is bounded and short-lived; callers needing scale should put an
// external index in front.
func (m *ShortTermManager) Search(ctx context.Context, query model.Record, limit int) ([]model.Record, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var results []model.Record
	err := m.scan(ctx, func(rec model.Record) bool {
		if rec.Matches(query) {
			results = append(results, rec)
		}
		return len(results) < limit
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListForConsolidation returns all unlocked records whose access count has
// reached the threshold. The fixed world-state keys are never candidates:
// they live in this tier permanently and reads against them accumulate
// access counts like any other record.
func (m *ShortTermManager) ListForConsolidation(ctx context.Context, minAccessCount int) ([]model.Record, error) {
	var eligible []model.Record
	err := m.scan(ctx, func(rec model.Record) bool {
		if reservedKey(rec.ID()) {
			return true
		}
		if !rec.Bool(model.FieldLocked) && rec.Int(model.FieldAccessCount) >= minAccessCount {
			eligible = append(eligible, rec)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return eligible, nil
}

// scan walks every live key in the namespace, decoding each record and
// passing it to fn. fn returns false to stop early. Scan reads are raw:
// they do not count as record accesses.
func (m *ShortTermManager) scan(ctx context.Context, fn func(model.Record) bool) error {
	var cursor uint64
	for {
		keys, next, err := m.kv.Scan(ctx, cursor, stmNamespace+"*", stmScanCount)
		if err != nil {
			return fmt.Errorf("scan short-term namespace: %w", err)
		}
		for _, key := range keys {
			raw, ok, err := m.kv.Get(ctx, key)
			if err != nil {
				return fmt.Errorf("read record %s: %w", key, err)
			}
			if !ok {
				continue // expired between scan and read
			}
			var rec model.Record
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				return fmt.Errorf("decode record %s: %w", key, err)
			}
			if !fn(rec) {
				return nil
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (m *ShortTermManager) read(ctx context.Context, id string) (model.Record, bool, error) {
	raw, ok, err := m.kv.Get(ctx, m.key(id))
	if err != nil {
		return nil, false, fmt.Errorf("read record %s: %w", id, err)
	}
	if !ok {
		return nil, false, nil
	}
	var rec model.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, false, fmt.Errorf("decode record %s: %w", id, err)
	}
	return rec, true, nil
}

func (m *ShortTermManager) write(ctx context.Context, id string, rec model.Record, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", id, err)
	}
	if err := m.kv.Set(ctx, m.key(id), string(raw), ttl); err != nil {
		return fmt.Errorf("write record %s: %w", id, err)
	}
	return nil
}
