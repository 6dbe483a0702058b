package memory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/model"
)

// Well-known short-term record identifiers for the shared world state and
// its history. Both live in the short-term store with no expiration.
const (
	WorldStateKey        = "world_state"
	WorldStateHistoryKey = "world_state_history"
)

// reservedKey reports whether the id is one of the fixed world-state keys,
// which never migrate tiers regardless of access count.
func reservedKey(id string) bool {
	return id == WorldStateKey || id == WorldStateHistoryKey
}

// World state record fields.
const (
	wsVersion         = "version"
	wsState           = "state"
	wsPreviousVersion = "previous_version"
	wsUpdatedAt       = "updated_at"
	wsRolledBackFrom  = "rolled_back_from"
	wsRolledBackTo    = "rolled_back_to"
	wsVersions        = "versions"
	wsTimestamp       = "timestamp"
)

// WorldState maintains the single shared, versioned state document that all
// agents read and mutate, with append-only history and rollback. It is built
// entirely atop the short-term manager and owns exclusive access to its two
// backing keys.
//
// Writes are read-then-write with no conditional guard: two concurrent
// updaters can both read version N, both compute N+1, and the later write
// silently overwrites the earlier (lost update). This is an accepted
// limitation of the design; see the package tests documenting it.
type WorldState struct {
	stm        *ShortTermManager
	maxHistory int
	log        *zap.Logger
}

// NewWorldState creates the world state log. maxHistory caps the number of
// retained history snapshots (oldest evicted first).
func NewWorldState(stm *ShortTermManager, maxHistory int, log *zap.Logger) *WorldState {
	return &WorldState{stm: stm, maxHistory: maxHistory, log: log}
}

// Current returns the world-state record, initializing version 1 with an
// empty state map on first call. Idempotent after that.
func (w *WorldState) Current(ctx context.Context) (model.Record, error) {
	rec, _, err := w.current(ctx)
	return rec, err
}

// current additionally reports whether the record already existed in the
// store. The distinction matters for history: a version initialized and
// immediately superseded within one update was never observable, so it gets
// no snapshot.
func (w *WorldState) current(ctx context.Context) (model.Record, bool, error) {
	rec, ok, err := w.stm.Get(ctx, WorldStateKey)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return rec, true, nil
	}

	rec = model.Record{
		wsVersion:   1,
		wsState:     map[string]any{},
		wsUpdatedAt: model.Now(),
	}
	if _, err := w.stm.createWithID(ctx, WorldStateKey, rec, TTLNone); err != nil {
		return nil, false, fmt.Errorf("initialize world state: %w", err)
	}

	w.log.Info("initialized world state")
	return rec, false, nil
}

// Update shallow-merges the partial map into the state: new keys added,
// overlapping keys overwritten, untouched keys preserved. The pre-update
// snapshot is appended to history first, then the new version (exactly
// current+1) is persisted. Returns the new version number.
func (w *WorldState) Update(ctx context.Context, updates map[string]any) (int, error) {
	current, existed, err := w.current(ctx)
	if err != nil {
		return 0, err
	}

	newVersion := current.Int(wsVersion) + 1

	state := stateMap(current)
	for k, v := range updates {
		state[k] = v
	}

	if existed {
		if err := w.saveToHistory(ctx, current); err != nil {
			return 0, err
		}
	}

	ok, err := w.stm.Update(ctx, WorldStateKey, model.Record{
		wsVersion:         newVersion,
		wsState:           state,
		wsPreviousVersion: current.Int(wsVersion),
		wsUpdatedAt:       model.Now(),
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("world state record vanished during update")
	}

	w.log.Debug("updated world state", zap.Int("version", newVersion))
	return newVersion, nil
}

// Version returns the state at a specific version: the current record when
// v matches it, otherwise the matching history snapshot. ok is false when
// neither matches.
func (w *WorldState) Version(ctx context.Context, v int) (model.Record, bool, error) {
	current, err := w.Current(ctx)
	if err != nil {
		return nil, false, err
	}
	if current.Int(wsVersion) == v {
		return current, true, nil
	}

	history, ok, err := w.stm.Get(ctx, WorldStateHistoryKey)
	if err != nil || !ok {
		return nil, false, err
	}

	for _, entry := range historyEntries(history) {
		if entry.Int(wsVersion) == v {
			return model.Record{
				wsVersion:   entry.Int(wsVersion),
				wsState:     map[string]any(entry.Map(wsState)),
				wsUpdatedAt: entry[wsTimestamp],
			}, true, nil
		}
	}
	return nil, false, nil
}

// RollbackTo restores the state map of an earlier version as a new forward
// version with rollback provenance. Rolling back never rewrites or removes
// history: it is itself a recorded transition, so the version chain stays
// complete and replayable. Returns false without side effects when the
// target version is in neither current state nor history.
func (w *WorldState) RollbackTo(ctx context.Context, v int) (bool, error) {
	target, ok, err := w.Version(ctx, v)
	if err != nil || !ok {
		return false, err
	}

	current, err := w.Current(ctx)
	if err != nil {
		return false, err
	}
	currentVersion := current.Int(wsVersion)
	newVersion := currentVersion + 1

	if err := w.saveToHistory(ctx, current); err != nil {
		return false, err
	}

	ok, err = w.stm.Update(ctx, WorldStateKey, model.Record{
		wsVersion:         newVersion,
		wsState:           stateMap(target),
		wsPreviousVersion: currentVersion,
		wsRolledBackFrom:  currentVersion,
		wsRolledBackTo:    v,
		wsUpdatedAt:       model.Now(),
	})
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("world state record vanished during rollback")
	}

	w.log.Info("rolled back world state",
		zap.Int("from", currentVersion), zap.Int("to", v), zap.Int("new_version", newVersion))
	return true, nil
}

// saveToHistory appends the {version, state, timestamp} snapshot of the
// state being superseded and truncates to the most recent maxHistory
// entries, oldest dropped first.
func (w *WorldState) saveToHistory(ctx context.Context, state model.Record) error {
	history, ok, err := w.stm.Get(ctx, WorldStateHistoryKey)
	if err != nil {
		return err
	}
	if !ok {
		history = model.Record{wsVersions: []any{}}
		if _, err := w.stm.createWithID(ctx, WorldStateHistoryKey, history, TTLNone); err != nil {
			return fmt.Errorf("initialize world state history: %w", err)
		}
	}

	versions := append(rawHistoryEntries(history), map[string]any{
		wsVersion:   state.Int(wsVersion),
		wsState:     map[string]any(stateMap(state)),
		wsTimestamp: state[wsUpdatedAt],
	})
	if len(versions) > w.maxHistory {
		versions = versions[len(versions)-w.maxHistory:]
	}

	ok, err = w.stm.Update(ctx, WorldStateHistoryKey, model.Record{wsVersions: versions})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("world state history record vanished during append")
	}
	return nil
}

// stateMap returns a copy of the record's state map, never nil.
func stateMap(rec model.Record) model.Record {
	state := rec.Map(wsState)
	out := make(model.Record, len(state))
	for k, v := range state {
		out[k] = v
	}
	return out
}

// rawHistoryEntries returns the history list as decoded, oldest first.
func rawHistoryEntries(history model.Record) []any {
	entries, _ := history[wsVersions].([]any)
	return entries
}

// historyEntries returns the history snapshots as records, oldest first.
func historyEntries(history model.Record) []model.Record {
	raw := rawHistoryEntries(history)
	out := make([]model.Record, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			out = append(out, model.Record(m))
		}
	}
	return out
}
