package memory

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/docstore"
	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/model"
)

// LongTermManager owns durable record storage in the document store. The
// per-record version counter is maintained here, not by the store: version
// starts at 1 and increments by 1 on every successful update, never
// decreasing or resetting.
type LongTermManager struct {
	docs docstore.Store
	log  *zap.Logger
}

// NewLongTermManager creates a manager over the given document store.
func NewLongTermManager(docs docstore.Store, log *zap.Logger) *LongTermManager {
	return &LongTermManager{docs: docs, log: log}
}

// Create stores a new long-term record and returns its id. An id already
// present on the record (the consolidation path) is kept; otherwise a fresh
// one is generated.
func (m *LongTermManager) Create(ctx context.Context, data model.Record) (string, error) {
	rec := data.Clone()
	id := rec.ID()
	if id == "" {
		id = newID()
		rec[model.FieldID] = id
	}

	now := model.Now()
	rec[model.FieldLTCreatedAt] = now
	rec[model.FieldLTUpdatedAt] = now
	rec[model.FieldVersion] = 1

	if err := m.docs.Insert(ctx, rec); err != nil {
		return "", fmt.Errorf("create long-term record: %w", err)
	}

	m.log.Debug("created long-term record", zap.String("id", id))
	return id, nil
}

// Get retrieves a long-term record by id. ok is false when absent.
func (m *LongTermManager) Get(ctx context.Context, id string) (model.Record, bool, error) {
	rec, ok, err := m.docs.FindOne(ctx, model.Record{model.FieldID: id})
	if err != nil {
		return nil, false, fmt.Errorf("get long-term record %s: %w", id, err)
	}
	return rec, ok, nil
}

// Update merges fields into an existing record with a version bump. ok is
// false if the record is absent.
func (m *LongTermManager) Update(ctx context.Context, id string, fields model.Record) (bool, error) {
	current, ok, err := m.Get(ctx, id)
	if err != nil || !ok {
		return false, err
	}

	patch := fields.Clone()
	patch[model.FieldLTUpdatedAt] = model.Now()
	patch[model.FieldVersion] = current.Int(model.FieldVersion) + 1

	n, err := m.docs.UpdateOne(ctx, model.Record{model.FieldID: id}, patch)
	if err != nil {
		return false, fmt.Errorf("update long-term record %s: %w", id, err)
	}
	if n > 0 {
		m.log.Debug("updated long-term record",
			zap.String("id", id), zap.Int("version", patch.Int(model.FieldVersion)))
	}
	return n > 0, nil
}

// Delete permanently removes a long-term record. Returns whether deletion
// occurred.
func (m *LongTermManager) Delete(ctx context.Context, id string) (bool, error) {
	n, err := m.docs.DeleteOne(ctx, model.Record{model.FieldID: id})
	if err != nil {
		return false, fmt.Errorf("delete long-term record %s: %w", id, err)
	}
	if n > 0 {
		m.log.Debug("deleted long-term record", zap.String("id", id))
	}
	return n > 0, nil
}

// Search returns up to limit records matching the exact-match filter.
func (m *LongTermManager) Search(ctx context.Context, filter model.Record, limit int) ([]model.Record, error) {
	docs, err := m.docs.Find(ctx, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("search long-term records: %w", err)
	}
	return docs, nil
}
