package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shoppro/backend/internal/ops"
	"shoppro/backend/internal/store"
)

const backupVersion = 1

// BackupDocument is the portable export: every persisted collection keyed by
// its store key. The session is never part of a backup.
type BackupDocument struct {
	Version    int                        `json:"version"`
	ExportedAt time.Time                  `json:"exportedAt"`
	Data       map[string]json.RawMessage `json:"data"`
}

// Backup snapshots every data key from live state, so unsaved defaults are
// included even if they were never written to the store.
func (s *Service) Backup() (BackupDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := BackupDocument{
		Version:    backupVersion,
		ExportedAt: time.Now().UTC(),
		Data:       make(map[string]json.RawMessage, len(store.DataKeys)),
	}
	collections := map[string]any{
		store.KeyUsers:         s.state.Users,
		store.KeySellerProfile: s.state.SellerProfile,
		store.KeyCustomers:     s.state.Customers,
		store.KeyCategories:    s.state.Categories,
		store.KeyUnits:         s.state.Units,
		store.KeyProducts:      s.state.Products,
		store.KeyStockEntries:  s.state.StockEntries,
		store.KeyInvoices:      s.state.Invoices,
	}
	for key, value := range collections {
		raw, err := json.Marshal(value)
		if err != nil {
			return BackupDocument{}, fmt.Errorf("encode %s: %w", key, err)
		}
		doc.Data[key] = raw
	}
	return doc, nil
}

// Restore validates the document, overwrites every data key in the store,
// and reloads state from scratch. A document that fails validation leaves
// both the store and the in-memory state untouched.
func (s *Service) Restore(ctx context.Context, doc BackupDocument) error {
	if doc.Version != backupVersion {
		return fmt.Errorf("%w: unsupported backup version %d", ops.ErrValidation, doc.Version)
	}
	for _, key := range store.DataKeys {
		if _, ok := doc.Data[key]; !ok {
			return fmt.Errorf("%w: backup missing %s", ops.ErrValidation, key)
		}
	}
	// Decode every payload against its real shape before writing anything.
	probe := Service{kv: probeKV(doc.Data)}
	if err := probe.Load(ctx); err != nil {
		return fmt.Errorf("%w: %v", ops.ErrValidation, err)
	}

	for _, key := range store.DataKeys {
		if err := s.kv.Set(ctx, key, doc.Data[key]); err != nil {
			return fmt.Errorf("restore %s: %w", key, err)
		}
	}
	return s.Load(ctx)
}

// probeKV serves a backup's payloads through the KV interface so Load can be
// reused as the validator.
type probeKV map[string]json.RawMessage

func (p probeKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	payload, ok := p[key]
	return payload, ok, nil
}

func (p probeKV) Set(context.Context, string, []byte) error { return nil }
func (p probeKV) Delete(context.Context, string) error      { return nil }
func (p probeKV) Close() error                              { return nil }
