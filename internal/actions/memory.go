// In-memory Store implementation with optional file-based snapshots so
// planned actions survive restarts during local development.
package actions

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/darnellt0/em-ai-ecosystem-sub002/pkg/models"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Actions map[string]*models.PlannedAction `json:"actions"`
	Order   []string                         `json:"order"`
}

// MemoryStore implements Store with a mutex-guarded map. Insertion order is
// tracked separately so idempotency lookups and pending listings are
// deterministic.
type MemoryStore struct {
	mu      sync.RWMutex
	actions map[string]*models.PlannedAction
	order   []string

	// Persistence. Empty snapshotPath disables it.
	snapshotPath string
	saveMu       sync.Mutex
	saveCh       chan struct{}
	doneCh       chan struct{}
	closeOnce    sync.Once
}

// NewMemoryStore creates a store. When dataDir is non-empty, records are
// persisted to a debounced JSON snapshot in that directory and loaded back
// on startup.
func NewMemoryStore(dataDir string) *MemoryStore {
	m := &MemoryStore{
		actions: make(map[string]*models.PlannedAction),
		saveCh:  make(chan struct{}, 1),
		doneCh:  make(chan struct{}),
	}

	if dataDir != "" {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
		} else {
			m.snapshotPath = filepath.Join(dataDir, "actions.json")
			m.loadSnapshot()
			go m.saveLoop()
		}
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("Action store configured")
	return m
}

func (m *MemoryStore) SavePlanned(_ context.Context, action *models.PlannedAction) (*models.PlannedAction, error) {
	stored := *action
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.Status == "" {
		stored.Status = models.ActionPlanned
	}
	if stored.Risk == "" {
		stored.Risk = models.RiskMedium
	}
	if stored.Priority == "" {
		stored.Priority = models.PriorityMedium
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now

	m.mu.Lock()
	if _, exists := m.actions[stored.ID]; !exists {
		m.order = append(m.order, stored.ID)
	}
	m.actions[stored.ID] = &stored
	m.mu.Unlock()
	m.requestSave()

	out := stored
	return &out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*models.PlannedAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.actions[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "action", Key: id}
	}
	out := *a
	return &out, nil
}

func (m *MemoryStore) Approve(_ context.Context, id, approvedBy, notes string) (*models.PlannedAction, error) {
	m.mu.Lock()
	a, ok := m.actions[id]
	if !ok {
		m.mu.Unlock()
		return nil, &ErrNotFound{Entity: "action", Key: id}
	}
	if a.Status != models.ActionPlanned {
		m.mu.Unlock()
		return nil, &ErrInvalidTransition{ID: id, From: a.Status, To: models.ActionApproved}
	}
	a.Status = models.ActionApproved
	a.ApprovedBy = approvedBy
	if notes != "" {
		a.Notes = notes
	}
	a.UpdatedAt = time.Now().UTC()
	out := *a
	m.mu.Unlock()
	m.requestSave()
	return &out, nil
}

func (m *MemoryStore) RecordReceipt(_ context.Context, id string, receipt *models.ActionReceipt) error {
	m.mu.Lock()
	a, ok := m.actions[id]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "action", Key: id}
	}
	r := *receipt
	a.Receipt = &r
	a.Status = receipt.Status
	a.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) FindByIdempotencyKey(_ context.Context, key string) (*models.PlannedAction, error) {
	if key == "" {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Linear scan in insertion order: the first matching record wins.
	for _, id := range m.order {
		if a := m.actions[id]; a != nil && a.IdempotencyKey == key {
			out := *a
			return &out, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListPending(_ context.Context) ([]models.PlannedAction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.PlannedAction
	for _, id := range m.order {
		a := m.actions[id]
		if a == nil {
			continue
		}
		if a.Status == models.ActionPlanned || a.Status == models.ActionApproved {
			out = append(out, *a)
		}
	}
	return out, nil
}

// Close stops the background writer and flushes a final snapshot. Safe to
// call more than once.
func (m *MemoryStore) Close() error {
	m.closeOnce.Do(func() {
		close(m.doneCh)
		if m.snapshotPath != "" {
			m.saveSnapshot()
		}
	})
	return nil
}

// ── Snapshot persistence ────────────────────────────────────

// requestSave signals the background goroutine to persist. Non-blocking:
// rapid writes coalesce into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(200 * time.Millisecond) // debounce
			m.saveSnapshot()
		}
	}
}

func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	data, err := json.MarshalIndent(snapshot{Actions: m.actions, Order: m.order}, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal action snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to a temp file then rename for atomicity.
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write action snapshot")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename action snapshot")
	}
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Failed to read action snapshot")
		}
		return
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to parse action snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Actions != nil {
		m.actions = snap.Actions
	}
	m.order = snap.Order
	for id := range m.actions {
		if !contains(m.order, id) {
			m.order = append(m.order, id)
		}
	}

	log.Info().Int("actions", len(m.actions)).Str("path", m.snapshotPath).Msg("Action snapshot loaded")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
