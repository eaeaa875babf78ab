// Package store provides the in-memory Store implementation (tests/dev).
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/commute-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	cfg        engine.Config
	employees  map[engine.EmployeeID]*engine.Employee
	rides      []engine.Ride
	batches    []engine.ExportBatch
	exceptions map[engine.EmployeeID]engine.DeadlineException
}

func NewMemory() *Memory {
	return &Memory{
		cfg:        engine.DefaultConfig(),
		employees:  make(map[engine.EmployeeID]*engine.Employee),
		exceptions: make(map[engine.EmployeeID]engine.DeadlineException),
	}
}

// =============================================================================
// CONFIGURATION
// =============================================================================

func (m *Memory) LoadConfig(_ context.Context) (engine.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg, nil
}

func (m *Memory) SaveConfig(_ context.Context, cfg engine.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	return nil
}

// =============================================================================
// MASTER DIRECTORY
// =============================================================================

func (m *Memory) SaveEmployee(_ context.Context, e engine.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[e.ID] = e.Clone()
	return nil
}

func (m *Memory) GetEmployee(_ context.Context, id engine.EmployeeID) (*engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, nil
	}
	return e.Clone(), nil
}

func (m *Memory) ListEmployees(_ context.Context) ([]engine.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		out = append(out, *e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// RIDE LEDGER - Append-only; MarkProcessed is the single allowed mutation
// =============================================================================

func (m *Memory) AppendRide(_ context.Context, r engine.Ride) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Insert sorted by date so range scans return chronological order.
	i := sort.Search(len(m.rides), func(i int) bool {
		return m.rides[i].Date.After(r.Date)
	})
	m.rides = append(m.rides, engine.Ride{})
	copy(m.rides[i+1:], m.rides[i:])
	m.rides[i] = r
	return nil
}

func (m *Memory) RidesByEmployee(_ context.Context, id engine.EmployeeID) ([]engine.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Ride
	for _, r := range m.rides {
		if r.EmployeeID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) RidesInRange(_ context.Context, id engine.EmployeeID, p engine.Period) ([]engine.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Ride
	for _, r := range m.rides {
		if r.EmployeeID == id && p.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) RidesOnDate(_ context.Context, id engine.EmployeeID, d engine.Date) ([]engine.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Ride
	for _, r := range m.rides {
		if r.EmployeeID == id && r.Date.Equal(d) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) UnprocessedRides(_ context.Context) ([]engine.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Ride
	for _, r := range m.rides {
		if !r.Processed {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) RidesByBatch(_ context.Context, batchID int) ([]engine.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Ride
	for _, r := range m.rides {
		if r.Processed && r.ExportBatchID == batchID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) MarkProcessed(_ context.Context, ids []engine.RideID, batchID int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[engine.RideID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range m.rides {
		if want[m.rides[i].ID] && !m.rides[i].Processed {
			m.rides[i].Processed = true
			m.rides[i].ExportBatchID = batchID
			m.rides[i].ExportedAt = at
		}
	}
	return nil
}

// =============================================================================
// EXPORT HISTORY
// =============================================================================

func (m *Memory) AppendExportBatch(_ context.Context, b engine.ExportBatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, b)
	return nil
}

func (m *Memory) ListExportBatches(_ context.Context) ([]engine.ExportBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.ExportBatch, len(m.batches))
	copy(out, m.batches)
	return out, nil
}

// =============================================================================
// DEADLINE EXCEPTIONS - Expired entries pruned lazily on read
// =============================================================================

func (m *Memory) SaveDeadlineException(_ context.Context, ex engine.DeadlineException) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exceptions[ex.EmployeeID] = ex
	return nil
}

func (m *Memory) ActiveDeadlineException(_ context.Context, id engine.EmployeeID, today engine.Date) (*engine.DeadlineException, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.exceptions[id]
	if !ok {
		return nil, nil
	}
	if !ex.Active(today) {
		delete(m.exceptions, id)
		return nil, nil
	}
	cp := ex
	return &cp, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with snapshot/rollback transactions.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn against the store; on error the pre-transaction state
// is restored.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(engine.Store) error) error {
	snapshot := tm.snapshot()
	if err := fn(tm.Memory); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	cfg        engine.Config
	employees  map[engine.EmployeeID]*engine.Employee
	rides      []engine.Ride
	batches    []engine.ExportBatch
	exceptions map[engine.EmployeeID]engine.DeadlineException
}

func (tm *TxMemory) snapshot() memorySnapshot {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	emps := make(map[engine.EmployeeID]*engine.Employee, len(tm.employees))
	for id, e := range tm.employees {
		emps[id] = e.Clone()
	}
	exs := make(map[engine.EmployeeID]engine.DeadlineException, len(tm.exceptions))
	for id, ex := range tm.exceptions {
		exs[id] = ex
	}
	rides := make([]engine.Ride, len(tm.rides))
	copy(rides, tm.rides)
	batches := make([]engine.ExportBatch, len(tm.batches))
	copy(batches, tm.batches)

	return memorySnapshot{cfg: tm.cfg, employees: emps, rides: rides, batches: batches, exceptions: exs}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	tm.cfg = s.cfg
	tm.employees = s.employees
	tm.rides = s.rides
	tm.batches = s.batches
	tm.exceptions = s.exceptions
}
