// Package registry owns the set of monitored servers. All mutations funnel
// through one mutex, which is what keeps history ordering and persistence
// writes from interleaving.
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"serverwatch/internal/blob"
	"serverwatch/internal/domain"
)

type Registry struct {
	log   *zap.Logger
	store blob.Store

	mu      sync.Mutex
	servers map[domain.ServerID]*domain.Server
	order   []domain.ServerID
}

func New(log *zap.Logger, store blob.Store) *Registry {
	return &Registry{
		log:     log,
		store:   store,
		servers: make(map[domain.ServerID]*domain.Server),
	}
}

// Load restores the registry from the blob store. A missing or corrupt blob
// means an empty registry, never a startup failure.
func (r *Registry) Load(ctx context.Context) {
	data, found, err := r.store.Load(ctx, blob.KeyServers)
	if err != nil {
		r.log.Warn("registry_load_error", zap.Error(err))
		return
	}
	if !found || len(data) == 0 {
		return
	}
	var servers []domain.Server
	if err := json.Unmarshal(data, &servers); err != nil {
		r.log.Warn("registry_blob_corrupt", zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers = make(map[domain.ServerID]*domain.Server, len(servers))
	r.order = r.order[:0]
	for i := range servers {
		s := servers[i]
		if s.ID == "" {
			continue
		}
		if s.Status == "" {
			s.Status = domain.StatusUnknown
		}
		r.servers[s.ID] = &s
		r.order = append(r.order, s.ID)
	}
	r.log.Info("registry_loaded", zap.Int("servers", len(r.order)))
}

// Add registers a new server with a fresh id, empty history and unknown
// status, then persists.
func (r *Registry) Add(ctx context.Context, host string, expectedStatus int) domain.Server {
	s := domain.Server{
		ID:             domain.ServerID(uuid.NewString()),
		Domain:         host,
		ExpectedStatus: expectedStatus,
		Status:         domain.StatusUnknown,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers[s.ID] = &s
	r.order = append(r.order, s.ID)
	r.persistLocked(ctx)
	return s.Clone()
}

// Update replaces the domain and expected status of an existing server,
// keeping its id, tri-state, last-checked time and history. Unknown ids are
// a silent no-op with no persistence write.
func (r *Registry) Update(ctx context.Context, id domain.ServerID, host string, expectedStatus int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.servers[id]
	if !ok {
		return false
	}
	s.Domain = host
	s.ExpectedStatus = expectedStatus
	r.persistLocked(ctx)
	return true
}

// Remove deletes the named servers and persists.
func (r *Registry) Remove(ctx context.Context, ids []domain.ServerID) {
	drop := make(map[domain.ServerID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0]
	for _, id := range r.order {
		if drop[id] {
			delete(r.servers, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	r.persistLocked(ctx)
}

// Get looks up one server. Absent is a valid outcome, not an error.
func (r *Registry) Get(id domain.ServerID) (domain.Server, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.servers[id]
	if !ok {
		return domain.Server{}, false
	}
	return s.Clone(), true
}

// SnapshotAll returns all servers in registry order.
func (r *Registry) SnapshotAll() []domain.Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Server, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.servers[id].Clone())
	}
	return out
}

// MarkChecking flips a server into the in-progress state (unknown status,
// last-checked now) and persists, so observers see the check underway.
func (r *Registry) MarkChecking(ctx context.Context, id domain.ServerID, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.servers[id]
	if !ok {
		return false
	}
	s.Status = domain.StatusUnknown
	s.LastChecked = &now
	r.persistLocked(ctx)
	return true
}

// ApplyResult appends one check result to a server's history, updates its
// tri-state and last-checked time, and persists. Returns the updated server.
func (r *Registry) ApplyResult(ctx context.Context, id domain.ServerID, res domain.CheckResult) (domain.Server, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.servers[id]
	if !ok {
		// removed while its check was in flight; drop the result
		return domain.Server{}, false
	}
	updated := s.AppendResult(res)
	updated.Status = domain.StatusOffline
	if res.IsOnline {
		updated.Status = domain.StatusOnline
	}
	ts := res.Timestamp
	updated.LastChecked = &ts
	*s = updated
	r.persistLocked(ctx)
	return s.Clone(), true
}

// Persist forces a save of the current state. Used as the safety net at the
// end of a sweep.
func (r *Registry) Persist(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistLocked(ctx)
}

// persistLocked serializes the registry under the savedServers key. Save
// failures are logged and swallowed; persistence is best-effort.
func (r *Registry) persistLocked(ctx context.Context) {
	servers := make([]domain.Server, 0, len(r.order))
	for _, id := range r.order {
		servers = append(servers, *r.servers[id])
	}
	data, err := json.Marshal(servers)
	if err != nil {
		r.log.Warn("registry_encode_error", zap.Error(err))
		return
	}
	if err := r.store.Save(ctx, blob.KeyServers, data); err != nil {
		r.log.Warn("registry_save_error", zap.Error(err))
	}
}
