package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"serverwatch/internal/blob"
	"serverwatch/internal/blob/memory"
	"serverwatch/internal/domain"
)

// countingStore wraps the memory store and counts Save calls per key.
type countingStore struct {
	inner *memory.Store
	mu    sync.Mutex
	saves map[string]int
}

func newCountingStore() *countingStore {
	return &countingStore{inner: memory.New(), saves: make(map[string]int)}
}

func (c *countingStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	return c.inner.Load(ctx, key)
}

func (c *countingStore) Save(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	c.saves[key]++
	c.mu.Unlock()
	return c.inner.Save(ctx, key, value)
}

func (c *countingStore) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saves[key]
}

func TestAdd_AssignsIDAndPersists(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	r := New(zap.NewNop(), store)

	s := r.Add(ctx, "example.com", 200)
	if s.ID == "" {
		t.Fatalf("expected fresh id")
	}
	if s.Status != domain.StatusUnknown || len(s.History) != 0 || s.LastChecked != nil {
		t.Fatalf("new server not pristine: %+v", s)
	}
	if store.count(blob.KeyServers) != 1 {
		t.Fatalf("want 1 save, got %d", store.count(blob.KeyServers))
	}
}

func TestUpdate_PreservesStateAndHistory(t *testing.T) {
	ctx := context.Background()
	r := New(zap.NewNop(), newCountingStore())

	s := r.Add(ctx, "example.com", 200)
	res := domain.CheckResult{ID: "r1", Timestamp: time.Now().UTC(), StatusCode: 200, IsOnline: true}
	if _, ok := r.ApplyResult(ctx, s.ID, res); !ok {
		t.Fatalf("ApplyResult failed")
	}

	if !r.Update(ctx, s.ID, "other.example", 404) {
		t.Fatalf("Update on existing id failed")
	}
	got, ok := r.Get(s.ID)
	if !ok {
		t.Fatalf("Get after update")
	}
	if got.Domain != "other.example" || got.ExpectedStatus != 404 {
		t.Fatalf("fields not replaced: %+v", got)
	}
	if got.ID != s.ID || got.Status != domain.StatusOnline || got.LastChecked == nil || len(got.History) != 1 {
		t.Fatalf("update clobbered preserved state: %+v", got)
	}
}

func TestUpdate_MissingIDIsNoOpWithoutSave(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	r := New(zap.NewNop(), store)
	r.Add(ctx, "example.com", 200)
	before := store.count(blob.KeyServers)

	if r.Update(ctx, "no-such-id", "x.example", 200) {
		t.Fatalf("Update on missing id should report false")
	}
	if store.count(blob.KeyServers) != before {
		t.Fatalf("missing-id update must not persist")
	}
	if len(r.SnapshotAll()) != 1 {
		t.Fatalf("registry changed by missing-id update")
	}
}

func TestRemove_DropsNamedServersKeepingOrder(t *testing.T) {
	ctx := context.Background()
	r := New(zap.NewNop(), newCountingStore())
	a := r.Add(ctx, "a.example", 200)
	b := r.Add(ctx, "b.example", 200)
	c := r.Add(ctx, "c.example", 200)

	r.Remove(ctx, []domain.ServerID{a.ID, c.ID})

	all := r.SnapshotAll()
	if len(all) != 1 || all[0].ID != b.ID {
		t.Fatalf("unexpected survivors: %+v", all)
	}
}

func TestSnapshotAll_RegistryOrder(t *testing.T) {
	ctx := context.Background()
	r := New(zap.NewNop(), newCountingStore())
	var want []domain.ServerID
	for _, h := range []string{"a.example", "b.example", "c.example"} {
		want = append(want, r.Add(ctx, h, 200).ID)
	}
	all := r.SnapshotAll()
	for i, s := range all {
		if s.ID != want[i] {
			t.Fatalf("order broken at %d: %v", i, all)
		}
	}
}

func TestLoad_RoundTripEqual(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	r := New(zap.NewNop(), store)
	s := r.Add(ctx, "example.com", 404)
	ts := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	r.ApplyResult(ctx, s.ID, domain.CheckResult{ID: "r1", Timestamp: ts, StatusCode: 404, IsOnline: true})

	// fresh registry over the same store
	r2 := New(zap.NewNop(), store)
	r2.Load(ctx)

	want := r.SnapshotAll()
	got := r2.SnapshotAll()
	if len(got) != len(want) {
		t.Fatalf("server count: want %d got %d", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if g.ID != w.ID || g.Domain != w.Domain || g.ExpectedStatus != w.ExpectedStatus || g.Status != w.Status {
			t.Fatalf("server %d mismatch:\nwant %+v\ngot  %+v", i, w, g)
		}
		if (g.LastChecked == nil) != (w.LastChecked == nil) ||
			(g.LastChecked != nil && !g.LastChecked.Equal(*w.LastChecked)) {
			t.Fatalf("lastChecked mismatch: %v vs %v", g.LastChecked, w.LastChecked)
		}
		if len(g.History) != len(w.History) {
			t.Fatalf("history length mismatch")
		}
		for j := range w.History {
			if !g.History[j].Timestamp.Equal(w.History[j].Timestamp) ||
				g.History[j].ID != w.History[j].ID ||
				g.History[j].StatusCode != w.History[j].StatusCode ||
				g.History[j].IsOnline != w.History[j].IsOnline {
				t.Fatalf("history entry %d mismatch", j)
			}
		}
	}
}

func TestLoad_CorruptBlobMeansEmpty(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore()
	_ = store.Save(ctx, blob.KeyServers, []byte("{not json"))

	r := New(zap.NewNop(), store)
	r.Load(ctx)
	if n := len(r.SnapshotAll()); n != 0 {
		t.Fatalf("corrupt blob should yield empty registry, got %d servers", n)
	}
}

func TestMarkChecking_SetsTransitionalState(t *testing.T) {
	ctx := context.Background()
	r := New(zap.NewNop(), newCountingStore())
	s := r.Add(ctx, "example.com", 200)
	r.ApplyResult(ctx, s.ID, domain.CheckResult{ID: "r1", Timestamp: time.Now().UTC(), StatusCode: 200, IsOnline: true})

	now := time.Now().UTC().Add(time.Minute)
	if !r.MarkChecking(ctx, s.ID, now) {
		t.Fatalf("MarkChecking failed")
	}
	got, _ := r.Get(s.ID)
	if got.Status != domain.StatusUnknown || got.LastChecked == nil || !got.LastChecked.Equal(now) {
		t.Fatalf("transitional state wrong: %+v", got)
	}
	if len(got.History) != 1 {
		t.Fatalf("MarkChecking must not touch history")
	}
}
