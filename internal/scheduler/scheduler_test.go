package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"serverwatch/internal/blob"
	"serverwatch/internal/blob/memory"
	"serverwatch/internal/domain"
	"serverwatch/internal/probe"
	"serverwatch/internal/registry"
)

// scriptedChecker returns a fixed outcome and records the order of checks.
type scriptedChecker struct {
	mu      sync.Mutex
	outcome probe.Outcome
	seen    []domain.ServerID
}

func (f *scriptedChecker) Check(ctx context.Context, srv domain.Server) probe.Outcome {
	f.mu.Lock()
	f.seen = append(f.seen, srv.ID)
	f.mu.Unlock()
	return f.outcome
}

func (f *scriptedChecker) order() []domain.ServerID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ServerID(nil), f.seen...)
}

func newFixture(t *testing.T, out probe.Outcome) (*Scheduler, *registry.Registry, *scriptedChecker, *memory.Store) {
	t.Helper()
	store := memory.New()
	reg := registry.New(zap.NewNop(), store)
	chk := &scriptedChecker{outcome: out}
	sched := New(zap.NewNop(), reg, chk, store)
	t.Cleanup(sched.Stop)
	return sched, reg, chk, store
}

func TestCheckOne_OfflineAppendsOneEntry(t *testing.T) {
	ctx := context.Background()
	sched, reg, _, _ := newFixture(t, probe.Outcome{Online: false, StatusCode: 0, Reason: "DNS lookup failed"})
	srv := reg.Add(ctx, "unreachable.invalid", 200)

	res, diag, ok := sched.CheckOne(ctx, srv.ID)
	if !ok {
		t.Fatalf("known id reported missing")
	}
	if res.IsOnline || res.StatusCode != 0 {
		t.Fatalf("want offline code 0, got %+v", res)
	}
	if diag != "DNS lookup failed" {
		t.Fatalf("want diagnostic surfaced, got %q", diag)
	}

	got, _ := reg.Get(srv.ID)
	if len(got.History) != 1 {
		t.Fatalf("want exactly one history entry, got %d", len(got.History))
	}
	if got.Status != domain.StatusOffline || got.LastChecked == nil {
		t.Fatalf("final state wrong: %+v", got)
	}
}

func TestCheckOne_OnlineClearsDiagnostic(t *testing.T) {
	ctx := context.Background()
	sched, reg, _, _ := newFixture(t, probe.Outcome{Online: true, StatusCode: 200})
	srv := reg.Add(ctx, "example.com", 200)

	res, diag, ok := sched.CheckOne(ctx, srv.ID)
	if !ok || !res.IsOnline || res.StatusCode != 200 {
		t.Fatalf("unexpected result: %+v ok=%v", res, ok)
	}
	if diag != "" {
		t.Fatalf("online result must not carry a diagnostic, got %q", diag)
	}
}

func TestCheckOne_UnknownID(t *testing.T) {
	sched, _, chk, _ := newFixture(t, probe.Outcome{Online: true, StatusCode: 200})
	if _, _, ok := sched.CheckOne(context.Background(), "ghost"); ok {
		t.Fatalf("unknown id must report ok=false")
	}
	if len(chk.order()) != 0 {
		t.Fatalf("no probe may run for an unknown id")
	}
}

func TestCheckAll_OneAppendPerServerInRegistryOrder(t *testing.T) {
	ctx := context.Background()
	sched, reg, chk, _ := newFixture(t, probe.Outcome{Online: true, StatusCode: 200})

	var want []domain.ServerID
	for _, h := range []string{"a.example", "b.example", "c.example", "d.example"} {
		want = append(want, reg.Add(ctx, h, 200).ID)
	}

	sched.CheckAll(ctx)

	got := chk.order()
	if len(got) != len(want) {
		t.Fatalf("want %d checks, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("check order diverges from registry order at %d", i)
		}
	}
	for _, srv := range reg.SnapshotAll() {
		if len(srv.History) != 1 {
			t.Fatalf("server %s: want 1 append, got %d", srv.ID, len(srv.History))
		}
	}
}

func TestCheckAll_PersistedStateHoldsAllUpdates(t *testing.T) {
	ctx := context.Background()
	sched, reg, _, store := newFixture(t, probe.Outcome{Online: true, StatusCode: 200})
	for _, h := range []string{"a.example", "b.example", "c.example"} {
		reg.Add(ctx, h, 200)
	}

	sched.CheckAll(ctx)

	// a fresh registry hydrated from the store must see every update
	reloaded := registry.New(zap.NewNop(), store)
	reloaded.Load(ctx)
	all := reloaded.SnapshotAll()
	if len(all) != 3 {
		t.Fatalf("want 3 persisted servers, got %d", len(all))
	}
	for _, srv := range all {
		if len(srv.History) != 1 || srv.Status != domain.StatusOnline {
			t.Fatalf("persisted server missing its update: %+v", srv)
		}
	}
}

func TestReconfigure_ClampsInterval(t *testing.T) {
	ctx := context.Background()
	sched, _, _, _ := newFixture(t, probe.Outcome{})

	if got := sched.Reconfigure(ctx, false, 0); got.IntervalMinutes != MinIntervalMinutes {
		t.Fatalf("want clamp to %d, got %d", MinIntervalMinutes, got.IntervalMinutes)
	}
	if got := sched.Reconfigure(ctx, false, 999); got.IntervalMinutes != MaxIntervalMinutes {
		t.Fatalf("want clamp to %d, got %d", MaxIntervalMinutes, got.IntervalMinutes)
	}
}

func TestReconfigure_EnableRunsImmediateSweep(t *testing.T) {
	ctx := context.Background()
	sched, reg, _, _ := newFixture(t, probe.Outcome{Online: true, StatusCode: 200})
	srv := reg.Add(ctx, "example.com", 200)

	sched.Reconfigure(ctx, true, 5)

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := reg.Get(srv.ID)
		if len(got.History) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("immediate sweep never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestReconfigure_DisableCancelsTimer(t *testing.T) {
	ctx := context.Background()
	sched, reg, chk, _ := newFixture(t, probe.Outcome{Online: true, StatusCode: 200})
	reg.Add(ctx, "example.com", 200)

	sched.Reconfigure(ctx, true, 5)
	// wait for the immediate sweep so the count is stable
	deadline := time.Now().Add(2 * time.Second)
	for len(chk.order()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("immediate sweep never ran")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sched.Reconfigure(ctx, false, 5)
	sched.Stop()
	n := len(chk.order())
	time.Sleep(50 * time.Millisecond)
	if got := len(chk.order()); got != n {
		t.Fatalf("checks kept running after disable: %d -> %d", n, got)
	}
}

func TestReconfigure_RearmReplacesTimer(t *testing.T) {
	ctx := context.Background()
	sched, _, _, _ := newFixture(t, probe.Outcome{})

	sched.Reconfigure(ctx, true, 5)
	cfg := sched.Reconfigure(ctx, true, 10)
	if !cfg.Enabled || cfg.IntervalMinutes != 10 {
		t.Fatalf("re-arm config wrong: %+v", cfg)
	}
	if got := sched.AutoCheckConfig(); got != cfg {
		t.Fatalf("config not applied: %+v", got)
	}
	sched.Stop()
}

func TestSettings_PersistAndReload(t *testing.T) {
	ctx := context.Background()
	sched, _, _, store := newFixture(t, probe.Outcome{})

	sched.Reconfigure(ctx, true, 12)
	sched.Stop()

	// fresh scheduler over the same store picks the setting back up
	reg2 := registry.New(zap.NewNop(), store)
	sched2 := New(zap.NewNop(), reg2, &scriptedChecker{}, store)
	cfg := sched2.LoadSettings(ctx)
	if !cfg.Enabled || cfg.IntervalMinutes != 12 {
		t.Fatalf("want persisted setting back, got %+v", cfg)
	}
}

func TestLoadSettings_Defaults(t *testing.T) {
	sched, _, _, _ := newFixture(t, probe.Outcome{})
	cfg := sched.LoadSettings(context.Background())
	if cfg.Enabled || cfg.IntervalMinutes != DefaultIntervalMinutes {
		t.Fatalf("want disabled/%d default, got %+v", DefaultIntervalMinutes, cfg)
	}
}

func TestLoadSettings_IgnoresGarbage(t *testing.T) {
	ctx := context.Background()
	sched, _, _, store := newFixture(t, probe.Outcome{})
	_ = store.Save(ctx, blob.KeyAutoCheckEnabled, []byte("maybe"))
	_ = store.Save(ctx, blob.KeyAutoCheckInterval, []byte("900"))

	cfg := sched.LoadSettings(ctx)
	if cfg.Enabled || cfg.IntervalMinutes != DefaultIntervalMinutes {
		t.Fatalf("garbage settings must fall back to defaults, got %+v", cfg)
	}
}
