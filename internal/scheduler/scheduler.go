// Package scheduler drives checks: one server on demand, all servers in a
// sweep, and periodic sweeps on a reconfigurable timer. Sweeps are
// serialized; at most one runs at a time.
package scheduler

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"serverwatch/internal/blob"
	"serverwatch/internal/domain"
	"serverwatch/internal/probe"
	"serverwatch/internal/registry"
)

const (
	MinIntervalMinutes     = 1
	MaxIntervalMinutes     = 60
	DefaultIntervalMinutes = 5
)

// AutoCheck is the periodic-sweep configuration.
type AutoCheck struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"intervalMinutes"`
}

type Scheduler struct {
	log     *zap.Logger
	reg     *registry.Registry
	checker probe.Checker
	store   blob.Store

	// Notify, when set, is called after every applied check result. Wired to
	// the websocket stream by main. Set it before the first sweep.
	Notify func(srv domain.Server, res domain.CheckResult)

	sweepMu sync.Mutex

	mu      sync.Mutex
	cfg     AutoCheck
	cancel  context.CancelFunc
	timerWG sync.WaitGroup
}

func New(log *zap.Logger, reg *registry.Registry, checker probe.Checker, store blob.Store) *Scheduler {
	return &Scheduler{
		log:     log,
		reg:     reg,
		checker: checker,
		store:   store,
		cfg:     AutoCheck{Enabled: false, IntervalMinutes: DefaultIntervalMinutes},
	}
}

// CheckOne probes a single server and applies the result. The server is
// marked in-progress (unknown status, last-checked now) and persisted before
// the probe so observers see the check underway. Returns the result, an
// optional diagnostic when the server came back offline, and whether the id
// was known.
func (s *Scheduler) CheckOne(ctx context.Context, id domain.ServerID) (domain.CheckResult, string, bool) {
	srv, ok := s.reg.Get(id)
	if !ok {
		return domain.CheckResult{}, "", false
	}
	s.reg.MarkChecking(ctx, id, time.Now().UTC())

	out := s.checker.Check(ctx, srv)
	res := domain.NewResult(out.StatusCode, out.Online)
	updated, ok := s.reg.ApplyResult(ctx, id, res)
	if !ok {
		// server removed mid-check
		return res, out.Reason, false
	}

	s.log.Debug("server_checked",
		zap.String("server_id", string(id)),
		zap.String("domain", srv.Domain),
		zap.Int("status", res.StatusCode),
		zap.Bool("online", res.IsOnline),
	)
	if s.Notify != nil {
		s.Notify(updated, res)
	}

	diag := ""
	if !res.IsOnline {
		diag = out.Reason
	}
	return res, diag, true
}

// CheckAll sweeps every registered server sequentially in registry order.
// A failed server never aborts the sweep. One extra persist at the end acts
// as a safety net.
func (s *Scheduler) CheckAll(ctx context.Context) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	servers := s.reg.SnapshotAll()
	checked := 0
	for _, srv := range servers {
		if ctx.Err() != nil {
			s.log.Info("sweep_canceled", zap.Int("checked", checked))
			return
		}
		if _, _, ok := s.CheckOne(ctx, srv.ID); ok {
			checked++
		}
	}
	s.reg.Persist(ctx)
	s.log.Info("sweep_done", zap.Int("servers", checked))
}

// Reconfigure applies a new auto-check setting. The interval is clamped to
// [MinIntervalMinutes, MaxIntervalMinutes]. Any armed timer is canceled
// first; enabling runs an immediate sweep and then arms a fresh timer. The
// setting is persisted. Returns the applied configuration.
func (s *Scheduler) Reconfigure(ctx context.Context, enabled bool, intervalMinutes int) AutoCheck {
	if intervalMinutes < MinIntervalMinutes {
		intervalMinutes = MinIntervalMinutes
	}
	if intervalMinutes > MaxIntervalMinutes {
		intervalMinutes = MaxIntervalMinutes
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.cfg = AutoCheck{Enabled: enabled, IntervalMinutes: intervalMinutes}
	if enabled {
		tctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.timerWG.Add(1)
		go s.run(tctx, time.Duration(intervalMinutes)*time.Minute)
	}
	cfg := s.cfg
	s.mu.Unlock()

	s.saveSettings(ctx, cfg)
	s.log.Info("autocheck_reconfigured",
		zap.Bool("enabled", cfg.Enabled),
		zap.Int("interval_minutes", cfg.IntervalMinutes),
	)
	return cfg
}

// AutoCheckConfig returns the current setting.
func (s *Scheduler) AutoCheckConfig() AutoCheck {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Stop cancels any armed timer and waits for its loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()
	s.timerWG.Wait()
}

// run is the timer loop: one immediate sweep, then one per tick until
// canceled.
func (s *Scheduler) run(ctx context.Context, every time.Duration) {
	defer s.timerWG.Done()

	s.CheckAll(ctx)

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("autocheck_stopped")
			return
		case <-t.C:
			s.CheckAll(ctx)
		}
	}
}

// LoadSettings restores the persisted auto-check configuration, falling back
// to defaults (disabled, 5 minutes) on anything missing or unreadable. It
// only loads; arming the timer is the caller's move once the network gate is
// ready.
func (s *Scheduler) LoadSettings(ctx context.Context) AutoCheck {
	cfg := AutoCheck{Enabled: false, IntervalMinutes: DefaultIntervalMinutes}

	if data, found, err := s.store.Load(ctx, blob.KeyAutoCheckEnabled); err == nil && found {
		if v, err := strconv.ParseBool(string(data)); err == nil {
			cfg.Enabled = v
		}
	}
	if data, found, err := s.store.Load(ctx, blob.KeyAutoCheckInterval); err == nil && found {
		if v, err := strconv.Atoi(string(data)); err == nil &&
			v >= MinIntervalMinutes && v <= MaxIntervalMinutes {
			cfg.IntervalMinutes = v
		}
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return cfg
}

func (s *Scheduler) saveSettings(ctx context.Context, cfg AutoCheck) {
	if err := s.store.Save(ctx, blob.KeyAutoCheckEnabled, []byte(strconv.FormatBool(cfg.Enabled))); err != nil {
		s.log.Warn("settings_save_error", zap.String("key", blob.KeyAutoCheckEnabled), zap.Error(err))
	}
	if err := s.store.Save(ctx, blob.KeyAutoCheckInterval, []byte(strconv.Itoa(cfg.IntervalMinutes))); err != nil {
		s.log.Warn("settings_save_error", zap.String("key", blob.KeyAutoCheckInterval), zap.Error(err))
	}
}
