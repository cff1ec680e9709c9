// Package netgate tracks whether outbound connectivity is available. A
// background loop dials a well-known endpoint and keeps a flag the checker
// reads without blocking. Ready() closes after the first observation so
// startup can hold the initial sweep until the gate has warmed up.
package netgate

import (
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultTarget   = "1.1.1.1:53"
	defaultInterval = 15 * time.Second
	defaultTimeout  = 4 * time.Second
)

type Gate struct {
	log      *zap.Logger
	target   string
	interval time.Duration
	timeout  time.Duration

	mu        sync.RWMutex
	available bool
	observed  bool

	readyOnce sync.Once
	ready     chan struct{}

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func New(log *zap.Logger, target string, interval, timeout time.Duration) *Gate {
	target = strings.TrimSpace(target)
	if target == "" {
		target = defaultTarget
	}
	if !strings.Contains(target, ":") {
		target = net.JoinHostPort(target, "53")
	}
	if interval <= 0 {
		interval = defaultInterval
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Gate{
		log:      log,
		target:   target,
		interval: interval,
		timeout:  timeout,
		ready:    make(chan struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the probe loop.
func (g *Gate) Start() {
	go g.run()
}

// Stop terminates the probe loop and waits for it to exit.
func (g *Gate) Stop() {
	g.stopOnce.Do(func() { close(g.stopCh) })
	<-g.doneCh
}

// Available reports the latest observation. False until the first probe
// completes.
func (g *Gate) Available() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.available
}

// Ready is closed once at least one observation has been recorded,
// regardless of its outcome.
func (g *Gate) Ready() <-chan struct{} {
	return g.ready
}

func (g *Gate) run() {
	defer close(g.doneCh)

	g.probe()

	t := time.NewTicker(g.interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			g.probe()
		case <-g.stopCh:
			return
		}
	}
}

func (g *Gate) probe() {
	conn, err := net.DialTimeout("tcp", g.target, g.timeout)
	ok := err == nil
	if ok {
		_ = conn.Close()
	}
	g.record(ok, err)
}

func (g *Gate) record(ok bool, err error) {
	g.mu.Lock()
	changed := !g.observed || g.available != ok
	g.available = ok
	g.observed = true
	g.mu.Unlock()

	if changed {
		if ok {
			g.log.Info("network_available", zap.String("target", g.target))
		} else {
			g.log.Warn("network_unavailable", zap.String("target", g.target), zap.Error(err))
		}
	}
	g.readyOnce.Do(func() { close(g.ready) })
}
