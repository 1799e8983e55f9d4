package scrape

import "sync/atomic"

// RunGuard is a single-slot latch around the scrape run. It is owned by the
// runner and injected where needed; holders must release on every exit path.
type RunGuard struct {
	running atomic.Bool
}

func NewRunGuard() *RunGuard {
	return &RunGuard{}
}

// TryAcquire claims the slot. False means a run already holds it.
func (g *RunGuard) TryAcquire() bool {
	return g.running.CompareAndSwap(false, true)
}

func (g *RunGuard) Release() {
	g.running.CompareAndSwap(true, false)
}

// ForceRelease frees the slot unconditionally, for recovering after a
// crashed run left it held.
func (g *RunGuard) ForceRelease() {
	g.running.Store(false)
}

func (g *RunGuard) Running() bool {
	return g.running.Load()
}
