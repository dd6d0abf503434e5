package gate

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/mtpgate/peer"
	"github.com/opd-ai/mtpgate/reassembly"
)

// State is the run state of an AutoGate.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// AutoGate is a BaseGate with its own worker goroutine.
type AutoGate struct {
	*BaseGate

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAutoGate creates a stopped AutoGate.
func NewAutoGate(hub Hub, engine *reassembly.Engine, handler peer.Handler, cfg Config) *AutoGate {
	return &AutoGate{BaseGate: NewBaseGate(hub, engine, handler, cfg)}
}

// State returns the current run state.
func (g *AutoGate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Start launches the worker. A running worker is stopped first.
func (g *AutoGate) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == Running {
		g.stopLocked()
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	g.done = make(chan struct{})
	g.state = Running
	go g.run(ctx, g.done)

	logrus.WithFields(logrus.Fields{
		"function":   "AutoGate.Start",
		"local_addr": g.LocalAddr().String(),
		"idle":       g.cfg.Idle.String(),
	}).Info("Gate started")
}

// Stop halts the worker and waits for it. A dispatch in progress finishes
// first.
func (g *AutoGate) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Running {
		g.stopLocked()
	}
}

func (g *AutoGate) stopLocked() {
	g.cancel()
	<-g.done
	g.cancel = nil
	g.done = nil
	g.state = Stopped

	logrus.WithFields(logrus.Fields{
		"function": "AutoGate.Stop",
	}).Info("Gate stopped")
}

func (g *AutoGate) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	nextSweep := g.clock.Now().Add(g.cfg.SweepInterval)
	for {
		if ctx.Err() != nil {
			return
		}

		worked := g.Process()

		if now := g.clock.Now(); !now.Before(nextSweep) {
			g.Sweep(now)
			nextSweep = now.Add(g.cfg.SweepInterval)
		}

		if worked {
			continue
		}
		timer := g.clock.Timer(g.cfg.Idle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Close stops the worker and closes the gate.
func (g *AutoGate) Close() error {
	g.Stop()
	return g.BaseGate.Close()
}
