// Package procmanager supervises the router's lifecycle with the same
// Start/Stop/Restart vocabulary the reference implementation used for its
// out-of-process router, but as in-process goroutine supervision instead of
// a second OS process: the router's own fault isolation (recover() guards
// around its receiver and device worker goroutines) covers the case the
// reference implementation used a whole separate process for.
package procmanager

import (
	"context"
	"sync"
	"time"

	"github.com/flamecast/flamecast/config"
	"github.com/flamecast/flamecast/controlplane"
	"github.com/flamecast/flamecast/supervisor"
	"github.com/flamecast/flamecast/support/logging"
)

// restartDelay is the pause between Stop and the following Start during a
// Restart.
const restartDelay = 1 * time.Second

// Manager owns the currently-running Router, if any, and serializes
// Start/Stop/Restart against concurrent callers.
type Manager struct {
	Logger logging.L
	Bridge *controlplane.Bridge

	mu      sync.Mutex
	cancel  context.CancelFunc
	doneC   chan struct{}
	router  *supervisor.Router
}

// Start builds a new Router from proj and runs it in the background. Start
// returns an error without starting anything if a Router is already running;
// call Stop first.
func (m *Manager) Start(proj *config.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		return errAlreadyRunning
	}

	r, err := supervisor.New(proj, m.Logger)
	if err != nil {
		return err
	}
	r.Bridge = m.Bridge

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.router = r
	m.cancel = cancel
	m.doneC = done

	go func() {
		defer close(done)
		_ = r.Run(ctx)
	}()
	return nil
}

// Stop cancels the running Router's context and blocks until its Run
// goroutine has fully returned. Stop on a Manager with nothing running
// returns immediately.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.doneC
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	m.mu.Lock()
	m.cancel = nil
	m.doneC = nil
	m.router = nil
	m.mu.Unlock()
}

// Restart stops the current Router, waits restartDelay, and starts a new one
// from proj.
func (m *Manager) Restart(proj *config.Project) error {
	m.Stop()
	time.Sleep(restartDelay)
	return m.Start(proj)
}

// Router returns the currently-running Router, or nil if none is running.
func (m *Manager) Router() *supervisor.Router {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.router
}

type managerError string

func (e managerError) Error() string { return string(e) }

const errAlreadyRunning = managerError("procmanager: router already running")
