package pipeline

import (
	"context"
	"sync"

	"chaptercast/internal/logging"
	"chaptercast/internal/queue"
)

// Manager owns one worker per channel and their shared lifecycle.
type Manager struct {
	env     *Env
	workers []*Worker

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager wires the full stage set into workers.
func NewManager(env *Env) *Manager {
	handlers := Handlers(env)
	workers := make([]*Worker, 0, len(handlers))
	for _, ch := range queue.Channels() {
		workers = append(workers, NewWorker(env, handlers[ch]))
	}
	return &Manager{env: env, workers: workers}
}

// Start launches the worker goroutines. Starting a running manager is a
// no-op.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	for _, worker := range m.workers {
		w := worker
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.Run(runCtx)
		}()
	}
	logging.WithComponent(m.env.Logger, "pipeline").Info("workers started",
		"workers", len(m.workers))
}

// Stop cancels the workers and waits for in-flight tasks to settle. Tasks
// interrupted mid-run are redelivered when their lease lapses.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	logging.WithComponent(m.env.Logger, "pipeline").Info("workers stopped")
}

// Running reports whether the workers are active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
