// Package health tracks per-component readiness so workers can hold off
// until their collaborators finished starting up.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type ComponentStatus struct {
	Name    string    `json:"name"`
	Ready   bool      `json:"ready"`
	ReadyAt time.Time `json:"ready_at,omitempty"`
}

type ReadinessStatus struct {
	Ready      bool              `json:"ready"`
	Components []ComponentStatus `json:"components"`
}

// ComponentManager registers components and hands back their mark-ready hook.
type ComponentManager interface {
	// AddComponent registers a component and returns a function to mark it ready.
	AddComponent(name string) func()
}

// ReadinessChecker reports the aggregate readiness state.
type ReadinessChecker interface {
	IsReady() bool
	GetStatus() ReadinessStatus
}

// ReadinessWaiter blocks until every registered component is ready.
type ReadinessWaiter interface {
	WaitReady(ctx context.Context) error
}

type component struct {
	name    string
	ready   bool
	readyAt time.Time
}

type readiness struct {
	mu         sync.RWMutex
	components map[string]*component
	readyChan  chan struct{}
	readyOnce  sync.Once
	log        *zap.Logger
}

type Readiness interface {
	ComponentManager
	ReadinessChecker
	ReadinessWaiter
}

func NewReadiness(log *zap.Logger) Readiness {
	return &readiness{
		components: make(map[string]*component),
		readyChan:  make(chan struct{}),
		log:        log,
	}
}

func (r *readiness) AddComponent(name string) func() {
	r.mu.Lock()
	r.components[name] = &component{name: name}
	r.mu.Unlock()

	return func() { r.markReady(name) }
}

func (r *readiness) markReady(name string) {
	r.mu.Lock()
	if c, ok := r.components[name]; ok && !c.ready {
		c.ready = true
		c.readyAt = time.Now()
		r.log.Info("component ready", zap.String("component", name))
	}
	allReady := r.allReadyLocked()
	r.mu.Unlock()

	if allReady {
		r.readyOnce.Do(func() {
			r.log.Info("all components ready")
			close(r.readyChan)
		})
	}
}

func (r *readiness) allReadyLocked() bool {
	for _, c := range r.components {
		if !c.ready {
			return false
		}
	}
	return len(r.components) > 0
}

func (r *readiness) IsReady() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allReadyLocked()
}

func (r *readiness) GetStatus() ReadinessStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := ReadinessStatus{Ready: r.allReadyLocked()}
	for _, c := range r.components {
		status.Components = append(status.Components, ComponentStatus{
			Name:    c.name,
			Ready:   c.ready,
			ReadyAt: c.readyAt,
		})
	}
	return status
}

func (r *readiness) WaitReady(ctx context.Context) error {
	select {
	case <-r.readyChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
