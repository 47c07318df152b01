// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vecscope Contributors

package session

import (
	"sync"

	"github.com/google/uuid"

	vserr "github.com/vecscope-dev/vecscope/pkg/errors"
)

// Manager owns the live controllers, one per browsing session.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*Controller
	newSession func(set string, opts ...Option) *Controller
}

// NewManager creates a Manager that builds controllers with factory.
func NewManager(factory func(set string, opts ...Option) *Controller) *Manager {
	return &Manager{
		sessions:   make(map[string]*Controller),
		newSession: factory,
	}
}

// Create starts a session against set and returns its id. Extra options are
// appended to the factory's own.
func (m *Manager) Create(set string, opts ...Option) (string, *Controller) {
	id := uuid.NewString()
	ctrl := m.newSession(set, opts...)

	m.mu.Lock()
	m.sessions[id] = ctrl
	m.mu.Unlock()
	return id, ctrl
}

// Get resolves a session id.
func (m *Manager) Get(id string) (*Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctrl, ok := m.sessions[id]
	if !ok {
		return nil, vserr.New(vserr.CodeSearchSessionNotFound, "unknown session")
	}
	return ctrl, nil
}

// Close ends one session. Unknown ids are a no-op.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	ctrl, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		ctrl.Close()
	}
}

// CloseAll ends every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Controller)
	m.mu.Unlock()

	for _, ctrl := range sessions {
		ctrl.Close()
	}
}
