package state

import "sync"

type memoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryManager constructs an in-memory Manager. Sessions do not survive a restart.
func NewMemoryManager() Manager {
	return &memoryManager{
		sessions: make(map[int64]*Session),
	}
}

// Get returns a snapshot of the session, or a default idle session.
func (m *memoryManager) Get(sessionID int64) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if session, ok := m.sessions[sessionID]; ok {
		cp := &Session{State: session.State, TempData: make(map[string]interface{}, len(session.TempData))}
		for k, v := range session.TempData {
			cp.TempData[k] = v
		}
		return cp
	}

	return &Session{State: StateIdle, TempData: make(map[string]interface{})}
}

// Set updates the state for a session, creating it if necessary.
func (m *memoryManager) Set(sessionID int64, state State) {
	m.SetState(sessionID, state)
}

// SetTemp stores a temporary key/value pair for the session.
func (m *memoryManager) SetTemp(sessionID int64, key string, value interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionLocked(sessionID).TempData[key] = value
}

// GetTemp retrieves a temporary value by key.
func (m *memoryManager) GetTemp(sessionID int64, key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	val, ok := session.TempData[key]
	return val, ok
}

// GetTempInt64 retrieves a temporary value by key and asserts it as int64.
func (m *memoryManager) GetTempInt64(sessionID int64, key string) (int64, bool) {
	return Temp[int64](m, sessionID, key)
}

// ClearTemp removes a temporary key/value pair.
func (m *memoryManager) ClearTemp(sessionID int64, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[sessionID]; ok {
		delete(session.TempData, key)
	}
}

// Clear removes the entire session.
func (m *memoryManager) Clear(sessionID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// SetState sets the FSM state for the session.
func (m *memoryManager) SetState(sessionID int64, st State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionLocked(sessionID).State = st
}

// GetState returns the current FSM state, or StateIdle if none exists.
func (m *memoryManager) GetState(sessionID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[sessionID]; ok {
		return sess.State
	}
	return StateIdle
}

// ClearState resets the FSM state to idle without removing session data.
func (m *memoryManager) ClearState(sessionID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[sessionID]; ok {
		sess.State = StateIdle
	}
}

// HasState checks if the session is in a state other than idle.
func (m *memoryManager) HasState(sessionID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[sessionID]
	return ok && sess.State != StateIdle
}

// InProgress reports whether the session currently has an active FSM state.
func (m *memoryManager) InProgress(sessionID int64) bool {
	return m.HasState(sessionID)
}

// Len returns the number of sessions held.
func (m *memoryManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *memoryManager) sessionLocked(sessionID int64) *Session {
	session, ok := m.sessions[sessionID]
	if !ok {
		session = &Session{State: StateIdle, TempData: make(map[string]interface{})}
		m.sessions[sessionID] = session
	}
	return session
}
