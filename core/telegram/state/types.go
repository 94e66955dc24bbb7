package state

// State identifies a finite-state-machine step used in conversations.
type State string

const (
	// StateIdle indicates there is no active conversation in the session.
	StateIdle State = "idle"
)

// Session stores conversation state and temporary data for a session.
type Session struct {
	State    State
	TempData map[string]interface{}
}

// Manager orchestrates sessions and FSM state transitions.
type Manager interface {
	Get(sessionID int64) *Session
	Set(sessionID int64, state State)
	SetTemp(sessionID int64, key string, value interface{})
	ClearTemp(sessionID int64, key string)
	GetTemp(sessionID int64, key string) (interface{}, bool)
	GetTempInt64(sessionID int64, key string) (int64, bool)
	Clear(sessionID int64)

	// Dialog state
	SetState(sessionID int64, st State)
	GetState(sessionID int64) State
	HasState(sessionID int64) bool
	ClearState(sessionID int64)

	InProgress(sessionID int64) bool
	// Len returns the number of sessions held.
	Len() int
}

// Temp returns the temporary value under key when it has type T.
func Temp[T any](m Manager, sessionID int64, key string) (T, bool) {
	var zero T
	v, ok := m.GetTemp(sessionID, key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	if !ok {
		return zero, false
	}
	return t, true
}
