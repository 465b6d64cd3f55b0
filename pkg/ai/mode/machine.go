package mode

import (
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/pkg/learning"
)

// Machine handles learning mode transitions
type Machine struct {
	logger logger.ILogger
}

// NewMachine creates a new mode machine
func NewMachine(log logger.ILogger) *Machine {
	return &Machine{logger: log}
}

// Current returns the session mode, defaulting to Concept
func (m *Machine) Current(session *learning.Session) learning.Mode {
	if session == nil || session.Mode == "" {
		return learning.DefaultMode
	}
	return session.Mode
}

// Set switches the session to mode. Any transition is allowed.
// Callers hold the session lock, so a query already dispatched keeps
// the mode it captured.
func (m *Machine) Set(session *learning.Session, mode learning.Mode) (learning.Mode, error) {
	parsed, err := learning.ParseMode(string(mode))
	if err != nil {
		return m.Current(session), err
	}
	from := m.Current(session)
	session.Mode = parsed
	m.logger.Info("MODE", "Transitioned", map[string]interface{}{
		"session_id": session.ID,
		"from":       from,
		"to":         parsed,
	})
	return parsed, nil
}
