package service

import (
	"time"

	"github.com/alanyoungcy/rwaoptions/internal/disclosure"
)

// Session is the explicit per-process session context: the connected
// account and the disclosure parameters fixed at start. It is built once
// during startup and never mutated afterwards.
type Session struct {
	Account   string
	Params    disclosure.Params
	StartedAt time.Time
}

// NewSession creates a Session for account.
func NewSession(account string, params disclosure.Params, startedAt time.Time) Session {
	return Session{
		Account:   account,
		Params:    params,
		StartedAt: startedAt.UTC(),
	}
}

// Message returns the disclosure message signed for every reveal request.
func (s Session) Message() string {
	return s.Params.Message()
}
