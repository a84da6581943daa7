package provider

import (
	"context"
	"sync"
)

// Scripted replays a fixed queue of actions. Used by tests and by
// offline runs where no model backend is configured.
type Scripted struct {
	mu    sync.Mutex
	queue []ProposedAction
	err   error
}

func NewScripted(actions ...ProposedAction) *Scripted {
	return &Scripted{queue: actions}
}

// Fail makes every following Propose call return err.
func (s *Scripted) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

var _ Provider = (*Scripted)(nil)

func (s *Scripted) Propose(_ context.Context, _ Snapshot, schema Schema) (ProposedAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return ProposedAction{}, s.err
	}
	if len(s.queue) == 0 {
		return ProposedAction{}, &Error{Message: "script is exhausted"}
	}

	action := s.queue[0]
	s.queue = s.queue[1:]
	if err := schema.Check(action); err != nil {
		return ProposedAction{}, err
	}
	return action, nil
}
