package handlers

import "sync"

type IntakeStep int

const (
	AwaitingSource IntakeStep = iota + 1
	AwaitingTarget
)

type IntakeState struct {
	Step        IntakeStep
	SourceGroup string
}

// States holds the in-progress transfer requests keyed by requester.
type States struct {
	mu     sync.RWMutex
	states map[int64]IntakeState
}

func NewStates() *States {
	return &States{states: make(map[int64]IntakeState)}
}

func (s *States) Set(userID int64, state IntakeState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = state
}

func (s *States) Get(userID int64) (IntakeState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[userID]
	return state, ok
}

func (s *States) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
}
