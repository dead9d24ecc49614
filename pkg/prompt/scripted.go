package prompt

import (
	"context"
	"sync"
)

// Scripted replays canned answers. It is meant for tests and for
// non-interactive replays of a recorded session.
type Scripted struct {
	mu       sync.Mutex
	Inputs   []string
	Selects  []int
	Confirms []bool
	Infos    []string
	Asked    []string
}

func (s *Scripted) Input(_ context.Context, cfg InputConfig) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, cfg.Message)
	if len(s.Inputs) == 0 {
		return "", ErrScriptExhausted
	}
	answer := s.Inputs[0]
	s.Inputs = s.Inputs[1:]
	if cfg.Validator != nil {
		if err := cfg.Validator(answer); err != nil {
			return "", err
		}
	}
	return answer, nil
}

func (s *Scripted) Confirm(_ context.Context, cfg ConfirmConfig) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, cfg.Message)
	if len(s.Confirms) == 0 {
		return false, ErrScriptExhausted
	}
	answer := s.Confirms[0]
	s.Confirms = s.Confirms[1:]
	return answer, nil
}

func (s *Scripted) Select(_ context.Context, cfg SelectConfig) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Asked = append(s.Asked, cfg.Message)
	if len(s.Selects) == 0 {
		return 0, ErrScriptExhausted
	}
	answer := s.Selects[0]
	s.Selects = s.Selects[1:]
	return answer, nil
}

func (s *Scripted) Info(_ context.Context, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Infos = append(s.Infos, msg)
	return nil
}
