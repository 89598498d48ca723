// Package oracletest provides oracle fakes for engine and validator tests.
package oracletest

import (
	"context"
	"sync"

	"github.com/clinsight/takforge/oracle"
)

// Step is one scripted oracle outcome: either a response or an error.
type Step struct {
	Artifact  string
	TokenCost int
	Err       error
}

// Scripted replays a fixed sequence of outcomes, one per Generate call.
// When the script runs out, the last step repeats. Safe for concurrent use.
type Scripted struct {
	mu    sync.Mutex
	steps []Step
	reqs  []oracle.Request
	calls int
}

// NewScripted creates a scripted oracle from the given steps.
func NewScripted(steps ...Step) *Scripted {
	return &Scripted{steps: steps}
}

// Generate implements oracle.Oracle.
func (s *Scripted) Generate(ctx context.Context, req oracle.Request) (*oracle.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.calls
	s.calls++
	s.reqs = append(s.reqs, req)
	if idx >= len(s.steps) {
		idx = len(s.steps) - 1
	}

	step := s.steps[idx]
	if step.Err != nil {
		return nil, step.Err
	}

	cost := step.TokenCost
	if cost == 0 {
		cost = 100
	}
	return &oracle.Response{
		Artifact:  step.Artifact,
		TokenCost: cost,
		Model:     "scripted",
	}, nil
}

// Calls returns how many times Generate has been invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Requests returns a copy of every request seen so far, in call order.
func (s *Scripted) Requests() []oracle.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]oracle.Request(nil), s.reqs...)
}
