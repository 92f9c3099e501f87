// Package llmtest provides deterministic model stubs for tests.
package llmtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Reply is one scripted answer: text or an error.
type Reply struct {
	Text string
	Err  error
}

// Scripted replays replies in order and records prompts. When the script runs
// out it keeps returning the last reply.
type Scripted struct {
	mu      sync.Mutex
	replies []Reply
	prompts []string
}

// NewScripted builds a stub from plain text replies.
func NewScripted(texts ...string) *Scripted {
	s := &Scripted{}
	for _, t := range texts {
		s.replies = append(s.replies, Reply{Text: t})
	}
	return s
}

// Then appends a reply.
func (s *Scripted) Then(r Reply) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, r)
	return s
}

// Complete implements ports.ChatClient.
func (s *Scripted) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.prompts)
	s.prompts = append(s.prompts, prompt)
	if len(s.replies) == 0 {
		return "", errors.New("llmtest: no scripted replies")
	}
	if idx >= len(s.replies) {
		idx = len(s.replies) - 1
	}
	r := s.replies[idx]
	return r.Text, r.Err
}

// Calls reports how many times Complete was invoked.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// Prompts returns a copy of the received prompts.
func (s *Scripted) Prompts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.prompts...)
}

// Router answers by the first registered marker contained in the prompt.
// Safe for concurrent use, which per-item parallel stages need.
type Router struct {
	mu     sync.Mutex
	routes []route
	calls  map[string]int
}

type route struct {
	marker string
	reply  func(prompt string, call int) Reply
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{calls: map[string]int{}}
}

// On registers a fixed text reply for prompts containing marker.
func (r *Router) On(marker, text string) *Router {
	return r.OnFunc(marker, func(string, int) Reply { return Reply{Text: text} })
}

// OnFunc registers a dynamic reply; call counts from 1 per marker.
func (r *Router) OnFunc(marker string, fn func(prompt string, call int) Reply) *Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route{marker: marker, reply: fn})
	return r
}

// Complete implements ports.ChatClient.
func (r *Router) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.Lock()
	var match *route
	for i := range r.routes {
		if strings.Contains(prompt, r.routes[i].marker) {
			match = &r.routes[i]
			break
		}
	}
	if match == nil {
		r.mu.Unlock()
		return "", fmt.Errorf("llmtest: no route for prompt %.60q", prompt)
	}
	r.calls[match.marker]++
	call := r.calls[match.marker]
	r.mu.Unlock()

	rep := match.reply(prompt, call)
	return rep.Text, rep.Err
}

// Calls reports how many prompts matched marker.
func (r *Router) Calls(marker string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[marker]
}
