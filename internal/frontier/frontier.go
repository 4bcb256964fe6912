// Package frontier owns the work queue of repositories to expand and the
// set of repositories whose expansion has started.
package frontier

import (
	"strings"
	"sync"
)

type State int

const (
	Unseen State = iota
	Queued
	Expanding
	Visited
)

func (s State) String() string {
	switch s {
	case Queued:
		return "queued"
	case Expanding:
		return "expanding"
	case Visited:
		return "visited"
	default:
		return "unseen"
	}
}

// Frontier is safe for concurrent use. Identifiers are compared
// case-insensitively; the spelling first pushed is the one handed out.
type Frontier struct {
	mu       sync.Mutex
	maxRepos int
	queue    []string
	states   map[string]State
	started  int
}

// New returns a frontier capped at maxRepos expansions with the seeds queued.
func New(maxRepos int, seeds ...string) *Frontier {
	f := &Frontier{
		maxRepos: maxRepos,
		states:   make(map[string]State),
	}
	for _, seed := range seeds {
		f.Push(seed)
	}
	return f
}

// Push queues an identifier that is still unseen. It reports whether the
// identifier was added.
func (f *Frontier) Push(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	k := key(id)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.states[k] != Unseen {
		return false
	}
	f.states[k] = Queued
	f.queue = append(f.queue, id)
	return true
}

// Pop hands out the most recently queued identifier and marks it expanding.
// It returns false once the queue is empty or maxRepos expansions have
// started.
func (f *Frontier) Pop() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started >= f.maxRepos || len(f.queue) == 0 {
		return "", false
	}

	last := len(f.queue) - 1
	id := f.queue[last]
	f.queue[last] = ""
	f.queue = f.queue[:last]

	f.states[key(id)] = Expanding
	f.started++
	return id, true
}

// Done marks an expanding identifier visited, whatever the outcome of its
// expansion was.
func (f *Frontier) Done(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.states[key(id)] == Expanding {
		f.states[key(id)] = Visited
	}
}

func (f *Frontier) State(id string) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[key(id)]
}

// Visited counts identifiers whose expansion has started, including those
// still expanding.
func (f *Frontier) Visited() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started
}

func (f *Frontier) Queued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// CapReached reports whether no further expansion may start.
func (f *Frontier) CapReached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started >= f.maxRepos
}

// Exhausted reports whether Pop can never succeed again without a Push.
func (f *Frontier) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started >= f.maxRepos || len(f.queue) == 0
}

func key(id string) string {
	return strings.ToLower(id)
}
