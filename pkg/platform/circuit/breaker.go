// Package circuit provides a two-state circuit breaker.
//
// A closed breaker counts consecutive failures and opens at the failure
// threshold. An open breaker counts consecutive successes and closes at the
// success threshold. Callers decide what "open" means for them; the store
// uses it to stop retrying.
package circuit

import "sync"

type State int

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// Transition reports whether a Record call flipped the state.
type Transition int

const (
	Unchanged Transition = iota
	Opened
	Closed
)

const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 3
)

// Breaker is safe for concurrent use.
type Breaker struct {
	mu               sync.Mutex
	state            State
	name             string
	failures         int
	successes        int
	failureThreshold int
	successThreshold int
}

type Option func(*Breaker)

// WithFailureThreshold sets the consecutive failures that open the breaker.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets the consecutive successes that close it again.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: DefaultFailureThreshold,
		successThreshold: DefaultSuccessThreshold,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Name is used as a log and metric label.
func (b *Breaker) Name() string {
	return b.name
}

func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RecordFailure counts a failed call.
func (b *Breaker) RecordFailure() Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	if b.state == StateOpen {
		return Unchanged
	}
	b.failures++
	if b.failures < b.failureThreshold {
		return Unchanged
	}
	b.state = StateOpen
	b.failures = 0
	return Opened
}

// RecordSuccess counts a successful call.
func (b *Breaker) RecordSuccess() Transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		b.failures = 0
		return Unchanged
	}
	b.successes++
	if b.successes < b.successThreshold {
		return Unchanged
	}
	b.state = StateClosed
	b.successes = 0
	return Closed
}

// Reset closes the breaker and clears both counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}
