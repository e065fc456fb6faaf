// Package memo provides a keyed single-flight cache whose lifetime is one
// unit of work, typically one HTTP request.
//
// A Scope is created when the unit of work starts and closed when it ends.
// Within a scope, the first call for a key runs the loader; concurrent
// callers for the same key wait on that execution, and later callers get the
// settled outcome without re-running it. Errors are settled outcomes too.
// Nothing is shared between scopes.
package memo

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrScopeClosed is returned by Do once the scope has been closed.
var ErrScopeClosed = errors.New("memo: scope closed")

type outcome struct {
	val any
	err error
}

// entry is the per-key state. gen is bumped by Forget so an execution that
// started earlier cannot overwrite a newer outcome.
type entry struct {
	gen     uint64
	settled bool
	outcome
}

// Scope is a per-unit-of-work memoization table. It is safe for concurrent use.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
}

// NewScope returns a scope bound to parent. Loaders run with a context derived
// from parent that is cancelled when the scope is closed.
func NewScope(parent context.Context) *Scope {
	ctx, cancel := context.WithCancel(parent)
	return &Scope{
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
}

// Do returns the outcome of fn for key, running fn at most once per scope.
//
// ctx only bounds how long this caller waits. If it is cancelled first, Do
// returns ctx.Err() and the execution keeps running for the other callers.
func (s *Scope) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	if o, ok, _, err := s.lookup(key); err != nil {
		return nil, err
	} else if ok {
		return o.val, o.err
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// A caller may have missed the table just before the previous
		// execution settled and left the group.
		o, ok, gen, err := s.lookup(key)
		if err != nil {
			return nil, err
		}
		if ok {
			return o.val, o.err
		}

		val, err := fn(s.ctx)
		s.store(key, gen, outcome{val: val, err: err})
		return val, err
	})

	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Forget drops the settled outcome for key so the next Do runs the loader
// again. An execution already in flight still answers its own waiters, but
// its outcome is not retained.
func (s *Scope) Forget(key string) {
	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		e.gen++
		e.settled = false
		e.outcome = outcome{}
	}
	s.mu.Unlock()
	s.group.Forget(key)
}

// Close cancels in-flight loaders and discards every outcome. It is idempotent.
func (s *Scope) Close() {
	s.mu.Lock()
	s.closed = true
	s.entries = nil
	s.mu.Unlock()
	s.cancel()
}

// size reports how many keys have settled in this scope.
func (s *Scope) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if e.settled {
			n++
		}
	}
	return n
}

func (s *Scope) lookup(key string) (outcome, bool, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return outcome{}, false, 0, ErrScopeClosed
	}
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	return e.outcome, e.settled, e.gen, nil
}

func (s *Scope) store(key string, gen uint64, o outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	e, ok := s.entries[key]
	if !ok || e.gen != gen {
		return
	}
	e.settled = true
	e.outcome = o
}
