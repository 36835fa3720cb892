// Package scope contains owned cleanup scopes. A Scope collects
// callbacks that release resources and runs them exactly once when
// the scope is freed, either explicitly or because its parent has
// been freed. Children are freed before their parent's callbacks.
package scope

import (
	"errors"
	"fmt"
	"sync"
)

// ErrFreed indicates that the parent scope has already been freed.
var ErrFreed = errors.New("scope: parent already freed")

// Scope is an owned cleanup scope. The zero value is not usable, use
// New to create a Scope. A Scope is safe for concurrent use.
type Scope struct {
	children  []*Scope
	callbacks []func()
	freed     bool
	mu        sync.Mutex
	name      string
	parent    *Scope
}

// New creates a new scope called name. When parent is not nil, the
// new scope is freed when parent is freed.
func New(name string, parent *Scope) *Scope {
	s := &Scope{name: name, parent: parent}
	if parent != nil {
		parent.adopt(s)
	}
	return s
}

func (s *Scope) adopt(child *Scope) {
	if !s.tryAdopt(child) {
		// Adopting into a freed scope would leak the child forever.
		panic(fmt.Sprintf("scope: %s: adopt after free", s.name))
	}
}

func (s *Scope) tryAdopt(child *Scope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.freed {
		return false
	}
	s.children = append(s.children, child)
	return true
}

func (s *Scope) forget(child *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for idx, c := range s.children {
		if c == child {
			s.children = append(s.children[:idx], s.children[idx+1:]...)
			return
		}
	}
}

// Name returns the scope name.
func (s *Scope) Name() string {
	return s.name
}

// OnFree registers fn to be called when the scope is freed. Callbacks
// run in reverse registration order. Registering a callback on a freed
// scope runs it immediately.
func (s *Scope) OnFree(fn func()) {
	s.mu.Lock()
	if s.freed {
		s.mu.Unlock()
		fn()
		return
	}
	s.callbacks = append(s.callbacks, fn)
	s.mu.Unlock()
}

// Children returns the number of children not freed yet.
func (s *Scope) Children() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}

// Freed returns whether the scope has already been freed.
func (s *Scope) Freed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freed
}

// Free frees the children, then runs the callbacks. Calling Free more
// than once is a no-op.
func (s *Scope) Free() {
	s.mu.Lock()
	if s.freed {
		s.mu.Unlock()
		return
	}
	s.freed = true
	children, callbacks := s.children, s.callbacks
	s.children, s.callbacks = nil, nil
	s.mu.Unlock()
	for idx := len(children) - 1; idx >= 0; idx-- {
		children[idx].Free()
	}
	for idx := len(callbacks) - 1; idx >= 0; idx-- {
		callbacks[idx]()
	}
	if s.parent != nil {
		s.parent.forget(s)
	}
}

// Do creates a child of parent called name and calls fn with it. If fn
// fails or panics, the child is freed before Do returns or the panic
// propagates. Otherwise the child is returned, still owned by parent.
// Do fails with ErrFreed if parent has already been freed.
func Do(parent *Scope, name string, fn func(s *Scope) error) (*Scope, error) {
	child := &Scope{name: name, parent: parent}
	if parent != nil && !parent.tryAdopt(child) {
		return nil, fmt.Errorf("%w: %s", ErrFreed, parent.name)
	}
	success := false
	defer func() {
		if !success {
			child.Free()
		}
	}()
	if err := fn(child); err != nil {
		return nil, err
	}
	success = true
	return child, nil
}
