// Package txn carries the transaction boundary shared by every store
// implementation and lets usecases defer side effects until commit.
package txn

import (
	"context"
	"sync"
)

// Manager runs fn inside one atomic unit of work. Nested calls on a context
// that already carries a transaction join it.
type Manager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type scopeKey struct{}

// Scope collects callbacks to run once the outermost transaction commits.
type Scope struct {
	mu    sync.Mutex
	hooks []func()
}

// Begin attaches a new scope to ctx. Store implementations call it when
// opening the outermost transaction.
func Begin(ctx context.Context) (context.Context, *Scope) {
	s := &Scope{}
	return context.WithValue(ctx, scopeKey{}, s), s
}

// Active reports whether ctx is inside a transaction scope.
func Active(ctx context.Context) bool {
	_, ok := ctx.Value(scopeKey{}).(*Scope)
	return ok
}

// AfterCommit schedules fn to run after the surrounding transaction commits.
// Outside a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	if !ok {
		fn()
		return
	}
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Committed runs the scheduled hooks in registration order.
func (s *Scope) Committed() {
	s.mu.Lock()
	hooks := s.hooks
	s.hooks = nil
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Discard drops the scheduled hooks after a rollback.
func (s *Scope) Discard() {
	s.mu.Lock()
	s.hooks = nil
	s.mu.Unlock()
}
