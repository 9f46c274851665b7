package transfer

import (
	"context"
	"sync"

	"github.com/Klingon-tech/statetransfer/pkg/types"
)

// tokenLocks serializes flows per token id. Flows on different tokens never
// wait on each other.
type tokenLocks struct {
	mu   sync.Mutex
	held map[types.TokenID]chan struct{}
}

func newTokenLocks() *tokenLocks {
	return &tokenLocks{held: make(map[types.TokenID]chan struct{})}
}

// acquire blocks until id is free or ctx is done.
func (l *tokenLocks) acquire(ctx context.Context, id types.TokenID) (func(), error) {
	for {
		l.mu.Lock()
		busy, ok := l.held[id]
		if !ok {
			done := make(chan struct{})
			l.held[id] = done
			l.mu.Unlock()
			return func() {
				l.mu.Lock()
				delete(l.held, id)
				l.mu.Unlock()
				close(done)
			}, nil
		}
		l.mu.Unlock()

		select {
		case <-busy:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
