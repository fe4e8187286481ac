package delivery

import (
	"context"
	"sync"
)

// LocalLock is the in-process Locker used when no shared lock is configured.
type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) TryLock(context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}
