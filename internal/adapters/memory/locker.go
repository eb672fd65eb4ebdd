package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lockEntry struct {
	token     string
	expiresAt time.Time
}

// Locker is the single-process counterpart of the Redis locker.
type Locker struct {
	mu    sync.Mutex
	held  map[string]lockEntry
	nowFn func() time.Time
}

func NewLocker() *Locker {
	return &Locker{held: map[string]lockEntry{}, nowFn: time.Now}
}

func (l *Locker) TryLock(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowFn()
	if cur, ok := l.held[key]; ok && now.Before(cur.expiresAt) {
		return nil, false, nil
	}
	token := uuid.NewString()
	l.held[key] = lockEntry{token: token, expiresAt: now.Add(ttl)}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.token == token {
			delete(l.held, key)
		}
		return nil
	}, true, nil
}
