package hotmod

import (
	"context"
	"sync"
)

// keyedQueue grants exclusive access per key in strict arrival order.
// Callers holding different keys never wait on each other.
type keyedQueue struct {
	mu     sync.Mutex
	queues map[string]*keyWaiters
}

type keyWaiters struct {
	held    bool
	waiters []chan struct{}
}

func newKeyedQueue() *keyedQueue {
	return &keyedQueue{queues: make(map[string]*keyWaiters)}
}

// acquire blocks until key is free and every earlier waiter for key has been
// served. The returned release func must be called exactly once. If ctx ends
// first the caller leaves the queue and ctx.Err() is returned.
func (q *keyedQueue) acquire(ctx context.Context, key string) (func(), error) {
	q.mu.Lock()
	kw, ok := q.queues[key]
	if !ok {
		kw = &keyWaiters{}
		q.queues[key] = kw
	}
	if !kw.held && len(kw.waiters) == 0 {
		kw.held = true
		q.mu.Unlock()
		return q.releaser(key), nil
	}
	ch := make(chan struct{})
	kw.waiters = append(kw.waiters, ch)
	q.mu.Unlock()

	select {
	case <-ch:
		return q.releaser(key), nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	for i, w := range kw.waiters {
		if w == ch {
			kw.waiters = append(kw.waiters[:i], kw.waiters[i+1:]...)
			q.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	q.mu.Unlock()
	// Ownership was handed over while ctx ended; pass it on.
	q.release(key)
	return nil, ctx.Err()
}

func (q *keyedQueue) releaser(key string) func() {
	var once sync.Once
	return func() { once.Do(func() { q.release(key) }) }
}

func (q *keyedQueue) release(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	kw, ok := q.queues[key]
	if !ok {
		return
	}
	if len(kw.waiters) > 0 {
		next := kw.waiters[0]
		kw.waiters = kw.waiters[1:]
		close(next)
		return
	}
	kw.held = false
	delete(q.queues, key)
}

// pending returns the number of callers waiting on key, excluding the holder.
func (q *keyedQueue) pending(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if kw, ok := q.queues[key]; ok {
		return len(kw.waiters)
	}
	return 0
}
