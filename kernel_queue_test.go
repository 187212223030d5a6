package hotmod

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedQueue(t *testing.T) {
	t.Run("should_grant_waiters_in_arrival_order", func(t *testing.T) {
		q := newKeyedQueue()
		release, err := q.acquire(context.Background(), "k")
		require.NoError(t, err)

		var mu sync.Mutex
		var order []int
		var wg sync.WaitGroup
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				r, err := q.acquire(context.Background(), "k")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				r()
			}(i)
			// Wait until goroutine i is queued so arrival order is fixed.
			require.Eventually(t, func() bool { return q.pending("k") == i+1 }, time.Second, time.Millisecond)
		}

		release()
		wg.Wait()
		assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
		assert.Zero(t, q.pending("k"))
	})

	t.Run("should_not_block_other_keys", func(t *testing.T) {
		q := newKeyedQueue()
		releaseA, err := q.acquire(context.Background(), "a")
		require.NoError(t, err)
		defer releaseA()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		releaseB, err := q.acquire(ctx, "b")
		require.NoError(t, err)
		releaseB()
	})

	t.Run("should_leave_queue_when_context_ends", func(t *testing.T) {
		q := newKeyedQueue()
		release, err := q.acquire(context.Background(), "k")
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			_, err := q.acquire(ctx, "k")
			errCh <- err
		}()
		require.Eventually(t, func() bool { return q.pending("k") == 1 }, time.Second, time.Millisecond)
		cancel()
		require.ErrorIs(t, <-errCh, context.Canceled)
		assert.Zero(t, q.pending("k"))

		release()
		next, err := q.acquire(context.Background(), "k")
		require.NoError(t, err)
		next()
	})

	t.Run("should_tolerate_double_release", func(t *testing.T) {
		q := newKeyedQueue()
		release, err := q.acquire(context.Background(), "k")
		require.NoError(t, err)

		waiting := make(chan struct{})
		go func() {
			r, err := q.acquire(context.Background(), "k")
			if err == nil {
				defer r()
			}
			close(waiting)
		}()
		require.Eventually(t, func() bool { return q.pending("k") == 1 }, time.Second, time.Millisecond)
		release()
		release()
		<-waiting
	})
}
