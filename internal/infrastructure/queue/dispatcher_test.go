package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/instastick/storefront-auth/internal/core/domain"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
	gate chan struct{}
}

func (r *recordingNotifier) Send(ctx context.Context, n domain.Notification) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func TestDispatcher_DeliversInOrderPerAddress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recordingNotifier{}
	d := NewDispatcher(3, rec, zerolog.Nop())
	d.Start(ctx)

	kinds := []domain.NotificationKind{domain.NotifyWelcome, domain.NotifyAccountLocked, domain.NotifyPasswordReset}
	for _, k := range kinds {
		d.Enqueue(domain.Notification{Kind: k, To: "a@x.com"})
	}

	require.Eventually(t, func() bool { return rec.count() == len(kinds) }, time.Second, 5*time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i, k := range kinds {
		assert.Equal(t, k, rec.sent[i].Kind)
	}
}

func TestDispatcher_FailureIsSwallowed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recordingNotifier{err: errors.New("smtp down")}
	d := NewDispatcher(1, rec, zerolog.Nop())
	d.Start(ctx)

	d.Enqueue(domain.Notification{Kind: domain.NotifyWelcome, To: "a@x.com"})
	d.Enqueue(domain.Notification{Kind: domain.NotifyWelcome, To: "b@x.com"})

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_EnqueueNeverBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recordingNotifier{gate: make(chan struct{})}
	d := NewDispatcher(1, rec, zerolog.Nop())
	d.Start(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < channelBuffer*2; i++ {
			d.Enqueue(domain.Notification{Kind: domain.NotifyWelcome, To: "a@x.com"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
	close(rec.gate)
}

func TestDispatcher_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher(2, &recordingNotifier{}, zerolog.Nop())
	d.Start(ctx)
	cancel()

	stopped := make(chan struct{})
	go func() {
		d.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}
}

func TestDispatcher_ShardIndexIsStable(t *testing.T) {
	d := NewDispatcher(8, &recordingNotifier{}, zerolog.Nop())
	first := d.shardIndex("a@x.com")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, d.shardIndex("a@x.com"))
	}
	assert.Len(t, d.workers, 8)
	assert.Len(t, NewDispatcher(0, nil, zerolog.Nop()).workers, defaultWorkers)
}
