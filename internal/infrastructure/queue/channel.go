package queue

import (
	"context"
	"sync"

	domain "github.com/mohammadpnp/person-fusion/internal/domain/fusion"
)

// ChannelQueue is an in-process dispatch queue backed by a buffered channel.
type ChannelQueue struct {
	ch        chan string
	done      chan struct{}
	closeOnce sync.Once
}

func NewChannelQueue(buffer int) *ChannelQueue {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelQueue{ch: make(chan string, buffer), done: make(chan struct{})}
}

// Dispatch blocks while the buffer is full.
func (q *ChannelQueue) Dispatch(ctx context.Context, taskID string) error {
	select {
	case <-q.done:
		return domain.ErrQueueClosed
	default:
	}
	select {
	case q.ch <- taskID:
		return nil
	case <-q.done:
		return domain.ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *ChannelQueue) Receive(ctx context.Context) (string, error) {
	select {
	case id := <-q.ch:
		return id, nil
	case <-q.done:
		return "", domain.ErrQueueClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *ChannelQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
