package benor

import (
	"context"
	"sync"
	"time"

	"github.com/meta-node-blockchain/benor/pkg/logger"
	"github.com/meta-node-blockchain/benor/pkg/metrics"
)

const DefaultSendTimeout = 2 * time.Second

// Sender delivers a message to the peer with the given index. Address
// derivation is the implementation's business.
type Sender interface {
	Send(ctx context.Context, target int, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, target int, msg Message) error

func (f SenderFunc) Send(ctx context.Context, target int, msg Message) error {
	return f(ctx, target, msg)
}

// Broadcaster sends a round message to every node, itself included.
// Delivery is fire-and-forget: nothing is awaited and nothing is retried.
type Broadcaster struct {
	self    int
	n       int
	sender  Sender
	timeout time.Duration
	metrics *metrics.Metrics

	inflight sync.WaitGroup
}

func NewBroadcaster(self, n int, sender Sender, timeout time.Duration, m *metrics.Metrics) *Broadcaster {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	return &Broadcaster{self: self, n: n, sender: sender, timeout: timeout, metrics: m}
}

func (b *Broadcaster) SendToAll(step, round int, value Value) {
	msg := Message{Value: value, Round: round, Step: step}
	b.metrics.Broadcast(step)
	b.inflight.Add(b.n)
	for i := 0; i < b.n; i++ {
		go b.send(i, msg)
	}
}

// Wait blocks until every send started so far has returned. Each send is
// bounded by the send timeout.
func (b *Broadcaster) Wait() {
	b.inflight.Wait()
}

func (b *Broadcaster) send(target int, msg Message) {
	defer b.inflight.Done()
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.sender.Send(ctx, target, msg); err != nil {
		b.metrics.SendFailed()
		logger.Debug("Node %d: send %s to %d failed: %v", b.self, msg, target, err)
	}
}
