package transport

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/meta-node-blockchain/benor/pkg/benor"
)

var ErrUnreachable = errors.New("node unreachable")

// Ingester is the receiving side of a node.
type Ingester interface {
	Ingest(msg benor.Message)
}

// LocalBus delivers messages between in-process nodes after a simulated
// latency plus random jitter.
type LocalBus struct {
	latency time.Duration
	jitter  time.Duration

	mu           sync.RWMutex
	nodes        map[int]Ingester
	disconnected map[int]bool
	rnd          *rand.Rand
	rndMu        sync.Mutex
}

func NewLocalBus(latency, jitter time.Duration, seed int64) *LocalBus {
	return &LocalBus{
		latency:      latency,
		jitter:       jitter,
		nodes:        make(map[int]Ingester),
		disconnected: make(map[int]bool),
		rnd:          rand.New(rand.NewSource(seed)),
	}
}

// RegisterNode attaches a node under index.
func (b *LocalBus) RegisterNode(index int, node Ingester) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nodes[index] = node
}

// Disconnect makes sends to index fail, as if its process were gone.
func (b *LocalBus) Disconnect(index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disconnected[index] = true
}

func (b *LocalBus) Reconnect(index int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.disconnected, index)
}

func (b *LocalBus) delay() time.Duration {
	if b.jitter <= 0 {
		return b.latency
	}
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.latency + time.Duration(b.rnd.Int63n(int64(b.jitter)))
}

// Send implements benor.Sender.
func (b *LocalBus) Send(ctx context.Context, target int, msg benor.Message) error {
	if d := b.delay(); d > 0 {
		timer := time.NewTimer(d)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	b.mu.RLock()
	node, ok := b.nodes[target]
	down := b.disconnected[target]
	b.mu.RUnlock()
	if !ok || down {
		return fmt.Errorf("%w: %d", ErrUnreachable, target)
	}
	node.Ingest(msg)
	return nil
}
