// Package benor implements one participant of a Ben-Or style randomized
// binary consensus: per-round message buffers, the two-step resolution
// rules, the coin tie-break and round advancement.
package benor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meta-node-blockchain/benor/pkg/config"
	"github.com/meta-node-blockchain/benor/pkg/logger"
	"github.com/meta-node-blockchain/benor/pkg/loggerfile"
	"github.com/meta-node-blockchain/benor/pkg/metrics"
	"github.com/meta-node-blockchain/benor/pkg/readiness"
)

var ErrNoSender = errors.New("node requires a sender")

// Options configures a Node. ID, N, F and Sender are required.
type Options struct {
	ID           int
	N            int
	F            int
	InitialValue Value
	Faulty       bool

	Sender       Sender
	Ready        readiness.Predicate
	PollInterval time.Duration
	SendTimeout  time.Duration
	Coin         Coin
	// RetainRounds > 0 retires buffers of rounds older than round-RetainRounds.
	RetainRounds int

	Metrics  *metrics.Metrics
	Recorder Recorder
	Trace    *loggerfile.FileLogger
}

// Node is a single consensus participant. All mutations go through mu.
type Node struct {
	id      int
	n       int
	f       int
	faulty  bool
	initial Value
	session string

	ready        readiness.Predicate
	pollInterval time.Duration
	coin         Coin
	retainRounds int
	broadcaster  *Broadcaster
	metrics      *metrics.Metrics
	recorder     Recorder
	trace        *loggerfile.FileLogger

	mu      sync.Mutex
	killed  bool
	value   Value
	decided bool
	round   int
	floor   int
	buffers *roundBuffers
}

func NewNode(opts Options) (*Node, error) {
	if opts.N <= 0 {
		return nil, fmt.Errorf("%w: N=%d", config.ErrInvalidNetwork, opts.N)
	}
	if opts.F < 0 || opts.F >= opts.N {
		return nil, fmt.Errorf("%w: F=%d with N=%d", config.ErrInvalidNetwork, opts.F, opts.N)
	}
	if opts.ID < 0 || opts.ID >= opts.N {
		return nil, fmt.Errorf("%w: id=%d N=%d", config.ErrInvalidNodeID, opts.ID, opts.N)
	}
	if opts.Sender == nil {
		return nil, ErrNoSender
	}
	if !opts.Faulty && !opts.InitialValue.IsBinary() {
		return nil, fmt.Errorf("%w: got %s", config.ErrInvalidValue, opts.InitialValue)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.DefaultReadyPollInterval
	}
	if opts.Coin == nil {
		opts.Coin = NewRandomCoin(time.Now().UnixNano() + int64(opts.ID))
	}

	n := &Node{
		id:           opts.ID,
		n:            opts.N,
		f:            opts.F,
		faulty:       opts.Faulty,
		initial:      opts.InitialValue,
		session:      uuid.New().String(),
		ready:        opts.Ready,
		pollInterval: opts.PollInterval,
		coin:         opts.Coin,
		retainRounds: opts.RetainRounds,
		broadcaster:  NewBroadcaster(opts.ID, opts.N, opts.Sender, opts.SendTimeout, opts.Metrics),
		metrics:      opts.Metrics,
		recorder:     opts.Recorder,
		trace:        opts.Trace,
		value:        opts.InitialValue,
		buffers:      newRoundBuffers(),
	}
	if n.faulty {
		n.value = Undefined
	}
	n.metrics.ResetDecision()
	return n, nil
}

func (n *Node) ID() int                   { return n.id }
func (n *Node) N() int                    { return n.n }
func (n *Node) F() int                    { return n.f }
func (n *Node) Faulty() bool              { return n.faulty }
func (n *Node) Session() string           { return n.session }
func (n *Node) Metrics() *metrics.Metrics { return n.metrics }
func (n *Node) quorum() int               { return n.n - n.f }

// Status answers the status query.
func (n *Node) Status() Status {
	if n.faulty {
		return StatusFaulty
	}
	return StatusLive
}

// Start waits for every peer to be ready, then opens round 1 by broadcasting
// the initial value. The wait does not hold the node lock. Faulty, killed or
// already started nodes return without doing anything.
func (n *Node) Start(ctx context.Context) error {
	if err := readiness.Wait(ctx, n.ready, n.pollInterval); err != nil {
		return fmt.Errorf("node %d waiting for peers: %w", n.id, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.faulty || n.killed || n.round != 0 {
		return nil
	}
	n.round = 1
	n.metrics.SetRound(n.round)
	n.record(EventStarted)
	n.trace.Info("start: round=1 x=%s", n.initial)
	logger.Debug("Node %d starting with value %s", n.id, n.initial)
	n.broadcaster.SendToAll(StepPropose, n.round, n.initial)
	return nil
}

// Stop freezes the node. Queries keep working.
func (n *Node) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.killed {
		return
	}
	n.killed = true
	n.metrics.SetKilled()
	n.record(EventStopped)
	n.trace.Info("stop")
}

// WaitForSends blocks until the broadcasts already issued have finished.
// After Stop no new ones start, so Stop then WaitForSends quiesces the node.
func (n *Node) WaitForSends() {
	n.broadcaster.Wait()
}

// Ingest buffers a round message and runs whatever resolution it unlocks.
// Messages reaching a faulty, killed or decided node are dropped silently.
func (n *Node) Ingest(msg Message) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.metrics.MessageReceived(msg.Step)
	switch {
	case n.faulty:
		n.metrics.MessageDropped("faulty")
		return
	case n.killed:
		n.metrics.MessageDropped("killed")
		return
	case n.decided:
		n.metrics.MessageDropped("decided")
		return
	}
	if err := msg.Validate(); err != nil {
		n.metrics.MessageDropped("invalid")
		logger.Debug("Node %d: %v", n.id, err)
		return
	}
	if msg.Round < n.floor {
		n.metrics.MessageDropped("retired")
		return
	}

	rb := n.buffers.get(msg.Round)
	n.metrics.SetBufferedRounds(n.buffers.len())
	switch msg.Step {
	case StepPropose:
		rb.step1 = append(rb.step1, msg.Value)
		if len(rb.step1) >= n.quorum() && !rb.proposed {
			n.resolveProposal(msg.Round, rb)
		}
	case StepDecide:
		rb.step2 = append(rb.step2, msg.Value)
		if len(rb.step2) >= n.quorum() && !rb.consumed {
			n.resolveDecision(msg.Round, rb)
		}
	}
}

// resolveProposal consumes the step-1 buffer of a round exactly once, so
// every node contributes one step-2 message per round.
func (n *Node) resolveProposal(round int, rb *roundBuffer) {
	rb.proposed = true
	proposal := ResolveStep1(rb.step1, n.n)
	if round >= n.round {
		n.value = proposal
	}
	n.record(EventProposal)
	n.trace.Info("round %d step 1: %d votes -> %s", round, len(rb.step1), proposal)
	n.broadcaster.SendToAll(StepDecide, round, proposal)
}

// resolveDecision consumes the step-2 buffer of a round exactly once.
func (n *Node) resolveDecision(round int, rb *roundBuffer) {
	rb.consumed = true
	value, decided := ResolveStep2(rb.step2, n.f, n.coin)
	n.trace.Info("round %d step 2: %d votes -> %s decided=%t", round, len(rb.step2), value, decided)

	if decided || round >= n.round {
		n.value = value
	}
	if round+1 > n.round {
		n.round = round + 1
	}
	n.metrics.SetRound(n.round)

	if decided {
		n.decided = true
		n.metrics.SetDecision(int(value))
		n.record(EventDecided)
		logger.Info("Node %d decided %s in round %d", n.id, value, round)
		// One echo for the next round lets peers that adopted the value reach
		// the quorum without this node.
		n.broadcaster.SendToAll(StepPropose, round+1, value)
		n.broadcaster.SendToAll(StepDecide, round+1, value)
		return
	}

	n.record(EventRound)
	n.retire()
	n.broadcaster.SendToAll(StepPropose, round+1, value)
}

func (n *Node) retire() {
	if n.retainRounds <= 0 {
		return
	}
	floor := n.round - n.retainRounds
	if floor <= n.floor {
		return
	}
	n.floor = floor
	if dropped := n.buffers.retireBelow(floor); dropped > 0 {
		logger.Trace("Node %d retired %d round buffers below %d", n.id, dropped, floor)
	}
	n.metrics.SetBufferedRounds(n.buffers.len())
}

// ReportState returns a consistent copy of the visible state. A decided node
// reports the round it decided in, one less than its advanced counter.
func (n *Node) ReportState() NodeState {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.faulty {
		return NodeState{Killed: n.killed, Value: Undefined}
	}
	decided := n.decided
	round := n.round
	if decided {
		round--
	}
	return NodeState{Killed: n.killed, Value: n.value, Decided: &decided, Round: &round}
}

// BufferedRounds is the number of rounds currently holding messages.
func (n *Node) BufferedRounds() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.buffers.len()
}

// Buffered returns copies of the step buffers of a round.
func (n *Node) Buffered(round int) (step1, step2 []Value) {
	n.mu.Lock()
	defer n.mu.Unlock()
	rb, ok := n.buffers.lookup(round)
	if !ok {
		return nil, nil
	}
	return append([]Value(nil), rb.step1...), append([]Value(nil), rb.step2...)
}

func (n *Node) record(event string) {
	if n.recorder == nil {
		return
	}
	s := Snapshot{
		Session: n.session,
		NodeID:  n.id,
		Round:   n.round,
		Value:   n.value,
		Decided: n.decided,
		Killed:  n.killed,
		Faulty:  n.faulty,
		Event:   event,
	}
	if err := n.recorder.Record(s); err != nil {
		logger.Warn("Node %d: recording %s snapshot failed: %v", n.id, event, err)
	}
}
