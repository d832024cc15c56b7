package benor

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memNetwork wires nodes together by direct delivery with a small random delay.
type memNetwork struct {
	nodes []*Node
}

func (m *memNetwork) Send(ctx context.Context, target int, msg Message) error {
	delay := time.Duration(rand.Intn(500)) * time.Microsecond
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	m.nodes[target].Ingest(msg)
	return nil
}

func runNetwork(t *testing.T, initial []Value, faulty map[int]bool, seed int64) []NodeState {
	t.Helper()
	net := &memNetwork{nodes: make([]*Node, len(initial))}
	f := len(faulty)
	if f == 0 {
		f = 1
	}
	for i, v := range initial {
		node, err := NewNode(Options{
			ID:           i,
			N:            len(initial),
			F:            f,
			InitialValue: v,
			Faulty:       faulty[i],
			Sender:       net,
			Coin:         NewRandomCoin(seed + int64(i)),
		})
		require.NoError(t, err)
		net.nodes[i] = node
	}
	for _, node := range net.nodes {
		go func(n *Node) { _ = n.Start(context.Background()) }(node)
	}

	require.Eventually(t, func() bool {
		for _, node := range net.nodes {
			if !node.Faulty() && !node.ReportState().IsDecided() {
				return false
			}
		}
		return true
	}, 10*time.Second, 5*time.Millisecond)

	states := make([]NodeState, len(net.nodes))
	for i, node := range net.nodes {
		node.Stop()
		states[i] = node.ReportState()
	}
	return states
}

func agreedValue(t *testing.T, states []NodeState) Value {
	t.Helper()
	decided := Undefined
	for _, s := range states {
		if !s.IsDecided() {
			continue
		}
		require.True(t, s.Value.IsBinary())
		if decided == Undefined {
			decided = s.Value
		}
		require.Equal(t, decided, s.Value, "two nodes decided differently")
	}
	return decided
}

func TestConsensusSplitInputsTerminates(t *testing.T) {
	for trial := 0; trial < 25; trial++ {
		states := runNetwork(t, []Value{Zero, Zero, One, One}, nil, int64(trial*17))
		v := agreedValue(t, states)
		assert.True(t, v.IsBinary())
		for _, s := range states {
			assert.True(t, s.Killed)
			assert.GreaterOrEqual(t, s.RoundOr(0), 1)
		}
	}
}

func TestConsensusUnanimousInputs(t *testing.T) {
	for _, v := range []Value{Zero, One} {
		states := runNetwork(t, []Value{v, v, v, v}, nil, 1)
		assert.Equal(t, v, agreedValue(t, states), "validity")
		for _, s := range states {
			assert.Equal(t, 1, s.RoundOr(0), "unanimous input decides in round 1")
		}
	}
}

func TestConsensusWithFaultyNode(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		states := runNetwork(t, []Value{One, Zero, One, Undefined}, map[int]bool{3: true}, int64(trial))
		assert.True(t, agreedValue(t, states).IsBinary())
		assert.Equal(t, Undefined, states[3].Value)
		assert.Nil(t, states[3].Decided)
	}
}
