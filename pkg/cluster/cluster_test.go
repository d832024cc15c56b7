package cluster

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meta-node-blockchain/benor/pkg/benor"
	"github.com/meta-node-blockchain/benor/pkg/config"
	"github.com/meta-node-blockchain/benor/pkg/storage"
	"github.com/meta-node-blockchain/benor/pkg/transport"
)

func network(n, f int) config.NetworkConfig {
	return config.NetworkConfig{NumNodes: n, NumFaulty: f, Host: "127.0.0.1"}
}

func run(t *testing.T, opts Options) (*Cluster, Outcome) {
	t.Helper()
	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Launch())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	require.NoError(t, c.StartAll(ctx))
	states, err := c.WaitForDecision(ctx)
	require.NoError(t, err)
	return c, Summarize(states)
}

func TestLocalSplitInputs(t *testing.T) {
	for trial := int64(1); trial <= 20; trial++ {
		_, out := run(t, Options{
			Network:       network(4, 1),
			InitialValues: []benor.Value{benor.Zero, benor.Zero, benor.One, benor.One},
			Jitter:        time.Millisecond,
			Seed:          trial,
		})
		assert.True(t, out.Terminated(), "trial %d: %+v", trial, out)
		assert.Equal(t, 4, out.Live)
		assert.True(t, out.Value.IsBinary())
	}
}

func TestLocalUnanimousDecidesInFirstRound(t *testing.T) {
	_, out := run(t, Options{
		Network:       network(5, 2),
		InitialValues: []benor.Value{benor.One, benor.One, benor.One, benor.One, benor.One},
		Seed:          3,
	})
	assert.True(t, out.Terminated())
	assert.Equal(t, benor.One, out.Value)
	assert.Equal(t, 1, out.MaxRound)
}

func TestLocalWithFaultyNode(t *testing.T) {
	for trial := int64(1); trial <= 10; trial++ {
		c, out := run(t, Options{
			Network:       network(4, 1),
			InitialValues: []benor.Value{benor.One, benor.Zero, benor.One, benor.Zero},
			Faulty:        map[int]bool{1: true},
			Jitter:        time.Millisecond,
			Seed:          trial,
		})
		assert.True(t, out.Terminated())
		assert.Equal(t, 3, out.Live)
		faulty := c.Node(1).ReportState()
		assert.Equal(t, benor.Undefined, faulty.Value)
		assert.Nil(t, faulty.Round)
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{Network: network(4, 1), InitialValues: []benor.Value{benor.One}})
	assert.ErrorIs(t, err, ErrInputs)

	_, err = New(Options{Network: network(0, 0)})
	assert.ErrorIs(t, err, config.ErrInvalidNetwork)

	_, err = New(Options{
		Network:       network(2, 0),
		InitialValues: []benor.Value{benor.One, benor.Unknown},
	})
	assert.ErrorIs(t, err, config.ErrInvalidValue)

	_, err = New(Options{
		Network:       network(1, 0),
		InitialValues: []benor.Value{benor.One},
		Mode:          "carrier-pigeon",
	})
	assert.Error(t, err)
}

func TestStopAllFreezesNodes(t *testing.T) {
	c, err := New(Options{
		Network:       network(3, 1),
		InitialValues: []benor.Value{benor.One, benor.Zero, benor.One},
		Latency:       50 * time.Millisecond,
		Seed:          9,
	})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Launch())
	require.NoError(t, c.StartAll(context.Background()))
	c.StopAll()

	before := c.States()
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, before, c.States())
	for _, s := range before {
		assert.True(t, s.Killed)
	}
}

func TestHTTPClusterWithJournal(t *testing.T) {
	cfg := network(4, 1)
	cfg.WireFormat = config.WireFormatProto
	c, out := run(t, Options{
		Network:       cfg,
		Mode:          ModeHTTP,
		InitialValues: []benor.Value{benor.Zero, benor.Zero, benor.One, benor.Zero},
		StorageType:   storage.STORAGE_TYPE_MEMORY_DB,
		Seed:          5,
	})
	assert.True(t, out.Terminated())

	resp, err := http.Get("http://" + c.Addr(0) + transport.RouteGetState)
	require.NoError(t, err)
	defer resp.Body.Close()
	var state benor.NodeState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.True(t, state.IsDecided())
	assert.Equal(t, out.Value, state.Value)

	history, err := c.Journal(0).History()
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, benor.EventStarted, history[0].Event)
	assert.Equal(t, benor.EventDecided, history[len(history)-1].Event)
}

func TestLevelDBJournalPerNode(t *testing.T) {
	c, out := run(t, Options{
		Network:       network(3, 1),
		InitialValues: []benor.Value{benor.One, benor.One, benor.One},
		StorageType:   storage.STORAGE_TYPE_LEVEL_DB,
		StorageDir:    t.TempDir(),
		Seed:          2,
	})
	assert.True(t, out.Terminated())
	for i := range c.Nodes() {
		h, err := c.Journal(i).History()
		require.NoError(t, err)
		assert.NotEmpty(t, h)
	}
}

func TestSummarize(t *testing.T) {
	yes, no := true, false
	r1, r3 := 1, 3
	states := []benor.NodeState{
		{Value: benor.One, Decided: &yes, Round: &r1},
		{Value: benor.One, Decided: &yes, Round: &r3},
		{Value: benor.Undefined},
		{Value: benor.Zero, Decided: &no, Round: &r3},
	}
	out := Summarize(states)
	assert.Equal(t, 3, out.Live)
	assert.Equal(t, 2, out.Decided)
	assert.Equal(t, benor.One, out.Value)
	assert.Equal(t, 3, out.MaxRound)
	assert.True(t, out.Agreed)
	assert.False(t, out.Terminated())

	states[3] = benor.NodeState{Value: benor.Zero, Decided: &yes, Round: &r1}
	assert.False(t, Summarize(states).Agreed)
}
