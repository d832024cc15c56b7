// Package cluster runs a whole consensus network inside one process, either
// over the in-process bus or over real HTTP listeners on localhost.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meta-node-blockchain/benor/pkg/benor"
	"github.com/meta-node-blockchain/benor/pkg/codec"
	"github.com/meta-node-blockchain/benor/pkg/config"
	"github.com/meta-node-blockchain/benor/pkg/journal"
	"github.com/meta-node-blockchain/benor/pkg/logger"
	"github.com/meta-node-blockchain/benor/pkg/metrics"
	"github.com/meta-node-blockchain/benor/pkg/readiness"
	"github.com/meta-node-blockchain/benor/pkg/storage"
	"github.com/meta-node-blockchain/benor/pkg/transport"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeHTTP  Mode = "http"

	defaultWaitInterval = 10 * time.Millisecond
)

var ErrInputs = errors.New("initial values do not match the network size")

type Options struct {
	Network config.NetworkConfig
	Mode    Mode
	// InitialValues has one entry per node; faulty nodes' entries are ignored.
	InitialValues []benor.Value
	Faulty        map[int]bool

	// Latency and Jitter shape the local bus.
	Latency time.Duration
	Jitter  time.Duration
	// Seed makes coins and bus jitter reproducible; 0 seeds from the clock.
	Seed int64

	RetainRounds int
	// StorageType enables a journal per node; StorageDir holds on-disk ones.
	StorageType string
	StorageDir  string
}

// Cluster owns the nodes of one run.
type Cluster struct {
	opts     Options
	nodes    []*benor.Node
	journals []*journal.Journal
	registry *readiness.Registry
	bus      *transport.LocalBus
	servers  []*transport.Server
	client   *http.Client

	mu    sync.RWMutex
	addrs map[int]string
}

func New(opts Options) (*Cluster, error) {
	if opts.Network.Host == "" {
		opts.Network.Host = config.DefaultHost
	}
	if opts.Network.WireFormat == "" {
		opts.Network.WireFormat = config.WireFormatJSON
	}
	cfg := opts.Network
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(opts.InitialValues) != cfg.NumNodes {
		return nil, fmt.Errorf("%w: %d values for %d nodes", ErrInputs, len(opts.InitialValues), cfg.NumNodes)
	}
	if opts.Mode == "" {
		opts.Mode = ModeLocal
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	if !cfg.Tolerates() {
		logger.Warn("N=%d does not exceed 2F=%d, termination is not guaranteed", cfg.NumNodes, 2*cfg.NumFaulty)
	}

	c := &Cluster{
		opts:     opts,
		registry: readiness.NewRegistry(cfg.NumNodes),
		client:   &http.Client{Timeout: transport.DefaultClientTimeout},
		addrs:    make(map[int]string),
	}

	var sender benor.Sender
	switch opts.Mode {
	case ModeLocal:
		c.bus = transport.NewLocalBus(opts.Latency, opts.Jitter, opts.Seed)
		sender = c.bus
	case ModeHTTP:
		wire, err := codec.ForWireFormat(cfg.WireFormat)
		if err != nil {
			return nil, err
		}
		sender = transport.NewHTTPSender(c.client, c.url, wire)
	default:
		return nil, fmt.Errorf("unknown cluster mode %q", opts.Mode)
	}

	for i := 0; i < cfg.NumNodes; i++ {
		if err := c.addNode(i, sender); err != nil {
			c.closeJournals()
			return nil, err
		}
	}
	return c, nil
}

func (c *Cluster) addNode(i int, sender benor.Sender) error {
	cfg := c.opts.Network
	var rec benor.Recorder
	var j *journal.Journal
	if c.opts.StorageType != "" {
		db, err := storage.LoadDb(c.opts.StorageType, filepath.Join(c.opts.StorageDir, fmt.Sprintf("node-%d", i)))
		if err != nil {
			return fmt.Errorf("node %d storage: %w", i, err)
		}
		if j, err = journal.Open(db, i); err != nil {
			db.Close()
			return fmt.Errorf("node %d journal: %w", i, err)
		}
		rec = j
	}
	c.journals = append(c.journals, j)

	initial := c.opts.InitialValues[i]
	if c.opts.Faulty[i] {
		initial = benor.Undefined
	}
	node, err := benor.NewNode(benor.Options{
		ID:           i,
		N:            cfg.NumNodes,
		F:            cfg.NumFaulty,
		InitialValue: initial,
		Faulty:       c.opts.Faulty[i],
		Sender:       sender,
		Ready:        c.registry.AllReady,
		PollInterval: cfg.PollInterval(),
		Coin:         benor.NewRandomCoin(c.opts.Seed + int64(i)),
		RetainRounds: c.opts.RetainRounds,
		Metrics:      metrics.New(i),
		Recorder:     rec,
	})
	if err != nil {
		return fmt.Errorf("node %d: %w", i, err)
	}
	c.nodes = append(c.nodes, node)

	if c.opts.Mode == ModeHTTP {
		srv := transport.NewServer(node, transport.ServerOptions{
			Address:    c.listenAddress(i),
			RateLimits: cfg.RateLimits,
			History:    historyOf(j),
		})
		index := i
		srv.AddOnListeningCallBack(func(addr string) {
			c.mu.Lock()
			c.addrs[index] = addr
			c.mu.Unlock()
			c.registry.MarkReady(index)
		})
		c.servers = append(c.servers, srv)
	}
	return nil
}

// historyOf keeps a nil journal from becoming a non-nil interface.
func historyOf(j *journal.Journal) transport.HistorySource {
	if j == nil {
		return nil
	}
	return j
}

// listenAddress uses an ephemeral port when no base port is configured.
func (c *Cluster) listenAddress(i int) string {
	if c.opts.Network.BasePort == 0 {
		return fmt.Sprintf("%s:0", c.opts.Network.Host)
	}
	return c.opts.Network.PeerAddress(i)
}

func (c *Cluster) url(i int) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return "http://" + c.addrs[i]
}

// Nodes returns the nodes by index.
func (c *Cluster) Nodes() []*benor.Node {
	return c.nodes
}

// Node returns the node with the given index.
func (c *Cluster) Node(i int) *benor.Node {
	return c.nodes[i]
}

// Addr is the HTTP address of node i, empty in local mode.
func (c *Cluster) Addr(i int) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addrs[i]
}

// Journal returns node i's journal, nil when journaling is off.
func (c *Cluster) Journal(i int) *journal.Journal {
	return c.journals[i]
}

// Launch makes every node reachable: registered on the bus, or listening.
func (c *Cluster) Launch() error {
	if c.opts.Mode == ModeLocal {
		for i, node := range c.nodes {
			c.bus.RegisterNode(i, node)
			c.registry.MarkReady(i)
		}
		return nil
	}
	var g errgroup.Group
	for _, srv := range c.servers {
		g.Go(srv.Start)
	}
	return g.Wait()
}

// StartAll starts every node concurrently and returns once all have opened
// round 1. Over HTTP the start route of each node is used.
func (c *Cluster) StartAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i, node := range c.nodes {
		i, node := i, node
		g.Go(func() error {
			if c.opts.Mode == ModeHTTP {
				return c.get(ctx, i, transport.RouteStart)
			}
			return node.Start(ctx)
		})
	}
	return g.Wait()
}

func (c *Cluster) get(ctx context.Context, i int, route string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(i)+route, nil)
	if err != nil {
		return err
	}
	// start blocks on readiness, so it must not be cut by the client timeout
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("node %d %s: %w", i, route, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node %d %s: %s", i, route, resp.Status)
	}
	return nil
}

// States reports every node's state by index.
func (c *Cluster) States() []benor.NodeState {
	out := make([]benor.NodeState, len(c.nodes))
	for i, node := range c.nodes {
		out[i] = node.ReportState()
	}
	return out
}

// Decided reports whether every live node has decided.
func (c *Cluster) Decided() bool {
	for _, node := range c.nodes {
		if node.Faulty() {
			continue
		}
		if !node.ReportState().IsDecided() {
			return false
		}
	}
	return true
}

// WaitForDecision polls until every live node decided or ctx ends. The
// states are returned either way.
func (c *Cluster) WaitForDecision(ctx context.Context) ([]benor.NodeState, error) {
	interval := c.opts.Network.PollInterval()
	if interval <= 0 {
		interval = defaultWaitInterval
	}
	err := readiness.Wait(ctx, c.Decided, interval)
	return c.States(), err
}

// StopAll kills every node. Servers keep answering queries until Close.
func (c *Cluster) StopAll() {
	for _, node := range c.nodes {
		node.Stop()
	}
}

// Close stops the nodes, shuts the servers down and closes the journals.
func (c *Cluster) Close() error {
	c.StopAll()
	for _, node := range c.nodes {
		node.WaitForSends()
	}
	c.client.CloseIdleConnections()
	var g errgroup.Group
	for i, srv := range c.servers {
		i, srv := i, srv
		g.Go(func() error {
			c.registry.MarkDown(i)
			return srv.Stop()
		})
	}
	err := g.Wait()
	if jerr := c.closeJournals(); err == nil {
		err = jerr
	}
	return err
}

func (c *Cluster) closeJournals() error {
	var errs []error
	for _, j := range c.journals {
		if j == nil {
			continue
		}
		if err := j.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
