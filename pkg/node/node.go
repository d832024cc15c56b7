// Package node assembles one consensus participant as a standalone process:
// the consensus core, its HTTP server, the state journal and trace file.
package node

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/meta-node-blockchain/benor/pkg/benor"
	"github.com/meta-node-blockchain/benor/pkg/codec"
	"github.com/meta-node-blockchain/benor/pkg/config"
	"github.com/meta-node-blockchain/benor/pkg/core"
	"github.com/meta-node-blockchain/benor/pkg/journal"
	"github.com/meta-node-blockchain/benor/pkg/logger"
	"github.com/meta-node-blockchain/benor/pkg/loggerfile"
	"github.com/meta-node-blockchain/benor/pkg/metrics"
	"github.com/meta-node-blockchain/benor/pkg/storage"
	"github.com/meta-node-blockchain/benor/pkg/transport"
)

// Node is a participant wired for one-node-per-process deployments. Peers
// are found at host:base_port+index.
type Node struct {
	Config    *config.NodeConfig
	ID        int
	Consensus *benor.Node

	client  *http.Client
	server  *transport.Server
	journal *journal.Journal
	trace   *loggerfile.FileLogger
	modules []core.Module
}

var _ core.Module = (*Node)(nil)

// NewNode validates cfg and builds every component. Nothing listens yet.
func NewNode(cfg *config.NodeConfig) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if !cfg.Tolerates() {
		logger.Warn("N=%d does not exceed 2F=%d, termination is not guaranteed", cfg.NumNodes, 2*cfg.NumFaulty)
	}
	n := &Node{Config: cfg, ID: cfg.ID}

	if cfg.LogDir != "" {
		loggerfile.SetGlobalLogDir(cfg.LogDir)
	}
	if cfg.Trace {
		trace, err := loggerfile.NewFileLogger(fmt.Sprintf("node-%d.log", cfg.ID))
		if err != nil {
			return nil, err
		}
		n.trace = trace
	}

	var rec benor.Recorder
	if cfg.StorageType != "" {
		db, err := storage.LoadDb(cfg.StorageType, cfg.StoragePath)
		if err != nil {
			n.trace.Close()
			return nil, fmt.Errorf("open storage: %w", err)
		}
		j, err := journal.Open(db, cfg.ID)
		if err != nil {
			db.Close()
			n.trace.Close()
			return nil, err
		}
		n.journal = j
		rec = j
	}

	wire, err := codec.ForWireFormat(cfg.WireFormat)
	if err != nil {
		n.close()
		return nil, err
	}
	n.client = &http.Client{Timeout: transport.DefaultClientTimeout}
	initial := benor.ValueOf(cfg.InitialValue)
	if cfg.Faulty {
		initial = benor.Undefined
	}
	var coin benor.Coin
	if cfg.Seed != 0 {
		coin = benor.NewRandomCoin(cfg.Seed + int64(cfg.ID))
	}

	n.Consensus, err = benor.NewNode(benor.Options{
		ID:           cfg.ID,
		N:            cfg.NumNodes,
		F:            cfg.NumFaulty,
		InitialValue: initial,
		Faulty:       cfg.Faulty,
		Sender:       transport.NewHTTPSender(n.client, cfg.PeerURL, wire),
		Ready:        transport.ProbePeers(n.client, cfg.NumNodes, cfg.PeerURL),
		PollInterval: cfg.PollInterval(),
		Coin:         coin,
		RetainRounds: cfg.RetainRounds,
		Metrics:      metrics.New(cfg.ID),
		Recorder:     rec,
		Trace:        n.trace,
	})
	if err != nil {
		n.close()
		return nil, err
	}

	opts := transport.ServerOptions{Address: cfg.PeerAddress(cfg.ID), RateLimits: cfg.RateLimits}
	if n.journal != nil {
		opts.History = n.journal
	}
	n.server = transport.NewServer(n.Consensus, opts)
	n.modules = append(n.modules, n.server)
	return n, nil
}

// Start launches the modules. It does not start the protocol; that is the
// start route's job.
func (n *Node) Start() error {
	for _, m := range n.modules {
		if err := m.Start(); err != nil {
			return err
		}
	}
	logger.Info("Node %d (%s) serving on %s", n.ID, n.Consensus.Status(), n.server.Addr())
	return nil
}

// Stop kills the consensus, lets its pending sends finish, shuts the modules
// down, writes the configured backup and closes the journal and trace file.
func (n *Node) Stop() error {
	n.Consensus.Stop()
	n.Consensus.WaitForSends()
	// Pooled connections that never carried a request would hold up the
	// server's graceful shutdown.
	n.client.CloseIdleConnections()

	var errs []string
	for i := len(n.modules) - 1; i >= 0; i-- {
		if err := n.modules[i].Stop(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if n.journal != nil && n.Config.BackupPath != "" {
		if err := n.journal.Backup(n.Config.BackupPath); err != nil {
			errs = append(errs, fmt.Sprintf("backup: %v", err))
		} else {
			logger.Info("Node %d journal backed up to %s", n.ID, n.Config.BackupPath)
		}
	}
	if err := n.close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("stopping node %d: %s", n.ID, strings.Join(errs, "; "))
	}
	return nil
}

func (n *Node) close() error {
	n.trace.Close()
	if n.journal != nil {
		return n.journal.Close()
	}
	return nil
}

// Addr is the address the HTTP server is bound to.
func (n *Node) Addr() string {
	return n.server.Addr()
}

// Journal is nil when no storage is configured.
func (n *Node) Journal() *journal.Journal {
	return n.journal
}
