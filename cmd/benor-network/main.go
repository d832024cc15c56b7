// Command benor-network launches N HTTP nodes on consecutive localhost ports,
// starts them, waits for the decision and prints every node's state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meta-node-blockchain/benor/pkg/cluster"
	"github.com/meta-node-blockchain/benor/pkg/config"
	"github.com/meta-node-blockchain/benor/pkg/logger"
)

func main() {
	configFile := flag.String("config", "", "Network configuration file (optional)")
	numNodes := flag.Int("n", 4, "Number of nodes")
	numFaulty := flag.Int("f", 1, "Fault tolerance F")
	faultyCount := flag.Int("faulty", 0, "How many nodes (the last ones) run in faulty mode")
	basePort := flag.Int("base-port", config.DefaultBasePort, "Port of node 0; node i listens on base-port+i")
	wire := flag.String("wire", config.WireFormatJSON, "Wire format: json or proto")
	inputs := flag.String("inputs", "random", `Initial values, e.g. "0,0,1,1", or "random"`)
	storageType := flag.String("storage", "", "Journal storage: memory, level, badger (empty disables)")
	storageDir := flag.String("storage-dir", "data", "Directory for on-disk journals")
	timeout := flag.Duration("timeout", 30*time.Second, "How long to wait for a decision")
	serve := flag.Bool("serve", false, "Keep serving after the decision until interrupted")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		log.Fatalf("Error parsing log level: %v", err)
	}
	logger.SetConfig(&logger.LoggerConfig{Flag: level, Identifier: "network", Color: true, Outputs: []io.Writer{os.Stdout}, ErrOutput: os.Stderr})

	network := config.NetworkConfig{
		NumNodes:   *numNodes,
		NumFaulty:  *numFaulty,
		BasePort:   *basePort,
		WireFormat: *wire,
	}
	if *configFile != "" {
		cfg, err := config.LoadConfigFromFile(*configFile)
		if err != nil {
			log.Fatalf("Error loading config: %v", err)
		}
		network = cfg.NetworkConfig
	}
	network.ApplyDefaults()

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	values, err := cluster.ParseInputs(*inputs, network.NumNodes, rnd)
	if err != nil {
		log.Fatalf("Error parsing inputs: %v", err)
	}

	c, err := cluster.New(cluster.Options{
		Network:       network,
		Mode:          cluster.ModeHTTP,
		InitialValues: values,
		Faulty:        cluster.LastFaulty(*faultyCount, network.NumNodes),
		StorageType:   *storageType,
		StorageDir:    *storageDir,
	})
	if err != nil {
		log.Fatalf("Error creating network: %v", err)
	}
	defer c.Close()

	if err := c.Launch(); err != nil {
		log.Fatalf("Error launching nodes: %v", err)
	}
	logger.Info("Launched %d nodes on %s:%d-%d with inputs %v", network.NumNodes, network.Host, network.BasePort, network.BasePort+network.NumNodes-1, values)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	if err := c.StartAll(ctx); err != nil {
		log.Fatalf("Error starting nodes: %v", err)
	}
	states, err := c.WaitForDecision(ctx)
	if err != nil {
		logger.Warn("Stopped waiting: %v", err)
	}
	for i, s := range states {
		b, _ := json.Marshal(s)
		logger.Info("Node %d (%s): %s", i, c.Node(i).Status(), b)
	}
	out := cluster.Summarize(states)
	if out.Terminated() {
		logger.Info("Consensus on %s, highest decision round %d", out.Value, out.MaxRound)
	} else {
		logger.Error("No consensus: %d/%d live nodes decided, agreed=%t", out.Decided, out.Live, out.Agreed)
	}

	if *serve {
		logger.Info("Serving until interrupted")
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
	}
	c.StopAll()
}
