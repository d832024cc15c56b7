package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/meta-node-blockchain/benor/pkg/config"
	"github.com/meta-node-blockchain/benor/pkg/logger"
	"github.com/meta-node-blockchain/benor/pkg/loggerfile"
	"github.com/meta-node-blockchain/benor/pkg/node"
)

func main() {
	configFile := flag.String("config", "config.json", "Configuration file name")
	cleanLogs := flag.Bool("clean-logs", false, "Remove old trace files before starting")
	over := registerOverrides(flag.CommandLine)
	flag.Parse()

	cfg, err := config.LoadConfigFromFile(*configFile)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}
	over.apply(cfg)

	level := logger.FLAG_INFO
	if cfg.LogLevel != "" {
		if level, err = logger.ParseLevel(cfg.LogLevel); err != nil {
			log.Fatalf("Error parsing log level: %v", err)
		}
	}
	logger.SetConfig(&logger.LoggerConfig{
		Flag:       level,
		Identifier: fmt.Sprintf("node-%d", cfg.ID),
		Color:      true,
		Outputs:    []io.Writer{os.Stdout},
		ErrOutput:  os.Stderr,
	})

	if *cleanLogs && cfg.LogDir != "" {
		if err := loggerfile.NewLogCleaner(cfg.LogDir).CleanLogs(); err != nil {
			log.Fatalf("Error cleaning logs: %v", err)
		}
	}

	n, err := node.NewNode(cfg)
	if err != nil {
		log.Fatalf("Failed to create node: %v", err)
	}
	if err := n.Start(); err != nil {
		log.Fatalf("Node failed to start: %v", err)
	}
	logger.Info("Node %d of %d (F=%d) ready, initial value %d", cfg.ID, cfg.NumNodes, cfg.NumFaulty, cfg.InitialValue)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutting down")
	if err := n.Stop(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// optionalBool is a boolean flag that remembers whether it was given, so it
// can override a config value in both directions.
type optionalBool struct {
	value bool
	set   bool
}

func (b *optionalBool) String() string { return strconv.FormatBool(b.value) }

func (b *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	b.value, b.set = v, true
	return nil
}

func (b *optionalBool) IsBoolFlag() bool { return true }

// overrides are the command line values that win over the config file.
type overrides struct {
	id       int
	initial  int
	faulty   optionalBool
	logLevel string
}

func registerOverrides(fs *flag.FlagSet) *overrides {
	o := &overrides{}
	fs.IntVar(&o.id, "id", -1, "Node index, overrides the config file")
	fs.IntVar(&o.initial, "x", -1, "Initial value 0 or 1, overrides the config file")
	fs.Var(&o.faulty, "faulty", "Run in faulty mode (-faulty or -faulty=false), overrides the config file")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level, overrides the config file")
	return o
}

func (o *overrides) apply(cfg *config.NodeConfig) {
	if o.id >= 0 {
		cfg.ID = o.id
	}
	if o.initial >= 0 {
		cfg.InitialValue = o.initial
	}
	if o.faulty.set {
		cfg.Faulty = o.faulty.value
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
}
