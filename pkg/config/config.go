package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	DefaultHost              = "localhost"
	DefaultBasePort          = 3000
	DefaultReadyPollInterval = 10 * time.Millisecond

	WireFormatJSON  = "json"
	WireFormatProto = "proto"
)

var (
	ErrInvalidNetwork = errors.New("invalid network size")
	ErrInvalidNodeID  = errors.New("node id out of range")
	ErrInvalidValue   = errors.New("initial value must be 0 or 1")
)

// Duration lets durations be written as "10ms" in JSON files.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid duration %s", string(b))
	}
	*d = Duration(n)
	return nil
}

// NetworkConfig describes the whole set of participants.
type NetworkConfig struct {
	NumNodes          int            `json:"num_nodes"`
	NumFaulty         int            `json:"num_faulty"`
	Host              string         `json:"host"`
	BasePort          int            `json:"base_port"`
	ReadyPollInterval Duration       `json:"ready_poll_interval"`
	WireFormat        string         `json:"wire_format"`
	RateLimits        map[string]int `json:"rate_limits"`
}

// NodeConfig is the configuration of a single participant.
type NodeConfig struct {
	NetworkConfig
	ID           int    `json:"id"`
	InitialValue int    `json:"initial_value"`
	Faulty       bool   `json:"faulty"`
	StorageType  string `json:"storage_type"`
	StoragePath  string `json:"storage_path"`
	BackupPath   string `json:"backup_path"`
	LogDir       string `json:"log_dir"`
	LogLevel     string `json:"log_level"`
	Trace        bool   `json:"trace"`
	RetainRounds int    `json:"retain_rounds"`
	Seed         int64  `json:"seed"`
}

// LoadConfigFromFile reads a NodeConfig from a JSON file and applies defaults.
func LoadConfigFromFile(filename string) (*NodeConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	var config NodeConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("could not unmarshal json: %w", err)
	}
	config.NetworkConfig.ApplyDefaults()
	return &config, nil
}

func (c *NetworkConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.BasePort == 0 {
		c.BasePort = DefaultBasePort
	}
	if c.ReadyPollInterval <= 0 {
		c.ReadyPollInterval = Duration(DefaultReadyPollInterval)
	}
	if c.WireFormat == "" {
		c.WireFormat = WireFormatJSON
	}
}

// Validate checks the network-wide parameters. N > 2F is assumed by the
// protocol but deliberately not rejected here.
func (c *NetworkConfig) Validate() error {
	if c.NumNodes <= 0 {
		return fmt.Errorf("%w: num_nodes=%d", ErrInvalidNetwork, c.NumNodes)
	}
	if c.NumFaulty < 0 || c.NumFaulty >= c.NumNodes {
		return fmt.Errorf("%w: num_faulty=%d with num_nodes=%d", ErrInvalidNetwork, c.NumFaulty, c.NumNodes)
	}
	if c.BasePort < 0 || c.BasePort+c.NumNodes > 65535 {
		return fmt.Errorf("%w: base_port=%d", ErrInvalidNetwork, c.BasePort)
	}
	if c.WireFormat != WireFormatJSON && c.WireFormat != WireFormatProto {
		return fmt.Errorf("%w: wire_format=%q", ErrInvalidNetwork, c.WireFormat)
	}
	return nil
}

// Tolerates reports whether N > 2F holds.
func (c *NetworkConfig) Tolerates() bool {
	return c.NumNodes > 2*c.NumFaulty
}

func (c *NodeConfig) Validate() error {
	if err := c.NetworkConfig.Validate(); err != nil {
		return err
	}
	if c.ID < 0 || c.ID >= c.NumNodes {
		return fmt.Errorf("%w: id=%d num_nodes=%d", ErrInvalidNodeID, c.ID, c.NumNodes)
	}
	if !c.Faulty && c.InitialValue != 0 && c.InitialValue != 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidValue, c.InitialValue)
	}
	return nil
}

// PeerAddress derives the host:port a node index listens on.
func (c *NetworkConfig) PeerAddress(index int) string {
	return fmt.Sprintf("%s:%d", c.Host, c.BasePort+index)
}

// PeerURL is PeerAddress with an http scheme.
func (c *NetworkConfig) PeerURL(index int) string {
	return "http://" + c.PeerAddress(index)
}

func (c *NetworkConfig) PollInterval() time.Duration {
	return time.Duration(c.ReadyPollInterval)
}
