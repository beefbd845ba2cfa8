// Package config loads and validates the relay core's configuration (spec
// §6): protocol behaviour switches, the blockchain and datastore adapter
// lists, and the confirmation tracker's polling parameters. Structured the
// way the teacher lays out its own config container
// (internal/app/config.go), adapted from JSON to the yaml.v3 tags this
// deployment format uses.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level, fully-parsed configuration document.
type Config struct {
	Protocol      ProtocolConfig      `yaml:"protocol"`
	Blockchains   []BlockchainConfig  `yaml:"blockchains"`
	Datastores    []DatastoreConfig   `yaml:"datastores"`
	Confirmation  ConfirmationConfig  `yaml:"confirmation"`
}

// ProtocolConfig holds the tx/rx behaviour switches (spec §6).
type ProtocolConfig struct {
	TxVerifyReference    bool   `yaml:"tx.verifyReference"`
	TxTestMessagesOnly   bool   `yaml:"tx.testMessagesOnly"`
	RxVerifyReference    bool   `yaml:"rx.verifyReference"`
	RxVerifyOriginator   bool   `yaml:"rx.verifyOriginator"`
	AuthenticationStrict bool   `yaml:"authentication.strict"`
	EncryptionPSK        string `yaml:"encryption.psk"` // hex
}

// BlockRetrievalConfig controls one blockchain adapter's block-crawling
// window (spec §6).
type BlockRetrievalConfig struct {
	Interval   time.Duration `yaml:"interval"`
	Start      uint64        `yaml:"start"`
	End        uint64        `yaml:"end"`
	Restart    bool          `yaml:"restart"`
	MaxRetries int           `yaml:"maxRetries"`
}

// RPCConfig describes how to reach a blockchain node.
type RPCConfig struct {
	Protocol string        `yaml:"protocol"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Path     string        `yaml:"path"`
	Timeout  time.Duration `yaml:"timeout"`
}

// BlockchainConfig is one entry in the blockchains array (spec §6).
type BlockchainConfig struct {
	Name                 string               `yaml:"name"`
	Module               string               `yaml:"module"`
	Active               bool                 `yaml:"active"`
	Testnet              bool                 `yaml:"testnet,omitempty"`
	BlockRetrieval       BlockRetrievalConfig `yaml:"blockRetrieval"`
	TransactionBatchSize int                  `yaml:"transactionBatchSize"`
	TransactionFee       string               `yaml:"transactionFee,omitempty"`
	TransactionValue     string               `yaml:"transactionValue,omitempty"`
	RPC                  RPCConfig            `yaml:"rpc"`
	Username             string               `yaml:"username,omitempty"`
	Password             string               `yaml:"password,omitempty"`
}

// DatastoreConfig is one entry in the datastores array (spec §6).
type DatastoreConfig struct {
	Name          string   `yaml:"name"`
	Module        string   `yaml:"module"`
	Active        bool     `yaml:"active"`
	Primary       bool     `yaml:"primary"`
	RxStoreEvent  []string `yaml:"rxStoreEvent"`
	TxStoreEvent  []string `yaml:"txStoreEvent"`
	DBHost        string   `yaml:"dbHost,omitempty"`
	DBPort        int      `yaml:"dbPort,omitempty"`
	DBProtocol    string   `yaml:"dbProtocol,omitempty"`
	Database      string   `yaml:"database,omitempty"`
	Directory     string   `yaml:"directory,omitempty"`
	Username      string   `yaml:"username,omitempty"`
	Password      string   `yaml:"password,omitempty"`
}

// ConfirmationConfig controls the block-depth confirmation tracker
// (spec §4.8, §6).
type ConfirmationConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Interval        time.Duration `yaml:"interval"`
	MaxBlockDepth   uint64        `yaml:"maxBlockDepth"`
	UpdateEachBlock bool          `yaml:"updateEachBlock"`
}

// recognisedStoreEvents is the closed enum of datastore subscription events
// (spec §4.10, §6).
var recognisedStoreEvents = map[string]bool{
	"messageProcessed":  true,
	"messageUpdated":    true,
	"messageDecoded":    true,
	"messageSent":       true,
	"referenceSkipped":  true,
	"metadataVerified":  true,
	"originatorUpdated": true,
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural invariants that are not expressible in the
// YAML schema alone: at most one primary datastore, known store events,
// and unique blockchain/datastore names.
func (c *Config) Validate() error {
	seenBlockchains := make(map[string]bool, len(c.Blockchains))
	for _, bc := range c.Blockchains {
		if seenBlockchains[bc.Name] {
			return fmt.Errorf("duplicate blockchain name %q", bc.Name)
		}
		seenBlockchains[bc.Name] = true
	}

	primaryCount := 0
	seenDatastores := make(map[string]bool, len(c.Datastores))
	for _, ds := range c.Datastores {
		if seenDatastores[ds.Name] {
			return fmt.Errorf("duplicate datastore name %q", ds.Name)
		}
		seenDatastores[ds.Name] = true

		if ds.Primary {
			primaryCount++
		}
		for _, evt := range ds.RxStoreEvent {
			if !recognisedStoreEvents[evt] {
				return fmt.Errorf("datastore %q: unrecognised rxStoreEvent %q", ds.Name, evt)
			}
		}
		for _, evt := range ds.TxStoreEvent {
			if !recognisedStoreEvents[evt] {
				return fmt.Errorf("datastore %q: unrecognised txStoreEvent %q", ds.Name, evt)
			}
		}
	}
	if primaryCount > 1 {
		return fmt.Errorf("at most one datastore may be primary, found %d", primaryCount)
	}
	return nil
}

// PrimaryDatastore returns the configured primary datastore, or nil if none
// is configured (spec §4.10: "a single datastore authoritative for reads").
func (c *Config) PrimaryDatastore() *DatastoreConfig {
	for i := range c.Datastores {
		if c.Datastores[i].Primary {
			return &c.Datastores[i]
		}
	}
	return nil
}
