// Package config holds node configuration and genesis handling.
// Configuration is read from a JSON file, then overlaid with CRITTERD_*
// environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID string            `json:"chain_id" env:"CRITTERD_CHAIN_ID"`
	Alloc   map[string]uint64 `json:"alloc"` // pubkey hex → initial balance
}

// TLSConfig points at the PEM material for mutual-TLS P2P connections.
// All paths empty means plain TCP.
type TLSConfig struct {
	CACert   string `json:"ca_cert" env:"CRITTERD_TLS_CA"`
	NodeCert string `json:"node_cert" env:"CRITTERD_TLS_CERT"`
	NodeKey  string `json:"node_key" env:"CRITTERD_TLS_KEY"`
}

// SeedPeer identifies a peer to dial at startup.
type SeedPeer struct {
	ID   string `json:"id"`
	Addr string `json:"addr"`
}

// Config holds all node configuration.
type Config struct {
	NodeID       string        `json:"node_id" env:"CRITTERD_NODE_ID"`
	DataDir      string        `json:"data_dir" env:"CRITTERD_DATA_DIR"`
	RPCPort      int           `json:"rpc_port" env:"CRITTERD_RPC_PORT"`
	RPCAuthToken string        `json:"rpc_auth_token" env:"CRITTERD_RPC_TOKEN"`
	P2PPort      int           `json:"p2p_port" env:"CRITTERD_P2P_PORT"`
	MaxBlockTxs  int           `json:"max_block_txs"` // max transactions per block; 0 → 500
	Validators   []string      `json:"validators"`    // authorised proposer pubkey hexes
	SeedPeers    []SeedPeer    `json:"seed_peers"`
	TLS          *TLSConfig    `json:"tls,omitempty"`
	Genesis      GenesisConfig `json:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:      "node0",
		DataDir:     "./data",
		RPCPort:     8545,
		P2PPort:     30303,
		MaxBlockTxs: 500,
		Genesis: GenesisConfig{
			ChainID: "critterchain-dev",
			Alloc:   map[string]uint64{},
		},
	}
}

// Load reads a JSON config file from path and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
