// Package node wires every cache, queue, scheduler, listener and
// subscriber into one running process (§4.7), grounded on the teacher's
// internal/core/drand_daemon.go (NewDrandDaemon / init() wiring order) and
// internal/core/config.go (a Config value threaded through construction).
package node

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/ARPA-Network/randcast-node/common/retry"
	"github.com/ARPA-Network/randcast-node/core"
)

// RetryDescriptorConfig is the TOML shape of a retry.Descriptor (§9 design
// note); durations are given in milliseconds since BurntSushi/toml decodes
// plain integers directly into time.Duration's underlying int64.
type RetryDescriptorConfig struct {
	BaseMillis        int64   `toml:"base_millis"`
	Factor            float64 `toml:"factor"`
	MaxAttempts       int     `toml:"max_attempts"`
	MaxIntervalMillis int64   `toml:"max_interval_millis"`
	UseJitter         bool    `toml:"use_jitter"`
}

// Descriptor converts the TOML shape into a retry.Descriptor.
func (c RetryDescriptorConfig) Descriptor() retry.Descriptor {
	return retry.Descriptor{
		Base:        time.Duration(c.BaseMillis) * time.Millisecond,
		Factor:      c.Factor,
		MaxAttempts: c.MaxAttempts,
		MaxInterval: time.Duration(c.MaxIntervalMillis) * time.Millisecond,
		UseJitter:   c.UseJitter,
	}
}

// ContractsConfig names the contract addresses a ChainConfig's gateway
// talks to.
type ContractsConfig struct {
	Adapter      string `toml:"adapter"`
	Coordinator  string `toml:"coordinator"`
	Controller   string `toml:"controller"`
	NodeRegistry string `toml:"node_registry"`
}

// ChainConfig describes one chain this node runs listeners against — the
// main chain (DKG + randomness) or a relayed chain (randomness only) (§6,
// §4 of SPEC_FULL).
type ChainConfig struct {
	ID               uint32          `toml:"id"`
	ProviderEndpoint string          `toml:"provider_endpoint"`
	Contracts        ContractsConfig `toml:"contracts"`
}

// ListenerIntervalsConfig sets the poll cadence for every listener that
// isn't stream-driven (§4.3). All values are milliseconds.
type ListenerIntervalsConfig struct {
	NewRandomnessTaskMillis               int64 `toml:"new_randomness_task_millis"`
	ReadyToHandleRandomnessTaskMillis     int64 `toml:"ready_to_handle_randomness_task_millis"`
	RandomnessSignatureAggregationMillis int64 `toml:"randomness_signature_aggregation_millis"`
	PreGroupingMillis                     int64 `toml:"pre_grouping_millis"`
	PostCommitGroupingMillis              int64 `toml:"post_commit_grouping_millis"`
	PostGroupingMillis                    int64 `toml:"post_grouping_millis"`
}

func (c ListenerIntervalsConfig) millis(v int64, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Millisecond
}

// TimeLimitsConfig is §6's `time_limits` table.
type TimeLimitsConfig struct {
	DKGTimeoutDurationMillis           int64                 `toml:"dkg_timeout_duration_millis"`
	RandomnessTaskExclusiveWindowMillis int64                `toml:"randomness_task_exclusive_window_millis"`
	ContractTransactionRetryDescriptor RetryDescriptorConfig `toml:"contract_transaction_retry_descriptor"`
	ContractViewRetryDescriptor        RetryDescriptorConfig `toml:"contract_view_retry_descriptor"`
	DKGPollIntervalMillis              int64                 `toml:"dkg_poll_interval_millis"`
	DynamicShutdownCheckFrequencyMillis int64                `toml:"dynamic_shutdown_check_frequency_millis"`
}

// AccountConfig is this node's chain identity (§6 `account`).
type AccountConfig struct {
	Address              string `toml:"address"`
	DKGPublicKeyHex       string `toml:"dkg_public_key"`
	DKGPrivateKeyHex      string `toml:"dkg_private_key"`
	NodeRegistryAddress   string `toml:"node_registry_address"`
}

// Config is the decoded process surface of §6: account, three RPC
// endpoints, main chain plus relayed chains, listener cadence, and
// time_limits.
type Config struct {
	Account                   AccountConfig           `toml:"account"`
	NodeRPCEndpoint           string                  `toml:"node_rpc_endpoint"`
	NodeManagementRPCEndpoint string                  `toml:"node_management_rpc_endpoint"`
	NodeCommitterRPCEndpoint  string                  `toml:"node_committer_rpc_endpoint"`
	MetricsListenAddress      string                  `toml:"metrics_listen_address"`
	DataDir                   string                  `toml:"data_dir"`
	MainChain                 ChainConfig             `toml:"main_chain"`
	RelayedChains             []ChainConfig           `toml:"relayed_chains"`
	Listeners                 ListenerIntervalsConfig `toml:"listeners"`
	TimeLimits                TimeLimitsConfig        `toml:"time_limits"`
}

// LoadConfig decodes path as TOML into a Config (§6 "a configuration file
// enumerating {...}").
func LoadConfig(path string) (*Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the fatal-at-startup invariants of §7's Config/Crypto
// error category.
func (c *Config) Validate() error {
	if c.Account.Address == "" {
		return fmt.Errorf("%w: account.address is required", core.ErrLackOfAccount)
	}
	if c.MainChain.ID == 0 {
		return fmt.Errorf("%w: main_chain.id must be non-zero", core.ErrInvalidChainID)
	}
	if c.MainChain.ProviderEndpoint == "" {
		return fmt.Errorf("%w: main_chain.provider_endpoint is required", core.ErrInvalidChainID)
	}
	seen := map[uint32]bool{c.MainChain.ID: true}
	for _, rc := range c.RelayedChains {
		if rc.ID == 0 || seen[rc.ID] {
			return fmt.Errorf("%w: relayed_chains entries must have unique, non-zero ids", core.ErrInvalidChainID)
		}
		seen[rc.ID] = true
	}
	return nil
}

// SelfAddress parses Account.Address as a core.Address.
func (c *Config) SelfAddress() (core.Address, error) {
	var a core.Address
	if err := a.UnmarshalText([]byte(c.Account.Address)); err != nil {
		return core.Address{}, fmt.Errorf("parsing account.address: %w", err)
	}
	return a, nil
}

// NodeRegistryAddress parses Account.NodeRegistryAddress as a core.Address.
func (c *Config) NodeRegistryAddress() (core.Address, error) {
	var a core.Address
	if err := a.UnmarshalText([]byte(c.Account.NodeRegistryAddress)); err != nil {
		return core.Address{}, fmt.Errorf("parsing account.node_registry_address: %w", err)
	}
	return a, nil
}

// DKGPublicKey decodes Account.DKGPublicKeyHex.
func (c *Config) DKGPublicKey() ([]byte, error) {
	b, err := hex.DecodeString(c.Account.DKGPublicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding account.dkg_public_key: %w", err)
	}
	return b, nil
}

// AllChains returns the main chain followed by every relayed chain, the
// fixed order the node registers per-chain listeners in (§4.7).
func (c *Config) AllChains() []ChainConfig {
	out := make([]ChainConfig, 0, 1+len(c.RelayedChains))
	out = append(out, c.MainChain)
	out = append(out, c.RelayedChains...)
	return out
}

// dkgPhasePollInterval is the cadence InGroupingSubscriber's DKG driver
// polls block height at while waiting for a phase deadline.
func (c *Config) dkgPhasePollInterval() time.Duration {
	if c.TimeLimits.DKGPollIntervalMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.TimeLimits.DKGPollIntervalMillis) * time.Millisecond
}

// dynamicShutdownCheckFrequency is the cadence the dynamic scheduler polls
// a running DKG round's shutdown predicate at.
func (c *Config) dynamicShutdownCheckFrequency() time.Duration {
	if c.TimeLimits.DynamicShutdownCheckFrequencyMillis <= 0 {
		return time.Second
	}
	return time.Duration(c.TimeLimits.DynamicShutdownCheckFrequencyMillis) * time.Millisecond
}
