// Package config loads simulation-wide parameters from YAML, with
// spec-mandated defaults applied in Go (SPEC_FULL.md §1.3, §3.11).
//
// The teacher has no config layer of its own (its tunables are literal
// constants); this package follows the pack's yaml.v3-backed runtime
// config shape instead, named constants with doc comments standing in
// for the teacher's `neighborHoldTime = 15`-style declarations.
package config

import (
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Defaults, per spec.md §6's bit-level constants and §4.5/§4.6's
// protocol timings.
const (
	DefaultTransmissionSpeed    = 1.0
	DefaultInitialNoise         = 0.5
	DefaultAssignLogicAddresses = true
	DefaultACKTimeout           = 200
	DefaultRetransmissions      = 3
	DefaultRTTConstantK         = 5
	DefaultPropagationDelay     = 10
)

// Config holds the tunable simulation parameters every scenario needs.
type Config struct {
	// TransmissionSpeed is a transmission speed in length units per
	// simulated time unit. No other package reads it: every NetworkNode
	// takes its speed as a NewNetworkNode argument.
	TransmissionSpeed float64 `yaml:"transmission_speed"`
	// InitialNoise is an initial node-graph edge noise weight; Load
	// rejects values outside [0, 2]. The master does not read it: edge
	// noise is seeded from master.InitOptions.InitialNoise.
	InitialNoise float64 `yaml:"initial_noise"`
	// AssignLogicAddresses says whether logic addresses are assigned by
	// preorder DFS on initialization. The master does not read it: that
	// choice comes from master.InitOptions.AssignLogicAddresses.
	AssignLogicAddresses bool `yaml:"assign_logic_addresses"`
	// ACKTimeout is how long TransmitWithAck waits for a matching Ack
	// before retransmitting, in simulated time units.
	ACKTimeout int `yaml:"ack_timeout"`
	// Retransmissions is how many times TransmitWithAck resends before
	// giving up.
	Retransmissions int `yaml:"retransmissions"`
	// RTTConstantK scales the master's per-hop transmission-delay
	// estimate into an answer-wait timeout.
	RTTConstantK int `yaml:"rtt_constant_k"`
	// DefaultPropagationDelay is a bus propagation delay. No other
	// package reads it: every Bus takes its delay as a NewBus argument.
	DefaultPropagationDelay int `yaml:"default_propagation_delay"`
}

// Default returns the spec-mandated defaults.
func Default() *Config {
	return &Config{
		TransmissionSpeed:       DefaultTransmissionSpeed,
		InitialNoise:            DefaultInitialNoise,
		AssignLogicAddresses:    DefaultAssignLogicAddresses,
		ACKTimeout:              DefaultACKTimeout,
		Retransmissions:         DefaultRetransmissions,
		RTTConstantK:            DefaultRTTConstantK,
		DefaultPropagationDelay: DefaultPropagationDelay,
	}
}

// ErrInvalidNoise is returned by Load when initial_noise falls outside
// [0, 2].
var ErrInvalidNoise = errors.New("config: initial_noise must be in [0, 2]")

// Load reads a YAML document from r into a copy of Default(), so any
// field the document omits keeps its spec-mandated default.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "config: decoding YAML")
	}

	if cfg.InitialNoise < 0 || cfg.InitialNoise > 2 {
		return nil, errors.Wrapf(ErrInvalidNoise, "got %v", cfg.InitialNoise)
	}

	return cfg, nil
}
