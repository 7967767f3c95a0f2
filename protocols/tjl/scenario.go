// Package tjl implements the FTSA round-synchronous secure aggregation
// protocol: threshold Joye-Libert ciphertexts combined with Shamir-shared
// PRG mask seeds to tolerate client dropout between the encrypt and
// construct rounds (spec.md §4.12-4.13).
//
// Grounded on original_source/ftsa/protocols/ourftsa22/client.py and
// server.py, whose five round methods (setup_register, setup_keysetup,
// setup_keysetup2, online_encrypt, online_construct) this package's Client
// and Server types implement directly. The round-struct idiom (one method
// per protocol step, state accumulated on a long-lived party object) is
// grounded on the teacher's own round-based config pattern; see
// _examples/luxfi-threshold/protocols/lss/keygen/round1.go and
// protocols/lss/config/config.go.
package tjl

import (
	"fmt"

	"github.com/luxfi/ftsa/pkg/intshare"
	"github.com/luxfi/ftsa/pkg/jl"
	"github.com/luxfi/ftsa/pkg/party"
	"github.com/luxfi/ftsa/pkg/prg"
	"github.com/luxfi/ftsa/pkg/vector"
)

// Scenario bundles the scheme-wide, immutable parameters every client and
// the server agree on before a run starts (spec.md §3's Scenario type).
// It mirrors the teacher's Config: constructed once by NewScenario, never
// mutated, and shared by reference.
type Scenario struct {
	Dimension int // d: length of each client's input vector
	ValueSize int // v: bits per input element
	KeySize   int // λ: TJL key size in bits
	NClients  int // n: number of registered clients
	Threshold int // t: reconstruction threshold
	Sigma     int // statistical security margin for ISS

	PP        *jl.PublicParam
	VE        *vector.Scheme
	ISSParams intshare.Params

	// Dropout optionally names clients to treat as unresponsive, carried
	// over from the reference implementation's Scenario. NewScenario
	// leaves it empty, and neither the protocol core nor internal/simulate
	// reads it: simulate.Harness.RunOnlineRound takes its dropped set as an
	// argument.
	Dropout party.Set
}

// NewScenario derives a Scenario's public parameters from its scalar
// configuration (spec.md §4.10's Setup, §4.9's VE sizing, §4.8's ISS
// sizing). sigma is the ISS statistical security parameter (128 in the
// reference).
func NewScenario(dimension, valueSize, keySize, nClients, threshold, sigma int) (*Scenario, error) {
	if threshold < 1 || threshold > nClients {
		return nil, fmt.Errorf("tjl: threshold %d out of range for %d clients", threshold, nClients)
	}
	pp, err := jl.Setup(keySize)
	if err != nil {
		return nil, fmt.Errorf("tjl: %w", err)
	}
	ve, err := vector.NewScheme(pp.Bits, nClients, valueSize, dimension)
	if err != nil {
		return nil, fmt.Errorf("tjl: %w", err)
	}
	issParams := intshare.NewParams(nClients, keySize, sigma)

	return &Scenario{
		Dimension: dimension,
		ValueSize: valueSize,
		KeySize:   keySize,
		NClients:  nClients,
		Threshold: threshold,
		Sigma:     sigma,
		PP:        pp,
		VE:        ve,
		ISSParams: issParams,
	}, nil
}

// AllUsers returns the canonical user identifiers 1..NClients.
func (s *Scenario) AllUsers() []party.ID {
	out := make([]party.ID, s.NClients)
	for i := range out {
		out[i] = party.ID(i + 1)
	}
	return out
}

// MaskSeedBits is the fixed PRG seed width spec.md §4.4 mandates.
const MaskSeedBits = prg.SeedBits
