// Package simulate drives a full round-synchronous FTSA run in-process:
// one Server and n Clients exchanging the five setup/online round
// messages of protocols/tjl, for use by tests that exercise concrete
// end-to-end scenarios (spec.md §8).
//
// Grounded on the teacher's round-message marshaling idiom
// (_examples/luxfi-threshold/pkg/protocol/handler.go's cbor.Marshal of
// round content) for the one broadcast step that travels as an opaque
// blob in a real deployment: the public-key exchange of setup_register.
// The remaining rounds pass Go values directly between simulated parties,
// since a single in-process harness has no wire boundary to cross for
// them.
package simulate

import (
	"crypto/ecdh"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"

	"github.com/luxfi/ftsa/pkg/intshare"
	"github.com/luxfi/ftsa/pkg/kas"
	"github.com/luxfi/ftsa/pkg/party"
	"github.com/luxfi/ftsa/pkg/shamir"
	"github.com/luxfi/ftsa/protocols/tjl"
)

// pubKeyEnvelope is the cbor-marshaled form of one client's broadcast
// registration message: its identifier and the two raw uncompressed
// public keys it generated for this round.
type pubKeyEnvelope struct {
	User    uint16
	JLKey   []byte
	ChanKey []byte
}

func marshalPubKeys(user party.ID, jlPk, chPk *ecdh.PublicKey) ([]byte, error) {
	env := pubKeyEnvelope{User: uint16(user), JLKey: jlPk.Bytes(), ChanKey: chPk.Bytes()}
	return cbor.Marshal(env)
}

func unmarshalPubKeys(data []byte) (party.ID, *ecdh.PublicKey, *ecdh.PublicKey, error) {
	var env pubKeyEnvelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return 0, nil, nil, fmt.Errorf("simulate: %w", err)
	}
	jlPk, err := kas.ParsePublic(env.JLKey)
	if err != nil {
		return 0, nil, nil, err
	}
	chPk, err := kas.ParsePublic(env.ChanKey)
	if err != nil {
		return 0, nil, nil, err
	}
	return party.ID(env.User), jlPk, chPk, nil
}

// Harness owns one Server and every Client for a Scenario, and drives
// them through a full setup phase plus repeated online rounds.
type Harness struct {
	Scenario *tjl.Scenario
	Server   *tjl.Server
	Clients  map[party.ID]*tjl.Client
}

// New builds a harness with one client per Scenario.AllUsers().
func New(sc *tjl.Scenario) *Harness {
	h := &Harness{Scenario: sc, Server: tjl.NewServer(sc), Clients: make(map[party.ID]*tjl.Client)}
	for _, id := range sc.AllUsers() {
		h.Clients[id] = tjl.NewClient(id, sc)
	}
	return h
}

// RunSetup executes setup_register, setup_keysetup, and setup_keysetup2
// for every client against the server, per spec.md §4.12-4.13.
func (h *Harness) RunSetup() error {
	jlPks := make(map[party.ID]*ecdh.PublicKey)
	chPks := make(map[party.ID]*ecdh.PublicKey)
	for id, c := range h.Clients {
		_, jlPk, chPk, err := c.SetupRegister()
		if err != nil {
			return fmt.Errorf("simulate: setup_register(%d): %w", id, err)
		}
		data, err := marshalPubKeys(id, jlPk, chPk)
		if err != nil {
			return fmt.Errorf("simulate: setup_register(%d): %w", id, err)
		}
		gotID, gotJL, gotCh, err := unmarshalPubKeys(data)
		if err != nil || gotID != id {
			return fmt.Errorf("simulate: setup_register(%d): envelope round-trip failed: %w", id, err)
		}
		jlPks[id] = gotJL
		chPks[id] = gotCh
	}

	relayedCh, relayedJL, err := h.Server.SetupRegister(jlPks, chPks)
	if err != nil {
		return fmt.Errorf("simulate: server setup_register: %w", err)
	}

	allEshares := make(map[party.ID]map[party.ID]tjl.EncryptedShare)
	for id, c := range h.Clients {
		_, eshares, err := c.SetupKeysetup(relayedJL, relayedCh)
		if err != nil {
			return fmt.Errorf("simulate: setup_keysetup(%d): %w", id, err)
		}
		allEshares[id] = eshares
	}

	perRecipient, err := h.Server.SetupKeysetup(allEshares)
	if err != nil {
		return fmt.Errorf("simulate: server setup_keysetup: %w", err)
	}

	for id, c := range h.Clients {
		if err := c.SetupKeysetup2(perRecipient[id]); err != nil {
			return fmt.Errorf("simulate: setup_keysetup2(%d): %w", id, err)
		}
	}
	return nil
}

// RunOnlineRound starts a new FL step for every client with the given
// inputs, runs online_encrypt and online_construct with the given set of
// dropped-out (non-responding) clients, and returns the aggregated sum
// (spec.md §4.13, §8).
func (h *Harness) RunOnlineRound(inputs map[party.ID][]*big.Int, dropped party.Set) ([]*big.Int, error) {
	h.Server.NewFLStep()
	for id, c := range h.Clients {
		c.NewFLStep(inputs[id])
	}

	allEbshares := make(map[party.ID]map[party.ID]tjl.EncryptedShare)
	allY := make(map[party.ID][]*big.Int)
	allKeyShareHolders := make(map[party.ID]*tjl.Client)
	for id, c := range h.Clients {
		if dropped.Contains(id) {
			continue
		}
		_, eshares, y, err := c.OnlineEncrypt()
		if err != nil {
			return nil, fmt.Errorf("simulate: online_encrypt(%d): %w", id, err)
		}
		allEbshares[id] = eshares
		allY[id] = y
		allKeyShareHolders[id] = c
	}

	perRecipient, err := h.Server.OnlineEncrypt(allEbshares, allY)
	if err != nil {
		return nil, fmt.Errorf("simulate: server online_encrypt: %w", err)
	}

	allBshares := make(map[party.ID]map[party.ID]shamir.Share)
	var allYZero [][]intshare.Share
	for id, c := range allKeyShareHolders {
		_, bshares, yZero, err := c.OnlineConstruct(perRecipient[id])
		if err != nil {
			return nil, fmt.Errorf("simulate: online_construct(%d): %w", id, err)
		}
		allBshares[id] = bshares
		if yZero != nil {
			allYZero = append(allYZero, yZero)
		}
	}

	return h.Server.OnlineConstruct(allBshares, allYZero)
}
