package simulate

import (
	"crypto/ecdh"
	"fmt"
	"math/big"

	"github.com/luxfi/ftsa/pkg/party"
	"github.com/luxfi/ftsa/pkg/shamir"
	"github.com/luxfi/ftsa/protocols/pwmask"
)

// PWMaskHarness owns one pwmask Server and every pwmask Client for a
// Config, and drives them through the four CCS'17 rounds (spec.md §6),
// mirroring Harness's role for protocols/tjl. It reuses Harness's
// marshalPubKeys/unmarshalPubKeys envelope helpers since pwmask's
// advertise_keys exchanges the same shape of message: one user id plus
// two raw ECDH public keys.
type PWMaskHarness struct {
	Config  *pwmask.Config
	Server  *pwmask.Server
	Clients map[party.ID]*pwmask.Client

	// pendingEshares holds each client's inbox of share_keys envelopes,
	// as dispatched by the server, for masked_input_collection to consume.
	pendingEshares map[party.ID]map[party.ID]pwmask.EncryptedShare
}

// NewPWMask builds a harness with one client per Config.AllUsers().
func NewPWMask(cfg *pwmask.Config) *PWMaskHarness {
	h := &PWMaskHarness{Config: cfg, Server: pwmask.NewServer(cfg), Clients: make(map[party.ID]*pwmask.Client)}
	for _, id := range cfg.AllUsers() {
		h.Clients[id] = pwmask.NewClient(id, cfg)
	}
	return h
}

// RunSetup executes advertise_keys and share_keys for every client against
// the server.
func (h *PWMaskHarness) RunSetup() error {
	maskPks := make(map[party.ID]*ecdh.PublicKey)
	chPks := make(map[party.ID]*ecdh.PublicKey)
	for id, c := range h.Clients {
		_, maskPk, chPk, err := c.AdvertiseKeys()
		if err != nil {
			return fmt.Errorf("simulate: pwmask advertise_keys(%d): %w", id, err)
		}
		data, err := marshalPubKeys(id, maskPk, chPk)
		if err != nil {
			return fmt.Errorf("simulate: pwmask advertise_keys(%d): %w", id, err)
		}
		gotID, gotMask, gotCh, err := unmarshalPubKeys(data)
		if err != nil || gotID != id {
			return fmt.Errorf("simulate: pwmask advertise_keys(%d): envelope round-trip failed: %w", id, err)
		}
		maskPks[id] = gotMask
		chPks[id] = gotCh
	}

	relayedCh, relayedMask, err := h.Server.AdvertiseKeys(maskPks, chPks)
	if err != nil {
		return fmt.Errorf("simulate: pwmask server advertise_keys: %w", err)
	}

	allEshares := make(map[party.ID]map[party.ID]pwmask.EncryptedShare)
	for id, c := range h.Clients {
		_, eshares, err := c.ShareKeys(relayedMask, relayedCh)
		if err != nil {
			return fmt.Errorf("simulate: pwmask share_keys(%d): %w", id, err)
		}
		allEshares[id] = eshares
	}

	perRecipient, err := h.Server.ShareKeys(allEshares)
	if err != nil {
		return fmt.Errorf("simulate: pwmask server share_keys: %w", err)
	}
	h.pendingEshares = perRecipient
	return nil
}

// PendingEshares returns the share_keys envelopes the server dispatched to
// recipient's inbox during RunSetup, for tests driving masked_input_collection
// or Unmasking by hand.
func (h *PWMaskHarness) PendingEshares(recipient party.ID) map[party.ID]pwmask.EncryptedShare {
	return h.pendingEshares[recipient]
}

// RunOnlineRound starts a new FL step for every client with the given
// inputs, runs masked_input_collection and unmasking with the given set of
// dropped-out (non-responding) clients, and returns the aggregated sum.
func (h *PWMaskHarness) RunOnlineRound(inputs map[party.ID][]*big.Int, dropped party.Set) ([]*big.Int, error) {
	h.Server.NewFLStep()
	for id, c := range h.Clients {
		c.NewFLStep(inputs[id])
	}

	allY := make(map[party.ID][]*big.Int)
	var participants []party.ID
	for id, c := range h.Clients {
		if dropped.Contains(id) {
			continue
		}
		_, y, err := c.MaskedInputCollection(h.pendingEshares[id])
		if err != nil {
			return nil, fmt.Errorf("simulate: pwmask masked_input_collection(%d): %w", id, err)
		}
		allY[id] = y
		participants = append(participants, id)
	}

	aliveUsers, err := h.Server.MaskedInputCollection(allY)
	if err != nil {
		return nil, fmt.Errorf("simulate: pwmask server masked_input_collection: %w", err)
	}

	allKeyShares := make(map[party.ID]map[party.ID]shamir.Share)
	allMaskShares := make(map[party.ID]map[party.ID]shamir.Share)
	for _, id := range participants {
		c := h.Clients[id]
		_, keyShares, maskShares, err := c.Unmasking(aliveUsers)
		if err != nil {
			return nil, fmt.Errorf("simulate: pwmask unmasking(%d): %w", id, err)
		}
		allKeyShares[id] = keyShares
		allMaskShares[id] = maskShares
	}

	return h.Server.Unmasking(allKeyShares, allMaskShares)
}
