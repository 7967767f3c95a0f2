package pwmask

import (
	"crypto/ecdh"
	"fmt"
	"math/big"

	"github.com/luxfi/ftsa/pkg/aead"
	"github.com/luxfi/ftsa/pkg/bignum"
	"github.com/luxfi/ftsa/pkg/field"
	"github.com/luxfi/ftsa/pkg/ftsaerr"
	"github.com/luxfi/ftsa/pkg/kas"
	"github.com/luxfi/ftsa/pkg/party"
	"github.com/luxfi/ftsa/pkg/prg"
	"github.com/luxfi/ftsa/pkg/shamir"
)

// Client is one pwmask participant's long-lived local state across the
// four rounds of a run (spec.md §6). Its methods mirror
// original_source/ftsa/protocols/ccsftsa17/client.py method-for-method.
type Client struct {
	ID     party.ID
	Config *Config
	Step   uint64

	kaMask    *kas.KeyPair // ephemeral keypair for the pairwise masking key
	kaChannel *kas.KeyPair // ephemeral keypair for the AEAD channel

	ChannelKeys map[party.ID][]byte          // AES-128-GCM key per peer
	MaskPeerPks map[party.ID]*ecdh.PublicKey // alldhpks: every registered peer's masking public key

	U1 party.Set // registered peers seen by advertise_keys/share_keys
	U2 party.Set // peers whose share_keys message reached this client (includes self)

	MaskKey []*big.Int // this round's pairwise masking-key accumulator

	eshares map[party.ID]*aead.Message // peers' share_keys envelopes, decrypted lazily in Unmasking

	MaskShares map[party.ID]shamir.Share // bshares: shares of every peer's mask seed this client holds
	KeyShares  map[party.ID]shamir.Share // keyshares: shares of every peer's DH key this client holds

	X []*big.Int // the current round's input vector
	b *big.Int   // this round's own blinding mask seed
}

// NewClient creates a fresh client identity for the given Config.
func NewClient(id party.ID, cfg *Config) *Client {
	return &Client{
		ID:          id,
		Config:      cfg,
		ChannelKeys: make(map[party.ID][]byte),
		MaskPeerPks: make(map[party.ID]*ecdh.PublicKey),
		U1:          party.NewSet(id),
		MaskShares:  make(map[party.ID]shamir.Share),
		KeyShares:   make(map[party.ID]shamir.Share),
	}
}

// NewFLStep advances to a new round, clearing per-round masking state and
// installing a fresh input vector.
func (c *Client) NewFLStep(x []*big.Int) {
	c.Step++
	c.U2 = nil
	c.MaskKey = zeroVector(c.Config.Dimension)
	c.eshares = nil
	c.b = nil
	c.X = x
}

// AdvertiseKeys generates this client's two ephemeral ECDH keypairs and
// returns its identity and public keys for broadcast (spec.md §6's
// advertise_keys).
func (c *Client) AdvertiseKeys() (party.ID, *ecdh.PublicKey, *ecdh.PublicKey, error) {
	maskPair, err := kas.Generate()
	if err != nil {
		return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "advertise_keys", err)
	}
	chPair, err := kas.Generate()
	if err != nil {
		return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "advertise_keys", err)
	}
	c.kaMask = maskPair
	c.kaChannel = chPair
	return c.ID, maskPair.Public, chPair.Public, nil
}

// ShareKeys accepts every registered peer's public keys, derives the
// pairwise channel keys, samples this round's blinding seed, Shamir-shares
// both the seed and this client's own DH masking scalar, and returns each
// peer's encrypted share pair (spec.md §6's share_keys).
func (c *Client) ShareKeys(pksMask, pksChannel map[party.ID]*ecdh.PublicKey) (party.ID, map[party.ID]*aead.Message, error) {
	if len(pksMask) != len(pksChannel) {
		return 0, nil, ftsaerr.New(ftsaerr.InvalidArgument, "share_keys", "mismatched public key sets")
	}
	if len(pksChannel) < c.Config.Threshold {
		return 0, nil, ftsaerr.NotMet("share_keys", len(pksChannel), c.Config.Threshold)
	}

	for vuser, chPk := range pksChannel {
		if vuser != c.ID {
			chKey, err := kas.Agree(c.kaChannel.Private, chPk, chanKeyBits)
			if err != nil {
				return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "share_keys", err)
			}
			c.ChannelKeys[vuser] = aead.Key(chKey)
		}
		c.U1[vuser] = struct{}{}
	}
	c.MaskPeerPks = pksMask

	seed, err := bignum.RandomBits(prg.SeedBits)
	if err != nil {
		return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "share_keys", err)
	}
	c.b = seed

	// Share indices must match position-for-position between bShares and
	// kShares below, so both draw from the one fixed ordering.
	indices := idsToU(c.U1.Slice())

	seedMod, err := shamir.ModulusForSeed()
	if err != nil {
		return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "share_keys", err)
	}
	bShares, err := shamir.Share(field.New(seed, seedMod), c.Config.Threshold, indices, seedMod)
	if err != nil {
		return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "share_keys", err)
	}

	keyMod, err := field.ModulusFor(c.Config.KeySize)
	if err != nil {
		return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "share_keys", err)
	}
	kShares, err := shamir.Share(field.New(c.kaMask.PrivateScalar(), keyMod), c.Config.Threshold, indices, keyMod)
	if err != nil {
		return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "share_keys", err)
	}

	out := make(map[party.ID]*aead.Message, len(bShares)-1)
	for i, bs := range bShares {
		// Share and ShareKeys both draw indices from the same idsToU
		// slice, so bShares[i] and kShares[i] always share an index.
		ks := kShares[i]
		vuser := party.ID(bs.Index.Int().Uint64())
		if vuser == c.ID {
			c.MaskShares[c.ID] = bs
			c.KeyShares[c.ID] = ks
			continue
		}
		payload := aead.SharePayload{
			U:         uint16(c.ID),
			V:         uint16(vuser),
			KeyShare:  bignum.EncodeSigned(ks.Value.Int()),
			SeedShare: bignum.EncodeSigned(bs.Value.Int()),
		}
		msg, err := aead.Seal(c.ChannelKeys[vuser], aead.EncodeSharePayload(payload), nil)
		if err != nil {
			return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "share_keys", err)
		}
		out[vuser] = msg
	}
	return c.ID, out, nil
}

// MaskedInputCollection derives this client's pairwise masking-key vector
// against every registered peer, masks X with that key plus the expanded
// blinding seed, and returns the masked input (spec.md §6's
// masked_input_collection).
func (c *Client) MaskedInputCollection(eshares map[party.ID]*aead.Message) (party.ID, []*big.Int, error) {
	if len(eshares)+1 < c.Config.Threshold {
		return 0, nil, ftsaerr.NotMet("masked_input_collection", len(eshares)+1, c.Config.Threshold)
	}
	c.U2 = party.NewSet(c.ID)
	for vuser := range eshares {
		c.U2[vuser] = struct{}{}
	}
	c.eshares = eshares

	for vuser, pk := range c.MaskPeerPks {
		if vuser == c.ID {
			continue
		}
		sv, err := kas.Agree(c.kaMask.Private, pk, chanKeyBits)
		if err != nil {
			return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "masked_input_collection", err)
		}
		term, err := prg.Expand(prg.MaskSeed(new(big.Int).SetBytes(sv)), c.Config.Dimension, c.Config.ElementBits)
		if err != nil {
			return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "masked_input_collection", err)
		}
		if vuser > c.ID {
			c.MaskKey = c.Config.subMod(c.MaskKey, term)
		} else {
			c.MaskKey = c.Config.addMod(c.MaskKey, term)
		}
	}

	bVec, err := prg.Expand(prg.MaskSeed(c.b), c.Config.Dimension, c.Config.ElementBits)
	if err != nil {
		return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "masked_input_collection", err)
	}
	mask := c.Config.addMod(c.MaskKey, bVec)
	y := c.Config.addMod(c.X, mask)
	return c.ID, y, nil
}

// Unmasking decrypts every peer's share_keys envelope, then for each peer
// known from masked_input_collection returns either its mask-seed share
// (if the server reports it alive) or its DH-key share (if dropped), so
// the server can reconstruct exactly the terms it is missing (spec.md §6's
// unmasking).
func (c *Client) Unmasking(aliveUsers party.IDSlice) (party.ID, map[party.ID]shamir.Share, map[party.ID]shamir.Share, error) {
	if len(aliveUsers) < c.Config.Threshold {
		return 0, nil, nil, ftsaerr.NotMet("unmasking", len(aliveUsers), c.Config.Threshold)
	}
	alive := party.NewSet(aliveUsers...)
	for _, v := range aliveUsers {
		if !c.U2.Contains(v) {
			return 0, nil, nil, ftsaerr.New(ftsaerr.ProtocolMisuse, "unmasking", fmt.Sprintf("alive user %d was never known from masked_input_collection", v))
		}
	}

	seedMod, err := shamir.ModulusForSeed()
	if err != nil {
		return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "unmasking", err)
	}
	keyMod, err := field.ModulusFor(c.Config.KeySize)
	if err != nil {
		return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "unmasking", err)
	}

	for vuser, msg := range c.eshares {
		key, ok := c.ChannelKeys[vuser]
		if !ok {
			return 0, nil, nil, ftsaerr.New(ftsaerr.ProtocolMisuse, "unmasking", fmt.Sprintf("no channel key for user %d", vuser))
		}
		plain, err := aead.Open(key, msg, nil)
		if err != nil {
			return 0, nil, nil, ftsaerr.Wrap(ftsaerr.AuthenticationFailure, "unmasking", err)
		}
		payload, err := aead.DecodeSharePayload(plain)
		if err != nil {
			return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "unmasking", err)
		}
		if payload.V != uint16(c.ID) || payload.U != uint16(vuser) {
			return 0, nil, nil, ftsaerr.New(ftsaerr.AuthenticationFailure, "unmasking", "invalid encrypted message addressing")
		}
		kVal, err := bignum.DecodeSigned(payload.KeyShare)
		if err != nil {
			return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "unmasking", err)
		}
		bVal, err := bignum.DecodeSigned(payload.SeedShare)
		if err != nil {
			return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "unmasking", err)
		}
		c.KeyShares[vuser] = shamir.Share{Index: field.FromUint64(uint64(c.ID), keyMod), Value: field.New(kVal, keyMod)}
		c.MaskShares[vuser] = shamir.Share{Index: field.FromUint64(uint64(c.ID), seedMod), Value: field.New(bVal, seedMod)}
	}

	outKey := make(map[party.ID]shamir.Share)
	outMask := make(map[party.ID]shamir.Share)
	for vuser := range c.U2 {
		if alive.Contains(vuser) {
			outMask[vuser] = c.MaskShares[vuser]
		} else {
			outKey[vuser] = c.KeyShares[vuser]
		}
	}
	return c.ID, outKey, outMask, nil
}

func idsToU(ids party.IDSlice) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}
