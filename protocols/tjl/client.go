package tjl

import (
	"crypto/ecdh"
	"fmt"
	"math/big"

	"github.com/luxfi/ftsa/pkg/aead"
	"github.com/luxfi/ftsa/pkg/bignum"
	"github.com/luxfi/ftsa/pkg/field"
	"github.com/luxfi/ftsa/pkg/ftsaerr"
	"github.com/luxfi/ftsa/pkg/intshare"
	"github.com/luxfi/ftsa/pkg/jl"
	"github.com/luxfi/ftsa/pkg/kas"
	"github.com/luxfi/ftsa/pkg/party"
	"github.com/luxfi/ftsa/pkg/prg"
	"github.com/luxfi/ftsa/pkg/shamir"
)

// chanKeyBits is the bit width requested from ECDH key derivation for
// pairwise channel keys (spec.md §4.6's KDF, sized per the reference's
// KAS.agree default of 256 bits, then truncated by pkg/aead.Key to the
// AES-128-GCM key size).
const chanKeyBits = 256

// Client is one FTSA participant's long-lived local state across the
// setup and online rounds (spec.md §4.12). Its round methods mirror
// original_source/ftsa/protocols/ourftsa22/client.py method-for-method.
type Client struct {
	ID       party.ID
	Scenario *Scenario
	Step     uint64

	kaJL      *kas.KeyPair // ephemeral keypair for the TJL key agreement
	kaChannel *kas.KeyPair // ephemeral keypair for the pairwise channel

	ChannelKeys map[party.ID][]byte // AES-128-GCM key per peer

	U      party.Set // registered users, including self
	UAlive party.Set // users seen as alive in the current online round

	Key       *big.Int                    // this user's TJL secret key sk_u
	KeyShares map[party.ID]intshare.Share // shares of others' keys held by this user
	BShares   map[party.ID]shamir.Share   // shares of others' mask seeds held by this user

	X []*big.Int // the current round's input vector
}

// NewClient creates a fresh client identity for the given Scenario. id
// must be in [1, Scenario.NClients].
func NewClient(id party.ID, sc *Scenario) *Client {
	return &Client{
		ID:          id,
		Scenario:    sc,
		ChannelKeys: make(map[party.ID][]byte),
		U:           party.NewSet(id),
		KeyShares:   make(map[party.ID]intshare.Share),
		BShares:     make(map[party.ID]shamir.Share),
	}
}

// NewFLStep advances to a new round: increments the step counter, clears
// the current round's alive set and mask-seed shares, and installs x as
// the round's input vector.
func (c *Client) NewFLStep(x []*big.Int) {
	c.Step++
	c.UAlive = nil
	c.BShares = make(map[party.ID]shamir.Share)
	c.X = x
}

// SetupRegister generates the client's two ephemeral ECDH keypairs
// (spec.md §4.6) and returns its identity and public keys for broadcast
// (spec.md §4.12's setup_register).
func (c *Client) SetupRegister() (party.ID, *ecdh.PublicKey, *ecdh.PublicKey, error) {
	jlPair, err := kas.Generate()
	if err != nil {
		return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "setup_register", err)
	}
	chPair, err := kas.Generate()
	if err != nil {
		return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "setup_register", err)
	}
	c.kaJL = jlPair
	c.kaChannel = chPair
	return c.ID, jlPair.Public, chPair.Public, nil
}

// SetupKeysetup accepts every registered user's public keys, derives the
// pairwise channel keys and this client's TJL secret key, shares that key
// via integer secret sharing, and returns each peer's encrypted share
// (spec.md §4.12's setup_keysetup).
func (c *Client) SetupKeysetup(pksJL, pksChannel map[party.ID]*ecdh.PublicKey) (party.ID, map[party.ID]*aead.Message, error) {
	if len(pksJL) != len(pksChannel) {
		return 0, nil, ftsaerr.New(ftsaerr.InvalidArgument, "setup_keysetup", "mismatched public key sets")
	}
	if len(pksChannel) < c.Scenario.Threshold {
		return 0, nil, ftsaerr.NotMet("setup_keysetup", len(pksChannel), c.Scenario.Threshold)
	}

	c.Key = big.NewInt(0)
	for vuser, chPk := range pksChannel {
		if vuser == c.ID {
			continue
		}
		jlPk, ok := pksJL[vuser]
		if !ok {
			return 0, nil, ftsaerr.New(ftsaerr.InvalidArgument, "setup_keysetup", fmt.Sprintf("missing JL public key for user %d", vuser))
		}
		c.U[vuser] = struct{}{}

		chKey, err := kas.Agree(c.kaChannel.Private, chPk, chanKeyBits)
		if err != nil {
			return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "setup_keysetup", err)
		}
		c.ChannelKeys[vuser] = aead.Key(chKey)

		sv, err := kas.Agree(c.kaJL.Private, jlPk, c.Scenario.KeySize)
		if err != nil {
			return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "setup_keysetup", err)
		}
		svInt := new(big.Int).SetBytes(sv)
		if vuser > c.ID {
			c.Key.Sub(c.Key, svInt)
		} else {
			c.Key.Add(c.Key, svInt)
		}
	}

	shares, err := jl.SKShare(c.Key, c.Scenario.Threshold, idsToU(c.U.Slice()), c.Scenario.ISSParams)
	if err != nil {
		return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "setup_keysetup", err)
	}

	out := make(map[party.ID]*aead.Message, len(shares)-1)
	for _, s := range shares {
		vuser := party.ID(s.Index)
		if vuser == c.ID {
			c.KeyShares[c.ID] = s
			continue
		}
		payload := aead.SharePayload{
			U:        uint16(c.ID),
			V:        uint16(vuser),
			KeyShare: bignum.EncodeSigned(s.Value),
		}
		msg, err := aead.Seal(c.ChannelKeys[vuser], aead.EncodeSharePayload(payload), nil)
		if err != nil {
			return 0, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "setup_keysetup", err)
		}
		out[vuser] = msg
	}
	return c.ID, out, nil
}

// SetupKeysetup2 decrypts and stores each peer's share of its own TJL key
// (spec.md §4.12's setup_keysetup2).
func (c *Client) SetupKeysetup2(eshares map[party.ID]*aead.Message) error {
	if len(eshares)+1 < c.Scenario.Threshold {
		return ftsaerr.NotMet("setup_keysetup2", len(eshares)+1, c.Scenario.Threshold)
	}
	for vuser, msg := range eshares {
		key, ok := c.ChannelKeys[vuser]
		if !ok {
			return ftsaerr.New(ftsaerr.ProtocolMisuse, "setup_keysetup2", fmt.Sprintf("no channel key for user %d", vuser))
		}
		plain, err := aead.Open(key, msg, nil)
		if err != nil {
			return ftsaerr.Wrap(ftsaerr.AuthenticationFailure, "setup_keysetup2", err)
		}
		payload, err := aead.DecodeSharePayload(plain)
		if err != nil {
			return ftsaerr.Wrap(ftsaerr.InvalidArgument, "setup_keysetup2", err)
		}
		if payload.V != uint16(c.ID) || payload.U != uint16(vuser) {
			return ftsaerr.New(ftsaerr.AuthenticationFailure, "setup_keysetup2", "invalid encrypted message addressing")
		}
		value, err := bignum.DecodeSigned(payload.KeyShare)
		if err != nil {
			return ftsaerr.Wrap(ftsaerr.InvalidArgument, "setup_keysetup2", err)
		}
		c.KeyShares[vuser] = intshare.Share{Index: uint64(c.ID), Value: value}
	}
	return nil
}

// OnlineEncrypt draws a fresh mask seed, protects X+B under the TJL key,
// Shamir-shares the seed among all registered users, and returns the
// protected input plus each peer's encrypted seed share (spec.md §4.13's
// online_encrypt).
func (c *Client) OnlineEncrypt() (party.ID, map[party.ID]*aead.Message, []*big.Int, error) {
	seed, err := bignum.RandomBits(MaskSeedBits)
	if err != nil {
		return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_encrypt", err)
	}
	mask := prg.MaskSeed(seed)
	b, err := prg.Expand(mask, c.Scenario.VE.VectorSize, c.Scenario.VE.ElementBits)
	if err != nil {
		return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_encrypt", err)
	}

	elemMod := new(big.Int).Lsh(big.NewInt(1), uint(c.Scenario.VE.ElementBits))
	xPlusB := make([]*big.Int, len(c.X))
	for i, x := range c.X {
		v := new(big.Int).Add(x, b[i])
		xPlusB[i] = v.Mod(v, elemMod)
	}

	y, err := jl.ProtectVector(c.Scenario.PP, c.Key, c.Step, xPlusB, c.Scenario.VE)
	if err != nil {
		return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_encrypt", err)
	}

	fieldMod, err := shamir.ModulusForSeed()
	if err != nil {
		return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_encrypt", err)
	}
	shares, err := shamir.Share(field.New(seed, fieldMod), c.Scenario.Threshold, idsToU(c.U.Slice()), fieldMod)
	if err != nil {
		return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_encrypt", err)
	}

	out := make(map[party.ID]*aead.Message, len(shares)-1)
	for _, s := range shares {
		vuser := party.ID(s.Index.Int().Uint64())
		if vuser == c.ID {
			c.BShares[c.ID] = s
			continue
		}
		payload := aead.SharePayload{
			U:         uint16(c.ID),
			V:         uint16(vuser),
			SeedShare: bignum.EncodeSigned(s.Value.Int()),
		}
		msg, err := aead.Seal(c.ChannelKeys[vuser], aead.EncodeSharePayload(payload), nil)
		if err != nil {
			return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_encrypt", err)
		}
		out[vuser] = msg
	}
	return c.ID, out, y, nil
}

// OnlineConstruct receives every alive peer's mask-seed share, derives the
// set of dropped-out users, and (when any are missing) produces this
// client's share of the protected zero-value needed to recover them
// (spec.md §4.13's online_construct).
func (c *Client) OnlineConstruct(eshares map[party.ID]*aead.Message) (party.ID, map[party.ID]shamir.Share, []intshare.Share, error) {
	if len(eshares)+1 < c.Scenario.Threshold {
		return 0, nil, nil, ftsaerr.NotMet("online_construct", len(eshares)+1, c.Scenario.Threshold)
	}

	c.UAlive = party.NewSet(c.ID)
	fieldMod, err := shamir.ModulusForSeed()
	if err != nil {
		return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_construct", err)
	}
	for vuser, msg := range eshares {
		c.UAlive[vuser] = struct{}{}
		key, ok := c.ChannelKeys[vuser]
		if !ok {
			return 0, nil, nil, ftsaerr.New(ftsaerr.ProtocolMisuse, "online_construct", fmt.Sprintf("no channel key for user %d", vuser))
		}
		plain, err := aead.Open(key, msg, nil)
		if err != nil {
			return 0, nil, nil, ftsaerr.Wrap(ftsaerr.AuthenticationFailure, "online_construct", err)
		}
		payload, err := aead.DecodeSharePayload(plain)
		if err != nil {
			return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_construct", err)
		}
		if payload.V != uint16(c.ID) || payload.U != uint16(vuser) {
			return 0, nil, nil, ftsaerr.New(ftsaerr.AuthenticationFailure, "online_construct", "invalid encrypted message addressing")
		}
		value, err := bignum.DecodeSigned(payload.SeedShare)
		if err != nil {
			return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_construct", err)
		}
		c.BShares[vuser] = shamir.Share{Index: field.FromUint64(uint64(c.ID), fieldMod), Value: field.New(value, fieldMod)}
	}

	var dropShares []intshare.Share
	for vuser := range c.U {
		if c.UAlive.Contains(vuser) {
			continue
		}
		s, ok := c.KeyShares[vuser]
		if !ok {
			continue
		}
		dropShares = append(dropShares, s)
	}

	var yZeroShare []intshare.Share
	if len(dropShares) > 0 {
		s, err := jl.ShareProtectVector(c.Scenario.PP, dropShares, c.Step, c.Scenario.VE)
		if err != nil {
			return 0, nil, nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_construct", err)
		}
		yZeroShare = s
	}
	return c.ID, c.BShares, yZeroShare, nil
}

func idsToU(ids party.IDSlice) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}
