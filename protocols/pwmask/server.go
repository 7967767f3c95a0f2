package pwmask

import (
	"crypto/ecdh"
	"math/big"

	"github.com/luxfi/ftsa/pkg/aead"
	"github.com/luxfi/ftsa/pkg/field"
	"github.com/luxfi/ftsa/pkg/ftsaerr"
	"github.com/luxfi/ftsa/pkg/kas"
	"github.com/luxfi/ftsa/pkg/party"
	"github.com/luxfi/ftsa/pkg/prg"
	"github.com/luxfi/ftsa/pkg/shamir"
)

// EncryptedShare is an already-sealed per-peer message. The server only
// ever relays and transposes these by recipient; it never opens one.
type EncryptedShare = *aead.Message

// Server is the aggregator's long-lived local state for the pwmask
// protocol (spec.md §6). Its round methods mirror
// original_source/protocols/ccsftsa17/server.py method-for-method.
type Server struct {
	Config *Config
	Step   uint64

	U           party.Set // registered users (from advertise_keys)
	UKeySetup   party.Set // users that delivered share_keys this round
	UAlive      party.Set // users that delivered masked_input_collection this round
	MaskPeerPks map[party.ID]*ecdh.PublicKey

	Y map[party.ID][]*big.Int // per-user masked vectors awaiting unmasking
}

// NewServer creates the aggregator's state for a Config.
func NewServer(cfg *Config) *Server {
	return &Server{Config: cfg, U: party.Set{}, MaskPeerPks: make(map[party.ID]*ecdh.PublicKey)}
}

// NewFLStep advances to a new round, clearing per-round aggregation state.
func (s *Server) NewFLStep() {
	s.Step++
	s.UKeySetup = nil
	s.UAlive = nil
	s.Y = nil
}

// AdvertiseKeys relays every registered client's public keys back to all
// clients (spec.md §6's advertise_keys); the server performs no
// cryptographic work of its own at this step.
func (s *Server) AdvertiseKeys(pksMask, pksChannel map[party.ID]*ecdh.PublicKey) (map[party.ID]*ecdh.PublicKey, map[party.ID]*ecdh.PublicKey, error) {
	if len(pksMask) != len(pksChannel) {
		return nil, nil, ftsaerr.New(ftsaerr.InvalidArgument, "advertise_keys", "mismatched public key sets")
	}
	if len(pksChannel) < s.Config.Threshold {
		return nil, nil, ftsaerr.NotMet("advertise_keys", len(pksChannel), s.Config.Threshold)
	}
	for id := range pksChannel {
		s.U[id] = struct{}{}
	}
	s.MaskPeerPks = pksMask
	return pksChannel, pksMask, nil
}

// ShareKeys transposes the per-sender map of encrypted key/seed shares into
// per-recipient maps (spec.md §6's share_keys).
func (s *Server) ShareKeys(allEshares map[party.ID]map[party.ID]EncryptedShare) (map[party.ID]map[party.ID]EncryptedShare, error) {
	if len(allEshares) < s.Config.Threshold {
		return nil, ftsaerr.NotMet("share_keys", len(allEshares), s.Config.Threshold)
	}
	s.UKeySetup = party.Set{}
	out := make(map[party.ID]map[party.ID]EncryptedShare)
	for user, byVuser := range allEshares {
		s.UKeySetup[user] = struct{}{}
		for vuser, e := range byVuser {
			if out[vuser] == nil {
				out[vuser] = make(map[party.ID]EncryptedShare)
			}
			out[vuser][user] = e
		}
	}
	return out, nil
}

// MaskedInputCollection records each sender's masked input vector and
// returns the sorted list of users considered alive this round — the
// aggregator's determination of who is still participating, fed back to
// every client as the input to Unmasking (spec.md §6's
// masked_input_collection).
func (s *Server) MaskedInputCollection(allY map[party.ID][]*big.Int) (party.IDSlice, error) {
	if len(allY) < s.Config.Threshold {
		return nil, ftsaerr.NotMet("masked_input_collection", len(allY), s.Config.Threshold)
	}
	s.UAlive = party.Set{}
	for user := range allY {
		s.UAlive[user] = struct{}{}
	}
	s.Y = allY
	return s.UAlive.Slice().Sorted(), nil
}

// Unmasking reconstructs every alive user's blinding seed and every dropped
// user's DH masking key from >= t shares, recomputes the dropped users'
// pairwise masking-key contributions, and combines them with the alive
// users' masked inputs to recover the sum of surviving inputs (spec.md
// §6's unmasking).
func (s *Server) Unmasking(allKeyShares, allMaskShares map[party.ID]map[party.ID]shamir.Share) ([]*big.Int, error) {
	if len(allMaskShares) < s.Config.Threshold {
		return nil, ftsaerr.NotMet("unmasking", len(allMaskShares), s.Config.Threshold)
	}

	bByTarget := make(map[party.ID][]shamir.Share)
	for _, byTarget := range allMaskShares {
		for target, sh := range byTarget {
			bByTarget[target] = append(bByTarget[target], sh)
		}
	}
	kByTarget := make(map[party.ID][]shamir.Share)
	for _, byTarget := range allKeyShares {
		for target, sh := range byTarget {
			kByTarget[target] = append(kByTarget[target], sh)
		}
	}

	seedMod, err := shamir.ModulusForSeed()
	if err != nil {
		return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "unmasking", err)
	}

	bVectors := make(map[party.ID][]*big.Int, len(bByTarget))
	for target, shares := range bByTarget {
		if len(shares) < s.Config.Threshold {
			return nil, ftsaerr.NotMet("unmasking", len(shares), s.Config.Threshold)
		}
		seedElem, err := shamir.Reconstruct(shares, nil, seedMod)
		if err != nil {
			return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "unmasking", err)
		}
		bVec, err := prg.Expand(prg.MaskSeed(seedElem.Int()), s.Config.Dimension, s.Config.ElementBits)
		if err != nil {
			return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "unmasking", err)
		}
		bVectors[target] = bVec
	}

	keyVectors := make(map[party.ID][]*big.Int, len(kByTarget))
	for target, shares := range kByTarget {
		if len(shares) < s.Config.Threshold {
			return nil, ftsaerr.NotMet("unmasking", len(shares), s.Config.Threshold)
		}
		keyMod, err := field.ModulusFor(s.Config.KeySize)
		if err != nil {
			return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "unmasking", err)
		}
		scalarElem, err := shamir.Reconstruct(shares, nil, keyMod)
		if err != nil {
			return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "unmasking", err)
		}
		priv, err := kas.PrivateFromScalar(scalarElem.Int())
		if err != nil {
			return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "unmasking", err)
		}

		key := zeroVector(s.Config.Dimension)
		for vuser, pk := range s.MaskPeerPks {
			if vuser == target {
				continue
			}
			sv, err := kas.Agree(priv, pk, chanKeyBits)
			if err != nil {
				return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "unmasking", err)
			}
			term, err := prg.Expand(prg.MaskSeed(new(big.Int).SetBytes(sv)), s.Config.Dimension, s.Config.ElementBits)
			if err != nil {
				return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "unmasking", err)
			}
			if vuser > target {
				key = s.Config.subMod(key, term)
			} else {
				key = s.Config.addMod(key, term)
			}
		}
		keyVectors[target] = key
	}

	result := zeroVector(s.Config.Dimension)
	for _, y := range s.Y {
		result = s.Config.addMod(result, y)
	}
	for _, key := range keyVectors {
		result = s.Config.addMod(result, key)
	}
	for _, b := range bVectors {
		result = s.Config.subMod(result, b)
	}
	return result, nil
}
