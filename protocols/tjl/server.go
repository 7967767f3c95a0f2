package tjl

import (
	"crypto/ecdh"
	"math/big"

	"github.com/luxfi/ftsa/pkg/aead"
	"github.com/luxfi/ftsa/pkg/ftsaerr"
	"github.com/luxfi/ftsa/pkg/intshare"
	"github.com/luxfi/ftsa/pkg/jl"
	"github.com/luxfi/ftsa/pkg/party"
	"github.com/luxfi/ftsa/pkg/prg"
	"github.com/luxfi/ftsa/pkg/shamir"
)

// Server is the aggregator's long-lived local state (spec.md §4.13). Its
// round methods mirror original_source/ftsa/protocols/ourftsa22/server.py
// method-for-method; sk_0 is fixed at zero, matching the reference (the
// server key is never sampled independently — it is always the negated
// sum of client keys computed during setup_keysetup, which the server
// never learns and does not need: Agg only ever needs sk_0=0 because every
// client key contribution cancels via the ECDH-derived pairwise terms).
type Server struct {
	Scenario *Scenario
	Step     uint64

	U      party.Set // registered users
	UAlive party.Set // users that delivered ciphertexts this round
	Delta  *big.Int  // |U|!, fixed once setup_keysetup completes

	Y []*big.Int // per-batch protected inputs awaiting aggregation
}

// NewServer creates the aggregator's state for a Scenario.
func NewServer(sc *Scenario) *Server {
	return &Server{
		Scenario: sc,
		U:        party.Set{},
		Delta:    big.NewInt(1),
	}
}

// NewFLStep advances to a new round, clearing per-round aggregation state.
func (s *Server) NewFLStep() {
	s.Step++
	s.UAlive = nil
	s.Y = nil
}

// SetupRegister just relays every registered client's public keys back to
// all clients (spec.md §4.13's setup_register); the server performs no
// cryptographic work of its own at this step.
func (s *Server) SetupRegister(pksJL, pksChannel map[party.ID]*ecdh.PublicKey) (map[party.ID]*ecdh.PublicKey, map[party.ID]*ecdh.PublicKey, error) {
	if len(pksJL) != len(pksChannel) {
		return nil, nil, ftsaerr.New(ftsaerr.InvalidArgument, "setup_register", "mismatched public key sets")
	}
	if len(pksChannel) < s.Scenario.Threshold {
		return nil, nil, ftsaerr.NotMet("setup_register", len(pksChannel), s.Scenario.Threshold)
	}
	return pksChannel, pksJL, nil
}

// SetupKeysetup transposes the per-user map of encrypted key shares into
// per-recipient maps, and fixes Δ = |U|! now that registration is final
// (spec.md §4.13's setup_keysetup).
func (s *Server) SetupKeysetup(allEshares map[party.ID]map[party.ID]EncryptedShare) (map[party.ID]map[party.ID]EncryptedShare, error) {
	if len(allEshares) < s.Scenario.Threshold {
		return nil, ftsaerr.NotMet("setup_keysetup", len(allEshares), s.Scenario.Threshold)
	}
	out := make(map[party.ID]map[party.ID]EncryptedShare)
	for user, byVuser := range allEshares {
		s.U[user] = struct{}{}
		for vuser, e := range byVuser {
			if out[vuser] == nil {
				out[vuser] = make(map[party.ID]EncryptedShare)
			}
			out[vuser][user] = e
		}
	}
	s.Delta = intshare.NewParams(len(s.U), s.Scenario.KeySize, s.Scenario.Sigma).Delta
	return out, nil
}

// OnlineEncrypt transposes the per-user map of encrypted mask-seed shares
// and records the alive set's protected inputs for this round (spec.md
// §4.13's online_encrypt).
func (s *Server) OnlineEncrypt(allEbshares map[party.ID]map[party.ID]EncryptedShare, allY map[party.ID][]*big.Int) (map[party.ID]map[party.ID]EncryptedShare, error) {
	if len(allEbshares) < s.Scenario.Threshold {
		return nil, ftsaerr.NotMet("online_encrypt", len(allEbshares), s.Scenario.Threshold)
	}
	out := make(map[party.ID]map[party.ID]EncryptedShare)
	s.UAlive = party.Set{}
	for user, byVuser := range allEbshares {
		s.UAlive[user] = struct{}{}
		for vuser, e := range byVuser {
			if out[vuser] == nil {
				out[vuser] = make(map[party.ID]EncryptedShare)
			}
			out[vuser][user] = e
		}
	}
	ys := make([][]*big.Int, 0, len(allY))
	for _, y := range allY {
		ys = append(ys, y)
	}
	combined, err := combineBatches(s.Scenario.PP, ys)
	if err != nil {
		return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_encrypt", err)
	}
	s.Y = combined
	return out, nil
}

// combineBatches multiplies same-index batches across users' protected
// vectors mod N^2 (the Σ y_u product of spec.md §4.10's Agg, applied
// batch-wise for vector inputs).
func combineBatches(pp *jl.PublicParam, perUser [][]*big.Int) ([]*big.Int, error) {
	if len(perUser) == 0 {
		return nil, ftsaerr.New(ftsaerr.ProtocolMisuse, "combine", "no protected inputs to aggregate")
	}
	width := len(perUser[0])
	out := make([]*big.Int, width)
	for c := 0; c < width; c++ {
		batch := make([]*big.Int, len(perUser))
		for i, row := range perUser {
			batch[i] = row[c]
		}
		combined, err := jl.Combine(pp, batch)
		if err != nil {
			return nil, err
		}
		out[c] = combined
	}
	return out, nil
}

// EncryptedShare is an already-sealed per-peer message. The server only
// ever relays and transposes these by recipient; it never opens one.
type EncryptedShare = *aead.Message

// OnlineConstruct reconstructs each alive user's mask seed from its
// collected Shamir shares, recombines the recovered dropped-out users'
// protected zero-value (if any), decrypts the aggregated ciphertext, and
// unmasks the result to recover the summed input vector (spec.md §4.13's
// online_construct).
func (s *Server) OnlineConstruct(allBshares map[party.ID]map[party.ID]shamir.Share, yZeroShares [][]intshare.Share) ([]*big.Int, error) {
	if len(allBshares) < s.Scenario.Threshold {
		return nil, ftsaerr.NotMet("online_construct", len(allBshares), s.Scenario.Threshold)
	}

	byTarget := make(map[party.ID][]shamir.Share)
	for _, byVuser := range allBshares {
		for vuser, sh := range byVuser {
			byTarget[vuser] = append(byTarget[vuser], sh)
		}
	}

	fieldMod, err := shamir.ModulusForSeed()
	if err != nil {
		return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_construct", err)
	}

	bBatches := make(map[party.ID][]*big.Int, len(byTarget))
	for vuser, shares := range byTarget {
		if len(shares) < s.Scenario.Threshold {
			return nil, ftsaerr.NotMet("online_construct", len(shares), s.Scenario.Threshold)
		}
		seedElem, err := shamir.Reconstruct(shares, nil, fieldMod)
		if err != nil {
			return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_construct", err)
		}
		mask := prg.MaskSeed(seedElem.Int())
		b, err := prg.Expand(mask, s.Scenario.VE.VectorSize, s.Scenario.VE.ElementBits)
		if err != nil {
			return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_construct", err)
		}
		bBatches[vuser] = s.Scenario.VE.Encode(b)
	}

	yTau := s.Y
	delta := big.NewInt(1)
	if len(yZeroShares) > 0 {
		yZero, err := jl.ShareCombineVector(s.Scenario.PP, yZeroShares, s.Scenario.Threshold, s.Delta)
		if err != nil {
			return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_construct", err)
		}
		scaled := make([]*big.Int, len(yTau))
		for i, y := range yTau {
			deltaSq := new(big.Int).Mul(s.Delta, s.Delta)
			scaled[i] = jl.Raise(s.Scenario.PP, y, deltaSq)
		}
		combined, err := combineBatches(s.Scenario.PP, [][]*big.Int{scaled, yZero})
		if err != nil {
			return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_construct", err)
		}
		yTau = combined
		delta = s.Delta
	}

	xPlusB, err := jl.AggVector(s.Scenario.PP, big.NewInt(0), s.Step, yTau, delta, s.Scenario.VE)
	if err != nil {
		return nil, ftsaerr.Wrap(ftsaerr.InvalidArgument, "online_construct", err)
	}

	elemMod := new(big.Int).Lsh(big.NewInt(1), uint(s.Scenario.VE.ElementBits))
	result := xPlusB
	for _, bBatch := range bBatches {
		bVec := s.Scenario.VE.Decode(bBatch)
		next := make([]*big.Int, len(result))
		for i := range result {
			v := new(big.Int).Sub(result[i], bVec[i])
			next[i] = v.Mod(v, elemMod)
		}
		result = next
	}
	return result, nil
}
