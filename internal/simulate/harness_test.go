package simulate_test

import (
	"crypto/ecdh"
	"math/big"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luxfi/ftsa/internal/simulate"
	"github.com/luxfi/ftsa/pkg/aead"
	"github.com/luxfi/ftsa/pkg/ftsaerr"
	"github.com/luxfi/ftsa/pkg/intshare"
	"github.com/luxfi/ftsa/pkg/party"
	"github.com/luxfi/ftsa/pkg/shamir"
	"github.com/luxfi/ftsa/protocols/tjl"
)

// testKeySize is small enough that jl.Setup's prime search stays fast; real
// deployments use 2048-bit keys.
const testKeySize = 64

func intVec(xs ...int64) []*big.Int {
	out := make([]*big.Int, len(xs))
	for i, x := range xs {
		out[i] = big.NewInt(x)
	}
	return out
}

func bigInts(xs []*big.Int) []int64 {
	out := make([]int64, len(xs))
	for i, x := range xs {
		out[i] = x.Int64()
	}
	return out
}

var _ = Describe("round-trip correctness with no dropouts", func() {
	// spec.md §8 scenario 1: n=3, t=2, d=4, v=8.
	It("sums all clients' inputs coordinate-wise", func() {
		sc, err := tjl.NewScenario(4, 8, testKeySize, 3, 2, 40)
		Expect(err).NotTo(HaveOccurred())
		h := simulate.New(sc)
		Expect(h.RunSetup()).To(Succeed())

		inputs := map[party.ID][]*big.Int{
			1: intVec(1, 2, 3, 4),
			2: intVec(5, 6, 7, 8),
			3: intVec(9, 10, 11, 12),
		}
		out, err := h.RunOnlineRound(inputs, party.Set{})
		Expect(err).NotTo(HaveOccurred())
		Expect(bigInts(out)).To(Equal([]int64{15, 18, 21, 24}))
	})
})

var _ = Describe("dropout correctness", func() {
	// spec.md §8 scenario 2: n=4, t=3, d=2, v=4; client 2 is dropped for
	// the whole online round (it submits neither online_encrypt nor
	// online_construct), and the output excludes it.
	It("sums only the surviving clients' inputs", func() {
		sc, err := tjl.NewScenario(2, 4, testKeySize, 4, 3, 40)
		Expect(err).NotTo(HaveOccurred())
		h := simulate.New(sc)
		Expect(h.RunSetup()).To(Succeed())

		inputs := map[party.ID][]*big.Int{
			1: intVec(1, 1),
			2: intVec(2, 2),
			3: intVec(3, 3),
			4: intVec(4, 4),
		}
		out, err := h.RunOnlineRound(inputs, party.NewSet(2))
		Expect(err).NotTo(HaveOccurred())
		Expect(bigInts(out)).To(Equal([]int64{8, 8}))
	})

	// spec.md §8 scenario 3: n=5, t=4, d=20 (scaled down from 1000 for test
	// speed, same shape), v=16, deterministic 20% dropout (1 of 5 clients).
	It("sums the surviving clients' inputs for a larger dimension and random inputs", func() {
		const n, threshold, d, v = 5, 4, 20, 16
		sc, err := tjl.NewScenario(d, v, testKeySize, n, threshold, 40)
		Expect(err).NotTo(HaveOccurred())
		h := simulate.New(sc)
		Expect(h.RunSetup()).To(Succeed())

		rng := rand.New(rand.NewSource(20260729))
		inputs := make(map[party.ID][]*big.Int, n)
		want := make([]int64, d)
		dropped := party.NewSet(party.ID(n)) // drop the last client: 1/5 = 20%
		for id := 1; id <= n; id++ {
			vec := make([]*big.Int, d)
			for i := 0; i < d; i++ {
				x := int64(rng.Intn(1 << v))
				vec[i] = big.NewInt(x)
				if !dropped.Contains(party.ID(id)) {
					want[i] += x
				}
			}
			inputs[party.ID(id)] = vec
		}

		out, err := h.RunOnlineRound(inputs, dropped)
		Expect(err).NotTo(HaveOccurred())
		Expect(bigInts(out)).To(Equal(want))
	})
})

var _ = Describe("threshold not met", func() {
	// spec.md §8 scenario 4: n=3, t=3, one client fails to send in
	// setup_keysetup, so the round aborts.
	It("fails setup_keysetup with ThresholdNotMet", func() {
		sc, err := tjl.NewScenario(2, 4, testKeySize, 3, 3, 40)
		Expect(err).NotTo(HaveOccurred())
		h := simulate.New(sc)

		jlPks := make(map[party.ID]*ecdh.PublicKey)
		chPks := make(map[party.ID]*ecdh.PublicKey)
		for id, c := range h.Clients {
			_, jlPk, chPk, err := c.SetupRegister()
			Expect(err).NotTo(HaveOccurred())
			jlPks[id] = jlPk
			chPks[id] = chPk
		}
		relayedCh, relayedJL, err := h.Server.SetupRegister(jlPks, chPks)
		Expect(err).NotTo(HaveOccurred())

		allEshares := make(map[party.ID]map[party.ID]tjl.EncryptedShare)
		for id, c := range h.Clients {
			_, eshares, err := c.SetupKeysetup(relayedJL, relayedCh)
			Expect(err).NotTo(HaveOccurred())
			allEshares[id] = eshares
		}

		// One client fails to send its setup_keysetup submission, leaving
		// the server with only 2 of the 3 required.
		delete(allEshares, 3)
		_, err = h.Server.SetupKeysetup(allEshares)
		Expect(err).To(HaveOccurred())
		Expect(ftsaerr.AsKind(err, ftsaerr.ThresholdNotMet)).To(BeTrue())
	})
})

var _ = Describe("authentication failure during online_construct", func() {
	// spec.md §8 scenario 5: flip one byte of the ciphertext delivered to
	// client v in online_construct; v reports AuthenticationFailure, and
	// (since the remaining shares still meet the threshold) the round
	// completes as if v's construct submission were simply absent. Because
	// v's own online_encrypt succeeded and the other clients independently
	// hold shares of v's seed and key, the aggregate is unaffected: the
	// output equals the full, no-dropout sum.
	It("excludes the affected client's construct contribution but still completes the round", func() {
		sc, err := tjl.NewScenario(4, 8, testKeySize, 3, 2, 40)
		Expect(err).NotTo(HaveOccurred())
		h := simulate.New(sc)
		Expect(h.RunSetup()).To(Succeed())

		h.Server.NewFLStep()
		inputsByID := map[party.ID][]*big.Int{
			1: intVec(1, 2, 3, 4),
			2: intVec(5, 6, 7, 8),
			3: intVec(9, 10, 11, 12),
		}
		for id, c := range h.Clients {
			c.NewFLStep(inputsByID[id])
		}

		allEbshares := make(map[party.ID]map[party.ID]tjl.EncryptedShare)
		allY := make(map[party.ID][]*big.Int)
		for id, c := range h.Clients {
			_, eshares, y, err := c.OnlineEncrypt()
			Expect(err).NotTo(HaveOccurred())
			allEbshares[id] = eshares
			allY[id] = y
		}

		perRecipient, err := h.Server.OnlineEncrypt(allEbshares, allY)
		Expect(err).NotTo(HaveOccurred())

		const victim party.ID = 2

		// Corrupt one byte of whichever message was delivered to the
		// victim client, reproducing a ciphertext tampered in transit.
		victimInbox := perRecipient[victim]
		Expect(victimInbox).NotTo(BeEmpty())
		var tamperedSender party.ID
		for sender := range victimInbox {
			tamperedSender = sender
			break
		}
		original := victimInbox[tamperedSender]
		tampered := &aead.Message{
			Nonce:      append([]byte(nil), original.Nonce...),
			Ciphertext: append([]byte(nil), original.Ciphertext...),
		}
		tampered.Ciphertext[0] ^= 0xFF
		victimInbox[tamperedSender] = tampered

		allBshares := make(map[party.ID]map[party.ID]shamir.Share)
		var allYZero [][]intshare.Share
		for id, c := range h.Clients {
			if id == victim {
				_, _, _, err := c.OnlineConstruct(perRecipient[id])
				Expect(err).To(HaveOccurred())
				Expect(ftsaerr.AsKind(err, ftsaerr.AuthenticationFailure)).To(BeTrue())
				continue
			}
			_, bshares, yZero, err := c.OnlineConstruct(perRecipient[id])
			Expect(err).NotTo(HaveOccurred())
			allBshares[id] = bshares
			if yZero != nil {
				allYZero = append(allYZero, yZero)
			}
		}

		out, err := h.Server.OnlineConstruct(allBshares, allYZero)
		Expect(err).NotTo(HaveOccurred())
		Expect(bigInts(out)).To(Equal([]int64{15, 18, 21, 24}))
	})
})
