package simulate_test

import (
	"crypto/ecdh"
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luxfi/ftsa/internal/simulate"
	"github.com/luxfi/ftsa/pkg/aead"
	"github.com/luxfi/ftsa/pkg/ftsaerr"
	"github.com/luxfi/ftsa/pkg/party"
	"github.com/luxfi/ftsa/pkg/shamir"
	"github.com/luxfi/ftsa/protocols/pwmask"
)

// pwmaskKeySize is the reference's DH key size (256 bits); unlike TJL's λ,
// this never drives a prime search, so tests use the real size.
const pwmaskKeySize = 256

var _ = Describe("pwmask round-trip correctness with no dropouts", func() {
	It("sums all clients' inputs coordinate-wise", func() {
		cfg, err := pwmask.NewConfig(4, 8, pwmaskKeySize, 3, 2)
		Expect(err).NotTo(HaveOccurred())
		h := simulate.NewPWMask(cfg)
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

var _ = Describe("pwmask dropout correctness", func() {
	It("sums only the surviving clients' inputs", func() {
		cfg, err := pwmask.NewConfig(2, 4, pwmaskKeySize, 4, 3)
		Expect(err).NotTo(HaveOccurred())
		h := simulate.NewPWMask(cfg)
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
})

var _ = Describe("pwmask threshold not met", func() {
	// One client never submits its share_keys envelope, leaving the server
	// with only 2 of the 3 required submissions.
	It("fails share_keys with ThresholdNotMet", func() {
		cfg, err := pwmask.NewConfig(2, 4, pwmaskKeySize, 3, 3)
		Expect(err).NotTo(HaveOccurred())
		h := simulate.NewPWMask(cfg)

		maskPks := make(map[party.ID]*ecdh.PublicKey)
		chPks := make(map[party.ID]*ecdh.PublicKey)
		for id, c := range h.Clients {
			_, maskPk, chPk, err := c.AdvertiseKeys()
			Expect(err).NotTo(HaveOccurred())
			maskPks[id] = maskPk
			chPks[id] = chPk
		}
		relayedCh, relayedMask, err := h.Server.AdvertiseKeys(maskPks, chPks)
		Expect(err).NotTo(HaveOccurred())

		allEshares := make(map[party.ID]map[party.ID]pwmask.EncryptedShare)
		for id, c := range h.Clients {
			_, eshares, err := c.ShareKeys(relayedMask, relayedCh)
			Expect(err).NotTo(HaveOccurred())
			allEshares[id] = eshares
		}

		delete(allEshares, 3)
		_, err = h.Server.ShareKeys(allEshares)
		Expect(err).To(HaveOccurred())
		Expect(ftsaerr.AsKind(err, ftsaerr.ThresholdNotMet)).To(BeTrue())
	})
})

var _ = Describe("pwmask authentication failure during unmasking", func() {
	// Flip one byte of the ciphertext delivered to client v in share_keys;
	// v reports AuthenticationFailure during unmasking (where share_keys
	// envelopes are decrypted), and since the remaining shares still meet
	// the threshold, the round completes as if v's unmasking submission
	// were simply absent.
	It("excludes the affected client's unmasking contribution but still completes the round", func() {
		cfg, err := pwmask.NewConfig(4, 8, pwmaskKeySize, 3, 2)
		Expect(err).NotTo(HaveOccurred())
		h := simulate.NewPWMask(cfg)
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

		allY := make(map[party.ID][]*big.Int)
		for id, c := range h.Clients {
			_, y, err := c.MaskedInputCollection(h.PendingEshares(id))
			Expect(err).NotTo(HaveOccurred())
			allY[id] = y
		}

		aliveUsers, err := h.Server.MaskedInputCollection(allY)
		Expect(err).NotTo(HaveOccurred())

		const victim party.ID = 2
		victimClient := h.Clients[victim]

		// Corrupt one byte of whichever share_keys envelope was delivered
		// to the victim from some other client, reproducing a ciphertext
		// tampered in transit.
		inbox := h.PendingEshares(victim)
		Expect(inbox).NotTo(BeEmpty())
		var tamperedSender party.ID
		for sender := range inbox {
			tamperedSender = sender
			break
		}
		original := inbox[tamperedSender]
		tampered := &aead.Message{
			Nonce:      append([]byte(nil), original.Nonce...),
			Ciphertext: append([]byte(nil), original.Ciphertext...),
		}
		tampered.Ciphertext[0] ^= 0xFF
		inbox[tamperedSender] = tampered

		allKeyShares := make(map[party.ID]map[party.ID]shamir.Share)
		allMaskShares := make(map[party.ID]map[party.ID]shamir.Share)
		for id, c := range h.Clients {
			if id == victim {
				_, _, _, err := c.Unmasking(aliveUsers)
				Expect(err).To(HaveOccurred())
				Expect(ftsaerr.AsKind(err, ftsaerr.AuthenticationFailure)).To(BeTrue())
				continue
			}
			_, keyShares, maskShares, err := c.Unmasking(aliveUsers)
			Expect(err).NotTo(HaveOccurred())
			allKeyShares[id] = keyShares
			allMaskShares[id] = maskShares
		}
		Expect(victimClient).NotTo(BeNil())

		out, err := h.Server.Unmasking(allKeyShares, allMaskShares)
		Expect(err).NotTo(HaveOccurred())
		Expect(bigInts(out)).To(Equal([]int64{15, 18, 21, 24}))
	})
})
