package aead

import (
	"encoding/binary"
	"fmt"
)

// SharePayload is the plaintext sealed inside a pairwise AEAD message when
// a client delivers one user's share of another's secret to a peer
// (spec.md §4.5): two user ids, an optional length-prefixed key share
// (present in protocols/tjl's ISS-based setup message and in
// protocols/pwmask's share_keys message), and the mask-seed share.
type SharePayload struct {
	U, V      uint16
	KeyShare  []byte // empty when this message carries no key share
	SeedShare []byte // empty when this message carries no mask-seed share
}

// EncodeSharePayload serializes p per spec.md §4.5: u(2,BE) || v(2,BE) ||
// lenK(2,BE) || share_K || share_B. A zero-length KeyShare still writes a
// 2-byte zero length field, which doubles as the "absent" marker.
func EncodeSharePayload(p SharePayload) []byte {
	buf := make([]byte, 0, 4+2+len(p.KeyShare)+len(p.SeedShare))
	var u16 [2]byte
	binary.BigEndian.PutUint16(u16[:], p.U)
	buf = append(buf, u16[:]...)
	binary.BigEndian.PutUint16(u16[:], p.V)
	buf = append(buf, u16[:]...)
	binary.BigEndian.PutUint16(u16[:], uint16(len(p.KeyShare)))
	buf = append(buf, u16[:]...)
	buf = append(buf, p.KeyShare...)
	buf = append(buf, p.SeedShare...)
	return buf
}

// DecodeSharePayload parses a buffer produced by EncodeSharePayload.
func DecodeSharePayload(buf []byte) (SharePayload, error) {
	if len(buf) < 6 {
		return SharePayload{}, fmt.Errorf("aead: share payload too short (%d bytes)", len(buf))
	}
	u := binary.BigEndian.Uint16(buf[0:2])
	v := binary.BigEndian.Uint16(buf[2:4])
	lenK := int(binary.BigEndian.Uint16(buf[4:6]))
	rest := buf[6:]
	if lenK > len(rest) {
		return SharePayload{}, fmt.Errorf("aead: share payload key-share length %d exceeds remaining %d bytes", lenK, len(rest))
	}
	keyShare := append([]byte(nil), rest[:lenK]...)
	seedShare := append([]byte(nil), rest[lenK:]...)
	return SharePayload{U: u, V: v, KeyShare: keyShare, SeedShare: seedShare}, nil
}
