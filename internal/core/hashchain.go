package core

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/holiman/uint256"
)

const genesisSeed = "ArtistExchange:genesis:v1"

// hashChain links every committed operation to the one before it:
// tip[N] = SHA-256(tip[N-1] || LE64(N) || digest[N]).
type hashChain struct {
	tip [32]byte
}

func newHashChain() *hashChain {
	return &hashChain{tip: sha256.Sum256([]byte(genesisSeed))}
}

// link appends sequence's digest and returns the new tip.
func (c *hashChain) link(sequence int64, digest []byte) [32]byte {
	var seq [8]byte
	binary.LittleEndian.PutUint64(seq[:], uint64(sequence))

	h := sha256.New()
	h.Write(c.tip[:])
	h.Write(seq[:])
	h.Write(digest)
	h.Sum(c.tip[:0])
	return c.tip
}

func (c *hashChain) Tip() [32]byte { return c.tip }

// reset moves the tip, e.g. to a restored snapshot's hash.
func (c *hashChain) reset(tip [32]byte) { c.tip = tip }

// appendDigestEntry encodes one account balance as len(path) || path ||
// 32-byte big-endian amount.
func appendDigestEntry(digest []byte, path string, amount *uint256.Int) []byte {
	digest = append(digest, byte(len(path)))
	digest = append(digest, path...)
	word := amount.Bytes32()
	return append(digest, word[:]...)
}
