package core

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// RandomnessSource produces the 16-byte values that drive critter genetics.
// Implementations must be deterministic for a fixed input triple so that
// replayed blocks regenerate identical genomes on every node.
type RandomnessSource interface {
	// Random16 mixes the per-block seed, the calling account and the
	// transaction's index within its block.
	Random16(seed, caller string, txIndex uint32) Genome
}

// Blake2Randomness hashes (seed, caller, tx index) with BLAKE2b-128.
// The seed is the previous block hash: fixed once the block is produced,
// unpredictable before.
type Blake2Randomness struct{}

func (Blake2Randomness) Random16(seed, caller string, txIndex uint32) Genome {
	// New only errors for oversized keys; we pass none.
	h, _ := blake2b.New(GenomeSize, nil)
	h.Write([]byte(seed))
	h.Write([]byte(caller))
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], txIndex)
	h.Write(idx[:])

	var g Genome
	copy(g[:], h.Sum(nil))
	return g
}
