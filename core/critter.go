package core

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// GenomeSize is the byte length of a critter genome.
const GenomeSize = 16

// Genome is the 128-bit genetic identity of a critter. It is fixed at
// creation and never changes afterwards.
type Genome [GenomeSize]byte

// MarshalJSON encodes the genome as a 32-char lowercase hex string.
func (g Genome) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(g[:]))
}

// UnmarshalJSON decodes a 32-char hex string into the genome.
func (g *Genome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid genome hex: %w", err)
	}
	if len(b) != GenomeSize {
		return fmt.Errorf("genome must be %d bytes, got %d", GenomeSize, len(b))
	}
	copy(g[:], b)
	return nil
}

// String returns the hex form of the genome.
func (g Genome) String() string {
	return hex.EncodeToString(g[:])
}

// Critter is a unique collectible. The ID is assigned from a monotonically
// increasing counter; the genome is fixed at birth. Critters are never
// deleted; ownership and sale listings are tracked in separate state maps.
type Critter struct {
	ID     uint32 `json:"id"`
	Genome Genome `json:"genome"`
	BornAt int64  `json:"born_at"` // block timestamp of the creating tx
}

// CombineGenomes derives a child genome from two parents and a selector
// mask: each selector bit picks the corresponding bit from the first parent
// when set, from the second when clear.
func CombineGenomes(p1, p2, selector Genome) Genome {
	var child Genome
	for i := range child {
		child[i] = (selector[i] & p1[i]) | (^selector[i] & p2[i])
	}
	return child
}
