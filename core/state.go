package core

// Account holds a participant's token balances and replay-protection nonce.
// Address is the hex-encoded ed25519 public key. Balance is the free,
// spendable amount; Reserved is escrow held while the account owns critters
// and cannot be spent until released.
type Account struct {
	Address  string `json:"address"` // pubkey hex
	Balance  uint64 `json:"balance"`
	Reserved uint64 `json:"reserved"`
	Nonce    uint64 `json:"nonce"`
}

// State is the full chain state interface. Implementations must be
// snapshot-able so the executor can roll back failed transactions.
//
// Critter ownership and listings live in separate maps keyed by critter ID:
// every existing critter has exactly one owner entry, and a price entry
// exists only while the critter is listed for sale.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Critters
	GetCritter(id uint32) (*Critter, error)
	SetCritter(c *Critter) error
	// CritterCount returns the next unused critter ID (0 for a fresh chain).
	CritterCount() (uint32, error)
	SetCritterCount(n uint32) error

	// Ownership
	OwnerOf(id uint32) (string, error)
	SetOwner(id uint32, owner string) error

	// Price listings
	PriceOf(id uint32) (uint64, error)
	SetPrice(id uint32, price uint64) error
	ClearPrice(id uint32) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing. Call this before signing a block.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	// Always call ComputeRoot() first to obtain the root for the block header.
	Commit() error
}
