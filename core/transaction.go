package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/critterlabs/critterchain/crypto"
)

// TxType identifies the kind of operation a transaction performs.
type TxType string

const (
	TxTransfer        TxType = "transfer"
	TxCritterCreate   TxType = "critter_create"
	TxCritterBreed    TxType = "critter_breed"
	TxCritterTransfer TxType = "critter_transfer"
	TxCritterSetPrice TxType = "critter_set_price"
	TxCritterBuy      TxType = "critter_buy"
)

// Transaction is the atomic unit of work on the chain.
// From holds the sender's full hex-encoded ed25519 public key (64 chars).
// ChainID pins the transaction to one network so it cannot be replayed on
// another. Signature covers all fields except Signature itself.
type Transaction struct {
	ID        string          `json:"id"`
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"` // hex-encoded ed25519 public key
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	ChainID   string          `json:"chain_id"`
	Type      TxType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Fee       uint64          `json:"fee"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the transaction (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (tx *Transaction) Hash() string {
	body := signingBody{
		ChainID:   tx.ChainID,
		Type:      tx.Type,
		From:      tx.From,
		Nonce:     tx.Nonce,
		Fee:       tx.Fee,
		Timestamp: tx.Timestamp,
		Payload:   tx.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (tx *Transaction) Sign(priv crypto.PrivateKey) {
	hash := tx.Hash()
	tx.Signature = crypto.Sign(priv, []byte(hash))
	tx.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (tx *Transaction) Verify() error {
	if tx.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(tx.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return crypto.Verify(pub, []byte(tx.Hash()), tx.Signature)
}

// NewTransaction creates an unsigned transaction with the current timestamp.
func NewTransaction(chainID string, typ TxType, from string, nonce, fee uint64, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ChainID:   chainID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Fee:       fee,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----

// TransferPayload transfers native tokens.
type TransferPayload struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// CritterCreatePayload creates a critter with a random genome. The new
// critter is owned by the sender; no arguments are needed.
type CritterCreatePayload struct{}

// CritterBreedPayload breeds a child from two critters owned by the sender.
type CritterBreedPayload struct {
	Parent1 uint32 `json:"parent1"`
	Parent2 uint32 `json:"parent2"`
}

// CritterTransferPayload moves a critter to a new owner.
type CritterTransferPayload struct {
	CritterID uint32 `json:"critter_id"`
	To        string `json:"to"` // recipient pubkey hex
}

// CritterSetPricePayload lists a critter for sale at the given price.
type CritterSetPricePayload struct {
	CritterID uint32 `json:"critter_id"`
	Price     uint64 `json:"price"`
}

// CritterBuyPayload purchases a listed critter. Owner is the purported
// current owner and is validated against the stored owner before any
// funds move.
type CritterBuyPayload struct {
	CritterID uint32 `json:"critter_id"`
	Owner     string `json:"owner"` // seller pubkey hex
}
