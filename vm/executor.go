package vm

import (
	"fmt"
	"math"

	"github.com/critterlabs/critterchain/core"
	"github.com/critterlabs/critterchain/events"
)

// Context is passed to every Handler and provides access to the chain state,
// the current block, the triggering transaction and its index within the
// block, the randomness beacon, and the event emitter.
type Context struct {
	State   core.State
	Block   *core.Block
	Tx      *core.Transaction
	TxIndex uint32
	Rand    core.RandomnessSource
	Emitter *events.Emitter
}

// Executor applies transactions to the state using the global Handler registry.
type Executor struct {
	state   core.State
	rand    core.RandomnessSource
	emitter *events.Emitter
}

// NewExecutor creates an Executor with the given state, randomness source and
// event emitter. A nil rand falls back to the production BLAKE2b beacon.
func NewExecutor(state core.State, rand core.RandomnessSource, emitter *events.Emitter) *Executor {
	if rand == nil {
		rand = core.Blake2Randomness{}
	}
	return &Executor{state: state, rand: rand, emitter: emitter}
}

// ExecuteBlock applies all transactions in block sequentially.
// A failing transaction causes the whole block to be rejected.
// EventBlockCommit is emitted by the caller (consensus) after signing so
// the event carries the correct block hash.
func (e *Executor) ExecuteBlock(block *core.Block) error {
	for i, tx := range block.Transactions {
		if err := e.ExecuteTx(block, uint32(i), tx); err != nil {
			return fmt.Errorf("tx %s failed: %w", tx.ID, err)
		}
	}
	return nil
}

// ExecuteTx verifies and executes a single transaction with snapshot/rollback.
// txIndex is the transaction's position within block; it feeds the
// randomness beacon, so callers must pass the canonical position.
func (e *Executor) ExecuteTx(block *core.Block, txIndex uint32, tx *core.Transaction) error {
	if err := tx.Verify(); err != nil {
		return fmt.Errorf("signature: %w", err)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	if err := e.applyTx(block, txIndex, tx); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return fmt.Errorf("revert snapshot after tx failure: %w (revert: %v)", err, revertErr)
		}
		return err
	}

	if e.emitter != nil {
		e.emitter.Emit(events.Event{
			Type:        events.EventTxExecuted,
			TxID:        tx.ID,
			BlockHeight: block.Header.Height,
			Data:        map[string]any{"type": string(tx.Type), "from": tx.From},
		})
	}
	return nil
}

// applyTx deducts the fee, increments the nonce, then dispatches to the handler.
func (e *Executor) applyTx(block *core.Block, txIndex uint32, tx *core.Transaction) error {
	acc, err := e.state.GetAccount(tx.From)
	if err != nil {
		return fmt.Errorf("get account: %w", err)
	}
	if acc.Nonce != tx.Nonce {
		return fmt.Errorf("invalid nonce: expected %d got %d", acc.Nonce, tx.Nonce)
	}
	if acc.Balance < tx.Fee {
		return fmt.Errorf("insufficient balance for fee: have %d need %d", acc.Balance, tx.Fee)
	}
	if acc.Nonce == math.MaxUint64 {
		return fmt.Errorf("nonce overflow for account %s", tx.From)
	}
	acc.Balance -= tx.Fee
	acc.Nonce++
	if err := e.state.SetAccount(acc); err != nil {
		return err
	}

	ctx := &Context{
		State:   e.state,
		Block:   block,
		Tx:      tx,
		TxIndex: txIndex,
		Rand:    e.rand,
		Emitter: e.emitter,
	}
	return globalRegistry.Execute(tx.Type, ctx, tx.Payload)
}
