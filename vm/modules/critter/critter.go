// Package critter implements the collectible lifecycle: creation with
// escrow, genetic breeding, and ownership transfer. Sale listings and
// purchases live in the market module.
package critter

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/critterlabs/critterchain/core"
	"github.com/critterlabs/critterchain/crypto"
	"github.com/critterlabs/critterchain/events"
	"github.com/critterlabs/critterchain/vm"
)

func init() {
	vm.Register(core.TxCritterCreate, handleCreate)
	vm.Register(core.TxCritterBreed, handleBreed)
	vm.Register(core.TxCritterTransfer, handleTransfer)
}

// selector draws the 16-byte random value for this transaction from the
// block's randomness beacon: previous block hash, sender, tx index.
func selector(ctx *vm.Context) core.Genome {
	return ctx.Rand.Random16(ctx.Block.Header.PrevHash, ctx.Tx.From, ctx.TxIndex)
}

// nextID returns the ID the next critter will take without advancing the
// counter; the increment happens in mint so it commits atomically with the
// critter and owner writes.
func nextID(s core.State) (uint32, error) {
	count, err := s.CritterCount()
	if err != nil {
		return 0, err
	}
	if count == math.MaxUint32 {
		return 0, ErrCountOverflow
	}
	return count, nil
}

// mint places the creation escrow, persists the critter and its owner
// record, and advances the counter. Shared by create and breed.
func mint(ctx *vm.Context, id uint32, genome core.Genome) error {
	owner := ctx.Tx.From
	if err := core.Reserve(ctx.State, owner, core.CreateReserve); err != nil {
		return fmt.Errorf("%w: %v", ErrReserveFailed, err)
	}

	c := &core.Critter{
		ID:     id,
		Genome: genome,
		BornAt: ctx.Block.Header.Timestamp,
	}
	if err := ctx.State.SetCritter(c); err != nil {
		return err
	}
	if err := ctx.State.SetOwner(id, owner); err != nil {
		return err
	}
	if err := ctx.State.SetCritterCount(id + 1); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventCritterCreated,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"critter_id": id, "owner": owner, "genome": genome.String()},
		})
	}
	return nil
}

func handleCreate(ctx *vm.Context, payload json.RawMessage) error {
	var p core.CritterCreatePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode critter_create payload: %w", err)
	}

	id, err := nextID(ctx.State)
	if err != nil {
		return err
	}
	return mint(ctx, id, selector(ctx))
}

func handleBreed(ctx *vm.Context, payload json.RawMessage) error {
	var p core.CritterBreedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode critter_breed payload: %w", err)
	}
	if p.Parent1 == p.Parent2 {
		return ErrSameParent
	}

	parent1, err := getCritter(ctx.State, p.Parent1)
	if err != nil {
		return err
	}
	parent2, err := getCritter(ctx.State, p.Parent2)
	if err != nil {
		return err
	}
	for _, pid := range []uint32{p.Parent1, p.Parent2} {
		owner, err := ownerOf(ctx.State, pid)
		if err != nil {
			return err
		}
		if owner != ctx.Tx.From {
			return ErrNotOwner
		}
	}

	id, err := nextID(ctx.State)
	if err != nil {
		return err
	}
	child := core.CombineGenomes(parent1.Genome, parent2.Genome, selector(ctx))
	return mint(ctx, id, child)
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.CritterTransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode critter_transfer payload: %w", err)
	}
	if p.To == "" {
		return errors.New("to address required")
	}
	if _, err := crypto.PubKeyFromHex(p.To); err != nil {
		return fmt.Errorf("invalid to pubkey: %w", err)
	}

	if err := Transfer(ctx, ctx.Tx.From, p.To, p.CritterID); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventCritterTransferred,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"critter_id": p.CritterID, "from": ctx.Tx.From, "to": p.To},
		})
	}
	return nil
}

// Transfer moves critter id from 'from' to 'to': it verifies ownership,
// swaps the escrow reservation (release from the outgoing owner, place
// against the incoming one), sets the new owner and clears any sale
// listing. It does not emit an event; callers emit their own. On any error
// the executor's snapshot revert undoes the released reservation, so the
// swap is all-or-nothing.
func Transfer(ctx *vm.Context, from, to string, id uint32) error {
	owner, err := ownerOf(ctx.State, id)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrNotOwner
	}

	if err := core.Unreserve(ctx.State, from, core.CreateReserve); err != nil {
		return err
	}
	if err := core.Reserve(ctx.State, to, core.CreateReserve); err != nil {
		return fmt.Errorf("%w: %v", ErrReserveFailed, err)
	}

	if err := ctx.State.SetOwner(id, to); err != nil {
		return err
	}
	return ctx.State.ClearPrice(id)
}

// getCritter maps a missing critter onto ErrUnknownCritter.
func getCritter(s core.State, id uint32) (*core.Critter, error) {
	c, err := s.GetCritter(id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrUnknownCritter
	}
	return c, err
}

// ownerOf maps a missing owner record onto ErrNotOwner: an ID nobody owns
// cannot pass any ownership gate.
func ownerOf(s core.State, id uint32) (string, error) {
	owner, err := s.OwnerOf(id)
	if errors.Is(err, core.ErrNotFound) {
		return "", ErrNotOwner
	}
	return owner, err
}
