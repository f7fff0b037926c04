// Package market implements the critter marketplace: owners attach an
// asking price to a critter, and any other account can buy it at that
// price. A successful purchase moves the price to the seller, swaps the
// ownership escrow, and clears the listing.
package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/critterlabs/critterchain/core"
	"github.com/critterlabs/critterchain/events"
	"github.com/critterlabs/critterchain/vm"
	"github.com/critterlabs/critterchain/vm/modules/critter"
)

func init() {
	vm.Register(core.TxCritterSetPrice, handleSetPrice)
	vm.Register(core.TxCritterBuy, handleBuy)
}

func handleSetPrice(ctx *vm.Context, payload json.RawMessage) error {
	var p core.CritterSetPricePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode critter_set_price payload: %w", err)
	}

	owner, err := ctx.State.OwnerOf(p.CritterID)
	if errors.Is(err, core.ErrNotFound) {
		return critter.ErrNotOwner
	}
	if err != nil {
		return err
	}
	if owner != ctx.Tx.From {
		return critter.ErrNotOwner
	}
	if p.Price == 0 {
		return critter.ErrInvalidPrice
	}

	if err := ctx.State.SetPrice(p.CritterID, p.Price); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventCritterPriceSet,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data:        map[string]any{"critter_id": p.CritterID, "owner": owner, "price": p.Price},
		})
	}
	return nil
}

func handleBuy(ctx *vm.Context, payload json.RawMessage) error {
	var p core.CritterBuyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode critter_buy payload: %w", err)
	}

	// The owner argument is caller-supplied; it is only trusted after an
	// equality check against the stored owner.
	owner, err := ctx.State.OwnerOf(p.CritterID)
	if errors.Is(err, core.ErrNotFound) {
		return critter.ErrNotOwner
	}
	if err != nil {
		return err
	}
	if owner != p.Owner {
		return critter.ErrNotOwner
	}

	buyer := ctx.Tx.From
	if buyer == owner {
		return critter.ErrAlreadyOwned
	}

	price, err := ctx.State.PriceOf(p.CritterID)
	if errors.Is(err, core.ErrNotFound) {
		return critter.ErrNotForSale
	}
	if err != nil {
		return err
	}

	// The buyer pays the price and then takes over the ownership escrow.
	if price > math.MaxUint64-core.CreateReserve {
		return critter.ErrBalanceNotEnough
	}
	buyerAcc, err := ctx.State.GetAccount(buyer)
	if err != nil {
		return err
	}
	if buyerAcc.Balance < price+core.CreateReserve {
		return critter.ErrBalanceNotEnough
	}

	if err := core.TransferKeepAlive(ctx.State, buyer, owner, price); err != nil {
		return fmt.Errorf("%w: %v", critter.ErrBalanceNotEnough, err)
	}
	// Transfer swaps the escrow and clears the listing.
	if err := critter.Transfer(ctx, owner, buyer, p.CritterID); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventCritterPurchased,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"critter_id": p.CritterID,
				"buyer":      buyer,
				"seller":     owner,
				"price":      price,
			},
		})
	}
	return nil
}
