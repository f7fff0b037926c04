// Package economy implements the native token transfer.
package economy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/critterlabs/critterchain/core"
	"github.com/critterlabs/critterchain/events"
	"github.com/critterlabs/critterchain/vm"
)

func init() {
	vm.Register(core.TxTransfer, handleTransfer)
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode transfer payload: %w", err)
	}
	if p.Amount == 0 {
		return errors.New("transfer amount must be > 0")
	}
	if p.To == "" {
		return errors.New("transfer to address required")
	}

	if err := core.TransferKeepAlive(ctx.State, ctx.Tx.From, p.To, p.Amount); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type:        events.EventTokenTransfer,
			TxID:        ctx.Tx.ID,
			BlockHeight: ctx.Block.Header.Height,
			Data: map[string]any{
				"from":   ctx.Tx.From,
				"to":     p.To,
				"amount": p.Amount,
			},
		})
	}
	return nil
}
