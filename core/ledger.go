package core

import (
	"errors"
	"fmt"
	"math"
)

// CreateReserve is the escrow held against an owner for every critter they
// hold. It is placed on create/breed and on transfer-in, and released on
// transfer-out, so an account's Reserved always equals
// CreateReserve × (number of critters it owns).
const CreateReserve uint64 = 100

// ExistentialDeposit is the minimum free balance an outgoing keep-alive
// transfer must leave behind.
const ExistentialDeposit uint64 = 1

var (
	// ErrInsufficientFunds means an account's free balance cannot cover a
	// reservation or transfer.
	ErrInsufficientFunds = errors.New("insufficient free balance")
	// ErrWouldKillAccount means a keep-alive transfer would drop the sender
	// below the existential deposit.
	ErrWouldKillAccount = errors.New("transfer would drop sender below existential deposit")
)

// Reserve moves amount from addr's free balance into escrow.
func Reserve(s State, addr string, amount uint64) error {
	acc, err := s.GetAccount(addr)
	if err != nil {
		return err
	}
	if acc.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, acc.Balance, amount)
	}
	acc.Balance -= amount
	acc.Reserved += amount
	return s.SetAccount(acc)
}

// Unreserve returns amount of escrow to addr's free balance. The release is
// capped at what is actually reserved; the caller's invariants guarantee the
// reservation exists, the cap guards against corrupted state.
func Unreserve(s State, addr string, amount uint64) error {
	acc, err := s.GetAccount(addr)
	if err != nil {
		return err
	}
	if amount > acc.Reserved {
		amount = acc.Reserved
	}
	acc.Reserved -= amount
	acc.Balance += amount
	return s.SetAccount(acc)
}

// TransferKeepAlive moves amount between free balances, refusing to leave
// the sender below ExistentialDeposit.
func TransferKeepAlive(s State, from, to string, amount uint64) error {
	sender, err := s.GetAccount(from)
	if err != nil {
		return err
	}
	if sender.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, sender.Balance, amount)
	}
	if sender.Balance-amount < ExistentialDeposit {
		return ErrWouldKillAccount
	}
	recipient, err := s.GetAccount(to)
	if err != nil {
		return err
	}
	if recipient.Balance > math.MaxUint64-amount {
		return fmt.Errorf("recipient balance overflow for %s", to)
	}
	sender.Balance -= amount
	if err := s.SetAccount(sender); err != nil {
		return err
	}
	recipient.Balance += amount
	return s.SetAccount(recipient)
}
