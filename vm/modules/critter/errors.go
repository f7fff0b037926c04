package critter

import "errors"

// Failure taxonomy for critter operations. Every failure aborts the current
// transaction and surfaces verbatim; the executor's snapshot revert
// guarantees no partial state survives.
var (
	// ErrCountOverflow means the critter ID counter is exhausted.
	ErrCountOverflow = errors.New("critter count overflow")
	// ErrNotOwner means the caller (or the purported owner on a buy) does
	// not own the critter.
	ErrNotOwner = errors.New("not the critter owner")
	// ErrSameParent means breeding was attempted with a single critter as
	// both parents.
	ErrSameParent = errors.New("parents must be two distinct critters")
	// ErrUnknownCritter means the referenced critter ID does not exist.
	ErrUnknownCritter = errors.New("critter does not exist")
	// ErrReserveFailed means the escrow reservation could not be placed.
	ErrReserveFailed = errors.New("escrow reserve failed")
	// ErrInvalidPrice means a zero asking price was supplied.
	ErrInvalidPrice = errors.New("price must be greater than zero")
	// ErrNotForSale means a buy was attempted on an unlisted critter.
	ErrNotForSale = errors.New("critter is not for sale")
	// ErrBalanceNotEnough means the buyer cannot cover price plus escrow.
	ErrBalanceNotEnough = errors.New("balance cannot cover price and escrow")
	// ErrAlreadyOwned means the buyer already owns the critter.
	ErrAlreadyOwned = errors.New("buyer already owns the critter")
)
