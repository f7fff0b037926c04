package critter_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/critterlabs/critterchain/core"
	"github.com/critterlabs/critterchain/internal/testutil"
	"github.com/critterlabs/critterchain/storage"
	"github.com/critterlabs/critterchain/vm"
	"github.com/critterlabs/critterchain/vm/modules/critter"
	"github.com/critterlabs/critterchain/wallet"
)

const chainID = "test-chain"

var fixedSelector = core.Genome{0xF0, 0x0F, 0xAA, 0x55, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

type env struct {
	t     *testing.T
	state *storage.StateDB
	exec  *vm.Executor
}

func newEnv(t *testing.T) *env {
	state := testutil.NewStateDB()
	exec := vm.NewExecutor(state, testutil.FixedRandomness{Value: fixedSelector}, nil)
	return &env{t: t, state: state, exec: exec}
}

func (e *env) fund(addr string, balance uint64) {
	require.NoError(e.t, e.state.SetAccount(&core.Account{Address: addr, Balance: balance}))
}

// run executes tx as the sole transaction of a fresh block.
func (e *env) run(tx *core.Transaction) error {
	block := core.NewBlock(1, "prev", tx.From, []*core.Transaction{tx})
	return e.exec.ExecuteTx(block, 0, tx)
}

func (e *env) account(addr string) *core.Account {
	acc, err := e.state.GetAccount(addr)
	require.NoError(e.t, err)
	return acc
}

func TestCreate(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)

	tx, err := alice.CreateCritter(chainID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(tx))

	count, err := e.state.CritterCount()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), count)

	c, err := e.state.GetCritter(0)
	require.NoError(t, err)
	assert.Equal(t, fixedSelector, c.Genome, "first critter takes the beacon value as genome")

	owner, err := e.state.OwnerOf(0)
	require.NoError(t, err)
	assert.Equal(t, alice.PubKey(), owner)

	acc := e.account(alice.PubKey())
	assert.Equal(t, uint64(900), acc.Balance)
	assert.Equal(t, uint64(100), acc.Reserved)
	assert.Equal(t, uint64(1), acc.Nonce)
}

func TestCreateMonotonicIDs(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)

	for nonce := uint64(0); nonce < 3; nonce++ {
		tx, err := alice.CreateCritter(chainID, nonce, 0)
		require.NoError(t, err)
		require.NoError(t, e.run(tx))
	}

	count, err := e.state.CritterCount()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), count)
	for id := uint32(0); id < 3; id++ {
		c, err := e.state.GetCritter(id)
		require.NoError(t, err)
		assert.Equal(t, id, c.ID)
	}
}

func TestCreateReserveFailure(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 50) // below the 100 creation escrow

	tx, err := alice.CreateCritter(chainID, 0, 0)
	require.NoError(t, err)
	err = e.run(tx)
	assert.ErrorIs(t, err, critter.ErrReserveFailed)

	// The failed transaction must leave no trace.
	count, err := e.state.CritterCount()
	require.NoError(t, err)
	assert.Zero(t, count)
	acc := e.account(alice.PubKey())
	assert.Equal(t, uint64(50), acc.Balance)
	assert.Zero(t, acc.Reserved)
	assert.Zero(t, acc.Nonce, "nonce rolls back with the rest of the state")
}

func TestCreateCountOverflow(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)
	require.NoError(t, e.state.SetCritterCount(math.MaxUint32))

	tx, err := alice.CreateCritter(chainID, 0, 0)
	require.NoError(t, err)
	err = e.run(tx)
	assert.ErrorIs(t, err, critter.ErrCountOverflow)

	acc := e.account(alice.PubKey())
	assert.Equal(t, uint64(1000), acc.Balance, "no escrow is placed on overflow")
	assert.Zero(t, acc.Reserved)
}

// plantCritter writes a critter with its owner record directly into state,
// bypassing the create flow, and bumps the counter past id.
func plantCritter(t *testing.T, state *storage.StateDB, id uint32, genome core.Genome, owner string) {
	require.NoError(t, state.SetCritter(&core.Critter{ID: id, Genome: genome}))
	require.NoError(t, state.SetOwner(id, owner))
	count, err := state.CritterCount()
	require.NoError(t, err)
	if id >= count {
		require.NoError(t, state.SetCritterCount(id+1))
	}
}

func TestBreed(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)

	g1 := core.Genome{0xFF, 0x00, 0xFF, 0x00}
	g2 := core.Genome{0x00, 0xFF, 0x00, 0xFF}
	plantCritter(t, e.state, 0, g1, alice.PubKey())
	plantCritter(t, e.state, 1, g2, alice.PubKey())

	tx, err := alice.BreedCritters(chainID, 0, 1, 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(tx))

	count, err := e.state.CritterCount()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), count)

	child, err := e.state.GetCritter(2)
	require.NoError(t, err)
	assert.Equal(t, core.CombineGenomes(g1, g2, fixedSelector), child.Genome)

	owner, err := e.state.OwnerOf(2)
	require.NoError(t, err)
	assert.Equal(t, alice.PubKey(), owner)

	acc := e.account(alice.PubKey())
	assert.Equal(t, uint64(900), acc.Balance, "breeding escrows the child like a creation")
	assert.Equal(t, uint64(100), acc.Reserved)
}

func TestBreedSameParent(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)
	plantCritter(t, e.state, 0, core.Genome{1}, alice.PubKey())

	tx, err := alice.BreedCritters(chainID, 0, 0, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.run(tx), critter.ErrSameParent)
}

func TestBreedUnknownParent(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)
	plantCritter(t, e.state, 0, core.Genome{1}, alice.PubKey())

	tx, err := alice.BreedCritters(chainID, 0, 99, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.run(tx), critter.ErrUnknownCritter)
}

func TestBreedNotOwner(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	bob, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)
	plantCritter(t, e.state, 0, core.Genome{1}, alice.PubKey())
	plantCritter(t, e.state, 1, core.Genome{2}, bob.PubKey())

	tx, err := alice.BreedCritters(chainID, 0, 1, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.run(tx), critter.ErrNotOwner)
}

func TestTransfer(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	bob, err := wallet.Generate()
	require.NoError(t, err)

	// Alice holds critter 0 with its escrow in place and a live listing.
	require.NoError(t, e.state.SetAccount(&core.Account{Address: alice.PubKey(), Balance: 900, Reserved: 100}))
	e.fund(bob.PubKey(), 500)
	plantCritter(t, e.state, 0, core.Genome{1}, alice.PubKey())
	require.NoError(t, e.state.SetPrice(0, 250))

	tx, err := alice.TransferCritter(chainID, bob.PubKey(), 0, 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(tx))

	owner, err := e.state.OwnerOf(0)
	require.NoError(t, err)
	assert.Equal(t, bob.PubKey(), owner)

	_, err = e.state.PriceOf(0)
	assert.ErrorIs(t, err, core.ErrNotFound, "transfer delists the critter")

	aliceAcc := e.account(alice.PubKey())
	assert.Equal(t, uint64(1000), aliceAcc.Balance, "escrow returns to the old owner")
	assert.Zero(t, aliceAcc.Reserved)
	bobAcc := e.account(bob.PubKey())
	assert.Equal(t, uint64(400), bobAcc.Balance, "escrow moves onto the new owner")
	assert.Equal(t, uint64(100), bobAcc.Reserved)
}

func TestTransferRecipientCannotReserve(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	bob, err := wallet.Generate()
	require.NoError(t, err)

	require.NoError(t, e.state.SetAccount(&core.Account{Address: alice.PubKey(), Balance: 900, Reserved: 100}))
	e.fund(bob.PubKey(), 10) // cannot cover the escrow
	plantCritter(t, e.state, 0, core.Genome{1}, alice.PubKey())

	tx, err := alice.TransferCritter(chainID, bob.PubKey(), 0, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.run(tx), critter.ErrReserveFailed)

	// The released escrow must be restored by the rollback.
	owner, err := e.state.OwnerOf(0)
	require.NoError(t, err)
	assert.Equal(t, alice.PubKey(), owner)
	aliceAcc := e.account(alice.PubKey())
	assert.Equal(t, uint64(900), aliceAcc.Balance)
	assert.Equal(t, uint64(100), aliceAcc.Reserved)
	bobAcc := e.account(bob.PubKey())
	assert.Equal(t, uint64(10), bobAcc.Balance)
	assert.Zero(t, bobAcc.Reserved)
}

func TestTransferNotOwner(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	bob, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)
	e.fund(bob.PubKey(), 1000)
	plantCritter(t, e.state, 0, core.Genome{1}, alice.PubKey())

	tx, err := bob.TransferCritter(chainID, bob.PubKey(), 0, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.run(tx), critter.ErrNotOwner)

	// Transferring an ID that was never minted fails the same way.
	tx, err = alice.TransferCritter(chainID, bob.PubKey(), 42, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.run(tx), critter.ErrNotOwner)
}

func TestTransferInvalidRecipient(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)
	plantCritter(t, e.state, 0, core.Genome{1}, alice.PubKey())

	tx, err := alice.TransferCritter(chainID, "not-a-pubkey", 0, 0, 0)
	require.NoError(t, err)
	assert.Error(t, e.run(tx))

	owner, err := e.state.OwnerOf(0)
	require.NoError(t, err)
	assert.Equal(t, alice.PubKey(), owner)
}
