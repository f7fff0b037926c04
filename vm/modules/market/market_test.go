package market_test

import (
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

type env struct {
	t     *testing.T
	state *storage.StateDB
	exec  *vm.Executor
}

func newEnv(t *testing.T) *env {
	state := testutil.NewStateDB()
	exec := vm.NewExecutor(state, testutil.FixedRandomness{}, nil)
	return &env{t: t, state: state, exec: exec}
}

func (e *env) fund(addr string, balance uint64) {
	require.NoError(e.t, e.state.SetAccount(&core.Account{Address: addr, Balance: balance}))
}

func (e *env) run(tx *core.Transaction) error {
	block := core.NewBlock(1, "prev", tx.From, []*core.Transaction{tx})
	return e.exec.ExecuteTx(block, 0, tx)
}

func (e *env) account(addr string) *core.Account {
	acc, err := e.state.GetAccount(addr)
	require.NoError(e.t, err)
	return acc
}

func TestSetPrice(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)

	create, err := alice.CreateCritter(chainID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(create))

	list, err := alice.SetCritterPrice(chainID, 0, 250, 1, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(list))

	price, err := e.state.PriceOf(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), price)

	// Relisting overwrites the previous price.
	relist, err := alice.SetCritterPrice(chainID, 0, 90, 2, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(relist))
	price, err = e.state.PriceOf(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(90), price)
}

func TestSetPriceNotOwner(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	bob, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)
	e.fund(bob.PubKey(), 1000)

	create, err := alice.CreateCritter(chainID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(create))

	list, err := bob.SetCritterPrice(chainID, 0, 250, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.run(list), critter.ErrNotOwner)

	// Listing an ID nobody owns fails the same way.
	list, err = bob.SetCritterPrice(chainID, 42, 250, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.run(list), critter.ErrNotOwner)
}

func TestSetPriceZero(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)

	create, err := alice.CreateCritter(chainID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(create))

	list, err := alice.SetCritterPrice(chainID, 0, 0, 1, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.run(list), critter.ErrInvalidPrice)

	_, err = e.state.PriceOf(0)
	assert.ErrorIs(t, err, core.ErrNotFound, "zero price never creates a listing")
}

func TestBuy(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	bob, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)
	e.fund(bob.PubKey(), 1000)

	create, err := alice.CreateCritter(chainID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(create))
	list, err := alice.SetCritterPrice(chainID, 0, 100, 1, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(list))

	buy, err := bob.BuyCritter(chainID, alice.PubKey(), 0, 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(buy))

	owner, err := e.state.OwnerOf(0)
	require.NoError(t, err)
	assert.Equal(t, bob.PubKey(), owner)

	_, err = e.state.PriceOf(0)
	assert.ErrorIs(t, err, core.ErrNotFound, "purchase clears the listing")

	aliceAcc := e.account(alice.PubKey())
	assert.Equal(t, uint64(1100), aliceAcc.Balance, "seller gets the price plus the released escrow")
	assert.Zero(t, aliceAcc.Reserved)
	bobAcc := e.account(bob.PubKey())
	assert.Equal(t, uint64(800), bobAcc.Balance, "buyer pays the price and funds the escrow")
	assert.Equal(t, uint64(100), bobAcc.Reserved)
}

func TestBuyNotForSale(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	bob, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)
	e.fund(bob.PubKey(), 1000)

	create, err := alice.CreateCritter(chainID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(create))

	buy, err := bob.BuyCritter(chainID, alice.PubKey(), 0, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.run(buy), critter.ErrNotForSale)
}

func TestBuyWrongOwner(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	bob, err := wallet.Generate()
	require.NoError(t, err)
	carol, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)
	e.fund(bob.PubKey(), 1000)

	create, err := alice.CreateCritter(chainID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(create))
	list, err := alice.SetCritterPrice(chainID, 0, 100, 1, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(list))

	// Naming the wrong seller must not match the stored owner.
	buy, err := bob.BuyCritter(chainID, carol.PubKey(), 0, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.run(buy), critter.ErrNotOwner)
}

func TestBuyOwnCritter(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)

	create, err := alice.CreateCritter(chainID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(create))
	list, err := alice.SetCritterPrice(chainID, 0, 100, 1, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(list))

	buy, err := alice.BuyCritter(chainID, alice.PubKey(), 0, 2, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.run(buy), critter.ErrAlreadyOwned)
}

func TestBuyInsufficientBalance(t *testing.T) {
	e := newEnv(t)
	alice, err := wallet.Generate()
	require.NoError(t, err)
	bob, err := wallet.Generate()
	require.NoError(t, err)
	e.fund(alice.PubKey(), 1000)
	e.fund(bob.PubKey(), 650) // price 600 + escrow 100 is out of reach

	create, err := alice.CreateCritter(chainID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(create))
	list, err := alice.SetCritterPrice(chainID, 0, 600, 1, 0)
	require.NoError(t, err)
	require.NoError(t, e.run(list))

	buy, err := bob.BuyCritter(chainID, alice.PubKey(), 0, 0, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, e.run(buy), critter.ErrBalanceNotEnough)

	// Nothing moved.
	owner, err := e.state.OwnerOf(0)
	require.NoError(t, err)
	assert.Equal(t, alice.PubKey(), owner)
	price, err := e.state.PriceOf(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), price)
	bobAcc := e.account(bob.PubKey())
	assert.Equal(t, uint64(650), bobAcc.Balance)
	assert.Zero(t, bobAcc.Reserved)
}
