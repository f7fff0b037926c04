package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/critterlabs/critterchain/core"
	"github.com/critterlabs/critterchain/internal/testutil"
)

func TestCritterRoundTrip(t *testing.T) {
	state := testutil.NewStateDB()

	_, err := state.GetCritter(0)
	assert.ErrorIs(t, err, core.ErrNotFound)

	c := &core.Critter{ID: 0, Genome: core.Genome{1, 2, 3}, BornAt: 42}
	require.NoError(t, state.SetCritter(c))

	got, err := state.GetCritter(0)
	require.NoError(t, err)
	assert.Equal(t, c, got)
}

func TestCritterCountDefaultsToZero(t *testing.T) {
	state := testutil.NewStateDB()

	count, err := state.CritterCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, state.SetCritterCount(7))
	count, err = state.CritterCount()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), count)
}

func TestOwnerAndPrice(t *testing.T) {
	state := testutil.NewStateDB()

	_, err := state.OwnerOf(3)
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, state.SetOwner(3, "alice"))
	owner, err := state.OwnerOf(3)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	_, err = state.PriceOf(3)
	assert.ErrorIs(t, err, core.ErrNotFound, "unlisted critter has no price")

	require.NoError(t, state.SetPrice(3, 600))
	price, err := state.PriceOf(3)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), price)

	require.NoError(t, state.ClearPrice(3))
	_, err = state.PriceOf(3)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSnapshotRevertRestoresCritterState(t *testing.T) {
	state := testutil.NewStateDB()

	require.NoError(t, state.SetOwner(0, "alice"))
	require.NoError(t, state.SetPrice(0, 100))
	require.NoError(t, state.SetCritterCount(1))

	snapID, err := state.Snapshot()
	require.NoError(t, err)

	require.NoError(t, state.SetOwner(0, "bob"))
	require.NoError(t, state.ClearPrice(0))
	require.NoError(t, state.SetCritterCount(2))

	require.NoError(t, state.RevertToSnapshot(snapID))

	owner, err := state.OwnerOf(0)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
	price, err := state.PriceOf(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), price)
	count, err := state.CritterCount()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), count)
}

func TestCommitPersistsAndRootIsStable(t *testing.T) {
	db := testutil.NewMemDB()
	state := testutil.NewStateDBOn(db)

	require.NoError(t, state.SetAccount(&core.Account{Address: "alice", Balance: 10}))
	require.NoError(t, state.SetCritterCount(1))

	rootBefore := state.ComputeRoot()
	require.NoError(t, state.Commit())
	assert.Equal(t, rootBefore, state.ComputeRoot(), "root is unchanged by commit")

	reopened := testutil.NewStateDBOn(db)
	count, err := reopened.CritterCount()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), count)
	acc, err := reopened.GetAccount("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), acc.Balance)
}
