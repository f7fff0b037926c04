package consensus_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/critterlabs/critterchain/config"
	"github.com/critterlabs/critterchain/consensus"
	"github.com/critterlabs/critterchain/core"
	"github.com/critterlabs/critterchain/events"
	"github.com/critterlabs/critterchain/internal/testutil"
	"github.com/critterlabs/critterchain/vm"
	"github.com/critterlabs/critterchain/wallet"

	_ "github.com/critterlabs/critterchain/vm/modules/critter"
	_ "github.com/critterlabs/critterchain/vm/modules/market"
)

// node bundles everything a validator needs for an in-memory chain.
type node struct {
	cfg     *config.Config
	bc      *core.Blockchain
	state   core.State
	mempool *core.Mempool
	emitter *events.Emitter
	engine  *consensus.PoA
}

func newNode(t *testing.T, cfg *config.Config, genesis *core.Block, w *wallet.Wallet) *node {
	state := testutil.NewStateDB()
	bc := core.NewBlockchain(testutil.NewMemBlockStore())
	require.NoError(t, bc.AddBlock(genesis))

	for addr, bal := range cfg.Genesis.Alloc {
		require.NoError(t, state.SetAccount(&core.Account{Address: addr, Balance: bal}))
	}
	require.NoError(t, state.Commit())

	emitter := events.NewEmitter()
	mempool := core.NewMempool()
	exec := vm.NewExecutor(state, nil, emitter)
	engine := consensus.New(cfg, bc, state, mempool, exec, emitter, w.PrivKey())
	return &node{cfg: cfg, bc: bc, state: state, mempool: mempool, emitter: emitter, engine: engine}
}

func TestProduceBlock(t *testing.T) {
	validator, err := wallet.Generate()
	require.NoError(t, err)
	alice, err := wallet.Generate()
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Validators = []string{validator.PubKey()}
	cfg.Genesis.Alloc = map[string]uint64{alice.PubKey(): 1000}

	genesis, err := config.CreateGenesisBlock(cfg, testutil.NewStateDB(), validator.PrivKey())
	require.NoError(t, err)

	n := newNode(t, cfg, genesis, validator)
	assert.True(t, n.engine.IsProposer())

	var committed []events.Event
	n.emitter.Subscribe(events.EventBlockCommit, func(ev events.Event) {
		committed = append(committed, ev)
	})

	tx, err := alice.CreateCritter(cfg.Genesis.ChainID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, n.mempool.Add(tx))

	block, err := n.engine.ProduceBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(1), block.Header.Height)
	assert.Equal(t, genesis.Hash, block.Header.PrevHash)
	assert.Len(t, block.Transactions, 1)
	assert.NotEmpty(t, block.Header.StateRoot)

	assert.Equal(t, int64(1), n.bc.Height())
	assert.Zero(t, n.mempool.Size(), "included txs leave the pool")

	count, err := n.state.CritterCount()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), count)
	owner, err := n.state.OwnerOf(0)
	require.NoError(t, err)
	assert.Equal(t, alice.PubKey(), owner)

	require.Len(t, committed, 1)
	assert.Equal(t, block.Hash, committed[0].Data["hash"])

	// A peer starting from the same genesis accepts the block.
	peer := newNode(t, cfg, genesis, alice)
	assert.NoError(t, peer.engine.ValidateBlock(block))
}

func TestProduceBlockRejectsNonProposer(t *testing.T) {
	validator, err := wallet.Generate()
	require.NoError(t, err)
	outsider, err := wallet.Generate()
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Validators = []string{validator.PubKey()}

	genesis, err := config.CreateGenesisBlock(cfg, testutil.NewStateDB(), validator.PrivKey())
	require.NoError(t, err)

	n := newNode(t, cfg, genesis, outsider)
	assert.False(t, n.engine.IsProposer())
	_, err = n.engine.ProduceBlock()
	assert.Error(t, err)
}

func TestValidateBlockRejectsWrongProposer(t *testing.T) {
	validator, err := wallet.Generate()
	require.NoError(t, err)
	impostor, err := wallet.Generate()
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Validators = []string{validator.PubKey()}

	genesis, err := config.CreateGenesisBlock(cfg, testutil.NewStateDB(), validator.PrivKey())
	require.NoError(t, err)
	n := newNode(t, cfg, genesis, validator)

	bad := core.NewBlock(1, genesis.Hash, impostor.PubKey(), nil)
	bad.Sign(impostor.PrivKey())
	assert.Error(t, n.engine.ValidateBlock(bad))
}

func TestFailingTxAbortsBlock(t *testing.T) {
	validator, err := wallet.Generate()
	require.NoError(t, err)
	alice, err := wallet.Generate()
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Validators = []string{validator.PubKey()}
	cfg.Genesis.Alloc = map[string]uint64{alice.PubKey(): 50} // below the creation escrow

	genesis, err := config.CreateGenesisBlock(cfg, testutil.NewStateDB(), validator.PrivKey())
	require.NoError(t, err)
	n := newNode(t, cfg, genesis, validator)

	tx, err := alice.CreateCritter(cfg.Genesis.ChainID, 0, 0)
	require.NoError(t, err)
	require.NoError(t, n.mempool.Add(tx))

	_, err = n.engine.ProduceBlock()
	assert.Error(t, err)
	assert.Equal(t, int64(0), n.bc.Height(), "no block is committed when a tx fails")

	acc, err := n.state.GetAccount(alice.PubKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(50), acc.Balance)
	assert.Zero(t, acc.Reserved)
}
