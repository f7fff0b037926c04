// Command critterd runs a critterchain node.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/critterlabs/critterchain/config"
	"github.com/critterlabs/critterchain/consensus"
	"github.com/critterlabs/critterchain/core"
	"github.com/critterlabs/critterchain/crypto/certgen"
	"github.com/critterlabs/critterchain/events"
	"github.com/critterlabs/critterchain/indexer"
	"github.com/critterlabs/critterchain/network"
	"github.com/critterlabs/critterchain/rpc"
	"github.com/critterlabs/critterchain/storage"
	"github.com/critterlabs/critterchain/vm"
	"github.com/critterlabs/critterchain/wallet"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/critterlabs/critterchain/vm/modules/critter"
	_ "github.com/critterlabs/critterchain/vm/modules/economy"
	_ "github.com/critterlabs/critterchain/vm/modules/market"
)

var (
	cfgPath string
	keyPath string
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	root := &cobra.Command{
		Use:          "critterd",
		Short:        "critterd runs a critterchain validator node",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode()
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.json", "path to config file")
	root.PersistentFlags().StringVar(&keyPath, "key", "validator.key", "path to keystore file")

	genkey := &cobra.Command{
		Use:   "genkey",
		Short: "generate a new validator key and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := wallet.Generate()
			if err != nil {
				return err
			}
			if err := wallet.SaveKey(keyPath, keystorePassword(), w.PrivKey()); err != nil {
				return err
			}
			fmt.Printf("Generated key. Public key (validator address): %s\n", w.PubKey())
			fmt.Printf("Saved to: %s\n", keyPath)
			return nil
		},
	}

	gencerts := &cobra.Command{
		Use:   "gencerts <dir>",
		Short: "generate CA + node TLS certs into the given directory and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if err := certgen.GenerateAll(args[0], cfg.NodeID, nil); err != nil {
				return err
			}
			fmt.Printf("Certificates generated in %s for node %q\n", args[0], cfg.NodeID)
			return nil
		},
	}

	root.AddCommand(genkey, gencerts)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// keystorePassword reads the keystore password from the environment;
// CLI flags would leak it via ps.
func keystorePassword() string {
	password := os.Getenv("CRITTERD_PASSWORD")
	if password == "" {
		log.Warn().Msg("CRITTERD_PASSWORD not set, keystore will use an empty password")
	}
	return password
}

func runNode() error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	privKey, err := wallet.LoadKey(keyPath, keystorePassword())
	if err != nil {
		return fmt.Errorf("load key: %w", err)
	}

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("mkdir data dir: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	// Same DB backs state and blocks under different key prefixes.
	state := storage.NewStateDB(db)
	blockStore := storage.NewLevelBlockStore(db)

	bc := core.NewBlockchain(blockStore)
	if err := bc.Init(); err != nil {
		return fmt.Errorf("blockchain init: %w", err)
	}

	// ---- genesis block (if fresh chain) ----
	if bc.Tip() == nil {
		genesisBlock, err := config.CreateGenesisBlock(cfg, state, privKey)
		if err != nil {
			return fmt.Errorf("genesis: %w", err)
		}
		if err := bc.AddBlock(genesisBlock); err != nil {
			return fmt.Errorf("add genesis: %w", err)
		}
		log.Info().Str("hash", genesisBlock.Hash).Msg("genesis block committed")
	}

	emitter := events.NewEmitter()
	idx := indexer.New(db, emitter)
	mempool := core.NewMempool()
	exec := vm.NewExecutor(state, core.Blake2Randomness{}, emitter)
	poa := consensus.New(cfg, bc, state, mempool, exec, emitter, privKey)

	// ---- TLS ----
	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	if tlsCfg != nil {
		log.Info().Msg("mTLS enabled for P2P")
	}

	// ---- network ----
	p2pAddr := fmt.Sprintf(":%d", cfg.P2PPort)
	node := network.NewNode(cfg.NodeID, p2pAddr, mempool, tlsCfg)
	syncer := network.NewSyncer(node, bc, poa, exec, state)
	if err := node.Start(); err != nil {
		return fmt.Errorf("p2p start: %w", err)
	}
	defer node.Stop()
	log.Info().Str("addr", p2pAddr).Msg("P2P listening")

	// ---- connect to seed peers ----
	for _, sp := range cfg.SeedPeers {
		if err := node.AddPeer(sp.ID, sp.Addr); err != nil {
			log.Warn().Err(err).Str("peer", sp.ID).Str("addr", sp.Addr).Msg("seed peer")
			continue
		}
		// Trigger initial block sync with the newly connected peer.
		if peer := node.Peer(sp.ID); peer != nil {
			syncer.SyncWithPeer(peer)
		}
		log.Info().Str("peer", sp.ID).Str("addr", sp.Addr).Msg("connected to seed peer")
	}

	// ---- RPC ----
	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcHandler := rpc.NewHandler(bc, mempool, state, idx, cfg.Genesis.ChainID)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, cfg.RPCAuthToken)
	if err := rpcServer.Start(); err != nil {
		return fmt.Errorf("rpc start: %w", err)
	}
	defer rpcServer.Stop()
	log.Info().Str("addr", rpcAddr).Msg("RPC listening")
	if cfg.RPCAuthToken != "" {
		log.Info().Msg("RPC Bearer token authentication enabled")
	}

	// ---- consensus loop ----
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poa.Run(2*time.Second, done)
	}()
	log.Info().Str("validator", privKey.Public().Hex()).Msg("consensus running")

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info().Msg("shutting down")

	// Stop consensus first so no new blocks are written; deferred calls then
	// run LIFO: rpcServer.Stop → node.Stop → db.Close.
	close(done)
	wg.Wait()
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", path).Msg("config file not found, using defaults")
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}
