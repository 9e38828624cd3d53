package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/fracswap/fracswap/params"
	"github.com/fracswap/fracswap/pkg/api"
	"github.com/fracswap/fracswap/pkg/app/assets"
	"github.com/fracswap/fracswap/pkg/app/market"
	"github.com/fracswap/fracswap/pkg/app/token"
	"github.com/fracswap/fracswap/pkg/crypto"
	"github.com/fracswap/fracswap/pkg/storage"
	"github.com/fracswap/fracswap/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile)

	// ---- Storage ----
	store, err := storage.NewStore(filepath.Join(cfg.Node.DataDir, "fracswap.db"))
	if err != nil {
		sugar.Fatalw("storage_init_failed", "err", err)
	}
	defer store.Close()

	// ---- Marketplace components ----
	assetReg := assets.NewRegistry(store, logger)
	factory := token.NewFactory(store, logger)
	lsigner := crypto.NewListingSigner(crypto.Domain{
		Name:    cfg.Domain.Name,
		Version: cfg.Domain.Version,
		ChainID: cfg.Domain.ChainID,
	})

	reg, err := market.NewRegistry(store, assetReg, factory, lsigner, cfg.Market, util.RealClock{}, logger)
	if err != nil {
		sugar.Fatalw("registry_init_failed", "err", err)
	}

	bank, bankAuth, err := openBank(store, factory, cfg.Payment)
	if err != nil {
		sugar.Fatalw("payment_ledger_init_failed", "err", err)
	}
	sugar.Infow("payment_ledger_ready",
		"symbol", bank.Symbol(),
		"ledger_id", bank.LedgerID())

	engine := market.NewEngine(reg, bank, cfg.Market, logger)

	// ---- Devnet seeding ----
	var faucetAuth *token.Authority
	if cfg.Node.Devnet {
		faucetAuth = bankAuth
		if err := seedDevnet(assetReg, bankAuth); err != nil {
			sugar.Warnw("devnet_seed_failed", "err", err)
		} else {
			sugar.Infow("devnet_seeded",
				"collection", devCollection.Hex(),
				"seller", devSeller.Hex(),
				"marketplace", market.OperatorAddress().Hex())
		}
	}

	// ---- API ----
	server := api.NewServer(reg, engine, bank, faucetAuth)
	reg.SetSink(server)

	go func() {
		if err := server.Start(cfg.Api.Listen); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()
	sugar.Infow("node_started", "listen", cfg.Api.Listen, "devnet", cfg.Node.Devnet)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	sugar.Info("shutting down")
}

// bankSeedKey records the payment ledger id so restarts reopen the same
// ledger instead of minting a fresh one.
var bankSeedKey = []byte("seq:bank")

func openBank(store *storage.Store, factory *token.Factory, cfg params.Payment) (*token.Token, *token.Authority, error) {
	var ledgerID string
	found, err := store.GetJSON(bankSeedKey, &ledgerID)
	if err != nil {
		return nil, nil, err
	}
	if found {
		return factory.Open(ledgerID)
	}

	bank, auth, err := factory.Create(cfg.Name, cfg.Symbol, cfg.Decimals)
	if err != nil {
		return nil, nil, err
	}
	if err := store.PutJSON(bankSeedKey, bank.LedgerID()); err != nil {
		return nil, nil, err
	}
	return bank, auth, nil
}

// Well-known devnet identities. The seller key is deliberately public:
// 0x0000...0001 is the classic dev key.
var (
	devCollection = common.HexToAddress("0x00000000000000000000000000000000000000c0")
	devSeller     = common.HexToAddress("0x7E5F4552091A69125d5DfCb7b8C2659029395Bdf") // key 0x...01
	devBuyer      = common.HexToAddress("0x2B5AD5c4795c026514f8317c7a215E218DcCD6cF") // key 0x...02
)

// seedDevnet mints a test asset to the dev seller, pre-approves the
// marketplace, and credits both dev accounts so the full lifecycle can run
// against a fresh node. Re-seeding an existing store is a no-op.
func seedDevnet(assetReg *assets.Registry, bankAuth *token.Authority) error {
	if _, err := assetReg.OwnerOf(devCollection, 1); err == nil {
		return nil
	}

	if err := assetReg.Mint(devCollection, 1, devSeller); err != nil {
		return err
	}
	if err := assetReg.SetApprovalForAll(devSeller, market.OperatorAddress(), true); err != nil {
		return err
	}

	grant := decimal.NewFromInt(10_000)
	if err := bankAuth.Mint(devSeller, grant); err != nil {
		return err
	}
	return bankAuth.Mint(devBuyer, grant)
}
