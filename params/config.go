package params

import (
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Market holds the marketplace-wide listing and settlement parameters.
type Market struct {
	// MinPrice is the floor for a listing's whole-asset reference price.
	MinPrice decimal.Decimal

	// MinListingDuration is the minimum time between listing creation and
	// its deadline. Listings expiring sooner are rejected at creation.
	MinListingDuration time.Duration

	// FeeBps is the platform fee per fraction purchase, in basis points.
	// 10 bps = 0.1% of the fraction price.
	FeeBps int64

	// FeeRecipient receives the platform fee at settlement.
	FeeRecipient common.Address
}

// Payment describes the payment-currency ledger the node settles in.
type Payment struct {
	Name     string
	Symbol   string
	Decimals int32
}

// Domain is the EIP-712 domain separator for listing authorizations.
// Binding listing terms to a (name, version, chain) tuple prevents replaying
// a signature against a different deployment.
type Domain struct {
	Name    string
	Version string
	ChainID *big.Int
}

type Api struct {
	Listen string
}

type Node struct {
	DataDir string
	LogFile string
	// Devnet seeds a test asset, approval, and payment balances at startup
	// so the node is usable without an external chain.
	Devnet bool
}

type Config struct {
	Market  Market
	Payment Payment
	Domain  Domain
	Api     Api
	Node    Node
}

func Default() Config {
	return Config{
		Market: Market{
			MinPrice:           decimal.NewFromInt(1),
			MinListingDuration: 60 * time.Minute,
			FeeBps:             10,
			FeeRecipient:       common.HexToAddress("0x000000000000000000000000000000000000fEE5"),
		},
		Payment: Payment{
			Name:     "FracSwap USD",
			Symbol:   "FUSD",
			Decimals: 18,
		},
		Domain: Domain{
			Name:    "FracSwap",
			Version: "1",
			ChainID: big.NewInt(1337),
		},
		Api: Api{
			Listen: ":8080",
		},
		Node: Node{
			DataDir: "./data",
			LogFile: "data/node.log",
			Devnet:  true,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("MARKET_MIN_PRICE"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			cfg.Market.MinPrice = d
		}
	}
	if v := os.Getenv("MARKET_MIN_DURATION_MIN"); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			cfg.Market.MinListingDuration = time.Duration(m) * time.Minute
		}
	}
	if v := os.Getenv("MARKET_FEE_BPS"); v != "" {
		if bps, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Market.FeeBps = bps
		}
	}
	if v := os.Getenv("MARKET_FEE_RECIPIENT"); v != "" && common.IsHexAddress(v) {
		// The zero address is a valid hex string but not a usable fee
		// sink; keep the default rather than burning fees.
		if addr := common.HexToAddress(v); addr != (common.Address{}) {
			cfg.Market.FeeRecipient = addr
		}
	}

	if v := os.Getenv("DOMAIN_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Domain.ChainID = big.NewInt(id)
		}
	}

	if v := os.Getenv("API_LISTEN"); v != "" {
		cfg.Api.Listen = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Node.DataDir = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("DEVNET"); v != "" {
		cfg.Node.Devnet = v == "true"
	}

	return cfg
}
