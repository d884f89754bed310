package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	AppPort string

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	// Chain connectivity and the platform signing credential.
	Web3RPCURL         string
	Web3ChainID        int64
	PlatformPrivateKey string

	// Platform defaults for the ERC-20 assets a loan contract is deployed
	// against; a loan may carry its own overrides.
	DefaultLoanAssetAddress       string
	DefaultCollateralAssetAddress string

	// P2PLoan creation bytecode, hex, loaded from this file at startup.
	ContractBytecodeFile string

	// Collateral requirement as a multiple of principal.
	CollateralRatio decimal.Decimal

	GasLimitCeiling  uint64
	GasHeadroomPct   uint64
	ConfirmTimeout   time.Duration
	ReceiptPollEvery time.Duration
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func Load() *Config {
	c := &Config{
		AppPort:   getenv("APP_PORT", "8080"),
		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "lendingchain"),
		MySQLUser: getenv("MYSQL_USER", "lendingchain"),
		MySQLPass: getenv("MYSQL_PASS", "lendingchain"),

		RedisAddr:    getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:      getenvInt("REDIS_DB", 0),
		IdempTTLSecs: getenvInt("IDEMPOTENCY_TTL_SECONDS", 300),

		Web3RPCURL:         os.Getenv("WEB3_RPC_URL"),
		Web3ChainID:        int64(getenvInt("WEB3_CHAIN_ID", 11155111)), // Sepolia
		PlatformPrivateKey: os.Getenv("PLATFORM_PRIVATE_KEY"),

		DefaultLoanAssetAddress:       os.Getenv("LOAN_ASSET_ADDRESS"),
		DefaultCollateralAssetAddress: os.Getenv("COLLATERAL_ASSET_ADDRESS"),
		ContractBytecodeFile:          os.Getenv("CONTRACT_BYTECODE_FILE"),

		CollateralRatio: decimal.NewFromFloat(1.5),

		GasLimitCeiling:  uint64(getenvInt("GAS_LIMIT_CEILING", 3_000_000)),
		GasHeadroomPct:   uint64(getenvInt("GAS_HEADROOM_PCT", 20)),
		ConfirmTimeout:   time.Duration(getenvInt("TX_CONFIRM_TIMEOUT_SECONDS", 120)) * time.Second,
		ReceiptPollEvery: time.Duration(getenvInt("RECEIPT_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
	}
	if v := os.Getenv("COLLATERAL_RATIO"); v != "" {
		if r, err := decimal.NewFromString(v); err == nil && r.IsPositive() {
			c.CollateralRatio = r
		}
	}
	return c
}

func (c *Config) Validate() error {
	if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
		return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
	}
	if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
		return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
	}
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	if c.Web3RPCURL == "" {
		return errors.New("missing WEB3_RPC_URL")
	}
	if c.PlatformPrivateKey == "" {
		return errors.New("missing PLATFORM_PRIVATE_KEY")
	}
	if c.Web3ChainID <= 0 {
		return errors.New("invalid WEB3_CHAIN_ID")
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// multiStatements=true is handy for migrations; parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?multiStatements=true&parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}
