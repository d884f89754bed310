package main

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	httpadp "lendingchain-backend/internal/adapter/http"
	"lendingchain-backend/internal/adapter/middleware"
	"lendingchain-backend/internal/adapter/repository/mysql"
	"lendingchain-backend/internal/chain"
	"lendingchain-backend/internal/config"
	"lendingchain-backend/internal/contract"
	loanDomain "lendingchain-backend/internal/domain/loan"
	"lendingchain-backend/internal/infrastructure/cache"
	"lendingchain-backend/internal/infrastructure/db"
	loanUC "lendingchain-backend/internal/usecase/loan"
	"lendingchain-backend/internal/usecase/orchestrator"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	gdb, err := db.OpenGorm(cfg.MySQLDSN())
	if err != nil {
		log.Fatalf("mysql: %v", err)
	}
	if err := gdb.AutoMigrate(&loanDomain.Loan{}); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}

	client := chain.NewClient(chain.Config{RPCURL: cfg.Web3RPCURL, ChainID: cfg.Web3ChainID})
	submitter, err := chain.NewSubmitter(client, cfg.PlatformPrivateKey, client.ChainID(), chain.SubmitterConfig{
		GasCeiling:     cfg.GasLimitCeiling,
		HeadroomPct:    cfg.GasHeadroomPct,
		ConfirmTimeout: cfg.ConfirmTimeout,
		PollInterval:   cfg.ReceiptPollEvery,
	})
	if err != nil {
		log.Fatalf("submitter: %v", err)
	}
	log.Printf("platform signer: %s", submitter.From().Hex())

	bytecode := loadBytecode(cfg.ContractBytecodeFile)
	deployer := contract.NewDeployer(submitter, bytecode, cfg.CollateralRatio)
	reader := contract.NewReader(client)

	repo := mysql.NewLoanRepository(gdb)
	uow := mysql.NewGormUoW(gdb)

	intake := loanUC.NewUsecase(repo)
	orch := orchestrator.NewUsecase(repo, uow, submitter, deployer, reader, client, orchestrator.Config{
		DefaultLoanAsset:       cfg.DefaultLoanAssetAddress,
		DefaultCollateralAsset: cfg.DefaultCollateralAssetAddress,
	})

	h := httpadp.NewHandler(client)
	loanH := httpadp.NewLoanHandler(intake)
	orchH := httpadp.NewOrchestratorHandler(orch)
	walletH := httpadp.NewWalletHandler(client, reader)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Logger(), echomw.Recover())

	idemp := middleware.Idempotency(rdb, time.Duration(cfg.IdempTTLSecs)*time.Second)

	e.GET("/health", h.Health)

	e.GET("/loans", loanH.ListLoans)
	e.GET("/loans/:loan_id", loanH.GetLoan)
	e.POST("/loans", loanH.CreateLoan, idemp)

	e.POST("/loans/:loan_id/approve", orchH.ApproveLoan, idemp)
	e.POST("/loans/:loan_id/reject", orchH.RejectLoan, idemp)
	e.POST("/loans/:loan_id/collateral", orchH.ProvideCollateral, idemp)
	e.POST("/loans/:loan_id/fund", orchH.FundLoan, idemp)
	e.POST("/loans/:loan_id/repay", orchH.RepayLoan, idemp)
	e.POST("/loans/:loan_id/liquidate", orchH.LiquidateLoan, idemp)
	e.POST("/loans/:loan_id/overdue", orchH.MarkOverdue, idemp)
	e.POST("/loans/:loan_id/adopt-deployment", orchH.AdoptDeployment, idemp)
	e.POST("/loans/:loan_id/adopt-step", orchH.AdoptStep, idemp)
	e.POST("/loans/:loan_id/reconcile", orchH.ReconcileLoan)

	e.GET("/wallets/:address/balance", walletH.NativeBalance)
	e.GET("/wallets/:address/tokens/:token", walletH.TokenBalance)

	addr := ":" + cfg.AppPort
	log.Printf("listening on %s", addr)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

// loadBytecode reads the P2PLoan creation bytecode from the configured file.
// Missing bytecode is not fatal at startup; approvals fail cleanly until it
// is provided.
func loadBytecode(path string) []byte {
	if path == "" {
		log.Println("CONTRACT_BYTECODE_FILE not set; loan approval is disabled")
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Printf("bytecode: read %s failed: %v; loan approval is disabled", path, err)
		return nil
	}
	code, err := decodeBytecode(string(raw))
	if err != nil {
		log.Printf("bytecode: %v; loan approval is disabled", err)
		return nil
	}
	return code
}

func decodeBytecode(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	return hexutil.Decode("0x" + s)
}
