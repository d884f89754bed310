package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"lendingchain-backend/internal/chain"
)

// viewBackend answers eth_call by method selector; everything else is unused.
type viewBackend struct {
	answers map[string][]byte // selector hex -> return data
	err     error
}

func (b *viewBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(msg.Data) < 4 {
		return nil, errors.New("short calldata")
	}
	out, ok := b.answers[common.Bytes2Hex(msg.Data[:4])]
	if !ok {
		return nil, errors.New("unexpected call")
	}
	return out, nil
}

func (b *viewBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 0, errors.New("unused")
}
func (b *viewBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return nil, errors.New("unused")
}
func (b *viewBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 0, errors.New("unused")
}
func (b *viewBackend) SendTransaction(context.Context, *gethtypes.Transaction) error {
	return errors.New("unused")
}
func (b *viewBackend) TransactionByHash(context.Context, common.Hash) (*gethtypes.Transaction, bool, error) {
	return nil, false, errors.New("unused")
}
func (b *viewBackend) TransactionReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	return nil, errors.New("unused")
}
func (b *viewBackend) HeaderByNumber(context.Context, *big.Int) (*gethtypes.Header, error) {
	return nil, errors.New("unused")
}
func (b *viewBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return nil, errors.New("unused")
}

func selector(t *testing.T, a abi.ABI, method string, args ...interface{}) string {
	t.Helper()
	data, err := a.Pack(method, args...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	return common.Bytes2Hex(data[:4])
}

func encodeView(t *testing.T, method string, vals ...interface{}) []byte {
	t.Helper()
	m, ok := P2PLoanABI.Methods[method]
	if !ok {
		t.Fatalf("unknown method %s", method)
	}
	out, err := m.Outputs.Pack(vals...)
	if err != nil {
		t.Fatalf("encode %s result: %v", method, err)
	}
	return out
}

var target = common.HexToAddress("0x5555555555555555555555555555555555555555")

func TestReader_BoolAndUintViews(t *testing.T) {
	b := &viewBackend{answers: map[string][]byte{
		selector(t, P2PLoanABI, "isDisbursed"):          encodeView(t, "isDisbursed", true),
		selector(t, P2PLoanABI, "isRepaid"):             encodeView(t, "isRepaid", false),
		selector(t, P2PLoanABI, "isLiquidated"):         encodeView(t, "isLiquidated", false),
		selector(t, P2PLoanABI, "isCollateralProvided"): encodeView(t, "isCollateralProvided", true),
		selector(t, P2PLoanABI, "loanEndTime"):          encodeView(t, "loanEndTime", big.NewInt(1_750_000_000)),
	}}
	r := NewReader(b)
	ctx := context.Background()

	if got, err := r.IsDisbursed(ctx, target); err != nil || !got {
		t.Fatalf("isDisbursed: got %v, %v", got, err)
	}
	if got, err := r.IsRepaid(ctx, target); err != nil || got {
		t.Fatalf("isRepaid: got %v, %v", got, err)
	}
	if got, err := r.IsCollateralProvided(ctx, target); err != nil || !got {
		t.Fatalf("isCollateralProvided: got %v, %v", got, err)
	}
	if got, err := r.LoanEndTime(ctx, target); err != nil || got != 1_750_000_000 {
		t.Fatalf("loanEndTime: got %d, %v", got, err)
	}
}

func TestReader_CallFailureWrapsChainCall(t *testing.T) {
	r := NewReader(&viewBackend{err: errors.New("node down")})
	if _, err := r.IsDisbursed(context.Background(), target); !errors.Is(err, chain.ErrChainCall) {
		t.Fatalf("want ErrChainCall, got %v", err)
	}
}

func TestReader_UnavailabilitySurvivesWrap(t *testing.T) {
	dial := fmt.Errorf("%w: dial tcp: connection refused", chain.ErrChainUnavailable)
	r := NewReader(&viewBackend{err: dial})

	_, err := r.IsDisbursed(context.Background(), target)
	if !errors.Is(err, chain.ErrChainCall) {
		t.Fatalf("want ErrChainCall, got %v", err)
	}
	if !errors.Is(err, chain.ErrChainUnavailable) {
		t.Fatalf("unavailability must stay matchable through the wrap, got %v", err)
	}
}

func TestReader_TokenBalance(t *testing.T) {
	holder := common.HexToAddress("0x6666666666666666666666666666666666666666")

	balOut, err := ERC20ABI.Methods["balanceOf"].Outputs.Pack(big.NewInt(42_000))
	if err != nil {
		t.Fatal(err)
	}
	decOut, err := ERC20ABI.Methods["decimals"].Outputs.Pack(uint8(6))
	if err != nil {
		t.Fatal(err)
	}
	symOut, err := ERC20ABI.Methods["symbol"].Outputs.Pack("USDC")
	if err != nil {
		t.Fatal(err)
	}

	b := &viewBackend{answers: map[string][]byte{
		selector(t, ERC20ABI, "balanceOf", holder): balOut,
		selector(t, ERC20ABI, "decimals"):          decOut,
		selector(t, ERC20ABI, "symbol"):            symOut,
	}}
	r := NewReader(b)

	bal, decimals, symbol, err := r.TokenBalance(context.Background(), target, holder)
	if err != nil {
		t.Fatalf("token balance: %v", err)
	}
	if bal.Cmp(big.NewInt(42_000)) != 0 {
		t.Fatalf("balance: got %s", bal)
	}
	if decimals != 6 || symbol != "USDC" {
		t.Fatalf("metadata: got %d %s", decimals, symbol)
	}
}

func TestABIsParse(t *testing.T) {
	if len(P2PLoanABI.Constructor.Inputs) != 8 {
		t.Fatalf("constructor arity: got %d", len(P2PLoanABI.Constructor.Inputs))
	}
	for _, m := range []string{"fundLoan", "provideCollateral", "repayLoan", "liquidateCollateral"} {
		if _, ok := P2PLoanABI.Methods[m]; !ok {
			t.Fatalf("missing method %s", m)
		}
	}
}
