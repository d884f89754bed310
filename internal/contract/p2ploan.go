// Package contract binds the P2PLoan smart contract: ABI, constructor
// parameter conversion, deployment, and the read-only view surface used for
// preconditions and reconciliation.
package contract

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI of the per-loan P2PLoan contract. One instance is deployed per loan;
// the constructor freezes parties, amounts and assets for its lifetime.
const p2pLoanABIJSON = `[
  {
    "inputs": [
      {"internalType": "address payable", "name": "_lender", "type": "address"},
      {"internalType": "address payable", "name": "_borrower", "type": "address"},
      {"internalType": "uint256", "name": "_loanAmount", "type": "uint256"},
      {"internalType": "uint256", "name": "_collateralAmount", "type": "uint256"},
      {"internalType": "uint256", "name": "_interestRate", "type": "uint256"},
      {"internalType": "uint256", "name": "_loanDuration", "type": "uint256"},
      {"internalType": "address payable", "name": "_loanAssetAddress", "type": "address"},
      {"internalType": "address payable", "name": "_collateralAssetAddress", "type": "address"}
    ],
    "stateMutability": "nonpayable",
    "type": "constructor"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "_lender", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "_collateralAmount", "type": "uint256"}
    ],
    "name": "CollateralLiquidated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "_borrower", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "_collateralAmount", "type": "uint256"}
    ],
    "name": "CollateralReleased",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "_borrower", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "_lender", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "_amount", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "_disbursementTime", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "_endTime", "type": "uint256"}
    ],
    "name": "LoanDisbursed",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "_borrower", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "_amountPaid", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "_remainingDue", "type": "uint256"}
    ],
    "name": "RepaymentMade",
    "type": "event"
  },
  {"inputs": [], "name": "borrower", "outputs": [{"internalType": "address payable", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "calculateAmountDue", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "collateralAmount", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "collateralAssetAddress", "outputs": [{"internalType": "address payable", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "fundLoan", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [], "name": "interestRate", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "isCollateralProvided", "outputs": [{"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "isDisbursed", "outputs": [{"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "isLiquidated", "outputs": [{"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "isRepaid", "outputs": [{"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "lender", "outputs": [{"internalType": "address payable", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "liquidateCollateral", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [], "name": "loanAmount", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "loanAssetAddress", "outputs": [{"internalType": "address payable", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "loanDuration", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "loanEndTime", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "loanStartTime", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "provideCollateral", "outputs": [], "stateMutability": "payable", "type": "function"},
  {"inputs": [], "name": "repayLoan", "outputs": [], "stateMutability": "payable", "type": "function"}
]`

const erc20ABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"internalType": "string", "name": "", "type": "string"}], "stateMutability": "view", "type": "function"}
]`

var (
	// P2PLoanABI is parsed once at startup; the JSON above is a compile-time
	// constant so a parse failure is a programming error.
	P2PLoanABI = mustParseABI(p2pLoanABIJSON)
	ERC20ABI   = mustParseABI(erc20ABIJSON)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("contract: invalid ABI: " + err.Error())
	}
	return parsed
}
