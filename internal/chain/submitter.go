package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

type SubmitterConfig struct {
	// Fallback gas limit when estimation is unavailable for reasons other
	// than a predicted revert.
	GasCeiling uint64
	// Safety margin applied on top of a successful estimate, in percent.
	HeadroomPct uint64
	// How long to block for a receipt before reporting the outcome unknown.
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// Submitter signs and broadcasts transactions with the platform credential.
// Nonce resolution through broadcast runs under a credential-level mutex so
// concurrent submissions never collide on a nonce; the receipt wait happens
// outside that critical section.
type Submitter struct {
	backend Backend
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
	cfg     SubmitterConfig

	signMu sync.Mutex
}

func NewSubmitter(b Backend, privateKeyHex string, chainID *big.Int, cfg SubmitterConfig) (*Submitter, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse platform private key: %w", err)
	}
	if cfg.GasCeiling == 0 {
		cfg.GasCeiling = 3_000_000
	}
	if cfg.HeadroomPct == 0 {
		cfg.HeadroomPct = 20
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 2 * time.Minute
	}
	return &Submitter{
		backend: b,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		cfg:     cfg,
	}, nil
}

// From is the platform signing address.
func (s *Submitter) From() common.Address { return s.from }

// Submit signs and broadcasts the intent with the platform credential and
// blocks until mined or the confirmation timeout elapses.
//
// A transaction predicted to revert is never broadcast. A confirmed receipt
// with a failed status is a RevertedError carrying the hash. A timeout is a
// ConfirmationTimeoutError, which is neither success nor failure.
func (s *Submitter) Submit(ctx context.Context, intent CallIntent) (*Outcome, error) {
	value := intent.Value
	if value == nil {
		value = new(big.Int)
	}

	s.signMu.Lock()
	signed, err := s.buildAndSign(ctx, intent, value)
	if err != nil {
		s.signMu.Unlock()
		return nil, err
	}
	err = s.backend.SendTransaction(ctx, signed)
	s.signMu.Unlock()
	if err != nil {
		if reason, ok := RevertReason(err); ok {
			return nil, &WouldRevertError{Reason: reason}
		}
		return nil, fmt.Errorf("broadcast: %w", err)
	}

	outcome, err := WaitForReceipt(ctx, s.backend, signed.Hash(), s.cfg.ConfirmTimeout, s.cfg.PollInterval)
	if err != nil {
		return nil, err
	}
	if !outcome.Success {
		return outcome, &RevertedError{TxHash: outcome.TxHash}
	}
	return outcome, nil
}

// SubmitRaw broadcasts a counterpart-signed transaction and blocks for its
// receipt. No platform key or nonce is involved, so the signing mutex is not
// taken.
func (s *Submitter) SubmitRaw(ctx context.Context, signedHex string) (*Outcome, error) {
	hash, err := BroadcastRaw(ctx, s.backend, signedHex)
	if err != nil {
		return nil, err
	}
	outcome, err := WaitForReceipt(ctx, s.backend, hash, s.cfg.ConfirmTimeout, s.cfg.PollInterval)
	if err != nil {
		return nil, err
	}
	if !outcome.Success {
		return outcome, &RevertedError{TxHash: outcome.TxHash}
	}
	return outcome, nil
}

// buildAndSign resolves nonce and gas immediately before signing. Must be
// called with signMu held.
func (s *Submitter) buildAndSign(ctx context.Context, intent CallIntent, value *big.Int) (*gethtypes.Transaction, error) {
	nonce, err := s.backend.PendingNonceAt(ctx, s.from)
	if err != nil {
		return nil, fmt.Errorf("resolve nonce: %w", err)
	}
	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve gas price: %w", err)
	}

	msg := ethereum.CallMsg{From: s.from, To: intent.To, Value: value, Data: intent.Data}
	gasLimit, err := s.backend.EstimateGas(ctx, msg)
	switch {
	case err == nil:
		gasLimit += gasLimit * s.cfg.HeadroomPct / 100
	default:
		if reason, ok := RevertReason(err); ok {
			return nil, &WouldRevertError{Reason: reason}
		}
		// Estimation unavailable for some other reason (node timeout etc.)
		// must not block a legitimate operation.
		log.Printf("gas estimation failed, using ceiling %d: %v", s.cfg.GasCeiling, err)
		gasLimit = s.cfg.GasCeiling
	}

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       intent.To,
		Value:    value,
		Data:     intent.Data,
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}
