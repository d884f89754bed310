package loan

import "errors"

var (
	ErrNotFound = errors.New("loan not found")

	// ErrIllegalTransition covers both status moves outside the state machine
	// and reattempts of steps that already completed (a tx hash already set).
	ErrIllegalTransition = errors.New("operation not allowed in current loan status")

	// ErrPreconditionFailed is a local or on-chain precondition rejected before
	// any transaction was produced: missing counterpart wallet, missing
	// configuration, collateral not provided, loan term not yet elapsed.
	ErrPreconditionFailed = errors.New("precondition failed")
)
