package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// dataError matches the JSON-RPC error geth returns for simulated reverts,
// carrying the ABI-encoded Error(string) payload.
type dataError interface {
	Error() string
	ErrorData() interface{}
}

// RevertReason inspects a node error from gas estimation or eth_call and, if
// it represents a simulated revert, extracts the human-readable reason.
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var de dataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if raw, decErr := hexutil.Decode(s); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason, true
				}
			}
		}
		if isRevertMessage(de.Error()) {
			return de.Error(), true
		}
	}
	if isRevertMessage(err.Error()) {
		return err.Error(), true
	}
	return "", false
}

func isRevertMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "execution reverted") || strings.Contains(m, "always failing transaction")
}
