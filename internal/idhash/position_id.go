package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"

	"optionforge/internal/domain"
)

// ComputePositionID computes a compact deterministic position id.
// Formula: base58(SHA256(trade_id|leg_index|contract)[:16])
func ComputePositionID(tradeID string, legIndex int, contract domain.ContractKey) string {
	data := fmt.Sprintf("%s|%d|%s", tradeID, legIndex, contract)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:16])
}
