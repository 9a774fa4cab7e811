package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"optionforge/internal/domain"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(ticker|entry_date|seq|contract,contract,...)
// seq distinguishes trades opened on the same day (roll, additional entries).
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	ticker string,
	entryDate domain.Date,
	seq int,
	contracts []domain.ContractKey,
) string {
	parts := make([]string, len(contracts))
	for i, c := range contracts {
		parts[i] = c.String()
	}

	data := fmt.Sprintf("%s|%s|%d|%s",
		ticker,
		entryDate,
		seq,
		strings.Join(parts, ","),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
