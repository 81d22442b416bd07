package idhash

import (
	"fmt"

	"github.com/google/uuid"
)

// tradeNamespace scopes trade UUIDs to this tool.
var tradeNamespace = uuid.MustParse("8a4f2c1e-6b7d-4e3a-9c5b-2d1e0f3a4b6c")

// ComputeTradeID computes a deterministic trade_id as a name-based (SHA-1) UUID.
// Formula: UUIDv5(namespace, run_id|entry_time|exit_time)
func ComputeTradeID(runID string, entryTimeMs, exitTimeMs int64) string {
	data := fmt.Sprintf("%s|%d|%d", runID, entryTimeMs, exitTimeMs)
	return uuid.NewSHA1(tradeNamespace, []byte(data)).String()
}
