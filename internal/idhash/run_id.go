package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"

	"signal-backtest-lab/internal/domain"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(symbol|interval|config|indicator_ids|first_ts|last_ts|bar_count)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(
	symbol string,
	interval string,
	cfg domain.BacktestConfig,
	indicatorIDs []string,
	firstTs int64,
	lastTs int64,
	barCount int,
) string {
	data := fmt.Sprintf("%s|%s|%v|%v|%v|%v|%s|%s|%v|%s|%d|%d|%d",
		symbol,
		interval,
		cfg.InitialCapital,
		cfg.PositionSize,
		cfg.StopLoss,
		cfg.TakeProfit,
		cfg.ThresholdMode,
		cfg.EndOfData,
		cfg.AnnualizationFactor,
		strings.Join(indicatorIDs, ","),
		firstTs,
		lastTs,
		barCount,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ShortID renders the first 8 bytes of a hex ID in base58 for logs and titles.
// Input that is not hex is returned unchanged.
func ShortID(hexID string) string {
	raw, err := hex.DecodeString(hexID)
	if err != nil || len(raw) == 0 {
		return hexID
	}
	if len(raw) > 8 {
		raw = raw[:8]
	}
	return base58.Encode(raw)
}
