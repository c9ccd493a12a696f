package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeFillID computes a deterministic fill_id using SHA256.
// Formula: SHA256(mint|side|timestamp_ms|quantity)
// Returns hex-encoded hash (64 characters).
func ComputeFillID(mint, side string, timestampMs int64, quantity float64) string {
	data := fmt.Sprintf("%s|%s|%d|%.12f", mint, side, timestampMs, quantity)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
