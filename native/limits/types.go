package limits

import (
	"math/big"

	"bridgeledger/native/common"
)

// Storage abstracts the subset of state manager functionality required by the
// bridge limit registry.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

var (
	// MinBufferCap is the exclusive floor for a bridge's buffer cap. A bridge
	// with a cap at or below this value cannot be registered, and a stored cap
	// of zero marks the bridge as unregistered.
	MinBufferCap = big.NewInt(1_000)

	// MaxRateLimitPerSecond bounds how fast any single bridge may replenish.
	MaxRateLimitPerSecond = common.MustParseAmount("25_000_000e18")

	// Buffer fields persist within fixed widths: caps and stored buffers fit
	// 112 bits, rates fit 128 bits. Writes beyond these bounds are rejected
	// rather than truncated.
	maxBufferBits = 112
	maxRateBits   = 128
)

// BridgeLimit describes the rate-limit state tracked for a single bridge.
type BridgeLimit struct {
	Bridge             [20]byte
	BufferCap          *big.Int
	RateLimitPerSecond *big.Int
	BufferStored       *big.Int
	LastUpdated        int64
}

// Copy returns a deep copy to avoid callers mutating shared pointers.
func (b *BridgeLimit) Copy() *BridgeLimit {
	if b == nil {
		return nil
	}
	clone := *b
	if b.BufferCap != nil {
		clone.BufferCap = new(big.Int).Set(b.BufferCap)
	}
	if b.RateLimitPerSecond != nil {
		clone.RateLimitPerSecond = new(big.Int).Set(b.RateLimitPerSecond)
	}
	if b.BufferStored != nil {
		clone.BufferStored = new(big.Int).Set(b.BufferStored)
	}
	return &clone
}

type storedBridgeLimit struct {
	BufferCap          *big.Int
	RateLimitPerSecond *big.Int
	BufferStored       *big.Int
	LastUpdated        uint64
}

func toStoredLimit(limit *BridgeLimit) storedBridgeLimit {
	stored := storedBridgeLimit{
		BufferCap:          big.NewInt(0),
		RateLimitPerSecond: big.NewInt(0),
		BufferStored:       big.NewInt(0),
	}
	if limit == nil {
		return stored
	}
	if limit.BufferCap != nil {
		stored.BufferCap = new(big.Int).Set(limit.BufferCap)
	}
	if limit.RateLimitPerSecond != nil {
		stored.RateLimitPerSecond = new(big.Int).Set(limit.RateLimitPerSecond)
	}
	if limit.BufferStored != nil {
		stored.BufferStored = new(big.Int).Set(limit.BufferStored)
	}
	if limit.LastUpdated > 0 {
		stored.LastUpdated = uint64(limit.LastUpdated)
	}
	return stored
}

func fromStoredLimit(bridge [20]byte, stored *storedBridgeLimit) *BridgeLimit {
	limit := &BridgeLimit{
		Bridge:             bridge,
		BufferCap:          big.NewInt(0),
		RateLimitPerSecond: big.NewInt(0),
		BufferStored:       big.NewInt(0),
	}
	if stored == nil {
		return limit
	}
	if stored.BufferCap != nil {
		limit.BufferCap = new(big.Int).Set(stored.BufferCap)
	}
	if stored.RateLimitPerSecond != nil {
		limit.RateLimitPerSecond = new(big.Int).Set(stored.RateLimitPerSecond)
	}
	if stored.BufferStored != nil {
		limit.BufferStored = new(big.Int).Set(stored.BufferStored)
	}
	limit.LastUpdated = int64(stored.LastUpdated)
	return limit
}
