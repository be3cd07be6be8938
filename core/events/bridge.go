package events

import (
	"math/big"
	"strconv"
)

const (
	// TypeBridgeAdded is emitted when a bridge limit entry is created.
	TypeBridgeAdded = "bridge.added"
	// TypeBridgeRemoved is emitted when a bridge limit entry is zeroed.
	TypeBridgeRemoved = "bridge.removed"
	// TypeBridgeLimitsUpdated is emitted when a bridge's cap or rate changes.
	TypeBridgeLimitsUpdated = "bridge.limits_updated"
)

// BridgeAdded records the creation of a rate-limited bridge entry.
type BridgeAdded struct {
	Bridge             [20]byte
	BufferCap          *big.Int
	RateLimitPerSecond *big.Int
}

func (BridgeAdded) EventType() string { return TypeBridgeAdded }

func (e BridgeAdded) Attributes() map[string]string {
	return map[string]string{
		"bridge":             addrString(e.Bridge),
		"bufferCap":          amountString(e.BufferCap),
		"rateLimitPerSecond": amountString(e.RateLimitPerSecond),
	}
}

// BridgeRemoved records the removal of a bridge entry.
type BridgeRemoved struct {
	Bridge [20]byte
}

func (BridgeRemoved) EventType() string { return TypeBridgeRemoved }

func (e BridgeRemoved) Attributes() map[string]string {
	return map[string]string{"bridge": addrString(e.Bridge)}
}

// BridgeLimitsUpdated records a change to a bridge's buffer cap or rate.
type BridgeLimitsUpdated struct {
	Bridge             [20]byte
	BufferCap          *big.Int
	RateLimitPerSecond *big.Int
	LastUpdated        int64
}

func (BridgeLimitsUpdated) EventType() string { return TypeBridgeLimitsUpdated }

func (e BridgeLimitsUpdated) Attributes() map[string]string {
	return map[string]string{
		"bridge":             addrString(e.Bridge),
		"bufferCap":          amountString(e.BufferCap),
		"rateLimitPerSecond": amountString(e.RateLimitPerSecond),
		"lastUpdated":        strconv.FormatInt(e.LastUpdated, 10),
	}
}
