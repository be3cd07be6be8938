package limits

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"bridgeledger/core/events"
)

var bridgeLimitPrefix = []byte("limits/bridge/")

func bridgeKey(bridge [20]byte) []byte {
	suffix := hex.EncodeToString(bridge[:])
	key := make([]byte, len(bridgeLimitPrefix)+len(suffix))
	copy(key, bridgeLimitPrefix)
	copy(key[len(bridgeLimitPrefix):], suffix)
	return key
}

// Registry manages the per-bridge rate limit entries and the deplete/replenish
// state transition built on the buffer policy.
type Registry struct {
	st      Storage
	emitter events.Emitter
	clock   func() time.Time
}

// NewRegistry creates a registry backed by the provided storage adapter.
func NewRegistry(st Storage) *Registry {
	return &Registry{st: st, emitter: events.NoopEmitter{}, clock: time.Now}
}

// SetEmitter configures the event emitter used to broadcast limit changes.
// Passing nil resets the emitter to a no-op implementation.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if r == nil {
		return
	}
	if emitter == nil {
		r.emitter = events.NoopEmitter{}
		return
	}
	r.emitter = emitter
}

// SetClock overrides the time source, enabling deterministic unit tests.
func (r *Registry) SetClock(clock func() time.Time) {
	if r == nil || clock == nil {
		return
	}
	r.clock = clock
}

func (r *Registry) now() int64 {
	return r.clock().UTC().Unix()
}

func checkWidth(value *big.Int, bits int) error {
	if value == nil {
		return nil
	}
	if value.Sign() < 0 {
		return fmt.Errorf("%w: negative value", ErrValueTooWide)
	}
	if value.BitLen() > bits {
		return fmt.Errorf("%w: need %d bits, limit is %d", ErrValueTooWide, value.BitLen(), bits)
	}
	return nil
}

var zeroBridge [20]byte

// Limit returns the stored entry for the bridge without accruing. The boolean
// reports whether the bridge is registered.
func (r *Registry) Limit(bridge [20]byte) (*BridgeLimit, bool, error) {
	if r == nil {
		return nil, false, fmt.Errorf("limits: registry not initialised")
	}
	var stored storedBridgeLimit
	ok, err := r.st.KVGet(bridgeKey(bridge), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	limit := fromStoredLimit(bridge, &stored)
	if limit.BufferCap.Sign() == 0 {
		// A zeroed entry is indistinguishable from an absent one.
		return nil, false, nil
	}
	return limit, true, nil
}

// Buffer returns the live accrued buffer for the bridge at the current clock
// reading. Unregistered bridges report zero. The stored entry is not mutated.
func (r *Registry) Buffer(bridge [20]byte) (*big.Int, error) {
	limit, ok, err := r.Limit(bridge)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	elapsed := r.now() - limit.LastUpdated
	return Replenish(limit.BufferStored, limit.BufferCap, limit.RateLimitPerSecond, elapsed), nil
}

// AddBridge registers a new bridge with the supplied cap and rate. The buffer
// starts at the cap midpoint so the bridge has immediate headroom for both
// mints and burns.
func (r *Registry) AddBridge(bridge [20]byte, bufferCap, rateLimitPerSecond *big.Int) error {
	if r == nil {
		return fmt.Errorf("limits: registry not initialised")
	}
	if bridge == zeroBridge {
		return ErrZeroBridge
	}
	if bufferCap == nil || bufferCap.Cmp(MinBufferCap) <= 0 {
		return fmt.Errorf("%w: minimum is %s", ErrBufferCapTooLow, MinBufferCap)
	}
	if rateLimitPerSecond != nil && rateLimitPerSecond.Cmp(MaxRateLimitPerSecond) > 0 {
		return fmt.Errorf("%w: maximum is %s", ErrRateLimitTooHigh, MaxRateLimitPerSecond)
	}
	if err := checkWidth(bufferCap, maxBufferBits); err != nil {
		return err
	}
	if err := checkWidth(rateLimitPerSecond, maxRateBits); err != nil {
		return err
	}
	if _, exists, err := r.Limit(bridge); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%w: %s", ErrBridgeExists, hex.EncodeToString(bridge[:]))
	}
	limit := &BridgeLimit{
		Bridge:             bridge,
		BufferCap:          new(big.Int).Set(bufferCap),
		BufferStored:       new(big.Int).Rsh(bufferCap, 1),
		RateLimitPerSecond: big.NewInt(0),
		LastUpdated:        r.now(),
	}
	if rateLimitPerSecond != nil {
		limit.RateLimitPerSecond = new(big.Int).Set(rateLimitPerSecond)
	}
	if err := r.st.KVPut(bridgeKey(bridge), toStoredLimit(limit)); err != nil {
		return err
	}
	r.emitter.Emit(events.BridgeAdded{
		Bridge:             bridge,
		BufferCap:          new(big.Int).Set(limit.BufferCap),
		RateLimitPerSecond: new(big.Int).Set(limit.RateLimitPerSecond),
	})
	return nil
}

// RemoveBridge zeroes the bridge's limit entry. Removing an unregistered
// bridge fails.
func (r *Registry) RemoveBridge(bridge [20]byte) error {
	if r == nil {
		return fmt.Errorf("limits: registry not initialised")
	}
	if _, exists, err := r.Limit(bridge); err != nil {
		return err
	} else if !exists {
		return fmt.Errorf("%w: %s", ErrBridgeNotRegistered, hex.EncodeToString(bridge[:]))
	}
	if err := r.st.KVDelete(bridgeKey(bridge)); err != nil {
		return err
	}
	r.emitter.Emit(events.BridgeRemoved{Bridge: bridge})
	return nil
}

// SetBufferCap updates the bridge's cap. The buffer accrues under the old
// parameters first and is clamped so it never exceeds the new cap.
func (r *Registry) SetBufferCap(bridge [20]byte, newCap *big.Int) error {
	if r == nil {
		return fmt.Errorf("limits: registry not initialised")
	}
	if newCap == nil || newCap.Cmp(MinBufferCap) <= 0 {
		return fmt.Errorf("%w: minimum is %s", ErrBufferCapTooLow, MinBufferCap)
	}
	if err := checkWidth(newCap, maxBufferBits); err != nil {
		return err
	}
	limit, exists, err := r.Limit(bridge)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrBridgeNotRegistered, hex.EncodeToString(bridge[:]))
	}
	now := r.now()
	accrued := Replenish(limit.BufferStored, limit.BufferCap, limit.RateLimitPerSecond, now-limit.LastUpdated)
	limit.BufferCap = new(big.Int).Set(newCap)
	limit.BufferStored = ClampToCap(accrued, limit.BufferCap)
	limit.LastUpdated = now
	if err := r.st.KVPut(bridgeKey(bridge), toStoredLimit(limit)); err != nil {
		return err
	}
	r.emitLimitsUpdated(limit)
	return nil
}

// SetRateLimitPerSecond updates the bridge's replenishment rate. The buffer
// accrues under the old rate before the new rate takes effect.
func (r *Registry) SetRateLimitPerSecond(bridge [20]byte, newRate *big.Int) error {
	if r == nil {
		return fmt.Errorf("limits: registry not initialised")
	}
	if newRate == nil {
		newRate = big.NewInt(0)
	}
	if newRate.Cmp(MaxRateLimitPerSecond) > 0 {
		return fmt.Errorf("%w: maximum is %s", ErrRateLimitTooHigh, MaxRateLimitPerSecond)
	}
	if err := checkWidth(newRate, maxRateBits); err != nil {
		return err
	}
	limit, exists, err := r.Limit(bridge)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrBridgeNotRegistered, hex.EncodeToString(bridge[:]))
	}
	now := r.now()
	accrued := Replenish(limit.BufferStored, limit.BufferCap, limit.RateLimitPerSecond, now-limit.LastUpdated)
	limit.RateLimitPerSecond = new(big.Int).Set(newRate)
	limit.BufferStored = ClampToCap(accrued, limit.BufferCap)
	limit.LastUpdated = now
	if err := r.st.KVPut(bridgeKey(bridge), toStoredLimit(limit)); err != nil {
		return err
	}
	r.emitLimitsUpdated(limit)
	return nil
}

// DepleteBuffer consumes bridge capacity on the mint path. The buffer accrues
// since the last touch before the requested amount is checked against it.
func (r *Registry) DepleteBuffer(bridge [20]byte, amount *big.Int) error {
	if r == nil {
		return fmt.Errorf("limits: registry not initialised")
	}
	if amount == nil || amount.Sign() == 0 {
		return ErrDepleteZero
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: negative amount", ErrDepleteZero)
	}
	limit, exists, err := r.Limit(bridge)
	if err != nil {
		return err
	}
	if !exists {
		// Absent entries behave as bufferCap = 0, so any positive amount
		// exceeds the accrued buffer.
		return fmt.Errorf("%w: bridge %s not registered", ErrRateLimitHit, hex.EncodeToString(bridge[:]))
	}
	now := r.now()
	accrued := Replenish(limit.BufferStored, limit.BufferCap, limit.RateLimitPerSecond, now-limit.LastUpdated)
	if accrued.Cmp(amount) < 0 {
		return fmt.Errorf("%w: buffer %s, requested %s", ErrRateLimitHit, accrued, amount)
	}
	limit.BufferStored = new(big.Int).Sub(accrued, amount)
	limit.LastUpdated = now
	return r.st.KVPut(bridgeKey(bridge), toStoredLimit(limit))
}

// ReplenishBuffer restores bridge capacity on the burn path. The result is
// clamped at the cap, so the call never fails on overflow, only when the
// bridge has no registered limit at all.
func (r *Registry) ReplenishBuffer(bridge [20]byte, amount *big.Int) error {
	if r == nil {
		return fmt.Errorf("limits: registry not initialised")
	}
	if amount == nil || amount.Sign() == 0 {
		return ErrReplenishZero
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: negative amount", ErrReplenishZero)
	}
	limit, exists, err := r.Limit(bridge)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: bridge %s not registered", ErrRateLimitHit, hex.EncodeToString(bridge[:]))
	}
	now := r.now()
	accrued := Replenish(limit.BufferStored, limit.BufferCap, limit.RateLimitPerSecond, now-limit.LastUpdated)
	limit.BufferStored = ClampToCap(new(big.Int).Add(accrued, amount), limit.BufferCap)
	limit.LastUpdated = now
	return r.st.KVPut(bridgeKey(bridge), toStoredLimit(limit))
}

func (r *Registry) emitLimitsUpdated(limit *BridgeLimit) {
	r.emitter.Emit(events.BridgeLimitsUpdated{
		Bridge:             limit.Bridge,
		BufferCap:          new(big.Int).Set(limit.BufferCap),
		RateLimitPerSecond: new(big.Int).Set(limit.RateLimitPerSecond),
		LastUpdated:        limit.LastUpdated,
	})
}
