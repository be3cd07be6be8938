package limits

import "errors"

var (
	// ErrRateLimitHit indicates the accrued buffer cannot absorb the requested
	// depletion. Unregistered bridges surface the same failure because their
	// cap, and therefore their accrued buffer, is zero.
	ErrRateLimitHit = errors.New("limits: rate limit hit")
	// ErrBridgeExists indicates an addBridge attempt for an already registered
	// bridge.
	ErrBridgeExists = errors.New("limits: bridge already exists")
	// ErrBridgeNotRegistered indicates the bridge has no limit entry.
	ErrBridgeNotRegistered = errors.New("limits: bridge not registered")
	// ErrZeroBridge indicates a null bridge identity was supplied.
	ErrZeroBridge = errors.New("limits: bridge address must not be zero")
	// ErrDepleteZero rejects zero-amount depletions at the caller layer.
	ErrDepleteZero = errors.New("limits: deplete amount cannot be 0")
	// ErrReplenishZero rejects zero-amount replenishments at the caller layer.
	ErrReplenishZero = errors.New("limits: replenish amount cannot be 0")
	// ErrBufferCapTooLow indicates the requested cap does not exceed the
	// minimum buffer cap.
	ErrBufferCapTooLow = errors.New("limits: buffer cap below minimum")
	// ErrRateLimitTooHigh indicates the requested rate exceeds the ceiling.
	ErrRateLimitTooHigh = errors.New("limits: rate limit per second above maximum")
	// ErrValueTooWide indicates a value does not fit its declared bit width.
	ErrValueTooWide = errors.New("limits: value exceeds declared width")
)
