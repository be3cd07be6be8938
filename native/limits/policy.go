package limits

import "math/big"

// Replenish computes the linearly accrued buffer value after elapsedSeconds.
// The result is min(bufferCap, bufferStored + rateLimitPerSecond*elapsed),
// saturating at the cap. A negative elapsed duration (clock skew) accrues
// nothing. The function is pure; callers own persisting the result.
func Replenish(bufferStored, bufferCap, rateLimitPerSecond *big.Int, elapsedSeconds int64) *big.Int {
	stored := big.NewInt(0)
	if bufferStored != nil {
		stored = new(big.Int).Set(bufferStored)
	}
	cap := big.NewInt(0)
	if bufferCap != nil {
		cap = bufferCap
	}
	if elapsedSeconds > 0 && rateLimitPerSecond != nil && rateLimitPerSecond.Sign() > 0 {
		accrued := new(big.Int).Mul(rateLimitPerSecond, big.NewInt(elapsedSeconds))
		stored.Add(stored, accrued)
	}
	if stored.Cmp(cap) > 0 {
		return new(big.Int).Set(cap)
	}
	return stored
}

// ClampToCap bounds a buffer value to [0, bufferCap]. Used after applying a
// requested delta so the stored buffer never escapes its invariant range.
func ClampToCap(buffer, bufferCap *big.Int) *big.Int {
	if buffer == nil || buffer.Sign() < 0 {
		return big.NewInt(0)
	}
	if bufferCap != nil && buffer.Cmp(bufferCap) > 0 {
		return new(big.Int).Set(bufferCap)
	}
	return new(big.Int).Set(buffer)
}
