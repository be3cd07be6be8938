package common

import "errors"

// ErrPaused indicates a mutation was attempted while the ledger is paused.
var ErrPaused = errors.New("ledger paused")

// PauseView exposes the read side of the pause controller. Implementations
// must compute expiry from stored state and the current clock reading rather
// than caching the answer.
type PauseView interface {
	IsPaused() bool
}

// Guard rejects the operation when the ledger is paused. A nil view is treated
// as unpaused so components can be wired without a controller in tests.
func Guard(p PauseView) error {
	if p == nil {
		return nil
	}
	if p.IsPaused() {
		return ErrPaused
	}
	return nil
}
