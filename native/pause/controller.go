package pause

import (
	"errors"
	"fmt"
	"time"

	"bridgeledger/core/events"
)

// Storage abstracts the state manager functionality required by the pause
// controller. Ownership checks ride along so guardian management stays
// owner-gated without a separate authority object.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	IsOwner(addr []byte) bool
}

var pauseStateKey = []byte("pause/state")

const (
	// MaxPauseDuration bounds how long a single guardian pause may hold.
	MaxPauseDuration = 30 * 24 * time.Hour
	// DefaultPauseDuration applies when no duration has been configured.
	DefaultPauseDuration = 10 * 24 * time.Hour
)

var (
	// ErrNotGuardian indicates the caller is not the armed pause guardian.
	ErrNotGuardian = errors.New("pause: caller is not the guardian")
	// ErrNotOwner indicates the caller does not own the ledger.
	ErrNotOwner = errors.New("pause: caller is not the owner")
	// ErrAlreadyPaused rejects a pause while one is already in effect.
	ErrAlreadyPaused = errors.New("pause: already paused")
	// ErrNotPaused rejects an unpause when no pause is in effect.
	ErrNotPaused = errors.New("pause: not paused")
	// ErrGrantWhilePaused rejects arming a guardian during an active pause.
	ErrGrantWhilePaused = errors.New("pause: cannot grant guardian while paused")
	// ErrZeroGuardian rejects a null guardian identity.
	ErrZeroGuardian = errors.New("pause: guardian address must not be zero")
	// ErrDurationOutOfRange rejects pause durations outside (0, max].
	ErrDurationOutOfRange = errors.New("pause: duration out of range")
)

// State is the externally visible pause state. Paused is derived from the
// stored fields and the clock reading supplied at read time.
type State struct {
	Paused    bool
	StartTime int64
	Duration  time.Duration
	Guardian  [20]byte
	HasGuard  bool
	ExpiresAt int64
}

type storedPauseState struct {
	StartTime uint64
	Duration  uint64
	Guardian  [20]byte
}

// Controller implements the timed pause state machine: a one-shot guardian
// engages the pause, the owner (or the guardian) lifts it, and the pause
// expires on its own once the window lapses.
type Controller struct {
	st      Storage
	emitter events.Emitter
	clock   func() time.Time
}

// NewController constructs a controller backed by the provided storage.
func NewController(st Storage) *Controller {
	return &Controller{st: st, emitter: events.NoopEmitter{}, clock: time.Now}
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (c *Controller) SetEmitter(emitter events.Emitter) {
	if c == nil {
		return
	}
	if emitter == nil {
		c.emitter = events.NoopEmitter{}
		return
	}
	c.emitter = emitter
}

// SetClock overrides the time source, enabling deterministic unit tests.
func (c *Controller) SetClock(clock func() time.Time) {
	if c == nil || clock == nil {
		return
	}
	c.clock = clock
}

var zeroGuardian [20]byte

func (c *Controller) load() (*storedPauseState, error) {
	var stored storedPauseState
	ok, err := c.st.KVGet(pauseStateKey, &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &storedPauseState{Duration: uint64(DefaultPauseDuration / time.Second)}, nil
	}
	if stored.Duration == 0 {
		stored.Duration = uint64(DefaultPauseDuration / time.Second)
	}
	return &stored, nil
}

func (c *Controller) save(stored *storedPauseState) error {
	return c.st.KVPut(pauseStateKey, stored)
}

func pausedAt(stored *storedPauseState, now int64) bool {
	if stored == nil || stored.StartTime == 0 {
		return false
	}
	expiry := int64(stored.StartTime) + int64(stored.Duration)
	return now <= expiry
}

// IsPaused reports whether a pause is currently in effect. Expiry is computed
// from the stored start time and duration on every call; no transaction is
// needed for the pause to lapse.
func (c *Controller) IsPaused() bool {
	if c == nil {
		return false
	}
	stored, err := c.load()
	if err != nil {
		// Fail closed: unreadable pause state blocks mutations.
		return true
	}
	return pausedAt(stored, c.clock().UTC().Unix())
}

// State returns the full pause state at the current clock reading.
func (c *Controller) State() (*State, error) {
	if c == nil {
		return nil, fmt.Errorf("pause: controller not initialised")
	}
	stored, err := c.load()
	if err != nil {
		return nil, err
	}
	now := c.clock().UTC().Unix()
	st := &State{
		Paused:    pausedAt(stored, now),
		StartTime: int64(stored.StartTime),
		Duration:  time.Duration(stored.Duration) * time.Second,
		Guardian:  stored.Guardian,
		HasGuard:  stored.Guardian != zeroGuardian,
	}
	if st.StartTime != 0 {
		st.ExpiresAt = st.StartTime + int64(stored.Duration)
	}
	return st, nil
}

// Pause engages the pause. Only the armed guardian may call it, and only while
// no pause is in effect.
func (c *Controller) Pause(caller [20]byte) error {
	if c == nil {
		return fmt.Errorf("pause: controller not initialised")
	}
	stored, err := c.load()
	if err != nil {
		return err
	}
	if stored.Guardian == zeroGuardian || stored.Guardian != caller {
		return ErrNotGuardian
	}
	now := c.clock().UTC().Unix()
	if pausedAt(stored, now) {
		return ErrAlreadyPaused
	}
	stored.StartTime = uint64(now)
	if err := c.save(stored); err != nil {
		return err
	}
	c.emitter.Emit(events.PauseEngaged{
		Guardian:  caller,
		StartTime: now,
		Duration:  int64(stored.Duration),
	})
	return nil
}

// Unpause lifts an active pause. The owner may lift at any time; the guardian
// may lift its own pause. Either way the guardian role is consumed and must be
// re-granted by the owner before the pause can be armed again.
func (c *Controller) Unpause(caller [20]byte) error {
	if c == nil {
		return fmt.Errorf("pause: controller not initialised")
	}
	stored, err := c.load()
	if err != nil {
		return err
	}
	if !c.st.IsOwner(caller[:]) && (stored.Guardian == zeroGuardian || stored.Guardian != caller) {
		return ErrNotOwner
	}
	now := c.clock().UTC().Unix()
	if !pausedAt(stored, now) {
		return ErrNotPaused
	}
	stored.StartTime = 0
	stored.Guardian = zeroGuardian
	if err := c.save(stored); err != nil {
		return err
	}
	c.emitter.Emit(events.PauseLifted{Caller: caller})
	return nil
}

// GrantGuardian arms a new one-shot guardian. Only the owner may grant, and
// never while a pause is in effect. A stale start time left behind by an
// expired pause is cleared as part of the grant.
func (c *Controller) GrantGuardian(caller, guardian [20]byte) error {
	if c == nil {
		return fmt.Errorf("pause: controller not initialised")
	}
	if !c.st.IsOwner(caller[:]) {
		return ErrNotOwner
	}
	if guardian == zeroGuardian {
		return ErrZeroGuardian
	}
	stored, err := c.load()
	if err != nil {
		return err
	}
	if pausedAt(stored, c.clock().UTC().Unix()) {
		return ErrGrantWhilePaused
	}
	stored.StartTime = 0
	stored.Guardian = guardian
	if err := c.save(stored); err != nil {
		return err
	}
	c.emitter.Emit(events.PauseGuardianGranted{Guardian: guardian})
	return nil
}

// InitDuration installs the pause window during bootstrap. It only writes
// when no pause state has been persisted yet, so operator changes made at
// runtime survive restarts.
func (c *Controller) InitDuration(duration time.Duration) error {
	if c == nil {
		return fmt.Errorf("pause: controller not initialised")
	}
	if duration <= 0 || duration > MaxPauseDuration {
		return fmt.Errorf("%w: %s", ErrDurationOutOfRange, duration)
	}
	ok, err := c.st.KVGet(pauseStateKey, new(storedPauseState))
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return c.save(&storedPauseState{Duration: uint64(duration / time.Second)})
}

// SetDuration updates the pause window. Only the owner may change it, and the
// new duration must sit in (0, MaxPauseDuration].
func (c *Controller) SetDuration(caller [20]byte, duration time.Duration) error {
	if c == nil {
		return fmt.Errorf("pause: controller not initialised")
	}
	if !c.st.IsOwner(caller[:]) {
		return ErrNotOwner
	}
	if duration <= 0 || duration > MaxPauseDuration {
		return fmt.Errorf("%w: %s", ErrDurationOutOfRange, duration)
	}
	stored, err := c.load()
	if err != nil {
		return err
	}
	stored.Duration = uint64(duration / time.Second)
	if err := c.save(stored); err != nil {
		return err
	}
	c.emitter.Emit(events.PauseDurationUpdated{Duration: int64(duration / time.Second)})
	return nil
}
