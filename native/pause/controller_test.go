package pause

import (
	"errors"
	"testing"
	"time"

	"bridgeledger/core/state"
	"bridgeledger/storage"
)

var (
	testOwner    = [20]byte{0x01}
	testGuardian = [20]byte{0x02}
	testOutsider = [20]byte{0x03}
)

func newTestController(t *testing.T, nowUnix int64) (*Controller, *int64) {
	t.Helper()
	st := state.NewManager(storage.NewMemDB())
	if err := st.SetOwner(testOwner[:]); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	controller := NewController(st)
	now := nowUnix
	controller.SetClock(func() time.Time { return time.Unix(now, 0) })
	return controller, &now
}

func armedController(t *testing.T, nowUnix int64) (*Controller, *int64) {
	t.Helper()
	controller, now := newTestController(t, nowUnix)
	if err := controller.GrantGuardian(testOwner, testGuardian); err != nil {
		t.Fatalf("grant guardian: %v", err)
	}
	return controller, now
}

func TestPauseRequiresGuardian(t *testing.T) {
	controller, _ := newTestController(t, 1_000)
	if err := controller.Pause(testGuardian); !errors.Is(err, ErrNotGuardian) {
		t.Fatalf("unarmed guardian must not pause, got %v", err)
	}

	controller, _ = armedController(t, 1_000)
	if err := controller.Pause(testOutsider); !errors.Is(err, ErrNotGuardian) {
		t.Fatalf("outsider must not pause, got %v", err)
	}
	if err := controller.Pause(testGuardian); err != nil {
		t.Fatalf("guardian pause: %v", err)
	}
	if !controller.IsPaused() {
		t.Fatal("expected paused state")
	}
	if err := controller.Pause(testGuardian); !errors.Is(err, ErrAlreadyPaused) {
		t.Fatalf("expected already paused, got %v", err)
	}
}

func TestPauseExpiresOnItsOwn(t *testing.T) {
	controller, now := armedController(t, 1_000)
	if err := controller.SetDuration(testOwner, time.Hour); err != nil {
		t.Fatalf("set duration: %v", err)
	}
	if err := controller.Pause(testGuardian); err != nil {
		t.Fatalf("pause: %v", err)
	}

	*now = 1_000 + 3_600
	if !controller.IsPaused() {
		t.Fatal("still inside the window, expected paused")
	}
	*now = 1_000 + 3_601
	if controller.IsPaused() {
		t.Fatal("window lapsed, expected unpaused")
	}

	st, err := controller.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.Paused {
		t.Fatal("state must report expiry")
	}
	if st.ExpiresAt != 1_000+3_600 {
		t.Fatalf("expected expiry at 4600, got %d", st.ExpiresAt)
	}
	// The guardian remains armed; the pause expired without being consumed.
	if !st.HasGuard || st.Guardian != testGuardian {
		t.Fatal("expected guardian still armed after expiry")
	}
}

func TestUnpauseConsumesGuardian(t *testing.T) {
	controller, _ := armedController(t, 1_000)
	if err := controller.Unpause(testOwner); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("expected not paused, got %v", err)
	}
	if err := controller.Pause(testGuardian); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := controller.Unpause(testOutsider); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("outsider must not unpause, got %v", err)
	}
	if err := controller.Unpause(testOwner); err != nil {
		t.Fatalf("owner unpause: %v", err)
	}
	if controller.IsPaused() {
		t.Fatal("expected unpaused state")
	}

	// The guardian role was consumed; pausing again requires a fresh grant.
	if err := controller.Pause(testGuardian); !errors.Is(err, ErrNotGuardian) {
		t.Fatalf("consumed guardian must not pause again, got %v", err)
	}
}

func TestGuardianMayLiftOwnPause(t *testing.T) {
	controller, _ := armedController(t, 1_000)
	if err := controller.Pause(testGuardian); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := controller.Unpause(testGuardian); err != nil {
		t.Fatalf("guardian unpause: %v", err)
	}
	if err := controller.Pause(testGuardian); !errors.Is(err, ErrNotGuardian) {
		t.Fatalf("guardian must be consumed after lifting, got %v", err)
	}
}

func TestGrantGuardian(t *testing.T) {
	controller, now := newTestController(t, 1_000)
	if err := controller.GrantGuardian(testOutsider, testGuardian); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner must not grant, got %v", err)
	}
	if err := controller.GrantGuardian(testOwner, [20]byte{}); !errors.Is(err, ErrZeroGuardian) {
		t.Fatalf("zero guardian must be rejected, got %v", err)
	}
	if err := controller.GrantGuardian(testOwner, testGuardian); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := controller.Pause(testGuardian); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := controller.GrantGuardian(testOwner, testOutsider); !errors.Is(err, ErrGrantWhilePaused) {
		t.Fatalf("granting during a pause must fail, got %v", err)
	}

	// After expiry a grant succeeds and clears the stale start time.
	*now += int64(DefaultPauseDuration/time.Second) + 1
	if err := controller.GrantGuardian(testOwner, testOutsider); err != nil {
		t.Fatalf("grant after expiry: %v", err)
	}
	st, err := controller.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.StartTime != 0 {
		t.Fatalf("stale start time must be cleared, got %d", st.StartTime)
	}
	if st.Guardian != testOutsider {
		t.Fatal("expected new guardian installed")
	}
}

func TestSetDuration(t *testing.T) {
	controller, _ := newTestController(t, 1_000)
	if err := controller.SetDuration(testOutsider, time.Hour); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner must not set duration, got %v", err)
	}
	if err := controller.SetDuration(testOwner, 0); !errors.Is(err, ErrDurationOutOfRange) {
		t.Fatalf("zero duration must be rejected, got %v", err)
	}
	if err := controller.SetDuration(testOwner, MaxPauseDuration+time.Second); !errors.Is(err, ErrDurationOutOfRange) {
		t.Fatalf("above-max duration must be rejected, got %v", err)
	}
	if err := controller.SetDuration(testOwner, MaxPauseDuration); err != nil {
		t.Fatalf("set duration at max: %v", err)
	}
	st, err := controller.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.Duration != MaxPauseDuration {
		t.Fatalf("expected max duration, got %s", st.Duration)
	}
}

func TestInitDurationOnlyWritesOnce(t *testing.T) {
	controller, _ := newTestController(t, 1_000)
	if err := controller.InitDuration(time.Hour); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := controller.SetDuration(testOwner, 2*time.Hour); err != nil {
		t.Fatalf("set duration: %v", err)
	}
	// A later bootstrap must not clobber the operator's change.
	if err := controller.InitDuration(time.Hour); err != nil {
		t.Fatalf("re-init: %v", err)
	}
	st, err := controller.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.Duration != 2*time.Hour {
		t.Fatalf("expected 2h retained, got %s", st.Duration)
	}
}

func TestDefaultDurationApplies(t *testing.T) {
	controller, now := armedController(t, 1_000)
	if err := controller.Pause(testGuardian); err != nil {
		t.Fatalf("pause: %v", err)
	}
	*now += int64(DefaultPauseDuration / time.Second)
	if !controller.IsPaused() {
		t.Fatal("expected paused at the default window boundary")
	}
	*now++
	if controller.IsPaused() {
		t.Fatal("expected expiry past the default window")
	}
}
