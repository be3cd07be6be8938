package events

import "strconv"

const (
	// TypePauseEngaged is emitted when the guardian pauses the ledger.
	TypePauseEngaged = "pause.engaged"
	// TypePauseLifted is emitted when the pause is explicitly lifted.
	TypePauseLifted = "pause.lifted"
	// TypePauseGuardianGranted is emitted when a new guardian is installed.
	TypePauseGuardianGranted = "pause.guardian_granted"
	// TypePauseDurationUpdated is emitted when the pause window changes.
	TypePauseDurationUpdated = "pause.duration_updated"
)

// PauseEngaged records a guardian-initiated pause.
type PauseEngaged struct {
	Guardian  [20]byte
	StartTime int64
	Duration  int64
}

func (PauseEngaged) EventType() string { return TypePauseEngaged }

func (e PauseEngaged) Attributes() map[string]string {
	return map[string]string{
		"guardian":  addrString(e.Guardian),
		"startTime": strconv.FormatInt(e.StartTime, 10),
		"duration":  strconv.FormatInt(e.Duration, 10),
	}
}

// PauseLifted records an explicit unpause together with the actor that lifted
// it.
type PauseLifted struct {
	Caller [20]byte
}

func (PauseLifted) EventType() string { return TypePauseLifted }

func (e PauseLifted) Attributes() map[string]string {
	return map[string]string{"caller": addrString(e.Caller)}
}

// PauseGuardianGranted records the owner arming a new one-shot guardian.
type PauseGuardianGranted struct {
	Guardian [20]byte
}

func (PauseGuardianGranted) EventType() string { return TypePauseGuardianGranted }

func (e PauseGuardianGranted) Attributes() map[string]string {
	return map[string]string{"guardian": addrString(e.Guardian)}
}

// PauseDurationUpdated records a change to the configured pause window.
type PauseDurationUpdated struct {
	Duration int64
}

func (PauseDurationUpdated) EventType() string { return TypePauseDurationUpdated }

func (e PauseDurationUpdated) Attributes() map[string]string {
	return map[string]string{"duration": strconv.FormatInt(e.Duration, 10)}
}
