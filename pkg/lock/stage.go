package lock

// Stage is a step of the lock state machine.
type Stage int

const (
	Idle Stage = iota
	Resolving
	Tracing
	Hashing
	Propagating
	Done
	Failed
)

var stageNames = [...]string{
	Idle:        "idle",
	Resolving:   "resolving",
	Tracing:     "tracing",
	Hashing:     "hashing",
	Propagating: "propagating",
	Done:        "done",
	Failed:      "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Mode selects how previous pins are used.
type Mode int

const (
	// Basic ignores any previous lock.
	Basic Mode = iota
	// PinReuse prefers the pins of the previous lock.
	PinReuse
	// EagerUpgrade re-resolves the upgraded packages and their
	// dependencies, reusing every other pin.
	EagerUpgrade
)

func (m Mode) String() string {
	switch m {
	case PinReuse:
		return "pin-reuse"
	case EagerUpgrade:
		return "eager-upgrade"
	}
	return "basic"
}
