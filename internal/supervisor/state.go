package supervisor

// State is the lifecycle state of a supervised process.
type State int

const (
	// Idle is the initial state and the transient state between an exit and
	// the restart decision.
	Idle State = iota
	// Running means a child has been spawned and not yet observed to exit.
	Running
	// Killed is terminal.
	Killed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Killed:
		return "killed"
	default:
		return "unknown"
	}
}
