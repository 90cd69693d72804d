package monitor

// State состояние монитора
type State int

const (
	Stopped State = iota
	Running
	Error
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}
