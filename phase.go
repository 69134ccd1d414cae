package hsm

import "github.com/milk9111/hsm/ecs/component"

// Phase is the lifecycle phase of a state machine: Enter runs the current
// state's enter callback once, Update stages the state's action and checks
// transitions, Exit runs the exit callback and consumes the pending queue.
type Phase uint8

const (
	PhaseEnter Phase = iota
	PhaseUpdate
	PhaseExit
)

func (p Phase) String() string {
	switch p {
	case PhaseEnter:
		return "Enter"
	case PhaseUpdate:
		return "Update"
	case PhaseExit:
		return "Exit"
	default:
		return "Unknown"
	}
}

var PhaseComponent = component.NewComponent[Phase]()
