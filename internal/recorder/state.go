package recorder

import "fmt"

type State string

type Event string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateRecording  State = "recording"
	StateDenied     State = "denied"
)

const (
	EventStart   Event = "start"
	EventGranted Event = "granted"
	EventDeny    Event = "deny"
	EventFail    Event = "fail"
	EventStop    Event = "stop"
	EventReset   Event = "reset"
)

// Transition 录音状态机；Denied 只能在权限恢复后通过 reset 离开
func Transition(current State, event Event) (State, error) {
	switch current {
	case StateIdle:
		switch event {
		case EventStart:
			return StateRequesting, nil
		case EventDeny:
			return StateDenied, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRequesting:
		switch event {
		case EventGranted:
			return StateRecording, nil
		case EventDeny:
			return StateDenied, nil
		case EventFail:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateRecording:
		switch event {
		case EventStop:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateDenied:
		switch event {
		case EventReset:
			return StateIdle, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
