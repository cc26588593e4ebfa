package sampler

import "fmt"

type state int

const (
	stateIdle state = iota
	stateSeeking
	stateCaptured
	stateDone
)

func (s state) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSeeking:
		return "seeking"
	case stateCaptured:
		return "captured"
	case stateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists the allowed edges. Seeking is only reachable from Idle
// or Captured, so a second seek cannot start before the previous frame was
// captured.
var transitions = map[state][]state{
	stateIdle:     {stateSeeking, stateDone},
	stateSeeking:  {stateCaptured},
	stateCaptured: {stateSeeking, stateDone},
}

// machine tracks the sampling loop's state and the timestamp it refers to.
type machine struct {
	current state
	t       float64
}

func (m *machine) to(next state, t float64) error {
	for _, allowed := range transitions[m.current] {
		if allowed == next {
			m.current = next
			m.t = t
			return nil
		}
	}
	return fmt.Errorf("%w: %s(%.3f) -> %s(%.3f)", ErrInvalidTransition, m.current, m.t, next, t)
}
