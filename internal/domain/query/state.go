package query

// State is a step of the orchestrator state machine.
type State string

const (
	StateValidating  State = "validating"
	StateResolving   State = "resolving"
	StateCacheCheck  State = "cache_check"
	StateExecuting   State = "executing"
	StateClassifying State = "classifying"
	StateCacheWrite  State = "cache_write"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

var transitions = map[State][]State{
	StateValidating:  {StateResolving, StateFailed},
	StateResolving:   {StateCacheCheck, StateFailed},
	StateCacheCheck:  {StateExecuting, StateDone, StateFailed},
	StateExecuting:   {StateClassifying, StateFailed},
	StateClassifying: {StateCacheWrite, StateDone, StateFailed},
	StateCacheWrite:  {StateDone},
}

// CanTransition reports whether to may follow from.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool { return s == StateDone || s == StateFailed }
