package domain

// State is the position of a job in the worker pipeline.
type State string

const (
	StateStarted      State = "started"
	StateParsed       State = "parsed"
	StateMaterialized State = "materialized"
	StateValidated    State = "validated"
	StateEnveloped    State = "enveloped"
	StateDispatched   State = "dispatched"
	StateDone         State = "done"
	StateAborted      State = "aborted"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}
