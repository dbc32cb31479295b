package pipeline

import "errors"

// ErrInvalidTransition means the coordinator was asked to enter a state not
// reachable from its current one.
var ErrInvalidTransition = errors.New("invalid pipeline state transition")

// State is a stage of the utterance lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateCapturing    State = "capturing"
	StateTranscribing State = "transcribing"
	StateDetecting    State = "detecting_command"
	StateProcessing   State = "processing"
	StateInjecting    State = "injecting"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
	StateCancelled    State = "cancelled"
)

// Terminal reports whether the state ends the current utterance.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// transitions is the legal edge set. Command utterances skip Processing and
// Injecting: Detecting can go straight to Succeeded. Terminal states re-arm
// back to Idle.
var transitions = map[State][]State{
	StateIdle:         {StateCapturing},
	StateCapturing:    {StateTranscribing, StateFailed, StateCancelled},
	StateTranscribing: {StateDetecting, StateFailed, StateCancelled},
	StateDetecting:    {StateProcessing, StateSucceeded, StateFailed, StateCancelled},
	StateProcessing:   {StateInjecting, StateFailed, StateCancelled},
	StateInjecting:    {StateSucceeded, StateFailed, StateCancelled},
	StateSucceeded:    {StateIdle},
	StateFailed:       {StateIdle},
	StateCancelled:    {StateIdle},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
