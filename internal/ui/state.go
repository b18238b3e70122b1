// Package ui holds the session state machine and the declarative display
// table that decides what the user can see and press in every state.
package ui

import (
	"errors"
	"fmt"
)

var ErrActionNotAllowed = errors.New("action not allowed")

// State is the session state.
type State string

const (
	StateEnable       State = "enable"
	StateReady        State = "ready"
	StateRecording    State = "recording"
	StateStopped      State = "stopped"
	StateUploading    State = "uploading"
	StateUploaded     State = "uploaded"
	StateUploadFailed State = "upload_failed"
)

// Action is an event dispatched to the machine. User actions come first,
// followed by the outcomes reported by the recorder and the upload client.
type Action string

const (
	ActionRecord Action = "record"
	ActionStop   Action = "stop"
	ActionSave   Action = "save"
	ActionUpload Action = "upload"

	ActionAcquired        Action = "acquired"
	ActionCaptureFailed   Action = "capture_failed"
	ActionUploadSucceeded Action = "upload_succeeded"
	ActionUploadFailed    Action = "upload_failed"
)

// ParseAction resolves a user-typed action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionRecord, ActionStop, ActionSave, ActionUpload:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// transitions lists every accepted action per state. Anything missing is
// rejected and leaves the state unchanged.
var transitions = map[State]map[Action]State{
	StateEnable: {
		ActionAcquired: StateReady,
	},
	StateReady: {
		ActionRecord: StateRecording,
	},
	StateRecording: {
		ActionStop:          StateStopped,
		ActionCaptureFailed: StateReady,
	},
	StateStopped: {
		ActionRecord:        StateRecording,
		ActionSave:          StateStopped,
		ActionUpload:        StateUploading,
		ActionCaptureFailed: StateReady,
	},
	StateUploading: {
		ActionUploadSucceeded: StateUploaded,
		ActionUploadFailed:    StateUploadFailed,
	},
	StateUploaded: {
		ActionRecord: StateRecording,
		ActionSave:   StateStopped,
		ActionUpload: StateUploading,
	},
	StateUploadFailed: {
		ActionRecord: StateRecording,
		ActionSave:   StateStopped,
		ActionUpload: StateUploading,
	},
}

// Next returns the state reached by action from s.
func Next(s State, action Action) (State, error) {
	next, ok := transitions[s][action]
	if !ok {
		return s, fmt.Errorf("%w: %s in state %s", ErrActionNotAllowed, action, s)
	}
	return next, nil
}
