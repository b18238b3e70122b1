package audio

import (
	"fmt"
	"os/exec"
	"strings"
)

// BackendType represents the type of audio backend
type BackendType string

const (
	BackendTypePipeWire BackendType = "pipewire"
	BackendTypePulse    BackendType = "pulse"
	BackendTypeAuto     BackendType = "auto"
)

// Input describes how the encoder reads from a capture source.
type Input struct {
	// Wrapper is prepended to the encoder command line (e.g. pw-jack).
	Wrapper []string
	// Args are the encoder input arguments.
	Args []string
	// Connect, when set, is run once the encoder has started.
	Connect func() error
}

// Backend defines the interface for audio backend implementations
type Backend interface {
	// Tools lists the executables the backend needs on PATH
	Tools() []string

	// List available audio sources
	ListSources() ([]string, error)

	// Validate if a source is available
	ValidateSource(source string) error

	// Input returns the encoder input for source
	Input(source string) Input

	Type() BackendType
}

// runCommand executes a helper tool and returns its stdout. Tests replace it.
var runCommand = func(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}

var lookPath = exec.LookPath

// NewBackend returns the backend configured by name. "auto" prefers PipeWire
// when its tools are installed and falls back to PulseAudio.
func NewBackend(name string) (Backend, error) {
	switch BackendType(strings.ToLower(name)) {
	case BackendTypePipeWire:
		return NewPipeWire(), nil
	case BackendTypePulse:
		return NewPulse(), nil
	case BackendTypeAuto, "":
		if _, err := lookPath("pw-link"); err == nil {
			return NewPipeWire(), nil
		}
		return NewPulse(), nil
	default:
		return nil, fmt.Errorf("unknown audio backend %q (available: %s, %s, %s)",
			name, BackendTypePipeWire, BackendTypePulse, BackendTypeAuto)
	}
}

// GetAvailableBackends returns list of available backends on current system
func GetAvailableBackends() []BackendType {
	var backends []BackendType
	for _, b := range []Backend{NewPipeWire(), NewPulse()} {
		if missingTool(b) == "" {
			backends = append(backends, b.Type())
		}
	}
	return backends
}

// missingTool returns the first tool of b that is not on PATH.
func missingTool(b Backend) string {
	for _, tool := range b.Tools() {
		if _, err := lookPath(tool); err != nil {
			return tool
		}
	}
	return ""
}
