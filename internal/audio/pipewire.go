package audio

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// captureClient is the JACK client name the encoder registers under.
const captureClient = "yarm_capture"

// PipeWire captures through the JACK bridge of PipeWire: the encoder runs
// under pw-jack and the selected port is linked to its input once it appears.
type PipeWire struct {
	retryDelay time.Duration
}

// NewPipeWire creates a new PipeWire instance
func NewPipeWire() *PipeWire {
	return &PipeWire{retryDelay: 500 * time.Millisecond}
}

func (pw *PipeWire) Type() BackendType { return BackendTypePipeWire }

func (pw *PipeWire) Tools() []string { return []string{"pw-link", "pw-jack", "ffmpeg"} }

// ListSources returns all output ports known to PipeWire
func (pw *PipeWire) ListSources() ([]string, error) {
	output, err := runCommand("pw-link", "-o")
	if err != nil {
		return nil, fmt.Errorf("failed to list PipeWire ports: %w", err)
	}
	return parsePorts(string(output)), nil
}

// parsePorts extracts port names from pw-link output.
func parsePorts(output string) []string {
	var ports []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Input ports:") || strings.HasPrefix(line, "Output ports:") {
			continue
		}
		ports = append(ports, line)
	}
	return ports
}

// ValidateSource checks that the port exists exactly once. "default" leaves
// the choice to the session manager.
func (pw *PipeWire) ValidateSource(source string) error {
	if source == "" || source == "default" {
		return nil
	}
	ports, err := pw.ListSources()
	if err != nil {
		return err
	}
	return validatePort(source, ports)
}

func validatePort(portName string, ports []string) error {
	matches := findPortDuplicates(portName, ports)
	switch {
	case len(matches) == 0:
		return fmt.Errorf("port not found: %s", portName)
	case len(matches) > 1:
		return fmt.Errorf("duplicate sources detected for '%s': %v. Please close conflicting applications", portName, matches)
	}
	return nil
}

// findPortDuplicates finds all ports with exactly the same name
func findPortDuplicates(portName string, ports []string) []string {
	var duplicates []string
	for _, port := range ports {
		if port == portName {
			duplicates = append(duplicates, port)
		}
	}
	return duplicates
}

func (pw *PipeWire) Input(source string) Input {
	in := Input{
		Wrapper: []string{"pw-jack"},
		Args:    []string{"-f", "jack", "-channels", "1", "-i", captureClient},
	}
	if source != "" && source != "default" {
		in.Connect = func() error {
			return pw.connectWithRetry(source, captureClient+":input_1", 10)
		}
	}
	return in
}

// connectWithRetry links source to dest, waiting for the encoder's port to
// be registered first.
func (pw *PipeWire) connectWithRetry(source, dest string, attempts int) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		output, err := runCommand("pw-link", source, dest)
		if err == nil {
			slog.Debug("Connected capture port", "source", source, "dest", dest, "attempt", attempt)
			return nil
		}
		lastErr = fmt.Errorf("%w (output: %s)", err, strings.TrimSpace(string(output)))
		slog.Debug("Port connection attempt failed", "source", source, "dest", dest, "attempt", attempt, "error", err)
		if attempt < attempts {
			time.Sleep(pw.retryDelay)
		}
	}
	return fmt.Errorf("failed to connect %s to %s after %d attempts: %v", source, dest, attempts, lastErr)
}
