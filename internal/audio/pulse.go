package audio

import (
	"fmt"
	"strings"
)

// Pulse captures through the PulseAudio protocol, which PipeWire also serves.
type Pulse struct{}

func NewPulse() *Pulse { return &Pulse{} }

func (p *Pulse) Type() BackendType { return BackendTypePulse }

func (p *Pulse) Tools() []string { return []string{"pactl", "ffmpeg"} }

// ListSources returns the source names reported by pactl.
func (p *Pulse) ListSources() ([]string, error) {
	output, err := runCommand("pactl", "list", "short", "sources")
	if err != nil {
		return nil, fmt.Errorf("failed to list PulseAudio sources: %w", err)
	}
	var sources []string
	for _, line := range strings.Split(string(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			sources = append(sources, fields[1])
		}
	}
	return sources, nil
}

func (p *Pulse) ValidateSource(source string) error {
	if source == "" || source == "default" {
		return nil
	}
	sources, err := p.ListSources()
	if err != nil {
		return err
	}
	for _, s := range sources {
		if s == source {
			return nil
		}
	}
	return fmt.Errorf("source not found: %s", source)
}

func (p *Pulse) Input(source string) Input {
	if source == "" {
		source = "default"
	}
	return Input{Args: []string{"-f", "pulse", "-i", source}}
}
