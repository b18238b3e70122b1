package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jsulmar/yarm/internal/media"
)

// Prompter asks the user to allow access to a capture source.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Platform opens capture streams on a backend. It implements media.Platform.
type Platform struct {
	backend  Backend
	source   string
	prompter Prompter
}

// NewPlatform returns a platform capturing source through backend. A nil
// prompter grants access without asking.
func NewPlatform(backend Backend, source string, prompter Prompter) *Platform {
	return &Platform{backend: backend, source: source, prompter: prompter}
}

// Probe checks that the backend tools are installed.
func (p *Platform) Probe() error {
	if tool := missingTool(p.backend); tool != "" {
		return fmt.Errorf("%s backend requires %q on PATH", p.backend.Type(), tool)
	}
	return nil
}

// Request asks for permission, validates the source and returns a stream.
func (p *Platform) Request(ctx context.Context, kind media.Kind) (media.StreamHandle, error) {
	if p.prompter != nil {
		question := fmt.Sprintf("Allow yarm to use %s (%s)?", p.source, kind)
		ok, err := p.prompter.Confirm(ctx, question)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, media.ErrPermissionDenied
		}
	}

	if err := p.backend.ValidateSource(p.source); err != nil {
		return nil, fmt.Errorf("source %q unavailable: %w", p.source, err)
	}

	s := &Stream{id: uuid.NewString(), kind: kind, source: p.source, backend: p.backend}
	slog.Debug("Stream opened", "id", s.id, "kind", kind, "source", p.source, "backend", p.backend.Type())
	return s, nil
}

// Stream is a capture source granted to the process.
type Stream struct {
	id      string
	kind    media.Kind
	source  string
	backend Backend
}

func (s *Stream) ID() string       { return s.id }
func (s *Stream) Kind() media.Kind { return s.kind }
func (s *Stream) Source() string   { return s.source }

// NewCapture builds the encoder command line for one capture run.
func (s *Stream) NewCapture(mimeType string) (media.Capture, error) {
	enc, err := LookupEncoding(mimeType)
	if err != nil {
		return nil, err
	}
	if s.kind == media.KindAudioVideo && enc.Video == "" {
		return nil, fmt.Errorf("%w: %q cannot carry video", ErrEncodingUnavailable, mimeType)
	}
	in := s.backend.Input(s.source)
	return newExecCapture(encoderArgs(in, s.kind, enc), in.Connect), nil
}

func encoderArgs(in Input, kind media.Kind, enc Encoding) []string {
	argv := append([]string{}, in.Wrapper...)
	argv = append(argv, "ffmpeg", "-hide_banner", "-loglevel", "error", "-nostdin")
	argv = append(argv, in.Args...)
	if kind == media.KindAudioVideo {
		argv = append(argv, "-f", "v4l2", "-i", "/dev/video0", "-c:v", enc.Video)
	}
	argv = append(argv, "-c:a", enc.Codec, "-f", enc.Format, "pipe:1")
	return argv
}
