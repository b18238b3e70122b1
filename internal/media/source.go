// Package media owns the long-lived capture device handles. A handle is
// acquired at most once per capture kind and then shared by every recording
// session for the lifetime of the process.
package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Kind is the combination of media types requested from the device.
type Kind string

const (
	KindAudio      Kind = "audio"
	KindAudioVideo Kind = "audio+video"
)

// ParseKind validates a configured capture kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindAudio, KindAudioVideo:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown capture kind %q (valid: %s, %s)", s, KindAudio, KindAudioVideo)
	}
}

// Capture is one active capture run on a stream. Chunks are delivered to
// onChunk strictly in arrival order; onInactive fires once, after the last
// chunk, when the platform stops capturing. Neither callback may run
// synchronously inside Start or Stop.
type Capture interface {
	Start(onChunk func([]byte), onInactive func(error)) error
	Stop() error
}

// StreamHandle is an opaque handle to a capture device. It is never
// destroyed once created.
type StreamHandle interface {
	ID() string
	Kind() Kind
	// NewCapture prepares a capture run producing the given mime type.
	NewCapture(mimeType string) (Capture, error)
}

// Platform is the capture environment the handles come from.
type Platform interface {
	// Probe reports whether the environment can capture at all. It is
	// checked before any permission flow is started.
	Probe() error
	// Request runs the permission/acquisition flow for kind. It may block
	// until the user decides; ctx is cancelled when the caller gives up.
	Request(ctx context.Context, kind Kind) (StreamHandle, error)
}

// Source is the registry of stream handles keyed by capture kind.
type Source struct {
	platform Platform
	timeout  time.Duration
	notify   func(error)

	mu      sync.RWMutex
	handles map[Kind]StreamHandle
	flights singleflight.Group
}

// Option configures a Source.
type Option func(*Source)

// WithTimeout overrides the permission decision timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithNotifier sets the callback receiving failed acquisitions. It is called
// exactly once per failed flow, never once per waiting caller.
func WithNotifier(fn func(error)) Option {
	return func(s *Source) {
		s.notify = fn
	}
}

// NewSource creates an empty registry backed by platform.
func NewSource(platform Platform, opts ...Option) *Source {
	s := &Source{
		platform: platform,
		timeout:  15 * time.Second,
		notify:   func(error) {},
		handles:  make(map[Kind]StreamHandle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cached returns the handle for kind if one has been acquired.
func (s *Source) Cached(kind Kind) (StreamHandle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[kind]
	return h, ok
}

// Acquire returns the cached handle for kind synchronously when it exists
// (second return value true, onReady is not called). Otherwise it starts the
// acquisition flow, or joins the one already in flight, and calls onReady
// from another goroutine once the flow succeeds. Failures go to the
// notifier instead.
func (s *Source) Acquire(kind Kind, onReady func(StreamHandle)) (StreamHandle, bool) {
	if h, ok := s.Cached(kind); ok {
		return h, true
	}

	if err := s.platform.Probe(); err != nil {
		slog.Warn("Capture platform unsupported", "kind", kind, "error", err)
		s.notify(fmt.Errorf("%w: %v", ErrUnsupportedEnvironment, err))
		return nil, false
	}

	ch := s.flights.DoChan(string(kind), func() (interface{}, error) {
		return s.acquire(kind)
	})

	go func() {
		res := <-ch
		if res.Err != nil {
			return
		}
		if onReady != nil {
			onReady(res.Val.(StreamHandle))
		}
	}()

	return nil, false
}

// acquire runs one flow. Only one runs per kind at a time.
func (s *Source) acquire(kind Kind) (StreamHandle, error) {
	// A flow that finished between the caller's cache check and DoChan
	// must not be repeated.
	if h, ok := s.Cached(kind); ok {
		return h, nil
	}

	slog.Debug("Requesting local media", "kind", kind, "timeout", s.timeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		handle StreamHandle
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		h, err := s.platform.Request(ctx, kind)
		done <- outcome{handle: h, err: err}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			err := out.err
			if !errors.Is(err, ErrPermissionDenied) && !errors.Is(err, ErrUnsupportedEnvironment) {
				err = fmt.Errorf("%w: %v", ErrPermissionDenied, err)
			}
			slog.Warn("Local media request failed", "kind", kind, "error", err)
			s.notify(err)
			return nil, err
		}
		if out.handle == nil {
			err := fmt.Errorf("%w: platform returned no stream", ErrPermissionDenied)
			s.notify(err)
			return nil, err
		}

		s.mu.Lock()
		s.handles[kind] = out.handle
		s.mu.Unlock()

		slog.Info("Local media acquired", "kind", kind, "stream", out.handle.ID())
		return out.handle, nil

	case <-timer.C:
		// The late result, if any, lands in the buffered channel and is dropped.
		slog.Warn("Timeout waiting for permission", "kind", kind, "timeout", s.timeout)
		s.notify(ErrPermissionTimeout)
		return nil, ErrPermissionTimeout
	}
}
