// Package recording turns the chunks of one capture run into an Artifact.
package recording

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/jsulmar/yarm/internal/media"
)

var (
	ErrNotFinalized = errors.New("no finalized recording")
	ErrNotRecording = errors.New("not recording")
	ErrEmptyCapture = errors.New("capture produced no data")
)

// Status represents the current state of the session
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRecording  Status = "recording"
	StatusFinalizing Status = "finalizing"
	StatusFinalized  Status = "finalized"
)

// Session records from one stream handle. Each Start/Stop cycle ends with
// exactly one call to onFinalized, carrying either an artifact or an error.
type Session struct {
	handle      media.StreamHandle
	desc        Descriptor
	store       Store
	onFinalized func(Artifact, error)
	now         func() time.Time

	mutex      sync.Mutex
	status     Status
	chunks     [][]byte
	artifact   *Artifact
	capture    media.Capture
	generation uint64
	lastMillis int64
}

// New creates an idle session bound to handle.
func New(handle media.StreamHandle, desc Descriptor, store Store, onFinalized func(Artifact, error)) *Session {
	if onFinalized == nil {
		onFinalized = func(Artifact, error) {}
	}
	return &Session{
		handle:      handle,
		desc:        desc,
		store:       store,
		onFinalized: onFinalized,
		now:         time.Now,
		status:      StatusIdle,
	}
}

// Start clears the previous buffer and artifact and begins capturing. It is
// a no-op while already recording.
func (s *Session) Start() error {
	s.mutex.Lock()
	if s.status == StatusRecording {
		s.mutex.Unlock()
		return nil
	}

	capture, err := s.handle.NewCapture(s.desc.MimeType)
	if err != nil {
		s.mutex.Unlock()
		return fmt.Errorf("failed to prepare capture: %w", err)
	}

	s.generation++
	gen := s.generation
	s.chunks = nil
	s.artifact = nil
	s.capture = capture
	s.status = StatusRecording
	s.mutex.Unlock()

	err = capture.Start(
		func(chunk []byte) { s.appendChunk(gen, chunk) },
		func(err error) { s.finalize(gen, err) },
	)
	if err != nil {
		s.mutex.Lock()
		if s.generation == gen {
			s.status = StatusIdle
			s.capture = nil
		}
		s.mutex.Unlock()
		return fmt.Errorf("failed to start capture: %w", err)
	}

	slog.Info("Recording started", "stream", s.handle.ID(), "mime_type", s.desc.MimeType)
	return nil
}

// Stop asks the platform to cease capture. The artifact is produced once the
// platform reports the capture inactive.
func (s *Session) Stop() error {
	s.mutex.Lock()
	if s.status != StatusRecording {
		s.mutex.Unlock()
		return ErrNotRecording
	}
	s.status = StatusFinalizing
	capture := s.capture
	s.mutex.Unlock()

	slog.Debug("Stopping recording", "stream", s.handle.ID())
	return capture.Stop()
}

func (s *Session) appendChunk(gen uint64, chunk []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if gen != s.generation || (s.status != StatusRecording && s.status != StatusFinalizing) {
		return
	}
	s.chunks = append(s.chunks, chunk)
}

func (s *Session) finalize(gen uint64, captureErr error) {
	s.mutex.Lock()
	if gen != s.generation || (s.status != StatusRecording && s.status != StatusFinalizing) {
		s.mutex.Unlock()
		return
	}

	chunks := s.chunks
	s.chunks = nil
	s.capture = nil

	err := captureErr
	if err == nil && len(chunks) == 0 {
		err = ErrEmptyCapture
	}
	if err != nil {
		s.status = StatusIdle
		s.mutex.Unlock()
		slog.Error("Recording failed", "stream", s.handle.ID(), "error", err)
		s.onFinalized(Artifact{}, err)
		return
	}

	name := s.nextName()
	blob := bytes.Join(chunks, nil)
	url, err := s.store.Put(name, blob)
	if err != nil {
		s.status = StatusIdle
		s.mutex.Unlock()
		slog.Error("Failed to store recording", "name", name, "error", err)
		s.onFinalized(Artifact{}, err)
		return
	}

	artifact := Artifact{Blob: blob, URL: url, Name: name, MimeType: s.desc.MimeType}
	s.artifact = &artifact
	s.status = StatusFinalized
	s.mutex.Unlock()

	slog.Info("Recording finalized", "name", name, "size", len(blob), "url", url)
	s.onFinalized(artifact, nil)
}

// nextName derives a unique name from the capture time. Caller holds the mutex.
func (s *Session) nextName() string {
	millis := s.now().UnixMilli()
	if millis <= s.lastMillis {
		millis = s.lastMillis + 1
	}
	s.lastMillis = millis
	return strconv.FormatInt(millis, 10) + s.desc.FileExtension
}

// Artifact returns the most recently finalized artifact.
func (s *Session) Artifact() (Artifact, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.artifact == nil {
		return Artifact{}, false
	}
	return *s.artifact, true
}

// Name returns the most recent artifact name, or "" before the first cycle.
func (s *Session) Name() string {
	a, _ := s.Artifact()
	return a.Name
}

func (s *Session) Status() Status {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.status
}
