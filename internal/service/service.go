package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jsulmar/yarm/internal/media"
	"github.com/jsulmar/yarm/internal/player"
	"github.com/jsulmar/yarm/internal/recording"
	"github.com/jsulmar/yarm/internal/ui"
	"github.com/jsulmar/yarm/internal/upload"
)

// Progress messages shown next to the upload controls.
const (
	ProgressUploading = "Uploading..."
	uploadedPrefix    = "Uploaded to: "
	uploadErrorPrefix = "Upload error: "
)

// Service represents the recorder widget: the only entry point for user actions
type Service interface {
	Enable() error
	Record() error
	Stop() error
	Save() (string, error)
	Upload(ctx context.Context) error

	// Perform dispatches a user action by name
	Perform(ctx context.Context, action string) error

	State() ui.State
	View() ui.View
	Artifact() (recording.Artifact, bool)
	GetLastError() string
}

// Uploader sends an artifact and reports the normalized result.
type Uploader interface {
	Send(ctx context.Context, artifact recording.Artifact, endpoint string, onResult func(upload.Result))
}

// MediaPlayer shows a finalized recording.
type MediaPlayer interface {
	SetMedia(ref player.MediaRef) error
}

// Options are the fixed settings of one widget.
type Options struct {
	Descriptor recording.Descriptor
	Kind       media.Kind
	Endpoint   string
	OutputDir  string
	Autoplay   bool
	// OnNotice receives user-facing failure messages.
	OnNotice func(msg string)
}

// Widget is the main service implementation. Every session-mutating call
// and callback runs under mutex, one at a time.
type Widget struct {
	opts     Options
	source   *media.Source
	store    recording.Store
	machine  *ui.Machine
	player   MediaPlayer
	uploader Uploader

	mutex       sync.Mutex
	session     *recording.Session
	artifact    recording.Artifact
	hasArtifact bool

	// Error tracking
	lastError      string
	lastErrorMutex sync.RWMutex
}

// New creates a widget in the enable state.
func New(opts Options, source *media.Source, store recording.Store, machine *ui.Machine, p MediaPlayer, uploader Uploader) *Widget {
	if opts.OnNotice == nil {
		opts.OnNotice = func(string) {}
	}
	if opts.Kind == "" {
		opts.Kind = media.KindAudio
	}
	return &Widget{
		opts:     opts,
		source:   source,
		store:    store,
		machine:  machine,
		player:   p,
		uploader: uploader,
	}
}

// Enable acquires the capture stream. With a cached stream the widget is
// ready on return; otherwise it becomes ready when the permission flow
// succeeds.
func (w *Widget) Enable() error {
	if st := w.machine.State(); st != ui.StateEnable {
		return fmt.Errorf("%w: enable in state %s", ui.ErrActionNotAllowed, st)
	}
	w.clearLastError()

	if h, ok := w.source.Acquire(w.opts.Kind, w.onStream); ok {
		w.onStream(h)
	}
	return nil
}

// AcquisitionFailed reports a failed permission flow. The widget stays in
// enable so the user can retry.
func (w *Widget) AcquisitionFailed(err error) {
	w.setLastError(fmt.Sprintf("Failed to acquire local media: %v", err))
	w.opts.OnNotice(media.Notice(err))
}

func (w *Widget) onStream(h media.StreamHandle) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	// Every coalesced Enable call delivers the same handle
	if w.session != nil {
		return
	}
	w.session = recording.New(h, w.opts.Descriptor, w.store, w.onFinalized)
	if _, err := w.machine.Dispatch(ui.ActionAcquired); err != nil {
		slog.Error("Stream acquired in unexpected state", "error", err)
	}
}

// Record starts a new capture cycle.
func (w *Widget) Record() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.machine.Can(ui.ActionRecord) {
		return w.reject(ui.ActionRecord)
	}
	if err := w.session.Start(); err != nil {
		w.setLastError(fmt.Sprintf("Failed to start recording: %v", err))
		w.opts.OnNotice(fmt.Sprintf("Recording failed: %v", err))
		return err
	}
	w.artifact, w.hasArtifact = recording.Artifact{}, false
	w.clearLastError()
	_, err := w.machine.Dispatch(ui.ActionRecord)
	return err
}

// Stop ends capture. The artifact appears once the recorder finalizes it.
func (w *Widget) Stop() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.machine.Can(ui.ActionStop) {
		return w.reject(ui.ActionStop)
	}
	if err := w.session.Stop(); err != nil {
		w.setLastError(fmt.Sprintf("Failed to stop recording: %v", err))
		return err
	}
	_, err := w.machine.Dispatch(ui.ActionStop)
	return err
}

func (w *Widget) onFinalized(a recording.Artifact, err error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if err != nil {
		w.setLastError(fmt.Sprintf("Recording failed: %v", err))
		w.opts.OnNotice(fmt.Sprintf("Recording failed: %v", err))
		if _, derr := w.machine.Dispatch(ui.ActionCaptureFailed); derr != nil {
			slog.Debug("Capture failure outside a capture state", "error", derr)
		}
		return
	}

	w.artifact, w.hasArtifact = a, true
	if w.player != nil {
		ref := player.MediaRef{URL: a.URL, Name: a.Name, Autoplay: w.opts.Autoplay}
		if err := w.player.SetMedia(ref); err != nil {
			slog.Error("Failed to load recording into player", "name", a.Name, "error", err)
		}
	}
}

// Save writes the artifact to the output directory and returns its path.
func (w *Widget) Save() (string, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.machine.Can(ui.ActionSave) {
		return "", w.reject(ui.ActionSave)
	}
	if !w.hasArtifact {
		return "", recording.ErrNotFinalized
	}
	path, err := w.artifact.SaveTo(w.opts.OutputDir)
	if err != nil {
		w.setLastError(fmt.Sprintf("Failed to save recording: %v", err))
		return "", err
	}
	slog.Info("Recording saved", "path", path)
	_, err = w.machine.Dispatch(ui.ActionSave)
	return path, err
}

// Upload dispatches the artifact to the endpoint. The widget is uploading
// until the result arrives.
func (w *Widget) Upload(ctx context.Context) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if !w.machine.Can(ui.ActionUpload) {
		return w.reject(ui.ActionUpload)
	}
	if !w.hasArtifact {
		return recording.ErrNotFinalized
	}
	if _, err := w.machine.Dispatch(ui.ActionUpload, ProgressUploading); err != nil {
		return err
	}
	w.uploader.Send(ctx, w.artifact, w.opts.Endpoint, w.onUploadResult)
	return nil
}

func (w *Widget) onUploadResult(res upload.Result) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if res.OK {
		w.clearLastError()
		if _, err := w.machine.Dispatch(ui.ActionUploadSucceeded, uploadedPrefix+res.Location); err != nil {
			slog.Error("Upload result in unexpected state", "error", err)
		}
		return
	}

	w.setLastError(uploadErrorPrefix + res.Error)
	if _, err := w.machine.Dispatch(ui.ActionUploadFailed, uploadErrorPrefix+res.Error); err != nil {
		slog.Error("Upload result in unexpected state", "error", err)
	}
}

// Perform dispatches a user action by name.
func (w *Widget) Perform(ctx context.Context, action string) error {
	if action == "enable" {
		return w.Enable()
	}
	a, err := ui.ParseAction(action)
	if err != nil {
		return err
	}
	switch a {
	case ui.ActionRecord:
		return w.Record()
	case ui.ActionStop:
		return w.Stop()
	case ui.ActionSave:
		_, err := w.Save()
		return err
	default:
		return w.Upload(ctx)
	}
}

func (w *Widget) reject(a ui.Action) error {
	_, err := ui.Next(w.machine.State(), a)
	return err
}

func (w *Widget) State() ui.State { return w.machine.State() }

func (w *Widget) View() ui.View { return w.machine.View() }

// Artifact returns the current recording, which stays available after a
// failed upload until the next Record.
func (w *Widget) Artifact() (recording.Artifact, bool) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.artifact, w.hasArtifact
}

// IsRejected reports whether err means the action was not allowed.
func IsRejected(err error) bool {
	return errors.Is(err, ui.ErrActionNotAllowed)
}

// GetLastError returns the last error message (thread-safe)
func (w *Widget) GetLastError() string {
	w.lastErrorMutex.RLock()
	defer w.lastErrorMutex.RUnlock()
	return w.lastError
}

// setLastError sets the last error message (thread-safe)
func (w *Widget) setLastError(err string) {
	w.lastErrorMutex.Lock()
	defer w.lastErrorMutex.Unlock()
	w.lastError = err

	slog.Error("Service error occurred", "error_message", err)
}

// clearLastError clears the last error message (thread-safe)
func (w *Widget) clearLastError() {
	w.lastErrorMutex.Lock()
	defer w.lastErrorMutex.Unlock()
	w.lastError = ""
}
