package media

import "errors"

var (
	ErrPermissionTimeout      = errors.New("timed out waiting for permission to use local media")
	ErrPermissionDenied       = errors.New("permission to use local media was denied")
	ErrUnsupportedEnvironment = errors.New("this environment cannot capture local media")
)

// User-facing notices for failed acquisitions.
const (
	FailNotice    = "You must grant permission to use local media. Please try again."
	SupportNotice = "This environment cannot use the recorder. Install PipeWire or PulseAudio with ffmpeg and try again."
)

// Notice maps an acquisition error to the message shown to the user.
func Notice(err error) string {
	if errors.Is(err, ErrUnsupportedEnvironment) {
		return SupportNotice
	}
	return FailNotice
}
