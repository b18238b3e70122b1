package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"
)

var ErrEncodingUnavailable = errors.New("no supported encoding")

// Encoding maps a mime type onto encoder output arguments.
type Encoding struct {
	MimeType string
	Format   string // ffmpeg muxer
	Codec    string // ffmpeg audio encoder
	Video    string // ffmpeg video encoder, empty for audio-only containers
}

// containers lists the muxer and default codecs per base mime type.
var containers = map[string]Encoding{
	"audio/ogg":  {Format: "ogg", Codec: "libopus"},
	"audio/webm": {Format: "webm", Codec: "libopus"},
	"video/webm": {Format: "webm", Codec: "libopus", Video: "libvpx"},
	"audio/mpeg": {Format: "mp3", Codec: "libmp3lame"},
	"audio/wav":  {Format: "wav", Codec: "pcm_s16le"},
}

var codecEncoders = map[string]string{
	"opus":   "libopus",
	"vorbis": "libvorbis",
	"vp8":    "libvpx",
	"vp9":    "libvpx-vp9",
}

// LookupEncoding resolves a mime type such as "audio/ogg;codecs=opus".
func LookupEncoding(mimeType string) (Encoding, error) {
	base, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return Encoding{}, fmt.Errorf("%w: %q: %v", ErrEncodingUnavailable, mimeType, err)
	}
	enc, ok := containers[base]
	if !ok {
		return Encoding{}, fmt.Errorf("%w: unknown container %q", ErrEncodingUnavailable, base)
	}
	enc.MimeType = mimeType

	if codecs, ok := params["codecs"]; ok {
		for _, c := range strings.Split(codecs, ",") {
			name, ok := codecEncoders[strings.TrimSpace(strings.ToLower(c))]
			if !ok {
				return Encoding{}, fmt.Errorf("%w: unknown codec %q", ErrEncodingUnavailable, c)
			}
			if strings.HasPrefix(name, "libvpx") {
				enc.Video = name
			} else {
				enc.Codec = name
			}
		}
	}
	return enc, nil
}

// Negotiate returns the first candidate accepted by supported, in priority
// order. When none is supported it returns fallback together with an
// ErrEncodingUnavailable error; capture may still fail later with it.
func Negotiate(candidates []string, supported func(string) bool, fallback string) (string, error) {
	for _, c := range candidates {
		if supported(c) {
			slog.Debug("Negotiated encoding", "mime_type", c)
			return c, nil
		}
	}
	slog.Warn("No candidate encoding supported, using fallback", "candidates", candidates, "fallback", fallback)
	return fallback, fmt.Errorf("%w among %v", ErrEncodingUnavailable, candidates)
}

// ParseEncoders returns the encoder names listed by `ffmpeg -encoders`.
func ParseEncoders(output string) map[string]bool {
	encoders := make(map[string]bool)
	inList := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "------") {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			encoders[fields[1]] = true
		}
	}
	return encoders
}

// SupportFunc reports whether every encoder a mime type needs is present.
func SupportFunc(encoders map[string]bool) func(string) bool {
	return func(mimeType string) bool {
		enc, err := LookupEncoding(mimeType)
		if err != nil {
			return false
		}
		if !encoders[enc.Codec] {
			return false
		}
		return enc.Video == "" || encoders[enc.Video]
	}
}

// ProbeEncoders asks the installed ffmpeg which encoders it provides.
func ProbeEncoders() (func(string) bool, error) {
	output, err := runCommand("ffmpeg", "-hide_banner", "-encoders")
	if err != nil {
		return func(string) bool { return false }, fmt.Errorf("failed to list ffmpeg encoders: %w", err)
	}
	return SupportFunc(ParseEncoders(string(output))), nil
}

// Extension returns the file suffix matching the container of mimeType.
func Extension(mimeType string) (string, error) {
	enc, err := LookupEncoding(mimeType)
	if err != nil {
		return "", err
	}
	return "." + enc.Format, nil
}
