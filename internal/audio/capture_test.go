package audio

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jsulmar/yarm/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu       sync.Mutex
	data     bytes.Buffer
	inactive chan error
}

func newCollector() *collector {
	return &collector{inactive: make(chan error, 1)}
}

func (c *collector) chunk(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Write(b)
}

func (c *collector) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-c.inactive:
		return err
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for inactive signal")
		return nil
	}
}

func TestExecCapture_DeliversOutputThenInactive(t *testing.T) {
	c := newCollector()
	capture := newExecCapture([]string{"sh", "-c", "printf hello; printf world"}, nil)

	require.NoError(t, capture.Start(c.chunk, func(err error) { c.inactive <- err }))
	assert.NoError(t, c.wait(t))
	assert.Equal(t, "helloworld", c.data.String())
}

func TestExecCapture_StopIsCleanExit(t *testing.T) {
	c := newCollector()
	capture := newExecCapture([]string{"sh", "-c", "printf x; exec sleep 30"}, nil)

	require.NoError(t, capture.Start(c.chunk, func(err error) { c.inactive <- err }))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, capture.Stop())

	assert.NoError(t, c.wait(t))
	assert.Equal(t, "x", c.data.String())
}

func TestExecCapture_FailureReachesInactive(t *testing.T) {
	c := newCollector()
	capture := newExecCapture([]string{"sh", "-c", "echo broken >&2; exit 3"}, nil)

	require.NoError(t, capture.Start(c.chunk, func(err error) { c.inactive <- err }))
	err := c.wait(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

type answer bool

func (a answer) Confirm(context.Context, string) (bool, error) { return bool(a), nil }

func TestPlatformRequest(t *testing.T) {
	fakeCommands(t, func(string, ...string) ([]byte, error) { return nil, nil })

	p := NewPlatform(NewPulse(), "default", answer(true))
	h, err := p.Request(context.Background(), media.KindAudio)
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID())
	assert.Equal(t, media.KindAudio, h.Kind())

	_, err = NewPlatform(NewPulse(), "default", answer(false)).Request(context.Background(), media.KindAudio)
	assert.ErrorIs(t, err, media.ErrPermissionDenied)
}

func TestEncoderArgs(t *testing.T) {
	enc, err := LookupEncoding("audio/ogg")
	require.NoError(t, err)

	argv := encoderArgs(NewPulse().Input("mic"), media.KindAudio, enc)
	assert.Equal(t, []string{
		"ffmpeg", "-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", "pulse", "-i", "mic",
		"-c:a", "libopus", "-f", "ogg", "pipe:1",
	}, argv)
}

func TestStreamNewCapture_VideoNeedsVideoContainer(t *testing.T) {
	s := &Stream{id: "s", kind: media.KindAudioVideo, source: "default", backend: NewPulse()}
	_, err := s.NewCapture("audio/ogg")
	assert.ErrorIs(t, err, ErrEncodingUnavailable)

	_, err = s.NewCapture(`video/webm;codecs="vp8,opus"`)
	assert.NoError(t, err)
}
