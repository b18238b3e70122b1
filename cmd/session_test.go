package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jsulmar/yarm/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiateDescriptor(t *testing.T) {
	cfg := config.Default()
	cfg.Media.MimeType = "audio/ogg"
	cfg.Media.FileExtension = ".oga"
	cfg.Encodings = []string{"audio/webm;codecs=opus", "audio/ogg;codecs=opus"}

	t.Run("first supported wins", func(t *testing.T) {
		desc := negotiateDescriptor(cfg, func(string) bool { return true })
		assert.Equal(t, "audio/webm;codecs=opus", desc.MimeType)
		assert.Equal(t, ".webm", desc.FileExtension)
	})

	t.Run("configured extension kept for same container", func(t *testing.T) {
		desc := negotiateDescriptor(cfg, func(m string) bool { return m == "audio/ogg;codecs=opus" })
		assert.Equal(t, "audio/ogg;codecs=opus", desc.MimeType)
		assert.Equal(t, ".oga", desc.FileExtension)
	})

	t.Run("falls back to configured media", func(t *testing.T) {
		desc := negotiateDescriptor(cfg, func(string) bool { return false })
		assert.Equal(t, "audio/ogg", desc.MimeType)
		assert.Equal(t, ".oga", desc.FileExtension)
	})

	t.Run("no probe", func(t *testing.T) {
		desc := negotiateDescriptor(cfg, nil)
		assert.Equal(t, "audio/ogg", desc.MimeType)
	})
}

func TestLineRouter_Confirm(t *testing.T) {
	var out bytes.Buffer
	r := &lineRouter{out: &out}
	assert.False(t, r.route("record"), "nothing pending")

	result := make(chan bool, 1)
	go func() {
		ok, err := r.Confirm(context.Background(), "Allow access to mic?")
		assert.NoError(t, err)
		result <- ok
	}()

	require.Eventually(t, func() bool { return r.route("Yes") }, time.Second, 5*time.Millisecond)
	assert.True(t, <-result)
	assert.False(t, r.route("y"), "answer consumed once")
}

func TestLineRouter_ConfirmCancelled(t *testing.T) {
	r := &lineRouter{out: &bytes.Buffer{}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := r.Confirm(ctx, "Allow?")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, r.route("y"))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2*1024*1024))
}
