package player

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lateRenderer becomes ready only when the test says so.
type lateRenderer struct {
	mu    sync.Mutex
	ready func()
	media []MediaRef
}

func (r *lateRenderer) Markup(id int) string { return "" }

func (r *lateRenderer) Initialize(id int, ready func()) error {
	r.ready = ready
	return nil
}

func (r *lateRenderer) SetMedia(id int, ref MediaRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.media = append(r.media, ref)
	return nil
}

func TestResolve(t *testing.T) {
	for _, name := range []string{"html", "text", "external"} {
		_, err := Resolve(name)
		assert.NoError(t, err, name)
	}

	_, err := Resolve("jplayer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "available")
	assert.Equal(t, []string{"external", "html", "text"}, Names())
}

func TestNew_AssignsDistinctIDs(t *testing.T) {
	var buf bytes.Buffer
	a, err := New(&buf, NewHTML)
	require.NoError(t, err)
	b, err := New(&buf, NewHTML)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Contains(t, buf.String(), "html_player_")
}

func TestSetMedia_WaitsForReady(t *testing.T) {
	r := &lateRenderer{}
	p, err := New(io.Discard, func(io.Writer) Renderer { return r })
	require.NoError(t, err)

	select {
	case <-p.Ready():
		t.Fatal("player must not be ready yet")
	default:
	}

	require.NoError(t, p.SetMedia(MediaRef{Name: "first"}))
	require.NoError(t, p.SetMedia(MediaRef{Name: "second"}))
	assert.Empty(t, r.media)

	r.ready()
	<-p.Ready()
	require.Len(t, r.media, 1)
	assert.Equal(t, "second", r.media[0].Name)

	require.NoError(t, p.SetMedia(MediaRef{Name: "third"}))
	assert.Len(t, r.media, 2)
}

func TestHTML_RendersMediaAndDownload(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(&buf, NewHTML)
	require.NoError(t, err)

	require.NoError(t, p.SetMedia(MediaRef{URL: "file:///tmp/1.ogg", Name: "1.ogg", Autoplay: true}))

	out := buf.String()
	assert.Contains(t, out, `<audio src="file:///tmp/1.ogg" controls autoplay>`)
	assert.Contains(t, out, `download="1.ogg"`)
	assert.Contains(t, out, `<span class="name">1.ogg</span>`)
}

func TestHTML_EscapesName(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewHTML(&buf).SetMedia(1, MediaRef{URL: "/u/1.ogg", Name: "<b>"}))
	assert.NotContains(t, buf.String(), "<b>")
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	p, err := New(&buf, NewText)
	require.NoError(t, err)
	require.NoError(t, p.SetMedia(MediaRef{URL: "/uploads/1.ogg", Name: "1.ogg"}))
	assert.True(t, strings.HasSuffix(buf.String(), "1.ogg </uploads/1.ogg>\n"))
}

func TestExternal(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(name string) (string, error) {
		if name == "mpv" {
			return "/usr/bin/mpv", nil
		}
		return "", errors.New("not found")
	}

	var buf bytes.Buffer
	var started []string
	r := &External{w: &buf, start: func(name string, args ...string) error {
		started = append([]string{name}, args...)
		return nil
	}}
	p, err := New(&buf, func(io.Writer) Renderer { return r })
	require.NoError(t, err)

	require.NoError(t, p.SetMedia(MediaRef{URL: "file:///tmp/a%20b.ogg", Name: "a b.ogg"}))
	assert.Contains(t, buf.String(), "play with: mpv --no-video /tmp/a b.ogg")
	assert.Empty(t, started)

	require.NoError(t, p.SetMedia(MediaRef{URL: "file:///tmp/1.ogg", Name: "1.ogg", Autoplay: true}))
	assert.Equal(t, []string{"mpv", "--no-video", "/tmp/1.ogg"}, started)
}

func TestExternal_NoPlayer(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := New(io.Discard, NewExternal)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no audio player found")
}
