package player

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"
)

// externalPlayers in order of preference
var externalPlayers = []string{"vlc", "mpv", "ffplay", "aplay"}

var lookPath = exec.LookPath

// External hands media to the first desktop player found on PATH.
type External struct {
	w      io.Writer
	player string
	start  func(name string, args ...string) error
}

func NewExternal(w io.Writer) Renderer {
	return &External{w: w, start: startDetached}
}

func (e *External) Markup(int) string { return "" }

// Initialize locates a player and reports ready once one is found.
func (e *External) Initialize(id int, ready func()) error {
	player, err := findAudioPlayer()
	if err != nil {
		return err
	}
	e.player = player
	slog.Debug("External player selected", "id", id, "player", player)
	ready()
	return nil
}

func (e *External) SetMedia(id int, ref MediaRef) error {
	path := localPath(ref.URL)
	args := playerArgs(e.player, path)

	if !ref.Autoplay {
		_, err := fmt.Fprintf(e.w, "player %d: %s (play with: %s %s)\n", id, ref.Name, e.player, strings.Join(args, " "))
		return err
	}

	fmt.Fprintf(e.w, "Playing: %s\n", ref.Name)
	if err := e.start(e.player, args...); err != nil {
		return fmt.Errorf("playback failed with %s: %w", e.player, err)
	}
	return nil
}

func findAudioPlayer() (string, error) {
	for _, player := range externalPlayers {
		if _, err := lookPath(player); err == nil {
			return player, nil
		}
	}
	return "", fmt.Errorf("no audio player found (tried: %s)", strings.Join(externalPlayers, ", "))
}

func playerArgs(player, path string) []string {
	switch player {
	case "vlc":
		return []string{"--play-and-exit", path}
	case "mpv":
		return []string{"--no-video", path}
	case "ffplay":
		return []string{"-nodisp", "-autoexit", path}
	default:
		return []string{path}
	}
}

// localPath turns a file:// URL into a path; other references pass through.
func localPath(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "file" {
		return ref
	}
	return u.Path
}

// startDetached launches the player and reaps it in the background.
func startDetached(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("Player exited", "player", name, "error", err)
		}
	}()
	return nil
}

func init() {
	Register("external", NewExternal)
}
