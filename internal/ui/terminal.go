package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Terminal renders the state as one status line per update.
type Terminal struct {
	out io.Writer

	mutex    sync.Mutex
	visible  map[Target]bool
	enabled  map[Target]bool
	progress string
}

func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{
		out:     out,
		visible: make(map[Target]bool),
		enabled: make(map[Target]bool),
	}
}

func (t *Terminal) SetVisible(target Target, visible bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.visible[target] = visible
}

func (t *Terminal) SetEnabled(target Target, enabled bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.enabled[target] = enabled
}

func (t *Terminal) SetProgress(msg string) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.progress = msg
}

// Render prints e.g. "[stopped] actions: record save upload | playback".
func (t *Terminal) Render(s State) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	var actions []string
	for _, target := range []Target{TargetApproval, TargetRecord, TargetStop, TargetSave, TargetUpload} {
		if t.visible[target] && t.enabled[target] {
			name := string(target)
			if target == TargetApproval {
				name = "enable"
			}
			actions = append(actions, name)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, "(wait)")
	}

	line := fmt.Sprintf("[%s] actions: %s", s, strings.Join(actions, " "))
	if t.visible[TargetPlayback] {
		line += " | playback"
	}
	if t.visible[TargetProgress] && t.progress != "" {
		line += " | " + t.progress
	}
	fmt.Fprintln(t.out, line)
}
