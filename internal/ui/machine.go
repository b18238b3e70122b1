package ui

import (
	"log/slog"
	"sync"
)

// View is a snapshot of what the surface currently shows.
type View struct {
	State    State
	Visible  map[Target]bool
	Enabled  map[Target]bool
	Progress string
}

// Allows reports whether control t is both visible and enabled.
func (v View) Allows(t Target) bool {
	return v.Visible[t] && v.Enabled[t]
}

// Machine is the authoritative session state. Set is its single mutation
// point; Dispatch validates an action and then calls it.
type Machine struct {
	mutex   sync.Mutex
	state   State
	view    View
	surface Surface
}

// NewMachine returns a machine in the enable state, already applied to
// surface. A nil surface is allowed.
func NewMachine(surface Surface) *Machine {
	m := &Machine{surface: surface}
	m.Set(StateEnable)
	return m
}

// Set applies state with an optional progress message. Applying the same
// state twice yields the same view.
func (m *Machine) Set(state State, progress ...string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.set(state, progress)
}

func (m *Machine) set(state State, progress []string) {
	msg := ""
	if len(progress) > 0 {
		msg = progress[0]
	}

	if m.state != state {
		slog.Debug("Session state changed", "from", m.state, "to", state)
	}
	m.state = state

	v := &viewSurface{view: View{
		State:   state,
		Visible: make(map[Target]bool, len(Targets)),
		Enabled: make(map[Target]bool, len(Targets)),
	}}
	directives := Directives(state)
	Apply(v, directives)
	v.SetProgress(msg)
	m.view = v.view

	if m.surface != nil {
		Apply(m.surface, directives)
		m.surface.SetProgress(msg)
		m.surface.Render(state)
	}
}

// Dispatch performs action if the current state accepts it. A rejected
// action returns an ErrActionNotAllowed error and changes nothing.
func (m *Machine) Dispatch(action Action, progress ...string) (State, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	next, err := Next(m.state, action)
	if err != nil {
		slog.Debug("Action rejected", "action", action, "state", m.state)
		return m.state, err
	}
	m.set(next, progress)
	return next, nil
}

// Can reports whether action is accepted in the current state.
func (m *Machine) Can(action Action) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, err := Next(m.state, action)
	return err == nil
}

func (m *Machine) State() State {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.state
}

// View returns a copy of the current view.
func (m *Machine) View() View {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	v := View{
		State:    m.view.State,
		Visible:  make(map[Target]bool, len(m.view.Visible)),
		Enabled:  make(map[Target]bool, len(m.view.Enabled)),
		Progress: m.view.Progress,
	}
	for k, b := range m.view.Visible {
		v.Visible[k] = b
	}
	for k, b := range m.view.Enabled {
		v.Enabled[k] = b
	}
	return v
}

// viewSurface records directives into a View.
type viewSurface struct {
	view View
}

func (s *viewSurface) SetVisible(t Target, visible bool) { s.view.Visible[t] = visible }
func (s *viewSurface) SetEnabled(t Target, enabled bool) { s.view.Enabled[t] = enabled }
func (s *viewSurface) SetProgress(msg string)            { s.view.Progress = msg }
func (s *viewSurface) Render(State)                      {}
