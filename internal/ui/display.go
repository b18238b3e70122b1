package ui

// Target is a visible unit: an appliance or an individual control.
type Target string

const (
	TargetRecorder Target = "recorder"
	TargetPlayback Target = "playback"
	TargetProgress Target = "progress"

	TargetApproval Target = "approval"
	TargetRecord   Target = "record"
	TargetStop     Target = "stop"
	TargetSave     Target = "save"
	TargetUpload   Target = "upload"
)

// Targets lists every target in display order.
var Targets = []Target{
	TargetRecorder, TargetPlayback, TargetProgress,
	TargetApproval, TargetRecord, TargetStop, TargetSave, TargetUpload,
}

// Group is what a directive does to its members.
type Group string

const (
	GroupShow    Group = "show"
	GroupHide    Group = "hide"
	GroupEnable  Group = "enable"
	GroupDisable Group = "disable"
)

type Directive struct {
	Group   Group
	Members []Target
}

// display is the complete visibility and enablement table. Every state
// mentions every target in a show/hide and every control in an
// enable/disable directive, so applying a state never depends on the
// previous one.
var display = map[State][]Directive{
	StateEnable: {
		{GroupShow, []Target{TargetRecorder, TargetApproval}},
		{GroupHide, []Target{TargetPlayback, TargetProgress, TargetRecord, TargetStop, TargetSave, TargetUpload}},
		{GroupEnable, []Target{TargetApproval}},
		{GroupDisable, []Target{TargetRecord, TargetStop, TargetSave, TargetUpload}},
	},
	StateReady: {
		{GroupShow, []Target{TargetRecorder, TargetRecord, TargetStop}},
		{GroupHide, []Target{TargetPlayback, TargetProgress, TargetApproval, TargetSave, TargetUpload}},
		{GroupEnable, []Target{TargetRecord}},
		{GroupDisable, []Target{TargetApproval, TargetStop, TargetSave, TargetUpload}},
	},
	StateRecording: {
		{GroupShow, []Target{TargetRecorder, TargetRecord, TargetStop}},
		{GroupHide, []Target{TargetPlayback, TargetProgress, TargetApproval, TargetSave, TargetUpload}},
		{GroupEnable, []Target{TargetStop}},
		{GroupDisable, []Target{TargetApproval, TargetRecord, TargetSave, TargetUpload}},
	},
	StateStopped: {
		{GroupShow, []Target{TargetRecorder, TargetPlayback, TargetRecord, TargetStop, TargetSave, TargetUpload}},
		{GroupHide, []Target{TargetProgress, TargetApproval}},
		{GroupEnable, []Target{TargetRecord, TargetSave, TargetUpload}},
		{GroupDisable, []Target{TargetApproval, TargetStop}},
	},
	StateUploading: {
		{GroupShow, []Target{TargetRecorder, TargetPlayback, TargetProgress, TargetRecord, TargetStop, TargetSave, TargetUpload}},
		{GroupHide, []Target{TargetApproval}},
		{GroupDisable, []Target{TargetApproval, TargetRecord, TargetStop, TargetSave, TargetUpload}},
	},
	StateUploaded: {
		{GroupShow, []Target{TargetRecorder, TargetPlayback, TargetProgress, TargetRecord, TargetStop, TargetSave, TargetUpload}},
		{GroupHide, []Target{TargetApproval}},
		{GroupEnable, []Target{TargetRecord, TargetSave, TargetUpload}},
		{GroupDisable, []Target{TargetApproval, TargetStop}},
	},
	StateUploadFailed: {
		{GroupShow, []Target{TargetRecorder, TargetPlayback, TargetProgress, TargetRecord, TargetStop, TargetSave, TargetUpload}},
		{GroupHide, []Target{TargetApproval}},
		{GroupEnable, []Target{TargetRecord, TargetSave, TargetUpload}},
		{GroupDisable, []Target{TargetApproval, TargetStop}},
	},
}

// Directives returns the display table entry for s.
func Directives(s State) []Directive {
	return display[s]
}

// Surface receives display updates.
type Surface interface {
	SetVisible(t Target, visible bool)
	SetEnabled(t Target, enabled bool)
	SetProgress(msg string)
	// Render is called once after every complete application.
	Render(s State)
}

// Apply interprets directives onto surface. It is the only code that turns
// the display table into surface calls.
func Apply(surface Surface, directives []Directive) {
	for _, d := range directives {
		for _, t := range d.Members {
			switch d.Group {
			case GroupShow:
				surface.SetVisible(t, true)
			case GroupHide:
				surface.SetVisible(t, false)
			case GroupEnable:
				surface.SetEnabled(t, true)
			case GroupDisable:
				surface.SetEnabled(t, false)
			}
		}
	}
}
