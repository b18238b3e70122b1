package player

import (
	"fmt"
	"html/template"
	"io"
)

var htmlPlayer = template.Must(template.New("html").Parse(
	`<div id="html_player_{{.ID}}">
  <audio src="{{.URL}}" controls{{if .Autoplay}} autoplay{{end}}></audio>
  <span class="name">{{.Name}}</span>
  <a href="{{.URL}}" download="{{.Name}}">download</a>
</div>
`))

// HTML writes an HTML5 audio element.
type HTML struct {
	w io.Writer
}

func NewHTML(w io.Writer) Renderer { return &HTML{w: w} }

func (h *HTML) Markup(id int) string {
	return fmt.Sprintf("<div id=\"html_player_%d\"></div>\n", id)
}

func (h *HTML) Initialize(id int, ready func()) error {
	ready()
	return nil
}

func (h *HTML) SetMedia(id int, ref MediaRef) error {
	// Artifact URLs are produced locally, file:// included.
	return htmlPlayer.Execute(h.w, struct {
		ID       int
		URL      template.URL
		Name     string
		Autoplay bool
	}{id, template.URL(ref.URL), ref.Name, ref.Autoplay})
}

func init() {
	Register("html", NewHTML)
}
