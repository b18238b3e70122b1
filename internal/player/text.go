package player

import (
	"fmt"
	"io"
)

// Text prints the media reference.
type Text struct {
	w io.Writer
}

func NewText(w io.Writer) Renderer { return &Text{w: w} }

func (t *Text) Markup(int) string { return "" }

func (t *Text) Initialize(id int, ready func()) error {
	ready()
	return nil
}

func (t *Text) SetMedia(id int, ref MediaRef) error {
	_, err := fmt.Fprintf(t.w, "player %d: %s <%s>\n", id, ref.Name, ref.URL)
	return err
}

func init() {
	Register("text", NewText)
}
