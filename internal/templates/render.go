// Package templates renders the HTML fragments shown in map popups.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"sync"

	"github.com/joeblew999/plat-flood/internal/service"
)

//go:embed fragments/*.html
var fragments embed.FS

// FallbackLabel is shown for popup fields missing from a feature unless the
// field sets its own.
const FallbackLabel = "No especificado"

var funcMap = template.FuncMap{
	"lower": strings.ToLower,
}

// Renderer manages HTML fragment templates.
type Renderer struct {
	templates *template.Template
	mu        sync.RWMutex
}

// New parses the embedded fragments.
func New() (*Renderer, error) {
	return NewFS(fragments, "fragments/*.html")
}

// NewFS parses fragments matching pattern in fsys.
func NewFS(fsys fs.FS, pattern string) (*Renderer, error) {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("parsing fragments: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Must is New that panics on error; the embedded fragments are fixed at
// build time.
func Must() *Renderer {
	r, err := New()
	if err != nil {
		panic(err)
	}
	return r
}

// Render renders a named template to a string.
func (r *Renderer) Render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderToBuffer(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderToBuffer renders a named template to a buffer.
func (r *Renderer) RenderToBuffer(buf *bytes.Buffer, name string, data any) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.templates.ExecuteTemplate(buf, name, data)
}

// Reload re-parses the embedded fragments, then the fragments matching
// pattern in fsys. A fragment defined in fsys replaces the embedded one of
// the same name.
func (r *Renderer) Reload(fsys fs.FS, pattern string) error {
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(fragments, "fragments/*.html")
	if err != nil {
		return fmt.Errorf("parsing fragments: %w", err)
	}
	if tmpl, err = tmpl.ParseFS(fsys, pattern); err != nil {
		return fmt.Errorf("parsing fragment overrides: %w", err)
	}

	r.mu.Lock()
	r.templates = tmpl
	r.mu.Unlock()

	return nil
}

// PopupRow is one labelled value.
type PopupRow struct {
	Label   string
	Value   string
	Suffix  string
	Missing bool
}

// PopupData is the input of the "popup" template.
type PopupData struct {
	Title  string
	Rows   []PopupRow
	Notice string
}

// BuildPopup evaluates the popup fields against a feature's properties.
func BuildPopup(spec service.PopupSpec, properties map[string]any) PopupData {
	data := PopupData{Title: spec.Title, Notice: spec.Notice}
	for _, f := range spec.Fields {
		row := PopupRow{Label: f.Label, Suffix: f.Suffix, Value: FallbackLabel, Missing: true}
		if f.Fallback != "" {
			row.Value = f.Fallback
		}
		for _, k := range f.Keys {
			if v, ok := properties[k]; ok && v != nil && fmt.Sprint(v) != "" {
				row.Value = fmt.Sprint(v)
				row.Missing = false
				break
			}
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

// Popup renders the popup for a clicked feature.
func (r *Renderer) Popup(spec service.PopupSpec, properties map[string]any) (string, error) {
	return r.Render("popup", BuildPopup(spec, properties))
}

// Location renders the user-location marker popup.
func (r *Renderer) Location(label string) (string, error) {
	return r.Render("location", label)
}

// Notice renders an event for the viewer's notice area.
func (r *Renderer) Notice(ev service.Event) (string, error) {
	return r.Render("notice", ev)
}
