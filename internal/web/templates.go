package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"
)

// Templates manages HTML template rendering. Every page is parsed against
// the base layout.
type Templates struct {
	pages map[string]*template.Template
}

// NewTemplates creates a template manager by loading templates from the
// given filesystem.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	t := &Templates{pages: make(map[string]*template.Template)}

	pages, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return nil, fmt.Errorf("finding pages: %w", err)
	}

	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")
		tmpl, err := template.New("base").Funcs(defaultFuncs()).ParseFS(templatesFS, "layouts/base.html", page)
		if err != nil {
			return nil, fmt.Errorf("parsing template %q: %w", name, err)
		}
		t.pages[name] = tmpl
	}

	return t, nil
}

// Render renders a page template with the given data.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.pages[page]
	if !ok {
		return fmt.Errorf("template %q not found", page)
	}
	return tmpl.ExecuteTemplate(w, "base", data)
}

func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		"playedAt": func(ts time.Time) string {
			return ts.Local().Format("Jan 2, 2006 3:04 PM")
		},
		"join": strings.Join,
	}
}
