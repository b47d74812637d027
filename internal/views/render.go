package views

import (
	"errors"
	"html/template"
	"io"
	"io/fs"

	"tramboard/internal/board"
)

var boardTmpl *template.Template

var errNotLoaded = errors.New("board template not loaded: call views.LoadTemplates during startup")

// loadTemplatesFromFS loads board templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	boardTmpl = tmpl
	return nil
}

// LoadTemplates loads the embedded templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// PageData is the view model for the full board page.
type PageData struct {
	View   board.View
	WSPath string
}

func RenderPage(w io.Writer, data *PageData) error {
	if boardTmpl == nil {
		return errNotLoaded
	}
	return boardTmpl.ExecuteTemplate(w, "index.html", data)
}

// RenderBoardPartial executes only the board partial into w.
// Used for websocket pushes that replace the board in place.
func RenderBoardPartial(w io.Writer, view board.View) error {
	if boardTmpl == nil {
		return errNotLoaded
	}
	return boardTmpl.ExecuteTemplate(w, "partials/board.html", view)
}
