// Package web renders the server side login pages.
package web

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"os"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names
const (
	PageLogin      = "login"
	PageScanCode   = "scan_code"
	PageVerifyCode = "verify_code"
)

// LoginPage is the data of every login template
type LoginPage struct {
	Title        string
	Login        string
	Redirect     string
	Error        string
	PendingToken string
	SecretCode   string
	QRCode       string // base64 PNG
}

// Templates holds the parsed login pages
type Templates struct {
	t *template.Template
}

// files returns the template sources. TEMPLATE_DIR serves them from disk
// for development.
func files() fs.FS {
	if dir := os.Getenv("TEMPLATE_DIR"); dir != "" {
		return os.DirFS(dir)
	}
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		// embed paths are fixed at compile time
		panic(err)
	}
	return sub
}

// Load parses the login templates
func Load() (*Templates, error) {
	t, err := template.ParseFS(files(), "*.html")
	if err != nil {
		return nil, err
	}
	return &Templates{t: t}, nil
}

// Render writes page to w. The page is rendered to a buffer first so a
// template error never produces half a page.
func (ts *Templates) Render(w io.Writer, page string, data LoginPage) error {
	if data.Title == "" {
		data.Title = "Log in"
	}
	var buf bytes.Buffer
	if err := ts.t.ExecuteTemplate(&buf, page, data); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}
