package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var documentEmailTmpl = template.Must(template.ParseFS(templateFS, "templates/document_email.html"))

// DocumentEmail describes one delivered document.
type DocumentEmail struct {
	ClientName    string
	ParcelleNom   string
	ParcelleRef   string
	DocumentLabel string
	Watermarked   bool
	Year          int
}

func (d DocumentEmail) Subject() string {
	return fmt.Sprintf("Vos documents officiels - Parcelle %s - Songon Extension", d.ParcelleNom)
}

// Render returns the HTML body. Client-supplied values are escaped.
func (d DocumentEmail) Render() (string, error) {
	if d.Year == 0 {
		d.Year = time.Now().Year()
	}
	var buf bytes.Buffer
	if err := documentEmailTmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render document email: %w", err)
	}
	return buf.String(), nil
}
