// Package watermark marks a vault document with the identity of the client it is
// delivered to. Marked bytes are produced per request and never stored.
package watermark

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/songon-extension/access-server/internal/errors"
)

const (
	ContentTypePDF  = "application/pdf"
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
	ContentTypeWebP = "image/webp"
)

const confidentialityNotice = "Ce document est strictement confidentiel - Reproduction interdite"

// Stamp identifies the recipient of a marked copy.
type Stamp struct {
	ClientName string
	Code       string
	At         time.Time
}

// Lines is the text drawn on the document, top to bottom.
func (s Stamp) Lines() []string {
	return []string{
		fmt.Sprintf("Document préparé pour %s", s.ClientName),
		fmt.Sprintf("Code: %s - %s", s.Code, s.At.Format("02/01/2006 15:04")),
		confidentialityNotice,
	}
}

// Watermarker is implemented by Renderer. Services depend on the interface so tests
// can substitute a deterministic marker.
type Watermarker interface {
	Apply(ctx context.Context, content []byte, stamp Stamp) ([]byte, error)
}

type Renderer struct {
	// MaxImageSide bounds the longest side of raster documents before marking.
	MaxImageSide int
}

func NewRenderer() *Renderer {
	return &Renderer{MaxImageSide: 3000}
}

// Supported reports whether a sniffed content type can be marked.
func Supported(contentType string) bool {
	switch contentType {
	case ContentTypePDF, ContentTypePNG, ContentTypeJPEG, ContentTypeWebP:
		return true
	}
	return false
}

// Detect sniffs the content type of a document from its first bytes.
func Detect(content []byte) string {
	ct, _, _ := strings.Cut(http.DetectContentType(content), ";")
	return ct
}

// Apply returns a marked copy of content. Unsupported formats fail closed.
func (r *Renderer) Apply(ctx context.Context, content []byte, stamp Stamp) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch ct := Detect(content); ct {
	case ContentTypePDF:
		return stampPDF(content, stamp)
	case ContentTypePNG, ContentTypeJPEG, ContentTypeWebP:
		return r.stampImage(content, ct, stamp)
	default:
		return nil, apperrors.UnsupportedDocument(ct)
	}
}
