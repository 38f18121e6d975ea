package watermark

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/songon-extension/access-server/internal/errors"
)

func testStamp() Stamp {
	return Stamp{
		ClientName: "Awa Koné",
		Code:       "K7P2QX9M",
		At:         time.Date(2025, 3, 14, 9, 5, 0, 0, time.UTC),
	}
}

func whitePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// onePagePDF assembles a blank A4 page with a valid cross-reference table.
func onePagePDF(t *testing.T) []byte {
	t.Helper()
	content := "BT /F1 12 Tf 72 720 Td (Plan de bornage) Tj ET"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestStampLines(t *testing.T) {
	lines := testStamp().Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, "Document préparé pour Awa Koné", lines[0])
	assert.Equal(t, "Code: K7P2QX9M - 14/03/2025 09:05", lines[1])
	assert.Equal(t, "Ce document est strictement confidentiel - Reproduction interdite", lines[2])
}

func TestDetect(t *testing.T) {
	assert.Equal(t, ContentTypePDF, Detect([]byte("%PDF-1.7\n")))
	assert.Equal(t, ContentTypePNG, Detect(whitePNG(t, 2, 2)))
	assert.Equal(t, "text/plain", Detect([]byte("hello")))
	assert.True(t, Supported(ContentTypeWebP))
	assert.False(t, Supported("text/plain"))
}

func TestApply_PNG(t *testing.T) {
	original := whitePNG(t, 400, 300)

	marked, err := NewRenderer().Apply(context.Background(), original, testStamp())
	require.NoError(t, err)
	assert.NotEqual(t, original, marked)

	img, err := png.Decode(bytes.NewReader(marked))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestApply_PDF(t *testing.T) {
	original := onePagePDF(t)
	require.Equal(t, ContentTypePDF, Detect(original))

	marked, err := NewRenderer().Apply(context.Background(), original, testStamp())
	require.NoError(t, err)
	assert.NotEqual(t, original, marked)
	assert.Equal(t, ContentTypePDF, Detect(marked))

	stamped, err := api.HasWatermarks(bytes.NewReader(marked), pdfConfig())
	require.NoError(t, err)
	assert.True(t, stamped)
}

func TestApply_JPEGKeepsFormat(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 200))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))

	marked, err := NewRenderer().Apply(context.Background(), buf.Bytes(), testStamp())
	require.NoError(t, err)
	assert.Equal(t, ContentTypeJPEG, Detect(marked))
}

func TestApply_DownscalesLargeImages(t *testing.T) {
	r := &Renderer{MaxImageSide: 100}

	marked, err := r.Apply(context.Background(), whitePNG(t, 400, 200), testStamp())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(marked))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestApply_UnsupportedFailsClosed(t *testing.T) {
	_, err := NewRenderer().Apply(context.Background(), []byte("plain text document"), testStamp())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeUnsupportedDocument, apperrors.GetCode(err))
}

func TestApply_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRenderer().Apply(ctx, whitePNG(t, 10, 10), testStamp())
	assert.ErrorIs(t, err, context.Canceled)
}
