package watermark

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"sync"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

var stampColor = color.NRGBA{R: 128, G: 128, B: 128, A: 70}

var (
	stampFontOnce sync.Once
	stampFont     *opentype.Font
)

// loadFace sets a bold face scaled to the image, falling back to basicfont.
func loadFace(dc *gg.Context, size float64) {
	stampFontOnce.Do(func() {
		f, err := opentype.Parse(gobold.TTF)
		if err == nil {
			stampFont = f
		}
	})

	if stampFont != nil {
		face, err := opentype.NewFace(stampFont, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			dc.SetFontFace(face)
			return
		}
	}
	dc.SetFontFace(basicfont.Face7x13)
}

func decodeImage(content []byte, contentType string) (image.Image, error) {
	r := bytes.NewReader(content)
	switch contentType {
	case ContentTypePNG:
		return png.Decode(r)
	case ContentTypeJPEG:
		return jpeg.Decode(r)
	case ContentTypeWebP:
		return webp.Decode(r)
	}
	return nil, fmt.Errorf("unsupported image type %q", contentType)
}

func encodeImage(img image.Image, contentType string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch contentType {
	case ContentTypePNG:
		err = png.Encode(&buf, img)
	case ContentTypeJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case ContentTypeWebP:
		err = webp.Encode(&buf, img, &webp.Options{Lossless: false, Quality: 85})
	default:
		err = fmt.Errorf("unsupported image type %q", contentType)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// stampImage tiles the stamp diagonally across the whole image.
func (r *Renderer) stampImage(content []byte, contentType string, stamp Stamp) ([]byte, error) {
	src, err := decodeImage(content, contentType)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", contentType, err)
	}

	b := src.Bounds()
	if r.MaxImageSide > 0 && (b.Dx() > r.MaxImageSide || b.Dy() > r.MaxImageSide) {
		src = imaging.Fit(src, r.MaxImageSide, r.MaxImageSide, imaging.Lanczos)
		b = src.Bounds()
	}

	w, h := float64(b.Dx()), float64(b.Dy())
	dc := gg.NewContextForImage(src)

	fontSize := math.Max(12, math.Min(w, h)/28)
	loadFace(dc, fontSize)
	dc.SetColor(stampColor)

	lines := stamp.Lines()
	lineHeight := fontSize * 1.4
	blockHeight := lineHeight * float64(len(lines)+2)
	diag := math.Hypot(w, h)

	dc.Push()
	dc.RotateAbout(gg.Radians(-45), w/2, h/2)
	for y := h/2 - diag; y < h/2+diag; y += blockHeight {
		for i, line := range lines {
			dc.DrawStringAnchored(line, w/2, y+float64(i)*lineHeight, 0.5, 0.5)
		}
	}
	dc.Pop()

	return encodeImage(dc.Image(), contentType)
}
