package watermark

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

const pdfStampDescription = "fontname:Helvetica-Bold, points:28, rotation:45, opacity:0.18, fillcolor:#808080, scalefactor:0.9 rel"

var pdfConfigOnce sync.Once

func pdfConfig() *model.Configuration {
	pdfConfigOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// stampPDF writes the stamp on every page.
func stampPDF(content []byte, stamp Stamp) ([]byte, error) {
	var out bytes.Buffer
	text := strings.Join(stamp.Lines(), "\n")

	wm, err := api.TextWatermark(text, pdfStampDescription, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("build pdf stamp: %w", err)
	}
	if err := api.AddWatermarks(bytes.NewReader(content), &out, nil, wm, pdfConfig()); err != nil {
		return nil, fmt.Errorf("stamp pdf: %w", err)
	}
	return out.Bytes(), nil
}
