// Package export saves a preview as a standalone SVG file or rasterizes it to
// PNG. Everything happens locally.
package export

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// ErrNoPreview is returned when there is nothing to export.
var ErrNoPreview = errors.New("export: no preview to export")

const (
	svgNamespace  = "http://www.w3.org/2000/svg"
	DefaultWidth  = 800
	DefaultHeight = 600
	maxDimension  = 8192
	maxPixels     = 4096 * 4096
)

// Options controls rasterization.
type Options struct {
	// Width and Height are used when the SVG declares no usable size.
	Width, Height int
	// Scale multiplies the output size. Zero means 1.
	Scale float64
}

var svgOpenTag = regexp.MustCompile(`(?is)<svg\b[^>]*>`)

// SVG returns preview as a standalone SVG document, adding the SVG namespace
// to the root element when it is missing.
func SVG(preview string) ([]byte, error) {
	preview = strings.TrimSpace(preview)
	loc := svgOpenTag.FindStringIndex(preview)
	if loc == nil {
		return nil, ErrNoPreview
	}
	tag := preview[loc[0]:loc[1]]
	if strings.Contains(tag, "xmlns=") {
		return []byte(preview), nil
	}
	fixed := `<svg xmlns="` + svgNamespace + `"` + tag[len("<svg"):]
	return []byte(preview[:loc[0]] + fixed + preview[loc[1]:]), nil
}

// PNG rasterizes preview onto a white background. The output size is the
// SVG's width and height attributes, then its viewBox, then the fallback in
// opts.
func PNG(w io.Writer, preview string, opts Options) error {
	doc, err := SVG(preview)
	if err != nil {
		return err
	}

	icon, err := oksvg.ReadIconStream(bytes.NewReader(doc), oksvg.WarnErrorMode)
	if err != nil {
		return fmt.Errorf("parsing svg: %w", err)
	}

	width, height := Size(doc, opts)
	if icon.ViewBox.W == 0 || icon.ViewBox.H == 0 {
		icon.ViewBox.W, icon.ViewBox.H = float64(width), float64(height)
	}
	icon.SetTarget(0, 0, float64(width), float64(height))

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1)

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// Size reports the pixel size PNG would render doc at.
func Size(doc []byte, opts Options) (int, int) {
	fw, fh := opts.Width, opts.Height
	if fw <= 0 {
		fw = DefaultWidth
	}
	if fh <= 0 {
		fh = DefaultHeight
	}
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}

	w, h := declaredSize(doc)
	if w <= 0 || h <= 0 {
		w, h = float64(fw), float64(fh)
	}
	return fit(w*scale, h*scale)
}

// fit rounds a size to whole pixels. Sizes over maxDimension on either side
// or over maxPixels in area shrink with their aspect ratio kept.
func fit(w, h float64) (int, int) {
	factor := math.Min(1, math.Min(maxDimension/w, maxDimension/h))
	factor = math.Min(factor, math.Sqrt(maxPixels/(w*h)))
	if factor >= 1 {
		return atLeastOne(math.Ceil(w)), atLeastOne(math.Ceil(h))
	}
	return atLeastOne(math.Floor(w*factor + 1e-6)), atLeastOne(math.Floor(h*factor + 1e-6))
}

func atLeastOne(v float64) int {
	if !(v >= 1) {
		return 1
	}
	return int(v)
}

func declaredSize(doc []byte) (float64, float64) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return 0, 0
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "svg" {
			return 0, 0
		}

		var w, h float64
		var viewBox string
		for _, a := range start.Attr {
			switch a.Name.Local {
			case "width":
				w = length(a.Value)
			case "height":
				h = length(a.Value)
			case "viewBox":
				viewBox = a.Value
			}
		}
		if w > 0 && h > 0 {
			return w, h
		}
		if f := strings.Fields(strings.ReplaceAll(viewBox, ",", " ")); len(f) == 4 {
			vw, _ := strconv.ParseFloat(f[2], 64)
			vh, _ := strconv.ParseFloat(f[3], 64)
			return vw, vh
		}
		return 0, 0
	}
}

// length parses an absolute SVG length. Percentages and unknown units yield 0.
func length(s string) float64 {
	s = strings.TrimSpace(s)
	units := map[string]float64{"px": 1, "pt": 4.0 / 3.0, "cm": 96 / 2.54, "mm": 96 / 25.4, "in": 96}
	factor := 1.0
	for u, f := range units {
		if strings.HasSuffix(s, u) {
			s, factor = strings.TrimSuffix(s, u), f
			break
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v * factor
}

// Filename is the download name for an export made at now.
func Filename(ext string, now time.Time) string {
	return fmt.Sprintf("tikz_export_%d.%s", now.UnixMilli(), strings.TrimPrefix(ext, "."))
}
