// Package badge renders glucose readings as small images and text charts
package badge

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/mrcode/glucose-share/internal/models"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	size       = 64
	radius     = 16
	fontSize   = 34
	arrowSize  = 24
	staleAfter = 7 // minutes

	colorUnknown = "#808080"
	colorStale   = "#9ca3af"
	colorLow     = "#f97316"
	colorHigh    = "#facc15"
	colorInRange = "#4ade80"
)

// Renderer draws badge images. It is safe for concurrent use.
type Renderer struct {
	font        *truetype.Font
	formatValue func(mgdl int) string
}

// NewRenderer parses the embedded font. A nil formatter prints mg/dL values.
func NewRenderer(formatValue func(int) string) (*Renderer, error) {
	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}
	if formatValue == nil {
		formatValue = strconv.Itoa
	}
	return &Renderer{font: font, formatValue: formatValue}, nil
}

// Render returns a PNG badge for the reading. A nil reading renders a grey
// placeholder.
func (r *Renderer) Render(reading *models.Reading) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.draw(reading)); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderICO returns the badge wrapped in an ICO container, for favicons
func (r *Renderer) RenderICO(reading *models.Reading) ([]byte, error) {
	return imageToICO(r.draw(reading))
}

func (r *Renderer) draw(reading *models.Reading) image.Image {
	dc := gg.NewContext(size, size)

	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()

	red, green, blue := parseHexColor(StatusColor(reading))
	dc.SetRGB255(int(red), int(green), int(blue))
	dc.DrawRoundedRectangle(0, 0, size, size, radius)
	dc.Fill()

	// Dark text on light backgrounds
	brightness := (int(red)*299 + int(green)*587 + int(blue)*114) / 1000
	if brightness > 128 {
		dc.SetColor(color.Black)
	} else {
		dc.SetColor(color.White)
	}

	text := "---"
	direction := ""
	if reading != nil {
		text = r.formatValue(reading.Value)
		direction = reading.Trend.ID
	}

	dc.SetFontFace(truetype.NewFace(r.font, &truetype.Options{Size: fontSize}))
	dc.DrawStringAnchored(text, size/2, size/2-12, 0.5, 0.5)

	drawArrow(dc, size/2, size-16, arrowSize, direction)

	return dc.Image()
}

// StatusColor returns the badge background colour for a reading
func StatusColor(reading *models.Reading) string {
	if reading == nil {
		return colorUnknown
	}
	if reading.IsStale(staleAfter) {
		return colorStale
	}

	switch reading.Status {
	case models.StatusLow:
		return colorLow
	case models.StatusHigh:
		return colorHigh
	default:
		return colorInRange
	}
}

// arrowAngle returns the rotation in degrees for a trend, false for no arrow
func arrowAngle(direction string) (float64, bool) {
	switch direction {
	case models.TrendDoubleUp, models.TrendSingleUp:
		return 0, true
	case models.TrendFortyFiveUp:
		return 45, true
	case models.TrendFlat:
		return 90, true
	case models.TrendFortyFiveDown:
		return 135, true
	case models.TrendDoubleDown, models.TrendSingleDown:
		return 180, true
	default:
		return 0, false
	}
}

// drawArrow draws a vector arrow rotated for the trend
func drawArrow(dc *gg.Context, x, y, s float64, direction string) {
	angle, ok := arrowAngle(direction)
	if !ok {
		return
	}

	dc.Push()
	defer dc.Pop()

	dc.Translate(x, y)
	dc.Rotate(gg.Radians(angle))

	if direction == models.TrendDoubleUp || direction == models.TrendDoubleDown {
		drawSingleArrow(dc, 0, -s/4, s*0.8)
		drawSingleArrow(dc, 0, s/4, s*0.8)
		return
	}
	drawSingleArrow(dc, 0, 0, s)
}

// drawSingleArrow draws an upward arrow centred at ox, oy
func drawSingleArrow(dc *gg.Context, ox, oy, s float64) {
	w := s * 0.5

	dc.NewSubPath()
	dc.MoveTo(ox, oy-s/2)
	dc.LineTo(ox+w/2, oy)
	dc.LineTo(ox+w/6, oy)
	dc.LineTo(ox+w/6, oy+s/2)
	dc.LineTo(ox-w/6, oy+s/2)
	dc.LineTo(ox-w/6, oy)
	dc.LineTo(ox-w/2, oy)
	dc.ClosePath()
	dc.Fill()
}

// parseHexColor parses "#rrggbb"
func parseHexColor(hex string) (r, g, b byte) {
	if len(hex) == 7 && hex[0] == '#' {
		_, _ = fmt.Sscanf(hex, "#%02x%02x%02x", &r, &g, &b)
	}
	return
}

// imageToICO wraps a PNG-encoded image in a single-entry ICO container:
// a 6 byte ICONDIR, one 16 byte ICONDIRENTRY, then the PNG data.
func imageToICO(img image.Image) ([]byte, error) {
	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	pngData := pngBuf.Bytes()

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, uint16(0)) // reserved
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // type: icon
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // image count

	bounds := img.Bounds()
	buf.WriteByte(icoDimension(bounds.Dx()))
	buf.WriteByte(icoDimension(bounds.Dy()))
	buf.WriteByte(0) // no palette
	buf.WriteByte(0) // reserved
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))  // color planes
	_ = binary.Write(&buf, binary.LittleEndian, uint16(32)) // bits per pixel
	// #nosec G115 -- a 64x64 PNG cannot overflow uint32
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pngData)))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(22)) // data offset

	buf.Write(pngData)
	return buf.Bytes(), nil
}

// icoDimension encodes a width or height, where 0 means 256
func icoDimension(n int) byte {
	if n >= 256 {
		return 0
	}
	return byte(n)
}
