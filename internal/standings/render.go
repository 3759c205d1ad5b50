package standings

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ErrEncoding is returned when a rendered table cannot be encoded.
var ErrEncoding = errors.New("unable to encode standings image")

const (
	padding    = 10
	charWidth  = 7
	charHeight = 13
	rowHeight  = charHeight + padding
)

var (
	background  = color.RGBA{R: 240, G: 240, B: 240, A: 255}
	titleColor  = color.RGBA{R: 188, G: 0, B: 3, A: 255}
	headerColor = color.RGBA{R: 120, G: 110, B: 110, A: 255}
	cellColor   = color.Black
)

type table struct {
	title   string
	headers []string
	rows    [][]string
}

func driverTable(s *Standings) table {
	t := table{
		title:   "Driver standing after the " + s.RaceName(s.DriverRound),
		headers: []string{"Position", "Name", "Team", "Points"},
	}
	for _, d := range s.Drivers {
		t.rows = append(t.rows, []string{d.Position, d.Name, d.Team, points(d.Points)})
	}
	return t
}

func constructorTable(s *Standings) table {
	t := table{
		title:   "Constructor standing after the " + s.RaceName(s.ConstructorRound),
		headers: []string{"Position", "Team", "Points", "Wins"},
	}
	for _, c := range s.Constructors {
		wins := fmt.Sprintf("%d / %d", c.Wins, s.ConstructorRound)
		t.rows = append(t.rows, []string{c.Position, c.Team, points(c.Points), wins})
	}
	return t
}

func points(p float64) string {
	return strconv.Itoa(int(p))
}

// widths is the longest cell per column in characters, header included.
func (t table) widths() []int {
	w := make([]int, len(t.headers))
	for i, h := range t.headers {
		w[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); i < len(w) && n > w[i] {
				w[i] = n
			}
		}
	}
	return w
}

// size is the canvas size: title line, header line and one line per row.
func (t table) size() (int, int) {
	width := utf8.RuneCountInString(t.title)*charWidth + 2*padding
	cols := padding
	for _, w := range t.widths() {
		cols += w*charWidth + padding
	}
	if cols > width {
		width = cols
	}
	height := padding + (2+len(t.rows))*rowHeight
	return width, height
}

// RenderDrivers draws the driver standings as a PNG.
func RenderDrivers(s *Standings) ([]byte, error) {
	return renderPNG(driverTable(s))
}

// RenderConstructors draws the constructor standings as a PNG.
func RenderConstructors(s *Standings) ([]byte, error) {
	return renderPNG(constructorTable(s))
}

func renderPNG(t table) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodePNG(&buf, drawTable(t)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return nil
}

func drawTable(t table) *image.RGBA {
	width, height := t.size()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	xs := make([]int, len(t.headers))
	x := padding
	for i, w := range t.widths() {
		xs[i] = x
		x += w*charWidth + padding
	}

	y := padding
	drawText(img, padding, y, t.title, titleColor)
	y += rowHeight

	for i, h := range t.headers {
		drawText(img, xs[i], y, h, headerColor)
	}
	y += rowHeight

	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(xs) {
				drawText(img, xs[i], y, cell, cellColor)
			}
		}
		y += rowHeight
	}
	return img
}

func drawText(img draw.Image, x, y int, s string, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(s)
}

// Text renders both championships as monospace tables.
func Text(s *Standings) string {
	var b strings.Builder
	writeTextTable(&b, driverTable(s))
	b.WriteString("\n")
	writeTextTable(&b, constructorTable(s))
	return b.String()
}

func writeTextTable(b *strings.Builder, t table) {
	widths := t.widths()
	b.WriteString(t.title)
	b.WriteString("\n")
	writeTextRow(b, t.headers, widths)
	for _, row := range t.rows {
		writeTextRow(b, row, widths)
	}
}

func writeTextRow(b *strings.Builder, cells []string, widths []int) {
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		b.WriteString(cell)
		if i < len(cells)-1 {
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)+2))
		}
	}
	b.WriteString("\n")
}
