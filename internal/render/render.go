// Package render rasterises routes into PNG previews.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"pic-router/internal/port"
	"pic-router/internal/route"
	"pic-router/internal/segment"
	"pic-router/internal/xsection"
	"pic-router/pkg/colorutil"
	"pic-router/pkg/geometry"
)

// ErrEmptyScene is returned when there is nothing to draw.
var ErrEmptyScene = errors.New("nothing to render")

// Options configures how routes are rendered.
type Options struct {
	PixelsPerUm float64 // Scale before clamping to MaxSize
	Margin      float64 // Border around the content, µm
	MaxSize     int     // Longest image side in pixels
	MinLinePx   float64 // Waveguides narrower than this are widened for visibility
	DrawPorts   bool
	DrawLabels  bool
	FontSize    float64 // Label size in points
}

// DefaultOptions returns default rendering options.
func DefaultOptions() Options {
	return Options{
		PixelsPerUm: 4,
		Margin:      20,
		MaxSize:     4096,
		MinLinePx:   1,
		DrawPorts:   true,
		DrawLabels:  true,
		FontSize:    12,
	}
}

// Scene is everything drawn in one preview.
type Scene struct {
	Routes        []*route.Route
	Ports         []port.Port
	CrossSections map[string]xsection.CrossSection
}

// viewport maps layout µm (y up) onto pixels (y down).
type viewport struct {
	minX, maxY float64
	scale      float64
}

func (v viewport) toPx(p geometry.Point2D) (float32, float32) {
	return float32((p.X - v.minX) * v.scale), float32((v.maxY - p.Y) * v.scale)
}

// Render produces an RGBA image of the scene.
func Render(sc Scene, opts Options) (*image.RGBA, error) {
	var pts []geometry.Point2D
	for _, r := range sc.Routes {
		pts = append(pts, r.Centerline()...)
	}
	for _, p := range sc.Ports {
		pts = append(pts, p.Center)
	}
	if len(pts) == 0 {
		return nil, ErrEmptyScene
	}

	bounds := geometry.BoundingBox(pts).Expand(opts.Margin)
	if bounds.Width <= 0 {
		bounds = bounds.Union(geometry.Rect{X: bounds.X, Y: bounds.Y, Width: 1})
	}
	if bounds.Height <= 0 {
		bounds = bounds.Union(geometry.Rect{X: bounds.X, Y: bounds.Y, Height: 1})
	}

	scale := opts.PixelsPerUm
	if scale <= 0 {
		return nil, fmt.Errorf("invalid scale %g", scale)
	}
	if longest := math.Max(bounds.Width, bounds.Height) * scale; opts.MaxSize > 0 && longest > float64(opts.MaxSize) {
		scale *= float64(opts.MaxSize) / longest
	}
	w := max(1, int(math.Ceil(bounds.Width*scale)))
	h := max(1, int(math.Ceil(bounds.Height*scale)))
	if opts.MaxSize > 0 {
		w, h = min(w, opts.MaxSize), min(h, opts.MaxSize)
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(colorutil.White), image.Point{}, draw.Src)

	c := &canvas{
		img:  img,
		z:    vector.NewRasterizer(w, h),
		view: viewport{minX: bounds.X, maxY: bounds.Y + bounds.Height, scale: scale},
		opts: opts,
	}

	// Cladding and slabs first, cores on top
	for _, r := range sc.Routes {
		for _, s := range r.Segments {
			xs, ok := sc.CrossSections[s.CrossSection]
			if !ok {
				continue
			}
			for _, sec := range xs.Sections {
				c.fillStrip(s.Points, sec.Width, sec.Width, sec.Offset, colorutil.Lighten(colorutil.LayerColor(sec.Layer), 0.3))
			}
		}
	}
	for _, r := range sc.Routes {
		for _, s := range r.Segments {
			layer := s.CrossSection
			if xs, ok := sc.CrossSections[s.CrossSection]; ok {
				layer = xs.Layer
			}
			col := colorutil.LayerColor(layer)
			if s.Kind == segment.KindTaper {
				col = colorutil.Darken(col, 0.3)
			}
			c.fillStrip(s.Points, s.Width1, s.Width2, 0, col)
		}
	}

	if opts.DrawPorts {
		for _, p := range sc.Ports {
			c.drawPort(p, colorutil.Magenta)
		}
	}

	if opts.DrawLabels && len(sc.Routes) > 0 {
		face, err := newFace(opts.FontSize)
		if err != nil {
			return nil, err
		}
		defer face.Close()
		for _, r := range sc.Routes {
			c.drawLabel(face, r.Start.Center, r.Name, colorutil.Black)
		}
	}

	return img, nil
}

// WritePNG encodes an image as PNG.
func WritePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// SavePNG renders the scene and writes it to path.
func SavePNG(path string, sc Scene, opts Options) error {
	img, err := Render(sc, opts)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WritePNG(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

type canvas struct {
	img  *image.RGBA
	z    *vector.Rasterizer
	view viewport
	opts Options
}

// fill rasterises a closed polygon given in layout coordinates.
func (c *canvas) fill(poly []geometry.Point2D, col color.RGBA) {
	if len(poly) < 3 {
		return
	}
	b := c.img.Bounds()
	c.z.Reset(b.Dx(), b.Dy())
	c.z.DrawOp = draw.Over

	x, y := c.view.toPx(poly[0])
	c.z.MoveTo(x, y)
	for _, p := range poly[1:] {
		x, y = c.view.toPx(p)
		c.z.LineTo(x, y)
	}
	c.z.ClosePath()
	c.z.Draw(c.img, b, image.NewUniform(col), image.Point{})
}

// fillStrip fills the band around a centerline whose width runs linearly from w1 to w2.
func (c *canvas) fillStrip(center []geometry.Point2D, w1, w2, offset float64, col color.RGBA) {
	// Vertices within a quarter pixel of the simplified path are dropped.
	pts := geometry.SimplifyPolyline(dedupe(center), 0.25/c.view.scale)
	if len(pts) < 2 {
		return
	}

	minWidth := c.opts.MinLinePx / c.view.scale
	total := geometry.PolylineLength(pts)
	n := len(pts)
	left := make([]geometry.Point2D, n)
	right := make([]geometry.Point2D, n)

	var acc float64
	for i := range pts {
		var t geometry.Point2D
		switch {
		case i == 0:
			t = pts[1].Sub(pts[0])
		case i == n-1:
			t = pts[n-1].Sub(pts[n-2])
		default:
			acc += pts[i].Distance(pts[i-1])
			t = pts[i+1].Sub(pts[i-1])
		}
		if i == n-1 {
			acc = total
		}

		f := 0.0
		if total > 0 {
			f = acc / total
		}
		width := math.Max(w1+(w2-w1)*f, minWidth)
		normal := t.Unit().Perp()
		mid := pts[i].Add(normal.Scale(offset))
		left[i] = mid.Add(normal.Scale(width / 2))
		right[i] = mid.Sub(normal.Scale(width / 2))
	}

	poly := left
	for i := n - 1; i >= 0; i-- {
		poly = append(poly, right[i])
	}
	c.fill(poly, col)
}

// drawPort draws a triangle pointing out of the port.
func (c *canvas) drawPort(p port.Port, col color.RGBA) {
	size := math.Max(p.Width, 6/c.view.scale)
	dir := p.Direction()
	side := dir.Perp().Scale(size / 2)
	tip := p.Center.Add(dir.Scale(size))
	c.fill([]geometry.Point2D{p.Center.Add(side), tip, p.Center.Sub(side)}, col)
}

func (c *canvas) drawLabel(face font.Face, at geometry.Point2D, text string, col color.RGBA) {
	if text == "" {
		return
	}
	x, y := c.view.toPx(at)
	d := &font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(int(x) + 4),
			Y: fixed.I(int(y) - 4),
		},
	}
	d.DrawString(text)
}

func newFace(size float64) (font.Face, error) {
	fnt, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return opentype.NewFace(fnt, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func dedupe(pts []geometry.Point2D) []geometry.Point2D {
	out := make([]geometry.Point2D, 0, len(pts))
	for _, p := range pts {
		if n := len(out); n > 0 && out[n-1].Equal(p, geometry.Tolerance) {
			continue
		}
		out = append(out, p)
	}
	return out
}
