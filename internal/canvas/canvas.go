// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package canvas places an image on a square canvas whose side is the image's longer side.
//
// Two policies exist. [PadToSquare] keeps the whole image and fills the margins
// with white. [CropFillSquare] scales the image to cover the square and crops the overflow.
// All resampling is nearest-neighbour and copies whole pixels.
package canvas

import (
	"fmt"
	"image"
	"image/color"

	"github.com/martinf08/batch-image-processor/internal/raster"
)

type Policy int

const (
	PadToSquare Policy = iota
	CropFillSquare
)

func (p Policy) String() string {
	switch p {
	case PadToSquare:
		return "pad"
	case CropFillSquare:
		return "crop"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "pad", "":
		return PadToSquare, nil
	case "crop":
		return CropFillSquare, nil
	}
	return 0, fmt.Errorf("canvas: unknown policy %q (want pad or crop)", s)
}

// Background is the colour of the margins left by [PadToSquare].
var Background = color.NRGBA{0xff, 0xff, 0xff, 0xff}

// Spec describes where a w×h image lands on its canvas.
type Spec struct {
	Side       int
	Background color.NRGBA
	Resized    image.Point // size of the image once resized to fit
	Offset     image.Point // top-left corner of the resized image
}

// Plan works out the canvas for a w×h image.
// When the margins cannot be equal, the odd pixel goes to the bottom or right.
func Plan(p Policy, w, h int) (Spec, error) {
	if w <= 0 || h <= 0 {
		return Spec{}, fmt.Errorf("%w: %dx%d", raster.ErrDimension, w, h)
	}
	side := max(w, h)
	s := Spec{Side: side, Background: Background}
	switch p {
	case PadToSquare:
		rw, rh := fit(w, h, side)
		s.Resized = image.Pt(rw, rh)
		switch {
		case rw > rh:
			s.Offset = image.Pt(0, (side-rh)/2)
		case rh > rw:
			s.Offset = image.Pt((side-rw)/2, 0)
		}
	case CropFillSquare:
		s.Resized = image.Pt(side, side)
	default:
		return Spec{}, fmt.Errorf("canvas: unknown policy %v", p)
	}
	return s, nil
}

// Compose returns a Side×Side image made from img according to p.
func Compose(img *image.NRGBA, p Policy) (*image.NRGBA, Spec, error) {
	b := img.Bounds()
	s, err := Plan(p, b.Dx(), b.Dy())
	if err != nil {
		return nil, Spec{}, err
	}

	switch p {
	case CropFillSquare:
		m := min(b.Dx(), b.Dy())
		sq := image.Rectangle{Min: b.Min.Add(image.Pt((b.Dx()-m)/2, (b.Dy()-m)/2))}
		sq.Max = sq.Min.Add(image.Pt(m, m))
		dst := image.NewNRGBA(image.Rect(0, 0, s.Side, s.Side))
		nearest(dst, img, sq)
		return dst, s, nil
	}

	resized := resize(img, s.Resized.X, s.Resized.Y)
	dst := image.NewNRGBA(image.Rect(0, 0, s.Side, s.Side))
	fill(dst, s.Background)
	overlay(dst, resized, s.Offset)
	return dst, s, nil
}

// Prescale shrinks img so that its longer side is at most maxSide.
// A maxSide of zero or less means no limit.
func Prescale(img *image.NRGBA, maxSide int) *image.NRGBA {
	b := img.Bounds()
	if maxSide <= 0 || max(b.Dx(), b.Dy()) <= maxSide {
		return img
	}
	w, h := fit(b.Dx(), b.Dy(), maxSide)
	return resize(img, w, h)
}

// fit scales w×h so that the longer side becomes side, never letting the shorter reach zero.
func fit(w, h, side int) (int, int) {
	if w >= h {
		return side, max(1, h*side/w)
	}
	return max(1, w*side/h), side
}

func resize(img *image.NRGBA, w, h int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	nearest(dst, img, b)
	return dst
}

// nearest fills dst, which starts at the origin, with the pixels of src's sr
// closest to each destination pixel centre. Pixels are copied whole, so colour
// survives untouched under any alpha.
func nearest(dst, src *image.NRGBA, sr image.Rectangle) {
	dw, dh := dst.Rect.Dx(), dst.Rect.Dy()
	sw, sh := sr.Dx(), sr.Dy()
	for dy := 0; dy < dh; dy++ {
		sy := sr.Min.Y + (2*dy+1)*sh/(2*dh)
		row := dst.Pix[dy*dst.Stride:]
		for dx := 0; dx < dw; dx++ {
			sx := sr.Min.X + (2*dx+1)*sw/(2*dw)
			copy(row[4*dx:4*dx+4], src.Pix[src.PixOffset(sx, sy):])
		}
	}
}

func fill(dst *image.NRGBA, c color.NRGBA) {
	px := []byte{c.R, c.G, c.B, c.A}
	for i := 0; i < len(dst.Pix); i += 4 {
		copy(dst.Pix[i:i+4], px)
	}
}

// overlay copies src onto dst at off, replacing whatever was there, alpha included.
func overlay(dst, src *image.NRGBA, off image.Point) {
	sb := src.Bounds()
	for y := 0; y < sb.Dy(); y++ {
		from := src.Pix[y*src.Stride:][:4*sb.Dx()]
		to := dst.Pix[dst.PixOffset(off.X, off.Y+y):]
		copy(to, from)
	}
}
