// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package raster

import (
	"image"
	"image/color"
)

// RGB is an in-memory image of 3-byte pixels, laid out like [image.RGBA] but without alpha.
type RGB struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

func NewRGB(r image.Rectangle) *RGB {
	return &RGB{
		Pix:    make([]byte, 3*r.Dx()*r.Dy()),
		Stride: 3 * r.Dx(),
		Rect:   r,
	}
}

func (p *RGB) ColorModel() color.Model { return color.RGBAModel }

func (p *RGB) Bounds() image.Rectangle { return p.Rect }

func (p *RGB) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3]
	return color.RGBA{s[0], s[1], s[2], 0xff}
}

func (p *RGB) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

// Normalize drops the alpha byte of every pixel.
// Colour values are kept as they are, not blended against any background.
func Normalize(src *image.NRGBA) *RGB {
	b := src.Bounds()
	dst := NewRGB(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		in := src.Pix[y*src.Stride:][:4*b.Dx()]
		out := dst.Pix[y*dst.Stride:][:3*b.Dx()]
		for x := 0; x < b.Dx(); x++ {
			copy(out[3*x:3*x+3], in[4*x:4*x+3])
		}
	}
	return dst
}
