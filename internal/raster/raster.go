// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package raster converts between encoded image bytes and 8-bit pixel buffers.
//
// Decoded images are always [*image.NRGBA] with straight alpha.
// Output is always JPEG, after the alpha channel has been dropped by [Normalize].
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrDecode    = errors.New("raster: unsupported or corrupt image")
	ErrDimension = errors.New("raster: zero-sized image")
	ErrEncode    = errors.New("raster: encode failed")
)

// Decode recognises the format from the data itself, never from a file name.
// The header is checked before any pixels are decoded.
func Decode(data []byte) (*image.NRGBA, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, format, fmt.Errorf("%w: %s is %dx%d", ErrDimension, format, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("%w: %s: %v", ErrDecode, format, err)
	}
	return NRGBA(img), format, nil
}

// NRGBA returns img as an NRGBA image whose bounds start at the origin,
// converting only when necessary.
func NRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	if n, ok := img.(*image.NRGBA); ok && b.Min == (image.Point{}) {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
