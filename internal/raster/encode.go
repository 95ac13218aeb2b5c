// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
)

// Quality is fixed so that identical input always gives identical output.
const Quality = 90

// Encode compresses img as a baseline JPEG.
func Encode(img *RGB) ([]byte, error) {
	if img.Rect.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrEncode)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img.opaque(), &jpeg.Options{Quality: Quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return buf.Bytes(), nil
}

// opaque widens to the pixel layout the JPEG encoder has a fast path for.
func (p *RGB) opaque() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, p.Rect.Dx(), p.Rect.Dy()))
	for y := 0; y < p.Rect.Dy(); y++ {
		in := p.Pix[y*p.Stride:][:3*p.Rect.Dx()]
		out := dst.Pix[y*dst.Stride:][:4*p.Rect.Dx()]
		for x := 0; x < p.Rect.Dx(); x++ {
			copy(out[4*x:4*x+3], in[3*x:3*x+3])
			out[4*x+3] = 0xff
		}
	}
	return dst
}
