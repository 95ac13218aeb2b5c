// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/martinf08/batch-image-processor/internal/raster"
)

var red = color.NRGBA{0xff, 0, 0, 0xff}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// margins counts the white rows or columns on each side of the content.
func margins(t *testing.T, img *image.NRGBA) (left, right, top, bottom int) {
	t.Helper()
	b := img.Bounds()
	whiteCol := func(x int) bool {
		for y := 0; y < b.Dy(); y++ {
			if img.NRGBAAt(x, y) != Background {
				return false
			}
		}
		return true
	}
	whiteRow := func(y int) bool {
		for x := 0; x < b.Dx(); x++ {
			if img.NRGBAAt(x, y) != Background {
				return false
			}
		}
		return true
	}
	for x := 0; x < b.Dx() && whiteCol(x); x++ {
		left++
	}
	for x := b.Dx() - 1; x >= 0 && whiteCol(x); x-- {
		right++
	}
	for y := 0; y < b.Dy() && whiteRow(y); y++ {
		top++
	}
	for y := b.Dy() - 1; y >= 0 && whiteRow(y); y-- {
		bottom++
	}
	return
}

func TestPlan(t *testing.T) {
	cases := []struct {
		w, h   int
		p      Policy
		side   int
		offset image.Point
	}{
		{2, 4, PadToSquare, 4, image.Pt(1, 0)},
		{4, 2, PadToSquare, 4, image.Pt(0, 1)},
		{3, 4, PadToSquare, 4, image.Pt(0, 0)},
		{4, 1, PadToSquare, 4, image.Pt(0, 1)},
		{5, 2, PadToSquare, 5, image.Pt(0, 1)},
		{2, 5, PadToSquare, 5, image.Pt(1, 0)},
		{3, 3, PadToSquare, 3, image.Pt(0, 0)},
		{2, 4, CropFillSquare, 4, image.Pt(0, 0)},
		{7, 3, CropFillSquare, 7, image.Pt(0, 0)},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%s_%dx%d", c.p, c.w, c.h), func(t *testing.T) {
			s, err := Plan(c.p, c.w, c.h)
			if err != nil {
				t.Fatal(err)
			}
			if s.Side != c.side || s.Offset != c.offset {
				t.Errorf("expected side %d offset %v, got side %d offset %v", c.side, c.offset, s.Side, s.Offset)
			}
			if s.Background != Background {
				t.Errorf("background is %v", s.Background)
			}
		})
	}
}

func TestPlanZero(t *testing.T) {
	for _, wh := range [][2]int{{0, 4}, {4, 0}, {0, 0}} {
		if _, err := Plan(PadToSquare, wh[0], wh[1]); !errors.Is(err, raster.ErrDimension) {
			t.Errorf("%v: expected ErrDimension, got %v", wh, err)
		}
	}
	if _, _, err := Compose(image.NewNRGBA(image.Rect(0, 0, 0, 3)), CropFillSquare); !errors.Is(err, raster.ErrDimension) {
		t.Errorf("expected ErrDimension, got %v", err)
	}
}

func TestPadMargins(t *testing.T) {
	cases := []struct {
		w, h                     int
		left, right, top, bottom int
	}{
		{2, 4, 1, 1, 0, 0},
		{4, 2, 0, 0, 1, 1},
		{3, 4, 0, 1, 0, 0}, // odd difference, extra pixel on the right
		{4, 3, 0, 0, 0, 1}, // odd difference, extra pixel at the bottom
		{2, 5, 1, 2, 0, 0},
		{5, 2, 0, 0, 1, 2},
		{1, 6, 2, 3, 0, 0},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("%dx%d", c.w, c.h), func(t *testing.T) {
			src := solid(c.w, c.h, red)
			first, s, err := Compose(src, PadToSquare)
			if err != nil {
				t.Fatal(err)
			}
			side := max(c.w, c.h)
			if first.Bounds() != image.Rect(0, 0, side, side) || s.Side != side {
				t.Fatalf("expected %dx%d canvas, got %v", side, side, first.Bounds())
			}
			l, r, tp, b := margins(t, first)
			if l != c.left || r != c.right || tp != c.top || b != c.bottom {
				t.Errorf("margins l=%d r=%d t=%d b=%d, expected l=%d r=%d t=%d b=%d",
					l, r, tp, b, c.left, c.right, c.top, c.bottom)
			}

			again, _, _ := Compose(src, PadToSquare)
			if !bytes.Equal(first.Pix, again.Pix) {
				t.Error("padding is not stable across runs")
			}
		})
	}
}

func TestPadSquareIsIdentity(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	for i := range src.Pix {
		src.Pix[i] = byte(i * 7)
	}
	got, s, err := Compose(src, PadToSquare)
	if err != nil {
		t.Fatal(err)
	}
	if s.Offset != (image.Point{}) || s.Resized != image.Pt(3, 3) {
		t.Errorf("square input should not move: %+v", s)
	}
	if !bytes.Equal(got.Pix, src.Pix) {
		t.Error("square input was altered")
	}
}

func TestPadKeepsAlphaForLater(t *testing.T) {
	// Overlay replaces pixels; it does not blend them with the white canvas.
	src := solid(1, 2, color.NRGBA{10, 20, 30, 0})
	got, _, err := Compose(src, PadToSquare)
	if err != nil {
		t.Fatal(err)
	}
	if c := got.NRGBAAt(0, 0); c != (color.NRGBA{10, 20, 30, 0}) {
		t.Errorf("overlay blended the pixel: %v", c)
	}
	if c := got.NRGBAAt(1, 0); c != Background {
		t.Errorf("margin is %v", c)
	}
}

func TestCropFill(t *testing.T) {
	rows := []color.NRGBA{
		{1, 0, 0, 255},
		{2, 0, 0, 255},
		{3, 0, 0, 255},
		{4, 0, 0, 255},
	}
	src := image.NewNRGBA(image.Rect(0, 0, 2, 4))
	for y, c := range rows {
		src.SetNRGBA(0, y, c)
		src.SetNRGBA(1, y, c)
	}

	got, s, err := Compose(src, CropFillSquare)
	if err != nil {
		t.Fatal(err)
	}
	if got.Bounds() != image.Rect(0, 0, 4, 4) || s.Offset != (image.Point{}) {
		t.Fatalf("expected 4x4 at the origin, got %v %v", got.Bounds(), s.Offset)
	}
	// the centred 2x2 square (rows 1 and 2) covers the whole canvas
	expect := []color.NRGBA{rows[1], rows[1], rows[2], rows[2]}
	for y, want := range expect {
		for x := 0; x < 4; x++ {
			if c := got.NRGBAAt(x, y); c != want {
				t.Errorf("(%d,%d): expected %v got %v", x, y, want, c)
			}
		}
	}
}

func TestPrescale(t *testing.T) {
	src := solid(8, 4, red)
	if Prescale(src, 0) != src || Prescale(src, 8) != src || Prescale(src, 100) != src {
		t.Error("prescale should leave small enough images alone")
	}
	got := Prescale(src, 4)
	if got.Bounds() != image.Rect(0, 0, 4, 2) {
		t.Errorf("expected 4x2, got %v", got.Bounds())
	}
	thin := Prescale(solid(100, 1, red), 10)
	if thin.Bounds() != image.Rect(0, 0, 10, 1) {
		t.Errorf("short side must not vanish, got %v", thin.Bounds())
	}

	composed, _, err := Compose(got, PadToSquare)
	if err != nil {
		t.Fatal(err)
	}
	if composed.Bounds().Dx() != 4 {
		t.Errorf("canvas follows the prescaled size, got %v", composed.Bounds())
	}
}

func TestResamplingKeepsColourUnderAlpha(t *testing.T) {
	for _, c := range []color.NRGBA{
		{10, 20, 30, 0},
		{201, 99, 3, 3},
		{200, 100, 50, 128},
	} {
		t.Run(fmt.Sprint(c), func(t *testing.T) {
			crop, _, err := Compose(solid(2, 4, c), CropFillSquare)
			if err != nil {
				t.Fatal(err)
			}
			small := Prescale(solid(4, 2, c), 2)
			if small.Bounds() != image.Rect(0, 0, 2, 1) {
				t.Fatalf("expected 2x1, got %v", small.Bounds())
			}
			for name, img := range map[string]*image.NRGBA{"crop": crop, "prescale": small} {
				b := img.Bounds()
				for y := b.Min.Y; y < b.Max.Y; y++ {
					for x := b.Min.X; x < b.Max.X; x++ {
						if got := img.NRGBAAt(x, y); got != c {
							t.Fatalf("%s (%d,%d): expected %v got %v", name, x, y, c, got)
						}
					}
				}
			}

			rgb := raster.Normalize(crop)
			if got := rgb.Pix[:3]; !bytes.Equal(got, []byte{c.R, c.G, c.B}) {
				t.Errorf("alpha drop changed the colour: %v", got)
			}
		})
	}
}

func TestParsePolicy(t *testing.T) {
	for s, want := range map[string]Policy{"": PadToSquare, "pad": PadToSquare, "crop": CropFillSquare} {
		got, err := ParsePolicy(s)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", s, got, err)
		}
		if s != "" && got.String() != s {
			t.Errorf("round trip of %q gave %q", s, got.String())
		}
	}
	if _, err := ParsePolicy("stretch"); err == nil {
		t.Error("expected an error for an unknown policy")
	}
}
