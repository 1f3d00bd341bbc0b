package enrichers

import (
	"image"
	"image/color"
	"testing"
)

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 40, A: 255})
		}
	}
	return img
}

func TestFitSize(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{4000, 3000, 1280, 1280, 960},
		{3000, 4000, 1280, 960, 1280},
		{800, 600, 1280, 800, 600},
		{5000, 10, 100, 100, 1},
		{640, 480, 0, 640, 480},
	}
	for _, tc := range tests {
		w, h := fitSize(tc.w, tc.h, tc.max)
		if w != tc.wantW || h != tc.wantH {
			t.Fatalf("fitSize(%d, %d, %d) = %dx%d, want %dx%d", tc.w, tc.h, tc.max, w, h, tc.wantW, tc.wantH)
		}
	}
}

func TestFitKeepsAspectAndAverages(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			v := uint8(0)
			if x%2 == 1 {
				v = 200
			}
			src.SetRGBA(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	out := fit(src, 2)
	if out.Bounds() != image.Rect(0, 0, 2, 1) {
		t.Fatalf("unexpected bounds %v", out.Bounds())
	}
	if got := out.RGBAAt(0, 0); got.R != 100 || got.A != 255 {
		t.Fatalf("expected averaged pixel, got %+v", got)
	}
}

func TestDifferenceHashStableAcrossScale(t *testing.T) {
	large := gradient(320, 240)
	small := gradient(64, 48)
	if d := HammingDistance(differenceHash(large), differenceHash(small)); d > 4 {
		t.Fatalf("expected near-identical hashes for scaled copies, distance %d", d)
	}

	flipped := image.NewRGBA(large.Bounds())
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			flipped.Set(319-x, y, large.At(x, y))
		}
	}
	if d := HammingDistance(differenceHash(large), differenceHash(flipped)); d < 32 {
		t.Fatalf("expected mirrored image to hash differently, distance %d", d)
	}
}

func TestAnalyzePalette(t *testing.T) {
	gray := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := range gray.Pix {
		gray.Pix[i] = 128
	}
	if p := analyzePalette(gray); !p.blackWhite || p.dominant != "#808080" {
		t.Fatalf("unexpected gray palette %+v", p)
	}

	red := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := color.RGBA{R: 200, G: 30, B: 30, A: 255}
			if x == 0 {
				c = color.RGBA{R: 10, G: 10, B: 250, A: 255}
			}
			red.SetRGBA(x, y, c)
		}
	}
	p := analyzePalette(red)
	if p.blackWhite || p.dominant != "#C01010" {
		t.Fatalf("unexpected palette %+v", p)
	}
	if p.accent != "#0000F0" {
		t.Fatalf("expected saturated blue accent, got %s", p.accent)
	}
}

func TestOrientBox(t *testing.T) {
	box := image.Rect(10, 20, 30, 60)
	tests := []struct {
		orientation int
		want        image.Rectangle
	}{
		{1, box},
		{3, image.Rect(70, 40, 90, 80)},
		{6, image.Rect(40, 10, 80, 30)},
		{8, image.Rect(20, 70, 60, 90)},
	}
	for _, tc := range tests {
		if got := orientBox(box, 100, 100, tc.orientation); got != tc.want {
			t.Fatalf("orientation %d: got %v, want %v", tc.orientation, got, tc.want)
		}
	}
}
