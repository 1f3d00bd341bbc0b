package enrichers

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math/bits"

	_ "image/gif"
	_ "image/png"
)

const jpegQuality = 85

func decodeImage(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("empty image")
	}
	return image.Decode(bytes.NewReader(data))
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fitSize scales w x h down so the longer side is at most maxPx.
func fitSize(w, h, maxPx int) (int, int) {
	if maxPx <= 0 || (w <= maxPx && h <= maxPx) {
		return w, h
	}
	if w >= h {
		return maxPx, max(1, h*maxPx/w)
	}
	return max(1, w*maxPx/h), maxPx
}

// fit returns img box-filtered down to fit maxPx. Images that already fit
// are copied into an RGBA so callers always get a zero-origin image.
func fit(img image.Image, maxPx int) *image.RGBA {
	src := img.Bounds()
	w, h := fitSize(src.Dx(), src.Dy(), maxPx)
	return resample(img, w, h)
}

// resample averages every source pixel that maps onto each target pixel.
func resample(img image.Image, w, h int) *image.RGBA {
	src := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	sw, sh := src.Dx(), src.Dy()
	for y := 0; y < h; y++ {
		y0 := src.Min.Y + y*sh/h
		y1 := max(y0+1, src.Min.Y+(y+1)*sh/h)
		for x := 0; x < w; x++ {
			x0 := src.Min.X + x*sw/w
			x1 := max(x0+1, src.Min.X+(x+1)*sw/w)
			var r, g, b, a, n uint64
			for sy := y0; sy < y1; sy++ {
				for sx := x0; sx < x1; sx++ {
					cr, cg, cb, ca := img.At(sx, sy).RGBA()
					r += uint64(cr)
					g += uint64(cg)
					b += uint64(cb)
					a += uint64(ca)
					n++
				}
			}
			dst.SetRGBA(x, y, color.RGBA{
				R: uint8(r / n >> 8),
				G: uint8(g / n >> 8),
				B: uint8(b / n >> 8),
				A: uint8(a / n >> 8),
			})
		}
	}
	return dst
}

// differenceHash is the 64-bit dHash: each bit says whether a pixel of the
// 9x8 grayscale thumbnail is brighter than its right neighbour.
func differenceHash(img image.Image) uint64 {
	small := resample(img, 9, 8)
	var hash uint64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			hash <<= 1
			if luma(small.RGBAAt(x, y)) > luma(small.RGBAAt(x+1, y)) {
				hash |= 1
			}
		}
	}
	return hash
}

// HammingDistance counts differing bits between two perceptual hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

func luma(c color.RGBA) uint32 {
	return (299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B)) / 1000
}
