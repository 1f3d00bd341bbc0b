package enrichers

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sort"

	"lightbox/internal/enrich"
	"lightbox/internal/photo"
	"lightbox/internal/services"
)

const (
	colorSampleSize = 64
	grayTolerance   = 12
	grayShare       = 0.95
)

func colorUnit() *builtin {
	return &builtin{
		desc: enrich.Descriptor{ID: IDColor, Deps: []enrich.Identity{IDPreview}, Kind: photo.FlagColor},
		run: func(ctx context.Context, v *view) (merge, error) {
			in := snapshot(v)
			if in.previewImage == nil {
				return nil, services.Wrap(services.ErrValidation, string(IDColor), "input", "preview image not available", nil)
			}
			palette := analyzePalette(in.previewImage)
			return func(r *photo.Record) {
				r.DominantColor = palette.dominant
				r.AccentColor = palette.accent
				r.IsBlackWhite = palette.blackWhite
			}, nil
		},
		reset: func(r *photo.Record) {
			r.DominantColor = ""
			r.AccentColor = ""
			r.IsBlackWhite = false
		},
	}
}

type palette struct {
	dominant   string
	accent     string
	blackWhite bool
}

// analyzePalette buckets a small copy of img into a 4-bit-per-channel
// histogram. The most frequent bucket is dominant; the most saturated of the
// frequent buckets is the accent.
func analyzePalette(img image.Image) palette {
	b := img.Bounds()
	w, h := fitSize(b.Dx(), b.Dy(), colorSampleSize)
	small := resample(img, w, h)

	counts := make(map[color.RGBA]int)
	gray := 0
	total := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := small.RGBAAt(x, y)
			total++
			if isGray(c) {
				gray++
			}
			counts[color.RGBA{R: c.R &^ 0x0f, G: c.G &^ 0x0f, B: c.B &^ 0x0f, A: 0xff}]++
		}
	}
	if total == 0 {
		return palette{}
	}

	type bucket struct {
		c     color.RGBA
		count int
	}
	buckets := make([]bucket, 0, len(counts))
	for c, n := range counts {
		buckets = append(buckets, bucket{c, n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].count != buckets[j].count {
			return buckets[i].count > buckets[j].count
		}
		return hexColor(buckets[i].c) < hexColor(buckets[j].c)
	})

	result := palette{
		dominant:   hexColor(buckets[0].c),
		blackWhite: float64(gray)/float64(total) >= grayShare,
	}
	accent := buckets[0].c
	bestSat := -1
	for i, bk := range buckets {
		if i >= 8 {
			break
		}
		if s := saturation(bk.c); s > bestSat {
			bestSat = s
			accent = bk.c
		}
	}
	result.accent = hexColor(accent)
	return result
}

func isGray(c color.RGBA) bool {
	return saturation(c) <= grayTolerance
}

func saturation(c color.RGBA) int {
	hi := max(c.R, c.G, c.B)
	lo := min(c.R, c.G, c.B)
	return int(hi) - int(lo)
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
