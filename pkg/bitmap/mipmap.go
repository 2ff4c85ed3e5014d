package bitmap

import (
	"image"

	"golang.org/x/image/draw"
)

// Mipmaps returns img followed by successively half-scaled copies, at most
// levels images in total. Scaling stops once both sides reach one pixel.
func Mipmaps(img image.Image, levels int) []*image.NRGBA {
	if levels <= 0 {
		return nil
	}
	cur := toNRGBA(img)
	out := []*image.NRGBA{cur}
	for len(out) < levels {
		b := cur.Bounds()
		if b.Dx() <= 1 && b.Dy() <= 1 {
			break
		}
		next := image.NewNRGBA(image.Rect(0, 0, max(b.Dx()/2, 1), max(b.Dy()/2, 1)))
		draw.ApproxBiLinear.Scale(next, next.Bounds(), cur, b, draw.Src, nil)
		out = append(out, next)
		cur = next
	}
	return out
}

// Scale returns the scale factor of level i relative to level 0.
func Scale(level int) float64 {
	s := 1.0
	for range level {
		s /= 2
	}
	return s
}
