package render

import (
	"image"
	"image/color"
	"math"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	labelX = 10
	labelY = 30
)

func FrameLabel(index int) string {
	return "Frame: " + strconv.Itoa(index)
}

func fill(img *image.RGBA, c color.RGBA) {
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i] = c.R
		pix[i+1] = c.G
		pix[i+2] = c.B
		pix[i+3] = c.A
	}
}

func fillDisc(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	bounds := img.Bounds()
	r2 := r * r
	for dy := -r; dy <= r; dy++ {
		y := cy + dy
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for dx := -r; dx <= r; dx++ {
			x := cx + dx
			if x < bounds.Min.X || x >= bounds.Max.X || dx*dx+dy*dy > r2 {
				continue
			}
			img.SetRGBA(x, y, c)
		}
	}
}

// drawRing draws a one pixel circle of radius r.
func drawRing(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	bounds := img.Bounds()
	fr := float64(r)
	for dy := -r - 1; dy <= r+1; dy++ {
		y := cy + dy
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for dx := -r - 1; dx <= r+1; dx++ {
			x := cx + dx
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			d := math.Hypot(float64(dx), float64(dy))
			if math.Abs(d-fr) < 0.5 {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func drawLabel(img *image.RGBA, x, y int, text string) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
