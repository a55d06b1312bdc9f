package export

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"
)

const gifTrailer = 0x3b

// netscapeLoop makes the animation repeat forever.
var netscapeLoop = []byte{
	0x21, 0xff, 0x0b, 'N', 'E', 'T', 'S', 'C', 'A', 'P', 'E', '2', '.', '0',
	0x03, 0x01, 0x00, 0x00, 0x00,
}

// gifStream appends frames to an animated GIF as they arrive. Each frame is
// encoded on its own and its image block is copied to the file, so memory
// holds one frame regardless of the length of the run.
type gifStream struct {
	f      *os.File
	delay  int
	width  int
	height int
	frame  *image.Paletted
	enc    bytes.Buffer
	out    bytes.Buffer
	frames int
}

func newGIFStream(path string, fps, width, height int) (*gifStream, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &gifStream{
		f:      f,
		delay:  max(1, 100/fps),
		width:  width,
		height: height,
		frame:  image.NewPaletted(image.Rect(0, 0, width, height), palette.Plan9),
	}, nil
}

func (g *gifStream) write(img image.Image) error {
	draw.Draw(g.frame, g.frame.Rect, img, img.Bounds().Min, draw.Src)

	g.enc.Reset()
	err := gif.EncodeAll(&g.enc, &gif.GIF{
		Image:  []*image.Paletted{g.frame},
		Delay:  []int{g.delay},
		Config: image.Config{ColorModel: color.Palette(palette.Plan9), Width: g.width, Height: g.height},
	})
	if err != nil {
		return err
	}
	data := g.enc.Bytes()
	head, err := gifHeaderLen(data)
	if err != nil {
		return err
	}

	g.out.Reset()
	if g.frames == 0 {
		g.out.Write(data[:head])
		g.out.Write(netscapeLoop)
	}
	g.out.Write(data[head : len(data)-1])
	if _, err := g.f.Write(g.out.Bytes()); err != nil {
		return err
	}
	g.frames++
	return nil
}

// close terminates the stream. A stream without frames leaves an empty file.
func (g *gifStream) close() error {
	if g.frames > 0 {
		if _, err := g.f.Write([]byte{gifTrailer}); err != nil {
			g.f.Close()
			return err
		}
	}
	return g.f.Close()
}

// gifHeaderLen is the size of the signature, screen descriptor and global
// color table at the start of an encoded GIF.
func gifHeaderLen(data []byte) (int, error) {
	const fixed = 13
	if len(data) < fixed+1 || data[len(data)-1] != gifTrailer {
		return 0, errors.New("gif: truncated frame")
	}
	n := fixed
	if packed := data[10]; packed&0x80 != 0 {
		n += 3 << ((packed & 0x07) + 1)
	}
	if n >= len(data) {
		return 0, errors.New("gif: truncated frame")
	}
	return n, nil
}
