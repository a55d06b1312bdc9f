package export

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/image/bmp"

	"github.com/kr1s0404/fmm/internal/render"
)

// Sink consumes rendered frames in order.
type Sink interface {
	Open(path, codec string, fps, width, height int) error
	WriteFrame(f *render.Frame) error
	Close() error
}

type frameEncoder func(w io.Writer, img image.Image) error

// sequenceCodecs write one file per frame into a directory.
var sequenceCodecs = map[string]frameEncoder{
	"png": png.Encode,
	"bmp": bmp.Encode,
}

func Codecs() []string {
	names := []string{"gif"}
	for name := range sequenceCodecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Target is the path a sink writes for an output name and codec: a single
// file for gif, a directory of numbered frames otherwise.
func Target(output, codec string) string {
	if codec == "gif" {
		return output + ".gif"
	}
	return output + "_" + codec
}

// FileSink writes frames to the local filesystem. GIF frames are appended
// to the file as they are written; Close only adds the trailer.
type FileSink struct {
	path    string
	codec   string
	fps     int
	width   int
	height  int
	encode  frameEncoder
	anim    *gifStream
	written int
}

func NewFileSink() *FileSink {
	return &FileSink{}
}

func (s *FileSink) Open(path, codec string, fps, width, height int) error {
	if width <= 0 || height <= 0 || fps <= 0 {
		return fmt.Errorf("invalid stream %dx%d at %d fps", width, height, fps)
	}
	s.path, s.codec, s.fps, s.width, s.height = path, codec, fps, width, height
	s.written = 0

	if codec == "gif" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		anim, err := newGIFStream(path, fps, width, height)
		if err != nil {
			return err
		}
		s.anim = anim
		return nil
	}

	enc, ok := sequenceCodecs[codec]
	if !ok {
		return fmt.Errorf("unsupported codec %q (available: %v)", codec, Codecs())
	}
	s.encode = enc
	return os.MkdirAll(path, 0755)
}

func (s *FileSink) WriteFrame(f *render.Frame) error {
	if f == nil || f.Image == nil {
		return fmt.Errorf("empty frame")
	}
	if b := f.Image.Bounds(); b.Dx() != s.width || b.Dy() != s.height {
		return fmt.Errorf("frame %d is %dx%d, stream is %dx%d", f.Index, b.Dx(), b.Dy(), s.width, s.height)
	}

	if s.anim != nil {
		if err := s.anim.write(f.Image); err != nil {
			return err
		}
		s.written++
		return nil
	}

	name := filepath.Join(s.path, fmt.Sprintf("frame_%05d.%s", s.written, s.codec))
	out, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := s.encode(out, f.Image); err != nil {
		out.Close()
		return err
	}
	s.written++
	return out.Close()
}

func (s *FileSink) Written() int { return s.written }

func (s *FileSink) Close() error {
	if s.anim == nil {
		return nil
	}
	anim := s.anim
	s.anim = nil
	return anim.close()
}
