package export

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kr1s0404/fmm/internal/dynamo"
	"github.com/kr1s0404/fmm/internal/render"
)

// Lazy opens its sink on the first frame. If opening fails it reports
// ErrSinkUnavailable once and silently drops every later frame.
type Lazy struct {
	sink   Sink
	path   string
	codec  string
	fps    int
	width  int
	height int
	log    zerolog.Logger

	opened   bool
	disabled bool
}

func NewLazy(sink Sink, cfg render.Config, log zerolog.Logger) *Lazy {
	return &Lazy{
		sink:   sink,
		path:   Target(cfg.Output, cfg.Codec),
		codec:  cfg.Codec,
		fps:    cfg.FPS,
		width:  cfg.Width,
		height: cfg.Height,
		log:    log,
	}
}

func (l *Lazy) Path() string { return l.path }

func (l *Lazy) Disabled() bool { return l.disabled }

func (l *Lazy) WriteFrame(f *render.Frame) error {
	if l.disabled {
		return nil
	}
	if !l.opened {
		if err := l.sink.Open(l.path, l.codec, l.fps, l.width, l.height); err != nil {
			l.disabled = true
			l.log.Error().Err(err).Str("path", l.path).Str("codec", l.codec).
				Msg("could not open frame sink, continuing without output")
			return fmt.Errorf("%w: %s: %v", dynamo.ErrSinkUnavailable, l.path, err)
		}
		l.opened = true
	}
	if err := l.sink.WriteFrame(f); err != nil {
		return fmt.Errorf("writing frame %d: %w", f.Index, err)
	}
	return nil
}

func (l *Lazy) Close() error {
	if !l.opened {
		return nil
	}
	l.opened = false
	if err := l.sink.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", l.path, err)
	}
	l.log.Info().Str("path", l.path).Msg("frames saved")
	return nil
}
