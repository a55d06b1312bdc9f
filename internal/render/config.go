package render

import (
	"fmt"

	"github.com/kr1s0404/fmm/internal/dynamo"
)

// Config is fixed for the duration of a run.
type Config struct {
	Width    int     `yaml:"width" mapstructure:"width"`
	Height   int     `yaml:"height" mapstructure:"height"`
	FPS      int     `yaml:"fps" mapstructure:"fps"`
	MaxScale float64 `yaml:"max_scale" mapstructure:"max_scale"`
	Output   string  `yaml:"output" mapstructure:"output"`
	Codec    string  `yaml:"codec" mapstructure:"codec"`
}

const (
	DefaultWidth    = 1280
	DefaultHeight   = 720
	DefaultFPS      = 30
	DefaultMaxScale = 1.0
	DefaultCodec    = "png"
)

// DefaultConfig returns the render defaults with the output named after
// the scene.
func DefaultConfig(sceneName string) Config {
	return Config{
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		FPS:      DefaultFPS,
		MaxScale: DefaultMaxScale,
		Output:   OutputName(sceneName),
		Codec:    DefaultCodec,
	}
}

func OutputName(sceneName string) string {
	return sceneName + "_simulation"
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: canvas must be positive, got %dx%d", dynamo.ErrInvalidConfig, c.Width, c.Height)
	}
	if c.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive, got %d", dynamo.ErrInvalidConfig, c.FPS)
	}
	if !(c.MaxScale > 0) {
		return fmt.Errorf("%w: max scale must be positive, got %f", dynamo.ErrInvalidConfig, c.MaxScale)
	}
	return nil
}
