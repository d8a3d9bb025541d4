package refract

import (
	"errors"
	"log/slog"

	"github.com/soypat/refract/render"
)

// allocateCapture walks the degrade ladder: the requested sample count,
// then a single sample, then a 1x1 placeholder. Any allocation error moves
// down one rung. fallback is set when only the placeholder could be
// allocated. If nothing can be allocated the errors are joined.
func (p *Pipeline) allocateCapture(width, height int) (t *render.Target, fallback bool, err error) {
	samples := p.cfg.Samples
	t, err = p.dev.NewTarget(width, height, samples)
	if err == nil {
		return t, false, nil
	}
	logger := Logger()
	if samples > 1 {
		logger.Warn("capture target unsupported, retrying with one sample",
			slog.Int("width", width), slog.Int("height", height), slog.Int("samples", samples), slog.String("err", err.Error()))
		t, err = p.dev.NewTarget(width, height, 1)
		if err == nil {
			return t, false, nil
		}
	}
	logger.Warn("capture target unsupported, using 1x1 placeholder",
		slog.Int("width", width), slog.Int("height", height), slog.String("err", err.Error()))
	t, ferr := p.dev.NewTarget(1, 1, 1)
	if ferr != nil {
		return nil, false, errors.Join(err, ferr)
	}
	return t, true, nil
}

// swapCapture installs t as the capture target, updates the material
// uniforms in the same step and releases the previous target.
func (p *Pipeline) swapCapture(t *render.Target) {
	old := p.capture
	p.capture = t
	if p.material != nil {
		if t != nil {
			w, h := t.Size()
			p.material.setTarget(nil, w, h)
		} else {
			p.material.setTarget(nil, 0, 0)
		}
	}
	if old != nil {
		old.Release()
	}
}
