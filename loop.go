package refract

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler paces frames. Next blocks until the next frame is due.
type Scheduler interface {
	Next(ctx context.Context) error
}

// Ticker schedules frames at a fixed rate.
type Ticker struct {
	t *time.Ticker
}

// NewTicker returns a scheduler producing fps frames per second.
func NewTicker(fps float64) *Ticker {
	if fps <= 0 {
		fps = 60
	}
	return &Ticker{t: time.NewTicker(time.Duration(float64(time.Second) / fps))}
}

func (t *Ticker) Next(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.t.C:
		return nil
	}
}

// Stop releases the ticker.
func (t *Ticker) Stop() { t.t.Stop() }

// FrameLimit stops after Frames frames. Frames are paced by Inner if set,
// otherwise they are produced immediately.
type FrameLimit struct {
	Frames int
	Inner  Scheduler
	n      int
}

func (l *FrameLimit) Next(ctx context.Context) error {
	if l.n >= l.Frames {
		return ErrStopped
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.Inner != nil {
		if err := l.Inner.Next(ctx); err != nil {
			return err
		}
	}
	l.n++
	return nil
}

// Run renders frames as s schedules them until s returns ErrStopped, Stop is
// called, OnFrame fails or ctx is done. Frame errors are logged and the
// loop continues with the next frame. Run returns nil when stopped and
// ctx.Err() when ctx ends the loop.
func (p *Pipeline) Run(ctx context.Context, s Scheduler) error {
	if p.closed {
		return ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	for {
		if err := s.Next(ctx); err != nil {
			if errors.Is(err, ErrStopped) || p.stopped() {
				return nil
			}
			return err
		}
		if p.stopped() {
			return nil
		}
		err := p.Frame()
		if errors.Is(err, ErrClosed) {
			return err
		} else if err != nil {
			Logger().Warn("frame dropped", slog.String("err", err.Error()))
			continue
		}
		if p.cfg.OnFrame != nil {
			if err := p.cfg.OnFrame(p.dev.Surface()); err != nil {
				return err
			}
		}
	}
}

// Stop ends Run. It is safe to call from any goroutine and more than once.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *Pipeline) stopped() bool {
	select {
	case <-p.stop:
		return true
	default:
		return false
	}
}
