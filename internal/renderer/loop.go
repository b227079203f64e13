package renderer

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/meshviewer/internal/swapchain"
	"github.com/vkngwrapper/meshviewer/internal/window"
)

type drawer interface {
	DrawFrame() error
	NotifyResize()
	FrameCounter() uint64
}

func loop(ctx context.Context, win window.Window, frames drawer, maxFrames uint64, logger *slog.Logger) error {
	for {
		if ctx.Err() != nil {
			logger.Info("stopping", slog.String("reason", "cancelled"))
			return nil
		}

		win.PumpEvents()
		if win.CloseRequested() {
			logger.Info("stopping", slog.String("reason", "window closed"))
			return nil
		}

		drainResizes(win, frames, logger)

		err := frames.DrawFrame()
		if errors.Is(err, swapchain.ErrWindowClosed) {
			logger.Info("stopping", slog.String("reason", "window closed while minimized"))
			return nil
		} else if err != nil {
			return errors.Wrapf(err, "draw frame %d", frames.FrameCounter())
		}

		if maxFrames > 0 && frames.FrameCounter() >= maxFrames {
			logger.Info("stopping", slog.String("reason", "frame budget"), slog.Uint64("frames", frames.FrameCounter()))
			return nil
		}
	}
}

func drainResizes(win window.Window, frames drawer, logger *slog.Logger) {
	for {
		select {
		case size := <-win.Resizes():
			logger.Debug("resize pending", slog.Int("width", size.Width), slog.Int("height", size.Height))
			frames.NotifyResize()
		default:
			return
		}
	}
}
