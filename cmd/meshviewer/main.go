package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/meshviewer/internal/assets"
	"github.com/vkngwrapper/meshviewer/internal/config"
	"github.com/vkngwrapper/meshviewer/internal/logging"
	"github.com/vkngwrapper/meshviewer/internal/renderer"
	"github.com/vkngwrapper/meshviewer/internal/window"
)

func main() {
	runtime.LockOSThread()

	cfg, err := config.Parse(filepath.Base(os.Args[0]), os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	} else if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(cfg.LogLevel, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("fatal", slog.String("error", fmt.Sprintf("%+v", err)))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	loader := assets.NewLoader(os.DirFS(cfg.AssetDir), assets.Paths{
		Mesh:           cfg.MeshPath,
		Material:       cfg.MaterialPath,
		Texture:        cfg.TexturePath,
		VertexShader:   cfg.VertexShader,
		FragmentShader: cfg.FragmentShader,
	}, logger)

	loaded, err := loader.LoadAll(ctx)
	if err != nil {
		return errors.Wrap(err, "load assets")
	}

	win, err := window.NewSDLWindow(window.Options{
		Title:  cfg.Title,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, logger)
	if err != nil {
		return err
	}
	defer win.Destroy()

	r, err := renderer.New(win, loaded, renderer.Options{
		ApplicationName: cfg.Title,
		Validation:      cfg.Validation,
		MaxFrames:       cfg.MaxFrames,
	}, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	return r.Run(ctx)
}
