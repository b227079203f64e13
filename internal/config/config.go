// Package config parses the viewer's command line.
package config

import (
	"flag"
	"io"

	"github.com/cockroachdb/errors"
)

type Config struct {
	Title  string
	Width  int
	Height int

	// AssetDir is the root every asset path below is resolved against.
	AssetDir       string
	MeshPath       string
	MaterialPath   string
	TexturePath    string
	VertexShader   string
	FragmentShader string

	Validation bool
	LogLevel   string
	// MaxFrames stops the viewer after that many presented frames. Zero
	// runs until the window closes.
	MaxFrames uint64
}

func Default() Config {
	return Config{
		Title:          "Vulkan",
		Width:          800,
		Height:         600,
		AssetDir:       ".",
		MeshPath:       "meshes/viking_room.obj",
		MaterialPath:   "meshes/viking_room.mtl",
		TexturePath:    "images/viking_room.png",
		VertexShader:   "shaders/vert.spv",
		FragmentShader: "shaders/frag.spv",
		Validation:     true,
		LogLevel:       "info",
	}
}

// Parse reads flags from args on top of Default and validates the result.
// Usage and parse errors are written to output.
func Parse(name string, args []string, output io.Writer) (Config, error) {
	cfg := Default()

	flags := flag.NewFlagSet(name, flag.ContinueOnError)
	flags.SetOutput(output)

	flags.StringVar(&cfg.Title, "title", cfg.Title, "window title")
	flags.IntVar(&cfg.Width, "width", cfg.Width, "initial window width")
	flags.IntVar(&cfg.Height, "height", cfg.Height, "initial window height")
	flags.StringVar(&cfg.AssetDir, "assets", cfg.AssetDir, "asset root directory")
	flags.StringVar(&cfg.MeshPath, "mesh", cfg.MeshPath, "OBJ mesh, relative to the asset root")
	flags.StringVar(&cfg.MaterialPath, "material", cfg.MaterialPath, "MTL material library, empty for none")
	flags.StringVar(&cfg.TexturePath, "texture", cfg.TexturePath, "texture image, relative to the asset root")
	flags.StringVar(&cfg.VertexShader, "vert", cfg.VertexShader, "vertex shader SPIR-V")
	flags.StringVar(&cfg.FragmentShader, "frag", cfg.FragmentShader, "fragment shader SPIR-V")
	flags.BoolVar(&cfg.Validation, "validation", cfg.Validation, "enable the Khronos validation layer")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.Uint64Var(&cfg.MaxFrames, "frames", cfg.MaxFrames, "exit after this many frames, 0 for no limit")

	if err := flags.Parse(args); err != nil {
		return Config{}, errors.Wrap(err, "parse flags")
	}
	if flags.NArg() > 0 {
		return Config{}, errors.Newf("unexpected arguments: %v", flags.Args())
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return errors.Newf("window size must be positive, got %dx%d", c.Width, c.Height)
	}

	required := []struct {
		name  string
		value string
	}{
		{"assets", c.AssetDir},
		{"mesh", c.MeshPath},
		{"texture", c.TexturePath},
		{"vert", c.VertexShader},
		{"frag", c.FragmentShader},
		{"log-level", c.LogLevel},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.Newf("-%s must not be empty", r.name)
		}
	}

	return nil
}
