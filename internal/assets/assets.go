// Package assets loads the mesh, texture and shader blobs the renderer
// draws with.
package assets

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	vkngmath "github.com/vkngwrapper/math"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"github.com/vkngwrapper/meshviewer/internal/mesh"
)

// Paths locates every asset inside the loader's file system. Material may
// be empty.
type Paths struct {
	Mesh           string
	Material       string
	Texture        string
	VertexShader   string
	FragmentShader string
}

// Shaders holds SPIR-V blobs by stage.
type Shaders struct {
	Vertex   []byte
	Fragment []byte
}

// Stage returns the blob for a logical stage name, "vertex" or "fragment".
func (s Shaders) Stage(name string) ([]byte, error) {
	switch name {
	case "vertex":
		return s.Vertex, nil
	case "fragment":
		return s.Fragment, nil
	}
	return nil, errors.Newf("unknown shader stage %q", name)
}

// Texture is a decoded image as tightly packed 8-bit RGBA rows.
type Texture struct {
	Pixels        []byte
	Width, Height int
}

type Assets struct {
	Shaders Shaders
	Mesh    mesh.Mesh
	Texture Texture
}

type Loader struct {
	logger *slog.Logger
	fsys   fs.FS
	paths  Paths
}

func NewLoader(fsys fs.FS, paths Paths, logger *slog.Logger) *Loader {
	return &Loader{
		logger: logger,
		fsys:   fsys,
		paths:  paths,
	}
}

// LoadAll decodes the shaders, the mesh and the texture concurrently. The
// first failure cancels the rest.
func (l *Loader) LoadAll(ctx context.Context) (*Assets, error) {
	var loaded Assets
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		var err error
		loaded.Shaders, err = l.Shaders()
		return err
	})

	group.Go(func() error {
		var err error
		loaded.Mesh, err = l.Mesh()
		return err
	})

	group.Go(func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var err error
		loaded.Texture, err = l.Texture()
		return err
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	l.logger.Info("assets loaded",
		slog.Int("vertices", len(loaded.Mesh.Vertices)),
		slog.Int("indices", len(loaded.Mesh.Indices)),
		slog.Int("textureWidth", loaded.Texture.Width),
		slog.Int("textureHeight", loaded.Texture.Height))
	return &loaded, nil
}

func (l *Loader) Shaders() (Shaders, error) {
	vertex, err := fs.ReadFile(l.fsys, l.paths.VertexShader)
	if err != nil {
		return Shaders{}, errors.Wrap(err, "read vertex shader")
	}

	fragment, err := fs.ReadFile(l.fsys, l.paths.FragmentShader)
	if err != nil {
		return Shaders{}, errors.Wrap(err, "read fragment shader")
	}

	return Shaders{Vertex: vertex, Fragment: fragment}, nil
}

// Mesh decodes the OBJ file, fan-triangulates its polygons and deduplicates
// the corners. Texture V is flipped to Vulkan's top-left origin.
func (l *Loader) Mesh() (mesh.Mesh, error) {
	meshFile, err := l.fsys.Open(l.paths.Mesh)
	if err != nil {
		return mesh.Mesh{}, errors.Wrap(err, "open mesh")
	}
	defer meshFile.Close()

	var matReader io.Reader = strings.NewReader("")
	if l.paths.Material != "" {
		matFile, err := l.fsys.Open(l.paths.Material)
		if err != nil {
			return mesh.Mesh{}, errors.Wrap(err, "open material")
		}
		defer matFile.Close()
		matReader = matFile
	}

	decoder, err := obj.DecodeReader(meshFile, matReader)
	if err != nil {
		return mesh.Mesh{}, errors.Wrapf(err, "decode mesh %s", l.paths.Mesh)
	}

	corners, err := triangulate(decoder)
	if err != nil {
		return mesh.Mesh{}, errors.Wrapf(err, "mesh %s", l.paths.Mesh)
	}
	if len(corners) == 0 {
		return mesh.Mesh{}, errors.Newf("mesh %s has no triangles", l.paths.Mesh)
	}

	return mesh.Build(corners), nil
}

func triangulate(decoder *obj.Decoder) ([]mesh.Corner, error) {
	var corners []mesh.Corner
	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				for _, faceIndex := range [3]int{0, i - 1, i} {
					c, err := corner(decoder, face, faceIndex)
					if err != nil {
						return nil, err
					}
					corners = append(corners, c)
				}
			}
		}
	}
	return corners, nil
}

func corner(decoder *obj.Decoder, face obj.Face, faceIndex int) (mesh.Corner, error) {
	vertInd := face.Vertices[faceIndex]
	if vertInd < 0 || vertInd*3+2 >= len(decoder.Vertices) {
		return mesh.Corner{}, errors.Newf("vertex index %d out of range", vertInd)
	}

	c := mesh.Corner{
		Position: vkngmath.Vec3[float32]{
			X: decoder.Vertices[vertInd*3],
			Y: decoder.Vertices[vertInd*3+1],
			Z: decoder.Vertices[vertInd*3+2],
		},
	}

	if faceIndex < len(face.Uvs) {
		uvInd := face.Uvs[faceIndex]
		if uvInd < 0 || uvInd*2+1 >= len(decoder.Uvs) {
			return mesh.Corner{}, errors.Newf("texture coordinate index %d out of range", uvInd)
		}
		c.TexCoord = vkngmath.Vec2[float32]{
			X: decoder.Uvs[uvInd*2],
			Y: 1.0 - decoder.Uvs[uvInd*2+1],
		}
	}

	return c, nil
}

// Texture decodes any registered image format into 8-bit RGBA.
func (l *Loader) Texture() (Texture, error) {
	file, err := l.fsys.Open(l.paths.Texture)
	if err != nil {
		return Texture{}, errors.Wrap(err, "open texture")
	}
	defer file.Close()

	decodedImage, format, err := image.Decode(file)
	if err != nil {
		return Texture{}, errors.Wrapf(err, "decode texture %s", l.paths.Texture)
	}

	texture := ToRGBA(decodedImage)
	l.logger.Debug("texture decoded",
		slog.String("path", l.paths.Texture),
		slog.String("format", format),
		slog.Int("width", texture.Width),
		slog.Int("height", texture.Height))
	return texture, nil
}

func ToRGBA(src image.Image) Texture {
	bounds := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	return Texture{
		Pixels: dst.Pix,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
}
