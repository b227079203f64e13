package frame

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// UniformFrameData is the vertex-stage uniform block, three column-major
// matrices.
type UniformFrameData struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

const (
	fieldOfView = 45.0
	nearPlane   = 0.1
	farPlane    = 10.0
)

// ComputeUniforms spins the model about Z at a quarter turn per second and
// views it from (2,2,2) with Z up.
func ComputeUniforms(elapsed float64, extent core1_0.Extent2D) UniformFrameData {
	// one full turn every 4 seconds; wrapping keeps float32 precision
	angle := math.Mod(elapsed, 4.0) * math.Pi / 2.0

	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}

	proj := mgl32.Perspective(mgl32.DegToRad(fieldOfView), aspect, nearPlane, farPlane)
	// Vulkan clip space has Y pointing down
	proj[5] *= -1

	return UniformFrameData{
		Model: mgl32.HomogRotate3DZ(float32(angle)),
		View: mgl32.LookAtV(
			mgl32.Vec3{2, 2, 2},
			mgl32.Vec3{0, 0, 0},
			mgl32.Vec3{0, 0, 1},
		),
		Proj: proj,
	}
}
