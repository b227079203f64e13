package swapchain

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/meshviewer/internal/gpu"
)

// State is the lifecycle state of the swapchain and everything sized to it.
type State int

const (
	Absent State = iota
	Active
	Invalid
)

func (s State) String() string {
	switch s {
	case Absent:
		return "Absent"
	case Active:
		return "Active"
	case Invalid:
		return "Invalid"
	}
	return "Unknown"
}

// ErrWindowClosed is returned when the window is closed while a rebuild is
// waiting for it to become visible again.
var ErrWindowClosed = errors.New("window closed while waiting for a drawable surface")

// Drawable is the window as the swapchain sees it.
type Drawable interface {
	DrawableSize() (width, height int)
	WaitEvents()
	CloseRequested() bool
}

// chain is every object that shares the swapchain's lifetime.
type chain struct {
	swapchain khr_swapchain.Swapchain
	images    []core1_0.Image
	views     []core1_0.ImageView

	color     *gpu.Image
	colorView core1_0.ImageView
	depth     *gpu.Image
	depthView core1_0.ImageView

	framebuffers []core1_0.Framebuffer
}

func (c *chain) imageCount() int {
	return len(c.framebuffers)
}

// surfaceDevice creates and destroys chains. Destroy must release framebuffers
// and views before the swapchain itself.
type surfaceDevice interface {
	querySupport() (Support, error)
	waitIdle() error
	createChain(config Config, support Support, renderPass core1_0.RenderPass) (*chain, error)
	destroyChain(c *chain)
}

// Manager owns the swapchain, its image views, the shared color and depth
// targets and the framebuffers, and rebuilds them as one unit.
type Manager struct {
	logger   *slog.Logger
	device   surfaceDevice
	drawable Drawable
	ext      khr_swapchain.ExtensionDriver

	depthFormat core1_0.Format

	state      State
	config     Config
	renderPass core1_0.RenderPass
	// format the render pass was created with; fixed after the first build
	format  core1_0.Format
	current *chain
}

func NewManager(device *gpu.Device, allocator *gpu.Allocator, drawable Drawable, logger *slog.Logger) (*Manager, error) {
	vulkan, err := newVulkanDevice(device, allocator)
	if err != nil {
		return nil, err
	}

	return &Manager{
		logger:   logger,
		device:   vulkan,
		drawable: drawable,
		ext:      vulkan.ext,

		depthFormat: vulkan.depthFormat,
	}, nil
}

func newManager(device surfaceDevice, drawable Drawable, logger *slog.Logger) *Manager {
	return &Manager{
		logger:   logger,
		device:   device,
		drawable: drawable,
	}
}

// Query negotiates a configuration against the current surface without
// creating anything. The render pass is created from its format.
func (m *Manager) Query() (Config, error) {
	support, err := m.device.querySupport()
	if err != nil {
		return Config{}, err
	}

	width, height := m.drawable.DrawableSize()
	return Negotiate(support, width, height)
}

// Build creates the swapchain and its dependents for renderPass.
// Absent -> Active.
func (m *Manager) Build(renderPass core1_0.RenderPass) error {
	if m.state != Absent {
		return errors.Newf("cannot build swapchain in state %s", m.state)
	}

	support, err := m.device.querySupport()
	if err != nil {
		return err
	}

	width, height := m.drawable.DrawableSize()
	config, err := Negotiate(support, width, height)
	if err != nil {
		return err
	}

	if m.format != 0 && config.Format.Format != m.format {
		return errors.Mark(
			errors.Newf("surface format changed from %s to %s", m.format, config.Format.Format),
			gpu.ErrUnsupportedFormat,
		)
	}

	current, err := m.device.createChain(config, support, renderPass)
	if err != nil {
		return errors.Wrap(err, "create swapchain")
	}

	m.current = current
	m.config = config
	m.renderPass = renderPass
	m.format = config.Format.Format
	m.state = Active

	m.logger.Info("swapchain built",
		slog.Int("width", config.Extent.Width),
		slog.Int("height", config.Extent.Height),
		slog.Int("images", current.imageCount()),
		slog.Any("format", config.Format.Format),
		slog.Any("presentMode", config.PresentMode))
	return nil
}

// Invalidate marks the swapchain for rebuilding. Active -> Invalid.
func (m *Manager) Invalidate() {
	if m.state == Active {
		m.state = Invalid
	}
}

// Rebuild waits until the window has a non-zero drawable, drains the device,
// tears the chain down and builds it again with the same render pass.
func (m *Manager) Rebuild() error {
	if m.state == Absent {
		return errors.New("cannot rebuild a swapchain that was never built")
	}

	err := WaitForDrawable(m.drawable)
	if err != nil {
		return err
	}

	err = m.device.waitIdle()
	if err != nil {
		return err
	}

	m.teardown()
	return m.Build(m.renderPass)
}

// Destroy releases the chain. Any -> Absent.
func (m *Manager) Destroy() {
	m.teardown()
}

func (m *Manager) teardown() {
	if m.current != nil {
		m.device.destroyChain(m.current)
		m.current = nil
	}
	m.state = Absent
}

// WaitForDrawable blocks while the window is minimized or otherwise has no
// drawable area, pumping events so the window can be restored.
func WaitForDrawable(drawable Drawable) error {
	width, height := drawable.DrawableSize()
	for width == 0 || height == 0 {
		if drawable.CloseRequested() {
			return ErrWindowClosed
		}
		drawable.WaitEvents()
		width, height = drawable.DrawableSize()
	}
	return nil
}

func (m *Manager) State() State {
	return m.state
}

func (m *Manager) Config() Config {
	return m.config
}

func (m *Manager) Extent() core1_0.Extent2D {
	return m.config.Extent
}

func (m *Manager) Swapchain() khr_swapchain.Swapchain {
	if m.current == nil {
		return khr_swapchain.Swapchain{}
	}
	return m.current.swapchain
}

// DepthFormat is the format of the depth target; the render pass must use it.
func (m *Manager) DepthFormat() core1_0.Format {
	return m.depthFormat
}

// Extension is the swapchain extension driver used to acquire and present.
func (m *Manager) Extension() khr_swapchain.ExtensionDriver {
	return m.ext
}

func (m *Manager) Framebuffer(index int) core1_0.Framebuffer {
	return m.current.framebuffers[index]
}

func (m *Manager) ImageCount() int {
	if m.current == nil {
		return 0
	}
	return m.current.imageCount()
}
