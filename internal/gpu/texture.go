package gpu

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/exp/slog"
)

// Texture is a mip-mapped sampled image with its view and sampler.
type Texture struct {
	Image     *Image
	View      core1_0.ImageView
	Sampler   core1_0.Sampler
	MipLevels int

	driver core1_0.CoreDeviceDriver
}

// CreateTexture uploads RGBA8 pixels, generates the mip chain and creates a
// view and an anisotropic sampler over it.
func (u *Uploader) CreateTexture(pixels []byte, width, height int) (*Texture, error) {
	texture := &Texture{driver: u.driver}

	var err error
	texture.Image, err = u.UploadImage(pixels, width, height)
	if err != nil {
		return nil, err
	}
	texture.MipLevels = texture.Image.Spec.MipLevels

	if texture.MipLevels > 1 {
		err = u.GenerateMipmaps(texture.Image.Handle, TextureFormat, width, height, texture.MipLevels)
		if err != nil {
			texture.Destroy()
			return nil, err
		}
	}

	texture.View, err = u.allocator.CreateImageView(texture.Image.Handle, TextureFormat, core1_0.ImageAspectColor, texture.MipLevels)
	if err != nil {
		texture.Destroy()
		return nil, err
	}

	sampler, res, err := u.driver.CreateSampler(nil, SamplerInfo(u.device.MaxSamplerAnisotropy(), texture.MipLevels))
	if err != nil {
		texture.Destroy()
		return nil, Classify(res, err, "create texture sampler")
	}
	texture.Sampler = sampler

	u.logger.Info("created texture",
		slog.Int("width", width),
		slog.Int("height", height),
		slog.Int("mipLevels", texture.MipLevels))
	return texture, nil
}

func SamplerInfo(maxAnisotropy float32, mipLevels int) core1_0.SamplerCreateInfo {
	return core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: true,
		MaxAnisotropy:    maxAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MinLod:     0,
		MaxLod:     float32(mipLevels),
	}
}

func (t *Texture) Destroy() {
	if t.Sampler.Initialized() {
		t.driver.DestroySampler(t.Sampler, nil)
		t.Sampler = core1_0.Sampler{}
	}

	if t.View.Initialized() {
		t.driver.DestroyImageView(t.View, nil)
		t.View = core1_0.ImageView{}
	}

	if t.Image != nil {
		t.Image.Destroy()
		t.Image = nil
	}
}
