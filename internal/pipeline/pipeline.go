package pipeline

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/exp/slog"

	"github.com/vkngwrapper/meshviewer/internal/gpu"
	"github.com/vkngwrapper/meshviewer/internal/mesh"
)

const (
	UniformBinding = 0
	SamplerBinding = 1
)

// Pipeline is the graphics pipeline with the layouts it was created against.
type Pipeline struct {
	SetLayout core1_0.DescriptorSetLayout
	Layout    core1_0.PipelineLayout
	Pipeline  core1_0.Pipeline

	driver core1_0.CoreDeviceDriver
}

func DescriptorSetLayoutInfo() core1_0.DescriptorSetLayoutCreateInfo {
	return core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: []core1_0.DescriptorSetLayoutBinding{
			{
				Binding:         UniformBinding,
				DescriptorType:  core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: 1,

				StageFlags: core1_0.StageVertex,
			},
			{
				Binding:         SamplerBinding,
				DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,

				StageFlags: core1_0.StageFragment,
			},
		},
	}
}

// fixedFunctions is every piece of pipeline state that does not depend on a
// device object.
type fixedFunctions struct {
	vertexInput   *core1_0.PipelineVertexInputStateCreateInfo
	inputAssembly *core1_0.PipelineInputAssemblyStateCreateInfo
	viewport      *core1_0.PipelineViewportStateCreateInfo
	rasterization *core1_0.PipelineRasterizationStateCreateInfo
	multisample   *core1_0.PipelineMultisampleStateCreateInfo
	depthStencil  *core1_0.PipelineDepthStencilStateCreateInfo
	colorBlend    *core1_0.PipelineColorBlendStateCreateInfo
	dynamic       *core1_0.PipelineDynamicStateCreateInfo
}

func newFixedFunctions(samples core1_0.SampleCountFlags) fixedFunctions {
	return fixedFunctions{
		vertexInput: &core1_0.PipelineVertexInputStateCreateInfo{
			VertexBindingDescriptions:   mesh.VertexBindingDescriptions(),
			VertexAttributeDescriptions: mesh.VertexAttributeDescriptions(),
		},

		inputAssembly: &core1_0.PipelineInputAssemblyStateCreateInfo{
			Topology:               core1_0.PrimitiveTopologyTriangleList,
			PrimitiveRestartEnable: false,
		},

		// Viewport and scissor are set while recording, so the counts are all
		// that matter here.
		viewport: &core1_0.PipelineViewportStateCreateInfo{
			Viewports: []core1_0.Viewport{{MinDepth: 0, MaxDepth: 1}},
			Scissors:  []core1_0.Rect2D{{}},
		},

		rasterization: &core1_0.PipelineRasterizationStateCreateInfo{
			DepthClampEnable:        false,
			RasterizerDiscardEnable: false,

			PolygonMode: core1_0.PolygonModeFill,
			CullMode:    core1_0.CullModeNone,
			FrontFace:   core1_0.FrontFaceCounterClockwise,

			DepthBiasEnable: false,

			LineWidth: 1.0,
		},

		multisample: &core1_0.PipelineMultisampleStateCreateInfo{
			SampleShadingEnable:  false,
			RasterizationSamples: samples,
			MinSampleShading:     1.0,
		},

		depthStencil: &core1_0.PipelineDepthStencilStateCreateInfo{
			DepthTestEnable:  true,
			DepthWriteEnable: true,
			DepthCompareOp:   core1_0.CompareOpLess,
		},

		colorBlend: &core1_0.PipelineColorBlendStateCreateInfo{
			LogicOpEnabled: false,
			LogicOp:        core1_0.LogicOpCopy,

			BlendConstants: [4]float32{0, 0, 0, 0},
			Attachments: []core1_0.PipelineColorBlendAttachmentState{
				{
					BlendEnabled:   false,
					ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
				},
			},
		},

		dynamic: &core1_0.PipelineDynamicStateCreateInfo{
			DynamicStates: []core1_0.DynamicState{
				core1_0.DynamicStateViewport,
				core1_0.DynamicStateScissor,
			},
		},
	}
}

// Build creates the descriptor set layout, the pipeline layout and the
// graphics pipeline for renderPass from two SPIR-V blobs. Any failure is
// marked gpu.ErrPipelineCreation.
func Build(device *gpu.Device, renderPass core1_0.RenderPass, vertexCode, fragmentCode []byte, logger *slog.Logger) (*Pipeline, error) {
	p, err := build(device, renderPass, vertexCode, fragmentCode)
	if err != nil {
		return nil, errors.Mark(err, gpu.ErrPipelineCreation)
	}

	logger.Info("graphics pipeline created", slog.Any("samples", device.MSAASamples()))
	return p, nil
}

func build(device *gpu.Device, renderPass core1_0.RenderPass, vertexCode, fragmentCode []byte) (_ *Pipeline, err error) {
	driver := device.Driver()
	p := &Pipeline{driver: driver}
	defer func() {
		if err != nil {
			p.Destroy()
		}
	}()

	vertShader, err := createShaderModule(driver, "vertex", vertexCode)
	if err != nil {
		return nil, err
	}
	defer driver.DestroyShaderModule(vertShader, nil)

	fragShader, err := createShaderModule(driver, "fragment", fragmentCode)
	if err != nil {
		return nil, err
	}
	defer driver.DestroyShaderModule(fragShader, nil)

	var res common.VkResult
	p.SetLayout, res, err = driver.CreateDescriptorSetLayout(nil, DescriptorSetLayoutInfo())
	if err != nil {
		return nil, gpu.Classify(res, err, "create descriptor set layout")
	}

	p.Layout, res, err = driver.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{
			p.SetLayout,
		},
	})
	if err != nil {
		return nil, gpu.Classify(res, err, "create pipeline layout")
	}

	fixed := newFixedFunctions(device.MSAASamples())
	pipelines, res, err := driver.CreateGraphicsPipelines(nil, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				{
					Stage:  core1_0.StageVertex,
					Module: vertShader,
					Name:   "main",
				},
				{
					Stage:  core1_0.StageFragment,
					Module: fragShader,
					Name:   "main",
				},
			},
			VertexInputState:   fixed.vertexInput,
			InputAssemblyState: fixed.inputAssembly,
			ViewportState:      fixed.viewport,
			RasterizationState: fixed.rasterization,
			MultisampleState:   fixed.multisample,
			DepthStencilState:  fixed.depthStencil,
			ColorBlendState:    fixed.colorBlend,
			DynamicState:       fixed.dynamic,
			Layout:             p.Layout,
			RenderPass:         renderPass,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	)
	if err != nil {
		return nil, gpu.Classify(res, err, "create graphics pipeline")
	}
	p.Pipeline = pipelines[0]

	return p, nil
}

func createShaderModule(driver core1_0.CoreDeviceDriver, stage string, blob []byte) (core1_0.ShaderModule, error) {
	code, err := Bytecode(blob)
	if err != nil {
		return core1_0.ShaderModule{}, errors.Wrapf(err, "%s shader", stage)
	}

	module, res, err := driver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: code,
	})
	if err != nil {
		return core1_0.ShaderModule{}, gpu.Classify(res, err, "create %s shader module", stage)
	}
	return module, nil
}

func (p *Pipeline) Destroy() {
	if p.Pipeline.Initialized() {
		p.driver.DestroyPipeline(p.Pipeline, nil)
		p.Pipeline = core1_0.Pipeline{}
	}

	if p.Layout.Initialized() {
		p.driver.DestroyPipelineLayout(p.Layout, nil)
		p.Layout = core1_0.PipelineLayout{}
	}

	if p.SetLayout.Initialized() {
		p.driver.DestroyDescriptorSetLayout(p.SetLayout, nil)
		p.SetLayout = core1_0.DescriptorSetLayout{}
	}
}
