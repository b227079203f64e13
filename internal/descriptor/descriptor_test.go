package descriptor

import (
	"testing"

	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/meshviewer/internal/pipeline"
)

func TestPoolInfo(t *testing.T) {
	info := PoolInfo(2)
	if info.MaxSets != 2 {
		t.Errorf("expected 2 sets, got %d", info.MaxSets)
	}

	counts := map[core1_0.DescriptorType]int{}
	for _, size := range info.PoolSizes {
		counts[size.Type] += size.DescriptorCount
	}
	if counts[core1_0.DescriptorTypeUniformBuffer] != 2 || counts[core1_0.DescriptorTypeCombinedImageSampler] != 2 {
		t.Errorf("expected exactly 2 descriptors of each kind, got %v", counts)
	}
	if len(counts) != 2 {
		t.Errorf("unexpected descriptor kinds %v", counts)
	}
}

func TestWritesMatchLayout(t *testing.T) {
	writes := Writes(core1_0.DescriptorSet{}, core1_0.Buffer{}, 192, core1_0.ImageView{}, core1_0.Sampler{})
	layout := pipeline.DescriptorSetLayoutInfo()

	if len(writes) != len(layout.Bindings) {
		t.Fatalf("expected one write per binding, got %d writes for %d bindings", len(writes), len(layout.Bindings))
	}

	for i, write := range writes {
		binding := layout.Bindings[i]
		if write.DstBinding != binding.Binding || write.DescriptorType != binding.DescriptorType {
			t.Errorf("write %d targets binding %d (%v), layout has %d (%v)", i, write.DstBinding, write.DescriptorType, binding.Binding, binding.DescriptorType)
		}
	}

	if writes[0].BufferInfo[0].Range != 192 {
		t.Errorf("expected the uniform range to be 192, got %d", writes[0].BufferInfo[0].Range)
	}
	if writes[1].ImageInfo[0].ImageLayout != core1_0.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("the texture must be sampled in shader-read layout")
	}
}
