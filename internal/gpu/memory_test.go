package gpu

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

func TestFindMemoryType(t *testing.T) {
	deviceLocal := core1_0.MemoryPropertyDeviceLocal
	hostVisible := core1_0.MemoryPropertyHostVisible
	hostCoherent := core1_0.MemoryPropertyHostCoherent

	types := []core1_0.MemoryType{
		{PropertyFlags: deviceLocal},
		{PropertyFlags: hostVisible},
		{PropertyFlags: hostVisible | hostCoherent},
		{PropertyFlags: deviceLocal | hostVisible | hostCoherent},
	}

	tests := []struct {
		name       string
		filter     uint32
		properties core1_0.MemoryPropertyFlags
		want       int
		wantErr    bool
	}{
		{name: "first match wins", filter: 0xf, properties: deviceLocal, want: 0},
		{name: "filter excludes lower index", filter: 0x8, properties: deviceLocal, want: 3},
		{name: "superset of flags", filter: 0xf, properties: hostVisible | hostCoherent, want: 2},
		{name: "superset skips partial match", filter: 0x3, properties: hostVisible | hostCoherent, wantErr: true},
		{name: "no flags requested", filter: 0x4, properties: 0, want: 2},
		{name: "empty filter", filter: 0, properties: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindMemoryType(types, tt.filter, tt.properties)
			if tt.wantErr {
				if !errors.Is(err, ErrOutOfMemory) {
					t.Fatalf("expected ErrOutOfMemory, got %v (index %d)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected index %d, got %d", tt.want, got)
			}
		})
	}
}

// The chosen index must always be the lowest one satisfying both predicates.
func TestFindMemoryTypeExhaustive(t *testing.T) {
	flagSets := []core1_0.MemoryPropertyFlags{
		0,
		core1_0.MemoryPropertyDeviceLocal,
		core1_0.MemoryPropertyHostVisible,
		core1_0.MemoryPropertyHostVisible | core1_0.MemoryPropertyHostCoherent,
		core1_0.MemoryPropertyDeviceLocal | core1_0.MemoryPropertyHostVisible,
	}

	var types []core1_0.MemoryType
	for _, flags := range flagSets {
		types = append(types, core1_0.MemoryType{PropertyFlags: flags})
	}

	for filter := uint32(0); filter < 1<<len(types); filter++ {
		for _, requested := range flagSets {
			want := -1
			for i, memoryType := range types {
				if filter&(1<<i) != 0 && memoryType.PropertyFlags&requested == requested {
					want = i
					break
				}
			}

			got, err := FindMemoryType(types, filter, requested)
			if want < 0 {
				if err == nil {
					t.Fatalf("filter %b flags %v: expected failure, got %d", filter, requested, got)
				}
				continue
			}
			if err != nil || got != want {
				t.Fatalf("filter %b flags %v: expected %d, got %d (%v)", filter, requested, want, got, err)
			}
		}
	}
}

func TestClassify(t *testing.T) {
	base := errors.New("driver failure")

	if Classify(core1_0.VKSuccess, nil, "nothing") != nil {
		t.Fatal("nil error must stay nil")
	}

	err := Classify(core1_0.VKErrorOutOfDeviceMemory, base, "allocate %d", 4)
	if !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("expected ErrOutOfMemory, got %v", err)
	}

	err = Classify(core1_0.VKErrorFormatNotSupported, base, "create image")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}

	err = Classify(core1_0.VKErrorDeviceLost, base, "submit")
	if !errors.Is(err, ErrDeviceLost) {
		t.Errorf("expected ErrDeviceLost, got %v", err)
	}
}
