//go:build vulkan

package vulkan

import (
	"bytes"
	"encoding/binary"
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/sirupsen/logrus"

	"github.com/dariost/wyvern/executor"
	"github.com/dariost/wyvern/ir"
	"github.com/dariost/wyvern/spirv"
)

// Executor owns the Vulkan instance, the selected physical device, one
// logical device and its compute queue.
type Executor struct {
	cfg      Config
	instance vk.Instance
	physical vk.PhysicalDevice
	device   vk.Device
	queue    vk.Queue
	family   uint32
	memProps vk.PhysicalDeviceMemoryProperties
	version  spirv.Version

	// workSize is the device's maximum compute work-group invocation
	// count; Run dispatches that many work groups on axis 0.
	workSize uint32
}

// NewExecutor creates an executor on the cfg.DeviceIndex-th
// compute-capable physical device.
func NewExecutor(cfg Config) (executor.Executor, error) {
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("load Vulkan: %w", err)
	}
	e := &Executor{cfg: cfg}

	appInfo := vk.ApplicationInfo{
		SType:            vk.StructureTypeApplicationInfo,
		PApplicationName: "wyvern\x00",
		ApiVersion:       vk.MakeVersion(1, 1, 0),
	}
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}, nil, &e.instance)
	if ret != vk.Success {
		return nil, fmt.Errorf("create instance: %s", vkError(ret))
	}
	vk.InitInstance(e.instance)

	if err := e.pickDevice(); err != nil {
		return nil, err
	}

	queueInfo := vk.DeviceQueueCreateInfo{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: e.family,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}
	ret = vk.CreateDevice(e.physical, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vk.DeviceQueueCreateInfo{queueInfo},
	}, nil, &e.device)
	if ret != vk.Success {
		return nil, fmt.Errorf("create device: %s", vkError(ret))
	}
	vk.GetDeviceQueue(e.device, e.family, 0, &e.queue)
	vk.GetPhysicalDeviceMemoryProperties(e.physical, &e.memProps)
	e.memProps.Deref()
	return e, nil
}

// pickDevice selects the configured compute-capable physical device and
// reads its limits.
func (e *Executor) pickDevice() error {
	var count uint32
	vk.EnumeratePhysicalDevices(e.instance, &count, nil)
	if count == 0 {
		return fmt.Errorf("no Vulkan device found")
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(e.instance, &count, devices)

	seen := 0
	for _, dev := range devices {
		family, ok := computeFamily(dev)
		if !ok {
			continue
		}
		if seen != e.cfg.DeviceIndex {
			seen++
			continue
		}
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(dev, &props)
		props.Deref()
		props.Limits.Deref()
		e.physical = dev
		e.family = family
		e.workSize = props.Limits.MaxComputeWorkGroupInvocations
		e.version = spirv.Vulkan11
		if vk.Version(props.ApiVersion).Minor() == 0 && vk.Version(props.ApiVersion).Major() == 1 {
			e.version = spirv.Vulkan10
		}
		name := string(bytes.TrimRight(props.DeviceName[:], "\x00"))
		logrus.WithFields(logrus.Fields{
			"device":    name,
			"workSize":  e.workSize,
			"target":    e.version.String(),
		}).Info("selected Vulkan device")
		return nil
	}
	return fmt.Errorf("no compute-capable Vulkan device at index %d", e.cfg.DeviceIndex)
}

func computeFamily(dev vk.PhysicalDevice) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(dev, &count, families)
	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0 {
			return uint32(i), true
		}
	}
	return 0, false
}

// Compile validates the program, lowers it to SPIR-V, runs the optional
// external tooling and wraps the shader module in an Executable.
func (e *Executor) Compile(p *ir.Program) (executor.Executable, error) {
	if err := executor.ValidateForCompile(p); err != nil {
		return nil, err
	}
	words, bindings, err := spirv.Generate(p, e.version)
	if err != nil {
		return nil, err
	}
	code, err := PostProcess(words, e.cfg)
	if err != nil {
		return nil, err
	}

	var module vk.ShaderModule
	ret := vk.CreateShaderModule(e.device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    bytesToWords(code),
	}, nil, &module)
	if ret != vk.Success {
		return nil, fmt.Errorf("create shader module: %s", vkError(ret))
	}

	descType := vk.DescriptorTypeStorageBuffer
	if e.version == spirv.Vulkan10 {
		descType = vk.DescriptorTypeUniformBuffer
	}
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, bind := range bindings {
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         bind.Index,
			DescriptorType:  descType,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		}
	}
	var dsLayout vk.DescriptorSetLayout
	ret = vk.CreateDescriptorSetLayout(e.device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}, nil, &dsLayout)
	if ret != vk.Success {
		return nil, fmt.Errorf("create descriptor set layout: %s", vkError(ret))
	}

	var pipeLayout vk.PipelineLayout
	ret = vk.CreatePipelineLayout(e.device, &vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{dsLayout},
	}, nil, &pipeLayout)
	if ret != vk.Success {
		return nil, fmt.Errorf("create pipeline layout: %s", vkError(ret))
	}

	var nilCache vk.PipelineCache
	pipelines := make([]vk.Pipeline, 1)
	ret = vk.CreateComputePipelines(e.device, nilCache, 1,
		[]vk.ComputePipelineCreateInfo{{
			SType: vk.StructureTypeComputePipelineCreateInfo,
			Stage: vk.PipelineShaderStageCreateInfo{
				SType:  vk.StructureTypePipelineShaderStageCreateInfo,
				Stage:  vk.ShaderStageComputeBit,
				Module: module,
				PName:  "main\x00",
			},
			Layout: pipeLayout,
		}}, nil, pipelines)
	if ret != vk.Success {
		return nil, fmt.Errorf("create compute pipeline: %s", vkError(ret))
	}

	return &Executable{
		exec:       e,
		program:    p,
		bindings:   bindings,
		descType:   descType,
		module:     module,
		dsLayout:   dsLayout,
		pipeLayout: pipeLayout,
		pipeline:   pipelines[0],
		bound:      map[slotKey]*Resource{},
	}, nil
}

// NewResource allocates an empty resource.
func (e *Executor) NewResource() (executor.Resource, error) {
	return NewResource(), nil
}

func bytesToWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}

func vkError(ret vk.Result) string {
	return fmt.Sprintf("VkResult(%d)", int32(ret))
}
