//go:build vulkan

package vulkan

import (
	"fmt"
	"math"
	"time"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/sirupsen/logrus"

	"github.com/dariost/wyvern/executor"
	"github.com/dariost/wyvern/ir"
	"github.com/dariost/wyvern/spirv"
)

type slotKey struct {
	name string
	kind executor.IO
}

// Executable holds the compiled shader module, the ordered binding table
// and one resource slot per public binding.
type Executable struct {
	exec       *Executor
	program    *ir.Program
	bindings   []spirv.Binding
	descType   vk.DescriptorType
	module     vk.ShaderModule
	dsLayout   vk.DescriptorSetLayout
	pipeLayout vk.PipelineLayout
	pipeline   vk.Pipeline
	bound      map[slotKey]*Resource
}

// Bind attaches a resource to a named slot and returns the prior binding.
func (x *Executable) Bind(name string, kind executor.IO, res executor.Resource) executor.Resource {
	x.checkSlot(name, kind)
	r, ok := res.(*Resource)
	if !ok {
		panic(fmt.Sprintf("wyvern/vulkan: resource %T was not allocated by this backend", res))
	}
	key := slotKey{name, kind}
	prior := x.bound[key]
	x.bound[key] = r
	if prior == nil {
		return nil
	}
	return prior
}

// Unbind detaches and returns the resource bound to a named slot.
func (x *Executable) Unbind(name string, kind executor.IO) executor.Resource {
	x.checkSlot(name, kind)
	key := slotKey{name, kind}
	prior := x.bound[key]
	delete(x.bound, key)
	if prior == nil {
		return nil
	}
	return prior
}

func (x *Executable) checkSlot(name string, kind executor.IO) {
	m := x.program.Input
	if kind == executor.Output {
		m = x.program.Output
	}
	if _, ok := m[name]; !ok {
		panic(fmt.Sprintf("wyvern/vulkan: program has no %s named %q", kind, name))
	}
}

// transientBuffer is one descriptor's backing allocation for a single run.
type transientBuffer struct {
	buffer vk.Buffer
	memory vk.DeviceMemory
	size   int
}

// Run stages every binding into a host-visible buffer, records a one-shot
// dispatch of (workSize, 1, 1) work groups, waits on a fence and copies
// output buffers back to their resources.
func (x *Executable) Run() (executor.Report, error) {
	dev := x.exec.device
	start := time.Now()

	var nilBuffer vk.Buffer
	var nilMemory vk.DeviceMemory
	buffers := make([]transientBuffer, len(x.bindings))
	defer func() {
		for _, tb := range buffers {
			if tb.buffer != nilBuffer {
				vk.DestroyBuffer(dev, tb.buffer, nil)
			}
			if tb.memory != nilMemory {
				vk.FreeMemory(dev, tb.memory, nil)
			}
		}
	}()

	for i, bind := range x.bindings {
		value := ir.NullValue()
		if bind.Kind == spirv.Public {
			res, ok := x.bound[slotKey{bind.Name, bind.IO}]
			if !ok {
				return "", fmt.Errorf("missing %s resource %q", bind.IO, bind.Name)
			}
			value = res.GetData()
		}
		data, err := encodeValue(bind, value)
		if err != nil {
			return "", err
		}
		tb, err := x.exec.createBuffer(len(data), x.descType)
		if err != nil {
			return "", err
		}
		buffers[i] = tb
		if err := x.exec.writeBuffer(tb, data); err != nil {
			return "", err
		}
	}

	pool, set, err := x.descriptorSet(buffers)
	if err != nil {
		return "", err
	}
	defer vk.DestroyDescriptorPool(dev, pool, nil)

	if err := x.dispatch(set); err != nil {
		return "", err
	}

	for i, bind := range x.bindings {
		if bind.Kind != spirv.Public || bind.IO != executor.Output {
			continue
		}
		res := x.bound[slotKey{bind.Name, bind.IO}]
		data, err := x.exec.readBuffer(buffers[i])
		if err != nil {
			return "", err
		}
		value, err := decodeValue(bind, res.GetData(), data)
		if err != nil {
			return "", err
		}
		res.SetData(value)
	}

	elapsed := time.Since(start)
	logrus.WithField("elapsed", elapsed).Debug("dispatch complete")
	return fmt.Sprintf("dispatched %d workgroups in %s", x.exec.workSize, elapsed), nil
}

func (e *Executor) createBuffer(size int, descType vk.DescriptorType) (transientBuffer, error) {
	usage := vk.BufferUsageStorageBufferBit
	if descType == vk.DescriptorTypeUniformBuffer {
		usage = vk.BufferUsageUniformBufferBit
	}
	var buf vk.Buffer
	ret := vk.CreateBuffer(e.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &buf)
	if ret != vk.Success {
		return transientBuffer{}, fmt.Errorf("create buffer: %s", vkError(ret))
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(e.device, buf, &reqs)
	reqs.Deref()
	memType, err := e.findMemoryType(reqs.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		vk.DestroyBuffer(e.device, buf, nil)
		return transientBuffer{}, err
	}
	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(e.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &mem)
	if ret != vk.Success {
		vk.DestroyBuffer(e.device, buf, nil)
		return transientBuffer{}, fmt.Errorf("allocate %d bytes: %s", size, vkError(ret))
	}
	if ret := vk.BindBufferMemory(e.device, buf, mem, 0); ret != vk.Success {
		return transientBuffer{}, fmt.Errorf("bind buffer memory: %s", vkError(ret))
	}
	return transientBuffer{buffer: buf, memory: mem, size: size}, nil
}

func (e *Executor) findMemoryType(typeBits uint32, props vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < e.memProps.MemoryTypeCount; i++ {
		e.memProps.MemoryTypes[i].Deref()
		if typeBits&(1<<i) == 0 {
			continue
		}
		if e.memProps.MemoryTypes[i].PropertyFlags&props == props {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no host-visible coherent memory type")
}

func (e *Executor) writeBuffer(tb transientBuffer, data []byte) error {
	var ptr unsafe.Pointer
	if ret := vk.MapMemory(e.device, tb.memory, 0, vk.DeviceSize(tb.size), 0, &ptr); ret != vk.Success {
		return fmt.Errorf("map memory: %s", vkError(ret))
	}
	copy(unsafe.Slice((*byte)(ptr), tb.size), data)
	vk.UnmapMemory(e.device, tb.memory)
	return nil
}

func (e *Executor) readBuffer(tb transientBuffer) ([]byte, error) {
	var ptr unsafe.Pointer
	if ret := vk.MapMemory(e.device, tb.memory, 0, vk.DeviceSize(tb.size), 0, &ptr); ret != vk.Success {
		return nil, fmt.Errorf("map memory: %s", vkError(ret))
	}
	out := make([]byte, tb.size)
	copy(out, unsafe.Slice((*byte)(ptr), tb.size))
	vk.UnmapMemory(e.device, tb.memory)
	return out, nil
}

// descriptorSet allocates a transient pool and one set mirroring the
// binding table.
func (x *Executable) descriptorSet(buffers []transientBuffer) (vk.DescriptorPool, vk.DescriptorSet, error) {
	dev := x.exec.device
	var pool vk.DescriptorPool
	var nilSet vk.DescriptorSet
	ret := vk.CreateDescriptorPool(dev, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       1,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            x.descType,
			DescriptorCount: uint32(len(x.bindings)),
		}},
	}, nil, &pool)
	if ret != vk.Success {
		return pool, nilSet, fmt.Errorf("create descriptor pool: %s", vkError(ret))
	}

	sets := make([]vk.DescriptorSet, 1)
	ret = vk.AllocateDescriptorSets(dev, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{x.dsLayout},
	}, sets)
	if ret != vk.Success {
		return pool, nilSet, fmt.Errorf("allocate descriptor set: %s", vkError(ret))
	}

	writes := make([]vk.WriteDescriptorSet, len(x.bindings))
	infos := make([][]vk.DescriptorBufferInfo, len(x.bindings))
	for i, bind := range x.bindings {
		infos[i] = []vk.DescriptorBufferInfo{{
			Buffer: buffers[i].buffer,
			Offset: 0,
			Range:  vk.DeviceSize(vk.WholeSize),
		}}
		writes[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          sets[0],
			DstBinding:      bind.Index,
			DescriptorCount: 1,
			DescriptorType:  x.descType,
			PBufferInfo:     infos[i],
		}
	}
	vk.UpdateDescriptorSets(dev, uint32(len(writes)), writes, 0, nil)
	return pool, sets[0], nil
}

// dispatch records and submits the one-shot command buffer and waits for
// the fence.
func (x *Executable) dispatch(set vk.DescriptorSet) error {
	dev := x.exec.device

	var pool vk.CommandPool
	ret := vk.CreateCommandPool(dev, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: x.exec.family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}, nil, &pool)
	if ret != vk.Success {
		return fmt.Errorf("create command pool: %s", vkError(ret))
	}
	defer vk.DestroyCommandPool(dev, pool, nil)

	cmds := make([]vk.CommandBuffer, 1)
	ret = vk.AllocateCommandBuffers(dev, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, cmds)
	if ret != vk.Success {
		return fmt.Errorf("allocate command buffer: %s", vkError(ret))
	}
	cmd := cmds[0]

	vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, x.pipeline)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointCompute, x.pipeLayout, 0, 1,
		[]vk.DescriptorSet{set}, 0, nil)
	vk.CmdDispatch(cmd, x.exec.workSize, 1, 1)
	vk.EndCommandBuffer(cmd)

	var fence vk.Fence
	ret = vk.CreateFence(dev, &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}, nil, &fence)
	if ret != vk.Success {
		return fmt.Errorf("create fence: %s", vkError(ret))
	}
	defer vk.DestroyFence(dev, fence, nil)

	ret = vk.QueueSubmit(x.exec.queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}}, fence)
	if ret != vk.Success {
		return fmt.Errorf("submit: %s", vkError(ret))
	}
	if ret := vk.WaitForFences(dev, 1, []vk.Fence{fence}, vk.True, math.MaxUint64); ret != vk.Success {
		return fmt.Errorf("wait for fence: %s", vkError(ret))
	}
	return nil
}
