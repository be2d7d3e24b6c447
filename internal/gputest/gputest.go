// Package gputest provides HAL fakes for tests: a noop device and recording
// wrappers for queues and render passes.
package gputest

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

// NoopDevice opens a device on the noop backend. Resources are released
// when the test ends.
func NoopDevice(tb testing.TB) (hal.Device, hal.Queue) {
	tb.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		tb.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		tb.Fatal("noop backend reported no adapters")
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		tb.Fatalf("Open failed: %v", err)
	}
	tb.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

// BufferWrite is one recorded Queue.WriteBuffer call.
type BufferWrite struct {
	Buffer hal.Buffer
	Offset uint64
	Data   []byte
}

// RecordingQueue forwards to a real queue and records buffer writes.
type RecordingQueue struct {
	hal.Queue
	Writes []BufferWrite
	// Fail, when set, is returned by WriteBuffer instead of forwarding.
	Fail error
}

// WriteBuffer records a copy of data and forwards the call.
func (q *RecordingQueue) WriteBuffer(buffer hal.Buffer, offset uint64, data []byte) error {
	if q.Fail != nil {
		return q.Fail
	}
	q.Writes = append(q.Writes, BufferWrite{
		Buffer: buffer,
		Offset: offset,
		Data:   append([]byte(nil), data...),
	})
	return q.Queue.WriteBuffer(buffer, offset, data)
}

// Draw is one recorded Draw call.
type Draw struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// VertexBuffer is one recorded SetVertexBuffer call.
type VertexBuffer struct {
	Slot   uint32
	Buffer hal.Buffer
	Offset uint64
}

// RecordingPass records render pass commands. Ops holds the command names
// in call order.
type RecordingPass struct {
	Ops           []string
	Pipelines     []hal.RenderPipeline
	BindGroups    []hal.BindGroup
	VertexBuffers []VertexBuffer
	Draws         []Draw
}

func (p *RecordingPass) SetPipeline(pipeline hal.RenderPipeline) {
	p.Ops = append(p.Ops, "SetPipeline")
	p.Pipelines = append(p.Pipelines, pipeline)
}

func (p *RecordingPass) SetBindGroup(_ uint32, group hal.BindGroup, _ []uint32) {
	p.Ops = append(p.Ops, "SetBindGroup")
	p.BindGroups = append(p.BindGroups, group)
}

func (p *RecordingPass) SetVertexBuffer(slot uint32, buffer hal.Buffer, offset uint64) {
	p.Ops = append(p.Ops, "SetVertexBuffer")
	p.VertexBuffers = append(p.VertexBuffers, VertexBuffer{Slot: slot, Buffer: buffer, Offset: offset})
}

func (p *RecordingPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.Ops = append(p.Ops, "Draw")
	p.Draws = append(p.Draws, Draw{
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
}
