// Package gputest provides an in-memory gpu.Device for tests.
package gputest

import (
	"errors"
	"fmt"
	"sync"

	"meshpipe/internal/gpu"
)

var ErrInjected = errors.New("gputest: injected failure")

// Device fakes buffer names and records every call.
type Device struct {
	mu        sync.Mutex
	next      uint32
	live      map[uint32]gpu.Buffer
	uploads   int
	destroyed int

	// FailCreate and FailUpload make the next calls return ErrInjected.
	FailCreate bool
	FailUpload bool
}

func NewDevice() *Device {
	return &Device{live: make(map[uint32]gpu.Buffer)}
}

func (d *Device) CreateBuffer(vertexBytes, indexBytes int) (gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailCreate {
		return gpu.Buffer{}, ErrInjected
	}
	d.next += 3
	buf := gpu.Buffer{VAO: d.next - 2, VBO: d.next - 1, EBO: d.next, Class: vertexBytes}
	d.live[buf.VBO] = buf
	return buf, nil
}

func (d *Device) Upload(buf gpu.Buffer, vertices []float32, indices []uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailUpload {
		return ErrInjected
	}
	if _, ok := d.live[buf.VBO]; !ok {
		return fmt.Errorf("gputest: upload to unknown buffer %d", buf.VBO)
	}
	if 4*len(vertices) > buf.Class || 4*len(indices) > buf.Class/4 {
		return fmt.Errorf("gputest: %d/%d bytes overflow class %d", 4*len(vertices), 4*len(indices), buf.Class)
	}
	d.uploads++
	return nil
}

func (d *Device) DestroyBuffer(buf gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.live, buf.VBO)
	d.destroyed++
}

// Live is the number of buffers created and not destroyed.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

func (d *Device) Uploads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.uploads
}

func (d *Device) Destroyed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.destroyed
}
