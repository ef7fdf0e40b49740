// Package glbackend implements gpu.Device on OpenGL 4.1 core.
package glbackend

import (
	"fmt"

	"meshpipe/internal/gpu"
	"meshpipe/internal/meshing"

	"github.com/go-gl/gl/v4.1-core/gl"
)

// Device allocates chunk buffers with the interleaved meshing vertex layout. A GL
// context must be current on the calling thread.
type Device struct{}

func New() *Device { return &Device{} }

func (d *Device) CreateBuffer(vertexBytes, indexBytes int) (gpu.Buffer, error) {
	var buf gpu.Buffer
	gl.GenVertexArrays(1, &buf.VAO)
	gl.BindVertexArray(buf.VAO)

	gl.GenBuffers(1, &buf.VBO)
	gl.BindBuffer(gl.ARRAY_BUFFER, buf.VBO)
	gl.BufferData(gl.ARRAY_BUFFER, vertexBytes, nil, gl.DYNAMIC_DRAW)

	gl.GenBuffers(1, &buf.EBO)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, buf.EBO)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, indexBytes, nil, gl.DYNAMIC_DRAW)

	stride := int32(meshing.VertexStride * 4)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, meshing.PositionOffset*4)
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, meshing.NormalOffset*4)
	gl.EnableVertexAttribArray(2)
	gl.VertexAttribPointerWithOffset(2, 2, gl.FLOAT, false, stride, meshing.UVOffset*4)
	gl.EnableVertexAttribArray(3)
	gl.VertexAttribPointerWithOffset(3, 4, gl.FLOAT, false, stride, meshing.TileOffset*4)

	gl.BindVertexArray(0)
	if err := checkError("create buffer"); err != nil {
		d.DestroyBuffer(buf)
		return gpu.Buffer{}, err
	}
	return buf, nil
}

func (d *Device) Upload(buf gpu.Buffer, vertices []float32, indices []uint32) error {
	if len(vertices) == 0 || len(indices) == 0 {
		return nil
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, buf.VBO)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(vertices)*4, gl.Ptr(vertices))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	// The element binding is VAO state, so bind the VAO before touching it.
	gl.BindVertexArray(buf.VAO)
	gl.BufferSubData(gl.ELEMENT_ARRAY_BUFFER, 0, len(indices)*4, gl.Ptr(indices))
	gl.BindVertexArray(0)
	return checkError("upload")
}

func (d *Device) DestroyBuffer(buf gpu.Buffer) {
	if buf.VBO != 0 {
		gl.DeleteBuffers(1, &buf.VBO)
	}
	if buf.EBO != 0 {
		gl.DeleteBuffers(1, &buf.EBO)
	}
	if buf.VAO != 0 {
		gl.DeleteVertexArrays(1, &buf.VAO)
	}
}

func checkError(label string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("gl error %s: 0x%x", label, code)
	}
	return nil
}
