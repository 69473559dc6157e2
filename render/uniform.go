package render

import (
	"math"
	"unsafe"

	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v3/core1_0"
	vkngmath "github.com/vkngwrapper/math"
)

type UniformBufferObject struct {
	Model vkngmath.Mat4x4[float32]
	View  vkngmath.Mat4x4[float32]
	Proj  vkngmath.Mat4x4[float32]
}

func (r *Renderer) createUniformBuffers() error {
	bufferSize := int(unsafe.Sizeof(UniformBufferObject{}))

	for i := 0; i < len(r.swapchainImages); i++ {
		buffer, memory, err := r.createBuffer(bufferSize, core1_0.BufferUsageUniformBuffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			return err
		}

		r.uniformBuffers = append(r.uniformBuffers, buffer)
		r.uniformBuffersMemory = append(r.uniformBuffersMemory, memory)
	}

	return nil
}

// updateUniformBuffer writes a fresh model/view/projection into the uniform
// buffer backing the given swapchain image. The model spins a quarter turn
// per second around Z.
func (r *Renderer) updateUniformBuffer(currentImage int) error {
	currentTime := hrtime.Now().Seconds()
	timePeriod := math.Mod(currentTime, 4.0)

	ubo := UniformBufferObject{}
	ubo.Model.SetRotationZ(timePeriod * math.Pi / 2.0)
	ubo.View.SetLookAt(
		&vkngmath.Vec3[float32]{X: 2, Y: 2, Z: 2},
		&vkngmath.Vec3[float32]{X: 0, Y: 0, Z: 0},
		&vkngmath.Vec3[float32]{X: 0, Y: 0, Z: 1},
	)

	aspectRatio := float32(r.swapchainExtent.Width) / float32(r.swapchainExtent.Height)

	near := float32(0.1)
	far := float32(10.0)
	fovy := math.Pi / 4.0

	ubo.Proj.SetPerspective(fovy, aspectRatio, near, far)

	return writeData(r.deviceDriver, r.uniformBuffersMemory[currentImage], 0, &ubo)
}
