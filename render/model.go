package render

import (
	"os"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/vkngwrapper/core/v3/core1_0"
	vkngmath "github.com/vkngwrapper/math"
)

type Vertex struct {
	Position vkngmath.Vec3[float32]
	Color    vkngmath.Vec3[float32]
	TexCoord vkngmath.Vec2[float32]
}

func getVertexBindingDescription() []core1_0.VertexInputBindingDescription {
	v := Vertex{}
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    int(unsafe.Sizeof(v)),
			InputRate: core1_0.VertexInputRateVertex,
		},
	}
}

func getVertexAttributeDescriptions() []core1_0.VertexInputAttributeDescription {
	v := Vertex{}
	return []core1_0.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Color)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   core1_0.FormatR32G32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.TexCoord)),
		},
	}
}

func (r *Renderer) addVertex(decoder *obj.Decoder, uniqueVertices map[int]uint32, face obj.Face, faceIndex int) {
	vertInd := face.Vertices[faceIndex]
	index, vertexExists := uniqueVertices[vertInd]

	if !vertexExists {
		vert := Vertex{Position: vkngmath.Vec3[float32]{
			decoder.Vertices[vertInd*3],
			decoder.Vertices[vertInd*3+1],
			decoder.Vertices[vertInd*3+2],
		}, Color: vkngmath.Vec3[float32]{1, 1, 1}}

		uvInd := face.Uvs[faceIndex]
		vert.TexCoord = vkngmath.Vec2[float32]{
			decoder.Uvs[uvInd*2],
			1.0 - decoder.Uvs[uvInd*2+1],
		}

		index = uint32(len(r.vertices))
		r.vertices = append(r.vertices, vert)
		uniqueVertices[vertInd] = index
	}

	r.indices = append(r.indices, index)
}

func (r *Renderer) loadModel() error {
	meshFile, err := os.Open(r.cfg.MeshPath)
	if err != nil {
		return errors.Wrapf(err, "opening mesh %s", r.cfg.MeshPath)
	}
	defer meshFile.Close()

	matFile, err := os.Open(r.cfg.MaterialPath)
	if err != nil {
		return errors.Wrapf(err, "opening material %s", r.cfg.MaterialPath)
	}
	defer matFile.Close()

	decoder, err := obj.DecodeReader(meshFile, matFile)
	if err != nil {
		return errors.Wrapf(err, "decoding mesh %s", r.cfg.MeshPath)
	}

	uniqueVertices := make(map[int]uint32)

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			// Faces can be arbitrary polygons, fan them into triangles.
			for i := 2; i < len(face.Vertices); i++ {
				r.addVertex(decoder, uniqueVertices, face, 0)
				r.addVertex(decoder, uniqueVertices, face, i-1)
				r.addVertex(decoder, uniqueVertices, face, i)
			}
		}
	}

	if len(r.vertices) == 0 {
		return errors.Newf("mesh %s contains no faces", r.cfg.MeshPath)
	}

	return nil
}
