// Package gltf serializes meshes as binary glTF (.glb) assets.
package gltf

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/reliefmap/demgrid/internal/domain"
)

// GLB container constants.
const (
	glbMagic      = 0x46546C67 // "glTF"
	glbVersion    = 2
	chunkJSON     = 0x4E4F534A // "JSON"
	chunkBinary   = 0x004E4942 // "BIN"
	glTriangles   = 4
	compFloat     = 5126
	compUint32    = 5125
	targetArray   = 34962
	targetElement = 34963
)

// document is the glTF JSON chunk.
type document struct {
	Asset       asset        `json:"asset"`
	Scene       int          `json:"scene"`
	Scenes      []scene      `json:"scenes"`
	Nodes       []node       `json:"nodes"`
	Meshes      []mesh       `json:"meshes"`
	Accessors   []accessor   `json:"accessors"`
	BufferViews []bufferView `json:"bufferViews"`
	Buffers     []buffer     `json:"buffers"`
}

type asset struct {
	Version   string `json:"version"`
	Generator string `json:"generator"`
}

type scene struct {
	Nodes []int `json:"nodes"`
}

type node struct {
	Mesh int `json:"mesh"`
}

type mesh struct {
	Primitives []primitive `json:"primitives"`
}

type primitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    int            `json:"indices"`
	Mode       int            `json:"mode"`
}

type accessor struct {
	BufferView    int       `json:"bufferView"`
	ComponentType int       `json:"componentType"`
	Count         int       `json:"count"`
	Type          string    `json:"type"`
	Min           []float64 `json:"min,omitempty"`
	Max           []float64 `json:"max,omitempty"`
}

type bufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	Target     int `json:"target"`
}

type buffer struct {
	ByteLength int `json:"byteLength"`
}

// Writer implements the MeshExporter port as a GLB writer.
type Writer struct{}

// NewWriter creates a new GLB writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Export writes the mesh as a binary glTF asset: one primitive with
// positions, normals, vertex colors and uint32 indices.
func (g *Writer) Export(_ context.Context, m *domain.Mesh, w io.Writer) error {
	if m == nil || len(m.Positions) == 0 {
		return fmt.Errorf("mesh is empty: %w", domain.ErrInvalidInput)
	}

	bin, views, accessors := encodeBuffers(m)

	doc := document{
		Asset:  asset{Version: "2.0", Generator: "demgrid"},
		Scene:  0,
		Scenes: []scene{{Nodes: []int{0}}},
		Nodes:  []node{{Mesh: 0}},
		Meshes: []mesh{{
			Primitives: []primitive{{
				Attributes: map[string]int{
					"POSITION": 0,
					"NORMAL":   1,
					"COLOR_0":  2,
				},
				Indices: 3,
				Mode:    glTriangles,
			}},
		}},
		Accessors:   accessors,
		BufferViews: views,
		Buffers:     []buffer{{ByteLength: len(bin)}},
	}

	jsonChunk, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	// Chunks are padded to 4-byte alignment: JSON with spaces, BIN with zeros.
	jsonChunk = pad(jsonChunk, ' ')
	bin = pad(bin, 0)

	total := 12 + 8 + len(jsonChunk) + 8 + len(bin)

	var header [12]byte
	binary.LittleEndian.PutUint32(header[0:4], glbMagic)
	binary.LittleEndian.PutUint32(header[4:8], glbVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(total))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	if err := writeChunk(w, chunkJSON, jsonChunk); err != nil {
		return err
	}
	return writeChunk(w, chunkBinary, bin)
}

// encodeBuffers lays out positions, normals, colors and indices into one
// little-endian binary buffer and describes it with views and accessors.
func encodeBuffers(m *domain.Mesh) ([]byte, []bufferView, []accessor) {
	var buf bytes.Buffer

	posMin := []float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	posMax := []float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}

	posOffset := buf.Len()
	for _, p := range m.Positions {
		for i := 0; i < 3; i++ {
			if p[i] < posMin[i] {
				posMin[i] = p[i]
			}
			if p[i] > posMax[i] {
				posMax[i] = p[i]
			}
			putFloat32(&buf, p[i])
		}
	}

	normOffset := buf.Len()
	for _, n := range m.Normals {
		putFloat32(&buf, n[0])
		putFloat32(&buf, n[1])
		putFloat32(&buf, n[2])
	}

	colorOffset := buf.Len()
	for _, c := range m.Colors {
		putFloat32(&buf, c[0])
		putFloat32(&buf, c[1])
		putFloat32(&buf, c[2])
		putFloat32(&buf, c[3])
	}

	idxOffset := buf.Len()
	for _, i := range m.Indices {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], i)
		buf.Write(b[:])
	}

	views := []bufferView{
		{Buffer: 0, ByteOffset: posOffset, ByteLength: normOffset - posOffset, Target: targetArray},
		{Buffer: 0, ByteOffset: normOffset, ByteLength: colorOffset - normOffset, Target: targetArray},
		{Buffer: 0, ByteOffset: colorOffset, ByteLength: idxOffset - colorOffset, Target: targetArray},
		{Buffer: 0, ByteOffset: idxOffset, ByteLength: buf.Len() - idxOffset, Target: targetElement},
	}

	accessors := []accessor{
		{BufferView: 0, ComponentType: compFloat, Count: len(m.Positions), Type: "VEC3", Min: posMin, Max: posMax},
		{BufferView: 1, ComponentType: compFloat, Count: len(m.Normals), Type: "VEC3"},
		{BufferView: 2, ComponentType: compFloat, Count: len(m.Colors), Type: "VEC4"},
		{BufferView: 3, ComponentType: compUint32, Count: len(m.Indices), Type: "SCALAR"},
	}

	return buf.Bytes(), views, accessors
}

func putFloat32(buf *bytes.Buffer, v float64) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(v)))
	buf.Write(b[:])
}

func writeChunk(w io.Writer, chunkType uint32, data []byte) error {
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(data)))
	binary.LittleEndian.PutUint32(header[4:8], chunkType)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func pad(b []byte, fill byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, fill)
	}
	return b
}
