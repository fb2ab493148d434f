package vector

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"os"

	"github.com/hyperjump/bunko/pkg/utils"
)

// File layout (little endian):
//
//	magic "BKVI" (4) | version (2) | reserved (2) | dimensions (4) | rows (8) | tag (8)
//	rows*dimensions float32 values, row-major
//	crc32 (IEEE) of everything before it (4)
const (
	flatMagic      = "BKVI"
	flatVersion    = uint16(1)
	flatHeaderSize = 4 + 2 + 2 + 4 + 8 + 8
	flatTailSize   = 4
)

// FlatIndex is an exact index using brute-force squared L2 distance.
// It is immutable after construction and safe for concurrent queries.
type FlatIndex struct {
	dimensions int
	rows       int
	tag        uint64
	data       []float32 // row-major, rows*dimensions
}

// BuildFlatIndex creates an index holding exactly len(vectors) rows in insertion order.
// All vectors must have the same non-zero length.
func BuildFlatIndex(vectors [][]float32) (*FlatIndex, error) {
	if len(vectors) == 0 {
		return &FlatIndex{}, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: row 0 has zero length", ErrDimensionMismatch)
	}
	data := make([]float32, 0, len(vectors)*dim)
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", ErrDimensionMismatch, i, len(vec), dim)
		}
		data = append(data, vec...)
	}
	return &FlatIndex{dimensions: dim, rows: len(vectors), data: data}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Len returns the number of rows.
func (f *FlatIndex) Len() int {
	return f.rows
}

// Dimensions returns the vector length, or 0 for an empty index.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}

// Tag returns the value recorded with the index by NewIndex.
func (f *FlatIndex) Tag() uint64 {
	return f.tag
}

// Query returns the k nearest rows by squared L2 distance.
func (f *FlatIndex) Query(query []float32, k int) ([]Neighbor, error) {
	if k <= 0 {
		return nil, nil
	}
	if f.rows == 0 {
		return nil, ErrEmptyIndex
	}
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query has %d values, index expects %d", ErrDimensionMismatch, len(query), f.dimensions)
	}
	neighbors := make([]Neighbor, f.rows)
	for i := 0; i < f.rows; i++ {
		neighbors[i] = Neighbor{Row: i, Distance: SquaredL2(query, f.data[i*f.dimensions:(i+1)*f.dimensions])}
	}
	sortNeighbors(neighbors)
	if k > len(neighbors) {
		k = len(neighbors)
	}
	return neighbors[:k], nil
}

// Save writes the index to path atomically.
func (f *FlatIndex) Save(path string) error {
	if path == "" {
		return fmt.Errorf("save index: empty path")
	}
	buf := bytes.NewBuffer(make([]byte, 0, flatHeaderSize+len(f.data)*4+flatTailSize))
	buf.WriteString(flatMagic)
	_ = binary.Write(buf, binary.LittleEndian, flatVersion)
	_ = binary.Write(buf, binary.LittleEndian, uint16(0))
	_ = binary.Write(buf, binary.LittleEndian, uint32(f.dimensions))
	_ = binary.Write(buf, binary.LittleEndian, uint64(f.rows))
	_ = binary.Write(buf, binary.LittleEndian, f.tag)
	buf.Write(float32SliceToBytes(f.data))
	sum := crc32.ChecksumIEEE(buf.Bytes())
	_ = binary.Write(buf, binary.LittleEndian, sum)
	if err := utils.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// LoadFlatIndex reads an index written by Save. A missing file is returned as an
// os.ErrNotExist error; any malformed content yields ErrCorruptIndex.
func LoadFlatIndex(path string) (*FlatIndex, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index file: %w", err)
	}
	return decodeFlatIndex(content)
}

func decodeFlatIndex(content []byte) (*FlatIndex, error) {
	if len(content) < flatHeaderSize+flatTailSize {
		return nil, fmt.Errorf("%w: file too short (%d bytes)", ErrCorruptIndex, len(content))
	}
	if string(content[:4]) != flatMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptIndex)
	}
	version := binary.LittleEndian.Uint16(content[4:6])
	if version != flatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, version)
	}
	dim := binary.LittleEndian.Uint32(content[8:12])
	rows := binary.LittleEndian.Uint64(content[12:20])
	tag := binary.LittleEndian.Uint64(content[20:28])

	body := content[:len(content)-flatTailSize]
	want := binary.LittleEndian.Uint32(content[len(content)-flatTailSize:])
	if crc32.ChecksumIEEE(body) != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptIndex)
	}
	if (dim == 0) != (rows == 0) {
		return nil, fmt.Errorf("%w: %d rows with dimension %d", ErrCorruptIndex, rows, dim)
	}
	payload := uint64(len(body) - flatHeaderSize)
	if payload%4 != 0 {
		return nil, fmt.Errorf("%w: payload is %d bytes, not a multiple of 4", ErrCorruptIndex, payload)
	}
	values := payload / 4
	if dim == 0 {
		if values != 0 {
			return nil, fmt.Errorf("%w: trailing data in empty index", ErrCorruptIndex)
		}
	} else if rows > values/uint64(dim) || rows*uint64(dim) != values {
		return nil, fmt.Errorf("%w: payload holds %d values, header declares %d rows of dimension %d", ErrCorruptIndex, values, rows, dim)
	}
	return &FlatIndex{
		dimensions: int(dim),
		rows:       int(rows),
		tag:        tag,
		data:       bytesToFloat32Slice(body[flatHeaderSize:]),
	}, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

// Close is a no-op for FlatIndex.
func (f *FlatIndex) Close() error {
	return nil
}
