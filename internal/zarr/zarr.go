// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package zarr reads and writes Zarr v2 directory stores.
//
// A store is a group directory holding .zgroup, .zattrs and a consolidated
// .zmetadata document, with one sub-directory per array. Each array has a
// .zarray document, a .zattrs document naming its dimensions under
// _ARRAY_DIMENSIONS (the xarray convention), and one zstd-compressed chunk
// file per chunk, keyed by the dot-joined chunk grid index ("0.1.2").
// Values are little-endian in C order. Edge chunks are written at full
// chunk size and padded with the fill value.
package zarr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Zarr format constants.
const (
	FormatVersion      = 2
	ConsolidatedFormat = 1

	GroupFile    = ".zgroup"
	AttrsFile    = ".zattrs"
	ArrayFile    = ".zarray"
	MetadataFile = ".zmetadata"

	// DimensionsAttr lists an array's dimension names, outermost first.
	DimensionsAttr = "_ARRAY_DIMENSIONS"

	// Data types written by this package.
	DTypeFloat64 = "<f8"
	DTypeInt64   = "<i8"

	// DTypeFloat32 and DTypeInt32 are accepted when reading.
	DTypeFloat32 = "<f4"
	DTypeInt32   = "<i4"

	// DefaultCompressionLevel is the zstd level used when none is set.
	DefaultCompressionLevel = 3
)

var (
	// ErrNotStore means the path is not a Zarr v2 group.
	ErrNotStore = errors.New("not a zarr v2 store")

	// ErrNoArray means the store has no array with the requested name.
	ErrNoArray = errors.New("array not found")

	// ErrDType means an array's data type cannot be read as requested.
	ErrDType = errors.New("unsupported dtype")

	// ErrShape means an array's data does not match its shape or chunking.
	ErrShape = errors.New("invalid array shape")
)

// Compressor is the numcodecs configuration of the chunk compressor.
type Compressor struct {
	ID       string `json:"id"`
	Level    int    `json:"level"`
	Checksum bool   `json:"checksum"`
}

// ArrayMeta is the .zarray document.
type ArrayMeta struct {
	ZarrFormat int         `json:"zarr_format"`
	Shape      []int       `json:"shape"`
	Chunks     []int       `json:"chunks"`
	DType      string      `json:"dtype"`
	Compressor *Compressor `json:"compressor"`
	FillValue  any         `json:"fill_value"`
	Order      string      `json:"order"`
	Filters    []any       `json:"filters"`
}

// itemSize returns the byte width of one element of the array.
func (m ArrayMeta) itemSize() (int, error) {
	switch m.DType {
	case DTypeFloat64, DTypeInt64:
		return 8, nil
	case DTypeFloat32, DTypeInt32:
		return 4, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrDType, m.DType)
	}
}

// Len returns the number of elements in the array.
func (m ArrayMeta) Len() int {
	n := 1
	for _, s := range m.Shape {
		n *= s
	}
	return n
}

// chunkGrid returns the number of chunks along each dimension.
func chunkGrid(shape, chunks []int) []int {
	grid := make([]int, len(shape))
	for d := range shape {
		grid[d] = (shape[d] + chunks[d] - 1) / chunks[d]
	}
	return grid
}

// chunkKey joins a chunk grid index into its file name.
func chunkKey(idx []int) string {
	parts := make([]string, len(idx))
	for i, v := range idx {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ".")
}

// nextIndex advances idx through the grid in C order and reports whether
// another index exists.
func nextIndex(idx, grid []int) bool {
	for d := len(idx) - 1; d >= 0; d-- {
		idx[d]++
		if idx[d] < grid[d] {
			return true
		}
		idx[d] = 0
	}
	return false
}

// gridEmpty reports whether any dimension of the grid has zero length.
func gridEmpty(grid []int) bool {
	for _, g := range grid {
		if g == 0 {
			return true
		}
	}
	return len(grid) == 0
}

// strides returns the C-order element stride of each dimension.
func strides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for d := len(shape) - 1; d >= 0; d-- {
		s[d] = acc
		acc *= shape[d]
	}
	return s
}

// forEachRun calls fn once for every contiguous run of in-bounds elements
// of the chunk at chunkIdx. src is the flat offset in the full array, dst
// the flat offset in the chunk buffer, n the run length along the last
// dimension.
func forEachRun(shape, chunks, chunkIdx []int, fn func(src, dst, n int)) {
	nd := len(shape)
	last := nd - 1
	start := make([]int, nd)
	extent := make([]int, nd)
	for d := 0; d < nd; d++ {
		start[d] = chunkIdx[d] * chunks[d]
		extent[d] = min(chunks[d], shape[d]-start[d])
	}
	arrStride := strides(shape)
	chunkStride := strides(chunks)

	// Iterate the leading dimensions of the in-bounds region; the last
	// dimension is copied as one run.
	outer := make([]int, nd)
	outerGrid := make([]int, nd)
	copy(outerGrid, extent)
	outerGrid[last] = 1
	for {
		src, dst := 0, 0
		for d := 0; d < nd; d++ {
			src += (start[d] + outer[d]) * arrStride[d]
			dst += outer[d] * chunkStride[d]
		}
		fn(src, dst, extent[last])
		if !nextIndex(outer, outerGrid) {
			return
		}
	}
}

// fillFloat64 converts a .zarray fill_value into a float.
func fillFloat64(v any) (float64, error) {
	switch f := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return f, nil
	case string:
		switch f {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return strconv.ParseFloat(f, 64)
	default:
		return 0, fmt.Errorf("unsupported fill_value %v", v)
	}
}

func decodeFloat64s(dtype string, raw []byte, out []float64) {
	switch dtype {
	case DTypeFloat32:
		for i := range out {
			out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	case DTypeInt64:
		for i := range out {
			out[i] = float64(int64(binary.LittleEndian.Uint64(raw[i*8:])))
		}
	case DTypeInt32:
		for i := range out {
			out[i] = float64(int32(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	default:
		for i := range out {
			out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	}
}
