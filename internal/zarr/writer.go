// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package zarr

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"
)

// Array describes one array to write. Dims, Shape and Chunks have one
// entry per dimension, outermost first. A chunk length of zero or less
// means the full dimension.
type Array struct {
	Name   string
	Dims   []string
	Shape  []int
	Chunks []int
	Attrs  map[string]any
}

// Writer creates a Zarr v2 group on the local filesystem.
type Writer struct {
	root  string
	level int
	enc   *zstd.Encoder

	// meta collects every metadata document for .zmetadata, keyed by its
	// path relative to the root.
	meta map[string]json.RawMessage
}

// Option configures a Writer.
type Option func(*Writer)

// WithCompressionLevel sets the zstd level (1-22) recorded in each
// .zarray and used to encode chunks.
func WithCompressionLevel(level int) Option {
	return func(w *Writer) {
		if level > 0 {
			w.level = level
		}
	}
}

// Create makes the group directory at root and writes its .zgroup. The
// directory must not exist yet.
func Create(root string, opts ...Option) (*Writer, error) {
	w := &Writer{
		root:  root,
		level: DefaultCompressionLevel,
		meta:  make(map[string]json.RawMessage),
	}
	for _, opt := range opts {
		opt(w)
	}

	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("creating store %s: %w", root, os.ErrExist)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating store %s: %w", root, err)
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(w.level)),
		zstd.WithEncoderCRC(false),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	w.enc = enc

	if err := w.writeJSON(GroupFile, map[string]int{"zarr_format": FormatVersion}); err != nil {
		enc.Close()
		return nil, err
	}
	return w, nil
}

// Root returns the store directory.
func (w *Writer) Root() string { return w.root }

// SetAttrs writes the group's .zattrs.
func (w *Writer) SetAttrs(attrs map[string]any) error {
	return w.writeJSON(AttrsFile, attrs)
}

// WriteFloat64 writes a float64 array with a NaN fill value.
func (w *Writer) WriteFloat64(ctx context.Context, a Array, data []float64) error {
	return writeArray(ctx, w, a, DTypeFloat64, "NaN", data, math.NaN(), func(b []byte, v float64) {
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
	})
}

// WriteInt64 writes an int64 array with no fill value.
func (w *Writer) WriteInt64(ctx context.Context, a Array, data []int64) error {
	return writeArray(ctx, w, a, DTypeInt64, nil, data, 0, func(b []byte, v int64) {
		binary.LittleEndian.PutUint64(b, uint64(v))
	})
}

// Close writes the consolidated .zmetadata and releases the encoder.
func (w *Writer) Close() error {
	defer w.enc.Close()

	keys := make([]string, 0, len(w.meta))
	for k := range w.meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	docs := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		docs[k] = w.meta[k]
	}

	consolidated := struct {
		Metadata map[string]json.RawMessage `json:"metadata"`
		Format   int                        `json:"zarr_consolidated_format"`
	}{Metadata: docs, Format: ConsolidatedFormat}

	data, err := json.MarshalIndent(consolidated, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", MetadataFile, err)
	}
	if err := os.WriteFile(filepath.Join(w.root, MetadataFile), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", MetadataFile, err)
	}
	return nil
}

func writeArray[T float64 | int64](
	ctx context.Context,
	w *Writer,
	a Array,
	dtype string,
	fillValue any,
	data []T,
	fill T,
	put func([]byte, T),
) error {
	nd := len(a.Shape)
	if nd == 0 || len(a.Dims) != nd || len(a.Chunks) != nd {
		return fmt.Errorf("array %s: %w: dims %v, shape %v, chunks %v", a.Name, ErrShape, a.Dims, a.Shape, a.Chunks)
	}
	chunks := make([]int, nd)
	n := 1
	for d := 0; d < nd; d++ {
		chunks[d] = a.Chunks[d]
		if chunks[d] <= 0 || chunks[d] > a.Shape[d] {
			chunks[d] = a.Shape[d]
		}
		if chunks[d] == 0 {
			chunks[d] = 1
		}
		n *= a.Shape[d]
	}
	if len(data) != n {
		return fmt.Errorf("array %s: %w: %d values for shape %v", a.Name, ErrShape, len(data), a.Shape)
	}

	dir := filepath.Join(w.root, a.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating array %s: %w", a.Name, err)
	}

	meta := ArrayMeta{
		ZarrFormat: FormatVersion,
		Shape:      a.Shape,
		Chunks:     chunks,
		DType:      dtype,
		Compressor: &Compressor{ID: "zstd", Level: w.level},
		FillValue:  fillValue,
		Order:      "C",
	}
	if err := w.writeJSON(filepath.Join(a.Name, ArrayFile), meta); err != nil {
		return err
	}

	attrs := make(map[string]any, len(a.Attrs)+1)
	for k, v := range a.Attrs {
		attrs[k] = v
	}
	attrs[DimensionsAttr] = a.Dims
	if err := w.writeJSON(filepath.Join(a.Name, AttrsFile), attrs); err != nil {
		return err
	}

	grid := chunkGrid(a.Shape, chunks)
	if gridEmpty(grid) {
		return nil
	}

	chunkLen := 1
	for _, c := range chunks {
		chunkLen *= c
	}
	buf := make([]T, chunkLen)
	raw := make([]byte, chunkLen*8)
	var compressed []byte

	idx := make([]int, nd)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("writing array %s: %w", a.Name, err)
		}

		for i := range buf {
			buf[i] = fill
		}
		forEachRun(a.Shape, chunks, idx, func(src, dst, n int) {
			copy(buf[dst:dst+n], data[src:src+n])
		})
		for i, v := range buf {
			put(raw[i*8:], v)
		}
		compressed = w.enc.EncodeAll(raw, compressed[:0])

		path := filepath.Join(dir, chunkKey(idx))
		if err := os.WriteFile(path, compressed, 0o644); err != nil {
			return fmt.Errorf("writing chunk %s/%s: %w", a.Name, chunkKey(idx), err)
		}

		if !nextIndex(idx, grid) {
			return nil
		}
	}
}

// writeJSON writes a metadata document and records it for consolidation.
func (w *Writer) writeJSON(rel string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", rel, err)
	}
	if err := os.WriteFile(filepath.Join(w.root, rel), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	w.meta[filepath.ToSlash(rel)] = json.RawMessage(data)
	return nil
}
