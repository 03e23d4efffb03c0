// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package zarr

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ArrayInfo is the metadata of one array in a store.
type ArrayInfo struct {
	Name  string         `json:"name"`
	Dims  []string       `json:"dims"`
	Meta  ArrayMeta      `json:"meta"`
	Attrs map[string]any `json:"attrs"`
}

// Store is a read-only view of a Zarr v2 group on the local filesystem.
type Store struct {
	root   string
	attrs  map[string]any
	arrays map[string]ArrayInfo
	dec    *zstd.Decoder
}

// Open reads the group's metadata. The consolidated .zmetadata is used
// when present; otherwise each array directory is scanned.
func Open(root string) (*Store, error) {
	if _, err := os.Stat(filepath.Join(root, GroupFile)); err != nil {
		return nil, fmt.Errorf("opening %s: %w", root, ErrNotStore)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	s := &Store{root: root, dec: dec, arrays: make(map[string]ArrayInfo)}

	docs, err := s.loadDocuments()
	if err != nil {
		dec.Close()
		return nil, err
	}

	if raw, ok := docs[AttrsFile]; ok {
		if err := json.Unmarshal(raw, &s.attrs); err != nil {
			dec.Close()
			return nil, fmt.Errorf("parsing group %s: %w", AttrsFile, err)
		}
	}
	for key, raw := range docs {
		name, ok := strings.CutSuffix(key, "/"+ArrayFile)
		if !ok {
			continue
		}
		info := ArrayInfo{Name: name}
		if err := json.Unmarshal(raw, &info.Meta); err != nil {
			dec.Close()
			return nil, fmt.Errorf("parsing %s: %w", key, err)
		}
		if len(info.Meta.Chunks) != len(info.Meta.Shape) {
			dec.Close()
			return nil, fmt.Errorf("array %s: %w: shape %v, chunks %v", name, ErrShape, info.Meta.Shape, info.Meta.Chunks)
		}
		if slices.ContainsFunc(info.Meta.Chunks, func(c int) bool { return c <= 0 }) {
			dec.Close()
			return nil, fmt.Errorf("array %s: %w: chunks %v", name, ErrShape, info.Meta.Chunks)
		}
		if rawAttrs, ok := docs[name+"/"+AttrsFile]; ok {
			if err := json.Unmarshal(rawAttrs, &info.Attrs); err != nil {
				dec.Close()
				return nil, fmt.Errorf("parsing %s/%s: %w", name, AttrsFile, err)
			}
		}
		if dims, ok := info.Attrs[DimensionsAttr].([]any); ok {
			for _, d := range dims {
				if dim, ok := d.(string); ok {
					info.Dims = append(info.Dims, dim)
				}
			}
		}
		s.arrays[name] = info
	}
	return s, nil
}

// loadDocuments returns every metadata document keyed by its path
// relative to the root.
func (s *Store) loadDocuments() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(filepath.Join(s.root, MetadataFile))
	if err == nil {
		var consolidated struct {
			Metadata map[string]json.RawMessage `json:"metadata"`
		}
		if err := json.Unmarshal(data, &consolidated); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", MetadataFile, err)
		}
		return consolidated.Metadata, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", MetadataFile, err)
	}

	docs := make(map[string]json.RawMessage)
	if raw, err := os.ReadFile(filepath.Join(s.root, AttrsFile)); err == nil {
		docs[AttrsFile] = raw
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.root, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		for _, f := range []string{ArrayFile, AttrsFile} {
			raw, err := os.ReadFile(filepath.Join(s.root, e.Name(), f))
			if err != nil {
				continue
			}
			docs[e.Name()+"/"+f] = raw
		}
	}
	return docs, nil
}

// Close releases the decoder.
func (s *Store) Close() error {
	s.dec.Close()
	return nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Attrs returns the group attributes.
func (s *Store) Attrs() map[string]any { return s.attrs }

// ArrayNames returns the names of all arrays in sorted order.
func (s *Store) ArrayNames() []string {
	names := make([]string, 0, len(s.arrays))
	for n := range s.arrays {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Array returns the metadata of the named array.
func (s *Store) Array(name string) (ArrayInfo, error) {
	info, ok := s.arrays[name]
	if !ok {
		return ArrayInfo{}, fmt.Errorf("%w: %s in %s", ErrNoArray, name, s.root)
	}
	return info, nil
}

// ReadFloat64 reads the named array into a flat C-order slice. Float and
// integer dtypes are converted; missing chunks take the fill value.
func (s *Store) ReadFloat64(name string) ([]float64, error) {
	info, err := s.Array(name)
	if err != nil {
		return nil, err
	}
	fill, err := fillFloat64(info.Meta.FillValue)
	if err != nil {
		return nil, fmt.Errorf("array %s: %w", name, err)
	}
	out := make([]float64, info.Meta.Len())
	for i := range out {
		out[i] = fill
	}
	err = s.readChunks(info, func(raw []byte, src, dst, n int) {
		decodeFloat64s(info.Meta.DType, raw[src:], out[dst:dst+n])
	})
	return out, err
}

// ReadInt64 reads an integer array into a flat C-order slice.
func (s *Store) ReadInt64(name string) ([]int64, error) {
	info, err := s.Array(name)
	if err != nil {
		return nil, err
	}
	if info.Meta.DType != DTypeInt64 && info.Meta.DType != DTypeInt32 {
		return nil, fmt.Errorf("array %s: %w: %q is not an integer type", name, ErrDType, info.Meta.DType)
	}
	out := make([]int64, info.Meta.Len())
	err = s.readChunks(info, func(raw []byte, src, dst, n int) {
		for k := 0; k < n; k++ {
			if info.Meta.DType == DTypeInt32 {
				out[dst+k] = int64(int32(binary.LittleEndian.Uint32(raw[src+k*4:])))
				continue
			}
			out[dst+k] = int64(binary.LittleEndian.Uint64(raw[src+k*8:]))
		}
	})
	return out, err
}

// readChunks decodes every chunk of the array and calls put for each
// in-bounds run. raw is the decompressed chunk, src the byte offset of the
// run inside it, dst the element offset in the full array.
func (s *Store) readChunks(info ArrayInfo, put func(raw []byte, src, dst, n int)) error {
	size, err := info.Meta.itemSize()
	if err != nil {
		return fmt.Errorf("array %s: %w", info.Name, err)
	}
	shape, chunks := info.Meta.Shape, info.Meta.Chunks
	grid := chunkGrid(shape, chunks)
	if gridEmpty(grid) {
		return nil
	}
	chunkLen := 1
	for _, c := range chunks {
		chunkLen *= c
	}

	idx := make([]int, len(shape))
	for {
		key := chunkKey(idx)
		data, err := os.ReadFile(filepath.Join(s.root, info.Name, key))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Unwritten chunk: keep the fill value.
		case err != nil:
			return fmt.Errorf("reading chunk %s/%s: %w", info.Name, key, err)
		default:
			raw := data
			if info.Meta.Compressor != nil {
				raw, err = s.dec.DecodeAll(data, nil)
				if err != nil {
					return fmt.Errorf("decompressing chunk %s/%s: %w", info.Name, key, err)
				}
			}
			if len(raw) != chunkLen*size {
				return fmt.Errorf("chunk %s/%s: %w: %d bytes, want %d", info.Name, key, ErrShape, len(raw), chunkLen*size)
			}
			forEachRun(shape, chunks, idx, func(src, dst, n int) {
				put(raw, dst*size, src, n)
			})
		}
		if !nextIndex(idx, grid) {
			return nil
		}
	}
}
