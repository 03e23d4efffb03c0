// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package persist

import (
	"fmt"
	"strconv"

	"github.com/pdiddy/obs-wrangler/internal/zarr"
)

// Coordinate summarizes a 1-D coordinate array.
type Coordinate struct {
	Name  string `json:"name" yaml:"name"`
	Size  int    `json:"size" yaml:"size"`
	First string `json:"first" yaml:"first"`
	Last  string `json:"last" yaml:"last"`
}

// StoreSummary is the metadata of a written store plus the extent of its
// coordinates.
type StoreSummary struct {
	Path        string           `json:"path" yaml:"path"`
	Attrs       map[string]any   `json:"attrs" yaml:"attrs"`
	Arrays      []zarr.ArrayInfo `json:"arrays" yaml:"arrays"`
	Coordinates []Coordinate     `json:"coordinates" yaml:"coordinates"`
}

// Inspect reads the metadata of the store at path. The time, lat and lon
// arrays that are present are read to report their first and last values;
// time is decoded to calendar dates.
func Inspect(path string) (StoreSummary, error) {
	s, err := zarr.Open(path)
	if err != nil {
		return StoreSummary{}, err
	}
	defer s.Close()

	sum := StoreSummary{Path: path, Attrs: s.Attrs()}
	for _, name := range s.ArrayNames() {
		info, err := s.Array(name)
		if err != nil {
			return StoreSummary{}, err
		}
		sum.Arrays = append(sum.Arrays, info)
	}

	for _, name := range []string{DimTime, DimLat, DimLon} {
		info, err := s.Array(name)
		if err != nil {
			continue
		}
		c, err := describeCoordinate(s, info)
		if err != nil {
			return StoreSummary{}, fmt.Errorf("reading coordinate %s: %w", name, err)
		}
		sum.Coordinates = append(sum.Coordinates, c)
	}
	return sum, nil
}

func describeCoordinate(s *zarr.Store, info zarr.ArrayInfo) (Coordinate, error) {
	c := Coordinate{Name: info.Name, Size: info.Meta.Len()}
	if c.Size == 0 {
		return c, nil
	}

	if info.Name == DimTime {
		offsets, err := s.ReadInt64(info.Name)
		if err != nil {
			return Coordinate{}, err
		}
		units, _ := info.Attrs["units"].(string)
		times, err := DecodeTime(offsets, units)
		if err != nil {
			return Coordinate{}, err
		}
		c.First = times[0].Format("2006-01-02")
		c.Last = times[len(times)-1].Format("2006-01-02")
		return c, nil
	}

	values, err := s.ReadFloat64(info.Name)
	if err != nil {
		return Coordinate{}, err
	}
	c.First = strconv.FormatFloat(values[0], 'g', -1, 64)
	c.Last = strconv.FormatFloat(values[len(values)-1], 'g', -1, 64)
	return c, nil
}
