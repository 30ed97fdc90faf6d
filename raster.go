/*
Copyright © 2016 the CloudMask authors.
This file is part of CloudMask.

CloudMask is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

CloudMask is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with CloudMask.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cloudmask implements terrain illumination geometry and
// multi-pass, statistically-adaptive cloud and cloud-shadow detection
// for calibrated multispectral and thermal satellite imagery.
package cloudmask

import (
	"fmt"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// Raster is an in-memory multi-band raster. The data are held in a
// dense array with shape [bands][rows][cols]. X0 and Y0 give the
// coordinates of the upper-left corner of the upper-left cell, and
// EWRes and NSRes are the east-west and north-south cell edge lengths
// in the units of the spatial projection; both must be positive.
type Raster struct {
	Data *sparse.DenseArray

	X0, Y0       float64
	EWRes, NSRes float64

	// NoData is the value marking cells that hold no valid data.
	NoData float64

	// BandNames optionally holds a description for each band.
	BandNames []string
}

// NewRaster creates a raster of the given shape filled with zeros.
func NewRaster(bands, rows, cols int, x0, y0, ewRes, nsRes float64) (*Raster, error) {
	if bands < 1 || rows < 1 || cols < 1 {
		return nil, fmt.Errorf("cloudmask: invalid raster shape [%d][%d][%d]", bands, rows, cols)
	}
	if ewRes <= 0 || nsRes <= 0 {
		return nil, fmt.Errorf("cloudmask: raster resolution must be positive; got %g x %g", ewRes, nsRes)
	}
	return &Raster{
		Data:  sparse.ZerosDense(bands, rows, cols),
		X0:    x0,
		Y0:    y0,
		EWRes: ewRes,
		NSRes: nsRes,
	}, nil
}

// Bands returns the number of bands in r.
func (r *Raster) Bands() int { return r.Data.Shape[0] }

// Rows returns the number of rows in r.
func (r *Raster) Rows() int { return r.Data.Shape[1] }

// Cols returns the number of columns in r.
func (r *Raster) Cols() int { return r.Data.Shape[2] }

// Get returns the value at the given band, row, and column.
func (r *Raster) Get(band, row, col int) float64 {
	return r.Data.Get(band, row, col)
}

// Set sets the value at the given band, row, and column. The write
// goes through the backing elements because sparse.DenseArray.Set
// drops zero values, and zero is a meaningful category in the mask
// and partition rasters.
func (r *Raster) Set(v float64, band, row, col int) {
	r.Data.Elements[r.Data.Index1d(band, row, col)] = v
}

// Geotransform returns the origin and resolution of r.
func (r *Raster) Geotransform() (x0, y0, ewRes, nsRes float64) {
	return r.X0, r.Y0, r.EWRes, r.NSRes
}

// Bounds returns the spatial extent of r.
func (r *Raster) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: r.X0, Y: r.Y0 - r.NSRes*float64(r.Rows())},
		Max: geom.Point{X: r.X0 + r.EWRes*float64(r.Cols()), Y: r.Y0},
	}
}

// CellCenter returns the spatial coordinates of the center of the
// cell at the given row and column.
func (r *Raster) CellCenter(row, col int) geom.Point {
	return geom.Point{
		X: r.X0 + (float64(col)+0.5)*r.EWRes,
		Y: r.Y0 - (float64(row)+0.5)*r.NSRes,
	}
}

// CellAt returns the row and column of the cell containing point p,
// and reports whether p lies within the raster extent.
func (r *Raster) CellAt(p geom.Point) (row, col int, ok bool) {
	col = int((p.X - r.X0) / r.EWRes)
	row = int((r.Y0 - p.Y) / r.NSRes)
	if row < 0 || row >= r.Rows() || col < 0 || col >= r.Cols() {
		return row, col, false
	}
	return row, col, true
}

// NewCompatible creates a zero-filled raster with the given number of
// bands on the same grid as r.
func (r *Raster) NewCompatible(bands int) *Raster {
	o, _ := NewRaster(bands, r.Rows(), r.Cols(), r.X0, r.Y0, r.EWRes, r.NSRes)
	o.NoData = r.NoData
	return o
}

// Copy returns a deep copy of r.
func (r *Raster) Copy() *Raster {
	o := r.NewCompatible(r.Bands())
	copy(o.Data.Elements, r.Data.Elements)
	o.BandNames = append([]string{}, r.BandNames...)
	return o
}

// sameGrid reports whether a and b share row and column counts and
// geotransform.
func sameGrid(a, b *Raster) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols() &&
		a.X0 == b.X0 && a.Y0 == b.Y0 &&
		a.EWRes == b.EWRes && a.NSRes == b.NSRes
}

// A Window is a bounded view of an N×N neighborhood of one raster
// position across all bands. Reads beyond the raster edge are clamped
// to the nearest valid cell, so every position in the raster has a
// complete window.
type Window struct {
	r        *Raster
	row, col int
	size     int
}

// Window returns a size×size window centered on the given row and
// column. size must be odd and positive.
func (r *Raster) Window(row, col, size int) (*Window, error) {
	if size < 1 || size%2 == 0 {
		return nil, fmt.Errorf("cloudmask: window size %d: %w", size, ErrInvalidWindowSize)
	}
	return &Window{r: r, row: row, col: col, size: size}, nil
}

// Size returns the window edge length.
func (w *Window) Size() int { return w.size }

// Bands returns the number of bands visible through the window.
func (w *Window) Bands() int { return w.r.Bands() }

// At returns the value of the given band at window position (i, j),
// where i and j run from 0 to Size()-1 and (Size()/2, Size()/2) is
// the window center.
func (w *Window) At(band, i, j int) float64 {
	half := w.size / 2
	row := w.row + i - half
	col := w.col + j - half
	if row < 0 {
		row = 0
	} else if row >= w.r.Rows() {
		row = w.r.Rows() - 1
	}
	if col < 0 {
		col = 0
	} else if col >= w.r.Cols() {
		col = w.r.Cols() - 1
	}
	return w.r.Get(band, row, col)
}

// A RasterSource provides random-access windowed reads of a
// multi-band raster along with its geotransform. *Raster implements
// RasterSource directly; file-backed implementations are in io.go.
type RasterSource interface {
	Bands() int
	Rows() int
	Cols() int
	Geotransform() (x0, y0, ewRes, nsRes float64)
	Get(band, row, col int) float64
}

// A RasterSink accepts output rasters keyed by name. It is used to
// persist final products and, when requested, intermediate
// diagnostic rasters.
type RasterSink interface {
	WriteRaster(name string, r *Raster) error
}

// An AttributeStore holds named columns of values keyed by region
// label. It carries percentile thresholds between pipeline stages in
// the manner of a raster attribute table.
type AttributeStore interface {
	WriteColumn(column string, label int, value float64) error
	ReadColumn(column string, label int) (float64, error)
}

// MemAttributeStore is an in-memory AttributeStore.
type MemAttributeStore struct {
	columns map[string]map[int]float64
}

// NewMemAttributeStore creates an empty in-memory attribute store.
func NewMemAttributeStore() *MemAttributeStore {
	return &MemAttributeStore{columns: make(map[string]map[int]float64)}
}

// WriteColumn stores value in the given column for the given label.
func (s *MemAttributeStore) WriteColumn(column string, label int, value float64) error {
	c, ok := s.columns[column]
	if !ok {
		c = make(map[int]float64)
		s.columns[column] = c
	}
	c[label] = value
	return nil
}

// ReadColumn returns the value stored in the given column for the
// given label.
func (s *MemAttributeStore) ReadColumn(column string, label int) (float64, error) {
	c, ok := s.columns[column]
	if !ok {
		return 0, fmt.Errorf("cloudmask: attribute store has no column %q", column)
	}
	v, ok := c[label]
	if !ok {
		return 0, fmt.Errorf("cloudmask: attribute store column %q has no value for label %d", column, label)
	}
	return v, nil
}
