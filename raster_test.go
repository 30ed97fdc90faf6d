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

package cloudmask

import (
	"errors"
	"testing"

	"github.com/ctessum/geom"
)

func TestNewRaster(t *testing.T) {
	if _, err := NewRaster(0, 5, 5, 0, 0, 1, 1); err == nil {
		t.Error("zero bands should be rejected")
	}
	if _, err := NewRaster(1, 5, 5, 0, 0, -1, 1); err == nil {
		t.Error("negative resolution should be rejected")
	}
	r, err := NewRaster(2, 3, 4, 10, 20, 30, 30)
	if err != nil {
		t.Fatal(err)
	}
	if r.Bands() != 2 || r.Rows() != 3 || r.Cols() != 4 {
		t.Errorf("wrong shape: [%d][%d][%d]", r.Bands(), r.Rows(), r.Cols())
	}
}

func TestSetZeroOverwrites(t *testing.T) {
	r, err := NewRaster(1, 3, 3, 0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	r.Set(MaskCloud, 0, 1, 1)
	r.Set(MaskClear, 0, 1, 1)
	if v := r.Get(0, 1, 1); v != MaskClear {
		t.Errorf("zero did not overwrite the cell: got %g", v)
	}
}

func TestCellAt(t *testing.T) {
	r, err := NewRaster(1, 4, 4, 100, 200, 10, 10)
	if err != nil {
		t.Fatal(err)
	}
	row, col, ok := r.CellAt(geom.Point{X: 115, Y: 185})
	if !ok || row != 1 || col != 1 {
		t.Errorf("got (%d, %d, %v); want (1, 1, true)", row, col, ok)
	}
	if _, _, ok := r.CellAt(geom.Point{X: 99, Y: 185}); ok {
		t.Error("point west of the raster should not be within it")
	}
	if _, _, ok := r.CellAt(geom.Point{X: 115, Y: 150}); ok {
		t.Error("point south of the raster should not be within it")
	}
	p := r.CellCenter(1, 1)
	if row, col, ok := r.CellAt(p); !ok || row != 1 || col != 1 {
		t.Errorf("cell center does not round-trip: got (%d, %d, %v)", row, col, ok)
	}
}

func TestWindowClamping(t *testing.T) {
	r, err := NewRaster(1, 3, 3, 0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			r.Set(float64(row*3+col), 0, row, col)
		}
	}
	w, err := r.Window(0, 0, 3)
	if err != nil {
		t.Fatal(err)
	}
	// Reads above and left of the corner clamp to the corner.
	if v := w.At(0, 0, 0); v != 0 {
		t.Errorf("clamped corner read = %g; want 0", v)
	}
	if v := w.At(0, 2, 2); v != 4 {
		t.Errorf("in-bounds read = %g; want 4", v)
	}

	if _, err := r.Window(1, 1, 4); !errors.Is(err, ErrInvalidWindowSize) {
		t.Errorf("even window size error = %v; want ErrInvalidWindowSize", err)
	}
	if _, err := r.Window(1, 1, 0); !errors.Is(err, ErrInvalidWindowSize) {
		t.Errorf("zero window size error = %v; want ErrInvalidWindowSize", err)
	}
}

func TestCalcImageGridMismatch(t *testing.T) {
	a, _ := NewRaster(1, 3, 3, 0, 0, 1, 1)
	b, _ := NewRaster(1, 3, 3, 5, 0, 1, 1)
	err := CalcImage([]*Raster{a}, b, func(in []float64) ([]float64, error) {
		return []float64{in[0]}, nil
	})
	if err == nil {
		t.Error("mismatched grids should be rejected")
	}
}

func TestCalcImageConcatenatesBands(t *testing.T) {
	a, _ := NewRaster(2, 4, 4, 0, 0, 1, 1)
	b, _ := NewRaster(1, 4, 4, 0, 0, 1, 1)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			a.Set(1, 0, row, col)
			a.Set(2, 1, row, col)
			b.Set(3, 0, row, col)
		}
	}
	out := a.NewCompatible(1)
	err := CalcImage([]*Raster{a, b}, out, func(in []float64) ([]float64, error) {
		if len(in) != 3 {
			t.Fatalf("got %d input values; want 3", len(in))
		}
		return []float64{in[0] + in[1] + in[2]}, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if v := out.Get(0, 2, 2); v != 6 {
		t.Errorf("got %g; want 6", v)
	}
}

func TestMemAttributeStore(t *testing.T) {
	s := NewMemAttributeStore()
	if err := s.WriteColumn("LowerTempThres", RegionLand, 12.5); err != nil {
		t.Fatal(err)
	}
	v, err := s.ReadColumn("LowerTempThres", RegionLand)
	if err != nil {
		t.Fatal(err)
	}
	if v != 12.5 {
		t.Errorf("got %g; want 12.5", v)
	}
	if _, err := s.ReadColumn("LowerTempThres", RegionWater); err == nil {
		t.Error("missing label should report an error")
	}
	if _, err := s.ReadColumn("nosuch", RegionLand); err == nil {
		t.Error("missing column should report an error")
	}
}
