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

package terrain

import (
	"errors"
	"math"
	"testing"

	"github.com/spatialmodel/cloudmask"
)

const tolerance = 1.e-8

func different(a, b float64) bool {
	return math.Abs(a-b) > tolerance
}

// demWindow builds a 3×3 single-band raster from vals (row-major)
// and returns its center window.
func demWindow(t *testing.T, vals [9]float64) *cloudmask.Window {
	r, err := cloudmask.NewRaster(1, 3, 3, 0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			r.Set(vals[row*3+col], 0, row, col)
		}
	}
	w, err := r.Window(1, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestSlopeFlat(t *testing.T) {
	w := demWindow(t, [9]float64{5, 5, 5, 5, 5, 5, 5, 5, 5})
	s, err := Slope(w, 0, 1, 1, Degrees)
	if err != nil {
		t.Fatal(err)
	}
	if different(s, 0) {
		t.Errorf("flat slope = %g; want 0", s)
	}
}

func TestSlopeAspectTiltedPlane(t *testing.T) {
	// Elevation falls by one per cell toward the east.
	w := demWindow(t, [9]float64{2, 1, 0, 2, 1, 0, 2, 1, 0})
	s, a, err := SlopeAspect(w, 0, 1, 1, Degrees)
	if err != nil {
		t.Fatal(err)
	}
	if different(s, 45) {
		t.Errorf("slope = %g; want 45", s)
	}
	if !a.Defined {
		t.Fatal("aspect undefined on a tilted plane")
	}
	if different(a.Degrees, 90) {
		t.Errorf("aspect = %g; want 90 (east)", a.Degrees)
	}
}

func TestAspectFlatUndefined(t *testing.T) {
	w := demWindow(t, [9]float64{7, 7, 7, 7, 7, 7, 7, 7, 7})
	a, err := AspectOf(w, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if a.Defined {
		t.Errorf("flat aspect reported as defined (%g degrees)", a.Degrees)
	}
}

func TestAspectRange(t *testing.T) {
	planes := [][9]float64{
		{0, 1, 2, 0, 1, 2, 0, 1, 2}, // west-facing
		{0, 0, 0, 1, 1, 1, 2, 2, 2}, // north-facing
		{2, 2, 2, 1, 1, 1, 0, 0, 0}, // south-facing
	}
	for i, vals := range planes {
		w := demWindow(t, vals)
		a, err := AspectOf(w, 0, 1, 1)
		if err != nil {
			t.Fatal(err)
		}
		if !a.Defined {
			t.Fatalf("plane %d: aspect undefined", i)
		}
		if a.Degrees < 0 || a.Degrees >= 360 {
			t.Errorf("plane %d: aspect %g outside [0, 360)", i, a.Degrees)
		}
	}
	// The west-facing plane points downslope to the west.
	w := demWindow(t, [9]float64{0, 1, 2, 0, 1, 2, 0, 1, 2})
	a, err := AspectOf(w, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if different(a.Degrees, 270) {
		t.Errorf("west-facing aspect = %g; want 270", a.Degrees)
	}
}

func TestHillshadeRange(t *testing.T) {
	planes := [][9]float64{
		{5, 5, 5, 5, 5, 5, 5, 5, 5},
		{2, 1, 0, 2, 1, 0, 2, 1, 0},
		{0, 0, 0, 5, 5, 5, 10, 10, 10},
	}
	for i, vals := range planes {
		w := demWindow(t, vals)
		h, err := Hillshade(w, 0, 1, 1, 45, 315)
		if err != nil {
			t.Fatal(err)
		}
		if h < 1 || h > 255 {
			t.Errorf("plane %d: hillshade %g outside [1, 255]", i, h)
		}
	}
}

func TestHillshadeFlat(t *testing.T) {
	w := demWindow(t, [9]float64{5, 5, 5, 5, 5, 5, 5, 5, 5})
	h, err := Hillshade(w, 0, 1, 1, 45, 315)
	if err != nil {
		t.Fatal(err)
	}
	want := 1 + 254*math.Sin(45*deg2rad)
	if different(h, want) {
		t.Errorf("flat hillshade = %g; want %g", h, want)
	}
}

func TestHillshadeHornReference(t *testing.T) {
	// Plane falling one unit per cell toward the east with the sun in
	// the east at 45° zenith: the Horn gradient is (-1, 0) and the
	// shaded value works out to exactly 128. A plain center
	// difference over 8·res would understate the gradient fourfold
	// and brighten the cell to about 175.
	w := demWindow(t, [9]float64{2, 1, 0, 2, 1, 0, 2, 1, 0})
	h, err := Hillshade(w, 0, 1, 1, 45, 90)
	if err != nil {
		t.Fatal(err)
	}
	if different(h, 128) {
		t.Errorf("hillshade = %g; want 128", h)
	}
}

func TestHillshadeAwayFacing(t *testing.T) {
	// A steep east-rising slope with the sun in the north: the
	// surface faces away and gets the minimum brightness.
	w := demWindow(t, [9]float64{0, 10, 20, 0, 10, 20, 0, 10, 20})
	h, err := Hillshade(w, 0, 1, 1, 45, 0)
	if err != nil {
		t.Fatal(err)
	}
	if h != 1 {
		t.Errorf("away-facing hillshade = %g; want 1", h)
	}
}

func TestIncidenceFlat(t *testing.T) {
	w := demWindow(t, [9]float64{5, 5, 5, 5, 5, 5, 5, 5, 5})
	inc, err := IncidenceAngle(w, 0, 1, 1, 37, 120)
	if err != nil {
		t.Fatal(err)
	}
	// Flat terrain: the incidence angle is the solar zenith itself.
	if different(inc, 37) {
		t.Errorf("flat incidence = %g; want 37", inc)
	}
}

func TestExitanceFlatNadir(t *testing.T) {
	w := demWindow(t, [9]float64{5, 5, 5, 5, 5, 5, 5, 5, 5})
	ext, err := ExitanceAngle(w, 0, 1, 1, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if different(ext, 0) {
		t.Errorf("flat nadir exitance = %g; want 0", ext)
	}
}

func TestIncidenceExitanceShareNormal(t *testing.T) {
	w := demWindow(t, [9]float64{2, 1, 0, 2, 1, 0, 2, 1, 0})
	inc1, err := IncidenceAngle(w, 0, 1, 1, 40, 90)
	if err != nil {
		t.Fatal(err)
	}
	ext1, err := ExitanceAngle(w, 0, 1, 1, 5, 270)
	if err != nil {
		t.Fatal(err)
	}
	inc2, ext2, err := IncidenceExitance(w, 0, 1, 1, 40, 90, 5, 270)
	if err != nil {
		t.Fatal(err)
	}
	if different(inc1, inc2) || different(ext1, ext2) {
		t.Errorf("combined angles (%g, %g) differ from separate (%g, %g)",
			inc2, ext2, inc1, ext1)
	}
	if inc2 < 0 || inc2 > 180 || ext2 < 0 || ext2 > 180 {
		t.Errorf("angles (%g, %g) outside [0, 180]", inc2, ext2)
	}
}

func TestWindowSizeChecks(t *testing.T) {
	r, err := cloudmask.NewRaster(1, 5, 5, 0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	w, err := r.Window(2, 2, 5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Slope(w, 0, 1, 1, Degrees); !errors.Is(err, cloudmask.ErrInvalidWindowSize) {
		t.Errorf("got %v; want ErrInvalidWindowSize", err)
	}
	w3, err := r.Window(2, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Slope(w3, 1, 1, 1, Degrees); !errors.Is(err, cloudmask.ErrInvalidBandIndex) {
		t.Errorf("got %v; want ErrInvalidBandIndex", err)
	}
}

func TestSlopeRadians(t *testing.T) {
	w := demWindow(t, [9]float64{2, 1, 0, 2, 1, 0, 2, 1, 0})
	s, err := Slope(w, 0, 1, 1, Radians)
	if err != nil {
		t.Fatal(err)
	}
	if different(s, math.Pi/4) {
		t.Errorf("slope = %g rad; want π/4", s)
	}
}

func TestAspectRasterFlagsFlatCells(t *testing.T) {
	dem, err := cloudmask.NewRaster(1, 5, 5, 0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	out, err := AspectRaster(dem, 0)
	if err != nil {
		t.Fatal(err)
	}
	if out.Bands() != 2 {
		t.Fatalf("aspect raster has %d bands; want 2", out.Bands())
	}
	if out.Get(0, 2, 2) != 0 {
		t.Error("flat cell reported a defined aspect")
	}
}
