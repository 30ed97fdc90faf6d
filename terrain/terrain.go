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

// Package terrain computes surface geometry from digital elevation
// models: slope, aspect, hillshade, and the illumination angles
// needed for topographic correction of satellite imagery. All window
// operations work on 3×3 elevation neighborhoods with finite
// differences weighted in the manner of Horn (1981).
package terrain

import (
	"fmt"
	"math"

	"github.com/spatialmodel/cloudmask"
)

// AngleUnits selects degrees or radians for angle outputs.
type AngleUnits int

const (
	Degrees AngleUnits = iota
	Radians
)

const (
	deg2rad = math.Pi / 180
	rad2deg = 180 / math.Pi
)

// An Aspect is a downslope direction. Flat terrain has no downslope
// direction, so the direction is tagged rather than encoded as a
// sentinel angle.
type Aspect struct {
	// Defined reports whether the cell has any measurable gradient.
	Defined bool

	// Degrees is the downslope direction clockwise from north, in
	// [0, 360). It is meaningless when Defined is false.
	Degrees float64
}

// horn computes the Horn finite-difference gradient of the elevation
// window: dzdx is the eastward and dzdy the northward elevation
// change per unit distance, with the middle row and column double
// weighted.
func horn(w *cloudmask.Window, band int, ewRes, nsRes float64) (dzdx, dzdy float64) {
	sum := func(j int) float64 {
		return w.At(band, 0, j) + 2*w.At(band, 1, j) + w.At(band, 2, j)
	}
	dzdx = (sum(0) - sum(2)) / ewRes
	rowSum := func(i int) float64 {
		return w.At(band, i, 0) + 2*w.At(band, i, 1) + w.At(band, i, 2)
	}
	dzdy = (rowSum(2) - rowSum(0)) / nsRes
	return dzdx, dzdy
}

func checkWindow(w *cloudmask.Window, band int) error {
	if w.Size() != 3 {
		return fmt.Errorf("terrain: window size %d; 3 required: %w",
			w.Size(), cloudmask.ErrInvalidWindowSize)
	}
	if band < 0 || band >= w.Bands() {
		return fmt.Errorf("terrain: elevation band %d: %w", band, cloudmask.ErrInvalidBandIndex)
	}
	return nil
}

// Slope returns the steepness of the terrain at the center of the
// 3×3 elevation window, in units, where 0 is flat and 90° (or π/2)
// is vertical.
func Slope(w *cloudmask.Window, band int, ewRes, nsRes float64, units AngleUnits) (float64, error) {
	if err := checkWindow(w, band); err != nil {
		return 0, err
	}
	dzdx, dzdy := horn(w, band, ewRes, nsRes)
	s := math.Atan(math.Sqrt(dzdx*dzdx+dzdy*dzdy) / 8)
	if units == Degrees {
		s *= rad2deg
	}
	return s, nil
}

// AspectOf returns the downslope direction at the center of the 3×3
// elevation window. Flat cells return an undefined Aspect.
func AspectOf(w *cloudmask.Window, band int, ewRes, nsRes float64) (Aspect, error) {
	if err := checkWindow(w, band); err != nil {
		return Aspect{}, err
	}
	dzdx, dzdy := horn(w, band, ewRes, nsRes)
	// East-positive gradient for the direction calculation.
	dzdx = -dzdx
	if dzdx == 0 && dzdy == 0 {
		return Aspect{}, nil
	}
	a := math.Atan2(-dzdx, dzdy) * rad2deg
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a -= 360
	}
	return Aspect{Defined: true, Degrees: a}, nil
}

// SlopeAspect returns both the slope and the aspect of the window
// from a single gradient evaluation.
func SlopeAspect(w *cloudmask.Window, band int, ewRes, nsRes float64, units AngleUnits) (float64, Aspect, error) {
	s, err := Slope(w, band, ewRes, nsRes, units)
	if err != nil {
		return 0, Aspect{}, err
	}
	a, err := AspectOf(w, band, ewRes, nsRes)
	if err != nil {
		return 0, Aspect{}, err
	}
	return s, a, nil
}

// Hillshade returns the shaded-relief brightness of the window
// center under a sun at the given zenith and azimuth (degrees,
// azimuth clockwise from north). The result is in [1, 255], with 1
// for surfaces facing away from the sun.
func Hillshade(w *cloudmask.Window, band int, ewRes, nsRes, sunZenith, sunAzimuth float64) (float64, error) {
	if err := checkWindow(w, band); err != nil {
		return 0, err
	}
	colSum := func(j int) float64 {
		return w.At(band, 0, j) + 2*w.At(band, 1, j) + w.At(band, 2, j)
	}
	rowSum := func(i int) float64 {
		return w.At(band, i, 0) + 2*w.At(band, i, 1) + w.At(band, i, 2)
	}
	dzdx := (colSum(2) - colSum(0)) / (ewRes * 8)
	dzdy := (rowSum(0) - rowSum(2)) / (nsRes * 8)
	aspect := math.Atan2(dzdy, dzdx)

	zen := sunZenith * deg2rad
	az := sunAzimuth * deg2rad
	cang := (math.Sin(zen) -
		math.Cos(zen)*math.Sqrt(dzdx*dzdx+dzdy*dzdy)*
			math.Sin(aspect-(az-math.Pi/2))) /
		math.Sqrt(1+dzdx*dzdx+dzdy*dzdy)
	if cang <= 0 {
		return 1, nil
	}
	return 1 + 254*cang, nil
}

// surfaceNormal returns the unit normal of the window center as
// spherical zenith and azimuth angles in radians.
func surfaceNormal(w *cloudmask.Window, band int, ewRes, nsRes float64) (zenith, azimuth float64) {
	dzdx, dzdy := horn(w, band, ewRes, nsRes)
	slope := math.Atan(math.Sqrt(dzdx*dzdx+dzdy*dzdy) / 8)
	dzdx = -dzdx
	var az float64
	if dzdx != 0 || dzdy != 0 {
		az = math.Atan2(-dzdx, dzdy)
	}
	return slope, az
}

// angleBetween returns the angle in degrees between two directions
// given as spherical zenith and azimuth angles in radians.
func angleBetween(zen1, az1, zen2, az2 float64) float64 {
	x1 := math.Sin(zen1) * math.Sin(az1)
	y1 := math.Sin(zen1) * math.Cos(az1)
	z1 := math.Cos(zen1)
	x2 := math.Sin(zen2) * math.Sin(az2)
	y2 := math.Sin(zen2) * math.Cos(az2)
	z2 := math.Cos(zen2)
	dot := x1*x2 + y1*y2 + z1*z2
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return math.Acos(dot) * rad2deg
}

// IncidenceAngle returns the angle in degrees between the surface
// normal at the window center and the direction to the sun, given
// the solar zenith and azimuth in degrees. When the angle cannot be
// evaluated the solar zenith itself is returned, the flat-terrain
// equivalent.
func IncidenceAngle(w *cloudmask.Window, band int, ewRes, nsRes, sunZenith, sunAzimuth float64) (float64, error) {
	if err := checkWindow(w, band); err != nil {
		return 0, err
	}
	nz, na := surfaceNormal(w, band, ewRes, nsRes)
	a := angleBetween(nz, na, sunZenith*deg2rad, sunAzimuth*deg2rad)
	if math.IsNaN(a) {
		return sunZenith, nil
	}
	return a, nil
}

// ExitanceAngle returns the angle in degrees between the surface
// normal at the window center and the direction to the sensor,
// given the sensor view zenith and azimuth in degrees. When the
// angle cannot be evaluated zero is returned, the nadir-view
// flat-terrain equivalent.
func ExitanceAngle(w *cloudmask.Window, band int, ewRes, nsRes, viewZenith, viewAzimuth float64) (float64, error) {
	if err := checkWindow(w, band); err != nil {
		return 0, err
	}
	nz, na := surfaceNormal(w, band, ewRes, nsRes)
	a := angleBetween(nz, na, viewZenith*deg2rad, viewAzimuth*deg2rad)
	if math.IsNaN(a) {
		return 0, nil
	}
	return a, nil
}

// IncidenceExitance returns both illumination angles from a single
// surface normal evaluation.
func IncidenceExitance(w *cloudmask.Window, band int, ewRes, nsRes, sunZenith, sunAzimuth, viewZenith, viewAzimuth float64) (incidence, exitance float64, err error) {
	if err := checkWindow(w, band); err != nil {
		return 0, 0, err
	}
	nz, na := surfaceNormal(w, band, ewRes, nsRes)
	incidence = angleBetween(nz, na, sunZenith*deg2rad, sunAzimuth*deg2rad)
	if math.IsNaN(incidence) {
		incidence = sunZenith
	}
	exitance = angleBetween(nz, na, viewZenith*deg2rad, viewAzimuth*deg2rad)
	if math.IsNaN(exitance) {
		exitance = 0
	}
	return incidence, exitance, nil
}

// SlopeRaster computes the slope of every cell of the elevation
// raster.
func SlopeRaster(dem *cloudmask.Raster, band int, units AngleUnits) (*cloudmask.Raster, error) {
	out := dem.NewCompatible(1)
	_, _, ewRes, nsRes := dem.Geotransform()
	err := cloudmask.CalcImageWindow(dem, out, 3, func(w *cloudmask.Window) ([]float64, error) {
		s, err := Slope(w, band, ewRes, nsRes, units)
		if err != nil {
			return nil, err
		}
		return []float64{s}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AspectRaster computes the aspect of every cell of the elevation
// raster. The output has two bands: band 0 is 1 where the aspect is
// defined and 0 where the terrain is flat, and band 1 is the aspect
// in degrees.
func AspectRaster(dem *cloudmask.Raster, band int) (*cloudmask.Raster, error) {
	out := dem.NewCompatible(2)
	_, _, ewRes, nsRes := dem.Geotransform()
	err := cloudmask.CalcImageWindow(dem, out, 3, func(w *cloudmask.Window) ([]float64, error) {
		a, err := AspectOf(w, band, ewRes, nsRes)
		if err != nil {
			return nil, err
		}
		if !a.Defined {
			return []float64{0, 0}, nil
		}
		return []float64{1, a.Degrees}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HillshadeRaster computes the shaded relief of every cell of the
// elevation raster. The solar zenith and azimuth are given in
// degrees.
func HillshadeRaster(dem *cloudmask.Raster, band int, sunZenith, sunAzimuth float64) (*cloudmask.Raster, error) {
	out := dem.NewCompatible(1)
	_, _, ewRes, nsRes := dem.Geotransform()
	err := cloudmask.CalcImageWindow(dem, out, 3, func(w *cloudmask.Window) ([]float64, error) {
		h, err := Hillshade(w, band, ewRes, nsRes, sunZenith, sunAzimuth)
		if err != nil {
			return nil, err
		}
		return []float64{h}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IncidenceExitanceRaster computes the illumination angles of every
// cell of the elevation raster. The output has two bands: incidence
// and exitance, both in degrees.
func IncidenceExitanceRaster(dem *cloudmask.Raster, band int, sunZenith, sunAzimuth, viewZenith, viewAzimuth float64) (*cloudmask.Raster, error) {
	out := dem.NewCompatible(2)
	_, _, ewRes, nsRes := dem.Geotransform()
	err := cloudmask.CalcImageWindow(dem, out, 3, func(w *cloudmask.Window) ([]float64, error) {
		inc, ext, err := IncidenceExitance(w, band, ewRes, nsRes,
			sunZenith, sunAzimuth, viewZenith, viewAzimuth)
		if err != nil {
			return nil, err
		}
		return []float64{inc, ext}, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
