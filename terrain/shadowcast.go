/*
Copyright © 2017 the CloudMask authors.
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
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/ctessum/geom"
	"github.com/spatialmodel/cloudmask"
)

// Shadow mask values produced by ShadowCaster.Mask.
const (
	Shadowed = 0
	Lit      = 1
)

// A RaySample is one step along a sun ray: the horizontal position,
// the height of the ray there, and the terrain elevation below it.
type RaySample struct {
	Point     geom.Point
	RayHeight float64
	Elevation float64
}

// A ShadowCaster decides which cells of an elevation raster are
// shadowed by surrounding terrain for a fixed sun position. It
// traces a ray from each cell toward the sun and reports shadow if
// the terrain rises above the ray anywhere along it.
type ShadowCaster struct {
	dem  *cloudmask.Raster
	band int

	// Sun direction. Zenith and azimuth are in radians; azimuth is
	// clockwise from north.
	sunZenith  float64
	sunAzimuth float64

	// maxElev caps the trace: once the ray climbs above the highest
	// terrain it can no longer be occluded.
	maxElev float64

	// step is the horizontal trace increment.
	step float64
}

// NewShadowCaster creates a caster for the given elevation raster
// and band. Sun angles are in degrees; maxElev is the highest
// elevation in the scene.
func NewShadowCaster(dem *cloudmask.Raster, band int, sunZenith, sunAzimuth, maxElev float64) (*ShadowCaster, error) {
	if band < 0 || band >= dem.Bands() {
		return nil, fmt.Errorf("terrain: elevation band %d: %w", band, cloudmask.ErrInvalidBandIndex)
	}
	_, _, ewRes, nsRes := dem.Geotransform()
	return &ShadowCaster{
		dem:        dem,
		band:       band,
		sunZenith:  sunZenith * deg2rad,
		sunAzimuth: sunAzimuth * deg2rad,
		maxElev:    maxElev,
		step:       0.5 * math.Min(ewRes, nsRes),
	}, nil
}

// direction returns the horizontal unit vector pointing toward the
// sun and the ray height gained per unit of horizontal distance.
func (c *ShadowCaster) direction() (dx, dy, dzPerUnit float64) {
	dx = math.Sin(c.sunAzimuth)
	dy = math.Cos(c.sunAzimuth)
	dzPerUnit = math.Cos(c.sunZenith) / math.Sin(c.sunZenith)
	return dx, dy, dzPerUnit
}

// Shadowed reports whether the cell at the given row and column is
// occluded by terrain between it and the sun. A cell whose ray
// leaves the raster extent or climbs above the scene maximum
// elevation without striking terrain is lit. Cells holding the
// NoData value cannot be traced and report
// cloudmask.ErrRayExtraction.
func (c *ShadowCaster) Shadowed(row, col int) (bool, error) {
	z := c.dem.Get(c.band, row, col)
	if z == c.dem.NoData {
		return false, fmt.Errorf("terrain: cell (%d, %d) has no elevation: %w",
			row, col, cloudmask.ErrRayExtraction)
	}
	// A sun at the zenith casts no terrain shadows.
	if math.Sin(c.sunZenith) == 0 {
		return false, nil
	}
	dx, dy, dz := c.direction()
	p := c.dem.CellCenter(row, col)
	lastRow, lastCol := row, col
	for dist := c.step; ; dist += c.step {
		q := geom.Point{X: p.X + dx*dist, Y: p.Y + dy*dist}
		rayZ := z + dz*dist
		if rayZ > c.maxElev {
			return false, nil
		}
		r, cc, ok := c.dem.CellAt(q)
		if !ok {
			return false, nil
		}
		if r == lastRow && cc == lastCol {
			continue
		}
		lastRow, lastCol = r, cc
		elev := c.dem.Get(c.band, r, cc)
		if elev == c.dem.NoData {
			continue
		}
		if elev > rayZ {
			return true, nil
		}
	}
}

// Trace returns the samples along the sun ray from the given cell,
// in order of increasing distance, ending where the ray leaves the
// extent, climbs above the scene maximum, or strikes terrain.
func (c *ShadowCaster) Trace(row, col int) ([]RaySample, error) {
	z := c.dem.Get(c.band, row, col)
	if z == c.dem.NoData {
		return nil, fmt.Errorf("terrain: cell (%d, %d) has no elevation: %w",
			row, col, cloudmask.ErrRayExtraction)
	}
	if math.Sin(c.sunZenith) == 0 {
		return nil, nil
	}
	dx, dy, dz := c.direction()
	p := c.dem.CellCenter(row, col)
	var samples []RaySample
	lastRow, lastCol := row, col
	for dist := c.step; ; dist += c.step {
		q := geom.Point{X: p.X + dx*dist, Y: p.Y + dy*dist}
		rayZ := z + dz*dist
		if rayZ > c.maxElev {
			return samples, nil
		}
		r, cc, ok := c.dem.CellAt(q)
		if !ok {
			return samples, nil
		}
		if r == lastRow && cc == lastCol {
			continue
		}
		lastRow, lastCol = r, cc
		elev := c.dem.Get(c.band, r, cc)
		if elev == c.dem.NoData {
			continue
		}
		samples = append(samples, RaySample{Point: q, RayHeight: rayZ, Elevation: elev})
		if elev > rayZ {
			return samples, nil
		}
	}
}

// Mask traces every cell and returns a single-band raster with Lit
// and Shadowed values. Cells with no elevation abort the mask with
// cloudmask.ErrRayExtraction.
func (c *ShadowCaster) Mask() (*cloudmask.Raster, error) {
	out := c.dem.NewCompatible(1)

	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			for row := pp; row < out.Rows(); row += nprocs {
				mu.Lock()
				stop := firstErr != nil
				mu.Unlock()
				if stop {
					return
				}
				for col := 0; col < out.Cols(); col++ {
					sh, err := c.Shadowed(row, col)
					if err != nil {
						mu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						mu.Unlock()
						return
					}
					if sh {
						out.Set(Shadowed, 0, row, col)
					} else {
						out.Set(Lit, 0, row, col)
					}
				}
			}
		}(pp)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}
