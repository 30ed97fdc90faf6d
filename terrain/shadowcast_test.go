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
	"errors"
	"testing"

	"github.com/spatialmodel/cloudmask"
)

// flatDEM builds a rows×cols elevation raster of zeros with unit
// resolution.
func flatDEM(t *testing.T, rows, cols int) *cloudmask.Raster {
	dem, err := cloudmask.NewRaster(1, rows, cols, 0, 0, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	dem.NoData = -9999
	return dem
}

func TestShadowedFlatTerrain(t *testing.T) {
	dem := flatDEM(t, 10, 10)
	c, err := NewShadowCaster(dem, 0, 45, 90, 10)
	if err != nil {
		t.Fatal(err)
	}
	sh, err := c.Shadowed(5, 5)
	if err != nil {
		t.Fatal(err)
	}
	if sh {
		t.Error("flat terrain reported shadowed")
	}
}

func TestShadowedBehindWall(t *testing.T) {
	dem := flatDEM(t, 10, 10)
	// A wall across column 8, east of the test cell, with the sun
	// in the east.
	for row := 0; row < 10; row++ {
		dem.Set(100, 0, row, 8)
	}
	c, err := NewShadowCaster(dem, 0, 45, 90, 100)
	if err != nil {
		t.Fatal(err)
	}
	sh, err := c.Shadowed(5, 5)
	if err != nil {
		t.Fatal(err)
	}
	if !sh {
		t.Error("cell west of a wall with an eastern sun reported lit")
	}

	// With the sun in the west the same wall casts no shadow here.
	c, err = NewShadowCaster(dem, 0, 45, 270, 100)
	if err != nil {
		t.Fatal(err)
	}
	sh, err = c.Shadowed(5, 5)
	if err != nil {
		t.Fatal(err)
	}
	if sh {
		t.Error("cell reported shadowed with the sun opposite the wall")
	}
}

func TestShadowedRayLeavesExtent(t *testing.T) {
	dem := flatDEM(t, 10, 10)
	// A low sun from the north: rays from the northern edge leave
	// the extent immediately and the cells are lit.
	c, err := NewShadowCaster(dem, 0, 80, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	sh, err := c.Shadowed(0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if sh {
		t.Error("edge cell reported shadowed with no terrain between it and the sun")
	}
}

func TestShadowedNoData(t *testing.T) {
	dem := flatDEM(t, 10, 10)
	dem.Set(dem.NoData, 0, 5, 5)
	c, err := NewShadowCaster(dem, 0, 45, 90, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Shadowed(5, 5); !errors.Is(err, cloudmask.ErrRayExtraction) {
		t.Errorf("got %v; want ErrRayExtraction", err)
	}
}

func TestShadowCasterBandCheck(t *testing.T) {
	dem := flatDEM(t, 5, 5)
	if _, err := NewShadowCaster(dem, 2, 45, 90, 10); !errors.Is(err, cloudmask.ErrInvalidBandIndex) {
		t.Errorf("got %v; want ErrInvalidBandIndex", err)
	}
}

func TestTrace(t *testing.T) {
	dem := flatDEM(t, 10, 10)
	for row := 0; row < 10; row++ {
		dem.Set(100, 0, row, 8)
	}
	c, err := NewShadowCaster(dem, 0, 45, 90, 100)
	if err != nil {
		t.Fatal(err)
	}
	samples, err := c.Trace(5, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) == 0 {
		t.Fatal("no ray samples returned")
	}
	for i := 1; i < len(samples); i++ {
		if samples[i].RayHeight <= samples[i-1].RayHeight {
			t.Fatal("ray height is not increasing along the trace")
		}
	}
	last := samples[len(samples)-1]
	if last.Elevation <= last.RayHeight {
		t.Error("trace toward an occluding wall should end at the strike")
	}
}

func TestMask(t *testing.T) {
	dem := flatDEM(t, 10, 10)
	for row := 0; row < 10; row++ {
		dem.Set(100, 0, row, 8)
	}
	c, err := NewShadowCaster(dem, 0, 45, 90, 100)
	if err != nil {
		t.Fatal(err)
	}
	mask, err := c.Mask()
	if err != nil {
		t.Fatal(err)
	}
	if mask.Get(0, 5, 5) != Shadowed {
		t.Error("cell behind the wall not shadowed in the mask")
	}
	if mask.Get(0, 5, 9) != Lit {
		t.Error("cell east of the wall should be lit")
	}
}

func TestMaskNoDataAborts(t *testing.T) {
	dem := flatDEM(t, 10, 10)
	dem.Set(dem.NoData, 0, 3, 3)
	c, err := NewShadowCaster(dem, 0, 45, 90, 10)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Mask(); !errors.Is(err, cloudmask.ErrRayExtraction) {
		t.Errorf("got %v; want ErrRayExtraction", err)
	}
}
