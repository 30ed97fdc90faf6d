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

package cloudmask

import (
	"errors"
	"math"
	"testing"
)

// statsTestRasters builds a 20×20 raster labeled entirely land with
// values 0 through 399, plus a 10-pixel water strip in a second
// scene row that is too small to be sampled reliably.
func statsTestRasters(t *testing.T) (regions, values *Raster) {
	regions, err := NewRaster(1, 20, 20, 0, 0, 30, 30)
	if err != nil {
		t.Fatal(err)
	}
	values = regions.NewCompatible(1)
	for row := 0; row < 20; row++ {
		for col := 0; col < 20; col++ {
			regions.Set(RegionLand, 0, row, col)
			values.Set(float64(row*20+col), 0, row, col)
		}
	}
	for col := 0; col < 10; col++ {
		regions.Set(RegionWater, 0, 0, col)
	}
	return regions, values
}

func TestPercentileMedian(t *testing.T) {
	s := []float64{5, 1, 4, 2, 3}
	if v := percentileOf(s, 50); v != 3 {
		t.Errorf("median = %g; want 3", v)
	}
	if v := percentileOf(s, 0); v != 1 {
		t.Errorf("0th percentile = %g; want 1", v)
	}
	if v := percentileOf(s, 100); v != 5 {
		t.Errorf("100th percentile = %g; want 5", v)
	}
}

func TestPercentileMonotonic(t *testing.T) {
	regions, values := statsTestRasters(t)
	a := &RegionAggregator{}
	lo, err := a.Percentile(regions, values, 0, RegionLand, 17.5)
	if err != nil {
		t.Fatal(err)
	}
	hi, err := a.Percentile(regions, values, 0, RegionLand, 82.5)
	if err != nil {
		t.Fatal(err)
	}
	if lo >= hi {
		t.Errorf("17.5th percentile %g is not below 82.5th percentile %g", lo, hi)
	}
	// The same query on the same data gives the same answer.
	lo2, err := a.Percentile(regions, values, 0, RegionLand, 17.5)
	if err != nil {
		t.Fatal(err)
	}
	if lo != lo2 {
		t.Errorf("repeated percentile changed: %g then %g", lo, lo2)
	}
}

func TestPercentileDegenerate(t *testing.T) {
	regions, values := statsTestRasters(t)
	a := &RegionAggregator{}
	_, err := a.Percentile(regions, values, 0, RegionWater, 17.5)
	if !errors.Is(err, ErrDegenerateStatistics) {
		t.Errorf("got %v; want ErrDegenerateStatistics", err)
	}
}

func TestPercentileNoData(t *testing.T) {
	regions, values := statsTestRasters(t)
	// Poison one land cell; excluding it should change the maximum.
	values.Set(1e9, 0, 19, 19)
	a := &RegionAggregator{NoData: 1e9, UseNoData: true}
	v, err := a.Percentile(regions, values, 0, RegionLand, 100)
	if err != nil {
		t.Fatal(err)
	}
	if v == 1e9 {
		t.Error("NoData value was not excluded from the sample")
	}
}

func TestPercentileBandChecks(t *testing.T) {
	regions, values := statsTestRasters(t)
	a := &RegionAggregator{}
	if _, err := a.Percentile(regions, values, 3, RegionLand, 50); !errors.Is(err, ErrInvalidBandIndex) {
		t.Errorf("got %v; want ErrInvalidBandIndex", err)
	}
	if _, err := a.Percentile(regions, values, 0, RegionLand, 120); err == nil {
		t.Error("percentile above 100 should be rejected")
	}
	if _, err := a.Percentile(regions, values, 0, RegionLand, math.Copysign(5, -1)); err == nil {
		t.Error("negative percentile should be rejected")
	}
}

func TestPercentileToStore(t *testing.T) {
	regions, values := statsTestRasters(t)
	a := &RegionAggregator{}
	store := NewMemAttributeStore()
	v, err := a.PercentileToStore(store, ColLowerTempThres, regions, values, 0, RegionLand, 17.5)
	if err != nil {
		t.Fatal(err)
	}
	stored, err := store.ReadColumn(ColLowerTempThres, RegionLand)
	if err != nil {
		t.Fatal(err)
	}
	if stored != v {
		t.Errorf("stored %g; computed %g", stored, v)
	}
}
