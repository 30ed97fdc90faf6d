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
	"fmt"
	"sort"

	"github.com/GaryBoone/GoStats/stats"
)

// DefaultMinSampleCount is the smallest region sample from which a
// percentile threshold will be derived.
const DefaultMinSampleCount = 200

// A RegionAggregator computes percentile statistics of a value
// raster restricted to the pixels carrying one region label. It is
// the synchronization barrier between pipeline passes: it scans the
// complete output of the preceding pass.
type RegionAggregator struct {
	// MinSampleCount is the minimum number of samples required
	// before a percentile is reported. If zero,
	// DefaultMinSampleCount is used.
	MinSampleCount int

	// NoData values in the value raster are excluded from the
	// sample when UseNoData is set.
	NoData    float64
	UseNoData bool

	// Progress optionally receives status messages.
	Progress chan string
}

// sample collects the values of band valueBand of values at pixels
// where band 0 of regions equals label.
func (a *RegionAggregator) sample(regions, values *Raster, valueBand, label int) ([]float64, error) {
	if !sameGrid(regions, values) {
		return nil, fmt.Errorf("cloudmask: region and value rasters do not share a grid")
	}
	if valueBand < 0 || valueBand >= values.Bands() {
		return nil, fmt.Errorf("cloudmask: value band %d: %w", valueBand, ErrInvalidBandIndex)
	}
	var s []float64
	for row := 0; row < regions.Rows(); row++ {
		for col := 0; col < regions.Cols(); col++ {
			if int(regions.Get(0, row, col)) != label {
				continue
			}
			v := values.Get(valueBand, row, col)
			if a.UseNoData && v == a.NoData {
				continue
			}
			s = append(s, v)
		}
	}
	return s, nil
}

// Percentile returns the given percentile (0–100) of band valueBand
// of values over the pixels labeled label in regions, interpolating
// linearly between order statistics. Samples smaller than
// MinSampleCount report ErrDegenerateStatistics rather than an
// unreliable value.
func (a *RegionAggregator) Percentile(regions, values *Raster, valueBand, label int, percentile float64) (float64, error) {
	if percentile < 0 || percentile > 100 {
		return 0, fmt.Errorf("cloudmask: percentile %g is not within [0,100]", percentile)
	}
	s, err := a.sample(regions, values, valueBand, label)
	if err != nil {
		return 0, err
	}
	min := a.MinSampleCount
	if min == 0 {
		min = DefaultMinSampleCount
	}
	if len(s) < min {
		return 0, fmt.Errorf("cloudmask: region %d has %d samples, fewer than %d: %w",
			label, len(s), min, ErrDegenerateStatistics)
	}
	if a.Progress != nil {
		a.Progress <- fmt.Sprintf("region %d: n=%d mean=%g stddev=%g range=[%g,%g]",
			label, len(s), stats.StatsMean(s), stats.StatsSampleStandardDeviation(s),
			stats.StatsMin(s), stats.StatsMax(s))
	}
	return percentileOf(s, percentile), nil
}

// PercentileToStore computes a percentile as Percentile does and
// records it in store under the given column for the region label.
func (a *RegionAggregator) PercentileToStore(store AttributeStore, column string, regions, values *Raster, valueBand, label int, percentile float64) (float64, error) {
	v, err := a.Percentile(regions, values, valueBand, label, percentile)
	if err != nil {
		return 0, err
	}
	if err := store.WriteColumn(column, label, v); err != nil {
		return 0, err
	}
	return v, nil
}

// percentileOf sorts s in place and returns the percentile p by
// linear interpolation between the two nearest order statistics, so
// percentileOf(s, 50) is the sample median.
func percentileOf(s []float64, p float64) float64 {
	sort.Float64s(s)
	if len(s) == 1 {
		return s[0]
	}
	rank := p / 100 * float64(len(s)-1)
	lo := int(rank)
	if lo >= len(s)-1 {
		return s[len(s)-1]
	}
	frac := rank - float64(lo)
	return s[lo] + frac*(s[lo+1]-s[lo])
}
