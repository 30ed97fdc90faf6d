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
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// Region labels used in the land/water partition raster.
const (
	RegionBackground = 0
	RegionLand       = 1
	RegionWater      = 2
)

// Cloud mask values.
const (
	MaskClear = 0
	MaskCloud = 1
)

// Reflectance band order expected by the pipeline.
const (
	BandBlue = iota
	BandGreen
	BandRed
	BandNIR
	BandSWIR1
	BandSWIR2
)

// Pass-1 output band indices.
const (
	p1NDSI = iota
	p1NDVI
	p1BasicTest
	p1MeanVis
	p1Whiteness
	p1HOTTest
	p1RatioTest
	p1WaterTest
	p1PCP
	p1ClearLand
	p1SnowTest
	p1ClearWater
	p1ClearSky
	p1VisSaturated
	p1BT

	numPass1Bands
)

// Pass-2 probability band indices.
const (
	p2WaterTempProb = iota
	p2BrightProb
	p2WaterCloudProb
	p2LandTempProb
	p2VariabilityProb
	p2LandCloudProb

	numPass2Bands
)

// Pass1Thresholds holds the fixed constants of the first-pass
// per-pixel classification. The zero value is not useful; start from
// DefaultPass1Thresholds. Reflectance values are unscaled (0–1) and
// temperatures are °C.
type Pass1Thresholds struct {
	SWIR2Min     float64 // basic test minimum SWIR2 reflectance
	BTMax        float64 // basic test maximum brightness temperature
	NDSIMax      float64
	NDVIMax      float64
	WhitenessMax float64
	HOTRedCoeff  float64 // red coefficient in the haze-optimized transform
	HOTOffset    float64
	RatioMin     float64 // minimum NIR/SWIR1 ratio

	WaterNDVIThin float64 // water test: NDVI bound paired with WaterNIRThin
	WaterNIRThin  float64
	WaterNDVIThck float64 // water test: NDVI bound paired with WaterNIRThck
	WaterNIRThck  float64

	SnowNDSIMin  float64
	SnowBTMax    float64
	SnowNIRMin   float64
	SnowGreenMin float64
}

// DefaultPass1Thresholds returns the standard FMask first-pass
// constants.
func DefaultPass1Thresholds() Pass1Thresholds {
	return Pass1Thresholds{
		SWIR2Min:     0.03,
		BTMax:        27.0,
		NDSIMax:      0.8,
		NDVIMax:      0.8,
		WhitenessMax: 0.7,
		HOTRedCoeff:  0.5,
		HOTOffset:    0.08,
		RatioMin:     0.75,

		WaterNDVIThin: 0.01,
		WaterNIRThin:  0.11,
		WaterNDVIThck: 0.1,
		WaterNIRThck:  0.05,

		SnowNDSIMin:  0.15,
		SnowBTMax:    3.8,
		SnowNIRMin:   0.11,
		SnowGreenMin: 0.1,
	}
}

// A ThresholdSet holds the data-derived decision thresholds of one
// pipeline run. It is computed once and frozen thereafter.
// Temperatures are °C and probabilities are unitless.
type ThresholdSet struct {
	LowerLandTemp  float64
	UpperLandTemp  float64
	LowerWaterTemp float64
	UpperWaterTemp float64

	LandCloudProb  float64
	WaterCloudProb float64

	// WaterValid reports whether the clear-sky water sample was
	// large enough to derive water temperature statistics. When it
	// is false the water cloud branch is disabled rather than run
	// against a substituted default.
	WaterValid bool
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// reflOffset returns the index of the blue band within a reflectance
// stack: 7-band stacks carry a leading coastal aerosol band ahead of
// the 6 bands the pipeline classifies.
func reflOffset(nRefl int) int {
	if nRefl == 7 {
		return 1
	}
	return 0
}

// pass1Func returns the first-pass per-pixel classifier. The input
// values are the reflectance bands, the thermal bands, and the
// saturation bands, concatenated. Outputs are the numPass1Bands
// candidate-class bands.
func pass1Func(t Pass1Thresholds, scale float64, nRefl, nTherm int) PixelFunc {
	off := reflOffset(nRefl)
	return func(in []float64) ([]float64, error) {
		out := make([]float64, numPass1Bands)

		blue := in[off+BandBlue] / scale
		green := in[off+BandGreen] / scale
		red := in[off+BandRed] / scale
		nir := in[off+BandNIR] / scale
		swir1 := in[off+BandSWIR1] / scale
		swir2 := in[off+BandSWIR2] / scale
		bt := in[nRefl] / scale

		sat := in[nRefl+nTherm:]
		satVis := sat[off+BandBlue] > 0 || sat[off+BandGreen] > 0 || sat[off+BandRed] > 0

		var ndsi, ndvi float64
		if green+swir1 != 0 {
			ndsi = (green - swir1) / (green + swir1)
		}
		if nir+red != 0 {
			ndvi = (nir - red) / (nir + red)
		}

		basic := swir2 > t.SWIR2Min && bt < t.BTMax && ndsi < t.NDSIMax && ndvi < t.NDVIMax

		meanVis := floats.Sum([]float64{blue, green, red}) / 3
		var whiteness float64
		if meanVis != 0 {
			whiteness = (math.Abs(blue-meanVis) + math.Abs(green-meanVis) +
				math.Abs(red-meanVis)) / meanVis
		}
		if satVis {
			// A saturated visible band makes whiteness meaningless;
			// the test is waved through.
			whiteness = 0
		}
		whiteTest := whiteness < t.WhitenessMax

		hot := blue-t.HOTRedCoeff*red-t.HOTOffset > 0 || satVis

		ratio := swir1 != 0 && nir/swir1 > t.RatioMin

		water := (ndvi < t.WaterNDVIThin && nir < t.WaterNIRThin) ||
			(ndvi < t.WaterNDVIThck && ndvi > 0 && nir < t.WaterNIRThck)

		pcp := basic && whiteTest && hot && ratio

		snow := ndsi > t.SnowNDSIMin && bt < t.SnowBTMax &&
			nir > t.SnowNIRMin && green > t.SnowGreenMin

		clearLand := !pcp && !water
		clearWater := water && swir2 < t.SWIR2Min

		out[p1NDSI] = ndsi
		out[p1NDVI] = ndvi
		out[p1BasicTest] = b2f(basic)
		out[p1MeanVis] = meanVis
		out[p1Whiteness] = whiteness
		out[p1HOTTest] = b2f(hot)
		out[p1RatioTest] = b2f(ratio)
		out[p1WaterTest] = b2f(water)
		out[p1PCP] = b2f(pcp)
		out[p1ClearLand] = b2f(clearLand)
		out[p1SnowTest] = b2f(snow)
		out[p1ClearWater] = b2f(clearWater)
		out[p1ClearSky] = b2f(clearLand || clearWater)
		out[p1VisSaturated] = b2f(satVis)
		out[p1BT] = bt

		return out, nil
	}
}

// landWaterFunc reduces the pass-1 candidate classes to the
// mutually exclusive region labels {background, land, water}. When
// hasValid is set the last input value is the valid flag and
// unobserved pixels stay background.
func landWaterFunc(hasValid bool) PixelFunc {
	return func(in []float64) ([]float64, error) {
		if hasValid && in[numPass1Bands] != 1 {
			return []float64{RegionBackground}, nil
		}
		switch {
		case in[p1ClearLand] == 1:
			return []float64{RegionLand}, nil
		case in[p1ClearWater] == 1:
			return []float64{RegionWater}, nil
		}
		return []float64{RegionBackground}, nil
	}
}

// pass2Func returns the second-pass per-pixel probability
// calculator. The input values are the land/water label, the
// reflectance bands, the thermal bands, and the pass-1 bands,
// concatenated. Outputs are the numPass2Bands probability bands.
func pass2Func(ts ThresholdSet, scale float64, nRefl, nTherm int) PixelFunc {
	// Normalization span for the land temperature probability, with
	// a 4 °C buffer beyond each percentile bound.
	landSpan := (ts.UpperLandTemp + 4) - (ts.LowerLandTemp - 4)
	off := reflOffset(nRefl)
	return func(in []float64) ([]float64, error) {
		out := make([]float64, numPass2Bands)

		swir1 := in[1+off+BandSWIR1] / scale
		bt := in[1+nRefl] / scale
		p1 := in[1+nRefl+nTherm:]

		if ts.WaterValid {
			out[p2WaterTempProb] = (ts.UpperWaterTemp - bt) / 4
			out[p2BrightProb] = math.Min(swir1, 0.11) / 0.11
			out[p2WaterCloudProb] = out[p2WaterTempProb] * out[p2BrightProb]
		}

		out[p2LandTempProb] = (ts.UpperLandTemp + 4 - bt) / landSpan

		ndsi := p1[p1NDSI]
		ndvi := p1[p1NDVI]
		if p1[p1VisSaturated] == 1 {
			ndsi, ndvi = 0, 0
		}
		out[p2VariabilityProb] = 1 - floats.Max([]float64{
			math.Abs(ndsi), math.Abs(ndvi), p1[p1Whiteness]})
		out[p2LandCloudProb] = out[p2LandTempProb] * out[p2VariabilityProb]

		return out, nil
	}
}

// finalMaskFunc combines pass-1 evidence, pass-2 probabilities, and
// the frozen thresholds into the integer cloud mask. The input
// values are the land/water label, the reflectance bands, the
// thermal bands, the pass-1 bands, and the pass-2 bands,
// concatenated.
func finalMaskFunc(ts ThresholdSet, scale float64, nRefl, nTherm int, hasValid bool) PixelFunc {
	p2Start := 1 + nRefl + nTherm + numPass1Bands
	return func(in []float64) ([]float64, error) {
		if hasValid && in[p2Start+numPass2Bands] != 1 {
			return []float64{MaskClear}, nil
		}
		bt := in[1+nRefl] / scale
		p1 := in[1+nRefl+nTherm : 1+nRefl+nTherm+numPass1Bands]
		p2 := in[p2Start : p2Start+numPass2Bands]

		pcp := p1[p1PCP] == 1
		water := p1[p1WaterTest] == 1

		cloud := (pcp && water && ts.WaterValid && p2[p2WaterCloudProb] > ts.WaterCloudProb) ||
			(pcp && !water && p2[p2LandCloudProb] > ts.LandCloudProb) ||
			(!water && p2[p2LandCloudProb] > 0.99) ||
			(bt < ts.LowerLandTemp-35)

		if cloud {
			return []float64{MaskCloud}, nil
		}
		return []float64{MaskClear}, nil
	}
}

// MajorityFilter replaces each value of the single-band categorical
// mask with the majority vote of its size×size neighborhood,
// removing isolated cloud pixels and filling small holes. The mask
// is edited in place; votes are taken against an internal snapshot
// so neighbor reads never observe partially filtered values.
func MajorityFilter(mask *Raster, size int) error {
	if size < 3 || size%2 == 0 {
		return fmt.Errorf("cloudmask: majority filter size %d: %w", size, ErrInvalidWindowSize)
	}
	if mask.Bands() != 1 {
		return fmt.Errorf("cloudmask: majority filter requires a single-band mask; got %d bands: %w",
			mask.Bands(), ErrBandCountMismatch)
	}
	snap := mask.Copy()
	half := size / 2

	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			for row := pp; row < mask.Rows(); row += nprocs {
				for col := 0; col < mask.Cols(); col++ {
					n, cloud := 0, 0
					for i := row - half; i <= row+half; i++ {
						if i < 0 || i >= mask.Rows() {
							continue
						}
						for j := col - half; j <= col+half; j++ {
							if j < 0 || j >= mask.Cols() {
								continue
							}
							n++
							if snap.Get(0, i, j) == MaskCloud {
								cloud++
							}
						}
					}
					if cloud*2 > n {
						mask.Set(MaskCloud, 0, row, col)
					} else {
						mask.Set(MaskClear, 0, row, col)
					}
				}
			}
		}(pp)
	}
	wg.Wait()
	return nil
}
