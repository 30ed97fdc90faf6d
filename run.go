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
	"fmt"
)

// Attribute store columns written by the pipelines.
const (
	ColLowerTempThres      = "LowerTempThres"
	ColUpperTempThres      = "UpperTempThres"
	ColUpperCloudLandThres = "UpperCloudLandThres"
	ColLowerNIRLand175     = "LowerNIRLandValue175"
)

// DefaultScaleFactor is the integer scaling of the calibrated input
// rasters: reflectance × DefaultScaleFactor and °C ×
// DefaultScaleFactor.
const DefaultScaleFactor = 1000

// majorityFilterSize is the edge length of the cloud-mask cleanup
// window.
const majorityFilterSize = 5

// Config holds the per-run configuration shared by the cloud and
// shadow mask pipelines.
type Config struct {
	// ScaleFactor is the integer scaling of the calibrated inputs.
	// If zero, DefaultScaleFactor is used.
	ScaleFactor float64

	// MinSampleCount guards the percentile thresholds; zero means
	// DefaultMinSampleCount.
	MinSampleCount int

	// Pass1 holds the first-pass classification constants. The zero
	// value is replaced by DefaultPass1Thresholds.
	Pass1 Pass1Thresholds

	// KeepIntermediate retains the pass-1, partition, and
	// probability rasters for diagnostics instead of discarding
	// them when the run completes.
	KeepIntermediate bool

	// Progress optionally receives status messages.
	Progress chan string
}

func (c *Config) scale() float64 {
	if c.ScaleFactor == 0 {
		return DefaultScaleFactor
	}
	return c.ScaleFactor
}

func (c *Config) pass1Thresholds() Pass1Thresholds {
	if c.Pass1 == (Pass1Thresholds{}) {
		return DefaultPass1Thresholds()
	}
	return c.Pass1
}

func (c *Config) aggregator() *RegionAggregator {
	return &RegionAggregator{
		MinSampleCount: c.MinSampleCount,
		Progress:       c.Progress,
	}
}

func (c *Config) progress(msg string) {
	if c.Progress != nil {
		c.Progress <- msg
	}
}

// CloudMaskPipeline drives the multi-pass cloud classification. The
// stages run strictly forward; each consumes the complete output of
// its predecessor, and any stage failure aborts the run.
//
// The inputs are calibrated rasters on a shared grid: top-of-
// atmosphere reflectance (bands ordered blue, green, red, NIR,
// SWIR1, SWIR2), thermal brightness temperature, and a saturation
// raster with one band per reflectance and thermal band.
type CloudMaskPipeline struct {
	Config Config

	Refl       *Raster
	Thermal    *Raster
	Saturation *Raster

	// Valid optionally marks the observed pixels (single band, 1 =
	// observed). Unobserved pixels are excluded from the partition
	// and always clear in the final mask.
	Valid *Raster

	// Store carries the percentile thresholds between stages. If
	// nil, an in-memory store is used.
	Store AttributeStore

	// Thresholds is frozen after PROBABILITY_THRESHOLDS completes.
	Thresholds ThresholdSet

	// CloudMask holds the final mask after a successful run.
	CloudMask *Raster

	pass1     *Raster
	landWater *Raster
	prob      *Raster
}

// Run executes the pipeline. On failure the returned error is a
// *StageError naming the failed stage, and no mask is produced.
func (p *CloudMaskPipeline) Run() error {
	if p.Store == nil {
		p.Store = NewMemAttributeStore()
	}
	if err := p.checkInputs(); err != nil {
		return &StageError{Stage: "PASS1_CLASSIFY", Err: err}
	}
	stages := []struct {
		name string
		f    func() error
	}{
		{"PASS1_CLASSIFY", p.pass1Classify},
		{"LANDWATER_PARTITION", p.partitionLandWater},
		{"THERMAL_THRESHOLDS", p.thermalThresholds},
		{"PASS2_PROBABILITY", p.pass2Probability},
		{"PROBABILITY_THRESHOLDS", p.probabilityThresholds},
		{"PASS2_FINAL", p.pass2Final},
		{"MAJORITY_FILTER", p.majorityFilter},
	}
	for _, s := range stages {
		p.Config.progress("running stage " + s.name)
		if err := s.f(); err != nil {
			p.CloudMask = nil
			return &StageError{Stage: s.name, Err: err}
		}
	}
	if !p.Config.KeepIntermediate {
		// landWater is kept for the shadow pipeline.
		p.pass1, p.prob = nil, nil
	}
	return nil
}

// Diagnostics returns the retained intermediate rasters. The pass-1
// and probability rasters are nil unless Config.KeepIntermediate was
// set.
func (p *CloudMaskPipeline) Diagnostics() (pass1, landWater, probability *Raster) {
	return p.pass1, p.landWater, p.prob
}

// LandWater returns the land/water partition raster, which is
// retained for use by the shadow pipeline regardless of
// KeepIntermediate while the pipeline object is alive.
func (p *CloudMaskPipeline) LandWater() *Raster { return p.landWater }

// checkInputs verifies the input rasters agree before any I/O: all
// present, on one grid, and with a saturation band for every
// reflectance and thermal band.
func (p *CloudMaskPipeline) checkInputs() error {
	if p.Refl == nil || p.Thermal == nil || p.Saturation == nil {
		return fmt.Errorf("cloudmask: reflectance, thermal, and saturation rasters are all required")
	}
	for _, r := range []*Raster{p.Thermal, p.Saturation} {
		if !sameGrid(p.Refl, r) {
			return fmt.Errorf("cloudmask: input rasters do not share a grid")
		}
	}
	if n := p.Refl.Bands(); n != 6 && n != 7 {
		return fmt.Errorf("cloudmask: reflectance raster has %d bands; 6 or 7 required: %w",
			n, ErrBandCountMismatch)
	}
	if n := p.Refl.Bands() + p.Thermal.Bands(); p.Saturation.Bands() != n {
		return fmt.Errorf("cloudmask: saturation raster has %d bands for %d reflectance+thermal bands: %w",
			p.Saturation.Bands(), n, ErrBandCountMismatch)
	}
	if p.Valid != nil {
		if !sameGrid(p.Refl, p.Valid) {
			return fmt.Errorf("cloudmask: valid raster does not share the input grid")
		}
		if p.Valid.Bands() != 1 {
			return fmt.Errorf("cloudmask: valid raster has %d bands; 1 required: %w",
				p.Valid.Bands(), ErrBandCountMismatch)
		}
	}
	return nil
}

func (p *CloudMaskPipeline) pass1Classify() error {
	p.pass1 = p.Refl.NewCompatible(numPass1Bands)
	f := pass1Func(p.Config.pass1Thresholds(), p.Config.scale(),
		p.Refl.Bands(), p.Thermal.Bands())
	return CalcImage([]*Raster{p.Refl, p.Thermal, p.Saturation}, p.pass1, f)
}

func (p *CloudMaskPipeline) partitionLandWater() error {
	p.landWater = p.Refl.NewCompatible(1)
	inputs := []*Raster{p.pass1}
	if p.Valid != nil {
		inputs = append(inputs, p.Valid)
	}
	return CalcImage(inputs, p.landWater, landWaterFunc(p.Valid != nil))
}

// thermalThresholds derives the 17.5th and 82.5th percentile
// brightness temperatures of the clear-sky land and water regions.
// A missing land sample aborts the run; a missing water sample
// disables the water cloud branch explicitly.
func (p *CloudMaskPipeline) thermalThresholds() error {
	agg := p.Config.aggregator()
	scale := p.Config.scale()

	lower, err := agg.PercentileToStore(p.Store, ColLowerTempThres,
		p.landWater, p.Thermal, 0, RegionLand, 17.5)
	if err != nil {
		return err
	}
	upper, err := agg.PercentileToStore(p.Store, ColUpperTempThres,
		p.landWater, p.Thermal, 0, RegionLand, 82.5)
	if err != nil {
		return err
	}
	p.Thresholds.LowerLandTemp = lower / scale
	p.Thresholds.UpperLandTemp = upper / scale
	p.Config.progress(fmt.Sprintf("land temperature thresholds: [%g, %g]",
		p.Thresholds.LowerLandTemp, p.Thresholds.UpperLandTemp))

	lower, errLo := agg.PercentileToStore(p.Store, ColLowerTempThres,
		p.landWater, p.Thermal, 0, RegionWater, 17.5)
	upper, errUp := agg.PercentileToStore(p.Store, ColUpperTempThres,
		p.landWater, p.Thermal, 0, RegionWater, 82.5)
	switch {
	case isDegenerate(errLo) || isDegenerate(errUp):
		p.Thresholds.WaterValid = false
		p.Config.progress("clear-sky water sample below minimum count; water cloud branch disabled")
	case errLo != nil:
		return errLo
	case errUp != nil:
		return errUp
	default:
		p.Thresholds.WaterValid = true
		p.Thresholds.LowerWaterTemp = lower / scale
		p.Thresholds.UpperWaterTemp = upper / scale
		p.Config.progress(fmt.Sprintf("water temperature thresholds: [%g, %g]",
			p.Thresholds.LowerWaterTemp, p.Thresholds.UpperWaterTemp))
	}
	return nil
}

func (p *CloudMaskPipeline) pass2Probability() error {
	p.prob = p.Refl.NewCompatible(numPass2Bands)
	f := pass2Func(p.Thresholds, p.Config.scale(), p.Refl.Bands(), p.Thermal.Bands())
	return CalcImage([]*Raster{p.landWater, p.Refl, p.Thermal, p.pass1}, p.prob, f)
}

// probabilityThresholds freezes the cloud probability thresholds:
// the 82.5th percentile of land cloud probability over clear-sky
// land, widened by 0.2, and a fixed conservative 0.5 for water.
// Water-surface statistics are too unstable to derive the water
// threshold from the scene.
func (p *CloudMaskPipeline) probabilityThresholds() error {
	agg := p.Config.aggregator()
	land, err := agg.PercentileToStore(p.Store, ColUpperCloudLandThres,
		p.landWater, p.prob, p2LandCloudProb, RegionLand, 82.5)
	if err != nil {
		return err
	}
	p.Thresholds.LandCloudProb = land + 0.2
	p.Thresholds.WaterCloudProb = 0.5
	p.Config.progress(fmt.Sprintf("cloud probability thresholds: land %g, water %g",
		p.Thresholds.LandCloudProb, p.Thresholds.WaterCloudProb))
	return nil
}

func (p *CloudMaskPipeline) pass2Final() error {
	p.CloudMask = p.Refl.NewCompatible(1)
	f := finalMaskFunc(p.Thresholds, p.Config.scale(), p.Refl.Bands(), p.Thermal.Bands(),
		p.Valid != nil)
	inputs := []*Raster{p.landWater, p.Refl, p.Thermal, p.pass1, p.prob}
	if p.Valid != nil {
		inputs = append(inputs, p.Valid)
	}
	return CalcImage(inputs, p.CloudMask, f)
}

func (p *CloudMaskPipeline) majorityFilter() error {
	return MajorityFilter(p.CloudMask, majorityFilterSize)
}

func isDegenerate(err error) bool {
	return errors.Is(err, ErrDegenerateStatistics)
}
