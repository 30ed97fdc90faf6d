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
	"container/heap"
	"fmt"
)

// Shadow mask values.
const (
	ShadowClear     = 0
	ShadowCandidate = 1
)

// ShadowDiffMin is the minimum drop between the filled and observed
// NIR surfaces, in reflectance units, for a pixel to become a shadow
// candidate. Shadows darken the NIR band; a filled minus observed
// difference smaller than this is noise.
const ShadowDiffMin = 0.02

// ShadowMaskPipeline derives potential cloud-shadow pixels from the
// NIR band. Shadowed surfaces are dark in the NIR; filling the NIR
// image from its borders and differencing against the original
// exposes local dark depressions, which are then screened against
// the clear-sky land NIR statistics.
//
// Refl and Valid must share a grid; Valid is a single-band raster
// with 1 marking observed pixels. LandWater is the region partition
// from a CloudMaskPipeline run.
type ShadowMaskPipeline struct {
	Config Config

	Refl      *Raster
	Valid     *Raster
	LandWater *Raster

	Store AttributeStore

	// ShadowMask holds the candidate mask after a successful run.
	ShadowMask *Raster

	nirThres  float64
	nir       *Raster
	nirFilled *Raster
}

// Run executes the pipeline. On failure the returned error is a
// *StageError naming the failed stage, and no mask is produced.
func (p *ShadowMaskPipeline) Run() error {
	if p.Store == nil {
		p.Store = NewMemAttributeStore()
	}
	if err := p.checkInputs(); err != nil {
		return &StageError{Stage: "NIR_THRESHOLD", Err: err}
	}
	stages := []struct {
		name string
		f    func() error
	}{
		{"NIR_THRESHOLD", p.nirThreshold},
		{"NIR_EXTRACT", p.nirExtract},
		{"NIR_FILL", p.nirFill},
		{"SHADOW_TEST", p.shadowTest},
	}
	for _, s := range stages {
		p.Config.progress("running stage " + s.name)
		if err := s.f(); err != nil {
			p.ShadowMask = nil
			return &StageError{Stage: s.name, Err: err}
		}
	}
	if !p.Config.KeepIntermediate {
		p.nir, p.nirFilled = nil, nil
	}
	return nil
}

// Diagnostics returns the retained NIR and filled-NIR rasters. Both
// are nil unless Config.KeepIntermediate was set.
func (p *ShadowMaskPipeline) Diagnostics() (nir, nirFilled *Raster) {
	return p.nir, p.nirFilled
}

func (p *ShadowMaskPipeline) checkInputs() error {
	if p.Refl == nil || p.Valid == nil || p.LandWater == nil {
		return fmt.Errorf("cloudmask: reflectance, valid, and land/water rasters are all required")
	}
	for _, r := range []*Raster{p.Valid, p.LandWater} {
		if !sameGrid(p.Refl, r) {
			return fmt.Errorf("cloudmask: input rasters do not share a grid")
		}
	}
	if p.Valid.Bands() != 1 || p.LandWater.Bands() != 1 {
		return fmt.Errorf("cloudmask: valid and land/water rasters must be single-band: %w",
			ErrBandCountMismatch)
	}
	return nil
}

// nirBand returns the index of the NIR band, accounting for the
// coastal aerosol band of seven-band reflectance stacks.
func (p *ShadowMaskPipeline) nirBand() int {
	return reflOffset(p.Refl.Bands()) + BandNIR
}

// nirThreshold derives the 17.5th percentile of NIR over clear-sky
// land, the darkness bound below which a depression can plausibly be
// a shadow.
func (p *ShadowMaskPipeline) nirThreshold() error {
	agg := p.Config.aggregator()
	v, err := agg.PercentileToStore(p.Store, ColLowerNIRLand175,
		p.LandWater, p.Refl, p.nirBand(), RegionLand, 17.5)
	if err != nil {
		return err
	}
	p.nirThres = v
	p.Config.progress(fmt.Sprintf("land NIR darkness threshold: %g", v/p.Config.scale()))
	return nil
}

func (p *ShadowMaskPipeline) nirExtract() error {
	p.nir = p.Refl.NewCompatible(1)
	band := p.nirBand()
	return CalcImage([]*Raster{p.Refl}, p.nir, func(in []float64) ([]float64, error) {
		return []float64{in[band]}, nil
	})
}

func (p *ShadowMaskPipeline) nirFill() error {
	p.nirFilled = soilleGratinFill(p.nir, p.Valid, p.nirThres)
	return nil
}

// shadowTest flags pixels where the filled NIR surface sits
// meaningfully above the observed one and both sit below the land
// darkness threshold.
func (p *ShadowMaskPipeline) shadowTest() error {
	p.ShadowMask = p.Refl.NewCompatible(1)
	scale := p.Config.scale()
	thres := p.nirThres
	return CalcImage([]*Raster{p.Valid, p.nir, p.nirFilled}, p.ShadowMask,
		func(in []float64) ([]float64, error) {
			valid, nir, fill := in[0], in[1], in[2]
			if valid == 1 && (fill-nir)/scale > ShadowDiffMin &&
				nir < thres && fill <= thres {
				return []float64{ShadowCandidate}, nil
			}
			return []float64{ShadowClear}, nil
		})
}

// fillCell is a priority queue entry for the flood fill.
type fillCell struct {
	row, col int
	level    float64
}

type fillHeap []fillCell

func (h fillHeap) Len() int            { return len(h) }
func (h fillHeap) Less(i, j int) bool  { return h[i].level < h[j].level }
func (h fillHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *fillHeap) Push(x interface{}) { *h = append(*h, x.(fillCell)) }
func (h *fillHeap) Pop() interface{} {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}

// soilleGratinFill performs a priority-queue morphological fill of
// the single-band surface in nir (Soille and Gratin, 1994). Border
// pixels of the valid region are seeded at their own value and the
// fill floods inward, raising each pixel to the level of its lowest
// connecting path to the border. Invalid pixels take seedLevel.
func soilleGratinFill(nir, valid *Raster, seedLevel float64) *Raster {
	rows, cols := nir.Rows(), nir.Cols()
	out := nir.NewCompatible(1)
	done := make([]bool, rows*cols)

	isValid := func(row, col int) bool {
		return valid.Get(0, row, col) == 1
	}
	// A border pixel of the valid region touches the raster edge or
	// an invalid neighbor.
	isBorder := func(row, col int) bool {
		if row == 0 || row == rows-1 || col == 0 || col == cols-1 {
			return true
		}
		for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			if !isValid(row+d[0], col+d[1]) {
				return true
			}
		}
		return false
	}

	h := &fillHeap{}
	heap.Init(h)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if !isValid(row, col) {
				out.Set(seedLevel, 0, row, col)
				done[row*cols+col] = true
				continue
			}
			if isBorder(row, col) {
				heap.Push(h, fillCell{row, col, nir.Get(0, row, col)})
			}
		}
	}

	for h.Len() > 0 {
		c := heap.Pop(h).(fillCell)
		i := c.row*cols + c.col
		if done[i] {
			continue
		}
		done[i] = true
		out.Set(c.level, 0, c.row, c.col)
		for _, d := range [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nr, nc := c.row+d[0], c.col+d[1]
			if nr < 0 || nr >= rows || nc < 0 || nc >= cols {
				continue
			}
			if done[nr*cols+nc] || !isValid(nr, nc) {
				continue
			}
			level := nir.Get(0, nr, nc)
			if c.level > level {
				level = c.level
			}
			heap.Push(h, fillCell{nr, nc, level})
		}
	}
	return out
}
