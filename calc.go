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
	"fmt"
	"runtime"
	"sync"
)

// A PixelFunc calculates the output band values for one pixel. The
// input slice holds the values of every band of every input raster,
// concatenated in raster order.
type PixelFunc func(in []float64) ([]float64, error)

// A WindowFunc calculates the output band values for one pixel from
// a neighborhood window.
type WindowFunc func(w *Window) ([]float64, error)

// CalcImage concurrently runs f over every pixel of the input
// rasters, writing the results to out. All inputs and out must share
// a grid. Rows are strided across the available processors; there
// are no cross-pixel dependencies within a pass.
func CalcImage(inputs []*Raster, out *Raster, f PixelFunc) error {
	if len(inputs) == 0 {
		return fmt.Errorf("cloudmask: CalcImage requires at least one input raster")
	}
	nbands := 0
	for i, in := range inputs {
		if !sameGrid(in, out) {
			return fmt.Errorf("cloudmask: CalcImage input %d does not share the output grid", i)
		}
		nbands += in.Bands()
	}

	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			vals := make([]float64, nbands)
			for row := pp; row < out.Rows(); row += nprocs {
				mu.Lock()
				stop := firstErr != nil
				mu.Unlock()
				if stop {
					return
				}
				for col := 0; col < out.Cols(); col++ {
					ii := 0
					for _, in := range inputs {
						for b := 0; b < in.Bands(); b++ {
							vals[ii] = in.Get(b, row, col)
							ii++
						}
					}
					o, err := f(vals)
					if err != nil {
						mu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						mu.Unlock()
						return
					}
					for b, v := range o {
						out.Set(v, b, row, col)
					}
				}
			}
		}(pp)
	}
	wg.Wait()
	return firstErr
}

// CalcImageWindow concurrently runs f over a size×size window at
// every pixel of in, writing the results to out. in is only read, so
// neighboring windows may be evaluated concurrently.
func CalcImageWindow(in, out *Raster, size int, f WindowFunc) error {
	if !sameGrid(in, out) {
		return fmt.Errorf("cloudmask: CalcImageWindow input does not share the output grid")
	}
	if size < 1 || size%2 == 0 {
		return fmt.Errorf("cloudmask: window size %d: %w", size, ErrInvalidWindowSize)
	}

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
					w := &Window{r: in, row: row, col: col, size: size}
					o, err := f(w)
					if err != nil {
						mu.Lock()
						if firstErr == nil {
							firstErr = err
						}
						mu.Unlock()
						return
					}
					for b, v := range o {
						out.Set(v, b, row, col)
					}
				}
			}
		}(pp)
	}
	wg.Wait()
	return firstErr
}
