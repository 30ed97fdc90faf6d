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
	"errors"
	"fmt"
)

// Error kinds reported by the library. Callers can test for them
// with errors.Is.
var (
	// ErrInvalidWindowSize means a window of the wrong size was
	// supplied to an operation with a fixed neighborhood requirement.
	ErrInvalidWindowSize = errors.New("invalid window size")

	// ErrInvalidBandIndex means a band index outside the raster was
	// requested.
	ErrInvalidBandIndex = errors.New("band index is not within the raster")

	// ErrBandCountMismatch means rasters that must agree on band
	// count do not.
	ErrBandCountMismatch = errors.New("band counts do not match")

	// ErrDegenerateStatistics means a region sample was too small to
	// yield a reliable percentile.
	ErrDegenerateStatistics = errors.New("too few samples for reliable statistics")

	// ErrRayExtraction means the terrain could not be sampled along a
	// sun ray.
	ErrRayExtraction = errors.New("unable to sample terrain along ray")
)

// A StageError reports which pipeline stage failed and why. A failed
// stage aborts the whole pipeline; no partial mask is returned.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("cloudmask: stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
