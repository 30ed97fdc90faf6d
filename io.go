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
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/cdf"
)

// WriteRaster writes r to w in NetCDF format. Each band becomes a
// variable with dimensions [y, x]; the geotransform and NoData value
// are stored as global attributes. Bands without names are called
// band0, band1, and so on.
func WriteRaster(w *os.File, r *Raster) error {
	h := cdf.NewHeader([]string{"y", "x"}, []int{r.Rows(), r.Cols()})
	h.AddAttribute("", "x0", []float64{r.X0})
	h.AddAttribute("", "y0", []float64{r.Y0})
	h.AddAttribute("", "ewres", []float64{r.EWRes})
	h.AddAttribute("", "nsres", []float64{r.NSRes})
	h.AddAttribute("", "nodata", []float64{r.NoData})
	names := make([]string, r.Bands())
	for b := 0; b < r.Bands(); b++ {
		names[b] = bandName(r, b)
		h.AddVariable(names[b], []string{"y", "x"}, []float32{0})
	}
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("cloudmask: creating netcdf file: %v", err)
	}
	n := r.Rows() * r.Cols()
	for b := 0; b < r.Bands(); b++ {
		data := make([]float32, n)
		for i, v := range r.Data.Elements[b*n : (b+1)*n] {
			data[i] = float32(v)
		}
		ww := f.Writer(names[b], []int{0, 0}, []int{r.Rows(), r.Cols()})
		if _, err := ww.Write(data); err != nil {
			return fmt.Errorf("cloudmask: writing variable %s: %v", names[b], err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

// ReadRaster reads a raster written by WriteRaster.
func ReadRaster(w *os.File) (*Raster, error) {
	f, err := cdf.Open(w)
	if err != nil {
		return nil, fmt.Errorf("cloudmask: opening netcdf file: %v", err)
	}
	// The shape comes from a variable; Lengths resolves variable
	// names, not dimension names.
	vars := f.Header.Variables()
	rows, cols := 0, 0
	for _, v := range vars {
		if dims := f.Header.Lengths(v); len(dims) == 2 {
			rows, cols = dims[0], dims[1]
			break
		}
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("cloudmask: netcdf file contains no [y, x] variables")
	}
	attr := func(name string) float64 {
		if a := f.Header.GetAttribute("", name); a != nil {
			return a.([]float64)[0]
		}
		return 0
	}
	ewRes, nsRes := attr("ewres"), attr("nsres")
	if ewRes == 0 {
		ewRes = 1
	}
	if nsRes == 0 {
		nsRes = 1
	}
	r, err := NewRaster(len(vars), rows, cols, attr("x0"), attr("y0"), ewRes, nsRes)
	if err != nil {
		return nil, err
	}
	r.NoData = attr("nodata")
	r.BandNames = make([]string, len(vars))
	n := rows * cols
	for b, v := range vars {
		r.BandNames[b] = v
		rr := f.Reader(v, nil, nil)
		buf := rr.Zero(n)
		if _, err := rr.Read(buf); err != nil {
			return nil, fmt.Errorf("cloudmask: reading variable %s: %v", v, err)
		}
		for i, val := range buf.([]float32) {
			r.Data.Elements[b*n+i] = float64(val)
		}
	}
	return r, nil
}

// WriteRasterFile writes r to a NetCDF file at path.
func WriteRasterFile(path string, r *Raster) error {
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()
	return WriteRaster(w, r)
}

// ReadRasterFile reads a raster from the NetCDF file at path.
func ReadRasterFile(path string) (*Raster, error) {
	w, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer w.Close()
	return ReadRaster(w)
}

// A FileSink is a RasterSink writing NetCDF files into a directory,
// one file per raster name.
type FileSink struct {
	// Dir is the output directory. It is created if absent.
	Dir string
}

// WriteRaster writes r to Dir/name.nc.
func (s *FileSink) WriteRaster(name string, r *Raster) error {
	if err := os.MkdirAll(s.Dir, os.ModePerm); err != nil {
		return err
	}
	name = strings.Replace(name, string(os.PathSeparator), "_", -1)
	return WriteRasterFile(filepath.Join(s.Dir, name+".nc"), r)
}

func bandName(r *Raster, b int) string {
	if b < len(r.BandNames) && r.BandNames[b] != "" {
		return r.BandNames[b]
	}
	return fmt.Sprintf("band%d", b)
}
