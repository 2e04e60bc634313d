/*
Copyright © 2019 the LandUnit authors.
This file is part of LandUnit.

LandUnit is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

LandUnit is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with LandUnit.  If not, see <http://www.gnu.org/licenses/>.
*/

package landunit

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// RasterDataVersion is the version of the raster input data required
// by this version of the software.
const RasterDataVersion = "1.0.0"

// RasterData holds the raster inputs that define a simulation domain:
// the cell mask and cell areas on the grid raster, and the farm and
// land use class rasters on the sub-cell raster, which refines each
// grid cell by a factor of Scaling in both directions.
type RasterData struct {
	Ny, Nx  int // grid raster dimensions [rows, columns]
	Scaling int // sub-cells per cell edge

	Dx, Dy float64 // cell edge lengths [m]
	X0, Y0 float64 // west and north edges of the raster [m]

	// Mask is the cell mask on the [Ny, Nx] raster; nonzero values
	// exclude the cell from the simulation.
	Mask *sparse.DenseArray

	// CellArea is the horizontal area of each cell [m2] on the
	// [Ny, Nx] raster. It may be nil, in which case every cell is
	// assigned the uniform area Dx*Dy.
	CellArea *sparse.DenseArray

	// Farms assigns each sub-cell on the [Ny*Scaling, Nx*Scaling]
	// raster to a farm, or to NoOwner.
	Farms *sparse.DenseArrayInt

	// LandUse gives the land use class of each sub-cell on the
	// [Ny*Scaling, Nx*Scaling] raster.
	LandUse *sparse.DenseArrayInt
}

// check verifies that the raster shapes are consistent with each
// other and with the scaling factor.
func (d *RasterData) check() error {
	if d.Scaling < 1 {
		return fmt.Errorf("landunit: scaling factor %d is less than 1", d.Scaling)
	}
	if d.Mask == nil || len(d.Mask.Shape) != 2 ||
		d.Mask.Shape[0] != d.Ny || d.Mask.Shape[1] != d.Nx {
		return fmt.Errorf("landunit: mask shape does not match raster dimensions [%d, %d]",
			d.Ny, d.Nx)
	}
	if d.CellArea != nil && (len(d.CellArea.Shape) != 2 ||
		d.CellArea.Shape[0] != d.Ny || d.CellArea.Shape[1] != d.Nx) {
		return fmt.Errorf("landunit: cell area shape %v does not match raster dimensions [%d, %d]",
			d.CellArea.Shape, d.Ny, d.Nx)
	}
	ys, xs := d.Ny*d.Scaling, d.Nx*d.Scaling
	for _, v := range []struct {
		name string
		data *sparse.DenseArrayInt
	}{{"farms", d.Farms}, {"land use", d.LandUse}} {
		if v.data == nil || len(v.data.Shape) != 2 ||
			v.data.Shape[0] != ys || v.data.Shape[1] != xs {
			return fmt.Errorf("landunit: %s shape does not match sub-cell raster dimensions [%d, %d]",
				v.name, ys, xs)
		}
	}
	return nil
}

// Grid creates the simulation grid described by d.
func (d *RasterData) Grid() (*Grid, error) {
	if err := d.check(); err != nil {
		return nil, err
	}
	return NewGrid(d.Mask, d.CellArea, d.Dx, d.Dy, d.X0, d.Y0)
}

// Units builds the land units described by d on grid g.
func (d *RasterData) Units(g *Grid) (*Units, error) {
	return NewUnits(g, d.Farms, d.LandUse, d.Scaling)
}

// LoadRasterData loads simulation domain rasters from a NetCDF file.
func LoadRasterData(rw cdf.ReaderWriterAt) (*RasterData, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("landunit: loading raster data: %v", err)
	}

	dataVersion := f.Header.GetAttribute("", "data_version").(string)
	if dataVersion != RasterDataVersion {
		return nil, fmt.Errorf("landunit: raster data version %s is incompatible "+
			"with the required version %s", dataVersion, RasterDataVersion)
	}

	d := new(RasterData)
	d.Dx = f.Header.GetAttribute("", "dx").([]float64)[0]
	d.Dy = f.Header.GetAttribute("", "dy").([]float64)[0]
	d.X0 = f.Header.GetAttribute("", "x0").([]float64)[0]
	d.Y0 = f.Header.GetAttribute("", "y0").([]float64)[0]
	d.Nx = int(f.Header.GetAttribute("", "nx").([]int32)[0])
	d.Ny = int(f.Header.GetAttribute("", "ny").([]int32)[0])
	d.Scaling = int(f.Header.GetAttribute("", "scaling").([]int32)[0])

	if d.Mask, err = readNCFFloat(f, "mask"); err != nil {
		return nil, err
	}
	if hasNCFVariable(f, "cell_area") {
		if d.CellArea, err = readNCFFloat(f, "cell_area"); err != nil {
			return nil, err
		}
	}
	if d.Farms, err = readNCFInt(f, "farms"); err != nil {
		return nil, err
	}
	if d.LandUse, err = readNCFInt(f, "land_use"); err != nil {
		return nil, err
	}

	if err := d.check(); err != nil {
		return nil, err
	}
	return d, nil
}

// Write writes d to netcdf file w.
func (d *RasterData) Write(w *os.File) error {
	if err := d.check(); err != nil {
		return err
	}
	h := cdf.NewHeader(
		[]string{"y", "x", "ys", "xs"},
		[]int{d.Ny, d.Nx, d.Ny * d.Scaling, d.Nx * d.Scaling})
	h.AddAttribute("", "comment", "Land unit simulation domain raster file")

	h.AddAttribute("", "x0", []float64{d.X0})
	h.AddAttribute("", "y0", []float64{d.Y0})
	h.AddAttribute("", "dx", []float64{d.Dx})
	h.AddAttribute("", "dy", []float64{d.Dy})
	h.AddAttribute("", "nx", []int32{int32(d.Nx)})
	h.AddAttribute("", "ny", []int32{int32(d.Ny)})
	h.AddAttribute("", "scaling", []int32{int32(d.Scaling)})

	h.AddAttribute("", "data_version", RasterDataVersion)

	h.AddVariable("mask", []string{"y", "x"}, []float32{0})
	h.AddAttribute("mask", "description", "Nonzero values exclude the cell from the simulation")
	h.AddAttribute("mask", "units", "-")
	if d.CellArea != nil {
		h.AddVariable("cell_area", []string{"y", "x"}, []float32{0})
		h.AddAttribute("cell_area", "description", "Horizontal area of each grid cell")
		h.AddAttribute("cell_area", "units", "m2")
	}
	h.AddVariable("farms", []string{"ys", "xs"}, []int32{0})
	h.AddAttribute("farms", "description", "Farm owning each sub-cell, or -1 for no owner")
	h.AddAttribute("farms", "units", "-")
	h.AddVariable("land_use", []string{"ys", "xs"}, []int32{0})
	h.AddAttribute("land_use", "description", "Land use class of each sub-cell")
	h.AddAttribute("land_use", "units", "-")
	h.Define()

	f, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}
	if err = writeNCFFloat(f, "mask", d.Mask); err != nil {
		return fmt.Errorf("landunit: writing variable mask to netcdf file: %v", err)
	}
	if d.CellArea != nil {
		if err = writeNCFFloat(f, "cell_area", d.CellArea); err != nil {
			return fmt.Errorf("landunit: writing variable cell_area to netcdf file: %v", err)
		}
	}
	if err = writeNCFInt(f, "farms", d.Farms); err != nil {
		return fmt.Errorf("landunit: writing variable farms to netcdf file: %v", err)
	}
	if err = writeNCFInt(f, "land_use", d.LandUse); err != nil {
		return fmt.Errorf("landunit: writing variable land_use to netcdf file: %v", err)
	}
	return cdf.UpdateNumRecs(w)
}

func hasNCFVariable(f *cdf.File, v string) bool {
	for _, vv := range f.Header.Variables() {
		if vv == v {
			return true
		}
	}
	return false
}

func readNCFFloat(f *cdf.File, v string) (*sparse.DenseArray, error) {
	dims := f.Header.Lengths(v)
	r := f.Reader(v, nil, nil)
	out := sparse.ZerosDense(dims...)
	tmp := make([]float32, len(out.Elements))
	if _, err := r.Read(tmp); err != nil {
		return nil, fmt.Errorf("landunit: reading variable %s from netcdf file: %v", v, err)
	}
	for i, val := range tmp {
		out.Elements[i] = float64(val)
	}
	return out, nil
}

func readNCFInt(f *cdf.File, v string) (*sparse.DenseArrayInt, error) {
	dims := f.Header.Lengths(v)
	r := f.Reader(v, nil, nil)
	out := sparse.ZerosDenseInt(dims...)
	tmp := make([]int32, len(out.Elements))
	if _, err := r.Read(tmp); err != nil {
		return nil, fmt.Errorf("landunit: reading variable %s from netcdf file: %v", v, err)
	}
	for i, val := range tmp {
		out.Elements[i] = int(val)
	}
	return out, nil
}

func writeNCFFloat(f *cdf.File, v string, data *sparse.DenseArray) error {
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(v)
	start := make([]int, len(end))
	w := f.Writer(v, start, end)
	_, err := w.Write(data32)
	return err
}

func writeNCFInt(f *cdf.File, v string, data *sparse.DenseArrayInt) error {
	data32 := make([]int32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = int32(e)
	}
	end := f.Header.Lengths(v)
	start := make([]int, len(end))
	w := f.Writer(v, start, end)
	_, err := w.Write(data32)
	return err
}
