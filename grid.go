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
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
	"github.com/ctessum/unit"
)

// Grid is a rectangular simulation grid with a static cell mask.
// Cells where the mask is set take no part in the simulation; arrays
// holding per-cell data therefore come in two layouts: the full
// row-major raster ([Ny, Nx]) and the compressed form, a 1-D array
// over the non-masked cells only, in row-major order. Grid converts
// between the two layouts and holds the cell geometry.
type Grid struct {
	// Nx and Ny are the number of grid columns and rows.
	Nx, Ny int

	// Dx and Dy are the cell edge lengths [m].
	Dx, Dy float64

	// X0 and Y0 are the west and north edges of the grid [m]. Rows
	// run from north to south, matching raster storage order.
	X0, Y0 float64

	// CellArea is the horizontal area of each non-masked cell [m2],
	// in compressed order.
	CellArea []float64

	mask      []bool  // row-major; true = excluded
	fullIndex []int32 // compressed index to full row-major index
}

// NewGrid creates a Grid from a mask raster with shape [Ny, Nx], where
// nonzero mask values exclude the cell. cellArea gives each cell's
// horizontal area [m2]; it may be nil, in which case a uniform area of
// dx*dy is used for every cell. dx, dy, x0 and y0 georeference the
// raster in a projected (meter-based) coordinate system, y0 being the
// north edge.
func NewGrid(mask, cellArea *sparse.DenseArray, dx, dy, x0, y0 float64) (*Grid, error) {
	if mask == nil || len(mask.Shape) != 2 {
		return nil, fmt.Errorf("landunit: grid mask must be a 2-d array")
	}
	if dx <= 0 || dy <= 0 {
		return nil, fmt.Errorf("landunit: invalid grid cell size %g x %g", dx, dy)
	}
	g := &Grid{
		Ny: mask.Shape[0],
		Nx: mask.Shape[1],
		Dx: dx,
		Dy: dy,
		X0: x0,
		Y0: y0,
	}
	if cellArea != nil {
		if cellArea.Shape[0] != g.Ny || cellArea.Shape[1] != g.Nx {
			return nil, fmt.Errorf("landunit: cell area shape %v does not match mask shape %v",
				cellArea.Shape, mask.Shape)
		}
	}
	uniformArea := unit.Mul(unit.New(dx, unit.Meter), unit.New(dy, unit.Meter))
	if err := uniformArea.Check(unit.Meter2); err != nil {
		return nil, fmt.Errorf("landunit: cell area: %v", err)
	}
	g.mask = make([]bool, g.Ny*g.Nx)
	for i, v := range mask.Elements {
		if v != 0 {
			g.mask[i] = true
			continue
		}
		g.fullIndex = append(g.fullIndex, int32(i))
		if cellArea != nil {
			a := cellArea.Elements[i]
			if !(a > 0) {
				return nil, fmt.Errorf("landunit: cell area %g at cell %d is not positive", a, i)
			}
			g.CellArea = append(g.CellArea, a)
		} else {
			g.CellArea = append(g.CellArea, uniformArea.Value())
		}
	}
	return g, nil
}

// N returns the number of non-masked cells, which is the length of
// every compressed array on this grid.
func (g *Grid) N() int { return len(g.fullIndex) }

// Size returns the total number of cells in the full raster.
func (g *Grid) Size() int { return g.Ny * g.Nx }

// Masked reports whether the cell at full row-major index i is
// excluded from the simulation.
func (g *Grid) Masked(i int) bool { return g.mask[i] }

// Compress extracts the non-masked entries of the full raster, in
// row-major order. It panics if the raster shape does not match the
// grid, as that is a programming error rather than a data error.
func (g *Grid) Compress(full *sparse.DenseArray) []float64 {
	if len(full.Elements) != g.Size() {
		panic(fmt.Errorf("landunit: array length %d does not match grid size %d",
			len(full.Elements), g.Size()))
	}
	out := make([]float64, g.N())
	for i, fi := range g.fullIndex {
		out[i] = full.Elements[fi]
	}
	return out
}

// Decompress scatters a compressed array back to the full raster,
// filling masked cells with fill (use math.NaN() for float data so
// masked cells are distinguishable from zeros). It panics on a length
// mismatch.
func (g *Grid) Decompress(v []float64, fill float64) *sparse.DenseArray {
	if len(v) != g.N() {
		panic(fmt.Errorf("landunit: array length %d does not match compressed grid size %d",
			len(v), g.N()))
	}
	out := sparse.ZerosDense(g.Ny, g.Nx)
	for i := range out.Elements {
		out.Elements[i] = fill
	}
	for i, fi := range g.fullIndex {
		out.Elements[fi] = v[i]
	}
	return out
}

// FullCompressed returns a compressed array with every entry set to v.
// It stands in for broadcasting a scalar across the grid.
func (g *Grid) FullCompressed(v float64) []float64 {
	out := make([]float64, g.N())
	if v != 0 {
		for i := range out {
			out[i] = v
		}
	}
	return out
}

// MtoM3 converts a compressed array of water depths [m] to volumes
// [m3] using the cell areas.
func (g *Grid) MtoM3(m []float64) []float64 {
	if len(m) != g.N() {
		panic(fmt.Errorf("landunit: array length %d does not match compressed grid size %d",
			len(m), g.N()))
	}
	out := make([]float64, len(m))
	for i, v := range m {
		out[i] = v * g.CellArea[i]
	}
	return out
}

// M3toM converts a compressed array of water volumes [m3] to depths
// [m] using the cell areas.
func (g *Grid) M3toM(m3 []float64) []float64 {
	if len(m3) != g.N() {
		panic(fmt.Errorf("landunit: array length %d does not match compressed grid size %d",
			len(m3), g.N()))
	}
	out := make([]float64, len(m3))
	for i, v := range m3 {
		out[i] = v / g.CellArea[i]
	}
	return out
}

// Bounds returns the spatial extent of the grid.
func (g *Grid) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: g.X0, Y: g.Y0 - float64(g.Ny)*g.Dy},
		Max: geom.Point{X: g.X0 + float64(g.Nx)*g.Dx, Y: g.Y0},
	}
}

// CellPolygon returns the rectangle covered by the non-masked cell at
// compressed index i.
func (g *Grid) CellPolygon(i int) geom.Polygon {
	fi := int(g.fullIndex[i])
	row, col := fi/g.Nx, fi%g.Nx
	w := g.X0 + float64(col)*g.Dx
	n := g.Y0 - float64(row)*g.Dy
	return geom.Polygon{{
		{X: w, Y: n - g.Dy},
		{X: w + g.Dx, Y: n - g.Dy},
		{X: w + g.Dx, Y: n},
		{X: w, Y: n},
	}}
}

// CellPolygons returns the rectangles covered by all non-masked cells,
// in compressed order.
func (g *Grid) CellPolygons() []geom.Polygonal {
	out := make([]geom.Polygonal, g.N())
	for i := range out {
		out[i] = g.CellPolygon(i)
	}
	return out
}

// isclose reports whether a and b are equal to within a small
// absolute and relative tolerance, the same test the builder uses for
// its area accounting checks.
func isclose(a, b float64) bool {
	const rtol, atol = 1.e-9, 1.e-12
	return math.Abs(a-b) <= atol+rtol*math.Abs(b)
}
