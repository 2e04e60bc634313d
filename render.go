/*
Copyright © 2020 the LandUnit authors.
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
	"image/color"
	"io"
	"math"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/carto"
	"github.com/ctessum/sparse"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Decompress scatters a per-unit array back to the full sub-cell
// raster with shape [Ny*Scaling, Nx*Scaling]. Sub-cells of masked
// cells are NaN. The result is mainly useful for rendering and export;
// simulation code should stay in the compressed layouts.
func (u *Units) Decompress(unitData []float64) *sparse.DenseArray {
	if len(unitData) != u.N() {
		panic(fmt.Errorf("landunit: array length %d does not match unit count %d",
			len(unitData), u.N()))
	}
	data := u.backend().ToHost(unitData)
	g := u.grid
	out := sparse.ZerosDense(g.Ny*u.Scaling, g.Nx*u.Scaling)
	for i := range out.Elements {
		out.Elements[i] = math.NaN()
	}
	u.scatter(func(subcell, unit int32) {
		out.Elements[subcell] = data[unit]
	})
	return out
}

// DecompressInt is Decompress for integer data, with an explicit fill
// value for masked cells (conventionally -1).
func (u *Units) DecompressInt(unitData []int32, fill int32) *sparse.DenseArrayInt {
	if len(unitData) != u.N() {
		panic(fmt.Errorf("landunit: array length %d does not match unit count %d",
			len(unitData), u.N()))
	}
	g := u.grid
	out := sparse.ZerosDenseInt(g.Ny*u.Scaling, g.Nx*u.Scaling)
	for i := range out.Elements {
		out.Elements[i] = int(fill)
	}
	u.scatter(func(subcell, unit int32) {
		out.Elements[subcell] = int(unitData[unit])
	})
	return out
}

// scatter calls f for every sub-cell of every non-masked cell, passing
// the sub-cell's full raster index and its unit. SubcellUnit is
// consumed sequentially because it stores one block per compressed
// cell in the same cell order as this traversal.
func (u *Units) scatter(f func(subcell, unit int32)) {
	g := u.grid
	s := u.Scaling
	nxs := g.Nx * s
	i := 0
	for y := 0; y < g.Ny; y++ {
		for x := 0; x < g.Nx; x++ {
			if g.mask[y*g.Nx+x] {
				continue
			}
			for ys := 0; ys < s; ys++ {
				for xs := 0; xs < s; xs++ {
					f(int32((y*s+ys)*nxs+(x*s+xs)), u.SubcellUnit[i])
					i++
				}
			}
		}
	}
}

// LandUseMap returns the full-resolution land use class raster, -1
// outside the mask.
func (u *Units) LandUseMap() *sparse.DenseArrayInt {
	return u.DecompressInt(u.LandUseType, -1)
}

// OwnerMap returns the full-resolution farm ownership raster, -1
// outside the mask and on unowned units.
func (u *Units) OwnerMap() *sparse.DenseArrayInt {
	return u.DecompressInt(u.Owners, -1)
}

// UnitPolygons returns the region covered by each unit, as a polygon
// holding one ring per sub-cell square, in unit order.
func (u *Units) UnitPolygons() []geom.Polygonal {
	g := u.grid
	s := u.Scaling
	nxs := g.Nx * s
	dxs, dys := g.Dx/float64(s), g.Dy/float64(s)
	polys := make([]geom.Polygon, u.N())
	u.scatter(func(subcell, unit int32) {
		row, col := int(subcell)/nxs, int(subcell)%nxs
		w := g.X0 + float64(col)*dxs
		n := g.Y0 - float64(row)*dys
		polys[unit] = append(polys[unit], []geom.Point{
			{X: w, Y: n - dys},
			{X: w + dxs, Y: n - dys},
			{X: w + dxs, Y: n},
			{X: w, Y: n},
		})
	})
	out := make([]geom.Polygonal, len(polys))
	for i, p := range polys {
		out[i] = p
	}
	return out
}

// maskedColor is the map color for cells outside the simulation mask.
var maskedColor = color.NRGBA{R: 235, G: 235, B: 235, A: 255}

// DrawMap renders a raster to a PNG image covering bounds b, width
// pixels across. NaN cells are drawn in a neutral gray so the mask
// stays visible. The color scale is fitted to the finite values with
// the same linear-with-cutoff scheme the map server uses for its
// tiles.
func DrawMap(w io.Writer, data *sparse.DenseArray, b *geom.Bounds, width int) error {
	if len(data.Shape) != 2 {
		return fmt.Errorf("landunit: DrawMap needs a 2-d array but got shape %v", data.Shape)
	}
	ny, nx := data.Shape[0], data.Shape[1]
	finite := make([]float64, 0, len(data.Elements))
	for _, v := range data.Elements {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return fmt.Errorf("landunit: no finite values to draw")
	}
	cmap := carto.NewColorMap(carto.LinCutoff)
	cmap.AddArray(finite)
	cmap.Set()

	m := carto.NewRasterMap(b.Max.Y, b.Min.Y, b.Max.X, b.Min.X, width)
	sz := m.I.Bounds().Size()
	for py := 0; py < sz.Y; py++ {
		j := py * ny / sz.Y
		for px := 0; px < sz.X; px++ {
			i := px * nx / sz.X
			v := data.Elements[j*nx+i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				m.I.Set(px, py, maskedColor)
			} else {
				m.I.Set(px, py, cmap.GetColor(v))
			}
		}
	}
	return m.WriteTo(w)
}

// DrawLegend writes a PNG legend for the value range of data, labeled
// with label.
func DrawLegend(w io.Writer, data []float64, label string) error {
	finite := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return fmt.Errorf("landunit: no finite values for legend")
	}
	cmap := carto.NewColorMap(carto.LinCutoff)
	cmap.AddArray(finite)
	cmap.Set()
	const legendWidth = 6.2 * vg.Inch
	const legendHeight = legendWidth * 0.1067
	cmap.LegendWidth = legendWidth
	cmap.LegendHeight = legendHeight
	cmap.LineWidth = 0.5
	cmap.FontSize = 8
	c := vgimg.New(legendWidth, legendHeight)
	dc := draw.New(c)
	if err := cmap.Legend(&dc, label); err != nil {
		return fmt.Errorf("landunit: drawing legend: %v", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(w); err != nil {
		return fmt.Errorf("landunit: writing legend: %v", err)
	}
	return nil
}
