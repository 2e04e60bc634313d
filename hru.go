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
	"sort"

	"github.com/ctessum/sparse"
)

// Land use classes, following the CWatM convention for the subset that
// can occur on hydrologic response units.
const (
	LandUseForest    = 0
	LandUseGrassland = 1 // grassland and non-irrigated land
	LandUseSealed    = 4
	LandUseWater     = 5
)

// NoOwner marks a unit or sub-cell without a farm owner.
const NoOwner = -1

// Units holds the hydrologic response units of a Grid: the sub-grid
// regions, each within a single grid cell, that are homogeneous in
// land use class or belong to a single farm. All bulk land-surface
// state is stored as one value per unit; the index arrays here relate
// units to grid cells and to the underlying sub-cell raster.
//
// Units of one cell are contiguous, so the units belonging to
// compressed cell c are the index range [CellUnitEnd[c-1],
// CellUnitEnd[c]), with an implicit 0 for the first cell.
type Units struct {
	// Scaling is the number of sub-cells along each cell edge, so
	// every cell contains Scaling*Scaling sub-cells and the sub-cell
	// raster has shape [Ny*Scaling, Nx*Scaling].
	Scaling int

	// LandUseType is the land use class of each unit.
	LandUseType []int32

	// LandUseRatio is the fraction of its grid cell that each unit
	// covers. The ratios of each cell's units sum to 1.
	LandUseRatio []float64

	// Owners is the farm id owning each unit, or NoOwner.
	Owners []int32

	// UnitCell is the compressed index of the grid cell containing
	// each unit.
	UnitCell []int32

	// CellUnitEnd is, for each compressed grid cell, one past the
	// index of the cell's last unit.
	CellUnitEnd []int32

	// CellUnitEndFull is CellUnitEnd spread over the full grid;
	// masked cells repeat the value of the preceding cell in
	// row-major order (0 before the first non-masked cell).
	CellUnitEndFull []int32

	// SubcellUnit maps sub-cells to units. It is stored as one block
	// of Scaling*Scaling entries per compressed cell, in compressed
	// cell order; within a block, sub-cells appear in row-major
	// order.
	SubcellUnit []int32

	// CellArea is the horizontal area of the grid cell containing
	// each unit [m2].
	CellArea []float64

	// Backend, if non-nil, performs the array arithmetic for the
	// conversion operations. The default is the host backend.
	Backend Backend

	grid *Grid
}

// NewUnits builds the hydrologic response units for grid g from the
// farms and landUse rasters, which must have shape
// [Ny*scaling, Nx*scaling]. Each entry of farms is a farm id or
// NoOwner; each entry of landUse is one of the land use class
// constants. Within each cell, the owned sub-cells become one unit per
// farm and the remaining sub-cells one unit per land use class, so a
// farm spanning several cells yields one unit in each.
func NewUnits(g *Grid, farms, landUse *sparse.DenseArrayInt, scaling int) (*Units, error) {
	if scaling < 1 {
		return nil, fmt.Errorf("landunit: scaling must be at least 1 but is %d", scaling)
	}
	ys, xs := g.Ny*scaling, g.Nx*scaling
	if len(farms.Shape) != 2 || farms.Shape[0] != ys || farms.Shape[1] != xs {
		return nil, fmt.Errorf("landunit: farms raster shape %v does not match grid %d x %d at scaling %d",
			farms.Shape, g.Ny, g.Nx, scaling)
	}
	if len(landUse.Shape) != 2 || landUse.Shape[0] != ys || landUse.Shape[1] != xs {
		return nil, fmt.Errorf("landunit: land use raster shape %v does not match grid %d x %d at scaling %d",
			landUse.Shape, g.Ny, g.Nx, scaling)
	}

	s2 := scaling * scaling
	u := &Units{
		Scaling:         scaling,
		CellUnitEnd:     make([]int32, 0, g.N()),
		CellUnitEndFull: make([]int32, g.Size()),
		SubcellUnit:     make([]int32, 0, g.N()*s2),
		grid:            g,
	}

	// Scratch for one cell's sub-cells.
	cellFarms := make([]int32, s2)
	cellClasses := make([]int32, s2)
	sortIdx := make([]int, s2)
	unitSize := make([]int32, 0, 8)

	var j int32 // unit counter
	cc := 0     // compressed cell counter
	for y := 0; y < g.Ny; y++ {
		for x := 0; x < g.Nx; x++ {
			full := y*g.Nx + x
			if g.mask[full] {
				u.CellUnitEndFull[full] = j
				continue
			}
			for ys := 0; ys < scaling; ys++ {
				for xs := 0; xs < scaling; xs++ {
					k := ys*scaling + xs
					cellFarms[k] = int32(farms.Get(y*scaling+ys, x*scaling+xs))
					cellClasses[k] = int32(landUse.Get(y*scaling+ys, x*scaling+xs))
					switch cellClasses[k] {
					case LandUseForest, LandUseGrassland, LandUseSealed, LandUseWater:
					default:
						return nil, fmt.Errorf("landunit: invalid land use class %d in cell (%d, %d)",
							cellClasses[k], y, x)
					}
					if cellFarms[k] < NoOwner {
						return nil, fmt.Errorf("landunit: invalid farm id %d in cell (%d, %d)",
							cellFarms[k], y, x)
					}
					sortIdx[k] = k
				}
			}
			for k := 0; k < s2; k++ {
				u.SubcellUnit = append(u.SubcellUnit, -1)
			}

			// Owned sub-cells first, grouped by farm.
			sort.SliceStable(sortIdx, func(a, b int) bool {
				return cellFarms[sortIdx[a]] < cellFarms[sortIdx[b]]
			})
			prevFarm := int32(NoOwner)
			for _, k := range sortIdx {
				farm := cellFarms[k]
				if farm == NoOwner {
					continue
				}
				if farm != prevFarm {
					u.LandUseType = append(u.LandUseType, cellClasses[k])
					u.Owners = append(u.Owners, farm)
					u.UnitCell = append(u.UnitCell, int32(cc))
					unitSize = append(unitSize, 1)
					prevFarm = farm
					j++
				} else {
					if cellClasses[k] != u.LandUseType[j-1] {
						return nil, fmt.Errorf("landunit: farm %d in cell (%d, %d) mixes land use classes %d and %d",
							farm, y, x, u.LandUseType[j-1], cellClasses[k])
					}
					unitSize[j-1]++
				}
				u.SubcellUnit[k+cc*s2] = j - 1
			}

			// Then the unowned remainder, grouped by land use class.
			for k := range sortIdx {
				sortIdx[k] = k
			}
			sort.SliceStable(sortIdx, func(a, b int) bool {
				return cellClasses[sortIdx[a]] < cellClasses[sortIdx[b]]
			})
			prevClass := int32(-1)
			for _, k := range sortIdx {
				if cellFarms[k] != NoOwner {
					continue
				}
				class := cellClasses[k]
				if class != prevClass {
					u.LandUseType = append(u.LandUseType, class)
					u.Owners = append(u.Owners, NoOwner)
					u.UnitCell = append(u.UnitCell, int32(cc))
					unitSize = append(unitSize, 1)
					prevClass = class
					j++
				} else {
					unitSize[j-1]++
				}
				u.SubcellUnit[k+cc*s2] = j - 1
			}

			u.CellUnitEnd = append(u.CellUnitEnd, j)
			u.CellUnitEndFull[full] = j
			cc++
		}
	}

	var total int32
	for _, n := range unitSize {
		total += n
	}
	if int(total) != g.N()*s2 {
		return nil, fmt.Errorf("landunit: %d sub-cells assigned to units but the grid has %d",
			total, g.N()*s2)
	}

	u.LandUseRatio = make([]float64, len(unitSize))
	for i, n := range unitSize {
		u.LandUseRatio[i] = float64(n) / float64(s2)
	}
	for c, end := range u.CellUnitEnd {
		start := int32(0)
		if c > 0 {
			start = u.CellUnitEnd[c-1]
		}
		var sum float64
		for i := start; i < end; i++ {
			sum += u.LandUseRatio[i]
		}
		if !isclose(sum, 1) {
			return nil, fmt.Errorf("landunit: unit area ratios in compressed cell %d sum to %g", c, sum)
		}
	}

	// Each unit carries the area of its containing cell; Area derives
	// the unit's own share from it.
	var err error
	u.CellArea, err = u.ToUnits(g.CellArea, "copy")
	if err != nil {
		return nil, err
	}
	return u, nil
}

// N returns the number of units.
func (u *Units) N() int { return len(u.LandUseRatio) }

// Grid returns the grid the units subdivide.
func (u *Units) Grid() *Grid { return u.grid }

// Range returns the index range [start, end) of the units in the grid
// cell with compressed index c.
func (u *Units) Range(c int) (start, end int32) {
	if c > 0 {
		start = u.CellUnitEnd[c-1]
	}
	return start, u.CellUnitEnd[c]
}

// Full returns a per-unit array with every entry set to v, standing in
// for broadcasting a scalar across the units.
func (u *Units) Full(v float64) []float64 {
	out := u.backend().Zeros(u.N())
	if v != 0 {
		u.backend().Fill(out, v)
	}
	return out
}

// Area returns the horizontal area of each unit [m2], which is its
// share of its cell's area.
func (u *Units) Area() []float64 {
	out := make([]float64, u.N())
	for i, r := range u.LandUseRatio {
		out[i] = r * u.CellArea[i]
	}
	return out
}

func (u *Units) backend() Backend {
	if u.Backend == nil {
		return HostBackend()
	}
	return u.Backend
}
