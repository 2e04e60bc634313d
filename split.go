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

import "fmt"

// DefaultSplitFraction is the conventional fraction of a unit's
// sub-cells kept by the original unit when it is split.
const DefaultSplitFraction = 0.5

// Duplicate inserts a copy of s[i] directly after position i, growing
// s by one. Use it to keep per-unit arrays of intensive quantities
// (depths, rates, indices) in step with a unit split.
func Duplicate(s []float64, i int) []float64 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	return s
}

// DuplicateScaled inserts a copy of s[i] directly after position i and
// splits the value between the two entries, frac going to position i
// and 1-frac to position i+1. Use it for extensive quantities (areas,
// volumes, fractions of a cell) that must stay conserved across a
// split.
func DuplicateScaled(s []float64, i int, frac float64) []float64 {
	s = Duplicate(s, i)
	s[i] *= frac
	s[i+1] *= 1 - frac
	return s
}

// DuplicateInt32 is Duplicate for integer arrays.
func DuplicateInt32(s []int32, i int) []int32 {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	return s
}

// Split divides the unit at index into two adjacent units, keeping
// roughly frac of its sub-cells (by position) in the original unit and
// moving the remainder to a new unit at index+1. Because a unit covers
// a whole number of sub-cells, frac is renormalized to the realizable
// fraction, which is returned; use it to divide extensive state held
// outside this struct. All index structures stay consistent: callers
// owning per-unit arrays must apply Duplicate or DuplicateScaled at
// the same index themselves (Domain.Split does this for registered
// state).
//
// A unit covering a single sub-cell cannot be split, and frac must
// leave at least one sub-cell on each side.
func (u *Units) Split(index int, frac float64) (float64, error) {
	if index < 0 || index >= u.N() {
		return 0, fmt.Errorf("landunit: split index %d out of range [0, %d)", index, u.N())
	}
	if !(frac > 0 && frac < 1) {
		return 0, fmt.Errorf("landunit: split fraction %g outside (0, 1)", frac)
	}
	var subcells []int32
	for p, unit := range u.SubcellUnit {
		if unit == int32(index) {
			subcells = append(subcells, int32(p))
		}
	}
	count := len(subcells)
	if count < 2 {
		return 0, fmt.Errorf("landunit: unit %d covers %d sub-cell(s) and cannot be split", index, count)
	}
	splitLoc := int(float64(count) * frac)
	if splitLoc <= 0 || splitLoc >= count {
		return 0, fmt.Errorf("landunit: split fraction %g leaves an empty side of unit %d (%d sub-cells)",
			frac, index, count)
	}
	alpha := float64(splitLoc) / float64(count)

	// Renumber the back-map: units above index shift up one, and the
	// moved sub-cells shift once more, onto the new unit.
	for p := range u.SubcellUnit {
		if u.SubcellUnit[p] > int32(index) {
			u.SubcellUnit[p]++
		}
	}
	for _, p := range subcells[splitLoc:] {
		u.SubcellUnit[p]++
	}

	u.UnitCell = DuplicateInt32(u.UnitCell, index)
	cell := u.UnitCell[index]
	for c := int(cell); c < len(u.CellUnitEnd); c++ {
		u.CellUnitEnd[c]++
	}
	for i := int(u.grid.fullIndex[cell]); i < len(u.CellUnitEndFull); i++ {
		u.CellUnitEndFull[i]++
	}

	u.Owners = DuplicateInt32(u.Owners, index)
	u.LandUseType = DuplicateInt32(u.LandUseType, index)
	u.LandUseRatio = DuplicateScaled(u.LandUseRatio, index, alpha)
	// Both halves stay inside the same grid cell.
	u.CellArea = Duplicate(u.CellArea, index)
	return alpha, nil
}
