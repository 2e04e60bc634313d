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

	"gonum.org/v1/gonum/floats"
)

// A reduceFunc combines the values of one cell's units into a single
// cell value. weights holds the units' area ratios.
type reduceFunc func(vals, weights []float64) float64

// reductions are the named aggregation functions accepted by ToGrid.
// All of them except nansum propagate NaN.
var reductions = map[string]reduceFunc{
	"mean": func(vals, weights []float64) float64 {
		return floats.Dot(vals, weights) / floats.Sum(weights)
	},
	"sum": func(vals, _ []float64) float64 {
		return floats.Sum(vals)
	},
	"nansum": func(vals, _ []float64) float64 {
		var sum float64
		for _, v := range vals {
			if !math.IsNaN(v) {
				sum += v
			}
		}
		return sum
	},
	"max": func(vals, _ []float64) float64 {
		m := math.Inf(-1)
		for _, v := range vals {
			if math.IsNaN(v) {
				return math.NaN()
			}
			if v > m {
				m = v
			}
		}
		return m
	},
	"min": func(vals, _ []float64) float64 {
		m := math.Inf(1)
		for _, v := range vals {
			if math.IsNaN(v) {
				return math.NaN()
			}
			if v < m {
				m = v
			}
		}
		return m
	},
}

// ToGrid aggregates a per-unit array to a compressed grid array, one
// value per non-masked cell. fn names the aggregation to apply across
// each cell's units; choose from mean (area-ratio weighted), sum,
// nansum, max and min. An unknown name is reported before any data is
// touched.
func (u *Units) ToGrid(unitData []float64, fn string) ([]float64, error) {
	red, ok := reductions[fn]
	if !ok {
		return nil, fmt.Errorf("landunit: unsupported reduction %q; choose from mean, sum, nansum, max or min", fn)
	}
	if len(unitData) != u.N() {
		panic(fmt.Errorf("landunit: array length %d does not match unit count %d",
			len(unitData), u.N()))
	}
	u.checkIndex()
	data := u.backend().ToHost(unitData)
	out := make([]float64, len(u.CellUnitEnd))
	prev := int32(0)
	for c, end := range u.CellUnitEnd {
		out[c] = red(data[prev:end], u.LandUseRatio[prev:end])
		prev = end
	}
	return out, nil
}

// ToUnits disaggregates a compressed grid array to a per-unit array.
// With fn "copy" every unit receives its cell's value unchanged, which
// suits quantities that do not depend on area (temperatures, rates).
// With fn "mean" the cell value is spread over the units in proportion
// to their area ratios, so that aggregating back with the mean
// reduction recovers the cell value; use it for quantities stated
// relative to cell area.
func (u *Units) ToUnits(cellData []float64, fn string) ([]float64, error) {
	switch fn {
	case "copy", "mean":
	default:
		return nil, fmt.Errorf("landunit: unsupported disaggregation %q; choose from copy or mean", fn)
	}
	if len(cellData) != len(u.CellUnitEnd) {
		panic(fmt.Errorf("landunit: array length %d does not match compressed grid size %d",
			len(cellData), len(u.CellUnitEnd)))
	}
	u.checkIndex()
	b := u.backend()
	out := b.Zeros(u.N())
	prev := int32(0)
	for c, end := range u.CellUnitEnd {
		span := out[prev:end]
		switch fn {
		case "copy":
			b.Fill(span, cellData[c])
		case "mean":
			w := u.LandUseRatio[prev:end]
			b.AddScaled(span, cellData[c]/floats.Sum(w), w)
		}
		prev = end
	}
	return out, nil
}

// checkIndex verifies that the unit ranges cover the unit arrays
// exactly. A mismatch means the index structures were mutated outside
// this package's operations.
func (u *Units) checkIndex() {
	if n := len(u.CellUnitEnd); n > 0 && int(u.CellUnitEnd[n-1]) != u.N() {
		panic(fmt.Errorf("landunit: unit index ends at %d but there are %d units",
			u.CellUnitEnd[n-1], u.N()))
	}
}
