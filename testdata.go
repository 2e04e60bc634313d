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

import "github.com/ctessum/sparse"

// UnitsTestData returns a small raster dataset for use in testing.
//
// The grid has 2 x 2 cells of 1 km x 1 km, of which the south-east
// cell is masked out, refined at scaling factor 2. Farm 1 spans the
// two northern cells, the north-east cell is shared between farms 1
// and 2, and the south-west cell has no farms and three land use
// classes. Building units from it gives, in order:
//
//	unit  cell  owner  class  ratio
//	   0     0      1      0   0.75
//	   1     0      -      1   0.25
//	   2     1      1      1   0.50
//	   3     1      2      1   0.50
//	   4     2      -      1   0.25
//	   5     2      -      4   0.25
//	   6     2      -      5   0.50
func UnitsTestData() *RasterData {
	mask := sparse.ZerosDense(2, 2)
	mask.Elements = []float64{
		0, 0,
		0, 1,
	}
	cellArea := sparse.ZerosDense(2, 2)
	cellArea.Elements = []float64{
		1.0e6, 1.2e6,
		0.8e6, 1.0e6,
	}
	farms := sparse.ZerosDenseInt(4, 4)
	farms.Elements = []int{
		1, 1, 1, 1,
		1, -1, 2, 2,
		-1, -1, -1, -1,
		-1, -1, -1, -1,
	}
	landUse := sparse.ZerosDenseInt(4, 4)
	landUse.Elements = []int{
		0, 0, 1, 1,
		0, 1, 1, 1,
		1, 5, 0, 0,
		4, 5, 0, 0,
	}
	return &RasterData{
		Ny: 2, Nx: 2, Scaling: 2,
		Dx: 1000, Dy: 1000,
		X0: 0, Y0: 2000,
		Mask:     mask,
		CellArea: cellArea,
		Farms:    farms,
		LandUse:  landUse,
	}
}

// UnitsTestDomain builds a domain from UnitsTestData, for tests that
// need live units rather than raw rasters.
func UnitsTestDomain() (*Domain, error) {
	d := new(Domain)
	d.InitFuncs = []DomainManipulator{BuildUnits(UnitsTestData())}
	if err := d.Init(); err != nil {
		return nil, err
	}
	return d, nil
}
