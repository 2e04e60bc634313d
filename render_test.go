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
	"bytes"
	"image/png"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

func TestDecompress(t *testing.T) {
	d, err := UnitsTestDomain()
	if err != nil {
		t.Fatal(err)
	}
	u := d.Units

	unitData := []float64{1, 2, 3, 4, 5, 6, 7}
	out := u.Decompress(unitData)

	if !reflect.DeepEqual(out.Shape, []int{4, 4}) {
		t.Errorf("shape: want [4 4], got %v", out.Shape)
	}

	nan := math.NaN()
	want := []float64{
		1, 1, 3, 3,
		1, 2, 4, 4,
		5, 7, nan, nan,
		6, 7, nan, nan,
	}
	for i, w := range want {
		have := out.Elements[i]
		if math.IsNaN(w) {
			if !math.IsNaN(have) {
				t.Errorf("element %d: want NaN, got %g", i, have)
			}
		} else if have != w {
			t.Errorf("element %d: want %g, got %g", i, w, have)
		}
	}
}

func TestDecompressInt(t *testing.T) {
	d, err := UnitsTestDomain()
	if err != nil {
		t.Fatal(err)
	}
	u := d.Units

	landUse := u.LandUseMap()
	wantLandUse := []int{
		0, 0, 1, 1,
		0, 1, 1, 1,
		1, 5, -1, -1,
		4, 5, -1, -1,
	}
	if !reflect.DeepEqual(landUse.Elements, wantLandUse) {
		t.Errorf("land use map: want %v, got %v", wantLandUse, landUse.Elements)
	}

	owners := u.OwnerMap()
	wantOwners := []int{
		1, 1, 1, 1,
		1, -1, 2, 2,
		-1, -1, -1, -1,
		-1, -1, -1, -1,
	}
	if !reflect.DeepEqual(owners.Elements, wantOwners) {
		t.Errorf("owner map: want %v, got %v", wantOwners, owners.Elements)
	}
}

func TestUnitPolygons(t *testing.T) {
	const tol = 1.e-10

	d, err := UnitsTestDomain()
	if err != nil {
		t.Fatal(err)
	}
	u := d.Units

	polys := u.UnitPolygons()
	if len(polys) != u.N() {
		t.Fatalf("want %d polygons, got %d", u.N(), len(polys))
	}

	wantRings := []int{3, 1, 2, 2, 1, 1, 2}
	for i, p := range polys {
		if n := len(p.(geom.Polygon)); n != wantRings[i] {
			t.Errorf("unit %d: want %d rings, got %d", i, wantRings[i], n)
		}
	}

	// With the geometric cell areas, polygon areas must agree with the
	// index-derived unit areas.
	uniform := UnitsTestData()
	uniform.CellArea = nil
	ug, err := uniform.Grid()
	if err != nil {
		t.Fatal(err)
	}
	uu, err := uniform.Units(ug)
	if err != nil {
		t.Fatal(err)
	}
	areas := uu.Area()
	for i, p := range uu.UnitPolygons() {
		if different(p.Area(), areas[i], tol) {
			t.Errorf("unit %d: polygon area %g does not match unit area %g",
				i, p.Area(), areas[i])
		}
	}

	// The single sub-cell owned by nobody in the northwest cell.
	want := geom.Polygon{[]geom.Point{
		{X: 500, Y: 1000},
		{X: 1000, Y: 1000},
		{X: 1000, Y: 1500},
		{X: 500, Y: 1500},
	}}
	if !reflect.DeepEqual(polys[1], want) {
		t.Errorf("unit 1: want %+v, got %+v", want, polys[1])
	}
}

func TestDrawMap(t *testing.T) {
	d, err := UnitsTestDomain()
	if err != nil {
		t.Fatal(err)
	}
	u := d.Units

	data := u.Decompress([]float64{1, 2, 3, 4, 5, 6, 7})
	buf := new(bytes.Buffer)
	if err := DrawMap(buf, data, d.Grid.Bounds(), 120); err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 120 || cfg.Height != 120 {
		t.Errorf("want 120x120 image, got %dx%d", cfg.Width, cfg.Height)
	}

	img, err := png.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	// The southeast quadrant is masked and should use the mask color.
	r, g, b, a := img.At(119, 119).RGBA()
	if r>>8 != 235 || g>>8 != 235 || b>>8 != 235 || a>>8 != 255 {
		t.Errorf("masked pixel: want (235 235 235 255), got (%d %d %d %d)",
			r>>8, g>>8, b>>8, a>>8)
	}
	r, g, b, _ = img.At(0, 0).RGBA()
	if r>>8 == 235 && g>>8 == 235 && b>>8 == 235 {
		t.Error("data pixel should not use the mask color")
	}
}

func TestDrawMapErrors(t *testing.T) {
	b := &geom.Bounds{Min: geom.Point{X: 0, Y: 0}, Max: geom.Point{X: 1, Y: 1}}

	flat := sparse.ZerosDense(4)
	if err := DrawMap(new(bytes.Buffer), flat, b, 10); err == nil ||
		!strings.Contains(err.Error(), "2-d") {
		t.Errorf("want shape error, got %v", err)
	}

	empty := sparse.ZerosDense(2, 2)
	for i := range empty.Elements {
		empty.Elements[i] = math.NaN()
	}
	if err := DrawMap(new(bytes.Buffer), empty, b, 10); err == nil ||
		!strings.Contains(err.Error(), "no finite values") {
		t.Errorf("want empty data error, got %v", err)
	}
}

func TestDrawLegend(t *testing.T) {
	buf := new(bytes.Buffer)
	if err := DrawLegend(buf, []float64{0, 0.5, 1, 2.5}, "soil_water"); err != nil {
		t.Fatal(err)
	}
	if _, err := png.DecodeConfig(bytes.NewReader(buf.Bytes())); err != nil {
		t.Errorf("legend is not a valid PNG: %v", err)
	}

	nan := math.NaN()
	if err := DrawLegend(new(bytes.Buffer), []float64{nan, nan}, "x"); err == nil ||
		!strings.Contains(err.Error(), "no finite values") {
		t.Errorf("want empty data error, got %v", err)
	}
}
