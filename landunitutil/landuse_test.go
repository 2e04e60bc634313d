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

package landunitutil

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/kr/pretty"
	"github.com/tealeg/xlsx"
)

// writeTestLegend writes an Excel land use legend to fileName, with a
// header row followed by class number and name columns.
func writeTestLegend(t *testing.T, fileName string) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("legend")
	if err != nil {
		t.Fatal(err)
	}
	header := sheet.AddRow()
	header.AddCell().SetString("class")
	header.AddCell().SetString("name")
	for _, c := range []struct {
		class int
		name  string
	}{{0, "woodland"}, {1, "pasture"}, {4, "paved"}, {5, "lake"}} {
		row := sheet.AddRow()
		row.AddCell().SetInt(c.class)
		row.AddCell().SetString(c.name)
	}
	if err := f.Save(fileName); err != nil {
		t.Fatal(err)
	}
}

func TestLandUseNames(t *testing.T) {
	names, err := LandUseNames(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	want := map[int32]string{0: "forest", 1: "grassland", 4: "sealed", 5: "water"}
	if diff := pretty.Diff(names, want); len(diff) > 0 {
		t.Error(diff)
	}
}

func TestLandUseNamesFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "landunitutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	legendFile := filepath.Join(dir, "legend.xlsx")
	writeTestLegend(t, legendFile)

	names, err := LandUseNames(context.Background(), legendFile)
	if err != nil {
		t.Fatal(err)
	}
	want := map[int32]string{0: "woodland", 1: "pasture", 4: "paved", 5: "lake"}
	if diff := pretty.Diff(names, want); len(diff) > 0 {
		t.Error(diff)
	}
}
