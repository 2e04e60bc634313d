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

package landunitutil

import (
	"bytes"
	"image/png"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/geom/encoding/shp"
	"github.com/kr/pretty"
	"github.com/spatialmodel/landunit"
)

// writeTestRaster writes the test raster dataset into dir and returns
// its path.
func writeTestRaster(t *testing.T, dir string) string {
	rasterFile := filepath.Join(dir, "testRasterData.nc")
	f, err := os.Create(rasterFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := landunit.UnitsTestData().Write(f); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return rasterFile
}

// writeTestUnits writes a land unit snapshot built from the test
// raster dataset into dir and returns its path.
func writeTestUnits(t *testing.T, dir string) string {
	d, err := landunit.UnitsTestDomain()
	if err != nil {
		t.Fatal(err)
	}
	unitFile := filepath.Join(dir, "testUnitData.gob")
	f, err := os.Create(unitFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := landunit.Save(f)(d); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return unitFile
}

// loadUnits reads the land unit snapshot saved at unitFile.
func loadUnits(t *testing.T, unitFile string) (*landunit.Grid, *landunit.Units) {
	f, err := os.Open(unitFile)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	s, err := landunit.LoadSnapshotData(f)
	if err != nil {
		t.Fatal(err)
	}
	g, u, err := landunit.RestoreUnits(s)
	if err != nil {
		t.Fatal(err)
	}
	return g, u
}

func TestBuild(t *testing.T) {
	dir, err := ioutil.TempDir("", "landunitutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	unitFile := filepath.Join(dir, "testUnitData.gob")

	Cfg.Set("RasterData", writeTestRaster(t, dir))
	Cfg.Set("UnitData", unitFile)
	Root.SetArgs([]string{"build"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	g, u := loadUnits(t, unitFile)
	if g.N() != 3 {
		t.Errorf("cells: want 3, got %d", g.N())
	}
	if u.N() != 7 {
		t.Errorf("units: want 7, got %d", u.N())
	}
	wantUse := []int32{0, 1, 1, 1, 1, 4, 5}
	if diff := pretty.Diff(u.LandUseType, wantUse); len(diff) > 0 {
		t.Errorf("land use types: %v", diff)
	}
	wantOwners := []int32{1, -1, 1, 2, -1, -1, -1}
	if diff := pretty.Diff(u.Owners, wantOwners); len(diff) > 0 {
		t.Errorf("owners: %v", diff)
	}
	wantRatio := []float64{0.75, 0.25, 0.5, 0.5, 0.25, 0.25, 0.5}
	if diff := pretty.Diff(u.LandUseRatio, wantRatio); len(diff) > 0 {
		t.Errorf("land use ratios: %v", diff)
	}
	wantCell := []int32{0, 0, 1, 1, 2, 2, 2}
	if diff := pretty.Diff(u.UnitCell, wantCell); len(diff) > 0 {
		t.Errorf("unit cells: %v", diff)
	}
}

func TestStats(t *testing.T) {
	dir, err := ioutil.TempDir("", "landunitutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	Cfg.Set("RasterData", writeTestRaster(t, dir))
	Cfg.Set("createunits", true)
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"stats"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(buf.String(), "\n")
	wantHead := []string{
		"cells: 3",
		"units: 7",
		"unit area [km2]: mean 0.4286, min 0.2, max 0.75",
	}
	for i, want := range wantHead {
		if lines[i] != want {
			t.Errorf("line %d: want %q, got %q", i, want, lines[i])
		}
	}

	wantRows := map[string][]string{
		"forest":    {"forest", "1", "0.75", "0.75", "NaN"},
		"grassland": {"grassland", "4", "1.65", "0.4125", "0.2175"},
		"sealed":    {"sealed", "1", "0.2", "0.2", "NaN"},
		"water":     {"water", "1", "0.4", "0.4", "NaN"},
		"unowned":   {"unowned", "4", "1.05", "0.2625", "0.09465"},
		"farm 1":    {"farm", "1", "2", "1.35", "0.675", "0.1061"},
		"farm 2":    {"farm", "2", "1", "0.6", "0.6", "NaN"},
	}
	for prefix, want := range wantRows {
		found := false
		for _, l := range lines {
			if !strings.HasPrefix(l, prefix) {
				continue
			}
			found = true
			if diff := pretty.Diff(strings.Fields(l), want); len(diff) > 0 {
				t.Errorf("row %q: %v", prefix, diff)
			}
		}
		if !found {
			t.Errorf("missing row %q", prefix)
		}
	}
}

func TestStatsLegend(t *testing.T) {
	dir, err := ioutil.TempDir("", "landunitutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	legendFile := filepath.Join(dir, "legend.xlsx")
	writeTestLegend(t, legendFile)

	Cfg.Set("RasterData", writeTestRaster(t, dir))
	Cfg.Set("createunits", true)
	Cfg.Set("LandUseLegend", legendFile)
	defer Cfg.Set("LandUseLegend", "")
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"stats"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"woodland", "pasture", "paved", "lake"} {
		if !strings.Contains(buf.String(), name) {
			t.Errorf("output is missing land use name %q", name)
		}
	}
	if strings.Contains(buf.String(), "grassland") {
		t.Error("output contains a built-in land use name instead of the legend name")
	}
}

func TestStatsBadGrouping(t *testing.T) {
	dir, err := ioutil.TempDir("", "landunitutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	Cfg.Set("RasterData", writeTestRaster(t, dir))
	Cfg.Set("createunits", true)
	Cfg.Set("Stats.GroupBy", []string{"region"})
	defer Cfg.Set("Stats.GroupBy", []string{"land_use", "owner"})
	Root.SetArgs([]string{"stats"})
	err = Root.Execute()
	if err == nil {
		t.Fatal("expected an error for an invalid grouping")
	}
	if !strings.Contains(err.Error(), "invalid grouping") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRender(t *testing.T) {
	dir, err := ioutil.TempDir("", "landunitutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	mapFile := filepath.Join(dir, "area_map.png")

	Cfg.Set("RasterData", writeTestRaster(t, dir))
	Cfg.Set("createunits", true)
	Cfg.Set("Render.OutputFile", mapFile)
	Cfg.Set("Render.Variable", "area")
	Cfg.Set("Render.Width", 400)
	Root.SetArgs([]string{"render"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(mapFile)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := png.DecodeConfig(f)
	f.Close()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 400 || cfg.Height != 400 {
		t.Errorf("map size: want 400 x 400, got %d x %d", cfg.Width, cfg.Height)
	}

	lf, err := os.Open(strings.TrimSuffix(mapFile, ".png") + "_legend.png")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := png.DecodeConfig(lf); err != nil {
		t.Error(err)
	}
	lf.Close()
}

func TestRenderShapefile(t *testing.T) {
	dir, err := ioutil.TempDir("", "landunitutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	shpFile := filepath.Join(dir, "landUnits.shp")

	Cfg.Set("RasterData", writeTestRaster(t, dir))
	Cfg.Set("createunits", true)
	Cfg.Set("Render.OutputFile", shpFile)
	Root.SetArgs([]string{"render"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	type outData struct {
		Area    float64
		Landuse float64
		Owner   float64
	}
	dec, err := shp.NewDecoder(shpFile)
	if err != nil {
		t.Fatal(err)
	}
	var recs []outData
	for {
		var rec outData
		if more := dec.DecodeRow(&rec); !more {
			break
		}
		recs = append(recs, rec)
	}
	if err := dec.Error(); err != nil {
		t.Fatal(err)
	}
	dec.Close()

	want := []outData{
		{Area: 7.5e5, Landuse: 0, Owner: 1},
		{Area: 2.5e5, Landuse: 1, Owner: -1},
		{Area: 6.0e5, Landuse: 1, Owner: 1},
		{Area: 6.0e5, Landuse: 1, Owner: 2},
		{Area: 2.0e5, Landuse: 1, Owner: -1},
		{Area: 2.0e5, Landuse: 4, Owner: -1},
		{Area: 4.0e5, Landuse: 5, Owner: -1},
	}
	if !reflect.DeepEqual(recs, want) {
		t.Errorf("want %+v, got %+v", want, recs)
	}
}

func TestSplit(t *testing.T) {
	dir, err := ioutil.TempDir("", "landunitutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	outFile := filepath.Join(dir, "splitUnitData.gob")

	Cfg.Set("UnitData", writeTestUnits(t, dir))
	Cfg.Set("Split.Unit", 0)
	Cfg.Set("Split.Fraction", 0.5)
	Cfg.Set("Split.OutputFile", outFile)
	defer Cfg.Set("Split.OutputFile", "")
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"split"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	if want := "unit 0 split; 8 units saved to " + outFile + "\n"; buf.String() != want {
		t.Errorf("want %q, got %q", want, buf.String())
	}

	_, u := loadUnits(t, outFile)
	if u.N() != 8 {
		t.Fatalf("units after split: want 8, got %d", u.N())
	}
	wantOwners := []int32{1, 1, -1, 1, 2, -1, -1, -1}
	if diff := pretty.Diff(u.Owners, wantOwners); len(diff) > 0 {
		t.Errorf("owners: %v", diff)
	}
	var areaSum float64
	for _, a := range u.Area() {
		areaSum += a
	}
	if math.Abs(areaSum-3.0e6) > 1e-3 {
		t.Errorf("total area after split: want 3.0e6, got %g", areaSum)
	}
}

func TestSplitMissingUnit(t *testing.T) {
	Cfg.Set("Split.Unit", -1)
	Root.SetArgs([]string{"split"})
	err := Root.Execute()
	if err == nil {
		t.Fatal("expected an error when no unit is specified")
	}
	if !strings.Contains(err.Error(), "Split.Unit") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestVersion(t *testing.T) {
	buf := new(bytes.Buffer)
	Root.SetOutput(buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "LandUnit v" + landunit.Version + "\n"; buf.String() != want {
		t.Errorf("want %q, got %q", want, buf.String())
	}
}
