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
	"math"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/cdf"
	"github.com/ctessum/geom/encoding/shp"
)

const (
	TestOutputFilename   = "testOutput.shp"
	TestNCOutputFilename = "testOutput.nc"
)

// outputTestDomain returns the test domain with a soil_water variable
// registered and filled with the values 2i+2.
func outputTestDomain(t *testing.T) (*Domain, []float64) {
	t.Helper()
	d, err := UnitsTestDomain()
	if err != nil {
		t.Fatal(err)
	}
	var water []float64
	if err := d.RegisterUnitVar("soil_water", &water, true); err != nil {
		t.Fatal(err)
	}
	copy(water, []float64{2, 4, 6, 8, 10, 12, 14})
	return d, water
}

func TestNewOutputterDerivatives(t *testing.T) {
	o, err := NewOutputter("", map[string]string{
		"volume": "soil_water * area",
		"depth":  "volume / area",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"area", "soil_water"}
	if !reflect.DeepEqual(o.modelVariables, want) {
		t.Errorf("model variables: want %v, got %v", want, o.modelVariables)
	}

	d, water := outputTestDomain(t)
	r, err := d.Results(o)
	if err != nil {
		t.Fatal(err)
	}
	if floatsDifferent(r["depth"], water, 1.e-10) {
		t.Errorf("depth: want %v, got %v", water, r["depth"])
	}
	wantVolume := []float64{1.5e6, 1.e6, 3.6e6, 4.8e6, 2.e6, 2.4e6, 5.6e6}
	if floatsDifferent(r["volume"], wantVolume, 1.e-10) {
		t.Errorf("volume: want %v, got %v", wantVolume, r["volume"])
	}
}

func TestNewOutputterErrors(t *testing.T) {
	if _, err := NewOutputter("", map[string]string{
		"a": "b + 1",
		"b": "a + 1",
	}, nil); err == nil || !strings.Contains(err.Error(), "circular") {
		t.Errorf("want circularity error, got %v", err)
	}

	if _, err := NewOutputter("", map[string]string{
		"bad": "soil_water +* 2",
	}, nil); err == nil || !strings.Contains(err.Error(), "bad") {
		t.Errorf("want parse error naming the variable, got %v", err)
	}
}

func TestStripSum(t *testing.T) {
	type test struct {
		expr      string
		inner     string
		aggregate bool
	}
	tests := []test{
		{expr: "sum(soil_water * area)", inner: "soil_water * area", aggregate: true},
		{expr: "sum(exp(soil_water))", inner: "exp(soil_water)", aggregate: true},
		{expr: " sum( soil_water ) ", inner: " soil_water ", aggregate: true},
		{expr: "soil_water", inner: "soil_water", aggregate: false},
		{expr: "sum(a) + sum(b)", inner: "sum(a) + sum(b)", aggregate: false},
	}
	for _, tt := range tests {
		inner, aggregate := stripSum(tt.expr)
		if inner != tt.inner || aggregate != tt.aggregate {
			t.Errorf("stripSum(%q): want (%q, %v), got (%q, %v)",
				tt.expr, tt.inner, tt.aggregate, inner, aggregate)
		}
	}
}

func TestCheckOutputNames(t *testing.T) {
	type test struct {
		name        string
		errContains string
	}
	tests := []test{
		{name: "soil_water"},
		{name: "sw2"},
		{name: "waytoolongname", errContains: "exceeds 10 characters"},
		{name: "has space", errContains: "unsupported character"},
		{name: "2water", errContains: "unsupported character"},
		{name: "a name that is too long", errContains: "exceeds 10 characters and includes unsupported character(s)"},
	}
	for _, tt := range tests {
		err := checkOutputNames(map[string]string{tt.name: "x"})
		if tt.errContains == "" {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.name, err)
			}
		} else if err == nil || !strings.Contains(err.Error(), tt.errContains) {
			t.Errorf("%s: want error containing %q, got %v", tt.name, tt.errContains, err)
		}
	}
}

func TestResults(t *testing.T) {
	const tol = 1.e-10

	d, _ := outputTestDomain(t)

	o, err := NewOutputter("", map[string]string{
		"swdepth": "soil_water / land_use_ratio",
		"total":   "sum(soil_water * area)",
		"dsw":     "double(soil_water)",
	}, map[string]govaluate.ExpressionFunction{
		"double": func(args ...interface{}) (interface{}, error) {
			return args[0].(float64) * 2, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	r, err := d.Results(o)
	if err != nil {
		t.Fatal(err)
	}

	wantDepth := []float64{2 / 0.75, 16, 12, 16, 40, 48, 28}
	if floatsDifferent(r["swdepth"], wantDepth, tol) {
		t.Errorf("swdepth: want %v, got %v", wantDepth, r["swdepth"])
	}

	const wantTotal = 2.09e7
	for i, v := range r["total"] {
		if different(v, wantTotal, tol) {
			t.Errorf("total[%d]: want %g, got %g", i, wantTotal, v)
		}
	}

	wantDouble := []float64{4, 8, 12, 16, 20, 24, 28}
	if floatsDifferent(r["dsw"], wantDouble, tol) {
		t.Errorf("dsw: want %v, got %v", wantDouble, r["dsw"])
	}
}

func TestResultsErrors(t *testing.T) {
	d, _ := outputTestDomain(t)

	o, err := NewOutputter("", map[string]string{"x": "no_such_var"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Results(o); err == nil ||
		!strings.Contains(err.Error(), "undefined variable name") {
		t.Errorf("want undefined variable error, got %v", err)
	}

	o, err = NewOutputter("", map[string]string{"b": "soil_water > 1"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Results(o); err == nil ||
		!strings.Contains(err.Error(), "a number is required") {
		t.Errorf("want non-numeric result error, got %v", err)
	}
}

func TestCheckOutputVars(t *testing.T) {
	d, _ := outputTestDomain(t)

	o, err := NewOutputter(TestOutputFilename, map[string]string{"sw": "soil_water"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(d); err != nil {
		t.Error(err)
	}

	o, err = NewOutputter(TestOutputFilename, map[string]string{"waytoolongname": "soil_water"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(d); err == nil ||
		!strings.Contains(err.Error(), "exceeds 10 characters") {
		t.Errorf("want name length error, got %v", err)
	}

	// Field name limits only apply to shapefile output.
	o, err = NewOutputter(TestNCOutputFilename, map[string]string{"waytoolongname": "soil_water"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.CheckOutputVars()(d); err != nil {
		t.Error(err)
	}
}

func TestOutputShapefile(t *testing.T) {
	d, _ := outputTestDomain(t)

	o, err := NewOutputter(TestOutputFilename, map[string]string{
		"sw":  "soil_water",
		"swd": "soil_water * 2",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Output()(d); err != nil {
		t.Fatal(err)
	}
	defer DeleteShapefile(TestOutputFilename)

	type outData struct {
		Sw  float64
		Swd float64
	}
	dec, err := shp.NewDecoder(TestOutputFilename)
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
		{Sw: 2, Swd: 4},
		{Sw: 4, Swd: 8},
		{Sw: 6, Swd: 12},
		{Sw: 8, Swd: 16},
		{Sw: 10, Swd: 20},
		{Sw: 12, Swd: 24},
		{Sw: 14, Swd: 28},
	}
	if !reflect.DeepEqual(recs, want) {
		t.Errorf("want %+v, got %+v", want, recs)
	}
}

func TestOutputNetCDF(t *testing.T) {
	d, water := outputTestDomain(t)

	o, err := NewOutputter(TestNCOutputFilename, map[string]string{
		"sw": "soil_water",
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Output()(d); err != nil {
		t.Fatal(err)
	}
	defer os.Remove(TestNCOutputFilename)

	ff, err := os.Open(TestNCOutputFilename)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Open(ff)
	if err != nil {
		t.Fatal(err)
	}

	if dx := f.Header.GetAttribute("", "dx").([]float64)[0]; dx != 500 {
		t.Errorf("dx: want 500, got %g", dx)
	}
	if y0 := f.Header.GetAttribute("", "y0").([]float64)[0]; y0 != 2000 {
		t.Errorf("y0: want 2000, got %g", y0)
	}

	arr, err := readNCFFloat(f, "sw")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(arr.Shape, []int{4, 4}) {
		t.Fatalf("shape: want [4 4], got %v", arr.Shape)
	}
	want := d.Units.Decompress(water)
	for i, w := range want.Elements {
		have := arr.Elements[i]
		if math.IsNaN(w) {
			if !math.IsNaN(have) {
				t.Errorf("element %d: want NaN, got %g", i, have)
			}
		} else if have != w {
			t.Errorf("element %d: want %g, got %g", i, w, have)
		}
	}
}

func TestOutputExtension(t *testing.T) {
	d, _ := outputTestDomain(t)
	o, err := NewOutputter("testOutput.txt", map[string]string{"sw": "soil_water"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Output()(d); err == nil ||
		!strings.Contains(err.Error(), "unsupported output file extension") {
		t.Errorf("want extension error, got %v", err)
	}
}
