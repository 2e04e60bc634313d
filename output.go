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
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/cdf"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"gonum.org/v1/gonum/floats"
)

// Outputter is a holder for output parameters.
//
// fileName contains the path where the output will be saved; the
// extension selects the format, either ".shp" for a shapefile of the
// unit regions or ".nc" for NetCDF rasters at sub-cell resolution.
//
// outputVariables maps the names of the variables for which data
// should be returned to expressions that define how the requested
// data should be calculated. These expressions can utilize variables
// built into the model, user-defined variables, and functions.
//
// modelVariables is automatically generated based on the model
// variables that are required to calculate the requested output
// variables.
//
// Functions are defined in the outputFunctions variable.
type Outputter struct {
	fileName        string
	outputVariables map[string]string
	modelVariables  []string
	outputFunctions map[string]govaluate.ExpressionFunction
}

// NewOutputter initializes a new Outputter holder and adds a set of
// default output functions. Default functions include:
//
// 'exp(x)' which applies the exponential function e^x.
//
// 'log(x)' which applies the natural logarithm.
//
// 'min2(x, y)' and 'max2(x, y)' which return the smaller and larger
// of their two arguments.
//
// 'sum(expression)', which evaluates the expression for every unit
// and returns the domain-wide total. It can only wrap a whole output
// expression.
func NewOutputter(fileName string, outputVariables map[string]string, outputFunctions map[string]govaluate.ExpressionFunction) (*Outputter, error) {
	defaultOutputFuncs := map[string]govaluate.ExpressionFunction{
		"exp": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("landunit: got %d arguments for function 'exp', but needs 1", len(arg))
			}
			return math.Exp(arg[0].(float64)), nil
		},
		"log": func(arg ...interface{}) (interface{}, error) {
			if len(arg) != 1 {
				return nil, fmt.Errorf("landunit: got %d arguments for function 'log', but needs 1", len(arg))
			}
			return math.Log(arg[0].(float64)), nil
		},
		"min2": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("landunit: got %d arguments for function 'min2', but needs 2", len(args))
			}
			return math.Min(args[0].(float64), args[1].(float64)), nil
		},
		"max2": func(args ...interface{}) (interface{}, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("landunit: got %d arguments for function 'max2', but needs 2", len(args))
			}
			return math.Max(args[0].(float64), args[1].(float64)), nil
		},
		"sum": func(arg ...interface{}) (interface{}, error) {
			return nil, fmt.Errorf("landunit: function 'sum' can only wrap a whole output expression")
		},
	}

	for key, val := range outputFunctions {
		defaultOutputFuncs[key] = val
	}

	o := Outputter{
		fileName:        fileName,
		outputVariables: make(map[string]string, len(outputVariables)),
		outputFunctions: defaultOutputFuncs,
	}
	for key, val := range outputVariables {
		o.outputVariables[key] = val
	}

	err := o.checkForDerivatives()
	return &o, err
}

// removeDuplicates removes all duplicated strings from a slice,
// returning a slice that contains only unique strings.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]string)
	for _, val := range s {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = val
		}
	}
	return result
}

// checkForDerivatives replaces references to other output variables
// within each output expression by the expressions that define them,
// and collects the unique model variables required to calculate the
// requested output variables. Circular definitions are an error.
func (o *Outputter) checkForDerivatives() error {
	for pass := 0; ; pass++ {
		if pass > len(o.outputVariables)*len(o.outputVariables) {
			return fmt.Errorf("landunit: output variable definitions are circular")
		}
		o.modelVariables = o.modelVariables[:0]
		substituted := false
	vars:
		for key, val := range o.outputVariables {
			inner, _ := stripSum(val)
			expression, err := govaluate.NewEvaluableExpressionWithFunctions(inner, o.outputFunctions)
			if err != nil {
				return fmt.Errorf("landunit: output variable %s: %v", key, err)
			}
			uniqueVars := removeDuplicates(expression.Vars())
			for _, uniqueVar := range uniqueVars {
				def, ok := o.outputVariables[uniqueVar]
				if !ok || uniqueVar == key || def == uniqueVar {
					continue
				}
				re := regexp.MustCompile(`\b` + regexp.QuoteMeta(uniqueVar) + `\b`)
				o.outputVariables[key] = re.ReplaceAllString(val, "("+def+")")
				substituted = true
				break vars
			}
			o.modelVariables = append(o.modelVariables, uniqueVars...)
		}
		if !substituted {
			break
		}
	}
	o.modelVariables = removeDuplicates(o.modelVariables)
	sort.Strings(o.modelVariables)
	return nil
}

// stripSum splits off the aggregate sum(...) wrapper, if the whole
// expression is wrapped in one.
func stripSum(expr string) (string, bool) {
	s := strings.TrimSpace(expr)
	if !strings.HasPrefix(s, "sum(") || !strings.HasSuffix(s, ")") {
		return expr, false
	}
	inner := s[len("sum(") : len(s)-1]
	depth := 0
	for _, r := range inner {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				// The trailing parenthesis closes an earlier group,
				// not the sum call.
				return expr, false
			}
		}
	}
	return inner, true
}

// checkModelVars checks whether the unique input variables required
// to calculate the user-requested output variables are available in
// the model.
func (d *Domain) checkModelVars(g ...string) error {
	names := d.OutputOptions()
	mapOutputOps := make(map[string]uint8)
	for _, n := range names {
		mapOutputOps[n] = 0
	}
	for _, v := range g {
		if _, ok := mapOutputOps[v]; !ok {
			return fmt.Errorf("landunit: undefined variable name %q; available variables are %s",
				v, strings.Join(names, ", "))
		}
	}
	return nil
}

// checkOutputNames checks (1) if any output variable names exceed 10
// characters and (2) if any output variable names include characters
// that are unsupported in shapefile field names.
func checkOutputNames(o map[string]string) error {
	for key := range o {
		long := len(key) > 10
		noCharError, err := regexp.MatchString("^[A-Za-z]\\w*$", key)
		if err != nil {
			panic(err)
		}
		if long && !noCharError {
			return fmt.Errorf("landunit: output variable name '%s' exceeds 10 characters and includes unsupported character(s)", key)
		} else if long {
			return fmt.Errorf("landunit: output variable name '%s' exceeds 10 characters", key)
		} else if !noCharError {
			return fmt.Errorf("landunit: output variable name '%s' includes unsupported characters", key)
		}
	}
	return nil
}

// CheckOutputVars ensures the output variables can be calculated.
func (o *Outputter) CheckOutputVars() DomainManipulator {
	return func(d *Domain) error {
		if err := d.checkModelVars(o.modelVariables...); err != nil {
			return err
		}
		if filepath.Ext(o.fileName) == ".shp" {
			return checkOutputNames(o.outputVariables)
		}
		return nil
	}
}

// Results evaluates the output variable expressions against the
// current domain state, returning one array over the units per
// output variable.
func (d *Domain) Results(o *Outputter) (map[string][]float64, error) {
	if err := d.checkModelVars(o.modelVariables...); err != nil {
		return nil, err
	}
	data := make(map[string][]float64, len(o.modelVariables))
	for _, v := range o.modelVariables {
		vv, err := d.UnitData(v)
		if err != nil {
			return nil, err
		}
		data[v] = vv
	}

	n := d.Units.N()
	results := make(map[string][]float64, len(o.outputVariables))
	for name, exprStr := range o.outputVariables {
		inner, aggregate := stripSum(exprStr)
		expression, err := govaluate.NewEvaluableExpressionWithFunctions(inner, o.outputFunctions)
		if err != nil {
			return nil, fmt.Errorf("landunit: output variable %s: %v", name, err)
		}
		exprVars := removeDuplicates(expression.Vars())
		out := make([]float64, n)
		params := make(map[string]interface{}, len(exprVars))
		for i := 0; i < n; i++ {
			for _, v := range exprVars {
				params[v] = data[v][i]
			}
			r, err := expression.Evaluate(params)
			if err != nil {
				return nil, fmt.Errorf("landunit: evaluating output variable %s: %v", name, err)
			}
			v, ok := r.(float64)
			if !ok {
				return nil, fmt.Errorf("landunit: output variable %s evaluates to %T; a number is required", name, r)
			}
			out[i] = v
		}
		if aggregate {
			total := floats.Sum(out)
			for i := range out {
				out[i] = total
			}
		}
		results[name] = out
	}
	return results, nil
}

// Output returns a function that writes the output variables to the
// file specified when the Outputter was created.
func (o *Outputter) Output() DomainManipulator {
	return func(d *Domain) error {
		results, err := d.Results(o)
		if err != nil {
			return err
		}
		vars := make([]string, 0, len(results))
		for v := range results {
			vars = append(vars, v)
		}
		sort.Strings(vars)

		switch ext := filepath.Ext(o.fileName); ext {
		case ".shp":
			return o.writeShapefile(d, vars, results)
		case ".nc", ".ncf":
			return o.writeNetCDF(d, vars, results)
		default:
			return fmt.Errorf("landunit: unsupported output file extension %q; choose .shp or .nc", ext)
		}
	}
}

func (o *Outputter) writeShapefile(d *Domain, vars []string, results map[string][]float64) error {
	if err := checkOutputNames(o.outputVariables); err != nil {
		return err
	}
	fields := make([]goshp.Field, len(vars))
	for i, v := range vars {
		fields[i] = goshp.FloatField(v, 14, 8)
	}
	shape, err := shp.NewEncoderFromFields(o.fileName, goshp.POLYGON, fields...)
	if err != nil {
		return fmt.Errorf("error creating output shapefile: %v", err)
	}
	for i, p := range d.Units.UnitPolygons() {
		outFields := make([]interface{}, len(vars))
		for j, v := range vars {
			outFields[j] = results[v][i]
		}
		err = shape.EncodeFields(p, outFields...)
		if err != nil {
			return fmt.Errorf("error writing output shapefile: %v", err)
		}
	}
	shape.Close()
	return nil
}

func (o *Outputter) writeNetCDF(d *Domain, vars []string, results map[string][]float64) error {
	u := d.Units
	g := d.Grid
	s := u.Scaling
	h := cdf.NewHeader(
		[]string{"ys", "xs"},
		[]int{g.Ny * s, g.Nx * s})
	h.AddAttribute("", "comment", "Land unit simulation output file")
	h.AddAttribute("", "x0", []float64{g.X0})
	h.AddAttribute("", "y0", []float64{g.Y0})
	h.AddAttribute("", "dx", []float64{g.Dx / float64(s)})
	h.AddAttribute("", "dy", []float64{g.Dy / float64(s)})
	for _, name := range vars {
		h.AddVariable(name, []string{"ys", "xs"}, []float32{0})
	}
	h.Define()

	ff, err := os.Create(o.fileName)
	if err != nil {
		return fmt.Errorf("landunit: creating output file: %v", err)
	}
	f, err := cdf.Create(ff, h) // writes the header to ff
	if err != nil {
		ff.Close()
		return err
	}
	for _, name := range vars {
		if err := writeNCFFloat(f, name, u.Decompress(results[name])); err != nil {
			ff.Close()
			return fmt.Errorf("landunit: writing variable %s to netcdf file: %v", name, err)
		}
	}
	if err := cdf.UpdateNumRecs(ff); err != nil {
		ff.Close()
		return err
	}
	return ff.Close()
}

// DeleteShapefile deletes the named shapefile and the associated
// .dbf, .shx and .prj files, ignoring any that do not exist.
func DeleteShapefile(fileName string) error {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	for _, ext := range []string{".shp", ".dbf", ".shx", ".prj"} {
		if err := os.Remove(base + ext); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
