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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spatialmodel/landunit"
)

var plainVarName = regexp.MustCompile(`^[A-Za-z]\w*$`)

// Render evaluates output expressions for d and writes the result to
// outputFile. A '.png' extension draws a map of the expression expr at
// the given width in pixels, together with a legend image saved
// alongside; '.shp' and '.nc' extensions write the outputVars
// expressions through the Outputter.
func Render(d *landunit.Domain, outputFile, expr string, width int, outputVars map[string]string) error {
	if filepath.Ext(outputFile) != ".png" {
		o, err := landunit.NewOutputter(outputFile, outputVars, nil)
		if err != nil {
			return err
		}
		if err := o.CheckOutputVars()(d); err != nil {
			return err
		}
		return o.Output()(d)
	}

	name := "expr"
	if plainVarName.MatchString(expr) {
		name = expr
	}
	o, err := landunit.NewOutputter("", map[string]string{name: expr}, nil)
	if err != nil {
		return err
	}
	results, err := d.Results(o)
	if err != nil {
		return err
	}
	data := results[name]

	w, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("problem creating map image file: %v", err)
	}
	defer w.Close()
	if err := landunit.DrawMap(w, d.Units.Decompress(data), d.Grid.Bounds(), width); err != nil {
		return err
	}

	legendFile := strings.TrimSuffix(outputFile, ".png") + "_legend.png"
	lw, err := os.Create(legendFile)
	if err != nil {
		return fmt.Errorf("problem creating legend image file: %v", err)
	}
	defer lw.Close()
	return landunit.DrawLegend(lw, data, expr)
}
