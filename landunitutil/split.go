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
	"fmt"
	"io"
	"os"

	"github.com/spatialmodel/landunit"
)

// Split divides the land unit with the given index in two at fraction
// frac of its sub-cells, reading the snapshot from unitFile and saving
// the refined result to outFile. A report is written to w.
func Split(w io.Writer, unitFile, outFile string, index int, frac float64) error {
	if index < 0 {
		return fmt.Errorf("landunitutil: you need to specify the unit to split (for example: --Split.Unit=3)")
	}

	f, err := os.Open(unitFile)
	if err != nil {
		return fmt.Errorf("problem opening land unit data file: %v", err)
	}
	d := new(landunit.Domain)
	d.InitFuncs = []landunit.DomainManipulator{landunit.Load(f)}
	err = d.Init()
	f.Close()
	if err != nil {
		return err
	}

	if err := d.Split(index, frac); err != nil {
		return err
	}

	out, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("problem creating file to store land unit data in: %v", err)
	}
	defer out.Close()
	if err := landunit.Save(out)(d); err != nil {
		return err
	}
	fmt.Fprintf(w, "unit %d split; %d units saved to %s\n", index, d.Units.N(), outFile)
	return nil
}
