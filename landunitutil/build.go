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
	"log"
	"os"

	"github.com/spatialmodel/landunit"
)

// Build creates the simulation grid and the land units from the rasters
// in rasterFile and saves the result as a snapshot in unitFile.
func Build(rasterFile, unitFile string) error {
	// Start a function to receive and print log messages.
	msgLog := make(chan string)
	go func() {
		for msg := range msgLog {
			log.Println(msg)
		}
	}()

	msgLog <- "Loading raster data"

	f, err := os.Open(rasterFile)
	if err != nil {
		return fmt.Errorf("problem opening raster data file: %v", err)
	}
	data, err := landunit.LoadRasterData(f)
	f.Close()
	if err != nil {
		return err
	}

	w, err := os.Create(unitFile)
	if err != nil {
		return fmt.Errorf("problem creating file to store land unit data in: %v", err)
	}
	defer w.Close()

	msgLog <- "Building land units"

	d := &landunit.Domain{
		InitFuncs: []landunit.DomainManipulator{
			landunit.BuildUnits(data),
			landunit.Save(w),
		},
	}
	if err := d.Init(); err != nil {
		return err
	}
	msgLog <- fmt.Sprintf("%d land units in %d cells successfully created at %s",
		d.Units.N(), d.Grid.N(), unitFile)
	return nil
}

// unitDomain loads the simulation state from unitFile, or creates it
// from the rasters in rasterFile when createUnits is true.
func unitDomain(rasterFile, unitFile string, createUnits bool) (*landunit.Domain, error) {
	d := new(landunit.Domain)
	if createUnits {
		f, err := os.Open(rasterFile)
		if err != nil {
			return nil, fmt.Errorf("problem opening raster data file: %v", err)
		}
		data, err := landunit.LoadRasterData(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		d.InitFuncs = []landunit.DomainManipulator{landunit.BuildUnits(data)}
	} else {
		f, err := os.Open(unitFile)
		if err != nil {
			return nil, fmt.Errorf("problem opening land unit data file: %v", err)
		}
		defer f.Close()
		d.InitFuncs = []landunit.DomainManipulator{landunit.Load(f)}
	}
	if err := d.Init(); err != nil {
		return nil, err
	}
	return d, nil
}
