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

// Package landunit implements a multi-resolution land surface
// discretization. A rectangular simulation grid is refined into land
// units, sub-cell regions that are homogeneous in land use class and
// farm ownership, and model state is carried per unit and converted
// between the unit and grid resolutions as needed.
package landunit

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"sync"
	"time"
)

// Version gives the version number.
const Version = "0.1.0"

// DomainManipulator is a class of functions that operate on the
// entire simulation domain.
type DomainManipulator func(d *Domain) error

// SplitHook is a function that is run after a unit split, for state
// holders that need more than the standard duplicate-at-index
// treatment. The unit at the given index was split at fraction alpha
// of its area, with the new unit inserted directly after it.
type SplitHook func(d *Domain, index int, alpha float64) error

type unitVar struct {
	data      *[]float64
	extensive bool
}

// Domain holds the current state of the simulation.
type Domain struct {
	Grid  *Grid
	Units *Units
	GW    *Groundwater

	// Backend performs the array arithmetic for per-unit state. If
	// it is nil, arithmetic runs on the host.
	Backend Backend

	// InitFuncs are the functions to be run in the given order at
	// the beginning of the simulation.
	InitFuncs []DomainManipulator

	// StepFuncs are the functions to be run in the given order
	// during every simulation step.
	StepFuncs []DomainManipulator

	// CleanupFuncs are the functions to be run in the given order at
	// the end of the simulation.
	CleanupFuncs []DomainManipulator

	// Done specifies whether the simulation is finished.
	Done bool

	// Step is the number of completed simulation steps.
	Step int

	unitVars   map[string]*unitVar
	splitHooks []SplitHook
	rev        int

	sync.RWMutex
}

// Init initializes the simulation by running InitFuncs in order.
func (d *Domain) Init() error {
	for _, f := range d.InitFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}

// Run runs the simulation by repeating StepFuncs until Done is set.
func (d *Domain) Run() error {
	for !d.Done {
		d.Lock()
		for _, f := range d.StepFuncs {
			if err := f(d); err != nil {
				d.Unlock()
				return err
			}
		}
		d.Step++
		d.rev++
		d.Unlock()
	}
	return nil
}

// Cleanup finishes the simulation by running CleanupFuncs in order.
func (d *Domain) Cleanup() error {
	for _, f := range d.CleanupFuncs {
		if err := f(d); err != nil {
			return err
		}
	}
	return nil
}

// Revision is a counter that increases whenever the domain state
// changes, through a simulation step or a unit split. It can be used
// to invalidate caches of derived data.
func (d *Domain) Revision() int { return d.rev }

func (d *Domain) backend() Backend {
	if d.Backend == nil {
		return HostBackend()
	}
	return d.Backend
}

// BuildUnits returns a function that creates the simulation grid and
// the land units from raster data.
func BuildUnits(data *RasterData) DomainManipulator {
	return func(d *Domain) error {
		g, err := data.Grid()
		if err != nil {
			return err
		}
		u, err := data.Units(g)
		if err != nil {
			return err
		}
		u.Backend = d.Backend
		d.Grid = g
		d.Units = u
		return d.allocUnitVars()
	}
}

// Save returns a function that saves the simulation state to w as a
// gob snapshot.
func Save(w io.Writer) DomainManipulator {
	return func(d *Domain) error {
		s, err := d.Snapshot()
		if err != nil {
			return err
		}
		return s.Write(w)
	}
}

// Load returns a function that loads the simulation state from a
// previously saved snapshot, restoring the grid, the units, any
// registered state variables and, if present, the groundwater store.
func Load(r io.Reader) DomainManipulator {
	return func(d *Domain) error {
		s, err := LoadSnapshotData(r)
		if err != nil {
			return err
		}
		g, u, err := RestoreUnits(s)
		if err != nil {
			return err
		}
		u.Backend = d.Backend
		d.Grid = g
		d.Units = u
		if _, ok := s.Float["gw.params"]; ok {
			params, err := s.Float64("gw.params", 2, 0)
			if err != nil {
				return err
			}
			gw := &Groundwater{M: params[0], Qo: params[1], grid: g}
			if gw.Deficit, err = s.Float64("gw.deficit", g.N(), 0); err != nil {
				return err
			}
			if gw.Sy, err = s.Float64("gw.sy", g.N(), 1); err != nil {
				return err
			}
			d.GW = gw
		}
		n := u.N()
		for name, v := range d.unitVars {
			data, err := s.Float64("state."+name, n, 0)
			if err != nil {
				return err
			}
			*v.data = data
		}
		return nil
	}
}

// Snapshot collects the current simulation state: the grid and unit
// index structures, the groundwater store if one exists, and every
// registered state variable.
func (d *Domain) Snapshot() (*Snapshot, error) {
	if d.Units == nil {
		return nil, fmt.Errorf("landunit: domain has no units to save")
	}
	s := d.Units.Snapshot()
	if d.GW != nil {
		s.SetFloat64("gw.params", []float64{d.GW.M, d.GW.Qo})
		s.SetFloat64("gw.deficit", d.GW.Deficit)
		s.SetFloat64("gw.sy", d.GW.Sy)
	}
	b := d.backend()
	for name, v := range d.unitVars {
		s.SetFloat64("state."+name, b.ToHost(*v.data))
	}
	return s, nil
}

// InitGroundwater returns a function that creates the groundwater
// store from c.
func InitGroundwater(c *GroundwaterConfig) DomainManipulator {
	return func(d *Domain) error {
		if d.Grid == nil {
			return fmt.Errorf("landunit: the groundwater store requires an initialized grid")
		}
		gw, err := NewGroundwater(d.Grid, c)
		if err != nil {
			return err
		}
		d.GW = gw
		return nil
	}
}

// StepLimit returns a function that ends the simulation after n
// steps.
func StepLimit(n int) DomainManipulator {
	step := 0
	return func(d *Domain) error {
		step++
		if step >= n {
			d.Done = true
		}
		return nil
	}
}

// Log writes simulation status messages to w.
func Log(w io.Writer) DomainManipulator {
	startTime := time.Now()
	timeStepTime := time.Now()

	return func(d *Domain) error {
		fmt.Fprintf(w, "Step %-4d  units=%-8d  walltime=%6.3gh  Δwalltime=%4.2gs\n",
			d.Step+1, d.Units.N(), time.Since(startTime).Hours(),
			time.Since(timeStepTime).Seconds())
		timeStepTime = time.Now()
		return nil
	}
}

var validVarName = regexp.MustCompile(`^[A-Za-z]\w*$`)

// RegisterUnitVar registers a named per-unit state variable so that
// it is saved in snapshots, available to output expressions, and
// kept aligned with the units when one splits. p points at the live
// array; extensive variables are scaled by the split fractions when
// a unit splits, while intensive ones are duplicated unchanged. If
// the units already exist and *p is nil, a zero array is allocated.
func (d *Domain) RegisterUnitVar(name string, p *[]float64, extensive bool) error {
	if !validVarName.MatchString(name) {
		return fmt.Errorf("landunit: invalid state variable name %q", name)
	}
	for _, b := range builtinUnitVars {
		if name == b {
			return fmt.Errorf("landunit: state variable name %q shadows a built-in variable", name)
		}
	}
	if _, ok := d.unitVars[name]; ok {
		return fmt.Errorf("landunit: state variable %q is already registered", name)
	}
	if d.unitVars == nil {
		d.unitVars = make(map[string]*unitVar)
	}
	if d.Units != nil {
		if *p == nil {
			*p = d.backend().Zeros(d.Units.N())
		} else if len(*p) != d.Units.N() {
			return fmt.Errorf("landunit: state variable %q has length %d but there are %d units",
				name, len(*p), d.Units.N())
		}
	}
	d.unitVars[name] = &unitVar{data: p, extensive: extensive}
	return nil
}

// allocUnitVars allocates zero arrays for registered variables that
// were registered before the units existed.
func (d *Domain) allocUnitVars() error {
	for name, v := range d.unitVars {
		if *v.data == nil {
			*v.data = d.backend().Zeros(d.Units.N())
		} else if len(*v.data) != d.Units.N() {
			return fmt.Errorf("landunit: state variable %q has length %d but there are %d units",
				name, len(*v.data), d.Units.N())
		}
	}
	return nil
}

// AddSplitHook registers a function to be run after each unit split.
func (d *Domain) AddSplitHook(h SplitHook) {
	d.splitHooks = append(d.splitHooks, h)
}

// Split divides the unit at the given index in two at fraction frac
// of its sub-cells, applies the matching duplication to every
// registered state variable, and then runs the registered split
// hooks.
func (d *Domain) Split(index int, frac float64) error {
	if d.Units == nil {
		return fmt.Errorf("landunit: domain has no units to split")
	}
	alpha, err := d.Units.Split(index, frac)
	if err != nil {
		return err
	}
	b := d.backend()
	for _, v := range d.unitVars {
		data := b.ToHost(*v.data)
		if v.extensive {
			*v.data = DuplicateScaled(data, index, alpha)
		} else {
			*v.data = Duplicate(data, index)
		}
	}
	for _, h := range d.splitHooks {
		if err := h(d, index, alpha); err != nil {
			return err
		}
	}
	d.rev++
	return nil
}

// builtinUnitVars are the per-unit variables that are always
// available for output, in addition to registered state variables.
var builtinUnitVars = []string{
	"area",
	"cell_area",
	"land_use_ratio",
	"land_use_type",
	"owner",
}

// OutputOptions returns the names of the per-unit variables that can
// be used in output expressions, which are the built-in index
// variables plus any registered state variables.
func (d *Domain) OutputOptions() []string {
	names := make([]string, 0, len(builtinUnitVars)+len(d.unitVars))
	names = append(names, builtinUnitVars...)
	for n := range d.unitVars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// UnitData returns the current values of the named per-unit variable
// as a host array. The returned array is a copy; changing it does
// not alter the simulation state.
func (d *Domain) UnitData(name string) ([]float64, error) {
	u := d.Units
	if u == nil {
		return nil, fmt.Errorf("landunit: domain has no units")
	}
	if v, ok := d.unitVars[name]; ok {
		data := d.backend().ToHost(*v.data)
		out := make([]float64, len(data))
		copy(out, data)
		return out, nil
	}
	switch name {
	case "area":
		return u.Area(), nil
	case "cell_area":
		out := make([]float64, u.N())
		copy(out, u.CellArea)
		return out, nil
	case "land_use_ratio":
		out := make([]float64, u.N())
		copy(out, u.LandUseRatio)
		return out, nil
	case "land_use_type":
		out := make([]float64, u.N())
		for i, v := range u.LandUseType {
			out[i] = float64(v)
		}
		return out, nil
	case "owner":
		out := make([]float64, u.N())
		for i, v := range u.Owners {
			out[i] = float64(v)
		}
		return out, nil
	}
	return nil, d.checkModelVars(name)
}
