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

package landunit

import (
	"fmt"
	"io"
	"math"

	"github.com/BurntSushi/toml"
	"gonum.org/v1/gonum/floats"
)

// GroundwaterConfig holds the parameters of the groundwater store.
type GroundwaterConfig struct {
	// M is the e-folding depth of the baseflow recession curve [m].
	M float64

	// Qo is the baseflow when the store is fully saturated [m/step].
	Qo float64

	// Sy is the specific yield of the aquifer [-].
	Sy float64

	// InitialDeficit is the water-equivalent storage deficit at the
	// start of the simulation [m].
	InitialDeficit float64
}

// LoadGroundwaterConfig reads a GroundwaterConfig from r in
// TOML format.
func LoadGroundwaterConfig(r io.Reader) (*GroundwaterConfig, error) {
	c := new(GroundwaterConfig)
	if _, err := toml.DecodeReader(r, c); err != nil {
		return nil, fmt.Errorf("landunit: loading groundwater configuration: %v", err)
	}
	if err := c.check(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *GroundwaterConfig) check() error {
	if c.M <= 0 {
		return fmt.Errorf("landunit: groundwater recession depth M=%g must be positive", c.M)
	}
	if c.Qo <= 0 {
		return fmt.Errorf("landunit: groundwater saturated baseflow Qo=%g must be positive", c.Qo)
	}
	if !(c.Sy > 0 && c.Sy <= 1) {
		return fmt.Errorf("landunit: groundwater specific yield Sy=%g must be in (0, 1]", c.Sy)
	}
	if c.InitialDeficit < 0 {
		return fmt.Errorf("landunit: groundwater initial deficit %g must not be negative", c.InitialDeficit)
	}
	return nil
}

// Groundwater is a single-store groundwater model with an exponential
// recession curve, qb = Qo·exp(−deficit/M), run independently for
// each non-masked grid cell. A negative deficit means the cell is
// saturated above the surface datum.
type Groundwater struct {
	M, Qo float64

	// Deficit is the water-equivalent storage deficit of each
	// non-masked cell [m].
	Deficit []float64

	// Sy is the specific yield of each non-masked cell [-].
	Sy []float64

	grid *Grid
}

// NewGroundwater creates a groundwater store on grid g with uniform
// parameters from c.
func NewGroundwater(g *Grid, c *GroundwaterConfig) (*Groundwater, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return &Groundwater{
		M:       c.M,
		Qo:      c.Qo,
		Deficit: g.FullCompressed(c.InitialDeficit),
		Sy:      g.FullCompressed(c.Sy),
		grid:    g,
	}, nil
}

// Recharge adds the recharge depths r [m] to the store, reducing the
// storage deficit of each cell.
func (gw *Groundwater) Recharge(r []float64) {
	if len(r) != len(gw.Deficit) {
		panic(fmt.Errorf("landunit: recharge length %d does not match compressed grid size %d",
			len(r), len(gw.Deficit)))
	}
	floats.Sub(gw.Deficit, r)
}

// Baseflow removes and returns the baseflow depth of each cell [m]
// for one step, increasing the storage deficit accordingly.
func (gw *Groundwater) Baseflow() []float64 {
	qb := make([]float64, len(gw.Deficit))
	for i, d := range gw.Deficit {
		qb[i] = gw.Qo * math.Exp(-d/gw.M)
	}
	floats.Add(gw.Deficit, qb)
	return qb
}

// WaterTableDepth returns the depth to the water table of each cell
// [m], which is the water-equivalent deficit divided by the specific
// yield.
func (gw *Groundwater) WaterTableDepth() []float64 {
	wtd := make([]float64, len(gw.Deficit))
	for i, d := range gw.Deficit {
		wtd[i] = d / gw.Sy[i]
	}
	return wtd
}

// DeficitVolume returns the storage deficit of each cell as a water
// volume [m3].
func (gw *Groundwater) DeficitVolume() []float64 {
	return gw.grid.MtoM3(gw.Deficit)
}

// GroundwaterExchange returns a function that couples the land units
// to the groundwater store. Each step the per-unit percolation depth
// [m] drains to the store as recharge, and the resulting baseflow is
// written to capillaryRise as a per-unit depth [m]. Both arguments
// point at state registered with RegisterUnitVar so that they track
// unit splits.
func GroundwaterExchange(percolation, capillaryRise *[]float64) DomainManipulator {
	return func(d *Domain) error {
		u := d.Units
		perc := u.backend().ToHost(*percolation)
		vol := u.Area()
		floats.Mul(vol, perc)
		cellVol, err := u.ToGrid(vol, "sum")
		if err != nil {
			return err
		}
		d.GW.Recharge(d.Grid.M3toM(cellVol))

		rise, err := u.ToUnits(d.GW.Baseflow(), "copy")
		if err != nil {
			return err
		}
		*capillaryRise = rise
		return nil
	}
}
