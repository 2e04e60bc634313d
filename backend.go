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

import "gonum.org/v1/gonum/floats"

// Backend performs bulk arithmetic on per-unit and per-cell arrays.
// The index structures always stay in host memory; a Backend gives the
// conversion operations a place to run their slice arithmetic
// somewhere else, for example on an accelerator that keeps mirrors of
// the arrays it allocated through Zeros. Host-only traversals call
// ToHost first and work on the returned slice.
//
// Implementations must treat slices they did not allocate as ordinary
// host memory.
type Backend interface {
	// Name identifies the backend in logs and error messages.
	Name() string

	// Zeros allocates a zeroed array of length n.
	Zeros(n int) []float64

	// Fill sets every element of x to v.
	Fill(x []float64, v float64)

	// Scale multiplies every element of x by c.
	Scale(x []float64, c float64)

	// AddScaled adds c*x to dst element-wise.
	AddScaled(dst []float64, c float64, x []float64)

	// Dot returns the sum of the element-wise product of x and y.
	Dot(x, y []float64) float64

	// Sum returns the sum of the elements of x.
	Sum(x []float64) float64

	// ToHost returns the contents of x as a host slice. For a host
	// backend this is x itself, not a copy.
	ToHost(x []float64) []float64
}

type hostBackend struct{}

// HostBackend returns the default Backend, which computes in host
// memory.
func HostBackend() Backend { return hostBackend{} }

func (hostBackend) Name() string { return "host" }

func (hostBackend) Zeros(n int) []float64 { return make([]float64, n) }

func (hostBackend) Fill(x []float64, v float64) {
	for i := range x {
		x[i] = v
	}
}

func (hostBackend) Scale(x []float64, c float64) { floats.Scale(c, x) }

func (hostBackend) AddScaled(dst []float64, c float64, x []float64) {
	floats.AddScaled(dst, c, x)
}

func (hostBackend) Dot(x, y []float64) float64 { return floats.Dot(x, y) }

func (hostBackend) Sum(x []float64) float64 { return floats.Sum(x) }

func (hostBackend) ToHost(x []float64) []float64 { return x }
