package landunit

import (
	"encoding/gob"
	"fmt"
	"io"
	"sort"

	"github.com/spatialmodel/landunit/internal/hash"
)

// SnapshotVersion is the format version of saved snapshot files.
const SnapshotVersion = 1

// Snapshot is a saved copy of the simulation state: the index
// structures that define the grid and the land units, plus any
// registered state variables, stored as named flat arrays. Array
// names are dotted, with the "grid." and "units." prefixes reserved
// for the index structures.
type Snapshot struct {
	Version int

	// Hash is a content hash over the array data, checked on load.
	Hash string

	Float map[string][]float64
	Int   map[string][]int32
}

// SetFloat64 stores a named array in the snapshot.
func (s *Snapshot) SetFloat64(name string, v []float64) {
	if s.Float == nil {
		s.Float = make(map[string][]float64)
	}
	s.Float[name] = v
}

// SetInt32 stores a named array in the snapshot.
func (s *Snapshot) SetInt32(name string, v []int32) {
	if s.Int == nil {
		s.Int = make(map[string][]int32)
	}
	s.Int[name] = v
}

// Float64 returns the stored array with the given name, or a new
// array of length n filled with def if the snapshot does not contain
// it. A stored array with a length other than n is an error.
func (s *Snapshot) Float64(name string, n int, def float64) ([]float64, error) {
	v, ok := s.Float[name]
	if !ok {
		out := make([]float64, n)
		if def != 0 {
			for i := range out {
				out[i] = def
			}
		}
		return out, nil
	}
	if len(v) != n {
		return nil, fmt.Errorf("landunit: snapshot array %s has length %d but the domain requires %d",
			name, len(v), n)
	}
	return v, nil
}

// Int32 returns the stored array with the given name, or a new array
// of length n filled with def if the snapshot does not contain it. A
// stored array with a length other than n is an error.
func (s *Snapshot) Int32(name string, n int, def int32) ([]int32, error) {
	v, ok := s.Int[name]
	if !ok {
		out := make([]int32, n)
		if def != 0 {
			for i := range out {
				out[i] = def
			}
		}
		return out, nil
	}
	if len(v) != n {
		return nil, fmt.Errorf("landunit: snapshot array %s has length %d but the domain requires %d",
			name, len(v), n)
	}
	return v, nil
}

func (s *Snapshot) requiredFloat(name string) ([]float64, error) {
	v, ok := s.Float[name]
	if !ok {
		return nil, fmt.Errorf("landunit: snapshot is missing array %s", name)
	}
	return v, nil
}

func (s *Snapshot) requiredInt(name string) ([]int32, error) {
	v, ok := s.Int[name]
	if !ok {
		return nil, fmt.Errorf("landunit: snapshot is missing array %s", name)
	}
	return v, nil
}

// contentHash hashes the array data in a deterministic order. The
// maps themselves cannot be hashed directly because gob encodes map
// entries in Go's randomized iteration order.
func (s *Snapshot) contentHash() string {
	type entry struct {
		Name  string
		Float []float64
		Int   []int32
	}
	entries := make([]entry, 0, len(s.Float)+len(s.Int))
	for n, v := range s.Float {
		entries = append(entries, entry{Name: "float." + n, Float: v})
	}
	for n, v := range s.Int {
		entries = append(entries, entry{Name: "int." + n, Int: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return hash.Sum(entries)
}

// Write writes s to w in gob format
// (format description at https://golang.org/pkg/encoding/gob/).
func (s *Snapshot) Write(w io.Writer) error {
	s.Version = SnapshotVersion
	s.Hash = s.contentHash()
	if err := gob.NewEncoder(w).Encode(s); err != nil {
		return fmt.Errorf("landunit: saving snapshot: %v", err)
	}
	return nil
}

// LoadSnapshotData reads a snapshot from a previously written file,
// verifying the format version and the content hash.
func LoadSnapshotData(r io.Reader) (*Snapshot, error) {
	s := new(Snapshot)
	if err := gob.NewDecoder(r).Decode(s); err != nil {
		return nil, fmt.Errorf("landunit: loading snapshot: %v", err)
	}
	if s.Version != SnapshotVersion {
		return nil, fmt.Errorf("landunit: snapshot version %d is incompatible "+
			"with the required version %d", s.Version, SnapshotVersion)
	}
	if h := s.contentHash(); h != s.Hash {
		return nil, fmt.Errorf("landunit: snapshot is corrupted: content hashes to %s "+
			"but the file records %s", h, s.Hash)
	}
	return s, nil
}

// Snapshot collects the index structures that define the grid and the
// land units into a new Snapshot. State variables registered with a
// Domain are added separately.
func (u *Units) Snapshot() *Snapshot {
	g := u.grid
	mask := make([]int32, g.Size())
	for i, m := range g.mask {
		if m {
			mask[i] = 1
		}
	}
	s := new(Snapshot)
	s.SetInt32("grid.shape", []int32{int32(g.Ny), int32(g.Nx)})
	s.SetFloat64("grid.geotransform", []float64{g.Dx, g.Dy, g.X0, g.Y0})
	s.SetInt32("grid.mask", mask)
	s.SetFloat64("grid.cell_area", g.CellArea)
	s.SetInt32("units.scaling", []int32{int32(u.Scaling)})
	s.SetInt32("units.land_use_type", u.LandUseType)
	s.SetFloat64("units.land_use_ratio", u.LandUseRatio)
	s.SetInt32("units.owners", u.Owners)
	s.SetInt32("units.unit_cell", u.UnitCell)
	s.SetInt32("units.cell_unit_end", u.CellUnitEnd)
	s.SetInt32("units.cell_unit_end_full", u.CellUnitEndFull)
	s.SetInt32("units.subcell_unit", u.SubcellUnit)
	s.SetFloat64("units.cell_area", u.CellArea)
	return s
}

// RestoreUnits rebuilds the grid and the land units stored in a
// snapshot, without reference to the original rasters.
func RestoreUnits(s *Snapshot) (*Grid, *Units, error) {
	shape, err := s.requiredInt("grid.shape")
	if err != nil {
		return nil, nil, err
	}
	if len(shape) != 2 {
		return nil, nil, fmt.Errorf("landunit: snapshot grid shape has %d entries but 2 are required", len(shape))
	}
	geo, err := s.requiredFloat("grid.geotransform")
	if err != nil {
		return nil, nil, err
	}
	if len(geo) != 4 {
		return nil, nil, fmt.Errorf("landunit: snapshot geotransform has %d entries but 4 are required", len(geo))
	}
	g := &Grid{
		Ny: int(shape[0]),
		Nx: int(shape[1]),
		Dx: geo[0],
		Dy: geo[1],
		X0: geo[2],
		Y0: geo[3],
	}
	mask, err := s.Int32("grid.mask", g.Size(), 0)
	if err != nil {
		return nil, nil, err
	}
	g.mask = make([]bool, g.Size())
	for i, m := range mask {
		if m != 0 {
			g.mask[i] = true
			continue
		}
		g.fullIndex = append(g.fullIndex, int32(i))
	}
	if g.CellArea, err = s.Float64("grid.cell_area", g.N(), 0); err != nil {
		return nil, nil, err
	}

	scaling, err := s.Int32("units.scaling", 1, 0)
	if err != nil {
		return nil, nil, err
	}
	if scaling[0] < 1 {
		return nil, nil, fmt.Errorf("landunit: snapshot scaling factor %d is less than 1", scaling[0])
	}
	u := &Units{
		Scaling: int(scaling[0]),
		grid:    g,
	}
	if u.LandUseRatio, err = s.requiredFloat("units.land_use_ratio"); err != nil {
		return nil, nil, err
	}
	n := u.N()
	if u.LandUseType, err = s.Int32("units.land_use_type", n, 0); err != nil {
		return nil, nil, err
	}
	if u.Owners, err = s.Int32("units.owners", n, NoOwner); err != nil {
		return nil, nil, err
	}
	if u.UnitCell, err = s.Int32("units.unit_cell", n, 0); err != nil {
		return nil, nil, err
	}
	if u.CellUnitEnd, err = s.Int32("units.cell_unit_end", g.N(), 0); err != nil {
		return nil, nil, err
	}
	if u.CellUnitEndFull, err = s.Int32("units.cell_unit_end_full", g.Size(), 0); err != nil {
		return nil, nil, err
	}
	sq := u.Scaling * u.Scaling
	if u.SubcellUnit, err = s.Int32("units.subcell_unit", g.N()*sq, 0); err != nil {
		return nil, nil, err
	}
	if u.CellArea, err = s.Float64("units.cell_area", n, 0); err != nil {
		return nil, nil, err
	}
	if g.N() > 0 && int(u.CellUnitEnd[g.N()-1]) != n {
		return nil, nil, fmt.Errorf("landunit: snapshot unit index ends at %d but there are %d units",
			u.CellUnitEnd[g.N()-1], n)
	}
	return g, u, nil
}
