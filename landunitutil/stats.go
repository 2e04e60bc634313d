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
	"sort"

	"github.com/GaryBoone/GoStats/stats"
	"github.com/spatialmodel/landunit"
)

// Stats writes summary statistics for the land units in d to w. groupBy
// selects the reported groupings, 'land_use' and 'owner'; legend maps
// land use class numbers to the names used in the report.
func Stats(w io.Writer, d *landunit.Domain, groupBy []string, legend map[int32]string) error {
	u := d.Units
	if u == nil {
		return fmt.Errorf("landunitutil: there are no land units to summarize")
	}
	area := u.Area()

	fmt.Fprintf(w, "cells: %d\n", d.Grid.N())
	fmt.Fprintf(w, "units: %d\n", u.N())
	if u.N() > 0 {
		fmt.Fprintf(w, "unit area [km2]: mean %.4g, min %.4g, max %.4g\n",
			stats.StatsMean(area)/1e6, stats.StatsMin(area)/1e6, stats.StatsMax(area)/1e6)
	}

	for _, g := range groupBy {
		switch g {
		case "land_use":
			groups := groupStats(u.LandUseType, area)
			fmt.Fprintf(w, "\n%-12s %8s %14s %14s %14s\n",
				"land use", "units", "total [km2]", "mean [km2]", "std dev [km2]")
			for _, class := range sortedKeys(groups) {
				name, ok := legend[class]
				if !ok {
					name = fmt.Sprintf("class %d", class)
				}
				writeGroup(w, name, groups[class])
			}
		case "owner":
			groups := groupStats(u.Owners, area)
			fmt.Fprintf(w, "\n%-12s %8s %14s %14s %14s\n",
				"owner", "units", "total [km2]", "mean [km2]", "std dev [km2]")
			for _, owner := range sortedKeys(groups) {
				name := fmt.Sprintf("farm %d", owner)
				if owner == landunit.NoOwner {
					name = "unowned"
				}
				writeGroup(w, name, groups[owner])
			}
		default:
			return fmt.Errorf("landunitutil: invalid grouping %q; accepted values are 'land_use' and 'owner'", g)
		}
	}
	return nil
}

// groupStats accumulates the unit areas by the group keys in key.
func groupStats(key []int32, area []float64) map[int32]*stats.Stats {
	groups := make(map[int32]*stats.Stats)
	for i, k := range key {
		s, ok := groups[k]
		if !ok {
			s = new(stats.Stats)
			groups[k] = s
		}
		s.Update(area[i])
	}
	return groups
}

func sortedKeys(m map[int32]*stats.Stats) []int32 {
	keys := make([]int32, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func writeGroup(w io.Writer, name string, s *stats.Stats) {
	fmt.Fprintf(w, "%-12s %8d %14.4g %14.4g %14.4g\n",
		name, s.Count(), s.Sum()/1e6, s.Mean()/1e6, s.SampleStandardDeviation()/1e6)
}
