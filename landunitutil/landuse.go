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
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/ctessum/requestcache"
	"github.com/spatialmodel/landunit"
	"github.com/tealeg/xlsx"
)

var (
	loadLegendOnce  sync.Once
	legendFileCache *requestcache.Cache
)

// loadLegendFile loads a Microsoft Excel legend file from disk,
// utilizing a cache to avoid loading the same file more than once.
func loadLegendFile(ctx context.Context, fileName string) (*xlsx.File, error) {
	loadLegendOnce.Do(func() {
		legendFileCache = requestcache.NewCache(func(ctx context.Context, req interface{}) (interface{}, error) {
			f, err := xlsx.OpenFile(req.(string))
			if err != nil {
				return nil, fmt.Errorf("landunitutil: opening land use legend: %v", err)
			}
			return f, nil
		}, runtime.GOMAXPROCS(-1), requestcache.Deduplicate(), requestcache.Memory(10))
	})
	// Get the file from the cache or generate it.
	r := legendFileCache.NewRequest(ctx, fileName, fileName)
	fI, err := r.Result()
	if err != nil {
		return nil, err
	}
	return fI.(*xlsx.File), nil
}

// LandUseNames returns descriptive names for the land use classes. If
// fileName is not empty it must be an Excel file with class numbers in
// the first column and names in the second; rows whose first cell does
// not parse as an integer (such as a header) are skipped. An empty
// fileName returns the built-in class names.
func LandUseNames(ctx context.Context, fileName string) (map[int32]string, error) {
	names := map[int32]string{
		landunit.LandUseForest:    "forest",
		landunit.LandUseGrassland: "grassland",
		landunit.LandUseSealed:    "sealed",
		landunit.LandUseWater:     "water",
	}
	if fileName == "" {
		return names, nil
	}
	f, err := loadLegendFile(ctx, fileName)
	if err != nil {
		return nil, err
	}
	if len(f.Sheets) == 0 {
		return nil, fmt.Errorf("landunitutil: land use legend %s has no sheets", fileName)
	}
	s := f.Sheets[0]
	for j := 0; j < s.MaxRow; j++ {
		class, err := strconv.Atoi(strings.TrimSpace(s.Cell(j, 0).Value))
		if err != nil {
			continue // Header or blank row.
		}
		names[int32(class)] = strings.TrimSpace(s.Cell(j, 1).Value)
	}
	return names, nil
}
