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
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/golang/groupcache/lru"
)

// maxCachedImages is the maximum number of rendered images held in
// the web server cache.
const maxCachedImages = 50

type webServer struct {
	d *Domain

	mu    sync.Mutex
	cache *lru.Cache
}

// RegisterHTTPHandlers registers handlers on mux that serve the
// domain state over HTTP:
//
//	GET /variables          JSON list of the available variable names
//	GET /map/{variable}     PNG map of the variable at sub-cell resolution
//	GET /legend/{variable}  PNG legend for the map
//
// The map handler accepts an optional "width" query parameter giving
// the image width in pixels. Rendered images are cached and only
// re-rendered after the domain state changes.
func RegisterHTTPHandlers(d *Domain, mux *http.ServeMux) {
	s := &webServer{d: d, cache: lru.New(maxCachedImages)}
	mux.HandleFunc("/variables", s.variablesHandler)
	mux.HandleFunc("/map/", s.mapHandler)
	mux.HandleFunc("/legend/", s.legendHandler)
}

// ListenAndServe returns a function that serves maps of the domain
// state at address. If address is "", then the server won't run.
func ListenAndServe(address string) DomainManipulator {
	return func(d *Domain) error {
		if address != "" {
			mux := http.NewServeMux()
			RegisterHTTPHandlers(d, mux)
			errChan := make(chan error)
			go func() {
				errChan <- http.ListenAndServe(address, mux)
			}()
			return <-errChan
		}
		return nil
	}
}

func s2i(s string) (int, error) {
	i64, err := strconv.ParseInt(s, 10, 64)
	return int(i64), err
}

func (s *webServer) variablesHandler(w http.ResponseWriter, r *http.Request) {
	s.d.RLock()
	names := s.d.OutputOptions()
	s.d.RUnlock()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(names); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// cached returns the image stored under key, rendering and storing
// it first if it is not already present. Keys include the domain
// revision, so images from before a step or split age out of the
// cache instead of being served stale.
func (s *webServer) cached(key string, render func() ([]byte, error)) ([]byte, error) {
	s.mu.Lock()
	if img, ok := s.cache.Get(key); ok {
		s.mu.Unlock()
		return img.([]byte), nil
	}
	s.mu.Unlock()
	img, err := render()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache.Add(key, img)
	s.mu.Unlock()
	return img, nil
}

func (s *webServer) mapHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[len("/map/"):]
	width := 800
	if v := r.FormValue("width"); v != "" {
		var err error
		if width, err = s2i(v); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	s.d.RLock()
	key := fmt.Sprintf("map/%s@%d/%d", name, s.d.Revision(), width)
	s.d.RUnlock()
	img, err := s.cached(key, func() ([]byte, error) {
		return s.renderMap(name, width)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(img)
}

func (s *webServer) legendHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Path[len("/legend/"):]
	s.d.RLock()
	key := fmt.Sprintf("legend/%s@%d", name, s.d.Revision())
	s.d.RUnlock()
	img, err := s.cached(key, func() ([]byte, error) {
		return s.renderLegend(name)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(img)
}

func (s *webServer) renderMap(name string, width int) ([]byte, error) {
	s.d.RLock()
	data, err := s.d.UnitData(name)
	if err != nil {
		s.d.RUnlock()
		return nil, err
	}
	raster := s.d.Units.Decompress(data)
	b := s.d.Grid.Bounds()
	s.d.RUnlock()
	var buf bytes.Buffer
	if err := DrawMap(&buf, raster, b, width); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *webServer) renderLegend(name string) ([]byte, error) {
	s.d.RLock()
	data, err := s.d.UnitData(name)
	s.d.RUnlock()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := DrawLegend(&buf, data, name); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
