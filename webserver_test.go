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
	"image/png"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func webTestRequest(t *testing.T, mux *http.ServeMux, path string) *http.Response {
	t.Helper()
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w.Result()
}

func TestWebServerVariables(t *testing.T) {
	d, _ := outputTestDomain(t)
	mux := http.NewServeMux()
	RegisterHTTPHandlers(d, mux)

	resp := webTestRequest(t, mux, "/variables")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: want %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type: want application/json, got %s", ct)
	}
	var names []string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		t.Fatal(err)
	}
	want := []string{"area", "cell_area", "land_use_ratio", "land_use_type", "owner", "soil_water"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("want %v, got %v", want, names)
	}
}

func TestWebServerMap(t *testing.T) {
	d, _ := outputTestDomain(t)
	mux := http.NewServeMux()
	RegisterHTTPHandlers(d, mux)

	resp := webTestRequest(t, mux, "/map/soil_water?width=64")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: want %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("content type: want image/png, got %s", ct)
	}
	cfg, err := png.DecodeConfig(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 64 || cfg.Height != 64 {
		t.Errorf("want 64x64 image, got %dx%d", cfg.Width, cfg.Height)
	}

	resp = webTestRequest(t, mux, "/map/no_such_variable")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: want %d, got %d", http.StatusInternalServerError, resp.StatusCode)
	}
	body := new(bytes.Buffer)
	body.ReadFrom(resp.Body)
	if !strings.Contains(body.String(), "undefined variable name") {
		t.Errorf("want undefined variable message, got %q", body.String())
	}

	resp = webTestRequest(t, mux, "/map/soil_water?width=abc")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status: want %d, got %d", http.StatusInternalServerError, resp.StatusCode)
	}
}

func TestWebServerLegend(t *testing.T) {
	d, _ := outputTestDomain(t)
	mux := http.NewServeMux()
	RegisterHTTPHandlers(d, mux)

	resp := webTestRequest(t, mux, "/legend/area")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: want %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if _, err := png.DecodeConfig(resp.Body); err != nil {
		t.Errorf("legend is not a valid PNG: %v", err)
	}
}

// TestWebServerCache checks that images are re-rendered after the
// domain state advances but not before.
func TestWebServerCache(t *testing.T) {
	d, water := outputTestDomain(t)
	mux := http.NewServeMux()
	RegisterHTTPHandlers(d, mux)

	readImg := func() []byte {
		resp := webTestRequest(t, mux, "/map/soil_water?width=32")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status: want %d, got %d", http.StatusOK, resp.StatusCode)
		}
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		return buf.Bytes()
	}

	img1 := readImg()
	water[0] = 999
	if img2 := readImg(); !bytes.Equal(img1, img2) {
		t.Error("image was re-rendered although the domain has not advanced")
	}

	d.StepFuncs = []DomainManipulator{StepLimit(1)}
	if err := d.Run(); err != nil {
		t.Fatal(err)
	}
	if img3 := readImg(); bytes.Equal(img1, img3) {
		t.Error("image was not re-rendered after the domain advanced")
	}
}

func TestListenAndServeDisabled(t *testing.T) {
	d, _ := outputTestDomain(t)
	if err := ListenAndServe("")(d); err != nil {
		t.Error(err)
	}
}
