package landunitutil

import (
	"context"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/spatialmodel/landunit"
)

func helperLog(t *testing.T) chan string {
	outChan := make(chan string)
	go func() {
		for {
			msg := <-outChan
			t.Logf(msg)
		}
	}()
	return outChan
}

func TestMaybeDownloadLocal(t *testing.T) {
	if k := maybeDownload(context.Background(), "/dev/null", helperLog(t)); k != "/dev/null" {
		t.Error("Expected /dev/null, got ", k)
	}
}

func TestMaybeDownloadLocal2(t *testing.T) {
	if k := maybeDownload(context.Background(), "/blah/test/", helperLog(t)); k != "/blah/test/" {
		t.Error("Expected /blah/test/, got ", k)
	}
}

func TestMaybeDownloadRemote(t *testing.T) {
	dir, err := ioutil.TempDir("", "landunitutil")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	writeTestRaster(t, dir)

	srv := httptest.NewServer(http.FileServer(http.Dir(dir)))
	defer srv.Close()
	k := maybeDownload(context.Background(), srv.URL+"/testRasterData.nc", helperLog(t))
	if !strings.HasSuffix(k, "testRasterData.nc") {
		t.Fatal("Expected tempDir/testRasterData.nc, got ", k)
	}

	// The downloaded copy should still be readable raster data.
	f, err := os.Open(k)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	data, err := landunit.LoadRasterData(f)
	if err != nil {
		t.Fatal(err)
	}
	if data.Ny != 2 || data.Nx != 2 || data.Scaling != 2 {
		t.Errorf("downloaded raster: want 2 x 2 cells at scaling 2, got %d x %d at scaling %d",
			data.Ny, data.Nx, data.Scaling)
	}
}
