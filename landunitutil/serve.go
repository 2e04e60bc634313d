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
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
	"github.com/spatialmodel/landunit"
)

// serveHandler returns the HTTP handler used by the serve command: the
// domain map server with request logging around it.
func serveHandler(d *landunit.Domain) http.Handler {
	mux := http.NewServeMux()
	landunit.RegisterHTTPHandlers(d, mux)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mux.ServeHTTP(w, r)
		logrus.WithFields(logrus.Fields{
			"path":     r.URL.Path,
			"duration": time.Since(start),
		}).Info("request")
	})
}

// Serve serves maps of the land units in d over HTTP at address. If
// openBrowser is true, the variable listing is opened in a web browser
// after the server starts.
func Serve(d *landunit.Domain, address string, openBrowser bool) error {
	logrus.WithFields(logrus.Fields{"address": address}).Info("serving land unit maps")
	if openBrowser {
		open.Run("http://" + address + "/variables")
	}
	return http.ListenAndServe(address, serveHandler(d))
}
