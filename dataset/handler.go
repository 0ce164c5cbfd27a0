package dataset

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pitabwire/util"

	"github.com/pitabwire/heritage/units"
)

// Handler serves data as the JSON resource Load expects. The body is encoded
// once; only GET and HEAD are answered.
func Handler(data units.ConversionData) http.Handler {
	body, err := json.Marshal(data)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		if err != nil {
			util.Log(r.Context()).WithError(err).Error("could not encode conversion data")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = bytes.NewReader(body).WriteTo(w)
		}
	})
}
