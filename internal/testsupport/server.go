package testsupport

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// Asset is a canned HTTP response.
type Asset struct {
	ContentType string
	Body        string
	Status      int
}

// AssetServer serves canned assets by path and counts requests.
type AssetServer struct {
	*httptest.Server
	requests atomic.Int64
}

// NewAssetServer starts a server for assets; unknown paths answer 404.
func NewAssetServer(t testing.TB, assets map[string]Asset) *AssetServer {
	t.Helper()

	s := &AssetServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		asset, ok := assets[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if asset.ContentType != "" {
			w.Header().Set("Content-Type", asset.ContentType)
		}
		if asset.Status != 0 {
			w.WriteHeader(asset.Status)
		}
		_, _ = w.Write([]byte(asset.Body))
	}))
	t.Cleanup(s.Close)
	return s
}

// Requests returns the number of requests served so far.
func (s *AssetServer) Requests() int64 {
	return s.requests.Load()
}
