package assetcache_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/assetcache"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
)

// siteHandler serves a fixed set of pages and counts requests per path.
type siteHandler struct {
	mu       sync.Mutex
	pages    map[string]string
	requests map[string]int
}

func newSite() *siteHandler {
	return &siteHandler{
		pages: map[string]string{
			"/": `<html><head>
				<link rel="stylesheet" href="css/styles.css">
				<link rel="stylesheet" href="https://unpkg.com/leaflet.css">
				<script src="/js/main.js"></script>
			</head><body><img src="img/1.jpg#top"><img src="data:image/png;base64,AAAA"></body></html>`,
			"/restaurant.html": `<html><body>restaurant</body></html>`,
			"/css/styles.css":  `body { margin: 0; }`,
			"/js/main.js":      `console.log("main")`,
			"/img/1.jpg":       `jpg-bytes`,
		},
		requests: map[string]int{},
	}
}

func (s *siteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.URL.Path]++

	body, ok := s.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	switch {
	case r.URL.Path == "/" || r.URL.Path == "/restaurant.html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
	case r.URL.Path == "/css/styles.css":
		w.Header().Set("Content-Type", "text/css")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Write([]byte(body))
}

func (s *siteHandler) set(path, body string) {
	s.mu.Lock()
	s.pages[path] = body
	s.mu.Unlock()
}

func (s *siteHandler) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func setupTestCache(t *testing.T, site *siteHandler, manifest []string) *assetcache.Cache {
	t.Helper()
	storage := assetcache.NewStorage(t.TempDir())
	return assetcache.New("restaurant-review-v2", manifest, storage, &assetcache.HandlerFetcher{Handler: site}, nil)
}

func TestInstallStoresManifest(t *testing.T) {
	site := newSite()
	c := setupTestCache(t, site, []string{"/", "./restaurant.html", "/css/styles.css", "/css/styles.css", "/missing.js"})

	stored, err := c.Install(context.Background())
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	// the duplicate is fetched once and the 404 is skipped
	if stored != 3 {
		t.Errorf("Expected 3 stored entries, got %d", stored)
	}
	if n := site.Requests("/css/styles.css"); n != 1 {
		t.Errorf("Expected styles.css to be fetched once, got %d", n)
	}

	keys, err := c.Storage.Keys("restaurant-review-v2")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	want := []string{"/", "/css/styles.css", "/restaurant.html"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Expected keys %v, got %v", want, keys)
	}

	entry, err := c.Match("/css/styles.css")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if entry == nil || string(entry.Body) != "body { margin: 0; }" || entry.Header["Content-Type"][0] != "text/css" {
		t.Errorf("unexpected entry %+v", entry)
	}
}

func TestInstallDiscoversSameOriginAssets(t *testing.T) {
	site := newSite()
	c := setupTestCache(t, site, []string{"/"})
	c.Discover = true

	if _, err := c.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	keys, err := c.Storage.Keys(c.Version)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	want := []string{"/", "/css/styles.css", "/img/1.jpg", "/js/main.js"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Expected keys %v, got %v", want, keys)
	}
}

func TestActivateDeletesOtherBuckets(t *testing.T) {
	c := setupTestCache(t, newSite(), []string{"/"})
	ctx := context.Background()

	// Given: an old version, an unrelated bucket and the current one
	for _, bucket := range []string{"restaurant-review-v1", "scratch", "restaurant-review-v2"} {
		if err := c.Storage.Put(bucket, model.AssetEntry{URL: "/", Status: http.StatusOK, Body: []byte(bucket)}); err != nil {
			t.Fatalf("Put(%s) failed: %v", bucket, err)
		}
	}

	// When
	if err := c.Activate(ctx); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	// Then: only the current version is left, untouched
	buckets, err := c.Storage.Buckets()
	if err != nil {
		t.Fatalf("Buckets failed: %v", err)
	}
	if !reflect.DeepEqual(buckets, []string{"restaurant-review-v2"}) {
		t.Errorf("Expected only the current bucket, got %v", buckets)
	}
	entry, err := c.Match("/")
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if entry == nil || string(entry.Body) != "restaurant-review-v2" {
		t.Errorf("Expected current bucket contents to survive, got %+v", entry)
	}
}

func TestMiddlewareServesCacheFirst(t *testing.T) {
	site := newSite()
	c := setupTestCache(t, site, []string{"/css/styles.css"})
	if _, err := c.Install(context.Background()); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	// the origin changes after install; the cached copy is never refreshed
	site.set("/css/styles.css", "body { margin: 8px; }")

	e := echo.New()
	e.Use(c.Middleware())
	network := 0
	e.Any("/*", func(ec echo.Context) error {
		network++
		return ec.String(http.StatusOK, "from network")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/css/styles.css", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "body { margin: 0; }" {
		t.Errorf("Expected cached body, got %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Asset-Cache") != "hit" || rec.Header().Get("Content-Type") != "text/css" {
		t.Errorf("unexpected headers %v", rec.Header())
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/css/styles.css", nil))
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("Expected empty HEAD hit, got %d with %d bytes", rec.Code, rec.Body.Len())
	}

	if network != 0 {
		t.Fatalf("Expected hits not to reach the network, got %d", network)
	}

	// misses and non-GET requests fall through
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/js/main.js", nil))
	if rec.Body.String() != "from network" {
		t.Errorf("Expected miss to go to the network, got %q", rec.Body.String())
	}
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/css/styles.css", nil))
	if rec.Body.String() != "from network" {
		t.Errorf("Expected POST to go to the network, got %q", rec.Body.String())
	}
	if network != 2 {
		t.Errorf("Expected 2 network requests, got %d", network)
	}
	if c.Hits() != 2 || c.Misses() != 1 {
		t.Errorf("Expected 2 hits and 1 miss, got %d and %d", c.Hits(), c.Misses())
	}
}

func TestHTTPFetcher(t *testing.T) {
	site := newSite()
	srv := httptest.NewServer(site)
	defer srv.Close()

	storage := assetcache.NewStorage(t.TempDir())
	c := assetcache.New("", []string{"/", "/js/main.js"}, storage, assetcache.NewHTTPFetcher(srv.URL+"/", 0), nil)

	stored, err := c.Install(context.Background())
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if stored != 2 {
		t.Errorf("Expected 2 stored entries, got %d", stored)
	}
	if c.Version != assetcache.DefaultVersion {
		t.Errorf("Expected default version, got %q", c.Version)
	}
}

func TestRequestURI(t *testing.T) {
	cases := map[string]string{
		"/":                          "/",
		"":                           "/",
		"./css/styles.css":           "/css/styles.css",
		"js/main.js":                 "/js/main.js",
		"/restaurant.html?id=1":      "/restaurant.html?id=1",
		"http://localhost:8000/img/": "/img/",
	}
	for in, want := range cases {
		got, err := assetcache.RequestURI(in)
		if err != nil {
			t.Errorf("RequestURI(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("RequestURI(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStorageRejectsBadBucketNames(t *testing.T) {
	storage := assetcache.NewStorage(t.TempDir())
	for _, name := range []string{"", "..", "a/b"} {
		if err := storage.Put(name, model.AssetEntry{URL: "/"}); err == nil {
			t.Errorf("Expected error for bucket %q", name)
		}
	}

	entry, err := storage.Get("empty", "/nothing")
	if err != nil || entry != nil {
		t.Errorf("Expected nil, nil for a missing entry, got %+v, %v", entry, err)
	}
}

func TestDefaultManifestSkipsUnservedEntries(t *testing.T) {
	site := newSite()
	c := setupTestCache(t, site, assetcache.DefaultManifest)

	stored, err := c.Install(context.Background())
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	// the site serves /, /restaurant.html, styles.css and main.js of the shell
	if stored != 4 {
		t.Errorf("Expected 4 stored entries, got %d", stored)
	}
	// the relative entry resolves against the root
	if n := site.Requests("/js/sw_registration.js"); n != 1 {
		t.Errorf("Expected js/sw_registration.js to be requested as /js/sw_registration.js, got %d", n)
	}
	if n := site.Requests("/data/restaurants.json"); n != 1 {
		t.Errorf("Expected /data/restaurants.json to be requested once, got %d", n)
	}
}
