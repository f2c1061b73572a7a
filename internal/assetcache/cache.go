// Package assetcache serves the site's static assets cache-first from a
// versioned cache, the way the front end's service worker does. Entries are
// stored once at install time and never refreshed; a new version gets a new
// bucket and activation throws the old ones away.
package assetcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
)

// DefaultVersion names the current bucket.
const DefaultVersion = "restaurant-review-v2"

// DefaultManifest is the app shell stored on install. Entries the site does
// not serve are skipped at install time. Images are not listed; discovery
// picks up the ones the pages reference.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/restaurant.html",
	"/css/styles.css",
	"/js/dbhelper.js",
	"/js/main.js",
	"/js/restaurant_info.js",
	"/js/idb.js",
	"js/sw_registration.js",
	"/data/restaurants.json",
}

// Fetcher retrieves an asset by its request URI ("/css/styles.css").
type Fetcher interface {
	Fetch(ctx context.Context, uri string) (*model.AssetEntry, error)
}

type Cache struct {
	Version  string
	Manifest []string
	// Discover adds the same-origin assets referenced by HTML entries.
	Discover    bool
	Concurrency int

	Storage *Storage
	Fetcher Fetcher
	Logger  *slog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

func New(version string, manifest []string, storage *Storage, fetcher Fetcher, logger *slog.Logger) *Cache {
	if version == "" {
		version = DefaultVersion
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		Version:     version,
		Manifest:    manifest,
		Concurrency: 4,
		Storage:     storage,
		Fetcher:     fetcher,
		Logger:      logger,
	}
}

// Install fetches every manifest entry into the current bucket and returns
// how many were stored. A failed entry is logged and skipped.
func (c *Cache) Install(ctx context.Context) (int, error) {
	if err := c.Storage.CreateBucket(c.Version); err != nil {
		return 0, err
	}

	seen := make(map[string]bool, len(c.Manifest))
	uris := make([]string, 0, len(c.Manifest))
	for _, raw := range c.Manifest {
		uri, err := RequestURI(raw)
		if err != nil {
			c.Logger.Warn("skipping invalid manifest entry", "entry", raw, "error", err)
			continue
		}
		if !seen[uri] {
			seen[uri] = true
			uris = append(uris, uri)
		}
	}

	stored, discovered := c.fetchAll(ctx, uris)

	if c.Discover {
		extra := []string{}
		for _, uri := range discovered {
			if !seen[uri] {
				seen[uri] = true
				extra = append(extra, uri)
			}
		}
		if len(extra) > 0 {
			c.Logger.Debug("discovered assets", "count", len(extra))
			more, _ := c.fetchAll(ctx, extra)
			stored += more
		}
	}

	c.Logger.Info("asset cache installed", "version", c.Version, "stored", stored, "requested", len(seen))
	return stored, ctx.Err()
}

// Activate deletes every bucket other than the current version.
func (c *Cache) Activate(ctx context.Context) error {
	buckets, err := c.Storage.Buckets()
	if err != nil {
		return err
	}

	var errs []error
	for _, bucket := range buckets {
		if bucket == c.Version {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.Storage.DeleteBucket(bucket); err != nil {
			errs = append(errs, err)
			continue
		}
		c.Logger.Info("deleted old asset bucket", "bucket", bucket)
	}
	return errors.Join(errs...)
}

// Match returns the current bucket's entry for the request URI, if any.
func (c *Cache) Match(uri string) (*model.AssetEntry, error) {
	return c.Storage.Get(c.Version, uri)
}

// Middleware answers GET and HEAD requests from the current bucket. Anything
// else, and every miss, goes to the next handler.
func (c *Cache) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			req := ec.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(ec)
			}

			entry, err := c.Match(req.URL.RequestURI())
			if err != nil {
				c.Logger.Warn("asset cache lookup failed", "uri", req.URL.RequestURI(), "error", err)
				return next(ec)
			}
			if entry == nil {
				c.misses.Add(1)
				return next(ec)
			}
			c.hits.Add(1)

			resp := ec.Response()
			for k, vs := range entry.Header {
				resp.Header()[k] = append([]string(nil), vs...)
			}
			resp.Header().Set("X-Asset-Cache", "hit")
			resp.WriteHeader(entry.Status)
			if req.Method == http.MethodHead {
				return nil
			}
			_, err = resp.Write(entry.Body)
			return err
		}
	}
}

// Hits and Misses count middleware lookups.
func (c *Cache) Hits() uint64   { return c.hits.Load() }
func (c *Cache) Misses() uint64 { return c.misses.Load() }

// fetchAll stores each uri, at most Concurrency at a time, and returns the
// number stored along with the references found in HTML entries.
func (c *Cache) fetchAll(ctx context.Context, uris []string) (int, []string) {
	var (
		mu         sync.Mutex
		stored     int
		discovered []string
	)

	g, ctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}

	for _, uri := range uris {
		uri := uri
		g.Go(func() error {
			entry, err := c.Fetcher.Fetch(ctx, uri)
			if err != nil {
				c.Logger.Warn("failed to fetch asset", "uri", uri, "error", err)
				return nil
			}
			if entry.Status < 200 || entry.Status > 299 {
				c.Logger.Warn("not caching asset", "uri", uri, "status", entry.Status)
				return nil
			}
			if err := c.Storage.Put(c.Version, *entry); err != nil {
				c.Logger.Warn("failed to store asset", "uri", uri, "error", err)
				return nil
			}

			var refs []string
			if c.Discover && isHTML(entry) {
				refs = discoverRefs(uri, entry.Body)
			}

			mu.Lock()
			stored++
			discovered = append(discovered, refs...)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	return stored, discovered
}

// RequestURI resolves a manifest entry against the application root, so
// "./css/styles.css" and "/css/styles.css" name the same asset. Absolute URLs
// keep only their path and query.
func RequestURI(raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid asset url %q: %w", raw, err)
	}
	root := &url.URL{Path: "/"}
	resolved := root.ResolveReference(&url.URL{Path: ref.Path, RawQuery: ref.RawQuery})
	return resolved.RequestURI(), nil
}
