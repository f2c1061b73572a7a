package assetcache

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
)

// headers kept with a stored entry
var storedHeaders = []string{"Content-Type", "Cache-Control", "ETag", "Last-Modified"}

// HTTPFetcher fetches assets from an origin over HTTP.
type HTTPFetcher struct {
	Origin string
	Client *http.Client
}

func NewHTTPFetcher(origin string, timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Origin: strings.TrimRight(origin, "/"),
		Client: &http.Client{Timeout: timeout},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) (*model.AssetEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Origin+uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}
	return newEntry(uri, resp.StatusCode, resp.Header, body), nil
}

// HandlerFetcher fetches assets from an in-process handler, for a binary that
// serves its own static directory.
type HandlerFetcher struct {
	Handler http.Handler
}

func (f *HandlerFetcher) Fetch(ctx context.Context, uri string) (*model.AssetEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	rec := httptest.NewRecorder()
	f.Handler.ServeHTTP(rec, req)

	resp := rec.Result()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}
	return newEntry(uri, resp.StatusCode, resp.Header, body), nil
}

func newEntry(uri string, status int, header http.Header, body []byte) *model.AssetEntry {
	kept := make(map[string][]string, len(storedHeaders))
	for _, k := range storedHeaders {
		if vs := header.Values(k); len(vs) > 0 {
			kept[k] = append([]string(nil), vs...)
		}
	}
	return &model.AssetEntry{
		URL:      uri,
		Status:   status,
		Header:   kept,
		Body:     body,
		StoredAt: time.Now().UTC(),
	}
}

func isHTML(e *model.AssetEntry) bool {
	ct := ""
	if vs := e.Header["Content-Type"]; len(vs) > 0 {
		ct = vs[0]
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "text/html"
}
