package model

import "time"

// AssetEntry is one stored response inside a versioned asset bucket.
type AssetEntry struct {
	URL    string              `msgpack:"url"`
	Status int                 `msgpack:"status"`
	Header map[string][]string `msgpack:"header"`
	Body   []byte              `msgpack:"body"`

	StoredAt time.Time `msgpack:"stored_at"`
}
