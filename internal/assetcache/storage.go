package assetcache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/model"
)

const entryExt = ".msgpack"

// Storage keeps buckets on disk: one directory per bucket, one msgpack file
// per entry, named after the xxhash of the entry's URL.
type Storage struct {
	Dir string
}

func NewStorage(dir string) *Storage {
	return &Storage{Dir: dir}
}

// CreateBucket makes sure the bucket exists.
func (s *Storage) CreateBucket(bucket string) error {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create bucket %q: %w", bucket, err)
	}
	return nil
}

// Put stores e in bucket, replacing any entry for the same URL.
func (s *Storage) Put(bucket string, e model.AssetEntry) error {
	if err := s.CreateBucket(bucket); err != nil {
		return err
	}
	data, err := msgpack.Marshal(&e)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", e.URL, err)
	}

	path, err := s.entryPath(bucket, e.URL)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.URL, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to store %s: %w", e.URL, err)
	}
	return nil
}

// Get returns the entry for url, or nil when the bucket has none.
func (s *Storage) Get(bucket, url string) (*model.AssetEntry, error) {
	path, err := s.entryPath(bucket, url)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}

	var e model.AssetEntry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", url, err)
	}
	// hash collision
	if e.URL != url {
		return nil, nil
	}
	return &e, nil
}

// Keys lists the URLs stored in bucket, sorted.
func (s *Storage) Keys(bucket string) ([]string, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return nil, err
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list bucket %q: %w", bucket, err)
	}

	keys := []string{}
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != entryExt {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name(), err)
		}
		var e model.AssetEntry
		if err := msgpack.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", f.Name(), err)
		}
		keys = append(keys, e.URL)
	}
	sort.Strings(keys)
	return keys, nil
}

// Buckets lists the bucket names, sorted.
func (s *Storage) Buckets() ([]string, error) {
	files, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	buckets := []string{}
	for _, f := range files {
		if f.IsDir() {
			buckets = append(buckets, f.Name())
		}
	}
	sort.Strings(buckets)
	return buckets, nil
}

// DeleteBucket removes the bucket and everything in it.
func (s *Storage) DeleteBucket(bucket string) error {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete bucket %q: %w", bucket, err)
	}
	return nil
}

func (s *Storage) bucketDir(bucket string) (string, error) {
	if bucket == "" || bucket == "." || bucket == ".." || strings.ContainsAny(bucket, `/\`) {
		return "", fmt.Errorf("invalid bucket name %q", bucket)
	}
	return filepath.Join(s.Dir, bucket), nil
}

func (s *Storage) entryPath(bucket, url string) (string, error) {
	dir, err := s.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("%016x%s", xxhash.Sum64String(url), entryExt)), nil
}
