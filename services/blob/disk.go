// Package blob keeps uploaded files.
package blob

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
)

// ErrTooLarge is returned when an upload exceeds the configured max size.
var ErrTooLarge = errors.New("file too large")

// DiskStore writes uploads under a local directory served at baseURL.
type DiskStore struct {
	dir     string
	baseURL string
	maxSize int64
}

var _ core.BlobStore = (*DiskStore)(nil) // interface compliance check

func NewDiskStore(conf *core.Config) (*DiskStore, error) {
	if err := os.MkdirAll(conf.Uploads.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating uploads dir")
	}
	base := conf.Uploads.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &DiskStore{dir: conf.Uploads.Dir, baseURL: base, maxSize: conf.Uploads.MaxSize}, nil
}

// Save stores the content of r under a random key keeping filename's extension, and returns its URL.
func (s *DiskStore) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := uuid.New().String() + strings.ToLower(path.Ext(filepath.Base(filename)))
	fp := filepath.Join(s.dir, key)

	f, err := os.OpenFile(fp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "creating blob")
	}

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxSize > 0 && n > s.maxSize {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(fp)
		if err == ErrTooLarge {
			return "", err
		}
		return "", errors.Wrap(err, "writing blob")
	}
	return s.baseURL + key, nil
}

// Dir is the directory blobs are written to.
func (s *DiskStore) Dir() string { return s.dir }
