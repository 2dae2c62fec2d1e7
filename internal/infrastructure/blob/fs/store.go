package fs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"agritrace/internal/errs"
	"agritrace/internal/ports"
)

// Store keeps blobs as files under root. A sidecar (`<file>.meta`) holds the
// content type and user metadata.
type Store struct {
	root string
}

var _ ports.BlobStore = (*Store)(nil)

// New returns a filesystem-backed store rooted at root, creating it if needed.
func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		root = "./data/blobs"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errs.Wrapf(err, "create blob root %q", root)
	}
	return &Store{root: root}, nil
}

func (s *Store) Driver() ports.BlobDriver { return ports.BlobDriverFilesystem }

type metaFile struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ETag        string            `json:"etag"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"created_at"`
}

func (s *Store) Put(ctx context.Context, key string, r io.Reader, opts ports.BlobPutOptions) (ports.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return ports.BlobInfo{}, err
	}
	dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return ports.BlobInfo{}, err
	}
	if _, err := os.Stat(dataPath); err == nil {
		return ports.BlobInfo{}, fmt.Errorf("%w: %s", ports.ErrBlobExists, key)
	}
	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return ports.BlobInfo{}, errs.Wrap(err, "create blob directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".tmp-*")
	if err != nil {
		return ports.BlobInfo{}, errs.Wrap(err, "create temp blob")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		_ = tmp.Close()
		return ports.BlobInfo{}, errs.Wrap(err, "write blob")
	}
	if err := tmp.Close(); err != nil {
		return ports.BlobInfo{}, errs.Wrap(err, "close temp blob")
	}
	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		return ports.BlobInfo{}, errs.Wrap(err, "move blob into place")
	}

	now := time.Now().UTC()
	mf := metaFile{
		ContentType: opts.ContentType,
		Metadata:    cloneMetadata(opts.Metadata),
		ETag:        hex.EncodeToString(h.Sum(nil)),
		Size:        size,
		CreatedAt:   now,
	}
	encoded, err := json.MarshalIndent(mf, "", "  ")
	if err != nil {
		return ports.BlobInfo{}, errs.Wrap(err, "encode blob metadata")
	}
	if err := os.WriteFile(metaPath, encoded, 0o644); err != nil {
		return ports.BlobInfo{}, errs.Wrap(err, "write blob metadata")
	}
	return infoFrom(key, mf), nil
}

func (s *Store) Get(ctx context.Context, key string) (ports.BlobInfo, io.ReadCloser, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return ports.BlobInfo{}, nil, err
	}
	dataPath, _, err := s.pathFor(key)
	if err != nil {
		return ports.BlobInfo{}, nil, err
	}
	file, err := os.Open(dataPath)
	if err != nil {
		return ports.BlobInfo{}, nil, mapNotExist(err, key)
	}
	return info, file, nil
}

func (s *Store) Head(ctx context.Context, key string) (ports.BlobInfo, error) {
	if err := ctx.Err(); err != nil {
		return ports.BlobInfo{}, err
	}
	_, metaPath, err := s.pathFor(key)
	if err != nil {
		return ports.BlobInfo{}, err
	}
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		return ports.BlobInfo{}, mapNotExist(err, key)
	}
	var mf metaFile
	if err := json.Unmarshal(raw, &mf); err != nil {
		return ports.BlobInfo{}, errs.Wrapf(err, "decode blob metadata %q", key)
	}
	return infoFrom(key, mf), nil
}

func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	dataPath, metaPath, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	if err := os.Remove(dataPath); err != nil {
		if errors.Is(err, iofs.ErrNotExist) {
			return false, nil
		}
		return false, errs.Wrap(err, "remove blob")
	}
	_ = os.Remove(metaPath)
	return true, nil
}

// PresignURL is unsupported: certificates on local disk are streamed by the
// HTTP layer.
func (s *Store) PresignURL(context.Context, string, time.Duration) (string, error) {
	return "", ports.ErrBlobUnsupported
}

func (s *Store) pathFor(key string) (dataPath string, metaPath string, err error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", "", err
	}
	dataPath = filepath.Join(s.root, filepath.FromSlash(k))
	return dataPath, dataPath + ".meta", nil
}

// sanitizeKey keeps keys relative to the root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("empty blob key")
	}
	if strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	if strings.HasPrefix(key, "/") || strings.HasSuffix(key, ".meta") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}

func mapNotExist(err error, key string) error {
	if errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ports.ErrBlobNotFound, key)
	}
	return err
}

func infoFrom(key string, mf metaFile) ports.BlobInfo {
	return ports.BlobInfo{
		Key:          key,
		Size:         mf.Size,
		ContentType:  mf.ContentType,
		ETag:         mf.ETag,
		Metadata:     cloneMetadata(mf.Metadata),
		LastModified: mf.CreatedAt,
	}
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
