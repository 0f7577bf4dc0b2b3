// Package fallback wraps a primary blob store with a direct filesystem write
// path and keeps the storage root reachable from the public web root.
package fallback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/storage/fs"
)

const backendName = "fallback"

// Config options for the fallback store
type Config struct {
	StorageRoot string // directory that receives direct writes
	PublicRoot  string // web root that must expose StorageRoot
	LinkName    string // entry under PublicRoot, default "storage"
	URLPrefix   string // public URL of the link, default "/{LinkName}"
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithSymlinkFunc replaces os.Symlink, mainly for hosts or tests where
// symlinks are unavailable.
func WithSymlinkFunc(fn func(oldname, newname string) error) Option {
	return func(s *Store) {
		s.symlink = fn
	}
}

// Store implements simplemedia.BlobStore. Writes go to the primary store and
// fall back to a direct file write under the storage root.
type Store struct {
	primary simplemedia.BlobStore
	config  Config
	root    string
	link    string
	logger  *slog.Logger
	symlink func(oldname, newname string) error

	repairMu sync.Mutex
	mirror   atomic.Bool
}

// New creates a fallback store. primary may be nil, in which case every write
// goes straight to the storage root.
func New(primary simplemedia.BlobStore, config Config, opts ...Option) (*Store, error) {
	if config.StorageRoot == "" {
		return nil, errors.New("storage root is required")
	}
	if config.PublicRoot == "" {
		return nil, errors.New("public root is required")
	}
	if config.LinkName == "" {
		config.LinkName = "storage"
	}
	if config.URLPrefix == "" {
		config.URLPrefix = "/" + config.LinkName
	}
	config.URLPrefix = strings.TrimSuffix(config.URLPrefix, "/")

	root, err := filepath.Abs(config.StorageRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	publicRoot, err := filepath.Abs(config.PublicRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve public root: %w", err)
	}

	s := &Store{
		primary: primary,
		config:  config,
		root:    root,
		link:    filepath.Join(publicRoot, config.LinkName),
		logger:  slog.Default(),
		symlink: os.Symlink,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// MirrorMode reports whether the public link is a physical copy rather than
// a symlink.
func (s *Store) MirrorMode() bool {
	return s.mirror.Load()
}

// LinkPath returns the public access point.
func (s *Store) LinkPath() string {
	return s.link
}

func localPath(base, objectKey string) string {
	return filepath.Join(base, filepath.Clean("/"+filepath.FromSlash(objectKey)))
}

// Upload writes content, falling back to the storage root
func (s *Store) Upload(ctx context.Context, objectKey string, reader io.Reader) error {
	return s.UploadWithParams(ctx, reader, simplemedia.UploadParams{ObjectKey: objectKey})
}

// UploadWithParams writes content, falling back to the storage root, and then
// re-checks public access.
func (s *Store) UploadWithParams(ctx context.Context, reader io.Reader, params simplemedia.UploadParams) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return &simplemedia.StorageError{Backend: backendName, Key: params.ObjectKey, Op: "read", Err: err}
	}

	var primaryErr error
	if s.primary != nil {
		primaryErr = s.primary.UploadWithParams(ctx, bytes.NewReader(data), params)
	} else {
		primaryErr = errors.New("no primary store")
	}

	if primaryErr != nil {
		s.logger.WarnContext(ctx, "primary storage write failed, writing directly",
			"key", params.ObjectKey, "err", primaryErr)
		if err := fs.WriteFile(localPath(s.root, params.ObjectKey), bytes.NewReader(data)); err != nil {
			return &simplemedia.StorageError{
				Backend: backendName,
				Key:     params.ObjectKey,
				Op:      "upload",
				Err:     fmt.Errorf("%w: primary: %v; fallback: %v", simplemedia.ErrStorageFailure, primaryErr, err),
			}
		}
	}

	if err := s.EnsurePublicAccess(ctx); err != nil {
		s.logger.WarnContext(ctx, "public access check failed", "link", s.link, "err", err)
	}

	if s.mirror.Load() {
		if err := fs.WriteFile(localPath(s.link, params.ObjectKey), bytes.NewReader(data)); err != nil {
			s.logger.WarnContext(ctx, "mirror write failed", "key", params.ObjectKey, "err", err)
		}
	}
	return nil
}

// Download reads from the primary store, then from the storage root
func (s *Store) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	if s.primary != nil {
		rc, err := s.primary.Download(ctx, objectKey)
		if err == nil {
			return rc, nil
		}
	}
	f, err := os.Open(localPath(s.root, objectKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, simplemedia.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// GetObjectMeta reads metadata from the primary store, then the storage root
func (s *Store) GetObjectMeta(ctx context.Context, objectKey string) (*simplemedia.ObjectMeta, error) {
	if s.primary != nil {
		meta, err := s.primary.GetObjectMeta(ctx, objectKey)
		if err == nil {
			return meta, nil
		}
	}
	info, err := os.Stat(localPath(s.root, objectKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, simplemedia.ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	return &simplemedia.ObjectMeta{Key: objectKey, Size: info.Size(), UpdatedAt: info.ModTime()}, nil
}

// Delete removes the object from the primary store, the storage root and the
// mirror. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, objectKey string) error {
	var errs []error
	if s.primary != nil {
		if err := s.primary.Delete(ctx, objectKey); err != nil && !errors.Is(err, simplemedia.ErrObjectNotFound) {
			errs = append(errs, err)
		}
	}
	if err := os.Remove(localPath(s.root, objectKey)); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	if s.mirror.Load() {
		if err := os.Remove(localPath(s.link, objectKey)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &simplemedia.StorageError{Backend: backendName, Key: objectKey, Op: "delete", Err: errors.Join(errs...)}
	}
	return nil
}

// URLFor returns {URLPrefix}/{key}
func (s *Store) URLFor(ctx context.Context, objectKey string) (string, error) {
	return s.config.URLPrefix + "/" + strings.TrimPrefix(objectKey, "/"), nil
}

// EnsurePublicAccess verifies that {PublicRoot}/{LinkName} points at the
// storage root. A correct symlink costs one Lstat and one Readlink. A missing
// link is created; if the host refuses symlinks the storage root is copied
// into place and the store switches to mirror mode.
func (s *Store) EnsurePublicAccess(ctx context.Context) error {
	if ok, err := s.linkCurrent(); ok || err != nil {
		return err
	}

	s.repairMu.Lock()
	defer s.repairMu.Unlock()

	if ok, err := s.linkCurrent(); ok || err != nil {
		return err
	}

	if _, err := os.Lstat(s.link); err == nil {
		s.logger.InfoContext(ctx, "replacing stale public storage link", "link", s.link)
		if err := os.Remove(s.link); err != nil {
			return fmt.Errorf("failed to remove stale link: %w", err)
		}
	}

	if err := os.MkdirAll(s.root, 0755); err != nil {
		return fmt.Errorf("failed to create storage root: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.link), 0755); err != nil {
		return fmt.Errorf("failed to create public root: %w", err)
	}

	err := s.symlink(s.root, s.link)
	if err == nil {
		s.logger.InfoContext(ctx, "created public storage link", "link", s.link, "target", s.root)
		return nil
	}

	s.logger.WarnContext(ctx, "symlink not permitted, copying storage root", "link", s.link, "err", err)
	if err := copyTree(s.root, s.link); err != nil {
		return fmt.Errorf("failed to mirror storage root: %w", err)
	}
	s.mirror.Store(true)
	return nil
}

// linkCurrent reports whether the access point is already in place. A real
// directory at the link path is an existing mirror.
func (s *Store) linkCurrent() (bool, error) {
	info, err := os.Lstat(s.link)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect public link: %w", err)
	}

	if info.Mode()&os.ModeSymlink != 0 {
		dest, err := os.Readlink(s.link)
		if err != nil {
			return false, fmt.Errorf("failed to read public link: %w", err)
		}
		if !filepath.IsAbs(dest) {
			dest = filepath.Join(filepath.Dir(s.link), dest)
		}
		return filepath.Clean(dest) == s.root, nil
	}

	if info.IsDir() {
		s.mirror.Store(true)
		return true, nil
	}
	return false, nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return fs.WriteFile(target, f)
	})
}
