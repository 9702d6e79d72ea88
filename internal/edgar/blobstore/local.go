package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// LocalStore implements Store against a root directory on the local
// filesystem. It never compresses: the local backend's contract is
// byte-identical storage regardless of the caller's deflate flag.
type LocalStore struct {
	Root string
}

// NewLocalStore constructs a LocalStore rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root}
}

func (s *LocalStore) resolve(path string) string {
	return filepath.Join(s.Root, filepath.FromSlash(stripLeadingSlash(path)))
}

func (s *LocalStore) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(s.resolve(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, eris.Wrapf(err, "blobstore/local: stat %q", path)
}

func (s *LocalStore) Get(_ context.Context, path string, _ bool) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(path))
	if err != nil {
		return nil, eris.Wrapf(err, "blobstore/local: read %q", path)
	}
	return data, nil
}

func (s *LocalStore) GetRange(_ context.Context, path string, start, end int64, _ bool) ([]byte, error) {
	f, err := os.Open(s.resolve(path))
	if err != nil {
		return nil, eris.Wrapf(err, "blobstore/local: open %q", path)
	}
	defer f.Close() //nolint:errcheck

	buf := make([]byte, end-start)
	if _, err := f.ReadAt(buf, start); err != nil && err != io.EOF {
		return nil, eris.Wrapf(err, "blobstore/local: read range %q", path)
	}
	return buf, nil
}

func (s *LocalStore) GetToFile(_ context.Context, path, localPath string, _ bool) error {
	data, err := os.ReadFile(s.resolve(path))
	if err != nil {
		return eris.Wrapf(err, "blobstore/local: read %q", path)
	}
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return eris.Wrapf(err, "blobstore/local: write %q", localPath)
	}
	return nil
}

func (s *LocalStore) Put(_ context.Context, path string, data []byte, _ bool) error {
	dest := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return eris.Wrapf(err, "blobstore/local: mkdir for %q", path)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return eris.Wrapf(err, "blobstore/local: write %q", path)
	}
	return nil
}

func (s *LocalStore) PutFile(ctx context.Context, path, localPath string, deflate bool) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return eris.Wrapf(err, "blobstore/local: read %q", localPath)
	}
	return s.Put(ctx, path, data, deflate)
}

func (s *LocalStore) Delete(_ context.Context, path string) error {
	if err := os.Remove(s.resolve(path)); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "blobstore/local: delete %q", path)
	}
	return nil
}

func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	root := s.resolve(prefix)
	var keys []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "blobstore/local: list %q", prefix)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) ListFolders(_ context.Context, prefix string, limit int) ([]string, error) {
	root := s.resolve(prefix)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "blobstore/local: list folders %q", prefix)
	}

	var folders []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		folders = append(folders, strings.TrimSuffix(prefix, "/")+"/"+e.Name()+"/")
		if limit > 0 && len(folders) >= limit {
			break
		}
	}
	sort.Strings(folders)
	return folders, nil
}
