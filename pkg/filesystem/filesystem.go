package filesystem

import (
	"io/fs"
	"path/filepath"

	"github.com/arthur-debert/doarch/pkg/errors"
)

// FS is the filesystem abstraction used by everything that touches disk.
// Production code uses the OS implementation; tests may substitute the
// afero-backed one.
type FS interface {
	// File operations
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error

	// Directory operations
	MkdirAll(path string, perm fs.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)

	// Symlink operations
	Symlink(oldname, newname string) error
	Readlink(name string) (string, error)

	// Ownership and mode
	Chown(name string, uid, gid int) error
	Lchown(name string, uid, gid int) error
	Chmod(name string, mode fs.FileMode) error

	// Other operations
	Rename(oldpath, newpath string) error
	Remove(name string) error
	RemoveAll(path string) error
}

// Exists reports whether the path exists (file, directory, or symlink).
func Exists(fsys FS, path string) bool {
	_, err := fsys.Lstat(path)
	return err == nil
}

// IsDir reports whether the path exists and is a directory.
func IsDir(fsys FS, path string) bool {
	info, err := fsys.Stat(path)
	return err == nil && info.IsDir()
}

// CopyFile copies a single regular file, preserving its mode.
func CopyFile(fsys FS, src, dst string) error {
	info, err := fsys.Stat(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", src)
	}
	data, err := fsys.ReadFile(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", src)
	}
	if err := fsys.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(dst))
	}
	if err := fsys.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return errors.Wrapf(err, errors.ErrFileWrite, "cannot write %s", dst)
	}
	return nil
}

// CopyTree recursively copies src into dst. Directories keep their modes,
// symlinks are recreated (not followed), regular files are copied with
// their permission bits. Existing files under dst are overwritten in
// place; callers that must not merge rename dst aside first.
func CopyTree(fsys FS, src, dst string) error {
	info, err := fsys.Lstat(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", src)
	}

	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		target, err := fsys.Readlink(src)
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "cannot read link %s", src)
		}
		if err := fsys.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", filepath.Dir(dst))
		}
		if err := fsys.Symlink(target, dst); err != nil {
			return errors.Wrapf(err, errors.ErrFileCreate, "cannot create link %s", dst)
		}
		return nil

	case info.IsDir():
		if err := fsys.MkdirAll(dst, info.Mode().Perm()); err != nil {
			return errors.Wrapf(err, errors.ErrDirCreate, "cannot create %s", dst)
		}
		entries, err := fsys.ReadDir(src)
		if err != nil {
			return errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", src)
		}
		for _, entry := range entries {
			if err := CopyTree(fsys, filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil

	default:
		return CopyFile(fsys, src, dst)
	}
}

// ChownTree recursively changes ownership of path and everything below it.
// Symlinks themselves are re-owned (Lchown), never their targets.
func ChownTree(fsys FS, path string, uid, gid int) error {
	info, err := fsys.Lstat(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot stat %s", path)
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		if err := fsys.Lchown(path, uid, gid); err != nil {
			return errors.Wrapf(err, errors.ErrDeployChown, "cannot chown link %s", path)
		}
		return nil
	}

	if err := fsys.Chown(path, uid, gid); err != nil {
		return errors.Wrapf(err, errors.ErrDeployChown, "cannot chown %s", path)
	}

	if !info.IsDir() {
		return nil
	}
	entries, err := fsys.ReadDir(path)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot read %s", path)
	}
	for _, entry := range entries {
		if err := ChownTree(fsys, filepath.Join(path, entry.Name()), uid, gid); err != nil {
			return err
		}
	}
	return nil
}
