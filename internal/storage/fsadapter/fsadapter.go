// Package fsadapter exposes the narrow set of directory/file primitives the
// object store needs, so that the store itself never calls os.* directly.
// Production code uses OSFileSystem; tests can substitute MemFS to exercise
// the object store and request translator without touching disk.
package fsadapter

import (
	"crypto/md5" //nolint:gosec // G501: MD5 required for S3 ETag compatibility
	"errors"
	"io"
	"os"
)

// dirPermissions is applied to every directory this package creates.
const dirPermissions = 0o750

// filePermissions is applied to every regular file this package creates.
const filePermissions = 0o640

// ErrNotExist is returned by Stat, OpenRead and ReadDir when the path does
// not exist. It is os.ErrNotExist itself, so callers can use errors.Is
// against either.
var ErrNotExist = os.ErrNotExist

// ErrNotEmpty is returned by RemoveEmpty when the directory has entries.
var ErrNotEmpty = errors.New("fsadapter: directory not empty")

// ByteRange is an inclusive byte interval [Start, End] requested from
// OpenRead. End == -1 means "to EOF".
type ByteRange struct {
	Start int64
	End   int64 // inclusive, -1 means EOF
}

// DirEntry is a minimal directory entry: a name relative to the directory
// that was listed, and whether it is itself a directory.
type DirEntry struct {
	Name  string
	IsDir bool
}

// Info is the subset of file metadata the object store consults.
type Info struct {
	Size    int64
	ModTime int64 // Unix seconds
	IsDir   bool
}

// WriteResult reports what was actually written by WriteAtomic.
type WriteResult struct {
	Size int64
	MD5  [md5.Size]byte
}

// FS is the filesystem adapter's capability surface.
type FS interface {
	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string) error

	// ReadDir lists the immediate entries of a directory.
	ReadDir(path string) ([]DirEntry, error)

	// Stat returns metadata for path, or ErrNotExist.
	Stat(path string) (Info, error)

	// OpenRead opens path for reading. If rng is non-nil, the returned
	// stream is positioned at rng.Start and yields only the requested
	// window (up to rng.End inclusive, or to EOF if rng.End == -1).
	OpenRead(path string, rng *ByteRange) (io.ReadCloser, error)

	// WriteAtomic streams src to a temporary file alongside path, hashing
	// it with MD5 as it goes, then renames the temporary file into place.
	// No reader ever observes a partially written file at path.
	WriteAtomic(path string, src io.Reader) (WriteResult, error)

	// Remove deletes a single file. Missing files are not an error.
	Remove(path string) error

	// RemoveEmpty removes a directory if and only if it has no entries.
	// Returns ErrNotEmpty otherwise.
	RemoveEmpty(path string) error
}
