// Package objectstore implements the bucket/key namespace on top of a
// fsadapter.FS: persisting object bytes and metadata, computing content
// hashes, enumerating with prefix/delimiter/marker paging, and copy/delete
// The store exclusively owns the on-disk representation;
// callers hold no persistent state of their own.
package objectstore

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/piwi3910/nebulaio/internal/storage/fsadapter"
)

// Store is the file-backed object store.
type Store struct {
	fs   fsadapter.FS
	root string
}

// New creates a Store rooted at root, using fs for all filesystem access.
func New(fs fsadapter.FS, root string) *Store {
	return &Store{fs: fs, root: root}
}

func (s *Store) bucketPath(bucket string) string {
	return path.Join(s.root, bucket)
}

func (s *Store) objectPath(bucket, key string) string {
	return path.Join(s.root, bucket, key)
}

func (s *Store) sidecarPath(bucket, key string) string {
	return s.objectPath(bucket, key) + sidecarSuffix
}

// GetBucket returns the named bucket, or ErrBucketNotFound.
func (s *Store) GetBucket(_ context.Context, name string) (Bucket, error) {
	info, err := s.fs.Stat(s.bucketPath(name))
	if err != nil {
		if err == fsadapter.ErrNotExist { //nolint:errorlint // sentinel comparison by design
			return Bucket{}, ErrBucketNotFound
		}

		return Bucket{}, err
	}

	if !info.IsDir {
		return Bucket{}, ErrBucketNotFound
	}

	return Bucket{Name: name, CreationDate: time.Unix(info.ModTime, 0).UTC()}, nil
}

// GetBuckets lists every bucket under the store root.
func (s *Store) GetBuckets(_ context.Context) ([]Bucket, error) {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		if err == fsadapter.ErrNotExist { //nolint:errorlint // sentinel comparison by design
			return nil, nil
		}

		return nil, err
	}

	buckets := make([]Bucket, 0, len(entries))

	for _, e := range entries {
		if !e.IsDir {
			continue
		}

		info, err := s.fs.Stat(s.bucketPath(e.Name))
		if err != nil {
			continue
		}

		buckets = append(buckets, Bucket{Name: e.Name, CreationDate: time.Unix(info.ModTime, 0).UTC()})
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Name < buckets[j].Name })

	return buckets, nil
}

// PutBucket creates a bucket directory, or ErrBucketExists if one of that
// name is already present. The caller is responsible for name validation.
func (s *Store) PutBucket(_ context.Context, name string) error {
	if _, err := s.fs.Stat(s.bucketPath(name)); err == nil {
		return ErrBucketExists
	}

	return s.fs.MkdirAll(s.bucketPath(name))
}

// DeleteBucket removes an empty bucket directory, or ErrBucketNotEmpty.
func (s *Store) DeleteBucket(_ context.Context, name string) error {
	if err := s.fs.RemoveEmpty(s.bucketPath(name)); err != nil {
		if err == fsadapter.ErrNotEmpty { //nolint:errorlint // sentinel comparison by design
			return ErrBucketNotEmpty
		}

		return err
	}

	return nil
}

// ByteStream is the body returned by GetObject. It must be consumed exactly
// once and then closed.
type ByteStream = io.ReadCloser

// GetObject loads an object's metadata and opens its body, optionally
// windowed to rng.
func (s *Store) GetObject(_ context.Context, bucket, key string, rng *fsadapter.ByteRange) (Object, ByteStream, error) {
	sc, err := readSidecar(s.fs, s.sidecarPath(bucket, key))
	if err != nil {
		return Object{}, nil, err
	}

	body, err := s.fs.OpenRead(s.objectPath(bucket, key), rng)
	if err != nil {
		if err == fsadapter.ErrNotExist { //nolint:errorlint // sentinel comparison by design
			return Object{}, nil, ErrObjectNotFound
		}

		return Object{}, nil, err
	}

	return sc.toObject(), body, nil
}

// GetObjectExists reports whether key exists in bucket, without reading it.
func (s *Store) GetObjectExists(_ context.Context, bucket, key string) (bool, error) {
	_, err := s.fs.Stat(s.objectPath(bucket, key))
	if err != nil {
		if err == fsadapter.ErrNotExist { //nolint:errorlint // sentinel comparison by design
			return false, nil
		}

		return false, err
	}

	return true, nil
}

// PutObject streams body into bucket/key, hashing as it writes, then
// atomically publishes the metadata sidecar. The body is written before the
// sidecar is materialized, so a partial upload never yields a visible
// sidecar.
func (s *Store) PutObject(_ context.Context, bucket, key string, body io.Reader, headers UploadHeaders) (Object, error) {
	result, err := s.fs.WriteAtomic(s.objectPath(bucket, key), body)
	if err != nil {
		return Object{}, err
	}

	contentType := headers.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	sc := sidecar{
		Key:                key,
		Size:               result.Size,
		MD5:                md5Hex(result.MD5),
		ModifiedDate:       time.Now().UTC().Truncate(time.Second),
		ContentType:        contentType,
		ContentEncoding:    headers.ContentEncoding,
		ContentDisposition: headers.ContentDisposition,
		CustomMetaData:     headers.CustomMetaData,
	}

	if err := writeSidecar(s.fs, s.sidecarPath(bucket, key), sc); err != nil {
		return Object{}, err
	}

	log.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Str("size", humanize.Bytes(uint64(sc.Size))).
		Msg("object stored")

	return sc.toObject(), nil
}

// CopyObject streams the source body into a new object at the destination,
// taking metadata either from newHeaders (replaceMetadata) or from the
// source's sidecar, and always recomputing md5 and modifiedDate.
func (s *Store) CopyObject(ctx context.Context, in CopyInput) (Object, error) {
	srcSidecar, err := readSidecar(s.fs, s.sidecarPath(in.SrcBucket, in.SrcKey))
	if err != nil {
		return Object{}, err
	}

	srcBody, err := s.fs.OpenRead(s.objectPath(in.SrcBucket, in.SrcKey), nil)
	if err != nil {
		if err == fsadapter.ErrNotExist { //nolint:errorlint // sentinel comparison by design
			return Object{}, ErrObjectNotFound
		}

		return Object{}, err
	}
	defer srcBody.Close()

	headers := UploadHeaders{
		ContentType:        srcSidecar.ContentType,
		ContentEncoding:    srcSidecar.ContentEncoding,
		ContentDisposition: srcSidecar.ContentDisposition,
		CustomMetaData:     srcSidecar.CustomMetaData,
	}
	if in.ReplaceMetadata {
		headers = in.NewHeaders
	}

	return s.PutObject(ctx, in.DestBucket, in.DestKey, srcBody, headers)
}

// DeleteObject removes an object's body and sidecar. Deleting a missing key
// is not an error.
func (s *Store) DeleteObject(_ context.Context, bucket, key string) error {
	if err := s.fs.Remove(s.objectPath(bucket, key)); err != nil {
		return err
	}

	return s.fs.Remove(s.sidecarPath(bucket, key))
}

// GetObjects walks the bucket's tree in lexicographic key order and pages
// through it with S3 listing semantics: lexicographic key ordering,
// marker/prefix filtering, and delimiter-based common-prefix folding.
func (s *Store) GetObjects(_ context.Context, bucket string, opts ListOptions) (ListResult, error) {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	keys, err := s.listKeys(bucket)
	if err != nil {
		return ListResult{}, err
	}

	sort.Strings(keys)

	result := ListResult{}
	seenPrefixes := map[string]bool{}

	for _, key := range keys {
		if key <= opts.Marker {
			continue
		}

		if !strings.HasPrefix(key, opts.Prefix) {
			continue
		}

		if opts.Delimiter != "" {
			rest := key[len(opts.Prefix):]
			if idx := strings.Index(rest, opts.Delimiter); idx >= 0 {
				commonPrefix := opts.Prefix + rest[:idx+len(opts.Delimiter)]
				if seenPrefixes[commonPrefix] {
					continue
				}

				if len(result.Objects)+len(result.CommonPrefixes) >= maxKeys {
					result.IsTruncated = true
					break
				}

				seenPrefixes[commonPrefix] = true
				result.CommonPrefixes = append(result.CommonPrefixes, commonPrefix)

				continue
			}
		}

		if len(result.Objects)+len(result.CommonPrefixes) >= maxKeys {
			result.IsTruncated = true
			break
		}

		sc, err := readSidecar(s.fs, s.sidecarPath(bucket, key))
		if err != nil {
			continue
		}

		result.Objects = append(result.Objects, sc.toObject())
	}

	return result, nil
}

// listKeys walks the bucket directory tree and returns every object key
// (the sidecar files themselves are not listed).
func (s *Store) listKeys(bucket string) ([]string, error) {
	var keys []string

	var walk func(dir, prefix string) error

	walk = func(dir, prefix string) error {
		entries, err := s.fs.ReadDir(dir)
		if err != nil {
			if err == fsadapter.ErrNotExist { //nolint:errorlint // sentinel comparison by design
				return nil
			}

			return err
		}

		for _, e := range entries {
			if e.IsDir {
				if err := walk(path.Join(dir, e.Name), prefix+e.Name+"/"); err != nil {
					return err
				}

				continue
			}

			if strings.HasSuffix(e.Name, sidecarSuffix) {
				continue
			}

			keys = append(keys, prefix+e.Name)
		}

		return nil
	}

	if err := walk(s.bucketPath(bucket), ""); err != nil {
		return nil, err
	}

	return keys, nil
}
